// Package domain defines the entity model shared by the graph and document
// stores: entity kinds, attribute payloads, relationship facts, and the error
// taxonomy of the synchronization layer.
package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Identity is the opaque key correlating an entity's graph node and its
// attribute document. It is assigned once at creation and never reused.
type Identity string

// Kind discriminates the three entity kinds.
type Kind string

const (
	KindCar        Kind = "car"
	KindCustomer   Kind = "customer"
	KindDealership Kind = "dealership"
)

// Kinds lists all entity kinds in a stable order.
var Kinds = []Kind{KindCar, KindCustomer, KindDealership}

// Valid reports whether k is a recognised entity kind.
func (k Kind) Valid() bool {
	switch k {
	case KindCar, KindCustomer, KindDealership:
		return true
	}
	return false
}

// Label returns the graph node label for the kind.
func (k Kind) Label() string {
	switch k {
	case KindCar:
		return "Car"
	case KindCustomer:
		return "Customer"
	case KindDealership:
		return "Dealership"
	}
	return ""
}

// Relation is a directed edge type in the graph store.
type Relation string

const (
	// RelStocks links a Dealership to a Car on its lot.
	RelStocks Relation = "STOCKS"
	// RelOwns links a Customer to a Car they bought.
	RelOwns Relation = "OWNS"
)

// Attributes is the document payload of an entity. The three implementations
// are CarAttrs, CustomerAttrs, and DealershipAttrs.
type Attributes interface {
	Kind() Kind
}

// CarAttrs holds the descriptive fields of a car.
type CarAttrs struct {
	Model        string `json:"model"`
	Year         int    `json:"year"`
	Manufacturer string `json:"manufacturer"`
	Registration string `json:"registration"`
}

func (CarAttrs) Kind() Kind { return KindCar }

// CustomerAttrs holds the descriptive fields of a customer.
type CustomerAttrs struct {
	TaxID       string    `json:"tax_id"`
	Name        string    `json:"name"`
	Nationality string    `json:"nationality"`
	BirthDate   time.Time `json:"birth_date"`
}

func (CustomerAttrs) Kind() Kind { return KindCustomer }

// DealershipAttrs holds the descriptive fields of a dealership.
type DealershipAttrs struct {
	Name string `json:"name"`
}

func (DealershipAttrs) Kind() Kind { return KindDealership }

// Entity is the merged view of an identity: graph-confirmed existence plus
// the attribute document.
type Entity struct {
	ID    Identity   `json:"id"`
	Kind  Kind       `json:"kind"`
	Attrs Attributes `json:"attributes"`
}

// DecodeAttributes restores an attribute payload of the given kind from its
// JSON document form.
func DecodeAttributes(kind Kind, raw []byte) (Attributes, error) {
	switch kind {
	case KindCar:
		var a CarAttrs
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("decode car attributes: %w", err)
		}
		return a, nil
	case KindCustomer:
		var a CustomerAttrs
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("decode customer attributes: %w", err)
		}
		return a, nil
	case KindDealership:
		var a DealershipAttrs
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("decode dealership attributes: %w", err)
		}
		return a, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

// AssignmentState is the relationship status of a car.
type AssignmentState int

const (
	Unassigned AssignmentState = iota // no incoming edge
	Stocked                           // STOCKS edge from a dealership
	Owned                             // OWNS edge from a customer
)

func (s AssignmentState) String() string {
	switch s {
	case Unassigned:
		return "unassigned"
	case Stocked:
		return "stocked"
	case Owned:
		return "owned"
	default:
		return "unknown"
	}
}

// Assignment resolves a car's position in the state machine. Holder is the
// dealership or customer identity when the state is Stocked or Owned.
type Assignment struct {
	State  AssignmentState `json:"state"`
	Holder Identity        `json:"holder,omitempty"`
}
