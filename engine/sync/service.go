// Package sync composes the graph relationship store and the document
// attribute store into one entity abstraction. It owns every cross-store
// protocol: create/read/update/delete, dealership provisioning, and the
// purchase transfer. Adapters report only connectivity failures and plain
// absence; this package is the sole place that interprets absence
// combinations into consistency faults and precondition violations.
package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/motorlot/motorlot/engine/domain"
	"github.com/motorlot/motorlot/pkg/eventbus"
	"github.com/motorlot/motorlot/pkg/identity"
	"github.com/motorlot/motorlot/pkg/metrics"
)

// GraphStore is the relationship-side dependency.
type GraphStore interface {
	CreateNode(ctx context.Context, kind domain.Kind, id domain.Identity) error
	NodeExists(ctx context.Context, id domain.Identity) (bool, error)
	DeleteNode(ctx context.Context, id domain.Identity) (bool, error)
	ListNodes(ctx context.Context, kind domain.Kind) ([]domain.Identity, error)
	CreateEdge(ctx context.Context, from, to domain.Identity, rel domain.Relation) (bool, error)
	DeleteEdge(ctx context.Context, from, to domain.Identity, rel domain.Relation) (bool, error)
	FindEdgeTarget(ctx context.Context, from domain.Identity, rel domain.Relation) (domain.Identity, bool, error)
	FindEdgeSource(ctx context.Context, to domain.Identity, rel domain.Relation) (domain.Identity, bool, error)
	ListEdgeTargets(ctx context.Context, from domain.Identity, rel domain.Relation) ([]domain.Identity, error)
}

// DocStore is the attribute-side dependency.
type DocStore interface {
	Put(ctx context.Context, id domain.Identity, attrs domain.Attributes) error
	Get(ctx context.Context, kind domain.Kind, id domain.Identity) (domain.Attributes, bool, error)
	Replace(ctx context.Context, id domain.Identity, attrs domain.Attributes) (bool, error)
	Delete(ctx context.Context, kind domain.Kind, id domain.Identity) (bool, error)
	List(ctx context.Context, kind domain.Kind) ([]domain.Identity, error)
}

// Service is the entity synchronization service.
type Service struct {
	graph  GraphStore
	docs   DocStore
	log    *slog.Logger
	bus    *eventbus.Bus
	reg    *metrics.Registry
	tracer trace.Tracer
	newID  func() string
}

// Option configures a Service.
type Option func(*Service)

// WithEventBus enables lifecycle event publishing.
func WithEventBus(bus *eventbus.Bus) Option {
	return func(s *Service) { s.bus = bus }
}

// WithMetrics wires operation counters into a registry.
func WithMetrics(reg *metrics.Registry) Option {
	return func(s *Service) { s.reg = reg }
}

// WithIDGenerator overrides identity generation (tests use deterministic
// sequences).
func WithIDGenerator(f func() string) Option {
	return func(s *Service) { s.newID = f }
}

// New creates a Service.
func New(graph GraphStore, docs DocStore, log *slog.Logger, opts ...Option) *Service {
	s := &Service{
		graph:  graph,
		docs:   docs,
		log:    log,
		reg:    metrics.New(),
		tracer: otel.Tracer("motorlot/sync"),
		newID:  identity.New,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) count(name string, kvs ...string) {
	s.reg.Counter(metrics.WithLabels(name, kvs...), "").Inc()
}

// consistencyFault records and reports divergence for one identity.
func (s *Service) consistencyFault(id domain.Identity, kind domain.Kind, missing string) error {
	s.count("sync_consistency_faults_total", "kind", string(kind))
	s.log.Warn("consistency fault",
		"kind", kind,
		"id", id,
		"missing", missing,
	)
	return &domain.ConsistencyError{ID: id, Kind: kind, Missing: missing}
}

// CreateEntity generates an identity, creates the graph node, then writes
// the attribute document. When the graph step fails nothing is written.
// When the document step fails after the node exists, the returned identity
// is still reported alongside the error so the orphan node can be cleaned
// up by hand.
func (s *Service) CreateEntity(ctx context.Context, attrs domain.Attributes) (domain.Identity, error) {
	ctx, span := s.tracer.Start(ctx, "sync.CreateEntity")
	defer span.End()

	kind := attrs.Kind()
	id := domain.Identity(s.newID())

	if err := s.graph.CreateNode(ctx, kind, id); err != nil {
		span.RecordError(err)
		return "", err
	}
	if err := s.docs.Put(ctx, id, attrs); err != nil {
		span.RecordError(err)
		s.log.Error("document write failed after node creation, graph node orphaned",
			"kind", kind,
			"id", id,
		)
		return id, err
	}

	s.count("sync_entities_created_total", "kind", string(kind))
	s.publish(ctx, SubjectEntityCreated, EntityEvent{ID: id, Kind: kind, At: time.Now().UTC()})
	return id, nil
}

// ReadEntity merges the graph and document views of an identity. The graph
// is the authoritative existence source: when the node is absent the result
// is nil with no error and the document store is not consulted. A node
// whose document is missing is a consistency fault, not a not-found.
func (s *Service) ReadEntity(ctx context.Context, kind domain.Kind, id domain.Identity) (*domain.Entity, error) {
	exists, err := s.graph.NodeExists(ctx, id)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}

	attrs, ok, err := s.docs.Get(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.consistencyFault(id, kind, "document")
	}
	return &domain.Entity{ID: id, Kind: kind, Attrs: attrs}, nil
}

// ListEntities joins every graph node of a kind with its document.
// Identities whose document is missing are skipped and logged as
// consistency faults rather than failing the listing.
func (s *Service) ListEntities(ctx context.Context, kind domain.Kind) ([]domain.Entity, error) {
	ids, err := s.graph.ListNodes(ctx, kind)
	if err != nil {
		return nil, err
	}

	entities := make([]domain.Entity, 0, len(ids))
	for _, id := range ids {
		attrs, ok, err := s.docs.Get(ctx, kind, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			_ = s.consistencyFault(id, kind, "document")
			continue
		}
		entities = append(entities, domain.Entity{ID: id, Kind: kind, Attrs: attrs})
	}
	return entities, nil
}

// UpdateEntity rewrites the attribute document. Relationship edges are not
// attribute data and are only touched by the link/unlink operations.
// Returns false when no document existed to replace.
func (s *Service) UpdateEntity(ctx context.Context, kind domain.Kind, id domain.Identity, attrs domain.Attributes) (bool, error) {
	if attrs.Kind() != kind {
		return false, fmt.Errorf("%w: update %s with %s attributes", domain.ErrUnknownKind, kind, attrs.Kind())
	}
	replaced, err := s.docs.Replace(ctx, id, attrs)
	if err != nil {
		return false, err
	}
	if replaced {
		s.count("sync_entities_updated_total", "kind", string(kind))
	}
	return replaced, nil
}

// DeleteEntity removes the graph node (detaching its edges) and, only after
// that succeeded, the document. Deleting a dealership first cascades to
// every car it currently stocks. A second delete of the same identity
// returns false, not an error.
func (s *Service) DeleteEntity(ctx context.Context, kind domain.Kind, id domain.Identity) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "sync.DeleteEntity")
	defer span.End()

	if kind == domain.KindDealership {
		cars, err := s.graph.ListEdgeTargets(ctx, id, domain.RelStocks)
		if err != nil {
			span.RecordError(err)
			return false, err
		}
		for _, car := range cars {
			if _, err := s.deleteOne(ctx, domain.KindCar, car); err != nil {
				span.RecordError(err)
				return false, err
			}
		}
	}

	removed, err := s.deleteOne(ctx, kind, id)
	if err != nil {
		span.RecordError(err)
		return false, err
	}
	if removed {
		s.publish(ctx, SubjectEntityDeleted, EntityEvent{ID: id, Kind: kind, At: time.Now().UTC()})
	}
	return removed, nil
}

func (s *Service) deleteOne(ctx context.Context, kind domain.Kind, id domain.Identity) (bool, error) {
	removed, err := s.graph.DeleteNode(ctx, id)
	if err != nil {
		return false, err
	}
	if !removed {
		return false, nil
	}
	if _, err := s.docs.Delete(ctx, kind, id); err != nil {
		// Node is gone, document may linger: reconciliation territory.
		s.log.Error("document delete failed after node removal",
			"kind", kind,
			"id", id,
		)
		return false, err
	}
	s.count("sync_entities_deleted_total", "kind", string(kind))
	return true, nil
}

// ReadCustomerByTaxID finds a customer by tax id. The lookup runs on the
// document side; graph existence is re-checked before returning, so a
// document whose node vanished surfaces as a consistency fault.
func (s *Service) ReadCustomerByTaxID(ctx context.Context, taxID string) (*domain.Entity, error) {
	ids, err := s.docs.List(ctx, domain.KindCustomer)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		attrs, ok, err := s.docs.Get(ctx, domain.KindCustomer, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		customer, ok := attrs.(domain.CustomerAttrs)
		if !ok || customer.TaxID != taxID {
			continue
		}
		exists, err := s.graph.NodeExists(ctx, id)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, s.consistencyFault(id, domain.KindCustomer, "node")
		}
		return &domain.Entity{ID: id, Kind: domain.KindCustomer, Attrs: customer}, nil
	}
	return nil, nil
}
