// Package graph is the relationship store adapter. It keeps entity existence
// as labelled Neo4j nodes and STOCKS/OWNS facts as directed edges, and
// carries no descriptive attributes; those live in the document store under
// the same identity.
package graph

import (
	"context"
	"fmt"

	"github.com/motorlot/motorlot/engine/domain"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Store provides relationship operations over Neo4j.
type Store struct {
	opener SessionOpener
}

// New creates a Store backed by a Neo4j driver.
func New(driver neo4j.DriverWithContext) *Store {
	return &Store{opener: &driverOpener{driver: driver}}
}

// NewWithOpener creates a Store with a custom session opener.
func NewWithOpener(opener SessionOpener) *Store {
	return &Store{opener: opener}
}

// unavailable wraps a driver failure in the store-unavailable sentinel.
func unavailable(op string, err error) error {
	return fmt.Errorf("graph %s: %w: %w", op, domain.ErrStoreUnavailable, err)
}

// CreateNode inserts a node tagged with the kind's label and the identity.
func (s *Store) CreateNode(ctx context.Context, kind domain.Kind, id domain.Identity) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrUnknownKind, kind)
	}
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := fmt.Sprintf(`CREATE (n:%s {id: $id})`, kind.Label())
	_, err := sess.ExecuteWrite(ctx, func(tx CypherRunner) (any, error) {
		return tx.Run(ctx, cypher, map[string]any{"id": string(id)})
	})
	if err != nil {
		return unavailable("create node", err)
	}
	return nil
}

// NodeExists reports whether any node carries the identity.
func (s *Store) NodeExists(ctx context.Context, id domain.Identity) (bool, error) {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (n {id: $id}) RETURN n.id AS id LIMIT 1`
	result, err := sess.Run(ctx, cypher, map[string]any{"id": string(id)})
	if err != nil {
		return false, unavailable("node exists", err)
	}
	return result.Next(ctx), nil
}

// DeleteNode removes the node and all incident edges. Returns whether a node
// was actually found and removed.
func (s *Store) DeleteNode(ctx context.Context, id domain.Identity) (bool, error) {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (n {id: $id}) DETACH DELETE n RETURN count(n) AS removed`
	out, err := sess.ExecuteWrite(ctx, func(tx CypherRunner) (any, error) {
		result, err := tx.Run(ctx, cypher, map[string]any{"id": string(id)})
		if err != nil {
			return nil, err
		}
		return countFrom(ctx, result, "removed"), nil
	})
	if err != nil {
		return false, unavailable("delete node", err)
	}
	return out.(int64) > 0, nil
}

// ListNodes returns the identities of all nodes of a kind, in store-native
// order.
func (s *Store) ListNodes(ctx context.Context, kind domain.Kind) ([]domain.Identity, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownKind, kind)
	}
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := fmt.Sprintf(`MATCH (n:%s) RETURN n.id AS id`, kind.Label())
	result, err := sess.Run(ctx, cypher, nil)
	if err != nil {
		return nil, unavailable("list nodes", err)
	}
	return collectIdentities(ctx, result), nil
}

// CreateEdge creates a directed relationship between two existing nodes.
// Returns false when either endpoint does not exist. Exclusivity of car
// edges is not enforced here; that is the synchronization service's job.
func (s *Store) CreateEdge(ctx context.Context, from, to domain.Identity, rel domain.Relation) (bool, error) {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := fmt.Sprintf(
		`MATCH (a {id: $from}), (b {id: $to})
		 CREATE (a)-[r:%s]->(b)
		 RETURN count(r) AS created`,
		sanitizeRelType(string(rel)),
	)
	out, err := sess.ExecuteWrite(ctx, func(tx CypherRunner) (any, error) {
		result, err := tx.Run(ctx, cypher, map[string]any{
			"from": string(from),
			"to":   string(to),
		})
		if err != nil {
			return nil, err
		}
		return countFrom(ctx, result, "created"), nil
	})
	if err != nil {
		return false, unavailable("create edge", err)
	}
	return out.(int64) > 0, nil
}

// DeleteEdge removes a directed relationship. Returns whether an edge was
// found and removed.
func (s *Store) DeleteEdge(ctx context.Context, from, to domain.Identity, rel domain.Relation) (bool, error) {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := fmt.Sprintf(
		`MATCH (a {id: $from})-[r:%s]->(b {id: $to})
		 DELETE r
		 RETURN count(r) AS removed`,
		sanitizeRelType(string(rel)),
	)
	out, err := sess.ExecuteWrite(ctx, func(tx CypherRunner) (any, error) {
		result, err := tx.Run(ctx, cypher, map[string]any{
			"from": string(from),
			"to":   string(to),
		})
		if err != nil {
			return nil, err
		}
		return countFrom(ctx, result, "removed"), nil
	})
	if err != nil {
		return false, unavailable("delete edge", err)
	}
	return out.(int64) > 0, nil
}

// FindEdgeTarget answers "what does X stock/own": the identity on the far
// end of an outgoing edge. ok is false when no such edge exists.
func (s *Store) FindEdgeTarget(ctx context.Context, from domain.Identity, rel domain.Relation) (domain.Identity, bool, error) {
	cypher := fmt.Sprintf(
		`MATCH (a {id: $id})-[:%s]->(b) RETURN b.id AS id LIMIT 1`,
		sanitizeRelType(string(rel)),
	)
	return s.findOne(ctx, cypher, from)
}

// FindEdgeSource answers "who stocks/owns Y": the identity on the near end
// of an incoming edge. ok is false when no such edge exists.
func (s *Store) FindEdgeSource(ctx context.Context, to domain.Identity, rel domain.Relation) (domain.Identity, bool, error) {
	cypher := fmt.Sprintf(
		`MATCH (a)-[:%s]->(b {id: $id}) RETURN a.id AS id LIMIT 1`,
		sanitizeRelType(string(rel)),
	)
	return s.findOne(ctx, cypher, to)
}

// ListEdgeTargets returns every identity reachable over an outgoing edge of
// the given relation. Used to enumerate a dealership's stock.
func (s *Store) ListEdgeTargets(ctx context.Context, from domain.Identity, rel domain.Relation) ([]domain.Identity, error) {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := fmt.Sprintf(
		`MATCH (a {id: $id})-[:%s]->(b) RETURN b.id AS id`,
		sanitizeRelType(string(rel)),
	)
	result, err := sess.Run(ctx, cypher, map[string]any{"id": string(from)})
	if err != nil {
		return nil, unavailable("list edge targets", err)
	}
	return collectIdentities(ctx, result), nil
}

// DropAll removes every node and edge. Reset tooling only.
func (s *Store) DropAll(ctx context.Context) error {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	_, err := sess.ExecuteWrite(ctx, func(tx CypherRunner) (any, error) {
		return tx.Run(ctx, `MATCH (n) DETACH DELETE n`, nil)
	})
	if err != nil {
		return unavailable("drop all", err)
	}
	return nil
}

func (s *Store) findOne(ctx context.Context, cypher string, id domain.Identity) (domain.Identity, bool, error) {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	result, err := sess.Run(ctx, cypher, map[string]any{"id": string(id)})
	if err != nil {
		return "", false, unavailable("find edge", err)
	}
	if !result.Next(ctx) {
		return "", false, nil
	}
	return identityFromRecord(result.Record()), true, nil
}

// collectIdentities reads the "id" column from every record.
func collectIdentities(ctx context.Context, result CypherResult) []domain.Identity {
	var ids []domain.Identity
	for result.Next(ctx) {
		if id := identityFromRecord(result.Record()); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func identityFromRecord(rec *neo4j.Record) domain.Identity {
	val, ok := rec.Get("id")
	if !ok {
		return ""
	}
	s, ok := val.(string)
	if !ok {
		return ""
	}
	return domain.Identity(s)
}

// countFrom reads a single integer column from the first record, zero when
// the result is empty.
func countFrom(ctx context.Context, result CypherResult, key string) int64 {
	if !result.Next(ctx) {
		return 0
	}
	val, ok := result.Record().Get(key)
	if !ok {
		return 0
	}
	switch n := val.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}

// sanitizeRelType ensures the relationship type is a valid Cypher
// identifier. Relation constants are already safe; this guards the string
// interpolation.
func sanitizeRelType(t string) string {
	safe := make([]byte, 0, len(t))
	for i := range t {
		c := t[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			safe = append(safe, c)
		}
	}
	if len(safe) == 0 {
		return "RELATED_TO"
	}
	for i := range safe {
		if safe[i] >= 'a' && safe[i] <= 'z' {
			safe[i] -= 32
		}
	}
	return string(safe)
}
