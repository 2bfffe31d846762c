package graph

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// mockResult feeds canned records through the CypherResult interface.
type mockResult struct {
	records []*neo4j.Record
	idx     int
}

func newMockResult(records ...*neo4j.Record) *mockResult {
	return &mockResult{records: records}
}

func (m *mockResult) Next(_ context.Context) bool {
	if m.idx < len(m.records) {
		m.idx++
		return true
	}
	return false
}

func (m *mockResult) Record() *neo4j.Record { return m.records[m.idx-1] }

// mockSession records statements and replays queued results in order.
type mockSession struct {
	results  []CypherResult
	runErr   error
	writeErr error
	cyphers  []string
	params   []map[string]any
	writes   int
	closed   int
}

func (s *mockSession) Run(_ context.Context, cypher string, params map[string]any) (CypherResult, error) {
	s.cyphers = append(s.cyphers, cypher)
	s.params = append(s.params, params)
	if s.runErr != nil {
		return nil, s.runErr
	}
	if len(s.results) == 0 {
		return newMockResult(), nil
	}
	r := s.results[0]
	s.results = s.results[1:]
	return r, nil
}

func (s *mockSession) ExecuteWrite(_ context.Context, work func(tx CypherRunner) (any, error)) (any, error) {
	s.writes++
	if s.writeErr != nil {
		return nil, s.writeErr
	}
	return work(s)
}

func (s *mockSession) Close(_ context.Context) error {
	s.closed++
	return nil
}

type mockOpener struct {
	session *mockSession
}

func (o *mockOpener) OpenSession(_ context.Context) CypherSession { return o.session }

func newMockStore(results ...CypherResult) (*Store, *mockSession) {
	sess := &mockSession{results: results}
	return NewWithOpener(&mockOpener{session: sess}), sess
}

func idRecord(id string) *neo4j.Record {
	return &neo4j.Record{Keys: []string{"id"}, Values: []any{id}}
}

func countRecord(key string, n int64) *neo4j.Record {
	return &neo4j.Record{Keys: []string{key}, Values: []any{n}}
}
