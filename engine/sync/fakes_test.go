package sync

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/motorlot/motorlot/engine/domain"
)

// fakeGraph is an in-memory GraphStore with failure injection.
type fakeGraph struct {
	kinds map[domain.Identity]domain.Kind
	order []domain.Identity
	edges []edge

	createNodeCalls  int
	failCreateNodeAt int // fail on the Nth CreateNode call, 0 = never
	createNodeErr    error
	existsErr        error
	deleteNodeErr    error
	listErr          error
	createEdgeErr    error
	deleteEdgeErr    error
	findErr          error
}

type edge struct {
	from, to domain.Identity
	rel      domain.Relation
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{kinds: make(map[domain.Identity]domain.Kind)}
}

func (g *fakeGraph) CreateNode(_ context.Context, kind domain.Kind, id domain.Identity) error {
	g.createNodeCalls++
	if g.createNodeErr != nil {
		return g.createNodeErr
	}
	if g.failCreateNodeAt > 0 && g.createNodeCalls == g.failCreateNodeAt {
		return fmt.Errorf("injected: %w", domain.ErrStoreUnavailable)
	}
	g.kinds[id] = kind
	g.order = append(g.order, id)
	return nil
}

func (g *fakeGraph) NodeExists(_ context.Context, id domain.Identity) (bool, error) {
	if g.existsErr != nil {
		return false, g.existsErr
	}
	_, ok := g.kinds[id]
	return ok, nil
}

func (g *fakeGraph) DeleteNode(_ context.Context, id domain.Identity) (bool, error) {
	if g.deleteNodeErr != nil {
		return false, g.deleteNodeErr
	}
	if _, ok := g.kinds[id]; !ok {
		return false, nil
	}
	delete(g.kinds, id)
	for i := 0; i < len(g.edges); {
		if g.edges[i].from == id || g.edges[i].to == id {
			g.edges = append(g.edges[:i], g.edges[i+1:]...)
			continue
		}
		i++
	}
	return true, nil
}

func (g *fakeGraph) ListNodes(_ context.Context, kind domain.Kind) ([]domain.Identity, error) {
	if g.listErr != nil {
		return nil, g.listErr
	}
	var ids []domain.Identity
	for _, id := range g.order {
		if g.kinds[id] == kind {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (g *fakeGraph) CreateEdge(_ context.Context, from, to domain.Identity, rel domain.Relation) (bool, error) {
	if g.createEdgeErr != nil {
		return false, g.createEdgeErr
	}
	if _, ok := g.kinds[from]; !ok {
		return false, nil
	}
	if _, ok := g.kinds[to]; !ok {
		return false, nil
	}
	g.edges = append(g.edges, edge{from: from, to: to, rel: rel})
	return true, nil
}

func (g *fakeGraph) DeleteEdge(_ context.Context, from, to domain.Identity, rel domain.Relation) (bool, error) {
	if g.deleteEdgeErr != nil {
		return false, g.deleteEdgeErr
	}
	for i, e := range g.edges {
		if e.from == from && e.to == to && e.rel == rel {
			g.edges = append(g.edges[:i], g.edges[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (g *fakeGraph) FindEdgeTarget(_ context.Context, from domain.Identity, rel domain.Relation) (domain.Identity, bool, error) {
	if g.findErr != nil {
		return "", false, g.findErr
	}
	for _, e := range g.edges {
		if e.from == from && e.rel == rel {
			return e.to, true, nil
		}
	}
	return "", false, nil
}

func (g *fakeGraph) FindEdgeSource(_ context.Context, to domain.Identity, rel domain.Relation) (domain.Identity, bool, error) {
	if g.findErr != nil {
		return "", false, g.findErr
	}
	for _, e := range g.edges {
		if e.to == to && e.rel == rel {
			return e.from, true, nil
		}
	}
	return "", false, nil
}

func (g *fakeGraph) ListEdgeTargets(_ context.Context, from domain.Identity, rel domain.Relation) ([]domain.Identity, error) {
	if g.listErr != nil {
		return nil, g.listErr
	}
	var ids []domain.Identity
	for _, e := range g.edges {
		if e.from == from && e.rel == rel {
			ids = append(ids, e.to)
		}
	}
	return ids, nil
}

// edgesFor returns every edge touching the identity.
func (g *fakeGraph) edgesFor(id domain.Identity) []edge {
	var out []edge
	for _, e := range g.edges {
		if e.from == id || e.to == id {
			out = append(out, e)
		}
	}
	return out
}

// fakeDocs is an in-memory DocStore with failure injection.
type fakeDocs struct {
	docs  map[string]domain.Attributes
	order []string

	putCalls  int
	failPutAt int // fail on the Nth Put call, 0 = never
	putErr    error
	getCalls  int
	getErr    error
	replErr   error
	delErr    error
	listErr   error
}

func newFakeDocs() *fakeDocs {
	return &fakeDocs{docs: make(map[string]domain.Attributes)}
}

func docsKey(kind domain.Kind, id domain.Identity) string {
	return string(kind) + ":" + string(id)
}

func (d *fakeDocs) Put(_ context.Context, id domain.Identity, attrs domain.Attributes) error {
	d.putCalls++
	if d.putErr != nil {
		return d.putErr
	}
	if d.failPutAt > 0 && d.putCalls == d.failPutAt {
		return fmt.Errorf("injected: %w", domain.ErrStoreUnavailable)
	}
	key := docsKey(attrs.Kind(), id)
	if _, ok := d.docs[key]; !ok {
		d.order = append(d.order, key)
	}
	d.docs[key] = attrs
	return nil
}

func (d *fakeDocs) Get(_ context.Context, kind domain.Kind, id domain.Identity) (domain.Attributes, bool, error) {
	d.getCalls++
	if d.getErr != nil {
		return nil, false, d.getErr
	}
	attrs, ok := d.docs[docsKey(kind, id)]
	return attrs, ok, nil
}

func (d *fakeDocs) Replace(_ context.Context, id domain.Identity, attrs domain.Attributes) (bool, error) {
	if d.replErr != nil {
		return false, d.replErr
	}
	key := docsKey(attrs.Kind(), id)
	if _, ok := d.docs[key]; !ok {
		return false, nil
	}
	d.docs[key] = attrs
	return true, nil
}

func (d *fakeDocs) Delete(_ context.Context, kind domain.Kind, id domain.Identity) (bool, error) {
	if d.delErr != nil {
		return false, d.delErr
	}
	key := docsKey(kind, id)
	if _, ok := d.docs[key]; !ok {
		return false, nil
	}
	delete(d.docs, key)
	return true, nil
}

func (d *fakeDocs) List(_ context.Context, kind domain.Kind) ([]domain.Identity, error) {
	if d.listErr != nil {
		return nil, d.listErr
	}
	prefix := string(kind) + ":"
	var ids []domain.Identity
	for _, key := range d.order {
		if _, live := d.docs[key]; live && len(key) > len(prefix) && key[:len(prefix)] == prefix {
			ids = append(ids, domain.Identity(key[len(prefix):]))
		}
	}
	return ids, nil
}

// newTestService wires a Service over fresh fakes with sequential
// identities id-1, id-2, ...
func newTestService(t *testing.T, opts ...Option) (*Service, *fakeGraph, *fakeDocs) {
	t.Helper()
	fg := newFakeGraph()
	fd := newFakeDocs()
	n := 0
	all := append([]Option{WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	})}, opts...)
	svc := New(fg, fd, slog.New(slog.NewTextHandler(io.Discard, nil)), all...)
	return svc, fg, fd
}
