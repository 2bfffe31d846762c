package sync

import (
	"context"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/motorlot/motorlot/engine/domain"
	"github.com/motorlot/motorlot/pkg/fn"
)

// Ref names one divergent identity in a reconciliation report.
type Ref struct {
	ID   domain.Identity `json:"id"`
	Kind domain.Kind     `json:"kind"`
}

// Report summarizes one reconciliation sweep.
type Report struct {
	Checked      int   `json:"checked"`
	MissingDocs  []Ref `json:"missing_docs"`  // graph node without a document
	MissingNodes []Ref `json:"missing_nodes"` // document without a graph node
}

// Clean reports whether the sweep found no divergence.
func (r Report) Clean() bool {
	return len(r.MissingDocs) == 0 && len(r.MissingNodes) == 0
}

// Reconciler sweeps both stores looking for identities that exist on one
// side only. It detects divergence and reports it; it never heals.
type Reconciler struct {
	graph   GraphStore
	docs    DocStore
	log     *slog.Logger
	limiter *rate.Limiter
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithSweepRate caps store lookups per second during a sweep.
func WithSweepRate(perSecond float64, burst int) ReconcilerOption {
	return func(r *Reconciler) { r.limiter = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

// NewReconciler creates a Reconciler over the same adapters the Service
// uses.
func NewReconciler(graph GraphStore, docs DocStore, log *slog.Logger, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		graph:   graph,
		docs:    docs,
		log:     log,
		limiter: rate.NewLimiter(rate.Inf, 1),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Sweep checks every identity of every kind in both directions. Store
// failures abort the sweep; divergence never does.
func (r *Reconciler) Sweep(ctx context.Context) (Report, error) {
	var report Report

	for _, kind := range domain.Kinds {
		if err := r.limiter.Wait(ctx); err != nil {
			return report, err
		}
		nodeIDs, err := r.graph.ListNodes(ctx, kind)
		if err != nil {
			return report, err
		}

		inGraph := make(map[domain.Identity]bool, len(nodeIDs))
		for _, id := range nodeIDs {
			inGraph[id] = true
			if err := r.limiter.Wait(ctx); err != nil {
				return report, err
			}
			_, ok, err := r.docs.Get(ctx, kind, id)
			if err != nil {
				return report, err
			}
			report.Checked++
			if !ok {
				report.MissingDocs = append(report.MissingDocs, Ref{ID: id, Kind: kind})
				r.log.Warn("reconcile: node without document", "kind", kind, "id", id)
			}
		}

		if err := r.limiter.Wait(ctx); err != nil {
			return report, err
		}
		docIDs, err := r.docs.List(ctx, kind)
		if err != nil {
			return report, err
		}
		orphans := fn.Filter(docIDs, func(id domain.Identity) bool { return !inGraph[id] })
		for _, id := range orphans {
			r.log.Warn("reconcile: document without node", "kind", kind, "id", id)
		}
		report.Checked += len(orphans)
		report.MissingNodes = append(report.MissingNodes, fn.Map(orphans, func(id domain.Identity) Ref {
			return Ref{ID: id, Kind: kind}
		})...)
	}

	r.log.Info("reconciliation sweep done",
		"checked", report.Checked,
		"missing_docs", len(report.MissingDocs),
		"missing_nodes", len(report.MissingNodes),
	)
	return report, nil
}
