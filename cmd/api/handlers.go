package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/motorlot/motorlot/engine/domain"
	"github.com/motorlot/motorlot/engine/sync"
)

// entityService is the part of the sync service the handlers call.
type entityService interface {
	CreateEntity(ctx context.Context, attrs domain.Attributes) (domain.Identity, error)
	ReadEntity(ctx context.Context, kind domain.Kind, id domain.Identity) (*domain.Entity, error)
	ListEntities(ctx context.Context, kind domain.Kind) ([]domain.Entity, error)
	UpdateEntity(ctx context.Context, kind domain.Kind, id domain.Identity, attrs domain.Attributes) (bool, error)
	DeleteEntity(ctx context.Context, kind domain.Kind, id domain.Identity) (bool, error)
	ReadCustomerByTaxID(ctx context.Context, taxID string) (*domain.Entity, error)
	ProvisionDealership(ctx context.Context, name string) (domain.Identity, error)
	TransferCar(ctx context.Context, carID, fromDealership, toCustomer domain.Identity) error
	LinkCarToDealership(ctx context.Context, dealershipID, carID domain.Identity) error
	UnlinkCar(ctx context.Context, carID domain.Identity) (bool, error)
	CarAssignment(ctx context.Context, carID domain.Identity) (domain.Assignment, error)
	DealershipStock(ctx context.Context, dealershipID domain.Identity) ([]domain.Identity, error)
}

// statsSource exposes graph-side counts.
type statsSource interface {
	NodeCounts(ctx context.Context) (map[string]int64, error)
	RelationshipCounts(ctx context.Context) (map[string]int64, error)
}

// sweeper runs one reconciliation pass.
type sweeper interface {
	Sweep(ctx context.Context) (sync.Report, error)
}

type apiServer struct {
	svc   entityService
	graph statsSource
	rec   sweeper
	log   *slog.Logger
}

func (a *apiServer) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", handleHealth)

	mux.HandleFunc("POST /api/entities/{kind}", a.handleCreate)
	mux.HandleFunc("GET /api/entities/{kind}", a.handleList)
	mux.HandleFunc("GET /api/entities/{kind}/{id}", a.handleRead)
	mux.HandleFunc("PUT /api/entities/{kind}/{id}", a.handleUpdate)
	mux.HandleFunc("DELETE /api/entities/{kind}/{id}", a.handleDelete)

	mux.HandleFunc("GET /api/customers/by-tax-id", a.handleCustomerByTaxID)

	mux.HandleFunc("POST /api/dealerships/provision", a.handleProvision)
	mux.HandleFunc("GET /api/dealerships/{id}/stock", a.handleStock)

	mux.HandleFunc("POST /api/cars/{id}/transfer", a.handleTransfer)
	mux.HandleFunc("POST /api/cars/{id}/link", a.handleLink)
	mux.HandleFunc("POST /api/cars/{id}/unlink", a.handleUnlink)
	mux.HandleFunc("GET /api/cars/{id}/assignment", a.handleAssignment)

	mux.HandleFunc("GET /api/stats", a.handleStats)
	mux.HandleFunc("POST /api/reconcile", a.handleReconcile)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// writeError maps the domain error taxonomy onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrUnknownKind):
		code = http.StatusBadRequest
	case errors.Is(err, domain.ErrOwnershipMismatch), errors.Is(err, domain.ErrAlreadyAssigned):
		code = http.StatusConflict
	case errors.Is(err, domain.ErrStoreUnavailable):
		code = http.StatusServiceUnavailable
	}
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		code = http.StatusBadRequest
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func notFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
}

// pathKind parses and checks the {kind} path segment.
func pathKind(w http.ResponseWriter, r *http.Request) (domain.Kind, bool) {
	kind := domain.Kind(r.PathValue("kind"))
	if !kind.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown kind " + string(kind)})
		return "", false
	}
	return kind, true
}

// decodeAttrs reads the request body as attributes of the given kind and
// validates them.
func decodeAttrs(w http.ResponseWriter, r *http.Request, kind domain.Kind) (domain.Attributes, bool) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "read request body"})
		return nil, false
	}
	attrs, err := domain.DecodeAttributes(kind, raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return nil, false
	}
	if err := domain.Validate(attrs); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return nil, false
	}
	return attrs, true
}

func (a *apiServer) handleCreate(w http.ResponseWriter, r *http.Request) {
	kind, ok := pathKind(w, r)
	if !ok {
		return
	}
	attrs, ok := decodeAttrs(w, r, kind)
	if !ok {
		return
	}
	id, err := a.svc.CreateEntity(r.Context(), attrs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]domain.Identity{"id": id})
}

func (a *apiServer) handleRead(w http.ResponseWriter, r *http.Request) {
	kind, ok := pathKind(w, r)
	if !ok {
		return
	}
	ent, err := a.svc.ReadEntity(r.Context(), kind, domain.Identity(r.PathValue("id")))
	if err != nil {
		writeError(w, err)
		return
	}
	if ent == nil {
		notFound(w)
		return
	}
	writeJSON(w, http.StatusOK, ent)
}

func (a *apiServer) handleList(w http.ResponseWriter, r *http.Request) {
	kind, ok := pathKind(w, r)
	if !ok {
		return
	}
	ents, err := a.svc.ListEntities(r.Context(), kind)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entities": ents})
}

func (a *apiServer) handleUpdate(w http.ResponseWriter, r *http.Request) {
	kind, ok := pathKind(w, r)
	if !ok {
		return
	}
	attrs, ok := decodeAttrs(w, r, kind)
	if !ok {
		return
	}
	updated, err := a.svc.UpdateEntity(r.Context(), kind, domain.Identity(r.PathValue("id")), attrs)
	if err != nil {
		writeError(w, err)
		return
	}
	if !updated {
		notFound(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *apiServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	kind, ok := pathKind(w, r)
	if !ok {
		return
	}
	removed, err := a.svc.DeleteEntity(r.Context(), kind, domain.Identity(r.PathValue("id")))
	if err != nil {
		writeError(w, err)
		return
	}
	if !removed {
		notFound(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *apiServer) handleCustomerByTaxID(w http.ResponseWriter, r *http.Request) {
	taxID := r.URL.Query().Get("tax_id")
	if taxID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "tax_id is required"})
		return
	}
	ent, err := a.svc.ReadCustomerByTaxID(r.Context(), taxID)
	if err != nil {
		writeError(w, err)
		return
	}
	if ent == nil {
		notFound(w)
		return
	}
	writeJSON(w, http.StatusOK, ent)
}

// ProvisionRequest is the JSON body for POST /api/dealerships/provision.
type ProvisionRequest struct {
	Name string `json:"name"`
}

func (a *apiServer) handleProvision(w http.ResponseWriter, r *http.Request) {
	var req ProvisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	id, err := a.svc.ProvisionDealership(r.Context(), req.Name)
	if err != nil {
		// A mid-seed failure still created the dealership; report both.
		a.log.Error("provision failed", "dealership", id, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": err.Error(),
			"id":    string(id),
		})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": id, "cars": sync.SeedStockSize})
}

func (a *apiServer) handleStock(w http.ResponseWriter, r *http.Request) {
	cars, err := a.svc.DealershipStock(r.Context(), domain.Identity(r.PathValue("id")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cars": cars})
}

// TransferRequest is the JSON body for POST /api/cars/{id}/transfer.
type TransferRequest struct {
	From domain.Identity `json:"from"`
	To   domain.Identity `json:"to"`
}

func (a *apiServer) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.From == "" || req.To == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "from and to are required"})
		return
	}
	if err := a.svc.TransferCar(r.Context(), domain.Identity(r.PathValue("id")), req.From, req.To); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LinkRequest is the JSON body for POST /api/cars/{id}/link.
type LinkRequest struct {
	Dealership domain.Identity `json:"dealership"`
}

func (a *apiServer) handleLink(w http.ResponseWriter, r *http.Request) {
	var req LinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Dealership == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "dealership is required"})
		return
	}
	if err := a.svc.LinkCarToDealership(r.Context(), req.Dealership, domain.Identity(r.PathValue("id"))); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *apiServer) handleUnlink(w http.ResponseWriter, r *http.Request) {
	removed, err := a.svc.UnlinkCar(r.Context(), domain.Identity(r.PathValue("id")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

func (a *apiServer) handleAssignment(w http.ResponseWriter, r *http.Request) {
	asg, err := a.svc.CarAssignment(r.Context(), domain.Identity(r.PathValue("id")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"state":  asg.State.String(),
		"holder": asg.Holder,
	})
}

func (a *apiServer) handleStats(w http.ResponseWriter, r *http.Request) {
	nodes, err := a.graph.NodeCounts(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	rels, err := a.graph.RelationshipCounts(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"nodes": nodes, "relationships": rels})
}

func (a *apiServer) handleReconcile(w http.ResponseWriter, r *http.Request) {
	report, err := a.rec.Sweep(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
