package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/motorlot/motorlot/engine/domain"
	"github.com/motorlot/motorlot/engine/sync"
)

// stubService cans responses for the handler tests.
type stubService struct {
	createID    domain.Identity
	createErr   error
	entity      *domain.Entity
	readErr     error
	entities    []domain.Entity
	updated     bool
	removed     bool
	provisionID domain.Identity
	protoErr    error
	assignment  domain.Assignment
	stock       []domain.Identity
}

func (s *stubService) CreateEntity(context.Context, domain.Attributes) (domain.Identity, error) {
	return s.createID, s.createErr
}
func (s *stubService) ReadEntity(context.Context, domain.Kind, domain.Identity) (*domain.Entity, error) {
	return s.entity, s.readErr
}
func (s *stubService) ListEntities(context.Context, domain.Kind) ([]domain.Entity, error) {
	return s.entities, s.readErr
}
func (s *stubService) UpdateEntity(context.Context, domain.Kind, domain.Identity, domain.Attributes) (bool, error) {
	return s.updated, s.readErr
}
func (s *stubService) DeleteEntity(context.Context, domain.Kind, domain.Identity) (bool, error) {
	return s.removed, s.readErr
}
func (s *stubService) ReadCustomerByTaxID(context.Context, string) (*domain.Entity, error) {
	return s.entity, s.readErr
}
func (s *stubService) ProvisionDealership(context.Context, string) (domain.Identity, error) {
	return s.provisionID, s.protoErr
}
func (s *stubService) TransferCar(context.Context, domain.Identity, domain.Identity, domain.Identity) error {
	return s.protoErr
}
func (s *stubService) LinkCarToDealership(context.Context, domain.Identity, domain.Identity) error {
	return s.protoErr
}
func (s *stubService) UnlinkCar(context.Context, domain.Identity) (bool, error) {
	return s.removed, s.protoErr
}
func (s *stubService) CarAssignment(context.Context, domain.Identity) (domain.Assignment, error) {
	return s.assignment, s.protoErr
}
func (s *stubService) DealershipStock(context.Context, domain.Identity) ([]domain.Identity, error) {
	return s.stock, s.protoErr
}

type stubStats struct {
	nodes, rels map[string]int64
	err         error
}

func (s *stubStats) NodeCounts(context.Context) (map[string]int64, error) { return s.nodes, s.err }
func (s *stubStats) RelationshipCounts(context.Context) (map[string]int64, error) {
	return s.rels, s.err
}

type stubSweeper struct {
	report sync.Report
	err    error
}

func (s *stubSweeper) Sweep(context.Context) (sync.Report, error) { return s.report, s.err }

func newTestMux(svc *stubService, stats *stubStats, rec *stubSweeper) *http.ServeMux {
	if stats == nil {
		stats = &stubStats{}
	}
	if rec == nil {
		rec = &stubSweeper{}
	}
	api := &apiServer{
		svc:   svc,
		graph: stats,
		rec:   rec,
		log:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	mux := http.NewServeMux()
	api.routes(mux)
	return mux
}

func do(t *testing.T, mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = bytes.NewBufferString(body)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, path, rd))
	return rec
}

func TestCreateEntity(t *testing.T) {
	mux := newTestMux(&stubService{createID: "d-1"}, nil, nil)

	rec := do(t, mux, "POST", "/api/entities/dealership", `{"name":"Alpha Motors"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body)
	}
	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp["id"] != "d-1" {
		t.Fatalf("id = %q, want d-1", resp["id"])
	}
}

func TestCreateEntity_UnknownKind(t *testing.T) {
	mux := newTestMux(&stubService{}, nil, nil)

	rec := do(t, mux, "POST", "/api/entities/boat", `{"name":"x"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCreateEntity_InvalidAttributes(t *testing.T) {
	mux := newTestMux(&stubService{}, nil, nil)

	// Year below the floor fails validation before the service is called.
	rec := do(t, mux, "POST", "/api/entities/car",
		`{"model":"Uno","year":1800,"manufacturer":"Fiat","registration":"FT-000000001"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body)
	}
}

func TestCreateEntity_StoreDown(t *testing.T) {
	mux := newTestMux(&stubService{createErr: fmt.Errorf("down: %w", domain.ErrStoreUnavailable)}, nil, nil)

	rec := do(t, mux, "POST", "/api/entities/dealership", `{"name":"Alpha"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestReadEntity(t *testing.T) {
	ent := &domain.Entity{ID: "c-1", Kind: domain.KindCar, Attrs: domain.CarAttrs{Model: "Uno", Year: 2023, Manufacturer: "Fiat", Registration: "FT-000000001"}}
	mux := newTestMux(&stubService{entity: ent}, nil, nil)

	rec := do(t, mux, "GET", "/api/entities/car/c-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got struct {
		ID   domain.Identity `json:"id"`
		Kind domain.Kind     `json:"kind"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.ID != "c-1" || got.Kind != domain.KindCar {
		t.Fatalf("entity = %+v", got)
	}
}

func TestReadEntity_NotFound(t *testing.T) {
	mux := newTestMux(&stubService{entity: nil}, nil, nil)

	rec := do(t, mux, "GET", "/api/entities/car/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestDeleteEntity(t *testing.T) {
	mux := newTestMux(&stubService{removed: true}, nil, nil)
	if rec := do(t, mux, "DELETE", "/api/entities/customer/x", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}

	mux = newTestMux(&stubService{removed: false}, nil, nil)
	if rec := do(t, mux, "DELETE", "/api/entities/customer/x", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for absent entity, got %d", rec.Code)
	}
}

func TestTransfer_Conflicts(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"ownership mismatch", fmt.Errorf("x: %w", domain.ErrOwnershipMismatch), http.StatusConflict},
		{"already assigned", fmt.Errorf("x: %w", domain.ErrAlreadyAssigned), http.StatusConflict},
		{"store down", fmt.Errorf("x: %w", domain.ErrStoreUnavailable), http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mux := newTestMux(&stubService{protoErr: tc.err}, nil, nil)
			rec := do(t, mux, "POST", "/api/cars/c-1/transfer", `{"from":"d-1","to":"u-1"}`)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}
}

func TestTransfer_OK(t *testing.T) {
	mux := newTestMux(&stubService{}, nil, nil)
	rec := do(t, mux, "POST", "/api/cars/c-1/transfer", `{"from":"d-1","to":"u-1"}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body)
	}
}

func TestTransfer_MissingFields(t *testing.T) {
	mux := newTestMux(&stubService{}, nil, nil)
	rec := do(t, mux, "POST", "/api/cars/c-1/transfer", `{"from":"d-1"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestProvision(t *testing.T) {
	mux := newTestMux(&stubService{provisionID: "d-9"}, nil, nil)
	rec := do(t, mux, "POST", "/api/dealerships/provision", `{"name":"Alpha Motors"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var resp struct {
		ID   string `json:"id"`
		Cars int    `json:"cars"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.ID != "d-9" || resp.Cars != sync.SeedStockSize {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestProvision_PartialFailureReportsIdentity(t *testing.T) {
	mux := newTestMux(&stubService{
		provisionID: "d-9",
		protoErr:    fmt.Errorf("seed: %w", domain.ErrStoreUnavailable),
	}, nil, nil)
	rec := do(t, mux, "POST", "/api/dealerships/provision", `{"name":"Alpha"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp["id"] != "d-9" {
		t.Fatalf("partial-failure response lost the dealership id: %+v", resp)
	}
}

func TestAssignment(t *testing.T) {
	mux := newTestMux(&stubService{assignment: domain.Assignment{State: domain.Stocked, Holder: "d-1"}}, nil, nil)
	rec := do(t, mux, "GET", "/api/cars/c-1/assignment", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp["state"] != "stocked" || resp["holder"] != "d-1" {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestUnlink(t *testing.T) {
	mux := newTestMux(&stubService{removed: true}, nil, nil)
	rec := do(t, mux, "POST", "/api/cars/c-1/unlink", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp map[string]bool
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if !resp["removed"] {
		t.Fatal("expected removed true")
	}
}

func TestStats(t *testing.T) {
	mux := newTestMux(&stubService{}, &stubStats{
		nodes: map[string]int64{"Car": 10, "Dealership": 1},
		rels:  map[string]int64{"STOCKS": 10},
	}, nil)
	rec := do(t, mux, "GET", "/api/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Nodes         map[string]int64 `json:"nodes"`
		Relationships map[string]int64 `json:"relationships"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Nodes["Car"] != 10 || resp.Relationships["STOCKS"] != 10 {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestReconcile(t *testing.T) {
	mux := newTestMux(&stubService{}, nil, &stubSweeper{report: sync.Report{
		Checked:     12,
		MissingDocs: []sync.Ref{{ID: "x", Kind: domain.KindCar}},
	}})
	rec := do(t, mux, "POST", "/api/reconcile", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var report sync.Report
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatal(err)
	}
	if report.Checked != 12 || len(report.MissingDocs) != 1 {
		t.Fatalf("report = %+v", report)
	}
	if report.Clean() {
		t.Fatal("report should not be clean")
	}
}

func TestCustomerByTaxID_RequiresParam(t *testing.T) {
	mux := newTestMux(&stubService{}, nil, nil)
	rec := do(t, mux, "GET", "/api/customers/by-tax-id", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
