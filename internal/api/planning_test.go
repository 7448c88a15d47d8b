package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/bynour1/projet-planni/internal/model"
	"github.com/bynour1/projet-planni/internal/pkg/metrics"
	"github.com/bynour1/projet-planni/internal/pkg/realtime"
)

type mockPlanningStore struct {
	planning     model.Planning
	replaceCalls int
}

func (m *mockPlanningStore) Get(ctx context.Context) (model.Planning, error) {
	if m.planning == nil {
		return model.Planning{}, nil
	}
	return m.planning, nil
}

func (m *mockPlanningStore) Replace(ctx context.Context, planning model.Planning) error {
	m.replaceCalls++
	m.planning = planning
	return nil
}

func newTestServer(plannings *mockPlanningStore) *Server {
	gin.SetMode(gin.TestMode)
	metrics.InitMetrics()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &Server{
		logger:    logger,
		hub:       realtime.NewHub(logger),
		plannings: plannings,
	}
}

func doPlanningJSON(t *testing.T, s *Server, register func(*gin.Engine, *Server), method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	r := gin.New()
	register(r, s)
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAddPlanningEvent(t *testing.T) {
	plannings := &mockPlanningStore{}
	s := newTestServer(plannings)

	w := doPlanningJSON(t, s, func(r *gin.Engine, s *Server) { r.POST("/planning/event", s.handleAddPlanningEvent) },
		http.MethodPost, "/planning/event",
		gin.H{"jour": "2026-09-01", "event": gin.H{"medecin": "Dr Dupont", "heureDebut": "08:00", "heureFin": "12:00"}})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if plannings.replaceCalls != 1 {
		t.Fatalf("expected planning to be saved")
	}
	if len(plannings.planning["2026-09-01"]) != 1 {
		t.Fatalf("expected one event on the day")
	}
}

func TestUpdatePlanningEvent_BadIndex(t *testing.T) {
	plannings := &mockPlanningStore{
		planning: model.Planning{"2026-09-01": {{Medecin: "Dr Dupont"}}},
	}
	s := newTestServer(plannings)

	w := doPlanningJSON(t, s, func(r *gin.Engine, s *Server) { r.PUT("/planning/event", s.handleUpdatePlanningEvent) },
		http.MethodPut, "/planning/event",
		gin.H{"jour": "2026-09-01", "index": 5, "event": gin.H{"medecin": "Dr Curie"}})

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for out-of-range index, got %d", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("Événement non trouvé")) {
		t.Fatalf("expected not-found message, got %s", w.Body.String())
	}
	if plannings.replaceCalls != 0 {
		t.Fatalf("planning must not be saved on bad index")
	}
}

func TestDeletePlanningEvent_RemovesEmptyDay(t *testing.T) {
	plannings := &mockPlanningStore{
		planning: model.Planning{"2026-09-01": {{Medecin: "Dr Dupont"}}},
	}
	s := newTestServer(plannings)

	w := doPlanningJSON(t, s, func(r *gin.Engine, s *Server) { r.DELETE("/planning/event", s.handleDeletePlanningEvent) },
		http.MethodDelete, "/planning/event", gin.H{"jour": "2026-09-01", "index": 0})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if _, ok := plannings.planning["2026-09-01"]; ok {
		t.Fatalf("expected day to disappear once empty")
	}
}

func TestReplacePlanning(t *testing.T) {
	plannings := &mockPlanningStore{
		planning: model.Planning{"2026-09-01": {{Medecin: "Dr Dupont"}}},
	}
	s := newTestServer(plannings)

	w := doPlanningJSON(t, s, func(r *gin.Engine, s *Server) { r.POST("/planning/replace", s.handleReplacePlanning) },
		http.MethodPost, "/planning/replace",
		gin.H{"planning": gin.H{"2026-09-02": []gin.H{{"medecin": "Dr Curie"}}}})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(plannings.planning["2026-09-02"]) != 1 {
		t.Fatalf("expected replacement planning to be saved")
	}
	if _, ok := plannings.planning["2026-09-01"]; ok {
		t.Fatalf("old planning must be gone after replace")
	}
}
