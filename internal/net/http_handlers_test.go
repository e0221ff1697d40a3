package net

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"blockworld/mobs/internal/ai"
	"blockworld/mobs/internal/geom"
	"blockworld/mobs/internal/sim"
	"blockworld/mobs/internal/world"
	"blockworld/mobs/logging"
)

func newTestEngine(t *testing.T) *sim.Engine {
	t.Helper()
	engine := sim.NewEngine(sim.DefaultConfig(), sim.Deps{Library: ai.GlobalLibrary, World: world.NewMemory()})
	for _, spawn := range []struct {
		species string
		pos     geom.Vec3
	}{
		{"cow", geom.Vec3{1, 0, 1}},
		{"zombie", geom.Vec3{10, 0, 10}},
	} {
		if _, err := engine.Spawn(spawn.species, spawn.pos, world.SpawnOptions{}); err != nil {
			t.Fatalf("spawn %s: %v", spawn.species, err)
		}
	}
	return engine
}

func serve(handler http.Handler, method, target string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	return resp
}

func TestHTTPHealth(t *testing.T) {
	handler := NewHTTPHandler(newTestEngine(t), HTTPHandlerConfig{})
	resp := serve(handler, http.MethodGet, "/health", nil)
	if resp.Code != http.StatusOK || resp.Body.String() != "ok" {
		t.Fatalf("expected ok health response, got %d %q", resp.Code, resp.Body.String())
	}
}

func TestHTTPDiagnosticsReportsEngineState(t *testing.T) {
	engine := newTestEngine(t)
	engine.Step(0.05)
	handler := NewHTTPHandler(engine, HTTPHandlerConfig{
		RouterStats: func() logging.RouterStats { return logging.RouterStats{EventsTotal: 12} },
	})

	resp := serve(handler, http.MethodGet, "/diagnostics", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200 OK, got %d", resp.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode diagnostics: %v", err)
	}
	if payload["tick"] != float64(1) || payload["mobs"] != float64(2) || payload["tickRate"] != float64(20) {
		t.Fatalf("unexpected diagnostics payload: %v", payload)
	}
	if _, ok := payload["events"].(map[string]any); !ok {
		t.Fatalf("expected router stats in diagnostics, got %v", payload["events"])
	}
}

func TestHTTPListsAndFiltersMobs(t *testing.T) {
	handler := NewHTTPHandler(newTestEngine(t), HTTPHandlerConfig{})

	var all struct {
		Mobs []ai.Snapshot `json:"mobs"`
	}
	resp := serve(handler, http.MethodGet, "/mobs", nil)
	if err := json.Unmarshal(resp.Body.Bytes(), &all); err != nil {
		t.Fatalf("failed to decode mobs: %v", err)
	}
	if len(all.Mobs) != 2 {
		t.Fatalf("expected two mobs, got %d", len(all.Mobs))
	}

	var filtered struct {
		Mobs []ai.Snapshot `json:"mobs"`
	}
	resp = serve(handler, http.MethodGet, "/mobs?species=ZOMBIE", nil)
	if err := json.Unmarshal(resp.Body.Bytes(), &filtered); err != nil {
		t.Fatalf("failed to decode filtered mobs: %v", err)
	}
	if len(filtered.Mobs) != 1 || filtered.Mobs[0].Species != "zombie" {
		t.Fatalf("expected only the zombie, got %+v", filtered.Mobs)
	}

	resp = serve(handler, http.MethodGet, "/mobs/"+filtered.Mobs[0].ID, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected mob lookup to succeed, got %d", resp.Code)
	}
	resp = serve(handler, http.MethodGet, "/mobs/nobody", nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown mob, got %d", resp.Code)
	}
}

func TestHTTPSpawnQueuesCommand(t *testing.T) {
	engine := newTestEngine(t)
	handler := NewHTTPHandler(engine, HTTPHandlerConfig{})

	body := []byte(`{"species":"wolf","position":[3,0,-2],"variant":"ashen","persistent":true}`)
	resp := serve(handler, http.MethodPost, "/mobs", body)
	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202 Accepted, got %d: %s", resp.Code, resp.Body.String())
	}
	if engine.Pending() != 1 {
		t.Fatalf("expected one pending command, got %d", engine.Pending())
	}

	result := engine.Step(0.05)
	if len(result.Spawned) != 1 {
		t.Fatalf("expected the queued spawn to run, got %+v", result.Spawned)
	}
	wolf, ok := engine.Mob(result.Spawned[0])
	if !ok || wolf.Variant != "ashen" || !wolf.Persistent {
		t.Fatalf("unexpected spawned wolf %+v", wolf)
	}

	for _, bad := range [][]byte{[]byte(`{`), []byte(`{"position":[0,0,0]}`)} {
		if resp := serve(handler, http.MethodPost, "/mobs", bad); resp.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for %s, got %d", bad, resp.Code)
		}
	}
	if resp := serve(handler, http.MethodDelete, "/mobs", nil); resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.Code)
	}
}
