package net

import (
	"encoding/json"
	"io"
	nethttp "net/http"
	"strings"
	"time"

	"blockworld/mobs/internal/ai"
	"blockworld/mobs/internal/geom"
	"blockworld/mobs/internal/net/ws"
	"blockworld/mobs/internal/sim"
	"blockworld/mobs/internal/telemetry"
	"blockworld/mobs/logging"
)

// httpActorID attributes commands submitted over plain HTTP.
const httpActorID = "http"

// Simulation is the engine surface exposed over HTTP.
type Simulation interface {
	ws.CommandSink
	Config() sim.Config
	MobCount() int
	Pending() int
	Snapshot() (uint64, []ai.Snapshot)
	Mob(id string) (ai.Snapshot, bool)
}

type HTTPHandlerConfig struct {
	Logger      telemetry.Logger
	EventsPath  string
	Broadcaster *ws.Broadcaster
	RouterStats func() logging.RouterStats
}

type spawnRequest struct {
	Species    string     `json:"species"`
	Position   [3]float64 `json:"position"`
	Baby       bool       `json:"baby"`
	Variant    string     `json:"variant"`
	Persistent bool       `json:"persistent"`
}

func NewHTTPHandler(engine Simulation, cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.LoggerFunc(func(string, ...any) {})
	}
	eventsPath := cfg.EventsPath
	if eventsPath == "" {
		eventsPath = "/events"
	}

	events := ws.NewHandler(engine, ws.HandlerConfig{Logger: logger, Broadcaster: cfg.Broadcaster})

	mux := nethttp.NewServeMux()

	mux.HandleFunc(eventsPath, events.Handle)

	mux.HandleFunc("/health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		payload := struct {
			Status     string `json:"status"`
			ServerTime int64  `json:"serverTime"`
			Tick       uint64 `json:"tick"`
			TickRate   int    `json:"tickRate"`
			Mobs       int    `json:"mobs"`
			Pending    int    `json:"pendingCommands"`
			Clients    int    `json:"eventClients"`
			Events     any    `json:"events,omitempty"`
		}{
			Status:     "ok",
			ServerTime: time.Now().UnixMilli(),
			Tick:       engine.Tick(),
			TickRate:   engine.Config().TickRate,
			Mobs:       engine.MobCount(),
			Pending:    engine.Pending(),
			Clients:    events.Broadcaster().Clients(),
		}
		if cfg.RouterStats != nil {
			payload.Events = cfg.RouterStats()
		}
		writeJSON(w, nethttp.StatusOK, payload)
	})

	mux.HandleFunc("/mobs", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		switch r.Method {
		case nethttp.MethodGet:
			tick, mobs := engine.Snapshot()
			species := r.URL.Query().Get("species")
			if species != "" {
				filtered := mobs[:0]
				for _, m := range mobs {
					if strings.EqualFold(m.Species, species) {
						filtered = append(filtered, m)
					}
				}
				mobs = filtered
			}
			writeJSON(w, nethttp.StatusOK, struct {
				Tick uint64        `json:"tick"`
				Mobs []ai.Snapshot `json:"mobs"`
			}{Tick: tick, Mobs: mobs})
		case nethttp.MethodPost:
			if r.Body == nil {
				httpError(w, "invalid payload", nethttp.StatusBadRequest)
				return
			}
			defer r.Body.Close()
			var req spawnRequest
			if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil {
				httpError(w, "invalid payload", nethttp.StatusBadRequest)
				return
			}
			if req.Species == "" {
				httpError(w, "species is required", nethttp.StatusBadRequest)
				return
			}
			ok, reason := engine.Enqueue(sim.Command{
				OriginTick: engine.Tick(),
				ActorID:    httpActorID,
				Type:       sim.CommandSpawn,
				Spawn: &sim.SpawnCommand{
					Species:    req.Species,
					Position:   geom.Vec3(req.Position),
					Baby:       req.Baby,
					Variant:    req.Variant,
					Persistent: req.Persistent,
				},
			})
			if !ok {
				logger.Printf("[http] spawn %s rejected: %s", req.Species, reason)
				httpError(w, reason, nethttp.StatusTooManyRequests)
				return
			}
			writeJSON(w, nethttp.StatusAccepted, struct {
				Status string `json:"status"`
			}{Status: "queued"})
		default:
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("GET /mobs/{id}", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		snap, ok := engine.Mob(r.PathValue("id"))
		if !ok {
			httpError(w, "unknown mob", nethttp.StatusNotFound)
			return
		}
		writeJSON(w, nethttp.StatusOK, snap)
	})

	return mux
}

func writeJSON(w nethttp.ResponseWriter, status int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		httpError(w, "failed to encode", nethttp.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func httpError(w nethttp.ResponseWriter, message string, status int) {
	nethttp.Error(w, message, status)
}
