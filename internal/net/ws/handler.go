package ws

import (
	"encoding/json"
	nethttp "net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"blockworld/mobs/internal/geom"
	"blockworld/mobs/internal/sim"
	"blockworld/mobs/internal/status"
	"blockworld/mobs/internal/telemetry"
	"blockworld/mobs/logging"
)

// ProtocolVersion is stamped on every server message.
const ProtocolVersion = 1

// Command rejection reasons raised by the handler itself. Queue throttling
// reasons come from sim.
const (
	CommandRejectObserver = "observer"
	CommandRejectInvalid  = "invalid"
)

// CommandSink accepts commands for the next simulation step.
type CommandSink interface {
	Enqueue(cmd sim.Command) (bool, string)
	Tick() uint64
}

type HandlerConfig struct {
	Logger      telemetry.Logger
	Broadcaster *Broadcaster
}

type Handler struct {
	commands CommandSink
	events   *Broadcaster
	logger   telemetry.Logger
	upgrader websocket.Upgrader
}

func NewHandler(commands CommandSink, cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.LoggerFunc(func(string, ...any) {})
	}
	events := cfg.Broadcaster
	if events == nil {
		events = NewBroadcaster(0, logger)
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *nethttp.Request) bool {
			return true
		},
	}

	return &Handler{
		commands: commands,
		events:   events,
		logger:   logger,
		upgrader: upgrader,
	}
}

// Broadcaster returns the sink that feeds connected clients.
func (h *Handler) Broadcaster() *Broadcaster {
	return h.events
}

// Handle upgrades the request and streams events until the client leaves.
// Clients that pass ?id= act as that player and may send commands; others
// only observe. ?category= limits the stream to a comma separated list.
func (h *Handler) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	query := r.URL.Query()
	playerID := strings.TrimSpace(query.Get("id"))
	categories := parseCategories(query.Get("category"))

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("[ws] upgrade failed for %q: %v", playerID, err)
		return
	}

	c := &client{id: playerID, conn: conn, categories: categories}
	if c.id == "" {
		c.id = r.RemoteAddr
	}

	hello := helloMessage{Ver: ProtocolVersion, Type: "hello", ID: playerID, Tick: h.tick()}
	if !h.writeJSON(c, hello) {
		c.close()
		return
	}
	h.events.add(c)

	session := &session{handler: h, client: c, playerID: playerID}
	session.run()
}

func (h *Handler) tick() uint64 {
	if h.commands == nil {
		return 0
	}
	return h.commands.Tick()
}

func (h *Handler) writeJSON(c *client, payload any) bool {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Printf("[ws] failed to marshal message for %s: %v", c.id, err)
		return true
	}
	return c.write(websocket.TextMessage, data, h.events.writeTimeout) == nil
}

func parseCategories(raw string) map[string]struct{} {
	if raw == "" {
		return nil
	}
	out := make(map[string]struct{})
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out[part] = struct{}{}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// session owns the read loop of one connection.
type session struct {
	handler  *Handler
	client   *client
	playerID string
	lastSeq  uint64
}

func (s *session) run() {
	h := s.handler
	defer s.disconnect()
	for {
		_, payload, err := s.client.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			h.logger.Printf("[ws] discarding malformed message from %s: %v", s.client.id, err)
			continue
		}

		if msg.Type == "heartbeat" {
			now := time.Now()
			ack := heartbeatMessage{Ver: ProtocolVersion, Type: "heartbeat", ServerTime: now.UnixMilli(), ClientTime: msg.SentAt}
			if !h.writeJSON(s.client, ack) {
				return
			}
			continue
		}

		seq := uint64(0)
		if msg.Seq != nil {
			seq = *msg.Seq
		}
		if seq > 0 && s.lastSeq > 0 && seq <= s.lastSeq {
			if !h.writeJSON(s.client, commandAckMessage{Ver: ProtocolVersion, Type: "commandAck", Seq: seq}) {
				return
			}
			continue
		}

		cmd, reason := s.command(msg)
		ok := reason == ""
		if ok {
			if h.commands == nil {
				ok, reason = false, CommandRejectObserver
			} else {
				ok, reason = h.commands.Enqueue(cmd)
			}
		}
		if reason == CommandRejectInvalid {
			h.logger.Printf("[ws] invalid %q message from %s", msg.Type, s.client.id)
		}
		if seq == 0 {
			continue
		}
		if ok {
			s.lastSeq = seq
			if !h.writeJSON(s.client, commandAckMessage{Ver: ProtocolVersion, Type: "commandAck", Seq: seq, Tick: h.tick()}) {
				return
			}
			continue
		}
		reject := commandRejectMessage{
			Ver:    ProtocolVersion,
			Type:   "commandReject",
			Seq:    seq,
			Reason: reason,
			Retry:  reason == sim.CommandRejectQueueLimit,
		}
		if !h.writeJSON(s.client, reject) {
			return
		}
	}
}

// command translates a client message. A non-empty reason rejects it.
func (s *session) command(msg clientMessage) (sim.Command, string) {
	if s.playerID == "" {
		return sim.Command{}, CommandRejectObserver
	}
	cmd := sim.Command{ActorID: s.playerID, OriginTick: s.handler.tick()}
	switch msg.Type {
	case "player":
		if msg.Position == nil {
			return cmd, CommandRejectInvalid
		}
		cmd.Type = sim.CommandPlayerUpdate
		cmd.Player = &sim.PlayerCommand{Position: geom.Vec3(*msg.Position), Health: msg.Health, MaxHealth: msg.MaxHealth}
	case "leave":
		cmd.Type = sim.CommandPlayerLeave
	case "damage":
		if msg.Target == "" {
			return cmd, CommandRejectInvalid
		}
		cmd.Type = sim.CommandDamage
		cmd.Damage = &sim.DamageCommand{TargetID: msg.Target, Amount: msg.Amount}
	case "feed":
		if msg.Target == "" || msg.Item == "" {
			return cmd, CommandRejectInvalid
		}
		cmd.Type = sim.CommandFeed
		cmd.Feed = &sim.FeedCommand{TargetID: msg.Target, Item: msg.Item}
	case "sit":
		if msg.Target == "" {
			return cmd, CommandRejectInvalid
		}
		cmd.Type = sim.CommandSit
		cmd.Sit = &sim.SitCommand{TargetID: msg.Target, Sit: msg.Sit}
	case "effect":
		if msg.Target == "" || msg.Effect == nil {
			return cmd, CommandRejectInvalid
		}
		cmd.Type = sim.CommandEffect
		cmd.Effect = &sim.EffectCommand{TargetID: msg.Target, Effect: *msg.Effect}
	case "spawn":
		if msg.Species == "" || msg.Position == nil {
			return cmd, CommandRejectInvalid
		}
		cmd.Type = sim.CommandSpawn
		cmd.Spawn = &sim.SpawnCommand{
			Species:    msg.Species,
			Position:   geom.Vec3(*msg.Position),
			Baby:       msg.Baby,
			Variant:    msg.Variant,
			Persistent: msg.Persistent,
		}
	default:
		return cmd, CommandRejectInvalid
	}
	return cmd, ""
}

func (s *session) disconnect() {
	s.handler.events.drop(s.client)
	if s.playerID == "" || s.handler.commands == nil {
		return
	}
	s.handler.commands.Enqueue(sim.Command{ActorID: s.playerID, Type: sim.CommandPlayerLeave})
}

type clientMessage struct {
	Ver        int            `json:"ver,omitempty"`
	Type       string         `json:"type"`
	Seq        *uint64        `json:"seq,omitempty"`
	SentAt     int64          `json:"sentAt,omitempty"`
	Position   *[3]float64    `json:"position,omitempty"`
	Health     float64        `json:"health,omitempty"`
	MaxHealth  float64        `json:"maxHealth,omitempty"`
	Target     string         `json:"target,omitempty"`
	Amount     float64        `json:"amount,omitempty"`
	Item       string         `json:"item,omitempty"`
	Sit        bool           `json:"sit,omitempty"`
	Effect     *status.Effect `json:"effect,omitempty"`
	Species    string         `json:"species,omitempty"`
	Baby       bool           `json:"baby,omitempty"`
	Variant    string         `json:"variant,omitempty"`
	Persistent bool           `json:"persistent,omitempty"`
}

type helloMessage struct {
	Ver  int    `json:"ver"`
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
	Tick uint64 `json:"tick"`
}

type eventMessage struct {
	Ver   int           `json:"ver"`
	Type  string        `json:"type"`
	Event logging.Event `json:"event"`
}

type commandAckMessage struct {
	Ver  int    `json:"ver"`
	Type string `json:"type"`
	Seq  uint64 `json:"seq"`
	Tick uint64 `json:"tick,omitempty"`
}

type commandRejectMessage struct {
	Ver    int    `json:"ver"`
	Type   string `json:"type"`
	Seq    uint64 `json:"seq"`
	Reason string `json:"reason"`
	Retry  bool   `json:"retry,omitempty"`
}

type heartbeatMessage struct {
	Ver        int    `json:"ver"`
	Type       string `json:"type"`
	ServerTime int64  `json:"serverTime"`
	ClientTime int64  `json:"clientTime"`
}
