package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blockworld/mobs/internal/sim"
	"blockworld/mobs/logging"
)

type recordingSink struct {
	mu       sync.Mutex
	commands []sim.Command
	reject   string
	tick     uint64
}

func (s *recordingSink) Enqueue(cmd sim.Command) (bool, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reject != "" {
		return false, s.reject
	}
	s.commands = append(s.commands, cmd)
	return true, ""
}

func (s *recordingSink) Tick() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tick
}

func (s *recordingSink) recorded() []sim.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sim.Command(nil), s.commands...)
}

func (s *recordingSink) setReject(reason string) {
	s.mu.Lock()
	s.reject = reason
	s.mu.Unlock()
}

func startServer(t *testing.T, commands CommandSink) (*Handler, *httptest.Server) {
	t.Helper()
	handler := NewHandler(commands, HandlerConfig{})
	srv := httptest.NewServer(http.HandlerFunc(handler.Handle))
	t.Cleanup(srv.Close)
	return handler, srv
}

func dial(t *testing.T, baseURL string, params map[string]string) *websocket.Conn {
	t.Helper()
	parsed, err := url.Parse(baseURL)
	require.NoError(t, err)
	parsed.Scheme = "ws"
	parsed.Path = "/"
	query := parsed.Query()
	for k, v := range params {
		query.Set(k, v)
	}
	parsed.RawQuery = query.Encode()

	conn, resp, err := websocket.DefaultDialer.Dial(parsed.String(), nil)
	if resp != nil {
		resp.Body.Close()
	}
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	var frame map[string]any
	require.NoError(t, json.Unmarshal(payload, &frame))
	return frame
}

func send(t *testing.T, conn *websocket.Conn, msg map[string]any) {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

func TestObserverReceivesFilteredEvents(t *testing.T) {
	commands := &recordingSink{tick: 7}
	handler, srv := startServer(t, commands)
	conn := dial(t, srv.URL, map[string]string{"category": "combat"})

	hello := readFrame(t, conn)
	assert.Equal(t, "hello", hello["type"])
	assert.Equal(t, float64(7), hello["tick"])

	events := handler.Broadcaster()
	require.Eventually(t, func() bool { return events.Clients() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, events.Write(logging.Event{Type: "behavior.sound", Category: logging.CategoryBehavior}))
	require.NoError(t, events.Write(logging.Event{
		Type:     "combat.damage",
		Tick:     8,
		Category: logging.CategoryCombat,
		Actor:    logging.MobRef("zombie-1", "zombie"),
	}))

	frame := readFrame(t, conn)
	assert.Equal(t, "event", frame["type"])
	event, ok := frame["event"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "combat.damage", event["type"])
	assert.Equal(t, float64(8), event["tick"])
}

func TestPlayerCommandsAreAcknowledged(t *testing.T) {
	commands := &recordingSink{tick: 3}
	_, srv := startServer(t, commands)
	conn := dial(t, srv.URL, map[string]string{"id": "p1"})
	readFrame(t, conn)

	send(t, conn, map[string]any{"type": "feed", "seq": 1, "target": "cow-1", "item": "wheat"})
	ack := readFrame(t, conn)
	assert.Equal(t, "commandAck", ack["type"])
	assert.Equal(t, float64(1), ack["seq"])
	assert.Equal(t, float64(3), ack["tick"])

	send(t, conn, map[string]any{"type": "feed", "seq": 1, "target": "cow-1", "item": "wheat"})
	dup := readFrame(t, conn)
	assert.Equal(t, "commandAck", dup["type"])

	send(t, conn, map[string]any{"type": "player", "seq": 2, "position": []float64{1, 64, 2}, "health": 15})
	readFrame(t, conn)

	send(t, conn, map[string]any{"type": "dance", "seq": 3})
	reject := readFrame(t, conn)
	assert.Equal(t, "commandReject", reject["type"])
	assert.Equal(t, CommandRejectInvalid, reject["reason"])

	commands.setReject(sim.CommandRejectQueueLimit)
	send(t, conn, map[string]any{"type": "damage", "seq": 4, "target": "cow-1", "amount": 3})
	throttled := readFrame(t, conn)
	assert.Equal(t, "commandReject", throttled["type"])
	assert.Equal(t, true, throttled["retry"])

	recorded := commands.recorded()
	require.Len(t, recorded, 2)
	assert.Equal(t, sim.CommandFeed, recorded[0].Type)
	assert.Equal(t, "p1", recorded[0].ActorID)
	assert.Equal(t, "wheat", recorded[0].Feed.Item)
	assert.Equal(t, sim.CommandPlayerUpdate, recorded[1].Type)
	assert.Equal(t, 15.0, recorded[1].Player.Health)
	assert.Equal(t, 64.0, recorded[1].Player.Position.Y())
}

func TestObserverCannotCommand(t *testing.T) {
	commands := &recordingSink{}
	_, srv := startServer(t, commands)
	conn := dial(t, srv.URL, nil)
	readFrame(t, conn)

	send(t, conn, map[string]any{"type": "damage", "seq": 1, "target": "cow-1", "amount": 3})
	reject := readFrame(t, conn)
	assert.Equal(t, CommandRejectObserver, reject["reason"])
	assert.Empty(t, commands.recorded())
}

func TestDisconnectRemovesClientAndPlayer(t *testing.T) {
	commands := &recordingSink{}
	handler, srv := startServer(t, commands)
	conn := dial(t, srv.URL, map[string]string{"id": "p1"})
	readFrame(t, conn)
	require.Eventually(t, func() bool { return handler.Broadcaster().Clients() == 1 }, time.Second, 10*time.Millisecond)

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()

	require.Eventually(t, func() bool { return handler.Broadcaster().Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		for _, cmd := range commands.recorded() {
			if cmd.Type == sim.CommandPlayerLeave && cmd.ActorID == "p1" {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func TestBroadcasterCloseDisconnectsClients(t *testing.T) {
	handler, srv := startServer(t, &recordingSink{})
	conn := dial(t, srv.URL, nil)
	readFrame(t, conn)
	require.Eventually(t, func() bool { return handler.Broadcaster().Clients() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, handler.Broadcaster().Close(context.Background()))
	assert.Equal(t, 0, handler.Broadcaster().Clients())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "expected going-away close, got %v", err)
}

func TestParseCategories(t *testing.T) {
	assert.Nil(t, parseCategories(""))
	assert.Nil(t, parseCategories(" , "))
	assert.Equal(t, map[string]struct{}{"combat": {}, "lifecycle": {}}, parseCategories("combat, lifecycle"))
}
