package sinks

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"blockworld/mobs/logging"
)

func TestConsoleSinkFormatsLine(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsoleSink(&buf)
	err := sink.Write(logging.Event{
		Type:     "combat.attack",
		Tick:     12,
		Actor:    logging.MobRef("zombie-1", "zombie"),
		Targets:  []logging.EntityRef{logging.PlayerRef("p1")},
		Severity: logging.SeverityInfo,
		Payload:  map[string]int{"damage": 3},
	})
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}
	line := buf.String()
	for _, want := range []string{"[combat.attack]", "tick=12", "actor=zombie:zombie-1", "targets=player:p1", `payload={"damage":3}`, "severity=info"} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %q", want, line)
		}
	}
}

func TestJSONSinkWritesOneObjectPerLine(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSON(&buf, 0)
	sink.Write(logging.Event{Type: "lifecycle.spawned", Tick: 1})
	sink.Write(logging.Event{Type: "lifecycle.despawned", Tick: 2})
	if err := sink.Close(context.Background()); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var decoded logging.Event
	if err := json.Unmarshal([]byte(lines[1]), &decoded); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded.Type != "lifecycle.despawned" || decoded.Tick != 2 {
		t.Fatalf("unexpected event %+v", decoded)
	}
}

func TestMemorySinkFiltersByType(t *testing.T) {
	sink := NewMemorySink()
	sink.Publish(context.Background(), logging.Event{Type: "a"})
	sink.Publish(context.Background(), logging.Event{Type: "b"})
	sink.Publish(context.Background(), logging.Event{Type: "a"})
	if got := len(sink.OfType("a")); got != 2 {
		t.Fatalf("expected 2 events of type a, got %d", got)
	}
	sink.Reset()
	if len(sink.Events()) != 0 {
		t.Fatalf("expected reset to clear events")
	}
}

func TestMemorySinkKeepsOwnCopy(t *testing.T) {
	sink := NewMemorySink()
	targets := []logging.EntityRef{logging.PlayerRef("p1")}
	extra := map[string]any{"state": "idle"}
	if err := sink.Write(logging.Event{Type: "a", Targets: targets, Extra: extra}); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	targets[0] = logging.PlayerRef("p2")
	extra["state"] = "flee"
	extra["added"] = true

	stored := sink.Events()[0]
	if stored.Targets[0].ID != "p1" {
		t.Fatalf("expected stored targets untouched, got %+v", stored.Targets)
	}
	if stored.Extra["state"] != "idle" || len(stored.Extra) != 1 {
		t.Fatalf("expected stored extra untouched, got %v", stored.Extra)
	}
}
