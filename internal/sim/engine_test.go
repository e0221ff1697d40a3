package sim

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"blockworld/mobs/internal/ai"
	"blockworld/mobs/internal/geom"
	"blockworld/mobs/internal/status"
	"blockworld/mobs/internal/world"
	"blockworld/mobs/logging/lifecycle"
	"blockworld/mobs/logging/sinks"
)

func testLibrary(t *testing.T) *ai.Library {
	t.Helper()
	lib := ai.NewLibrary()
	configs := []ai.SpeciesConfig{
		{
			Name:     "grazer",
			Health:   10,
			Variants: []string{"brown", "white"},
			Breeding: &ai.BreedingConfig{Foods: []string{"wheat"}, GrowUpTime: 5},
		},
		{
			Name:    "drifter",
			Health:  10,
			Despawn: ai.DespawnConfig{Enabled: true, Distance: 16},
		},
		{
			Name:    "brute",
			Hostile: true,
			Health:  5,
			Attack:  ai.AttackConfig{Damage: 2},
			Targeting: ai.TargetingConfig{
				Targets: []string{ai.TargetPlayer},
			},
		},
	}
	for _, cfg := range configs {
		if _, err := lib.Register(cfg); err != nil {
			t.Fatalf("register %s: %v", cfg.Name, err)
		}
	}
	return lib
}

func newTestEngine(t *testing.T, cfg Config) (*Engine, *world.Memory, *sinks.MemorySink) {
	t.Helper()
	w := world.NewMemory()
	events := sinks.NewMemorySink()
	return NewEngine(cfg, Deps{Library: testLibrary(t), World: w, Publisher: events}), w, events
}

func mustSpawn(t *testing.T, e *Engine, species string, pos geom.Vec3, opts world.SpawnOptions) string {
	t.Helper()
	id, err := e.Spawn(species, pos, opts)
	if err != nil {
		t.Fatalf("spawn %s: %v", species, err)
	}
	return id
}

func TestBreedingThroughEngineSpawnsOneJuvenile(t *testing.T) {
	e, w, events := newTestEngine(t, DefaultConfig())
	a := mustSpawn(t, e, "grazer", geom.Vec3{0, 0, 0}, world.SpawnOptions{})
	b := mustSpawn(t, e, "grazer", geom.Vec3{1, 0, 0}, world.SpawnOptions{})
	for _, id := range []string{a, b} {
		if ok, reason := e.Enqueue(Command{ActorID: "p1", Type: CommandFeed, Feed: &FeedCommand{TargetID: id, Item: "wheat"}}); !ok {
			t.Fatalf("enqueue feed rejected: %s", reason)
		}
	}

	result := e.Step(0.1)
	if len(result.Spawned) != 1 {
		t.Fatalf("expected one juvenile, got %v", result.Spawned)
	}
	if e.MobCount() != 3 {
		t.Fatalf("expected three mobs, got %d", e.MobCount())
	}
	baby, ok := e.Mob(result.Spawned[0])
	if !ok || !baby.Baby || !baby.Persistent {
		t.Fatalf("expected a persistent juvenile, got %+v", baby)
	}
	spawns := w.Spawns()
	if len(spawns) != 3 || len(spawns[2].Options.ParentIDs) != 2 {
		t.Fatalf("expected the world to record the juvenile with both parents, got %+v", spawns)
	}
	if got := events.OfType(lifecycle.EventBred); len(got) != 1 {
		t.Fatalf("expected one bred event, got %d", len(got))
	}

	for i := 0; i < 60; i++ {
		e.Step(0.1)
	}
	if baby, _ := e.Mob(result.Spawned[0]); baby.Baby {
		t.Fatalf("expected juvenile to have grown up")
	}
	if got := events.OfType(lifecycle.EventGrewUp); len(got) != 1 {
		t.Fatalf("expected one grew-up event, got %d", len(got))
	}
}

func TestDespawnRunsOnSchedule(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DespawnCheckTicks = 5
	e, w, _ := newTestEngine(t, cfg)
	drifter := mustSpawn(t, e, "drifter", geom.Vec3{}, world.SpawnOptions{})
	keeper := mustSpawn(t, e, "drifter", geom.Vec3{}, world.SpawnOptions{Persistent: true})
	e.Enqueue(Command{ActorID: "p1", Type: CommandPlayerUpdate, Player: &PlayerCommand{Position: geom.Vec3{100, 0, 0}}})

	var removed []Removal
	for i := 0; i < 4; i++ {
		removed = append(removed, e.Step(0.05).Removed...)
	}
	if len(removed) != 0 {
		t.Fatalf("expected no despawn before the check tick, got %+v", removed)
	}
	removed = e.Step(0.05).Removed
	if len(removed) != 1 || removed[0].ID != drifter || removed[0].Reason != RemovalDespawn {
		t.Fatalf("expected %s despawned, got %+v", drifter, removed)
	}
	if _, ok := e.Mob(keeper); !ok {
		t.Fatalf("expected persistent mob to remain")
	}
	for _, info := range w.EntitiesInRange(geom.Vec3{}, 1, nil) {
		if info.ID == drifter {
			t.Fatalf("expected despawned mob forgotten by the world")
		}
	}
}

func TestLethalDamageRemovesMob(t *testing.T) {
	e, _, _ := newTestEngine(t, DefaultConfig())
	id := mustSpawn(t, e, "brute", geom.Vec3{}, world.SpawnOptions{})
	e.Enqueue(Command{ActorID: "p1", Type: CommandEffect, Effect: &EffectCommand{TargetID: id, Effect: status.Effect{Type: status.Poison, Level: 1, Remaining: 30}}})
	e.Step(0.05)
	if len(e.Controller().Status().Effects(id)) != 1 {
		t.Fatalf("expected poison applied")
	}

	e.Enqueue(Command{ActorID: "p1", Type: CommandDamage, Damage: &DamageCommand{TargetID: id, Amount: 50}})
	result := e.Step(0.05)
	if len(result.Removed) != 1 || result.Removed[0].Reason != RemovalDeath {
		t.Fatalf("expected death removal, got %+v", result.Removed)
	}
	if e.MobCount() != 0 {
		t.Fatalf("expected registry empty")
	}
	if len(e.Controller().Status().Effects(id)) != 0 {
		t.Fatalf("expected effects cleared with the mob")
	}
}

func TestHostileMobHurtsTrackedPlayer(t *testing.T) {
	e, _, _ := newTestEngine(t, DefaultConfig())
	mustSpawn(t, e, "brute", geom.Vec3{}, world.SpawnOptions{})
	e.Enqueue(Command{ActorID: "p1", Type: CommandPlayerUpdate, Player: &PlayerCommand{Position: geom.Vec3{4, 0, 0}}})
	for i := 0; i < 100; i++ {
		e.Step(0.05)
	}
	p, ok := e.Player("p1")
	if !ok {
		t.Fatalf("expected player tracked")
	}
	if p.Health >= defaultPlayerHealth {
		t.Fatalf("expected the brute to reach and hurt the player, health %.2f", p.Health)
	}

	e.Enqueue(Command{ActorID: "p1", Type: CommandPlayerLeave})
	e.Step(0.05)
	if _, ok := e.Player("p1"); ok {
		t.Fatalf("expected player removed after leaving")
	}
}

func TestSnapshotRestoreAcrossEngines(t *testing.T) {
	source, _, _ := newTestEngine(t, DefaultConfig())
	mustSpawn(t, source, "grazer", geom.Vec3{1, 0, 1}, world.SpawnOptions{})
	mustSpawn(t, source, "brute", geom.Vec3{-3, 0, 2}, world.SpawnOptions{})
	for i := 0; i < 10; i++ {
		source.Step(0.05)
	}
	tick, snaps := source.Snapshot()

	target, _, _ := newTestEngine(t, DefaultConfig())
	mustSpawn(t, target, "drifter", geom.Vec3{}, world.SpawnOptions{})
	if err := target.Restore(tick, snaps); err != nil {
		t.Fatalf("restore: %v", err)
	}
	restoredTick, restored := target.Snapshot()
	if restoredTick != tick {
		t.Fatalf("expected tick %d, got %d", tick, restoredTick)
	}
	if !reflect.DeepEqual(snaps, restored) {
		t.Fatalf("expected identical snapshots after restore")
	}

	bad := append([]ai.Snapshot{{ID: "broken", Species: "grazer", State: "sleeping"}}, snaps...)
	err := target.Restore(tick, bad)
	if !errors.Is(err, ai.ErrInvalidSnapshot) {
		t.Fatalf("expected invalid snapshot error, got %v", err)
	}
	if target.MobCount() != len(snaps) {
		t.Fatalf("expected valid snapshots restored despite the bad one, got %d", target.MobCount())
	}
}

func TestEnqueueThrottlesPerActorAndCapacity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PerActorLimit = 2
	cfg.CommandCapacity = 3
	e, _, _ := newTestEngine(t, cfg)

	for i := 0; i < 2; i++ {
		if ok, _ := e.Enqueue(Command{ActorID: "a", Type: CommandPlayerUpdate}); !ok {
			t.Fatalf("expected command %d accepted", i)
		}
	}
	if ok, reason := e.Enqueue(Command{ActorID: "a", Type: CommandPlayerUpdate}); ok || reason != CommandRejectQueueLimit {
		t.Fatalf("expected per-actor limit, got ok=%v reason=%s", ok, reason)
	}
	if ok, _ := e.Enqueue(Command{ActorID: "b", Type: CommandPlayerUpdate}); !ok {
		t.Fatalf("expected other actor accepted")
	}
	if ok, reason := e.Enqueue(Command{ActorID: "c", Type: CommandPlayerUpdate}); ok || reason != CommandRejectQueueFull {
		t.Fatalf("expected full buffer, got ok=%v reason=%s", ok, reason)
	}
	if e.Pending() != 3 {
		t.Fatalf("expected three pending, got %d", e.Pending())
	}
	if result := e.Step(0.05); result.Commands != 3 || e.Pending() != 0 {
		t.Fatalf("expected queue drained by step, got %+v", result)
	}
	if ok, _ := e.Enqueue(Command{ActorID: "a", Type: CommandPlayerUpdate}); !ok {
		t.Fatalf("expected per-actor budget reset after step")
	}
}

func TestSpawnRespectsLimitAndLibrary(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxMobs = 1
	e, _, _ := newTestEngine(t, cfg)
	if _, err := e.Spawn("dragon", geom.Vec3{}, world.SpawnOptions{}); !errors.Is(err, ai.ErrUnknownSpecies) {
		t.Fatalf("expected unknown species error, got %v", err)
	}
	mustSpawn(t, e, "grazer", geom.Vec3{}, world.SpawnOptions{})
	if _, err := e.Spawn("grazer", geom.Vec3{}, world.SpawnOptions{}); !errors.Is(err, ErrMobLimit) {
		t.Fatalf("expected mob limit error, got %v", err)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TickRate = 200
	e, _, _ := newTestEngine(t, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	steps := 0
	e.Run(ctx, Hooks{AfterStep: func(result StepResult) {
		steps++
		if result.Delta <= 0 {
			t.Errorf("expected positive delta, got %f", result.Delta)
		}
		if steps == 3 {
			cancel()
		}
	}})
	if steps < 3 || e.Tick() < 3 {
		t.Fatalf("expected at least three steps, got %d", steps)
	}
}

func TestSimulationDeterminism(t *testing.T) {
	run := func() (uint64, []ai.Snapshot, []world.ItemDrop) {
		w := world.NewMemory()
		w.FillFloor(-1, 24, "grass_block")
		cfg := DefaultConfig()
		cfg.Seed = "determinism"
		e := NewEngine(cfg, Deps{Library: ai.GlobalLibrary, World: w})
		spawns := []struct {
			species string
			pos     geom.Vec3
		}{
			{"zombie", geom.Vec3{-8, 0, 3}},
			{"cow", geom.Vec3{2, 0, 2}},
			{"cow", geom.Vec3{3, 0, 2}},
			{"goat", geom.Vec3{-4, 0, -6}},
			{"wolf", geom.Vec3{6, 0, -2}},
			{"sniffer", geom.Vec3{0.5, 0, 8.5}},
			{"axolotl", geom.Vec3{10, 0, 10}},
			{"warden", geom.Vec3{-12, 0, 12}},
		}
		for _, s := range spawns {
			if _, err := e.Spawn(s.species, s.pos, world.SpawnOptions{}); err != nil {
				t.Fatalf("spawn %s: %v", s.species, err)
			}
		}
		e.Enqueue(Command{ActorID: "p1", Type: CommandPlayerUpdate, Player: &PlayerCommand{Position: geom.Vec3{0, 0, 0}}})
		for i := 0; i < 400; i++ {
			if i == 20 {
				_, snaps := e.Snapshot()
				for _, s := range snaps {
					if s.Species == "cow" {
						e.Enqueue(Command{ActorID: "p1", Type: CommandFeed, Feed: &FeedCommand{TargetID: s.ID, Item: "wheat"}})
					}
				}
			}
			e.Step(0.05)
		}
		tick, snaps := e.Snapshot()
		return tick, snaps, w.Drops()
	}

	tickA, snapsA, dropsA := run()
	tickB, snapsB, dropsB := run()
	if tickA != tickB {
		t.Fatalf("expected identical tick counts, got %d and %d", tickA, tickB)
	}
	if !reflect.DeepEqual(snapsA, snapsB) {
		t.Fatalf("expected identical mob state across runs")
	}
	if !reflect.DeepEqual(dropsA, dropsB) {
		t.Fatalf("expected identical drops across runs")
	}
}
