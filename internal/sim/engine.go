package sim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"blockworld/mobs/internal/ai"
	"blockworld/mobs/internal/geom"
	"blockworld/mobs/internal/telemetry"
	"blockworld/mobs/internal/world"
	"blockworld/mobs/logging"
	"blockworld/mobs/logging/lifecycle"
)

const (
	// CommandRejectQueueLimit indicates a command was dropped due to per-actor
	// queue throttling.
	CommandRejectQueueLimit = "queue_limit"
	// CommandRejectQueueFull indicates the global command buffer is saturated.
	CommandRejectQueueFull = "queue_full"
)

// Removal reasons.
const (
	RemovalDespawn = "despawn"
	RemovalDeath   = "death"
	RemovalRestore = "restore"
)

const defaultPlayerHealth = 20

// ErrMobLimit is returned when spawning would exceed Config.MaxMobs.
var ErrMobLimit = errors.New("sim: mob limit reached")

// Config tunes the engine and its fixed-timestep loop.
type Config struct {
	TickRate          int
	CatchupMaxTicks   int
	Seed              string
	DespawnCheckTicks int
	MaxMobs           int
	CommandCapacity   int
	PerActorLimit     int
}

// DefaultConfig returns the standard engine configuration.
func DefaultConfig() Config {
	return Config{
		TickRate:          20,
		CatchupMaxTicks:   3,
		Seed:              world.DefaultSeed,
		DespawnCheckTicks: 20,
		MaxMobs:           512,
		CommandCapacity:   1024,
		PerActorLimit:     32,
	}
}

func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.TickRate <= 0 {
		c.TickRate = def.TickRate
	}
	if c.CatchupMaxTicks <= 0 {
		c.CatchupMaxTicks = def.CatchupMaxTicks
	}
	if c.Seed == "" {
		c.Seed = def.Seed
	}
	if c.DespawnCheckTicks <= 0 {
		c.DespawnCheckTicks = def.DespawnCheckTicks
	}
	if c.CommandCapacity <= 0 {
		c.CommandCapacity = def.CommandCapacity
	}
	return c
}

// Deps carries the collaborators the engine runs against. Everything is
// optional; a nil Controller is built from Library with an RNG derived from
// the configured seed.
type Deps struct {
	Controller *ai.Controller
	Library    *ai.Library
	World      world.World
	Publisher  logging.Publisher
	Logger     telemetry.Logger
	Metrics    *telemetry.Metrics
	Clock      logging.Clock
}

// tracker is implemented by worlds whose range queries must be told where
// simulated entities are.
type tracker interface {
	Track(info world.EntityInfo)
	Forget(id string)
}

// Removal describes a mob that left the registry during a step.
type Removal struct {
	ID      string
	Species string
	Reason  string
}

// StepResult summarizes one executed step.
type StepResult struct {
	Tick     uint64
	Time     float64
	Delta    float64
	Commands int
	Updated  int
	Spawned  []string
	Removed  []Removal
	Duration time.Duration
}

// Engine owns the mob registry and advances every mob sequentially in id
// order each step.
type Engine struct {
	mu      sync.Mutex
	cfg     Config
	ctrl    *ai.Controller
	world   world.World
	pub     logging.Publisher
	logger  telemetry.Logger
	metrics *telemetry.Metrics
	clock   logging.Clock

	buffer        *CommandBuffer
	queueMu       sync.Mutex
	perActorCount map[string]int

	tick    uint64
	time    float64
	nextID  uint64
	mobs    map[string]*ai.Mob
	players map[string]*ai.Player
}

// NewEngine constructs an engine with the provided configuration.
func NewEngine(cfg Config, deps Deps) *Engine {
	cfg = cfg.normalized()
	e := &Engine{
		cfg:           cfg,
		world:         deps.World,
		pub:           deps.Publisher,
		logger:        deps.Logger,
		metrics:       deps.Metrics,
		clock:         deps.Clock,
		perActorCount: make(map[string]int),
		mobs:          make(map[string]*ai.Mob),
		players:       make(map[string]*ai.Player),
	}
	if e.pub == nil {
		e.pub = logging.NopPublisher()
	}
	if e.logger == nil {
		e.logger = telemetry.LoggerFunc(func(string, ...any) {})
	}
	if e.clock == nil {
		e.clock = logging.ClockFunc(time.Now)
	}
	e.ctrl = deps.Controller
	if e.ctrl == nil {
		e.ctrl = ai.NewController(ai.Deps{
			Library:   deps.Library,
			Publisher: e.pub,
			Random:    world.NewDeterministicRNG(cfg.Seed, "mobs"),
			Logger:    e.logger,
		})
	}
	e.buffer = NewCommandBuffer(cfg.CommandCapacity, e.metrics)
	return e
}

// Controller exposes the behaviour controller.
func (e *Engine) Controller() *ai.Controller {
	if e == nil {
		return nil
	}
	return e.ctrl
}

// Config returns the normalized configuration.
func (e *Engine) Config() Config {
	if e == nil {
		return Config{}
	}
	return e.cfg
}

// Tick reports the number of completed steps.
func (e *Engine) Tick() uint64 {
	if e == nil {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tick
}

// Enqueue stages a command for the next step, enforcing per-actor throttling
// and capacity limits.
func (e *Engine) Enqueue(cmd Command) (bool, string) {
	if e == nil {
		return false, CommandRejectQueueFull
	}
	if cmd.IssuedAt.IsZero() {
		cmd.IssuedAt = e.clock.Now()
	}
	e.queueMu.Lock()
	defer e.queueMu.Unlock()
	if e.cfg.PerActorLimit > 0 && cmd.ActorID != "" {
		if e.perActorCount[cmd.ActorID] >= e.cfg.PerActorLimit {
			e.metrics.RecordCommandDrop(context.Background(), CommandRejectQueueLimit)
			return false, CommandRejectQueueLimit
		}
	}
	if !e.buffer.Push(cmd) {
		return false, CommandRejectQueueFull
	}
	if cmd.ActorID != "" {
		e.perActorCount[cmd.ActorID]++
	}
	return true, ""
}

// Pending reports the number of staged commands.
func (e *Engine) Pending() int {
	if e == nil {
		return 0
	}
	return e.buffer.Len()
}

func (e *Engine) drainCommands() []Command {
	e.queueMu.Lock()
	defer e.queueMu.Unlock()
	commands := e.buffer.Drain()
	if len(e.perActorCount) > 0 {
		e.perActorCount = make(map[string]int)
	}
	return commands
}

// Spawn places a mob immediately and returns its id.
func (e *Engine) Spawn(species string, position geom.Vec3, opts world.SpawnOptions) (string, error) {
	if e == nil {
		return "", ErrMobLimit
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	m, err := e.spawn(context.Background(), species, position, opts, false)
	if err != nil {
		return "", err
	}
	return m.ID, nil
}

// Step advances the simulation by dt seconds.
func (e *Engine) Step(dt float64) StepResult {
	if e == nil {
		return StepResult{}
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	start := e.clock.Now()
	if dt < 0 || math.IsNaN(dt) || math.IsInf(dt, 0) {
		dt = 0
	}
	e.tick++
	e.time += dt
	ctx := context.Background()
	result := StepResult{Tick: e.tick, Time: e.time, Delta: dt}

	commands := e.drainCommands()
	result.Commands = len(commands)
	for _, cmd := range commands {
		e.applyEntityCommand(ctx, cmd, &result)
	}
	e.syncWorld()
	tk := e.newTick(ctx, dt)
	for _, cmd := range commands {
		e.applyMobCommand(cmd, tk)
	}

	ids := e.mobIDs()
	for _, id := range ids {
		e.ctrl.TickEffects(e.mobs[id], tk)
	}
	var actions []ai.ActionResult
	for _, id := range ids {
		m := e.mobs[id]
		if m.Dead {
			continue
		}
		actions = append(actions, e.ctrl.Update(m, tk)...)
		result.Updated++
	}
	e.applyActions(ctx, tk, actions, &result)

	if e.tick%uint64(e.cfg.DespawnCheckTicks) == 0 {
		players := e.playerList()
		for _, id := range e.mobIDs() {
			if e.ctrl.CheckDespawn(e.mobs[id], players, tk) {
				e.remove(ctx, id, RemovalDespawn, &result)
			}
		}
	}
	for _, id := range e.mobIDs() {
		if e.mobs[id].Dead {
			e.remove(ctx, id, RemovalDeath, &result)
		}
	}

	result.Duration = e.clock.Now().Sub(start)
	e.metrics.RecordStep(ctx, result.Updated, result.Duration)
	return result
}

func (e *Engine) applyEntityCommand(ctx context.Context, cmd Command, result *StepResult) {
	switch cmd.Type {
	case CommandPlayerUpdate:
		if cmd.ActorID == "" || cmd.Player == nil {
			return
		}
		e.updatePlayer(cmd.ActorID, *cmd.Player)
	case CommandPlayerLeave:
		delete(e.players, cmd.ActorID)
		e.forget(cmd.ActorID)
	case CommandSpawn:
		if cmd.Spawn == nil {
			return
		}
		m, err := e.spawn(ctx, cmd.Spawn.Species, cmd.Spawn.Position, world.SpawnOptions{
			Baby:       cmd.Spawn.Baby,
			Variant:    cmd.Spawn.Variant,
			Persistent: cmd.Spawn.Persistent,
			Reason:     "command",
		}, false)
		if err != nil {
			e.logger.Printf("[sim] spawn %s rejected: %v", cmd.Spawn.Species, err)
			return
		}
		result.Spawned = append(result.Spawned, m.ID)
	}
}

func (e *Engine) updatePlayer(id string, update PlayerCommand) {
	p := e.players[id]
	if p == nil {
		p = &ai.Player{ID: id, Health: defaultPlayerHealth, MaxHealth: defaultPlayerHealth}
		e.players[id] = p
	}
	if geom.Finite(update.Position) {
		p.Position = update.Position
	}
	if update.MaxHealth > 0 {
		p.MaxHealth = update.MaxHealth
	}
	if update.Health > 0 {
		p.Health = math.Min(update.Health, p.MaxHealth)
		p.Dead = false
	}
}

func (e *Engine) applyMobCommand(cmd Command, tk *ai.Tick) {
	var targetID string
	switch {
	case cmd.Type == CommandDamage && cmd.Damage != nil:
		targetID = cmd.Damage.TargetID
	case cmd.Type == CommandFeed && cmd.Feed != nil:
		targetID = cmd.Feed.TargetID
	case cmd.Type == CommandSit && cmd.Sit != nil:
		targetID = cmd.Sit.TargetID
	case cmd.Type == CommandEffect && cmd.Effect != nil:
		targetID = cmd.Effect.TargetID
	default:
		return
	}
	m := e.mobs[targetID]
	if m == nil {
		e.logger.Printf("[sim] %s from %s for unknown mob %q", cmd.Type, cmd.ActorID, targetID)
		return
	}
	switch cmd.Type {
	case CommandDamage:
		e.ctrl.TakeDamage(m, cmd.Damage.Amount, cmd.ActorID, tk)
	case CommandFeed:
		e.ctrl.Feed(m, cmd.Feed.Item, tk)
	case CommandSit:
		e.ctrl.SetSitting(m, cmd.Sit.Sit, tk)
	case CommandEffect:
		e.ctrl.AddEffect(m, cmd.Effect.Effect, tk)
	}
}

func (e *Engine) applyActions(ctx context.Context, tk *ai.Tick, actions []ai.ActionResult, result *StepResult) {
	for _, action := range actions {
		switch action.Type {
		case ai.ActionBreed:
			m, err := e.spawn(ctx, action.Species, action.Position, action.Options, true)
			if err != nil {
				e.logger.Printf("[sim] juvenile of %s and %s not spawned: %v", action.EntityID, action.PartnerID, err)
				continue
			}
			result.Spawned = append(result.Spawned, m.ID)
		case ai.ActionGrowUp:
			lifecycle.GrewUp(ctx, e.pub, tk.Number, logging.MobRef(action.EntityID, action.Species), nil)
		}
	}
}

func (e *Engine) spawn(ctx context.Context, species string, position geom.Vec3, opts world.SpawnOptions, bred bool) (*ai.Mob, error) {
	if e.cfg.MaxMobs > 0 && len(e.mobs) >= e.cfg.MaxMobs {
		return nil, ErrMobLimit
	}
	sp := e.ctrl.Library().Species(species)
	if sp == nil {
		return nil, fmt.Errorf("%w: %s", ai.ErrUnknownSpecies, species)
	}
	id := ""
	if e.world != nil {
		id = e.world.SpawnEntity(sp.Name, position, opts)
	}
	for id == "" || e.mobs[id] != nil {
		e.nextID++
		id = fmt.Sprintf("%s-%d", sp.Name, e.nextID)
	}
	m, err := e.ctrl.Bootstrap(id, sp.Name, position, opts)
	if err != nil {
		return nil, err
	}
	e.mobs[id] = m
	e.track(m)
	lifecycle.Spawned(ctx, e.pub, e.tick, logging.MobRef(m.ID, m.Species), lifecycle.SpawnedPayload{
		Species:  m.Species,
		Position: [3]float64{position.X(), position.Y(), position.Z()},
		Baby:     m.Baby,
		Variant:  m.Variant,
		Reason:   opts.Reason,
	}, nil)
	e.metrics.RecordSpawn(ctx, m.Species, bred)
	return m, nil
}

func (e *Engine) remove(ctx context.Context, id, reason string, result *StepResult) {
	m := e.mobs[id]
	if m == nil {
		return
	}
	delete(e.mobs, id)
	e.ctrl.Status().Clear(id)
	e.forget(id)
	e.metrics.RecordRemoval(ctx, m.Species, reason)
	if result != nil {
		result.Removed = append(result.Removed, Removal{ID: id, Species: m.Species, Reason: reason})
	}
}

func (e *Engine) syncWorld() {
	for _, p := range e.players {
		e.trackPlayer(p)
	}
	for _, m := range e.mobs {
		e.track(m)
	}
}

func (e *Engine) track(m *ai.Mob) {
	if t, ok := e.world.(tracker); ok {
		t.Track(world.EntityInfo{ID: m.ID, Kind: world.KindMob, Species: m.Species, Position: m.Position, Dead: m.Dead})
	}
}

func (e *Engine) trackPlayer(p *ai.Player) {
	if t, ok := e.world.(tracker); ok {
		t.Track(world.EntityInfo{ID: p.ID, Kind: world.KindPlayer, Position: p.Position, Dead: p.Dead})
	}
}

func (e *Engine) forget(id string) {
	if t, ok := e.world.(tracker); ok {
		t.Forget(id)
	}
}

func (e *Engine) newTick(ctx context.Context, dt float64) *ai.Tick {
	mobs := make([]*ai.Mob, 0, len(e.mobs))
	for _, m := range e.mobs {
		mobs = append(mobs, m)
	}
	return &ai.Tick{
		Context: ctx,
		Number:  e.tick,
		Time:    e.time,
		Delta:   dt,
		World:   e.world,
		Roster:  ai.NewRoster(e.playerList(), mobs),
	}
}

func (e *Engine) mobIDs() []string {
	ids := make([]string, 0, len(e.mobs))
	for id := range e.mobs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (e *Engine) playerList() []*ai.Player {
	players := make([]*ai.Player, 0, len(e.players))
	for _, p := range e.players {
		players = append(players, p)
	}
	sort.Slice(players, func(i, j int) bool { return players[i].ID < players[j].ID })
	return players
}

// Player returns a copy of the tracked player.
func (e *Engine) Player(id string) (ai.Player, bool) {
	if e == nil {
		return ai.Player{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	p := e.players[id]
	if p == nil {
		return ai.Player{}, false
	}
	return *p, true
}

// MobCount reports how many mobs are registered.
func (e *Engine) MobCount() int {
	if e == nil {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.mobs)
}
