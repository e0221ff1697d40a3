package ai

import (
	"testing"

	"blockworld/mobs/internal/geom"
	"blockworld/mobs/internal/status"
	"blockworld/mobs/internal/world"
	"blockworld/mobs/logging/lifecycle"
)

func TestSniffThenDigDropsItem(t *testing.T) {
	c, _ := newTestController(t, fixedRandom{f: 0}, SpeciesConfig{
		Name:   "snuffler",
		Health: 14,
		Sniff: &SniffConfig{
			Chance:        0.5,
			Duration:      1,
			Checkpoints:   2,
			SuccessChance: 0.5,
			Diggable:      []string{"grass_block"},
			Dig:           DigConfig{Duration: 1, Items: []string{"seed"}},
		},
	})
	w := world.NewMemory()
	w.SetBlock(0, -1, 0, "grass_block")
	m := spawn(t, c, "m1", "snuffler", geom.Vec3{0.5, 0, 0.5})
	mobs := []*Mob{m}

	c.Update(m, newTick(1, 0.25, w, nil, mobs))
	sniff, ok := m.Brain.Sub.(*Sniffing)
	if !ok {
		t.Fatalf("expected sniffing, got %#v", m.Brain.Sub)
	}
	for i := uint64(2); i <= 4; i++ {
		c.Update(m, newTick(i, 0.25, w, nil, mobs))
	}
	if sniff.Checkpoint != 1 {
		t.Fatalf("expected halfway checkpoint, got %d", sniff.Checkpoint)
	}
	for i := uint64(5); i <= 40; i++ {
		m.Velocity = geom.Vec3{1, 0, 0}
		c.Update(m, newTick(i, 0.25, w, nil, mobs))
		if m.Brain.Sub != nil && m.Velocity != (geom.Vec3{}) {
			t.Fatalf("expected zero velocity while sniffing or digging")
		}
	}

	drops := w.Drops()
	if len(drops) != 1 || drops[0].ID != "seed" {
		t.Fatalf("expected one seed drop, got %+v", drops)
	}
	if drops[0].Position.Y() != 0.5 {
		t.Fatalf("expected drop above the mob, got %v", drops[0].Position)
	}
	if m.Brain.Cooldowns.Ready(CooldownDig) || m.Brain.Cooldowns.Ready(CooldownSniff) {
		t.Fatalf("expected sniff and dig cooldowns armed")
	}
}

func TestSniffWithoutDiggableGroundFindsNothing(t *testing.T) {
	c, _ := newTestController(t, fixedRandom{f: 0}, SpeciesConfig{
		Name:   "snuffler",
		Health: 14,
		Sniff: &SniffConfig{
			Chance:        0.5,
			Duration:      0.5,
			SuccessChance: 0.5,
			Diggable:      []string{"grass_block"},
			Dig:           DigConfig{Items: []string{"seed"}},
		},
	})
	w := world.NewMemory()
	w.SetBlock(0, -1, 0, "stone")
	m := spawn(t, c, "m1", "snuffler", geom.Vec3{0.5, 0, 0.5})

	for i := uint64(1); i <= 6; i++ {
		c.Update(m, newTick(i, 0.25, w, nil, []*Mob{m}))
	}
	if _, digging := m.Brain.Sub.(*Digging); digging {
		t.Fatalf("expected no dig on stone")
	}
	if len(w.Drops()) != 0 {
		t.Fatalf("expected no drops, got %+v", w.Drops())
	}
}

func grazerConfig() SpeciesConfig {
	return SpeciesConfig{
		Name:     "grazer",
		Health:   10,
		Variants: []string{"brown", "white"},
		Breeding: &BreedingConfig{
			Foods:        []string{"wheat"},
			LoveDuration: 30,
			Cooldown:     300,
			SearchRadius: 8,
			BreedRadius:  1.5,
			GrowUpTime:   10,
		},
	}
}

func TestBreedingYieldsExactlyOneJuvenile(t *testing.T) {
	c, events := newTestController(t, neverRoll, grazerConfig())
	a := spawn(t, c, "a", "grazer", geom.Vec3{0, 0, 0})
	b := spawn(t, c, "b", "grazer", geom.Vec3{1, 0, 0})
	mobs := []*Mob{a, b}
	tk := newTick(1, 0.1, nil, nil, mobs)

	if c.Feed(a, "stone", tk) {
		t.Fatalf("expected non-food to be refused")
	}
	if !c.Feed(a, "wheat", tk) || !c.Feed(b, "wheat", tk) {
		t.Fatalf("expected both adults to accept wheat")
	}
	if !a.InLove || !b.InLove {
		t.Fatalf("expected both mobs in love")
	}

	var results []ActionResult
	for _, m := range mobs {
		results = append(results, c.Update(m, tk)...)
	}
	if len(results) != 1 {
		t.Fatalf("expected exactly one breed result, got %+v", results)
	}
	r := results[0]
	if r.Type != ActionBreed || r.Species != "grazer" || !r.Options.Baby {
		t.Fatalf("unexpected breed result %+v", r)
	}
	if r.Position != (geom.Vec3{0.5, 0, 0}) {
		t.Fatalf("expected juvenile between parents, got %v", r.Position)
	}
	if len(r.Options.ParentIDs) != 2 || r.Options.ParentIDs[0] != "a" || r.Options.ParentIDs[1] != "b" {
		t.Fatalf("expected both parents recorded, got %v", r.Options.ParentIDs)
	}
	if r.Options.Variant != a.Variant && r.Options.Variant != b.Variant {
		t.Fatalf("expected an inherited variant, got %q", r.Options.Variant)
	}
	if a.InLove || b.InLove {
		t.Fatalf("expected love cleared on both parents")
	}
	if a.Brain.Cooldowns.Ready(CooldownBreed) || b.Brain.Cooldowns.Ready(CooldownBreed) {
		t.Fatalf("expected breed cooldown on both parents")
	}
	if c.Feed(a, "wheat", tk) {
		t.Fatalf("expected feeding during cooldown to be refused")
	}
	if got := events.OfType(lifecycle.EventBred); len(got) != 1 {
		t.Fatalf("expected one bred event, got %d", len(got))
	}

	more := c.Update(a, newTick(2, 0.1, nil, nil, mobs))
	more = append(more, c.Update(b, newTick(2, 0.1, nil, nil, mobs))...)
	if len(more) != 0 {
		t.Fatalf("expected no further breeding, got %+v", more)
	}
}

func TestLovedMobsWalkTogether(t *testing.T) {
	c, _ := newTestController(t, neverRoll, grazerConfig())
	a := spawn(t, c, "a", "grazer", geom.Vec3{0, 0, 0})
	b := spawn(t, c, "b", "grazer", geom.Vec3{5, 0, 0})
	mobs := []*Mob{a, b}
	tk := newTick(1, 0.1, nil, nil, mobs)
	c.Feed(a, "wheat", tk)
	c.Feed(b, "wheat", tk)

	var bred int
	for i := uint64(1); i < 100 && bred == 0; i++ {
		for _, m := range mobs {
			bred += len(c.Update(m, newTick(i, 0.1, nil, nil, mobs)))
		}
	}
	if bred != 1 {
		t.Fatalf("expected the pair to meet and breed once, got %d", bred)
	}
}

func TestBreedingMutatesIntoRareVariant(t *testing.T) {
	cfg := grazerConfig()
	cfg.Breeding.MutationChance = 0.1
	cfg.Breeding.RareVariants = []string{"blue"}
	c, _ := newTestController(t, fixedRandom{f: 0}, cfg)
	a := spawn(t, c, "a", "grazer", geom.Vec3{0, 0, 0})
	b := spawn(t, c, "b", "grazer", geom.Vec3{1, 0, 0})
	mobs := []*Mob{a, b}
	tk := newTick(1, 0.1, nil, nil, mobs)
	c.Feed(a, "wheat", tk)
	c.Feed(b, "wheat", tk)

	results := c.Update(a, tk)
	if len(results) != 1 || results[0].Options.Variant != "blue" {
		t.Fatalf("expected mutated blue juvenile, got %+v", results)
	}
}

func TestJuvenileGrowsUp(t *testing.T) {
	c, _ := newTestController(t, neverRoll, grazerConfig())
	baby, err := c.Bootstrap("kid", "grazer", geom.Vec3{}, world.SpawnOptions{Baby: true, Variant: "white"})
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if !baby.Baby || baby.GrowUpRemaining != 10 || !baby.Persistent || baby.Variant != "white" {
		t.Fatalf("unexpected juvenile %+v", baby)
	}
	tk := newTick(1, 1, nil, nil, []*Mob{baby})
	if !c.Feed(baby, "wheat", tk) {
		t.Fatalf("expected juvenile to eat")
	}
	if baby.GrowUpRemaining != 9 {
		t.Fatalf("expected feeding to shorten growth to 9, got %.2f", baby.GrowUpRemaining)
	}
	if baby.InLove {
		t.Fatalf("expected juveniles never to fall in love")
	}

	var grew bool
	for i := uint64(1); i <= 10 && !grew; i++ {
		for _, r := range c.Update(baby, newTick(i, 1, nil, nil, []*Mob{baby})) {
			grew = grew || r.Type == ActionGrowUp
		}
	}
	if !grew || baby.Baby {
		t.Fatalf("expected juvenile to grow up")
	}
	if baby.Persistent {
		t.Fatalf("expected juvenile persistence to lapse once grown")
	}
}

func TestJuvenileOfNonBreederGrowsUp(t *testing.T) {
	c, _ := newTestController(t, neverRoll, bruteConfig())
	baby, err := c.Bootstrap("kid", "brute", geom.Vec3{}, world.SpawnOptions{Baby: true, Persistent: true})
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if baby.GrowUpRemaining != 1200 || !baby.Persistent {
		t.Fatalf("expected the default growth timer on a persistent juvenile, got %+v", baby)
	}

	baby.GrowUpRemaining = 0.5
	results := c.Update(baby, newTick(1, 1, nil, nil, []*Mob{baby}))
	if len(results) != 1 || results[0].Type != ActionGrowUp || baby.Baby {
		t.Fatalf("expected juvenile to grow up, got %+v", results)
	}
	if !baby.Persistent {
		t.Fatalf("expected persistence requested at spawn to be kept")
	}
}

func mimicConfig() SpeciesConfig {
	return SpeciesConfig{
		Name:   "mimic",
		Health: 14,
		FeignDeath: &FeignDeathConfig{
			Chance:          0.5,
			HealthFraction:  0.5,
			Duration:        2,
			DamageReduction: 3,
		},
	}
}

func TestFeignDeathReductionDefaultsWhenUnset(t *testing.T) {
	c, _ := newTestController(t, fixedRandom{f: 0}, SpeciesConfig{
		Name:       "mimic",
		Health:     10,
		FeignDeath: &FeignDeathConfig{Chance: 1, Duration: 5},
	})
	m := spawn(t, c, "m1", "mimic", geom.Vec3{})
	if c.TakeDamage(m, 6, "", newTick(1, 0.1, nil, nil, []*Mob{m})) {
		t.Fatalf("expected mob to survive")
	}
	if _, ok := m.Brain.Sub.(*PlayingDead); !ok {
		t.Fatalf("expected playing dead, got %#v", m.Brain.Sub)
	}
	if m.Health != 7 {
		t.Fatalf("expected 6-3=3 damage, got health %.2f", m.Health)
	}
}

func TestBreedingMutatesByDefault(t *testing.T) {
	cfg := grazerConfig()
	cfg.Breeding.RareVariants = []string{"blue"}
	c, _ := newTestController(t, fixedRandom{f: 0.05}, cfg)
	a := spawn(t, c, "a", "grazer", geom.Vec3{0, 0, 0})
	b := spawn(t, c, "b", "grazer", geom.Vec3{1, 0, 0})
	tk := newTick(1, 0.1, nil, nil, []*Mob{a, b})
	c.Feed(a, "wheat", tk)
	c.Feed(b, "wheat", tk)

	results := c.Update(a, tk)
	if len(results) != 1 || results[0].Options.Variant != "blue" {
		t.Fatalf("expected a 0.05 draw to mutate under the default chance, got %+v", results)
	}
}

func TestFeignDeathReducesDamageAndRegenerates(t *testing.T) {
	c, _ := newTestController(t, fixedRandom{f: 0}, mimicConfig())
	m := spawn(t, c, "m1", "mimic", geom.Vec3{})
	m.Brain.TargetID = "p1"
	tk := newTick(1, 0.5, nil, nil, []*Mob{m})

	if c.TakeDamage(m, 8, "", tk) {
		t.Fatalf("expected mob to survive")
	}
	if m.Health != 9 {
		t.Fatalf("expected 8-3=5 damage, got health %.2f", m.Health)
	}
	if _, ok := m.Brain.Sub.(*PlayingDead); !ok {
		t.Fatalf("expected playing dead, got %#v", m.Brain.Sub)
	}
	if m.Brain.TargetID != "" {
		t.Fatalf("expected target cleared")
	}
	if eff, ok := c.Status().Get("m1", status.Regeneration); !ok || eff.Level != 1 || eff.Remaining != 2 {
		t.Fatalf("expected regeneration effect, got %+v ok=%v", eff, ok)
	}

	c.TakeDamage(m, 2, "", tk)
	if m.Health != 7 {
		t.Fatalf("expected full damage while already playing dead, got %.2f", m.Health)
	}

	m.Velocity = geom.Vec3{1, 0, 0}
	c.Update(m, tk)
	if m.Velocity != (geom.Vec3{}) {
		t.Fatalf("expected zero velocity while playing dead")
	}
	for i := uint64(2); i <= 4; i++ {
		c.Update(m, newTick(i, 0.5, nil, nil, []*Mob{m}))
	}
	if m.Brain.Sub != nil || m.Brain.State != StateIdle {
		t.Fatalf("expected recovery to idle, got sub=%#v state=%s", m.Brain.Sub, m.Brain.State)
	}
}

func TestFeignDeathNeedsHeavyHit(t *testing.T) {
	c, _ := newTestController(t, fixedRandom{f: 0}, mimicConfig())
	m := spawn(t, c, "m1", "mimic", geom.Vec3{})
	c.TakeDamage(m, 2, "", newTick(1, 0.5, nil, nil, []*Mob{m}))
	if m.Brain.Sub != nil || m.Health != 12 {
		t.Fatalf("expected a light hit to land normally, got sub=%#v health=%.2f", m.Brain.Sub, m.Health)
	}
}

func TestCheckDespawn(t *testing.T) {
	c, events := newTestController(t, neverRoll, SpeciesConfig{
		Name:    "drifter",
		Health:  10,
		Despawn: DespawnConfig{Enabled: true, Distance: 32},
	})
	m := spawn(t, c, "m1", "drifter", geom.Vec3{})
	far := &Player{ID: "p1", Position: geom.Vec3{100, 0, 0}, Health: 20, MaxHealth: 20}
	near := &Player{ID: "p2", Position: geom.Vec3{10, 0, 0}, Health: 20, MaxHealth: 20}
	tk := &Tick{Number: 7, Time: 42}

	if c.CheckDespawn(m, []*Player{far, near}, tk) {
		t.Fatalf("expected a nearby player to keep the mob")
	}
	near.Dead = true
	m.Brain.State = StateAttack
	m.Brain.TargetID = "p2"
	if !c.CheckDespawn(m, []*Player{far, near}, tk) {
		t.Fatalf("expected despawn with no live player in range")
	}
	if m.DespawnTime != 42 {
		t.Fatalf("expected despawn time 42, got %.2f", m.DespawnTime)
	}
	if got := events.OfType(lifecycle.EventDespawned); len(got) != 1 {
		t.Fatalf("expected one despawn event, got %d", len(got))
	}

	m.Persistent = true
	if c.CheckDespawn(m, nil, tk) {
		t.Fatalf("expected persistent mobs to stay")
	}
}
