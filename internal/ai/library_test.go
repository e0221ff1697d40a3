package ai

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGlobalLibraryLoadsBundledSpecies(t *testing.T) {
	want := []string{"axolotl", "cow", "drowned", "goat", "skeleton", "sniffer", "squid", "warden", "wolf", "zombie"}
	got := GlobalLibrary.Names()
	if len(got) != len(want) {
		t.Fatalf("expected %d species, got %v", len(want), got)
	}
	for i, name := range want {
		if got[i] != name {
			t.Fatalf("expected %s at %d, got %v", name, i, got)
		}
		sp := GlobalLibrary.Species(name)
		if sp == nil || sp.ID() == 0 {
			t.Fatalf("expected compiled species %s with an id", name)
		}
		if GlobalLibrary.SpeciesByID(sp.ID()) != sp {
			t.Fatalf("expected id lookup to match for %s", name)
		}
	}
}

func TestBundledSpeciesExtensions(t *testing.T) {
	axolotl := GlobalLibrary.Species("Axolotl")
	if axolotl == nil || axolotl.FeignDeath == nil || axolotl.FeignDeath.DamageReduction != 3 {
		t.Fatalf("expected axolotl to play dead with 3 damage reduction")
	}
	if axolotl.Breeding == nil || axolotl.Breeding.MutationChance != 0.1 {
		t.Fatalf("expected axolotl mutation chance 0.1")
	}
	if goat := GlobalLibrary.Species("goat"); goat.Ram == nil || goat.Ram.DropItem != "goat_horn" {
		t.Fatalf("expected goat to ram and shed horns")
	}
	if sniffer := GlobalLibrary.Species("sniffer"); sniffer.Sniff == nil || len(sniffer.Sniff.Dig.Items) == 0 {
		t.Fatalf("expected sniffer to dig")
	}
	if warden := GlobalLibrary.Species("warden"); !warden.Targeting.UseAggro {
		t.Fatalf("expected warden to track aggro")
	}
	if wolf := GlobalLibrary.Species("wolf"); !wolf.CanSit || !wolf.Offensive() {
		t.Fatalf("expected wolf to sit and retaliate")
	}
	if cow := GlobalLibrary.Species("cow"); cow.Offensive() || !cow.PanicOnHurt {
		t.Fatalf("expected cow to be passive and panic")
	}
}

func TestRegisterAppliesDefaults(t *testing.T) {
	lib := NewLibrary()
	sp, err := lib.Register(SpeciesConfig{
		Name:   "  Critter ",
		Health: 5,
		Ram:    &RamConfig{Chance: 0.1, SpeedMultiplier: 3, MaxDuration: 2, Targets: []string{"Player"}},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if sp.Name != "critter" || lib.Species("CRITTER") != sp {
		t.Fatalf("expected normalized name lookup, got %q", sp.Name)
	}
	if sp.Speed != 1 || sp.Attack.Range != 2 || sp.Targeting.Radius != 16 || sp.Targeting.AggroRange != 16 {
		t.Fatalf("unexpected defaults %+v", sp.SpeciesConfig)
	}
	if sp.Ram.Range != 16 || sp.Ram.GiveUpDistance != 24 || sp.Ram.Targets[0] != TargetPlayer {
		t.Fatalf("unexpected ram defaults %+v", sp.Ram)
	}

	again, err := lib.Register(SpeciesConfig{Name: "critter", Health: 9})
	if err != nil {
		t.Fatalf("re-register: %v", err)
	}
	if again.ID() != sp.ID() || lib.Species("critter").Health != 9 {
		t.Fatalf("expected re-registration to keep the id and replace the config")
	}
}

func TestRegisterDefaultsExtensionParameters(t *testing.T) {
	lib := NewLibrary()
	sp, err := lib.Register(SpeciesConfig{
		Name:       "mimic",
		Health:     10,
		FeignDeath: &FeignDeathConfig{Chance: 1, Duration: 5},
		Breeding:   &BreedingConfig{Foods: []string{"wheat"}},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if sp.FeignDeath.DamageReduction != 3 {
		t.Fatalf("expected damage reduction 3 by default, got %.2f", sp.FeignDeath.DamageReduction)
	}
	if sp.Breeding.MutationChance != 0.1 {
		t.Fatalf("expected mutation chance 0.1 by default, got %.2f", sp.Breeding.MutationChance)
	}
	if sp.Breeding.GrowUpTime != 1200 {
		t.Fatalf("expected grow up time 1200 by default, got %.2f", sp.Breeding.GrowUpTime)
	}

	off, err := lib.Register(SpeciesConfig{
		Name:       "plain",
		Health:     10,
		FeignDeath: &FeignDeathConfig{Chance: 1, Duration: 5, DamageReduction: -1},
		Breeding:   &BreedingConfig{Foods: []string{"wheat"}, MutationChance: -1},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if off.FeignDeath.DamageReduction != 0 || off.Breeding.MutationChance != 0 {
		t.Fatalf("expected negative values to switch parameters off, got reduction=%.2f mutation=%.2f",
			off.FeignDeath.DamageReduction, off.Breeding.MutationChance)
	}
}

func TestRegisterDoesNotAliasAuthoring(t *testing.T) {
	authoring := SpeciesConfig{Name: "hunter", Health: 5, Targeting: TargetingConfig{Targets: []string{"Player"}}}
	if _, err := NewLibrary().Register(authoring); err != nil {
		t.Fatalf("register: %v", err)
	}
	if authoring.Targeting.Targets[0] != "Player" {
		t.Fatalf("expected caller config untouched, got %v", authoring.Targeting.Targets)
	}
}

func TestRegisterRejectsInvalidSpecies(t *testing.T) {
	cases := map[string]SpeciesConfig{
		"missing name":   {Health: 5},
		"zero health":    {Name: "a"},
		"flee above max": {Name: "a", Health: 5, FleeHealth: 6},
		"ram speed":      {Name: "a", Health: 5, Ram: &RamConfig{MaxDuration: 1}},
		"feign duration": {Name: "a", Health: 5, FeignDeath: &FeignDeathConfig{Chance: 1}},
		"sniff duration": {Name: "a", Health: 5, Sniff: &SniffConfig{Chance: 1}},
		"breeding foods": {Name: "a", Health: 5, Breeding: &BreedingConfig{}},
	}
	for name, cfg := range cases {
		if _, err := NewLibrary().Register(cfg); err == nil {
			t.Fatalf("%s: expected an error", name)
		}
	}
}

func TestLoadDirOverridesSpecies(t *testing.T) {
	dir := t.TempDir()
	data := []byte("species: zombie\nhostile: true\nhealth: 40\nattack:\n  damage: 5\n")
	if err := os.WriteFile(filepath.Join(dir, "zombie.yml"), data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	lib, err := LoadLibrary()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	before := lib.Species("zombie").ID()
	if err := lib.LoadDir(dir); err != nil {
		t.Fatalf("load dir: %v", err)
	}
	zombie := lib.Species("zombie")
	if zombie.Health != 40 || zombie.Attack.Damage != 5 || zombie.ID() != before {
		t.Fatalf("expected override with stable id, got %+v", zombie.SpeciesConfig)
	}

	if err := os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("species: [oops"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := lib.LoadDir(dir); err == nil {
		t.Fatalf("expected malformed yaml to fail")
	}
}
