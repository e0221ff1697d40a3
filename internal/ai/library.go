package ai

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"blockworld/mobs/internal/geom"
)

//go:embed configs/*.yaml
var embeddedConfigs embed.FS

// GlobalLibrary provides the species bundled with the simulator.
var GlobalLibrary = MustLoadLibrary()

// ErrUnknownSpecies is returned when a species has no library entry.
var ErrUnknownSpecies = errors.New("ai: unknown species")

// Library stores compiled species indexed by lower-cased name and numeric ID.
type Library struct {
	byID   map[uint16]*Species
	byName map[string]*Species
	nextID uint16
}

// Species is a compiled species: its normalized authoring config plus the
// ordered behaviour modules that may claim a tick.
type Species struct {
	SpeciesConfig
	id      uint16
	modules []module
}

// ID exposes the numeric identifier assigned at compile time.
func (s *Species) ID() uint16 {
	if s == nil {
		return 0
	}
	return s.id
}

// Offensive reports whether the species ever attacks.
func (s *Species) Offensive() bool {
	return s != nil && s.Attack.Damage > 0 && (s.Hostile || s.Retaliate)
}

// MustLoadLibrary loads the embedded species or panics on failure.
func MustLoadLibrary() *Library {
	lib, err := LoadLibrary()
	if err != nil {
		panic(fmt.Errorf("ai: load library: %w", err))
	}
	return lib
}

// LoadLibrary compiles the embedded species authoring files.
func LoadLibrary() (*Library, error) {
	lib := NewLibrary()
	if err := lib.loadFS(embeddedConfigs, "configs"); err != nil {
		return nil, err
	}
	return lib, nil
}

// NewLibrary returns an empty library.
func NewLibrary() *Library {
	return &Library{
		byID:   make(map[uint16]*Species),
		byName: make(map[string]*Species),
	}
}

// LoadDir compiles every .yaml/.yml file in dir. Entries replace existing
// species with the same name.
func (l *Library) LoadDir(dir string) error {
	if dir == "" {
		return nil
	}
	return l.loadFS(os.DirFS(dir), ".")
}

func (l *Library) loadFS(fsys fs.FS, dir string) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("ai: read configs: %w", err)
	}
	for _, entry := range entries {
		ext := strings.ToLower(path.Ext(entry.Name()))
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("ai: read %q: %w", entry.Name(), err)
		}
		var authoring SpeciesConfig
		if err := yaml.Unmarshal(data, &authoring); err != nil {
			return fmt.Errorf("ai: decode %q: %w", entry.Name(), err)
		}
		if _, err := l.Register(authoring); err != nil {
			return fmt.Errorf("ai: compile %q: %w", entry.Name(), err)
		}
	}
	return nil
}

// Register compiles and stores a species authoring config.
func (l *Library) Register(authoring SpeciesConfig) (*Species, error) {
	compiled, err := compileSpecies(authoring)
	if err != nil {
		return nil, err
	}
	key := normalizeName(compiled.Name)
	if existing, ok := l.byName[key]; ok {
		compiled.id = existing.id
	} else {
		compiled.id = l.allocateID()
	}
	l.byID[compiled.id] = compiled
	l.byName[key] = compiled
	return compiled, nil
}

func (l *Library) allocateID() uint16 {
	l.nextID++
	if l.nextID == 0 {
		l.nextID++
	}
	return l.nextID
}

// Species returns the compiled species for the name.
func (l *Library) Species(name string) *Species {
	if l == nil {
		return nil
	}
	return l.byName[normalizeName(name)]
}

// SpeciesByID returns the compiled species for the numeric ID.
func (l *Library) SpeciesByID(id uint16) *Species {
	if l == nil {
		return nil
	}
	return l.byID[id]
}

// Names lists the registered species in alphabetical order.
func (l *Library) Names() []string {
	if l == nil {
		return nil
	}
	names := make([]string, 0, len(l.byName))
	for name := range l.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalizeName(name string) string {
	return strings.TrimSpace(strings.ToLower(name))
}

func compileSpecies(authoring SpeciesConfig) (*Species, error) {
	cfg := authoring.clone()
	cfg.Name = normalizeName(cfg.Name)
	if cfg.Name == "" {
		return nil, errors.New("species name is required")
	}
	if cfg.Health <= 0 {
		return nil, fmt.Errorf("species %s: health must be positive", cfg.Name)
	}
	if cfg.FleeHealth < 0 || cfg.FleeHealth > cfg.Health {
		return nil, fmt.Errorf("species %s: fleeHealth must be within [0, health]", cfg.Name)
	}
	applyDefaults(&cfg)
	for i, target := range cfg.Targeting.Targets {
		cfg.Targeting.Targets[i] = normalizeName(target)
	}

	compiled := &Species{SpeciesConfig: cfg}
	if cfg.CanSit {
		compiled.modules = append(compiled.modules, sittingModule{})
	}
	if cfg.FeignDeath != nil {
		if cfg.FeignDeath.Duration <= 0 {
			return nil, fmt.Errorf("species %s: feignDeath.duration must be positive", cfg.Name)
		}
		compiled.modules = append(compiled.modules, feignDeathModule{})
	}
	if cfg.Ram != nil {
		if cfg.Ram.SpeedMultiplier <= 0 || cfg.Ram.MaxDuration <= 0 {
			return nil, fmt.Errorf("species %s: ram needs speedMultiplier and maxDuration", cfg.Name)
		}
		compiled.modules = append(compiled.modules, ramModule{})
	}
	if cfg.Sniff != nil {
		if cfg.Sniff.Duration <= 0 {
			return nil, fmt.Errorf("species %s: sniff.duration must be positive", cfg.Name)
		}
		compiled.modules = append(compiled.modules, sniffModule{})
	}
	if cfg.Breeding != nil {
		if len(cfg.Breeding.Foods) == 0 {
			return nil, fmt.Errorf("species %s: breeding needs at least one food", cfg.Name)
		}
		compiled.modules = append(compiled.modules, breedingModule{})
	}
	return compiled, nil
}

const (
	defaultDamageReduction = 3
	defaultMutationChance  = 0.1
	defaultGrowUpTime      = 1200
)

func applyDefaults(cfg *SpeciesConfig) {
	setDefault(&cfg.Speed, 1)
	setDefault(&cfg.EyeHeight, geom.DefaultEyeHeight)
	setDefault(&cfg.FleeSpeedMultiplier, 1.4)
	if cfg.FleeTimeout < 0 {
		cfg.FleeTimeout = 0
	}

	setDefault(&cfg.Attack.Range, 2)
	setDefault(&cfg.Attack.Cooldown, 1)

	setDefault(&cfg.Targeting.Radius, 16)
	setDefault(&cfg.Targeting.Cooldown, 0.5)
	setDefault(&cfg.Targeting.AggroRange, cfg.Targeting.Radius)
	setDefault(&cfg.Targeting.MaxAggro, 150)
	setDefault(&cfg.Targeting.AggroPerDamage, 1)

	setDefault(&cfg.Wander.Radius, 8)
	setDefault(&cfg.Wander.Timeout, 10)
	setDefault(&cfg.Wander.SpeedMultiplier, 0.6)

	setDefault(&cfg.Despawn.Distance, 128)

	if b := cfg.Breeding; b != nil {
		setDefault(&b.LoveDuration, 30)
		setDefault(&b.Cooldown, 300)
		setDefault(&b.SearchRadius, 8)
		setDefault(&b.BreedRadius, 1.5)
		setDefault(&b.GrowUpTime, defaultGrowUpTime)
		setDefaultOrOff(&b.MutationChance, defaultMutationChance)
	}
	if r := cfg.Ram; r != nil {
		setDefault(&r.Windup, 1)
		setDefault(&r.Cooldown, 30)
		setDefault(&r.Range, cfg.Targeting.Radius)
		setDefault(&r.GiveUpDistance, r.Range*1.5)
		setDefault(&r.HitRadius, 1.2)
		setDefault(&r.ProbeDistance, 0.6)
		setDefault(&r.Height, 1)
		if len(r.Targets) == 0 {
			r.Targets = []string{TargetPlayer}
		}
		for i, target := range r.Targets {
			r.Targets[i] = normalizeName(target)
		}
	}
	if f := cfg.FeignDeath; f != nil {
		setDefault(&f.HealthFraction, 0.5)
		setDefaultOrOff(&f.DamageReduction, defaultDamageReduction)
		setDefault(&f.RegenerationDuration, f.Duration)
		if f.RegenerationLevel <= 0 {
			f.RegenerationLevel = 1
		}
	}
	if s := cfg.Sniff; s != nil {
		setDefault(&s.Cooldown, 30)
		if s.Checkpoints <= 0 {
			s.Checkpoints = 1
		}
		setDefault(&s.Dig.Duration, 4)
		setDefault(&s.Dig.Cooldown, 10)
	}
}

func setDefault(field *float64, value float64) {
	if *field <= 0 {
		*field = value
	}
}

// setDefaultOrOff fills an unset field with value. Negative values switch the
// parameter off.
func setDefaultOrOff(field *float64, value float64) {
	switch {
	case *field < 0:
		*field = 0
	case *field == 0:
		*field = value
	}
}
