package ai

// TargetPlayer matches players in a target list. TargetAnyMob matches every
// mob of another species.
const (
	TargetPlayer = "player"
	TargetAnyMob = "*"
)

// SpeciesConfig is the authoring format of one species. Zero values fall back
// to library defaults; nil extension blocks disable the extension. Parameters
// whose default is nonzero but may be switched off take a negative value.
type SpeciesConfig struct {
	Name                string   `yaml:"species" json:"species" jsonschema:"required"`
	Hostile             bool     `yaml:"hostile,omitempty" json:"hostile,omitempty"`
	Retaliate           bool     `yaml:"retaliate,omitempty" json:"retaliate,omitempty"`
	PanicOnHurt         bool     `yaml:"panicOnHurt,omitempty" json:"panicOnHurt,omitempty"`
	Health              float64  `yaml:"health" json:"health" jsonschema:"required,minimum=0"`
	Speed               float64  `yaml:"speed,omitempty" json:"speed,omitempty"`
	EyeHeight           float64  `yaml:"eyeHeight,omitempty" json:"eyeHeight,omitempty"`
	FleeHealth          float64  `yaml:"fleeHealth,omitempty" json:"fleeHealth,omitempty" jsonschema:"description=Health at or below which an engaged mob flees. 0 disables fleeing."`
	FleeSpeedMultiplier float64  `yaml:"fleeSpeedMultiplier,omitempty" json:"fleeSpeedMultiplier,omitempty"`
	FleeTimeout         float64  `yaml:"fleeTimeout,omitempty" json:"fleeTimeout,omitempty" jsonschema:"description=Seconds after which a flee ends even while the threat is near. 0 disables the timeout."`
	CanSit              bool     `yaml:"canSit,omitempty" json:"canSit,omitempty"`
	Variants            []string `yaml:"variants,omitempty" json:"variants,omitempty"`

	Attack    AttackConfig    `yaml:"attack,omitempty" json:"attack,omitempty"`
	Targeting TargetingConfig `yaml:"targeting,omitempty" json:"targeting,omitempty"`
	Wander    WanderConfig    `yaml:"wander,omitempty" json:"wander,omitempty"`
	Despawn   DespawnConfig   `yaml:"despawn,omitempty" json:"despawn,omitempty"`

	Breeding   *BreedingConfig   `yaml:"breeding,omitempty" json:"breeding,omitempty"`
	Ram        *RamConfig        `yaml:"ram,omitempty" json:"ram,omitempty"`
	FeignDeath *FeignDeathConfig `yaml:"feignDeath,omitempty" json:"feignDeath,omitempty"`
	Sniff      *SniffConfig      `yaml:"sniff,omitempty" json:"sniff,omitempty"`
}

type AttackConfig struct {
	Damage    float64 `yaml:"damage,omitempty" json:"damage,omitempty"`
	Range     float64 `yaml:"range,omitempty" json:"range,omitempty"`
	Cooldown  float64 `yaml:"cooldown,omitempty" json:"cooldown,omitempty"`
	Knockback float64 `yaml:"knockback,omitempty" json:"knockback,omitempty"`
}

type TargetingConfig struct {
	Radius         float64  `yaml:"radius,omitempty" json:"radius,omitempty"`
	Cooldown       float64  `yaml:"cooldown,omitempty" json:"cooldown,omitempty"`
	AggroRange     float64  `yaml:"aggroRange,omitempty" json:"aggroRange,omitempty"`
	LineOfSight    bool     `yaml:"lineOfSight,omitempty" json:"lineOfSight,omitempty"`
	Targets        []string `yaml:"targets,omitempty" json:"targets,omitempty"`
	UseAggro       bool     `yaml:"useAggro,omitempty" json:"useAggro,omitempty"`
	AggroDecay     float64  `yaml:"aggroDecay,omitempty" json:"aggroDecay,omitempty"`
	AggroPerDamage float64  `yaml:"aggroPerDamage,omitempty" json:"aggroPerDamage,omitempty"`
	MaxAggro       float64  `yaml:"maxAggro,omitempty" json:"maxAggro,omitempty"`
}

type WanderConfig struct {
	Chance          float64 `yaml:"chance,omitempty" json:"chance,omitempty" jsonschema:"minimum=0,maximum=1"`
	Radius          float64 `yaml:"radius,omitempty" json:"radius,omitempty"`
	Timeout         float64 `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	SpeedMultiplier float64 `yaml:"speedMultiplier,omitempty" json:"speedMultiplier,omitempty"`
}

type DespawnConfig struct {
	Enabled  bool    `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Distance float64 `yaml:"distance,omitempty" json:"distance,omitempty"`
}

type BreedingConfig struct {
	Foods          []string `yaml:"foods" json:"foods" jsonschema:"required"`
	LoveDuration   float64  `yaml:"loveDuration,omitempty" json:"loveDuration,omitempty"`
	Cooldown       float64  `yaml:"cooldown,omitempty" json:"cooldown,omitempty"`
	SearchRadius   float64  `yaml:"searchRadius,omitempty" json:"searchRadius,omitempty"`
	BreedRadius    float64  `yaml:"breedRadius,omitempty" json:"breedRadius,omitempty"`
	GrowUpTime     float64  `yaml:"growUpTime,omitempty" json:"growUpTime,omitempty"`
	MutationChance float64  `yaml:"mutationChance,omitempty" json:"mutationChance,omitempty" jsonschema:"maximum=1,description=Chance a juvenile takes a rare variant. 0 means the default of 0.1; a negative value disables mutation."`
	RareVariants   []string `yaml:"rareVariants,omitempty" json:"rareVariants,omitempty"`
}

type RamConfig struct {
	Chance          float64  `yaml:"chance" json:"chance" jsonschema:"minimum=0,maximum=1"`
	Windup          float64  `yaml:"windup,omitempty" json:"windup,omitempty"`
	SpeedMultiplier float64  `yaml:"speedMultiplier" json:"speedMultiplier"`
	MaxDuration     float64  `yaml:"maxDuration" json:"maxDuration"`
	Cooldown        float64  `yaml:"cooldown,omitempty" json:"cooldown,omitempty"`
	Range           float64  `yaml:"range,omitempty" json:"range,omitempty"`
	GiveUpDistance  float64  `yaml:"giveUpDistance,omitempty" json:"giveUpDistance,omitempty"`
	Targets         []string `yaml:"targets,omitempty" json:"targets,omitempty"`
	Damage          float64  `yaml:"damage,omitempty" json:"damage,omitempty"`
	Knockback       float64  `yaml:"knockback,omitempty" json:"knockback,omitempty"`
	HitRadius       float64  `yaml:"hitRadius,omitempty" json:"hitRadius,omitempty"`
	ProbeDistance   float64  `yaml:"probeDistance,omitempty" json:"probeDistance,omitempty"`
	Height          float64  `yaml:"height,omitempty" json:"height,omitempty"`
	HardBlocks      []string `yaml:"hardBlocks,omitempty" json:"hardBlocks,omitempty"`
	DropItem        string   `yaml:"dropItem,omitempty" json:"dropItem,omitempty"`
	DropChance      float64  `yaml:"dropChance,omitempty" json:"dropChance,omitempty" jsonschema:"minimum=0,maximum=1"`
}

type FeignDeathConfig struct {
	Chance               float64 `yaml:"chance" json:"chance" jsonschema:"minimum=0,maximum=1"`
	HealthFraction       float64 `yaml:"healthFraction,omitempty" json:"healthFraction,omitempty"`
	Duration             float64 `yaml:"duration" json:"duration"`
	DamageReduction      float64 `yaml:"damageReduction,omitempty" json:"damageReduction,omitempty" jsonschema:"description=Damage absorbed by the hit that triggers playing dead. 0 means the default of 3; a negative value disables it."`
	RegenerationLevel    int     `yaml:"regenerationLevel,omitempty" json:"regenerationLevel,omitempty"`
	RegenerationDuration float64 `yaml:"regenerationDuration,omitempty" json:"regenerationDuration,omitempty"`
}

type SniffConfig struct {
	Chance        float64   `yaml:"chance" json:"chance" jsonschema:"minimum=0,maximum=1"`
	Duration      float64   `yaml:"duration" json:"duration"`
	Checkpoints   int       `yaml:"checkpoints,omitempty" json:"checkpoints,omitempty"`
	SuccessChance float64   `yaml:"successChance,omitempty" json:"successChance,omitempty" jsonschema:"minimum=0,maximum=1"`
	Cooldown      float64   `yaml:"cooldown,omitempty" json:"cooldown,omitempty"`
	Diggable      []string  `yaml:"diggable,omitempty" json:"diggable,omitempty"`
	Dig           DigConfig `yaml:"dig,omitempty" json:"dig,omitempty"`
}

type DigConfig struct {
	Duration float64  `yaml:"duration,omitempty" json:"duration,omitempty"`
	Cooldown float64  `yaml:"cooldown,omitempty" json:"cooldown,omitempty"`
	Items    []string `yaml:"items,omitempty" json:"items,omitempty"`
}

// clone deep-copies the slices and extension blocks so compilation never
// writes through to the caller's config.
func (c SpeciesConfig) clone() SpeciesConfig {
	out := c
	out.Variants = append([]string(nil), c.Variants...)
	out.Targeting.Targets = append([]string(nil), c.Targeting.Targets...)
	if c.Breeding != nil {
		b := *c.Breeding
		b.Foods = append([]string(nil), c.Breeding.Foods...)
		b.RareVariants = append([]string(nil), c.Breeding.RareVariants...)
		out.Breeding = &b
	}
	if c.Ram != nil {
		r := *c.Ram
		r.Targets = append([]string(nil), c.Ram.Targets...)
		r.HardBlocks = append([]string(nil), c.Ram.HardBlocks...)
		out.Ram = &r
	}
	if c.FeignDeath != nil {
		f := *c.FeignDeath
		out.FeignDeath = &f
	}
	if c.Sniff != nil {
		s := *c.Sniff
		s.Diggable = append([]string(nil), c.Sniff.Diggable...)
		s.Dig.Items = append([]string(nil), c.Sniff.Dig.Items...)
		out.Sniff = &s
	}
	return out
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
