package ai

import "blockworld/mobs/internal/geom"

// SubKind names an exclusive species sub-state.
type SubKind string

const (
	SubSitting     SubKind = "sitting"
	SubCharging    SubKind = "charging"
	SubPlayingDead SubKind = "playingDead"
	SubSniffing    SubKind = "sniffing"
	SubDigging     SubKind = "digging"
)

// SubState is the tagged union of exclusive species modes. While one is
// active the base state machine does not run.
type SubState interface {
	Kind() SubKind
	immobile() bool
}

// Sitting holds a tameable mob in place until it is told to stand.
type Sitting struct{}

func (*Sitting) Kind() SubKind  { return SubSitting }
func (*Sitting) immobile() bool { return true }

// ChargePhase splits a ram into its wind-up and its run.
type ChargePhase string

const (
	PhaseWindup ChargePhase = "windup"
	PhaseMoving ChargePhase = "moving"
)

// Charging is an active ram. Direction is frozen when the charge starts and
// Hits records every entity already struck during this charge.
type Charging struct {
	Phase     ChargePhase
	Elapsed   float64
	Direction geom.Vec3
	TargetID  string
	Hits      map[string]bool
}

func (*Charging) Kind() SubKind { return SubCharging }

func (c *Charging) immobile() bool { return c.Phase == PhaseWindup }

// PlayingDead suppresses behaviour until Remaining runs out.
type PlayingDead struct {
	Remaining float64
}

func (*PlayingDead) Kind() SubKind  { return SubPlayingDead }
func (*PlayingDead) immobile() bool { return true }

// Sniffing tracks progress through the sniff animation.
type Sniffing struct {
	Elapsed    float64
	Checkpoint int
}

func (*Sniffing) Kind() SubKind  { return SubSniffing }
func (*Sniffing) immobile() bool { return true }

// Digging is the follow-on to a successful sniff. Item drops on completion.
type Digging struct {
	Elapsed float64
	Item    string
}

func (*Digging) Kind() SubKind  { return SubDigging }
func (*Digging) immobile() bool { return true }
