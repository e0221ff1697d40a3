package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "blockworld/mobs/internal/sim"

// Metrics holds the tick loop instruments. A nil *Metrics records nothing.
type Metrics struct {
	ticks     metric.Int64Counter
	updates   metric.Int64Counter
	despawns  metric.Int64Counter
	deaths    metric.Int64Counter
	breeds    metric.Int64Counter
	dropped   metric.Int64Counter
	stepTime  metric.Float64Histogram
	liveCount metric.Int64UpDownCounter
}

// NewMetrics registers the instruments on the given meter. A nil meter uses
// the global provider.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}
	m := &Metrics{}
	var err error
	if m.ticks, err = meter.Int64Counter("mobsim.ticks", metric.WithDescription("Simulation steps executed")); err != nil {
		return nil, fmt.Errorf("telemetry: ticks counter: %w", err)
	}
	if m.updates, err = meter.Int64Counter("mobsim.mob_updates", metric.WithDescription("Behaviour updates executed")); err != nil {
		return nil, fmt.Errorf("telemetry: updates counter: %w", err)
	}
	if m.despawns, err = meter.Int64Counter("mobsim.despawns", metric.WithDescription("Mobs removed by despawn")); err != nil {
		return nil, fmt.Errorf("telemetry: despawn counter: %w", err)
	}
	if m.deaths, err = meter.Int64Counter("mobsim.deaths", metric.WithDescription("Mobs removed after death")); err != nil {
		return nil, fmt.Errorf("telemetry: death counter: %w", err)
	}
	if m.breeds, err = meter.Int64Counter("mobsim.breeds", metric.WithDescription("Juveniles spawned by breeding")); err != nil {
		return nil, fmt.Errorf("telemetry: breed counter: %w", err)
	}
	if m.dropped, err = meter.Int64Counter("mobsim.commands_dropped", metric.WithDescription("Commands rejected by the intake buffer")); err != nil {
		return nil, fmt.Errorf("telemetry: dropped counter: %w", err)
	}
	if m.stepTime, err = meter.Float64Histogram("mobsim.step_duration", metric.WithUnit("ms"), metric.WithDescription("Wall time spent in one step")); err != nil {
		return nil, fmt.Errorf("telemetry: step histogram: %w", err)
	}
	if m.liveCount, err = meter.Int64UpDownCounter("mobsim.live_mobs", metric.WithDescription("Mobs currently simulated")); err != nil {
		return nil, fmt.Errorf("telemetry: live gauge: %w", err)
	}
	return m, nil
}

// RecordStep records one completed step.
func (m *Metrics) RecordStep(ctx context.Context, updates int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ticks.Add(ctx, 1)
	m.updates.Add(ctx, int64(updates))
	m.stepTime.Record(ctx, float64(elapsed.Microseconds())/1000)
}

// RecordRemoval counts a mob leaving the registry. Only "despawn" and
// "death" feed the removal counters.
func (m *Metrics) RecordRemoval(ctx context.Context, species, reason string) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("species", species))
	switch reason {
	case "despawn":
		m.despawns.Add(ctx, 1, attrs)
	case "death":
		m.deaths.Add(ctx, 1, attrs)
	}
	m.liveCount.Add(ctx, -1, attrs)
}

// RecordSpawn counts a mob joining the registry.
func (m *Metrics) RecordSpawn(ctx context.Context, species string, bred bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("species", species))
	if bred {
		m.breeds.Add(ctx, 1, attrs)
	}
	m.liveCount.Add(ctx, 1, attrs)
}

// RecordCommandDrop counts a command rejected before it reached the engine.
func (m *Metrics) RecordCommandDrop(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.dropped.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
