package telemetry

import (
	"context"
	"time"
)

// Collector receives one snapshot per control cycle.
type Collector interface {
	Record(ctx context.Context, snapshot *Snapshot) error
	Close() error
}

// Repository persists snapshots.
type Repository interface {
	Record(snapshot *Snapshot) error
	Close() error
}

// Snapshot is everything worth keeping about one control cycle.
type Snapshot struct {
	Timestamp time.Time
	Phone     BatteryMetrics
	Keyboard  BatteryMetrics
	Control   ControlMetrics
}

// BatteryMetrics mirrors one battery's sample.
type BatteryMetrics struct {
	Voltage  int // mV
	Current  int // mA
	Capacity int // percent, negative when unknown
	Status   string
}

// ControlMetrics records the engine's verdict for the cycle.
type ControlMetrics struct {
	Action    string
	Limit     int // mA in effect after actuation
	Target    int // mA the engine requested
	Direction string
}
