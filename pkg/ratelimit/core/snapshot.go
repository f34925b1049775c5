package core

import "time"

// LevelScale is the fixed-point resolution of Snapshot.Level: one budget
// unit is LevelScale level ticks. The scale keeps rate*elapsed truncation
// error at 1/65536 of a unit, negligible against any practical capacity.
const LevelScale = 1 << 16

// Snapshot is one consistent observation of a bucket's mutable state:
// the fixed-point budget level and the instant it was last reconciled
// against elapsed time. Snapshots are immutable once published.
type Snapshot struct {
	Level      uint64
	LastUpdate time.Time
}

// UnitsToLevel converts whole budget units to fixed-point level ticks.
func UnitsToLevel(n uint64) uint64 {
	return n * LevelScale
}

// LevelToUnits converts fixed-point level ticks back to budget units.
func LevelToUnits(level uint64) float64 {
	return float64(level) / LevelScale
}
