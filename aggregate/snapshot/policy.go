package snapshot

import (
	"time"

	"github.com/eventfold/go-eventfold/version"
)

// Policy represents the behavior of the Snapshot functionality,
// advising on the frequency of the snapshots to take.
//
// The snapshot cadence is owned by the Repository, which queries the Policy
// after every successful save.
type Policy interface {
	ShouldRecord(newVersion version.Version) bool
	Record(newVersion version.Version)
}

// NeverPolicy is a Snapshot Policy that never signals to take snapshots
// when queried.
type NeverPolicy struct{}

// ShouldRecord always returns false.
func (NeverPolicy) ShouldRecord(version.Version) bool { return false }

// Record is a no-op.
func (NeverPolicy) Record(version.Version) {}

// AlwaysPolicy is a Snapshot Policy that always signals to take snapshots
// when queried.
type AlwaysPolicy struct{}

// ShouldRecord always returns true.
func (AlwaysPolicy) ShouldRecord(version.Version) bool { return true }

// Record is a no-op.
func (AlwaysPolicy) Record(version.Version) {}

// EveryVersionIncrementPolicy is a Snapshot Policy that signals to take
// snapshots every version increment specified by this value.
//
// If the number used is EveryVersionIncrementPolicy(10), it means this policy
// will signal to record a snapshot at version 10, 20, 30 and so on.
type EveryVersionIncrementPolicy version.Version

// ShouldRecord returns true when the new version modulo the increment
// specified in this policy equals to zero.
func (v EveryVersionIncrementPolicy) ShouldRecord(newVersion version.Version) bool {
	return newVersion%version.Version(v) == 0
}

// Record is a no-op, as the policy uses a stateless function.
func (EveryVersionIncrementPolicy) Record(version.Version) {}

// AtFixedIntervalsPolicy is a Snapshot Policy that signals to take snapshots
// at a fixed, specified time interval (e.g. every 1 hour, etc.)
//
// Please note: the time interval is calculated from the last snapshot
// recorded through this policy instance, not from the last snapshot found
// in the Snapshot store.
type AtFixedIntervalsPolicy struct {
	interval time.Duration
	lastTime time.Time
}

// NewAtFixedIntervalsPolicy creates an AtFixedIntervalsPolicy instance
// with the specified time interval for Snapshot recordings.
func NewAtFixedIntervalsPolicy(interval time.Duration) *AtFixedIntervalsPolicy {
	return &AtFixedIntervalsPolicy{interval: interval}
}

// ShouldRecord returns true on the first query, then after every interval
// specified during construction.
func (p *AtFixedIntervalsPolicy) ShouldRecord(version.Version) bool {
	return time.Since(p.lastTime) >= p.interval
}

// Record updates the internal state of the Policy with the current timestamp.
func (p *AtFixedIntervalsPolicy) Record(version.Version) {
	p.lastTime = time.Now()
}
