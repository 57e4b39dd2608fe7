// SPDX-License-Identifier: GPL-3.0-or-later

package flowmesh

import (
	"fmt"
	"sync"
	"time"
)

// Timestamp is a hybrid logical clock timestamp: physical time, a logical
// counter breaking ties within the same physical tick, and the id of the
// [HLC] that produced it. Timestamps are totally ordered by
// [Timestamp.Compare].
type Timestamp struct {
	Physical time.Time
	Logical  uint64
	Producer RuntimeId
}

// Compare returns -1, 0, or 1 as t is less than, equal to, or greater than o,
// comparing physical time first, then the logical counter, then the
// producer id as a final tiebreaker so that [Timestamp.Compare] is a total
// order even across two producers that raced to the same (physical, logical)
// pair.
func (t Timestamp) Compare(o Timestamp) int {
	if !t.Physical.Equal(o.Physical) {
		if t.Physical.Before(o.Physical) {
			return -1
		}
		return 1
	}
	if t.Logical != o.Logical {
		if t.Logical < o.Logical {
			return -1
		}
		return 1
	}
	if t.Producer != o.Producer {
		if t.Producer < o.Producer {
			return -1
		}
		return 1
	}
	return 0
}

// Before reports whether t is strictly less than o.
func (t Timestamp) Before(o Timestamp) bool {
	return t.Compare(o) < 0
}

// HLC is a hybrid logical clock: [HLC.NewTimestamp] produces a
// timestamp strictly greater than any previously produced by this clock;
// [HLC.UpdateWithTimestamp] advances the clock to dominate a received
// timestamp, bounded by a configured drift limit.
//
// The zero value is not usable; construct with [NewHLC]. Safe for concurrent
// use: all state is guarded by a single mutex, since the HLC is one of the
// few kinds of state shared between runners.
type HLC struct {
	mu         sync.Mutex
	physical   time.Time
	logical    uint64
	producer   RuntimeId
	now        func() time.Time
	driftBound time.Duration
}

// NewHLC returns a new [*HLC] owned by the given [RuntimeId], using now to
// read physical time (defaulting to [time.Now] semantics via the caller's
// [Config.TimeNow]) and rejecting received timestamps that lie more than
// driftBound in the future of the local physical clock.
func NewHLC(producer RuntimeId, now func() time.Time, driftBound time.Duration) *HLC {
	return &HLC{
		physical:   now(),
		producer:   producer,
		now:        now,
		driftBound: driftBound,
	}
}

// NewTimestamp produces a [Timestamp] strictly greater than any previously
// produced by this clock.
func (h *HLC) NewTimestamp() Timestamp {
	h.mu.Lock()
	defer h.mu.Unlock()

	physNow := h.now()
	if !physNow.After(h.physical) {
		h.logical++
	} else {
		h.physical = physNow
		h.logical = 0
	}
	return Timestamp{Physical: h.physical, Logical: h.logical, Producer: h.producer}
}

// UpdateWithTimestamp advances the clock to dominate t: the next
// [HLC.NewTimestamp] will return a value strictly greater than t. It fails
// with [ErrInvalidData] if t's physical time
// is further in the future of the local physical clock than the configured
// drift bound, in which case the caller should log and proceed with a
// weaker timestamp guarantee.
func (h *HLC) UpdateWithTimestamp(t Timestamp) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	physNow := h.now()
	if t.Physical.Sub(physNow) > h.driftBound {
		return fmt.Errorf("%w: received timestamp %s exceeds drift bound %s ahead of local time %s",
			ErrInvalidData, t.Physical, h.driftBound, physNow)
	}

	switch {
	case t.Physical.After(h.physical) && !t.Physical.Before(physNow):
		h.physical = t.Physical
		h.logical = t.Logical + 1
	case t.Physical.Equal(h.physical):
		if t.Logical >= h.logical {
			h.logical = t.Logical + 1
		}
	case physNow.After(h.physical) && physNow.After(t.Physical):
		h.physical = physNow
		h.logical = 0
	default:
		h.logical++
	}
	return nil
}

// Now returns the most recent [Timestamp] state without advancing the
// clock, for tests and diagnostics.
func (h *HLC) Now() Timestamp {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Timestamp{Physical: h.physical, Logical: h.logical, Producer: h.producer}
}
