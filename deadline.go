// SPDX-License-Identifier: GPL-3.0-or-later

package flowmesh

import "time"

// E2EDeadlineRecord declares an end-to-end deadline from one node's output
// port to another node's input port: the duration within which a
// message emitted at From must be observed at To. Attached to every [DataMessage]
// message whose From matches, at the moment of emission, and carried
// unchanged to every downstream node until it reaches To.
type E2EDeadlineRecord struct {
	From     NodeOutputRef
	To       NodeInputRef
	Duration time.Duration
}

// E2EDeadlineMiss records that a message carrying r was observed at r.To at
// or after r's deadline elapsed. Appended to
// [DataMessage.MissedEndToEndDeadlines] by the runner hosting r.To; never
// reported more than once for the same record.
type E2EDeadlineMiss struct {
	Record  E2EDeadlineRecord
	Elapsed time.Duration
}

// check reports a miss for r against message timestamp emitted and
// observation time now, if r.To equals the (node, port) pair observing the
// message and the deadline has elapsed. Returns false otherwise, including
// when r.To does not match — the caller is expected to still propagate r
// downstream in that case.
func (r E2EDeadlineRecord) check(node NodeId, port PortId, emitted, now Timestamp) (E2EDeadlineMiss, bool) {
	if r.To.Node != node || r.To.Input != port {
		return E2EDeadlineMiss{}, false
	}
	elapsed := now.Physical.Sub(emitted.Physical)
	if elapsed < r.Duration {
		return E2EDeadlineMiss{}, false
	}
	return E2EDeadlineMiss{Record: r, Elapsed: elapsed}, true
}

// LocalDeadlineMiss reports that an [OperatorRunner]'s synchronous compute
// call exceeded its configured local deadline duration.
type LocalDeadlineMiss struct {
	Elapsed time.Duration
}
