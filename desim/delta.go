package desim

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/google/go-cmp/cmp"
)

// SimulationDelta is the structural difference between two consecutive
// Simulation snapshots: only the fields that changed, keyed the same way the
// full Simulation is. A nil/zero field means "no change in that collection",
// not "cleared" — appliers must never interpret absence as deletion for the
// map-shaped fields, only IDs actually listed in Removed* do that.
type SimulationDelta struct {
	FromTime Timestamp `json:"fromTime"`
	ToTime   Timestamp `json:"toTime"`

	// Timeline changes.
	EventsAdded      map[EventID]Event      `json:"eventsAdded,omitempty"`
	StatusChanged     map[EventID]EventState `json:"statusChanged,omitempty"`
	TransitionsAdded []Transition           `json:"transitionsAdded,omitempty"`

	// Process state changes.
	StateChanged map[EventID]ProcessState `json:"stateChanged,omitempty"`
	StateRemoved []EventID                `json:"stateRemoved,omitempty"`

	// Store changes, whole-value (a Store is small and already copy-on-write;
	// diffing its three queues individually buys little and complicates
	// reconstruction).
	StoresChanged map[StoreID]Store `json:"storesChanged,omitempty"`

	// ContentHash is the SHA-256 of the canonical JSON of the delta's own
	// fields (hash computed with this field empty), letting a consumer verify
	// a delta was not corrupted in transit or at rest.
	ContentHash string `json:"contentHash"`
}

// CreateDelta computes the structural difference from prev to curr. Either
// may be nil only in the sense of pointing at zero-value Simulations; callers
// normally pass the two snapshots straddling one Dispatch call.
func CreateDelta(prev, curr *Simulation) SimulationDelta {
	d := SimulationDelta{FromTime: prev.CurrentTime, ToTime: curr.CurrentTime}

	eventsAdded := make(map[EventID]Event)
	for id, ev := range curr.Timeline.Events {
		if old, ok := prev.Timeline.Events[id]; !ok || !cmp.Equal(old, ev) {
			eventsAdded[id] = ev
		}
	}
	if len(eventsAdded) > 0 {
		d.EventsAdded = eventsAdded
	}

	statusChanged := make(map[EventID]EventState)
	for id, st := range curr.Timeline.Status {
		if old, ok := prev.Timeline.Status[id]; !ok || old != st {
			statusChanged[id] = st
		}
	}
	if len(statusChanged) > 0 {
		d.StatusChanged = statusChanged
	}

	if added := curr.Timeline.Transitions[len(prev.Timeline.Transitions):]; len(added) > 0 {
		d.TransitionsAdded = append([]Transition(nil), added...)
	}

	stateChanged := make(map[EventID]ProcessState)
	for id, s := range curr.State {
		if old, ok := prev.State[id]; !ok || !cmp.Equal(old, s) {
			stateChanged[id] = s
		}
	}
	if len(stateChanged) > 0 {
		d.StateChanged = stateChanged
	}

	var stateRemoved []EventID
	for id := range prev.State {
		if _, ok := curr.State[id]; !ok {
			stateRemoved = append(stateRemoved, id)
		}
	}
	if len(stateRemoved) > 0 {
		d.StateRemoved = stateRemoved
	}

	storesChanged := make(map[StoreID]Store)
	for id, s := range curr.Stores {
		if old, ok := prev.Stores[id]; !ok || !cmp.Equal(old, s) {
			storesChanged[id] = s
		}
	}
	if len(storesChanged) > 0 {
		d.StoresChanged = storesChanged
	}

	d.ContentHash = hashDelta(d)
	return d
}

// hashDelta computes the SHA-256 hex digest of a delta's canonical JSON with
// ContentHash itself cleared, so the hash never depends on its own value.
func hashDelta(d SimulationDelta) string {
	d.ContentHash = ""
	b, err := json.Marshal(d)
	if err != nil {
		// Every field is a plain JSON-able type; a marshal failure here means
		// a future field addition broke that invariant.
		panic("desim: delta not JSON-marshalable: " + err.Error())
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// ApplyDelta reconstructs the successor Simulation by layering d over base.
// base is never mutated. Satisfies the round-trip law: for any prev, curr,
// ApplyDelta(prev, CreateDelta(prev, curr)) is structurally equal to curr.
func ApplyDelta(base *Simulation, d SimulationDelta) *Simulation {
	out := base.clone()
	out.CurrentTime = d.ToTime

	for id, ev := range d.EventsAdded {
		out.Timeline.Events[id] = ev
	}
	for id, st := range d.StatusChanged {
		out.Timeline.Status[id] = st
	}
	out.Timeline.Transitions = append(out.Timeline.Transitions, d.TransitionsAdded...)

	for id, s := range d.StateChanged {
		out.State[id] = s
	}
	for _, id := range d.StateRemoved {
		delete(out.State, id)
	}

	for id, s := range d.StoresChanged {
		out.Stores[id] = s
	}

	return out
}

// DeltaEncodedSimulation is the on-disk shape of a fully delta-compressed
// run history: one base snapshot, every subsequent delta in order, and the
// live current snapshot they reconstruct to (kept alongside rather than
// recomputed so a reader need not replay deltas just to see where a run
// stands).
type DeltaEncodedSimulation struct {
	Base    *Simulation       `json:"base"`
	Deltas  []SimulationDelta `json:"deltas"`
	Current *Simulation       `json:"current"`
}

// ReconstructFromDeltas replays every delta in order starting from enc.Base
// and returns the full sequence of intermediate snapshots it passes
// through: [enc.Base, ApplyDelta(enc.Base, enc.Deltas[0]), ...], one entry
// longer than enc.Deltas. The last entry is equivalent to the final live
// snapshot the run actually produced; callers after only that need
// ReconstructFinalFromDeltas instead of discarding the rest of the slice.
func ReconstructFromDeltas(enc DeltaEncodedSimulation) []*Simulation {
	seq := make([]*Simulation, 0, len(enc.Deltas)+1)
	cur := enc.Base
	seq = append(seq, cur)
	for _, d := range enc.Deltas {
		cur = ApplyDelta(cur, d)
		seq = append(seq, cur)
	}
	return seq
}

// ReconstructFinalFromDeltas replays every delta in order starting from
// enc.Base and returns only the resulting final Simulation, equivalent to
// the final live snapshot the run actually produced.
func ReconstructFinalFromDeltas(enc DeltaEncodedSimulation) *Simulation {
	seq := ReconstructFromDeltas(enc)
	return seq[len(seq)-1]
}
