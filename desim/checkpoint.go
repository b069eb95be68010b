package desim

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lattice-sim/desim/desim/emit"
	"github.com/lattice-sim/desim/desim/persist"
)

// Manifest is the run-level record a Backend stores at "<runDirectory>run.json",
// rewritten on every checkpoint and on context creation.
type Manifest struct {
	RunID     string         `json:"runId"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	RunRoot   string         `json:"runRoot"`
	Dump      DumpManifest   `json:"dump"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// DumpManifest tracks the checkpoint dump sequence for a run.
type DumpManifest struct {
	Directory string `json:"directory"`
	Interval  int    `json:"interval"`
	Count     int    `json:"count"`
	LastFile  string `json:"lastFile,omitempty"`
}

// runContext bundles the resolved options, manifest, and running sequence
// number for one RunSimulation/RunSimulationWithDeltas call.
type runContext struct {
	opts     RunOptions
	manifest Manifest
	seq      int
}

// resolveRunContext creates (or, if a manifest already exists at the run's
// key, resumes) the run's bookkeeping. "Ensuring directories" has no
// analogue for a Backend's flat keyspace; writing the initial manifest is
// the equivalent readiness step.
func resolveRunContext(ctx context.Context, opts RunOptions) (*runContext, error) {
	rc := &runContext{
		opts: opts,
		manifest: Manifest{
			RunID:     opts.RunID,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
			RunRoot:   opts.RunDirectory,
			Dump: DumpManifest{
				Directory: opts.RunDirectory + "dumps/",
				Interval:  opts.DumpInterval,
			},
			Metadata: opts.RunMetadata,
		},
	}

	if opts.Backend == nil {
		return rc, nil
	}

	if existing, err := opts.Backend.Get(ctx, opts.RunDirectory+"run.json"); err == nil {
		var m Manifest
		if err := json.Unmarshal(existing, &m); err != nil {
			return nil, &CheckpointIOError{Op: "read", Path: opts.RunDirectory + "run.json", Cause: err}
		}
		rc.manifest = m
		rc.manifest.UpdatedAt = time.Now()
		rc.seq = m.Dump.Count
		if recovered, err := recoverDumpCount(ctx, opts.Backend, rc.manifest.Dump.Directory); err == nil && recovered > rc.seq {
			rc.seq = recovered
			rc.manifest.Dump.Count = recovered
		}
	} else if err == persist.ErrNotFound {
		// No manifest at all: a prior run may have written dumps and crashed
		// before ever persisting run.json. List the dump directory so a
		// resumed run continues the sequence instead of overwriting it from 0.
		if recovered, err := recoverDumpCount(ctx, opts.Backend, rc.manifest.Dump.Directory); err == nil {
			rc.seq = recovered
			rc.manifest.Dump.Count = recovered
		}
	} else {
		return nil, &CheckpointIOError{Op: "read", Path: opts.RunDirectory + "run.json", Cause: err}
	}

	if err := rc.writeManifest(ctx); err != nil {
		return nil, err
	}
	return rc, nil
}

// recoverDumpCount lists every dump key under dir and returns the count, the
// fallback source of truth for DumpManifest.Count when the manifest itself
// is missing or was written before the backend's last known-good dump.
func recoverDumpCount(ctx context.Context, backend persist.Backend, dir string) (int, error) {
	keys, err := backend.List(ctx, dir)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

func (rc *runContext) writeManifest(ctx context.Context) error {
	if rc.opts.Backend == nil {
		return nil
	}
	rc.manifest.UpdatedAt = time.Now()
	data, err := json.Marshal(rc.manifest)
	if err != nil {
		return &CheckpointIOError{Op: "write", Path: rc.manifest.RunRoot + "run.json", Cause: err}
	}
	path := rc.manifest.RunRoot + "run.json"
	if err := rc.opts.Backend.Put(ctx, path, data); err != nil {
		return &CheckpointIOError{Op: "write", Path: path, Cause: err}
	}
	return nil
}

// dumpPath computes the "{sequence}-t{currentTime}.json" key for a dump,
// placed under "<runDirectory>dumps/".
func (rc *runContext) dumpPath(at Timestamp) string {
	rc.seq++
	return fmt.Sprintf("%sdumps/%d-t%d.json", rc.opts.RunDirectory, rc.seq, at)
}

// writeDump serializes enc and persists it via the run's Backend, then
// updates and rewrites the manifest.
func (rc *runContext) writeDump(ctx context.Context, enc DeltaEncodedSimulation) (string, error) {
	path := rc.dumpPath(enc.Current.CurrentTime)
	data, err := json.Marshal(enc)
	if err != nil {
		return "", &CheckpointIOError{Op: "write", Path: path, Cause: err}
	}
	if err := rc.opts.Backend.Put(ctx, path, data); err != nil {
		return "", &CheckpointIOError{Op: "write", Path: path, Cause: err}
	}
	rc.manifest.Dump.Count = rc.seq
	rc.manifest.Dump.LastFile = path
	if err := rc.writeManifest(ctx); err != nil {
		return "", err
	}
	return path, nil
}

// pruneWorkingState retains only events/status/transitions whose id is not
// Finished, and retains ProcessState only for ids still referenced as a
// parent of some retained event (plus the retained ids themselves). Stores
// are retained as-is.
func pruneWorkingState(sim *Simulation) *Simulation {
	out := &Simulation{
		CurrentTime: sim.CurrentTime,
		Timeline: Timeline{
			Events: make(map[EventID]Event),
			Status: make(map[EventID]EventState),
		},
		State:    make(map[EventID]ProcessState),
		Stores:   make(map[StoreID]Store, len(sim.Stores)),
		Registry: sim.Registry,
		Metrics:  sim.Metrics,
		RunID:    sim.RunID,
	}

	retained := make(map[EventID]bool)
	for id, status := range sim.Timeline.Status {
		if status == Finished {
			continue
		}
		retained[id] = true
		out.Timeline.Events[id] = sim.Timeline.Events[id]
		out.Timeline.Status[id] = status
	}

	for _, t := range sim.Timeline.Transitions {
		if retained[t.ID] {
			out.Timeline.Transitions = append(out.Timeline.Transitions, t)
		}
	}

	referenced := make(map[EventID]bool)
	for id := range retained {
		referenced[id] = true
		if ev, ok := sim.Timeline.Events[id]; ok && ev.Parent != nil {
			referenced[*ev.Parent] = true
		}
	}
	for id, st := range sim.State {
		if referenced[id] {
			out.State[id] = st
		}
	}

	for id, s := range sim.Stores {
		out.Stores[id] = s
	}

	return out
}

// mergeReplayState folds curr over prev: timeline transitions concatenate
// (prev then curr), events/status/state/stores are overlaid with curr
// taking precedence, and scalar fields (CurrentTime) are inherited from
// curr, the chronologically later snapshot.
func mergeReplayState(prev, curr *Simulation) *Simulation {
	out := &Simulation{
		CurrentTime: curr.CurrentTime,
		Timeline: Timeline{
			Events: make(map[EventID]Event, len(prev.Timeline.Events)+len(curr.Timeline.Events)),
			Status: make(map[EventID]EventState, len(prev.Timeline.Status)+len(curr.Timeline.Status)),
		},
		State:    make(map[EventID]ProcessState, len(prev.State)+len(curr.State)),
		Stores:   make(map[StoreID]Store, len(prev.Stores)+len(curr.Stores)),
		Registry: curr.Registry,
	}

	out.Timeline.Transitions = append(out.Timeline.Transitions, prev.Timeline.Transitions...)
	out.Timeline.Transitions = append(out.Timeline.Transitions, curr.Timeline.Transitions...)

	for id, ev := range prev.Timeline.Events {
		out.Timeline.Events[id] = ev
	}
	for id, ev := range curr.Timeline.Events {
		out.Timeline.Events[id] = ev
	}
	for id, st := range prev.Timeline.Status {
		out.Timeline.Status[id] = st
	}
	for id, st := range curr.Timeline.Status {
		out.Timeline.Status[id] = st
	}
	for id, s := range prev.State {
		out.State[id] = s
	}
	for id, s := range curr.State {
		out.State[id] = s
	}
	for id, s := range prev.Stores {
		out.Stores[id] = s
	}
	for id, s := range curr.Stores {
		out.Stores[id] = s
	}

	return out
}

// reconstructFullCurrent reads each checkpoint dump in order, takes its
// final snapshot, folds them left-to-right via mergeReplayState, then folds
// the in-memory tail on top.
func reconstructFullCurrent(ctx context.Context, backend persist.Backend, checkpoints []string, tail *Simulation) (*Simulation, error) {
	var merged *Simulation
	for _, path := range checkpoints {
		data, err := backend.Get(ctx, path)
		if err != nil {
			return nil, &CheckpointIOError{Op: "read", Path: path, Cause: err}
		}
		var enc DeltaEncodedSimulation
		if err := json.Unmarshal(data, &enc); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrCorruptCheckpoint, path, err)
		}
		final := ReconstructFinalFromDeltas(enc)
		if merged == nil {
			merged = final
		} else {
			merged = mergeReplayState(merged, final)
		}
	}
	if merged == nil {
		return tail, nil
	}
	return mergeReplayState(merged, tail), nil
}

// countScheduled returns how many events are currently Scheduled (awaiting
// dispatch), for the scheduled_events gauge.
func countScheduled(sim *Simulation) int {
	n := 0
	for _, status := range sim.Timeline.Status {
		if status == Scheduled {
			n++
		}
	}
	return n
}

// RunSimulation drives the scheduler to completion (or to the first
// termination condition satisfied), returning the final Simulation and
// summary Stats. History is accumulated internally as deltas for
// checkpointing purposes but discarded from the return value; use
// RunSimulationWithDeltas to keep it.
func RunSimulation(ctx context.Context, sim *Simulation, opts ...Option) (*Simulation, Stats, error) {
	enc, stats, err := RunSimulationWithDeltas(ctx, sim, opts...)
	if err != nil {
		return nil, Stats{}, err
	}
	return enc.Current, stats, nil
}

// RunSimulationWithDeltas drives the scheduler per the run loop contract
// (see Checkpoint Runner): dispatch one event at a time, accumulate deltas,
// periodically dump to the configured Backend and prune the in-memory
// working set, and on completion fold any on-disk checkpoints back into a
// single replay-complete snapshot.
func RunSimulationWithDeltas(ctx context.Context, sim *Simulation, opts ...Option) (DeltaEncodedSimulation, Stats, error) {
	resolved := resolveOptions(opts)

	var rc *runContext
	if resolved.Backend != nil {
		var err error
		rc, err = resolveRunContext(ctx, resolved)
		if err != nil {
			return DeltaEncodedSimulation{}, Stats{}, err
		}
	} else {
		rc = &runContext{opts: resolved}
	}

	if resolved.Metrics != nil {
		sim.Metrics = resolved.Metrics
		sim.RunID = resolved.RunID
	}

	enc := DeltaEncodedSimulation{Base: sim, Current: sim}
	var checkpoints []string
	steps := 0
	emitter := resolved.Emitter

	for {
		started := time.Now()
		result, err := Dispatch(ctx, enc.Current)
		if err != nil {
			return DeltaEncodedSimulation{}, Stats{}, err
		}
		if !result.More && result.Next == enc.Current {
			break
		}

		firedType := result.Next.Timeline.Events[result.Fired].Process.Type
		if resolved.Metrics != nil {
			resolved.Metrics.ObserveStepLatency(resolved.RunID, firedType, time.Since(started).Seconds())
			resolved.Metrics.SetScheduledEvents(countScheduled(result.Next))
			for id, st := range result.Next.Stores {
				resolved.Metrics.SetStoreOccupancy(resolved.RunID, id, len(st.Buffer))
			}
		}
		emitter.Emit(emit.Event{
			RunID:       resolved.RunID,
			Time:        int64(result.Next.CurrentTime),
			EventID:     string(result.Fired),
			ProcessType: string(firedType),
			Msg:         "dispatch",
		})

		enc.Deltas = append(enc.Deltas, CreateDelta(enc.Current, result.Next))
		enc.Current = result.Next
		steps++

		if d := resolved.pacingDelay(); d > 0 {
			if err := pace(ctx, d); err != nil {
				return DeltaEncodedSimulation{}, Stats{}, err
			}
		}

		done := resolved.terminate(enc.Current)

		if resolved.Backend != nil && len(enc.Deltas) >= resolved.DumpInterval {
			path, err := rc.writeDump(ctx, enc)
			if err != nil {
				return DeltaEncodedSimulation{}, Stats{}, err
			}
			checkpoints = append(checkpoints, path)
			compacted := pruneWorkingState(enc.Current)
			enc.Base = compacted
			enc.Deltas = nil
			enc.Current = compacted

			if resolved.Metrics != nil {
				resolved.Metrics.IncCheckpointDumps(resolved.RunID)
			}
			emitter.Emit(emit.Event{
				RunID: resolved.RunID,
				Time:  int64(enc.Current.CurrentTime),
				Msg:   "checkpoint_dump",
				Meta:  map[string]interface{}{"dump_path": path},
			})
		}

		if done {
			break
		}
		if !result.More {
			break
		}
	}

	if err := emitter.Flush(ctx); err != nil {
		return DeltaEncodedSimulation{}, Stats{}, err
	}

	if len(checkpoints) > 0 {
		full, err := reconstructFullCurrent(ctx, resolved.Backend, checkpoints, enc.Current)
		if err != nil {
			return DeltaEncodedSimulation{}, Stats{}, err
		}
		enc.Current = full
		enc.Base = full
		enc.Deltas = nil
	}

	return enc, Stats{End: enc.Current.CurrentTime, Steps: steps, Checkpoints: len(checkpoints)}, nil
}
