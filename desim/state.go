package desim

// mergeData shallow-merges delta over prev: keys present in delta win,
// everything else from prev survives. Used by the inheritance rule to
// combine a process's stored/parent data with an event's own
// ProcessCall.Data. prev is never mutated.
func mergeData(prev, delta StateData) StateData {
	if len(delta) == 0 && prev != nil {
		out := make(StateData, len(prev))
		for k, v := range prev {
			out[k] = v
		}
		return out
	}
	out := make(StateData, len(prev)+len(delta))
	for k, v := range prev {
		out[k] = v
	}
	for k, v := range delta {
		out[k] = v
	}
	return out
}
