package core

import (
	"time"

	"github.com/EmmaVellard/SolarConflux/model"
)

// OpenIntervals is the tracker state: intervals still being extended, in the
// order their groups were reported at the latest timestep.
type OpenIntervals []model.ActiveInterval

// Advance folds one timestep into the tracker state. Groups already open are
// extended to at; new groups open at at; open groups missing from groups are
// closed and returned as records in state order. The input state is not
// modified.
func Advance(open OpenIntervals, groups []model.Group, at time.Time, mode model.AlignmentMode) (OpenIntervals, []model.AlignmentRecord) {
	prev := make(map[string]model.ActiveInterval, len(open))
	for _, iv := range open {
		prev[iv.Group.Key()] = iv
	}

	next := make(OpenIntervals, 0, len(groups))
	current := make(map[string]struct{}, len(groups))
	for _, g := range groups {
		key := g.Key()
		if _, dup := current[key]; dup {
			continue
		}
		current[key] = struct{}{}
		if iv, ok := prev[key]; ok {
			iv.End = at
			next = append(next, iv)
			continue
		}
		next = append(next, model.ActiveInterval{Group: g, Start: at, End: at})
	}

	var closed []model.AlignmentRecord
	for _, iv := range open {
		if _, still := current[iv.Group.Key()]; still {
			continue
		}
		closed = append(closed, closeInterval(iv, mode))
	}
	return next, closed
}

// Flush closes every interval still open after the final timestep.
func Flush(open OpenIntervals, mode model.AlignmentMode) []model.AlignmentRecord {
	out := make([]model.AlignmentRecord, 0, len(open))
	for _, iv := range open {
		out = append(out, closeInterval(iv, mode))
	}
	return out
}

// Track runs the whole fold over groups-per-timestep and returns every record
// in emission order. groups[i] belongs to times[i].
func Track(times []time.Time, groups [][]model.Group, mode model.AlignmentMode) []model.AlignmentRecord {
	var (
		open    OpenIntervals
		records []model.AlignmentRecord
	)
	for i, at := range times {
		var closed []model.AlignmentRecord
		open, closed = Advance(open, groups[i], at, mode)
		records = append(records, closed...)
	}
	return append(records, Flush(open, mode)...)
}

func closeInterval(iv model.ActiveInterval, mode model.AlignmentMode) model.AlignmentRecord {
	return model.AlignmentRecord{
		Start: iv.Start,
		End:   iv.End,
		Mode:  mode,
		Group: iv.Group,
	}
}
