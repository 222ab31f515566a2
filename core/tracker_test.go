package core

import (
	"testing"
	"time"

	"github.com/EmmaVellard/SolarConflux/model"
)

func hourly(n int) []time.Time {
	t0 := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	out := make([]time.Time, n)
	for i := range out {
		out[i] = t0.Add(time.Duration(i) * time.Hour)
	}
	return out
}

func TestTrackSplitsOnGap(t *testing.T) {
	times := hourly(9)
	ab := model.NewGroup("A", "B")
	groups := make([][]model.Group, len(times))
	for i := range times {
		if i != 5 {
			groups[i] = []model.Group{ab}
		}
	}

	records := Track(times, groups, model.ModeCone)
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d: %+v", len(records), records)
	}
	if !records[0].Start.Equal(times[0]) || !records[0].End.Equal(times[4]) {
		t.Fatalf("first record = [%v, %v], want [%v, %v]", records[0].Start, records[0].End, times[0], times[4])
	}
	if !records[1].Start.Equal(times[6]) || !records[1].End.Equal(times[8]) {
		t.Fatalf("second record = [%v, %v], want [%v, %v]", records[1].Start, records[1].End, times[6], times[8])
	}
	for _, r := range records {
		if r.Mode != model.ModeCone || !r.Group.Equal(ab) {
			t.Fatalf("unexpected record %+v", r)
		}
	}
}

func TestAdvanceIsPure(t *testing.T) {
	times := hourly(2)
	ab := model.NewGroup("A", "B")
	open, closed := Advance(nil, []model.Group{ab}, times[0], model.ModeCone)
	if len(closed) != 0 || len(open) != 1 {
		t.Fatalf("first step: open=%v closed=%v", open, closed)
	}

	snapshot := append(OpenIntervals(nil), open...)
	next, closed := Advance(open, []model.Group{ab}, times[1], model.ModeCone)
	if len(closed) != 0 || len(next) != 1 || !next[0].End.Equal(times[1]) || !next[0].Start.Equal(times[0]) {
		t.Fatalf("second step should extend the interval: next=%v closed=%v", next, closed)
	}
	if !open[0].End.Equal(snapshot[0].End) {
		t.Fatalf("Advance mutated its input state")
	}

	empty, closed := Advance(next, nil, times[1].Add(time.Hour), model.ModeCone)
	if len(empty) != 0 || len(closed) != 1 {
		t.Fatalf("group disappearing should close it: open=%v closed=%v", empty, closed)
	}
	if !closed[0].End.Equal(times[1]) {
		t.Fatalf("closed record should end at last-seen time, got %v", closed[0].End)
	}
}

func TestTrackFlushesAtFinalStep(t *testing.T) {
	times := hourly(3)
	ab := model.NewGroup("A", "B")
	bc := model.NewGroup("B", "C")
	groups := [][]model.Group{{ab}, {ab, bc}, {ab, bc}}

	records := Track(times, groups, model.ModeQuadrature)
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %+v", records)
	}
	for _, r := range records {
		if !r.End.Equal(times[2]) {
			t.Fatalf("still-open intervals must close at the final timestep, got %+v", r)
		}
	}
	if !records[0].Group.Equal(ab) || !records[0].Start.Equal(times[0]) {
		t.Fatalf("first flushed record should be {A,B} from t0, got %+v", records[0])
	}
	if !records[1].Group.Equal(bc) || !records[1].Start.Equal(times[1]) {
		t.Fatalf("second flushed record should be {B,C} from t1, got %+v", records[1])
	}
}

func TestTrackMembershipChangeOpensNewInterval(t *testing.T) {
	times := hourly(3)
	ab := model.NewGroup("A", "B")
	abc := model.NewGroup("A", "B", "C")
	records := Track(times, [][]model.Group{{ab}, {abc}, {ab}}, model.ModeCone)
	if len(records) != 3 {
		t.Fatalf("each membership change should produce its own record, got %+v", records)
	}
}
