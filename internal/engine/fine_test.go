package engine_test

import (
	"testing"
	"time"

	"pgregory.net/rapid"

	"toolroom/internal/engine"
)

func TestLateDaysExamples(t *testing.T) {
	end := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		ret  time.Time
		want int64
	}{
		{"early", end.Add(-time.Hour), 0},
		{"exactly on time", end, 0},
		{"one minute late", end.Add(time.Minute), 1},
		{"exactly one day", end.Add(24 * time.Hour), 1},
		{"one day and a second", end.Add(24*time.Hour + time.Second), 2},
		{"three days", end.Add(72 * time.Hour), 3},
	}
	for _, tc := range cases {
		if got := engine.LateDays(end, tc.ret); got != tc.want {
			t.Errorf("%s: got %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestFineNeverNegative(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		rate := rapid.Int64Range(0, 100000).Draw(t, "rate")
		end := time.Unix(rapid.Int64Range(0, 1<<32).Draw(t, "end"), 0).UTC()
		ret := time.Unix(rapid.Int64Range(0, 1<<32).Draw(t, "ret"), 0).UTC()
		fine := engine.FineCents(rate, end, ret)
		if fine < 0 {
			t.Fatalf("negative fine %d", fine)
		}
		if !ret.After(end) && fine != 0 {
			t.Fatalf("fine %d for on-time return", fine)
		}
	})
}

func TestFineMonotonicInLateness(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		rate := rapid.Int64Range(1, 100000).Draw(t, "rate")
		end := time.Unix(rapid.Int64Range(0, 1<<32).Draw(t, "end"), 0).UTC()
		late1 := rapid.Int64Range(0, 1<<20).Draw(t, "late1")
		extra := rapid.Int64Range(0, 1<<20).Draw(t, "extra")
		f1 := engine.FineCents(rate, end, end.Add(time.Duration(late1)*time.Second))
		f2 := engine.FineCents(rate, end, end.Add(time.Duration(late1+extra)*time.Second))
		if f2 < f1 {
			t.Fatalf("later return charged less: %d < %d", f2, f1)
		}
	})
}

func TestFineScalesWithRate(t *testing.T) {
	end := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	ret := end.Add(5 * 24 * time.Hour)
	if got := engine.FineCents(250, end, ret); got != 1250 {
		t.Fatalf("got %d, want 1250", got)
	}
	if got := engine.FineCents(0, end, ret); got != 0 {
		t.Fatalf("zero rate must yield zero fine, got %d", got)
	}
}
