package analysis

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestAggregator_zero_frames_zero_accuracy(t *testing.T) {
	a := NewAggregator(30)

	m := a.Snapshot()
	if m.PostureAccuracy != 0 {
		t.Errorf("accuracy with no frames: got %v want 0", m.PostureAccuracy)
	}
	if m.PerformanceRating != RatingNeedsImprovement {
		t.Errorf("rating with no frames: got %s", m.PerformanceRating)
	}
}

func TestAggregator_rep_counts(t *testing.T) {
	a := NewAggregator(30)

	for i := 0; i < 7; i++ {
		if err := a.OnRep(i%3 != 0); err != nil {
			t.Fatalf("OnRep: %v", err)
		}
	}

	m := a.Snapshot()
	if m.TotalReps != 7 || m.CorrectReps != 4 || m.IncorrectReps != 3 {
		t.Errorf("reps: got %d/%d/%d want 7/4/3", m.TotalReps, m.CorrectReps, m.IncorrectReps)
	}
}

func TestAggregator_accuracy_and_rating(t *testing.T) {
	a := NewAggregator(30)

	for i := 0; i < 10; i++ {
		_ = a.OnVerdict(Verdict{Correct: i < 8, Deviation: 5})
	}

	m := a.Snapshot()
	if math.Abs(m.PostureAccuracy-80) > 1e-9 {
		t.Errorf("accuracy: got %v want 80", m.PostureAccuracy)
	}
	if m.PerformanceRating != RatingGood {
		t.Errorf("rating at 80%%: got %s want good", m.PerformanceRating)
	}
}

func TestAggregator_rating_thresholds(t *testing.T) {
	cases := []struct {
		correct, total int
		want           Rating
	}{
		{10, 10, RatingExcellent},
		{9, 10, RatingExcellent},
		{8, 10, RatingGood},
		{7, 10, RatingNeedsImprovement},
	}
	for _, tc := range cases {
		a := NewAggregator(30)
		for i := 0; i < tc.total; i++ {
			_ = a.OnVerdict(Verdict{Correct: i < tc.correct})
		}
		if got := a.Snapshot().PerformanceRating; got != tc.want {
			t.Errorf("%d/%d: got %s want %s", tc.correct, tc.total, got, tc.want)
		}
	}
}

func TestAggregator_indeterminate_verdicts_ignored(t *testing.T) {
	a := NewAggregator(30)

	_ = a.OnVerdict(Verdict{Indeterminate: true, Deviation: 99})
	_ = a.OnVerdict(Verdict{Correct: true, Deviation: 4})

	m := a.Snapshot()
	if m.PostureAccuracy != 100 {
		t.Errorf("accuracy: got %v want 100 (indeterminate ignored)", m.PostureAccuracy)
	}
	if math.Abs(m.AverageJointDeviation-4) > 1e-9 {
		t.Errorf("deviation mean: got %v want 4", m.AverageJointDeviation)
	}
}

func TestAggregator_misalignment_counts_per_period(t *testing.T) {
	a := NewAggregator(30)

	// 10 consecutive incorrect frames are one alert, not ten.
	_ = a.OnVerdict(Verdict{Correct: true})
	for i := 0; i < 10; i++ {
		_ = a.OnVerdict(Verdict{Correct: false, Deviation: 20})
	}
	_ = a.OnVerdict(Verdict{Correct: true})
	for i := 0; i < 5; i++ {
		_ = a.OnVerdict(Verdict{Correct: false, Deviation: 20})
	}

	m := a.Snapshot()
	if m.MisalignmentsCount != 2 {
		t.Errorf("misalignments: got %d want 2", m.MisalignmentsCount)
	}
}

func TestAggregator_form_alert_only_when_severe(t *testing.T) {
	a := NewAggregator(30)

	for i := 0; i < 5; i++ {
		_ = a.OnVerdict(Verdict{Correct: false, Deviation: 20})
	}
	m := a.Snapshot()
	if m.IncorrectFormAlerts != 0 {
		t.Errorf("mild incorrect period should not raise a form alert, got %d", m.IncorrectFormAlerts)
	}

	for i := 0; i < 5; i++ {
		_ = a.OnVerdict(Verdict{Correct: false, Deviation: 45})
	}
	m = a.Snapshot()
	if m.IncorrectFormAlerts != 1 {
		t.Errorf("severe period: got %d alerts want 1", m.IncorrectFormAlerts)
	}
}

func TestAggregator_running_mean(t *testing.T) {
	a := NewAggregator(30)

	for _, d := range []float64{2, 4, 6} {
		_ = a.OnVerdict(Verdict{Correct: true, Deviation: d})
	}
	m := a.Snapshot()
	if math.Abs(m.AverageJointDeviation-4) > 1e-9 {
		t.Errorf("mean deviation: got %v want 4", m.AverageJointDeviation)
	}
}

func TestAggregator_finalize_freezes(t *testing.T) {
	a := NewAggregator(30)

	_ = a.OnRep(true)
	_ = a.OnVerdict(Verdict{Correct: true, Deviation: 3})

	final := a.Finalize(90 * time.Second)
	if final.SessionDuration != 90 {
		t.Errorf("duration: got %d want 90", final.SessionDuration)
	}

	if err := a.OnRep(true); !errors.Is(err, ErrFinalized) {
		t.Errorf("OnRep after finalize: got %v want ErrFinalized", err)
	}
	if err := a.OnVerdict(Verdict{Correct: false}); !errors.Is(err, ErrFinalized) {
		t.Errorf("OnVerdict after finalize: got %v want ErrFinalized", err)
	}

	if got := a.Snapshot(); got != final {
		t.Errorf("snapshot mutated after finalize: got %+v want %+v", got, final)
	}
}

func TestAggregator_finalize_idempotent(t *testing.T) {
	a := NewAggregator(30)
	_ = a.OnRep(true)

	first := a.Finalize(60 * time.Second)
	second := a.Finalize(120 * time.Second)
	if second != first {
		t.Errorf("second finalize changed the summary: %+v vs %+v", second, first)
	}
	if second.SessionDuration != 60 {
		t.Errorf("duration must stay at first finalize: got %d", second.SessionDuration)
	}
}
