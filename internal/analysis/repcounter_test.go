package analysis

import (
	"math/rand"
	"testing"

	"rehabsense/internal/pose"
)

func testRepConfig() RepConfig {
	return RepConfig{
		Tracked:        []pose.Joint{pose.JointLeftKnee, pose.JointRightKnee},
		TopAngle:       160,
		BottomAngle:    80,
		Hysteresis:     5,
		DebounceFrames: 2,
		StallFrames:    15,
		CorrectRatio:   0.7,
		MinConfidence:  0.5,
	}
}

func kneeSamples(angle float64) map[pose.Joint]pose.Sample {
	return map[pose.Joint]pose.Sample{
		pose.JointLeftKnee:  {Joint: pose.JointLeftKnee, Angle: angle, Confidence: 1.0},
		pose.JointRightKnee: {Joint: pose.JointRightKnee, Angle: angle, Confidence: 1.0},
	}
}

func correctVerdict() Verdict {
	return Verdict{Correct: true}
}

// oneCycle appends one full squat-like traversal: ramp down 170 -> 70, hold
// at the bottom, ramp back up, hold at the top.
func oneCycle() []float64 {
	var seq []float64
	for a := 170.0; a >= 70; a -= 10 {
		seq = append(seq, a)
	}
	seq = append(seq, 70, 70)
	for a := 70.0; a <= 170; a += 10 {
		seq = append(seq, a)
	}
	seq = append(seq, 170, 170)
	return seq
}

func feedCycles(t *testing.T, c *RepCounter, cycles int, noise func() float64) []RepEvent {
	t.Helper()
	var events []RepEvent
	for i := 0; i < cycles; i++ {
		for _, a := range oneCycle() {
			if noise != nil {
				a += noise()
			}
			if ev, ok := c.Update(kneeSamples(a), correctVerdict()); ok {
				events = append(events, ev)
			}
		}
	}
	return events
}

func TestRepCounter_clean_cycles(t *testing.T) {
	c := NewRepCounter(testRepConfig())

	events := feedCycles(t, c, 5, nil)
	if len(events) != 5 {
		t.Fatalf("expected 5 reps, got %d", len(events))
	}
	for i, ev := range events {
		if !ev.Correct {
			t.Errorf("rep %d: expected correct", i)
		}
	}
	if c.Phase() != PhaseIdle {
		t.Errorf("expected idle after clean cycles, got %s", c.Phase())
	}
}

func TestRepCounter_jitter_no_double_count(t *testing.T) {
	c := NewRepCounter(testRepConfig())

	r := rand.New(rand.NewSource(42))
	noise := func() float64 { return r.Float64()*6 - 3 }

	events := feedCycles(t, c, 8, noise)
	if len(events) != 8 {
		t.Fatalf("expected 8 reps with +-3 deg jitter, got %d", len(events))
	}
}

func TestRepCounter_incorrect_form_classifies_rep(t *testing.T) {
	c := NewRepCounter(testRepConfig())

	var events []RepEvent
	for _, a := range oneCycle() {
		// Every frame of the rep has bad posture.
		if ev, ok := c.Update(kneeSamples(a), Verdict{Correct: false}); ok {
			events = append(events, ev)
		}
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 rep, got %d", len(events))
	}
	if events[0].Correct {
		t.Error("rep with all-incorrect posture should be incorrect")
	}
}

func TestRepCounter_partial_bad_form_within_ratio(t *testing.T) {
	c := NewRepCounter(testRepConfig())

	cycle := oneCycle()
	var events []RepEvent
	for i, a := range cycle {
		// A couple of bad frames out of ~25 stays above the 0.7 ratio.
		v := Verdict{Correct: i != 3 && i != 4}
		if ev, ok := c.Update(kneeSamples(a), v); ok {
			events = append(events, ev)
		}
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 rep, got %d", len(events))
	}
	if !events[0].Correct {
		t.Error("rep should be correct when most frames had good posture")
	}
}

func TestRepCounter_stall_aborts_in_progress_rep(t *testing.T) {
	cfg := testRepConfig()
	cfg.StallFrames = 5
	c := NewRepCounter(cfg)

	// Descend halfway into the rep.
	for _, a := range []float64{170, 150, 130, 110} {
		c.Update(kneeSamples(a), correctVerdict())
	}
	if c.Phase() != PhaseDescending {
		t.Fatalf("setup: expected descending, got %s", c.Phase())
	}

	// Subject leaves the frame for longer than the stall window.
	for i := 0; i < 6; i++ {
		c.Update(nil, Verdict{Indeterminate: true})
	}
	if c.Phase() != PhaseIdle {
		t.Errorf("expected abort to idle after stall, got %s", c.Phase())
	}

	// A fresh complete cycle still counts exactly one rep.
	var events []RepEvent
	for _, a := range oneCycle() {
		if ev, ok := c.Update(kneeSamples(a), correctVerdict()); ok {
			events = append(events, ev)
		}
	}
	if len(events) != 1 {
		t.Errorf("expected 1 rep after recovery, got %d", len(events))
	}
}

func TestRepCounter_gap_counts_toward_stall(t *testing.T) {
	cfg := testRepConfig()
	cfg.StallFrames = 5
	c := NewRepCounter(cfg)

	for _, a := range []float64{170, 150, 130} {
		c.Update(kneeSamples(a), correctVerdict())
	}
	c.Gap(10)
	if c.Phase() != PhaseIdle {
		t.Errorf("expected dropped-frame gap to abort the rep, got %s", c.Phase())
	}
}

func TestRepCounter_short_stall_recovers(t *testing.T) {
	cfg := testRepConfig()
	cfg.StallFrames = 5
	c := NewRepCounter(cfg)

	seq := oneCycle()
	var events []RepEvent
	for i, a := range seq {
		if i == 4 || i == 5 {
			// Two missing frames mid-descent, within the stall window.
			c.Update(nil, Verdict{Indeterminate: true})
		}
		if ev, ok := c.Update(kneeSamples(a), correctVerdict()); ok {
			events = append(events, ev)
		}
	}
	if len(events) != 1 {
		t.Errorf("expected short stall to not abort: got %d reps", len(events))
	}
}

func TestRepCounter_debounce_rejects_single_frame_dip(t *testing.T) {
	c := NewRepCounter(testRepConfig())

	// Dip into the bottom band for a single frame, then straight back up.
	seq := []float64{170, 150, 130, 110, 84, 110, 130, 150, 170}
	var events []RepEvent
	for _, a := range seq {
		if ev, ok := c.Update(kneeSamples(a), correctVerdict()); ok {
			events = append(events, ev)
		}
	}
	if len(events) != 0 {
		t.Errorf("single-frame dip should not complete a rep, got %d", len(events))
	}
}

func TestRepCounter_two_joints_disagree_holds_state(t *testing.T) {
	c := NewRepCounter(testRepConfig())

	// Left knee says "descending", right knee still near the top: the
	// counter must hold in idle.
	samples := map[pose.Joint]pose.Sample{
		pose.JointLeftKnee:  {Joint: pose.JointLeftKnee, Angle: 120, Confidence: 1.0},
		pose.JointRightKnee: {Joint: pose.JointRightKnee, Angle: 168, Confidence: 1.0},
	}
	c.Update(samples, correctVerdict())
	if c.Phase() != PhaseIdle {
		t.Errorf("expected hold on joint disagreement, got %s", c.Phase())
	}
}

func TestRepCounter_low_confidence_joint_is_ignored(t *testing.T) {
	c := NewRepCounter(testRepConfig())

	// The unreliable right knee would block the transition if counted.
	samples := map[pose.Joint]pose.Sample{
		pose.JointLeftKnee:  {Joint: pose.JointLeftKnee, Angle: 120, Confidence: 0.9},
		pose.JointRightKnee: {Joint: pose.JointRightKnee, Angle: 168, Confidence: 0.2},
	}
	c.Update(samples, correctVerdict())
	if c.Phase() != PhaseDescending {
		t.Errorf("expected descent on the reliable joint, got %s", c.Phase())
	}
}

func TestRepCounter_inverted_direction(t *testing.T) {
	// Arm-raise style config: the tracked angle grows toward the peak.
	cfg := RepConfig{
		Tracked:        []pose.Joint{pose.JointLeftShoulder},
		TopAngle:       40,
		BottomAngle:    140,
		Hysteresis:     5,
		DebounceFrames: 2,
		StallFrames:    15,
		CorrectRatio:   0.7,
		MinConfidence:  0.5,
	}
	c := NewRepCounter(cfg)

	var seq []float64
	for a := 20.0; a <= 150; a += 10 {
		seq = append(seq, a)
	}
	seq = append(seq, 150, 150)
	for a := 150.0; a >= 20; a -= 10 {
		seq = append(seq, a)
	}

	events := 0
	for _, a := range seq {
		s := map[pose.Joint]pose.Sample{
			pose.JointLeftShoulder: {Joint: pose.JointLeftShoulder, Angle: a, Confidence: 1.0},
		}
		if _, ok := c.Update(s, correctVerdict()); ok {
			events++
		}
	}
	if events != 1 {
		t.Errorf("expected 1 arm-raise rep, got %d", events)
	}
}
