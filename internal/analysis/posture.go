package analysis

import (
	"fmt"
	"math"

	"rehabsense/internal/pose"
)

// Verdict is the posture assessment for one frame. Indeterminate means no
// rule could be evaluated (all required landmarks missing); such verdicts
// must not affect session counters.
type Verdict struct {
	Correct       bool
	Indeterminate bool
	Deviation     float64
	Flags         []string
	Feedback      string
}

// PostureConfig tunes the analyzer's smoothing and hysteresis.
type PostureConfig struct {
	// SmoothingAlpha is the EMA coefficient applied to the per-frame
	// deviation before thresholding.
	SmoothingAlpha float64
	// HighThreshold flips the verdict correct -> incorrect.
	HighThreshold float64
	// LowThreshold flips it back incorrect -> correct. Must be below
	// HighThreshold; the gap is what stops single-frame flicker.
	LowThreshold float64
	// MinVisibility gates landmarks for positional checks.
	MinVisibility float64
}

// DefaultPostureConfig returns the analyzer defaults.
func DefaultPostureConfig() PostureConfig {
	return PostureConfig{
		SmoothingAlpha: 0.3,
		HighThreshold:  15.0,
		LowThreshold:   10.0,
		MinVisibility:  pose.DefaultMinVisibility,
	}
}

// rule is one posture check. eval returns the rule's deviation in degrees
// (or a degree-scaled positional offset) and whether the required landmarks
// were available. A rule whose deviation exceeds threshold raises its flag;
// a failed hard rule forces the verdict incorrect regardless of the total.
type rule struct {
	name      string
	hard      bool
	threshold float64
	eval      func(f pose.Frame, angles map[pose.Joint]pose.Sample, minVis float64) (float64, bool)
}

// PostureAnalyzer scores a frame's form against an exercise-specific rule
// set. It keeps a short smoothing history; everything else is per-call.
type PostureAnalyzer struct {
	exercise pose.Exercise
	cfg      PostureConfig
	rules    []rule

	ema     float64
	emaSet  bool
	correct bool
}

// NewPostureAnalyzer returns an analyzer for the exercise. The verdict
// starts as correct; the first few frames of bad form will flip it once the
// smoothed deviation crosses the high threshold.
func NewPostureAnalyzer(exercise pose.Exercise, cfg PostureConfig) *PostureAnalyzer {
	return &PostureAnalyzer{
		exercise: exercise,
		cfg:      cfg,
		rules:    exerciseRules(exercise),
		correct:  true,
	}
}

// Analyze evaluates one frame. Rules whose landmarks are missing are
// skipped; if every rule is skipped the verdict is indeterminate and the
// smoothing state is left untouched.
func (a *PostureAnalyzer) Analyze(f pose.Frame, angles map[pose.Joint]pose.Sample) Verdict {
	var (
		sum       float64
		evaluated int
		flags     []string
		hardFail  bool
	)

	for _, r := range a.rules {
		dev, ok := r.eval(f, angles, a.cfg.MinVisibility)
		if !ok {
			continue
		}
		evaluated++
		sum += dev
		if dev > r.threshold {
			flags = append(flags, r.name)
			if r.hard {
				hardFail = true
			}
		}
	}

	if evaluated == 0 {
		return Verdict{
			Indeterminate: true,
			Correct:       a.correct,
			Deviation:     a.ema,
			Feedback:      "No pose detected - step into the frame",
		}
	}

	raw := sum / float64(evaluated)
	if !a.emaSet {
		a.ema = raw
		a.emaSet = true
	} else {
		a.ema = a.cfg.SmoothingAlpha*raw + (1-a.cfg.SmoothingAlpha)*a.ema
	}

	// Hysteresis on the boolean verdict: flip to incorrect above the high
	// threshold, back to correct only below the low one.
	if a.correct {
		if a.ema > a.cfg.HighThreshold || hardFail {
			a.correct = false
		}
	} else {
		if a.ema < a.cfg.LowThreshold && !hardFail {
			a.correct = true
		}
	}

	return Verdict{
		Correct:   a.correct,
		Deviation: a.ema,
		Flags:     flags,
		Feedback:  feedbackText(a.correct, flags),
	}
}

func feedbackText(correct bool, flags []string) string {
	if correct {
		return "Perfect form! Keep maintaining this posture"
	}
	if len(flags) > 0 {
		return fmt.Sprintf("Adjust your form - check %s", flagLabel(flags[0]))
	}
	return "Slight adjustment needed - watch your alignment"
}

func flagLabel(flag string) string {
	if l, ok := flagLabels[flag]; ok {
		return l
	}
	return flag
}

var flagLabels = map[string]string{
	"trunk_lean":      "your back angle",
	"knee_over_toe":   "your knee position",
	"knee_symmetry":   "even weight on both legs",
	"shoulders_level": "your shoulder alignment",
	"elbow_straight":  "keeping your arms straight",
	"arm_symmetry":    "raising both arms together",
}

// exerciseRules builds the per-exercise check list. Positional offsets in
// normalized image coordinates are scaled by 100 so they combine with angle
// deviations on a comparable degree-like scale.
func exerciseRules(exercise pose.Exercise) []rule {
	switch exercise {
	case pose.Squat:
		return []rule{
			{name: "trunk_lean", threshold: 15.0, eval: trunkLean},
			{name: "knee_over_toe", hard: true, threshold: 8.0, eval: kneeOverToe},
			{name: "knee_symmetry", threshold: 15.0, eval: jointSymmetry(pose.JointLeftKnee, pose.JointRightKnee)},
		}
	case pose.ArmRaise:
		return []rule{
			{name: "shoulders_level", threshold: 10.0, eval: shouldersLevel},
			{name: "elbow_straight", threshold: 20.0, eval: elbowStraight},
			{name: "arm_symmetry", threshold: 15.0, eval: jointSymmetry(pose.JointLeftShoulder, pose.JointRightShoulder)},
		}
	case pose.ShoulderRotation:
		return []rule{
			{name: "shoulders_level", threshold: 10.0, eval: shouldersLevel},
			{name: "arm_symmetry", threshold: 20.0, eval: jointSymmetry(pose.JointLeftShoulder, pose.JointRightShoulder)},
		}
	}
	return nil
}

// trunkLean measures how far the shoulder-midpoint to hip-midpoint line
// leans from vertical, in degrees.
func trunkLean(f pose.Frame, _ map[pose.Joint]pose.Sample, minVis float64) (float64, bool) {
	ls, ok1 := f.Visible(pose.LeftShoulder, minVis)
	rs, ok2 := f.Visible(pose.RightShoulder, minVis)
	lh, ok3 := f.Visible(pose.LeftHip, minVis)
	rh, ok4 := f.Visible(pose.RightHip, minVis)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return 0, false
	}
	dx := (ls.X+rs.X)/2 - (lh.X+rh.X)/2
	dy := (ls.Y+rs.Y)/2 - (lh.Y+rh.Y)/2
	if dx == 0 && dy == 0 {
		return 0, false
	}
	// Angle between the trunk line and the image vertical.
	return math.Abs(math.Atan2(dx, -dy)) * 180 / math.Pi, true
}

// kneeOverToe measures how far either knee extends past the toes in the
// squat's sagittal direction, scaled to the degree-like range. Image-space
// heuristic: a knee clearly further from the body midline than the foot.
func kneeOverToe(f pose.Frame, _ map[pose.Joint]pose.Sample, minVis float64) (float64, bool) {
	worst := 0.0
	evaluated := false
	sides := []struct{ knee, foot pose.Name }{
		{pose.LeftKnee, pose.LeftFootIndex},
		{pose.RightKnee, pose.RightFootIndex},
	}
	for _, s := range sides {
		knee, ok1 := f.Visible(s.knee, minVis)
		foot, ok2 := f.Visible(s.foot, minVis)
		if !ok1 || !ok2 {
			continue
		}
		evaluated = true
		if over := math.Abs(knee.X-foot.X) - 0.05; over > 0 {
			if d := over * 100; d > worst {
				worst = d
			}
		}
	}
	return worst, evaluated
}

// shouldersLevel measures the vertical offset between the two shoulders,
// scaled to the degree-like range.
func shouldersLevel(f pose.Frame, _ map[pose.Joint]pose.Sample, minVis float64) (float64, bool) {
	ls, ok1 := f.Visible(pose.LeftShoulder, minVis)
	rs, ok2 := f.Visible(pose.RightShoulder, minVis)
	if !ok1 || !ok2 {
		return 0, false
	}
	return math.Abs(ls.Y-rs.Y) * 100, true
}

// elbowStraight measures how far either elbow is from full extension.
func elbowStraight(_ pose.Frame, angles map[pose.Joint]pose.Sample, _ float64) (float64, bool) {
	worst := 0.0
	evaluated := false
	for _, j := range []pose.Joint{pose.JointLeftElbow, pose.JointRightElbow} {
		s, ok := angles[j]
		if !ok {
			continue
		}
		evaluated = true
		if d := 180 - s.Angle; d > worst {
			worst = d
		}
	}
	return worst, evaluated
}

// jointSymmetry measures the angle difference between a left/right joint
// pair. Requires both sides.
func jointSymmetry(left, right pose.Joint) func(pose.Frame, map[pose.Joint]pose.Sample, float64) (float64, bool) {
	return func(_ pose.Frame, angles map[pose.Joint]pose.Sample, _ float64) (float64, bool) {
		l, ok1 := angles[left]
		r, ok2 := angles[right]
		if !ok1 || !ok2 {
			return 0, false
		}
		return math.Abs(l.Angle - r.Angle), true
	}
}
