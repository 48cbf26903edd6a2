package analysis

import "rehabsense/internal/pose"

// Phase is the rep state machine's current phase.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseDescending Phase = "descending"
	PhaseBottom     Phase = "bottom"
	PhaseAscending  Phase = "ascending"
)

// RepEvent is emitted once per completed repetition.
type RepEvent struct {
	Correct bool
}

// RepConfig defines the thresholds that drive the rep state machine for one
// exercise. TopAngle is the tracked angle near rest, BottomAngle near the
// movement's peak; BottomAngle may be larger than TopAngle for movements
// where the tracked angle grows toward the peak (arm raise).
type RepConfig struct {
	Tracked        []pose.Joint
	TopAngle       float64
	BottomAngle    float64
	Hysteresis     float64
	DebounceFrames int
	StallFrames    int
	CorrectRatio   float64
	MinConfidence  float64
}

// RepConfigFor returns the tuned state machine parameters for an exercise.
func RepConfigFor(exercise pose.Exercise) RepConfig {
	cfg := RepConfig{
		Hysteresis:     5.0,
		DebounceFrames: 2,
		StallFrames:    15,
		CorrectRatio:   0.7,
		MinConfidence:  pose.DefaultMinVisibility,
	}
	switch exercise {
	case pose.Squat:
		cfg.Tracked = []pose.Joint{pose.JointLeftKnee, pose.JointRightKnee}
		cfg.TopAngle = 160.0
		cfg.BottomAngle = 90.0
	case pose.ArmRaise:
		// Shoulder angle grows as the arm comes up.
		cfg.Tracked = []pose.Joint{pose.JointLeftShoulder, pose.JointRightShoulder}
		cfg.TopAngle = 40.0
		cfg.BottomAngle = 140.0
	case pose.ShoulderRotation:
		cfg.Tracked = []pose.Joint{pose.JointLeftShoulder, pose.JointRightShoulder}
		cfg.TopAngle = 160.0
		cfg.BottomAngle = 60.0
	}
	return cfg
}

// RepCounter counts repetitions of a single exercise from a stream of joint
// angle samples. One instance belongs to one session and must only be fed
// frames in arrival order from a single goroutine.
type RepCounter struct {
	cfg  RepConfig
	sign float64

	phase       Phase
	extremum    float64
	belowStreak int
	stallStreak int

	repFrames     int
	correctFrames int

	lastAngle    float64
	lastAngleSet bool
}

// NewRepCounter returns an idle counter with the given configuration.
func NewRepCounter(cfg RepConfig) *RepCounter {
	sign := 1.0
	if cfg.BottomAngle > cfg.TopAngle {
		sign = -1.0
	}
	return &RepCounter{cfg: cfg, sign: sign, phase: PhaseIdle}
}

// Phase returns the current state machine phase.
func (c *RepCounter) Phase() Phase {
	return c.phase
}

// LastAngle returns the most recent reliable tracked angle. The ok return is
// false before the first reliable sample.
func (c *RepCounter) LastAngle() (float64, bool) {
	return c.lastAngle, c.lastAngleSet
}

// norm maps a tracked angle onto a scale where descent toward the movement's
// peak always decreases the value, so one state machine serves both angle
// directions.
func (c *RepCounter) norm(angle float64) float64 {
	return c.sign * angle
}

// Update feeds one frame's angle samples and posture verdict into the state
// machine. The returned event is valid only when emitted is true, at most
// once per full phase traversal.
func (c *RepCounter) Update(samples map[pose.Joint]pose.Sample, v Verdict) (RepEvent, bool) {
	reliable := c.reliableSamples(samples)
	if len(reliable) == 0 {
		c.stall(1)
		return RepEvent{}, false
	}
	c.stallStreak = 0

	best := reliable[0]
	for _, s := range reliable[1:] {
		if s.Confidence > best.Confidence {
			best = s
		}
	}
	c.lastAngle = best.Angle
	c.lastAngleSet = true
	n := c.norm(best.Angle)

	// Sample the form once per frame while a rep is in progress; an
	// indeterminate verdict is not evidence either way.
	if c.phase != PhaseIdle && !v.Indeterminate {
		c.repFrames++
		if v.Correct {
			c.correctFrames++
		}
	}

	nTop := c.norm(c.cfg.TopAngle)
	nBottom := c.norm(c.cfg.BottomAngle)
	h := c.cfg.Hysteresis

	switch c.phase {
	case PhaseIdle:
		if c.agree(reliable, func(n float64) bool { return n < nTop-h }) {
			c.phase = PhaseDescending
			c.extremum = n
			c.belowStreak = 0
			c.repFrames = 0
			c.correctFrames = 0
			if !v.Indeterminate {
				c.repFrames = 1
				if v.Correct {
					c.correctFrames = 1
				}
			}
		}

	case PhaseDescending:
		if n < c.extremum {
			c.extremum = n
		}
		if c.agree(reliable, func(n float64) bool { return n <= nBottom+h }) {
			c.belowStreak++
			// Debounce: a single frame dipping into the bottom band is
			// noise, not a confirmed bottom.
			if c.belowStreak >= c.cfg.DebounceFrames {
				c.phase = PhaseBottom
			}
		} else {
			c.belowStreak = 0
		}

	case PhaseBottom:
		if n < c.extremum {
			c.extremum = n
		}
		if c.agree(reliable, func(n float64) bool { return n > nBottom+h }) {
			c.phase = PhaseAscending
		}

	case PhaseAscending:
		if c.agree(reliable, func(n float64) bool { return n >= nTop-h }) {
			c.phase = PhaseIdle
			return RepEvent{Correct: c.repCorrect()}, true
		}
	}

	return RepEvent{}, false
}

// Gap informs the counter that n frames were dropped or carried no usable
// landmark data. A gap long enough mid-rep discards the in-progress rep: the
// subject likely left the frame, and a gap must not be mistaken for smooth
// motion.
func (c *RepCounter) Gap(n int) {
	c.stall(n)
}

func (c *RepCounter) stall(n int) {
	c.stallStreak += n
	if c.phase != PhaseIdle && c.stallStreak > c.cfg.StallFrames {
		c.abort()
	}
}

// abort discards the in-progress rep without emitting an event.
func (c *RepCounter) abort() {
	c.phase = PhaseIdle
	c.belowStreak = 0
	c.repFrames = 0
	c.correctFrames = 0
}

// repCorrect classifies the finished rep from the fraction of frames whose
// posture verdict was correct across the whole traversal.
func (c *RepCounter) repCorrect() bool {
	if c.repFrames == 0 {
		return true
	}
	return float64(c.correctFrames)/float64(c.repFrames) >= c.cfg.CorrectRatio
}

// reliableSamples filters the tracked joints down to those observed with
// sufficient confidence this frame.
func (c *RepCounter) reliableSamples(samples map[pose.Joint]pose.Sample) []pose.Sample {
	out := make([]pose.Sample, 0, len(c.cfg.Tracked))
	for _, j := range c.cfg.Tracked {
		s, ok := samples[j]
		if !ok || s.Confidence < c.cfg.MinConfidence {
			continue
		}
		out = append(out, s)
	}
	return out
}

// agree reports whether every reliable tracked joint satisfies the phase
// transition predicate. With a single reliable joint its vote decides; with
// two, both must agree or the state holds.
func (c *RepCounter) agree(reliable []pose.Sample, pred func(n float64) bool) bool {
	for _, s := range reliable {
		if !pred(c.norm(s.Angle)) {
			return false
		}
	}
	return len(reliable) > 0
}
