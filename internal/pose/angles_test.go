package pose

import (
	"math"
	"testing"
)

func lm(x, y, z float64) Landmark {
	return Landmark{X: x, Y: y, Z: z, Visibility: 1.0}
}

func TestAngle_right_angle(t *testing.T) {
	got := Angle(lm(1, 0, 0), lm(0, 0, 0), lm(0, 1, 0))
	if math.Abs(got-90) > 1e-9 {
		t.Errorf("right angle: got %v want 90", got)
	}
}

func TestAngle_straight_line(t *testing.T) {
	// B between A and C, colinear.
	got := Angle(lm(-1, 0, 0), lm(0, 0, 0), lm(1, 0, 0))
	if math.Abs(got-180) > 1e-9 {
		t.Errorf("colinear: got %v want 180", got)
	}
}

func TestAngle_zero(t *testing.T) {
	got := Angle(lm(1, 1, 0), lm(0, 0, 0), lm(2, 2, 0))
	if math.Abs(got) > 1e-9 {
		t.Errorf("same direction: got %v want 0", got)
	}
}

func TestAngle_range(t *testing.T) {
	// A sweep of configurations always lands in [0, 180].
	for i := 0; i < 360; i += 7 {
		rad := float64(i) * math.Pi / 180
		a := lm(math.Cos(rad), math.Sin(rad), 0.1)
		got := Angle(a, lm(0, 0, 0), lm(1, 0, 0))
		if got < 0 || got > 180 {
			t.Fatalf("angle out of range at %d deg: %v", i, got)
		}
	}
}

func TestAngle_degenerate_vertex(t *testing.T) {
	// Coincident points give a zero-length vector; no NaN allowed.
	got := Angle(lm(0, 0, 0), lm(0, 0, 0), lm(1, 0, 0))
	if math.IsNaN(got) {
		t.Error("degenerate input produced NaN")
	}
}

func TestAngleAt_missing_landmark(t *testing.T) {
	f := NewFrame(1)
	f.Landmarks[LeftHip] = lm(0.4, 0.5, 0)
	f.Landmarks[LeftKnee] = lm(0.4, 0.7, 0)
	// Ankle absent.

	if _, ok := AngleAt(f, LeftHip, LeftKnee, LeftAnkle, DefaultMinVisibility); ok {
		t.Error("expected no angle with a missing landmark")
	}
}

func TestAngleAt_low_visibility(t *testing.T) {
	f := NewFrame(1)
	f.Landmarks[LeftHip] = lm(0.4, 0.5, 0)
	f.Landmarks[LeftKnee] = lm(0.4, 0.7, 0)
	f.Landmarks[LeftAnkle] = Landmark{X: 0.4, Y: 0.9, Visibility: 0.2}

	if _, ok := AngleAt(f, LeftHip, LeftKnee, LeftAnkle, DefaultMinVisibility); ok {
		t.Error("expected no angle with a low-visibility landmark")
	}
}

func TestAngleAt_straight_leg(t *testing.T) {
	f := NewFrame(1)
	f.Landmarks[LeftHip] = lm(0.4, 0.5, 0)
	f.Landmarks[LeftKnee] = lm(0.4, 0.7, 0)
	f.Landmarks[LeftAnkle] = lm(0.4, 0.9, 0)

	got, ok := AngleAt(f, LeftHip, LeftKnee, LeftAnkle, DefaultMinVisibility)
	if !ok {
		t.Fatal("expected an angle")
	}
	if math.Abs(got-180) > 1e-9 {
		t.Errorf("straight leg: got %v want 180", got)
	}
}

func TestExerciseAngles_squat_partial(t *testing.T) {
	// Only the left leg is visible; only the left knee angle comes back
	// among the knee joints.
	f := NewFrame(1)
	f.Landmarks[LeftHip] = lm(0.4, 0.5, 0)
	f.Landmarks[LeftKnee] = lm(0.4, 0.7, 0)
	f.Landmarks[LeftAnkle] = lm(0.45, 0.9, 0)

	angles := ExerciseAngles(Squat, f, DefaultMinVisibility)
	if _, ok := angles[JointLeftKnee]; !ok {
		t.Error("expected left knee angle")
	}
	if _, ok := angles[JointRightKnee]; ok {
		t.Error("did not expect right knee angle")
	}
	if _, ok := angles[JointLeftHip]; ok {
		t.Error("did not expect left hip angle without shoulder")
	}
}

func TestExerciseAngles_confidence_is_min_visibility(t *testing.T) {
	f := NewFrame(1)
	f.Landmarks[LeftHip] = Landmark{X: 0.4, Y: 0.5, Visibility: 0.9}
	f.Landmarks[LeftKnee] = Landmark{X: 0.4, Y: 0.7, Visibility: 0.6}
	f.Landmarks[LeftAnkle] = Landmark{X: 0.45, Y: 0.9, Visibility: 0.8}

	angles := ExerciseAngles(Squat, f, DefaultMinVisibility)
	s, ok := angles[JointLeftKnee]
	if !ok {
		t.Fatal("expected left knee angle")
	}
	if math.Abs(s.Confidence-0.6) > 1e-9 {
		t.Errorf("confidence: got %v want 0.6", s.Confidence)
	}
}

func TestParseExercise(t *testing.T) {
	for _, valid := range []string{"squat", "arm-raise", "shoulder"} {
		if _, err := ParseExercise(valid); err != nil {
			t.Errorf("ParseExercise(%q): %v", valid, err)
		}
	}
	if _, err := ParseExercise("deadlift"); err == nil {
		t.Error("expected error for unsupported exercise")
	}
}

func TestFrame_empty_and_visible(t *testing.T) {
	f := NewFrame(1)
	if !f.Empty() {
		t.Error("new frame should be empty")
	}
	f.Landmarks[Nose] = Landmark{X: 0.5, Y: 0.1, Visibility: 0.4}
	if f.Empty() {
		t.Error("frame with a landmark is not empty")
	}
	if _, ok := f.Visible(Nose, 0.5); ok {
		t.Error("low-visibility landmark should not be visible at 0.5")
	}
	if _, ok := f.Visible(Nose, 0.3); !ok {
		t.Error("landmark should be visible at 0.3")
	}
}
