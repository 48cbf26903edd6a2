package pose

import "math"

// DefaultMinVisibility is the visibility threshold below which a landmark is
// treated as absent for angle computation.
const DefaultMinVisibility = 0.5

// Joint identifies a tracked joint angle.
type Joint string

const (
	JointLeftKnee      Joint = "left_knee"
	JointRightKnee     Joint = "right_knee"
	JointLeftHip       Joint = "left_hip"
	JointRightHip      Joint = "right_hip"
	JointLeftShoulder  Joint = "left_shoulder"
	JointRightShoulder Joint = "right_shoulder"
	JointLeftElbow     Joint = "left_elbow"
	JointRightElbow    Joint = "right_elbow"
)

// JointSpec defines a joint angle as the angle at vertex B formed by the
// segments B-A and B-C.
type JointSpec struct {
	Joint Joint
	A     Name
	B     Name
	C     Name
}

// Sample is one measured joint angle. Confidence is the lowest visibility of
// the three landmarks that produced it.
type Sample struct {
	Joint      Joint
	Angle      float64
	Confidence float64
}

// Angle returns the angle ABC in degrees, in [0, 180], at vertex b.
// The cosine is clamped to [-1, 1] to absorb floating-point overshoot before
// acos, so colinear points yield exactly 0 or 180.
func Angle(a, b, c Landmark) float64 {
	bax, bay, baz := a.X-b.X, a.Y-b.Y, a.Z-b.Z
	bcx, bcy, bcz := c.X-b.X, c.Y-b.Y, c.Z-b.Z

	dot := bax*bcx + bay*bcy + baz*bcz
	na := math.Sqrt(bax*bax + bay*bay + baz*baz)
	nc := math.Sqrt(bcx*bcx + bcy*bcy + bcz*bcz)
	if na == 0 || nc == 0 {
		return 0
	}

	cos := dot / (na * nc)
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}

	deg := math.Acos(cos) * 180 / math.Pi
	if deg < 0 {
		return 0
	}
	if deg > 180 {
		return 180
	}
	return deg
}

// AngleAt measures the angle a-b-c on the frame. The ok return is false if
// any of the three landmarks is absent or below minVis; no angle is ever
// fabricated from missing data.
func AngleAt(f Frame, a, b, c Name, minVis float64) (float64, bool) {
	la, ok := f.Visible(a, minVis)
	if !ok {
		return 0, false
	}
	lb, ok := f.Visible(b, minVis)
	if !ok {
		return 0, false
	}
	lc, ok := f.Visible(c, minVis)
	if !ok {
		return 0, false
	}
	return Angle(la, lb, lc), true
}

// exerciseJoints maps each exercise to the joint angles it needs.
var exerciseJoints = map[Exercise][]JointSpec{
	Squat: {
		{JointLeftKnee, LeftHip, LeftKnee, LeftAnkle},
		{JointRightKnee, RightHip, RightKnee, RightAnkle},
		{JointLeftHip, LeftShoulder, LeftHip, LeftKnee},
		{JointRightHip, RightShoulder, RightHip, RightKnee},
	},
	ArmRaise: {
		{JointLeftShoulder, LeftElbow, LeftShoulder, LeftHip},
		{JointRightShoulder, RightElbow, RightShoulder, RightHip},
		{JointLeftElbow, LeftShoulder, LeftElbow, LeftWrist},
		{JointRightElbow, RightShoulder, RightElbow, RightWrist},
	},
	ShoulderRotation: {
		{JointLeftShoulder, LeftElbow, LeftShoulder, LeftHip},
		{JointRightShoulder, RightElbow, RightShoulder, RightHip},
	},
}

// Joints returns the joint angle definitions for the exercise.
func Joints(ex Exercise) []JointSpec {
	return exerciseJoints[ex]
}

// ExerciseAngles measures every joint angle the exercise needs from the
// frame. Joints whose landmarks are absent or below minVis are omitted from
// the result.
func ExerciseAngles(ex Exercise, f Frame, minVis float64) map[Joint]Sample {
	samples := make(map[Joint]Sample)
	for _, spec := range exerciseJoints[ex] {
		angle, ok := AngleAt(f, spec.A, spec.B, spec.C, minVis)
		if !ok {
			continue
		}
		conf := 1.0
		for _, name := range []Name{spec.A, spec.B, spec.C} {
			if lm, ok := f.Get(name); ok && lm.Visibility < conf {
				conf = lm.Visibility
			}
		}
		samples[spec.Joint] = Sample{Joint: spec.Joint, Angle: angle, Confidence: conf}
	}
	return samples
}
