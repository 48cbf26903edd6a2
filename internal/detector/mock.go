package detector

import (
	"context"
	"math"
	"sync/atomic"

	"rehabsense/internal/pose"
)

// Mock is the fallback landmark source used when no model is available. It
// returns a plausible full-body skeleton in normalized image coordinates and
// never fails. With Animate set it sweeps the legs through squat-like cycles
// so the downstream pipeline sees real phase transitions; the only mutable
// state is an internally synchronized frame counter.
type Mock struct {
	// Animate drives the skeleton through squat cycles of Period frames.
	Animate bool
	// Period is the animation cycle length in frames; 60 when zero.
	Period int

	seq atomic.Int64
}

// Leg segment length in normalized image units, used to place the hip
// relative to the knee for a given knee angle.
const mockThighLen = 0.2

// Detect implements Detector. The image bytes are ignored; an empty payload
// still yields a skeleton, matching a degraded-model deployment where frames
// keep flowing.
func (m *Mock) Detect(_ context.Context, _ []byte) (pose.Frame, bool, error) {
	seq := m.seq.Add(1)
	kneeAngle := 172.0
	if m.Animate {
		period := m.Period
		if period <= 0 {
			period = 60
		}
		// Sweep 172 -> 80 -> 172 over one period.
		phase := float64(seq%int64(period)) / float64(period)
		kneeAngle = 126 + 46*math.Cos(2*math.Pi*phase)
	}
	return m.skeleton(seq, kneeAngle), true, nil
}

// skeleton builds a symmetric standing body whose knee joints are bent to
// kneeAngle degrees. All points carry full visibility.
func (m *Mock) skeleton(seq int64, kneeAngle float64) pose.Frame {
	f := pose.NewFrame(seq)

	set := func(name pose.Name, x, y float64) {
		f.Landmarks[name] = pose.Landmark{X: x, Y: y, Z: 0, Visibility: 1.0}
	}

	// Fixed lower leg, hip rotated around the knee by the requested angle.
	phi := kneeAngle * math.Pi / 180
	hipDX := mockThighLen * math.Sin(phi)
	hipDY := mockThighLen * math.Cos(phi) // negative when the leg is near straight

	leftKneeX, rightKneeX := 0.43, 0.57
	kneeY := 0.7
	leftHipX, rightHipX := leftKneeX+hipDX, rightKneeX-hipDX
	hipY := kneeY + hipDY

	set(pose.LeftKnee, leftKneeX, kneeY)
	set(pose.RightKnee, rightKneeX, kneeY)
	set(pose.LeftAnkle, leftKneeX-0.01, 0.9)
	set(pose.RightAnkle, rightKneeX+0.01, 0.9)
	set(pose.LeftFootIndex, leftKneeX-0.01, 0.93)
	set(pose.RightFootIndex, rightKneeX+0.01, 0.93)
	set(pose.LeftHip, leftHipX, hipY)
	set(pose.RightHip, rightHipX, hipY)

	// Trunk stays vertical above the hips.
	set(pose.LeftShoulder, leftHipX, hipY-0.3)
	set(pose.RightShoulder, rightHipX, hipY-0.3)
	set(pose.LeftElbow, leftHipX-0.05, hipY-0.1)
	set(pose.RightElbow, rightHipX+0.05, hipY-0.1)
	set(pose.LeftWrist, leftHipX-0.07, hipY+0.1)
	set(pose.RightWrist, rightHipX+0.07, hipY+0.1)
	set(pose.Nose, (leftHipX+rightHipX)/2, hipY-0.4)

	return f
}
