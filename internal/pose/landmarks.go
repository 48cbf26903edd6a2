package pose

import "time"

// Name identifies an anatomical landmark.
type Name string

// Landmark names used by the exercise analysis pipeline. These follow the
// MediaPipe Pose naming for the subset of points the exercises need.
const (
	Nose           Name = "nose"
	LeftShoulder   Name = "left_shoulder"
	RightShoulder  Name = "right_shoulder"
	LeftElbow      Name = "left_elbow"
	RightElbow     Name = "right_elbow"
	LeftWrist      Name = "left_wrist"
	RightWrist     Name = "right_wrist"
	LeftHip        Name = "left_hip"
	RightHip       Name = "right_hip"
	LeftKnee       Name = "left_knee"
	RightKnee      Name = "right_knee"
	LeftAnkle      Name = "left_ankle"
	RightAnkle     Name = "right_ankle"
	LeftFootIndex  Name = "left_foot_index"
	RightFootIndex Name = "right_foot_index"
)

// Landmark is one detected body point in normalized image coordinates with a
// visibility/confidence score in [0,1].
type Landmark struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Visibility float64 `json:"visibility"`
}

// Frame is one frame's worth of detected landmarks. It may be partially
// populated (some names absent) or empty (detector found no pose); consumers
// must treat absence as insufficient data, never as a zero position.
type Frame struct {
	Landmarks map[Name]Landmark
	Seq       int64
	Timestamp time.Time
}

// NewFrame returns an empty frame with the given sequence number.
func NewFrame(seq int64) Frame {
	return Frame{Landmarks: make(map[Name]Landmark), Seq: seq, Timestamp: time.Now().UTC()}
}

// Empty reports whether the frame carries no landmarks at all.
func (f Frame) Empty() bool {
	return len(f.Landmarks) == 0
}

// Get returns the named landmark. The ok return is false if the landmark is
// absent from the frame.
func (f Frame) Get(name Name) (Landmark, bool) {
	lm, ok := f.Landmarks[name]
	return lm, ok
}

// Visible returns the named landmark only if it is present and its visibility
// meets minVis.
func (f Frame) Visible(name Name, minVis float64) (Landmark, bool) {
	lm, ok := f.Landmarks[name]
	if !ok || lm.Visibility < minVis {
		return Landmark{}, false
	}
	return lm, true
}
