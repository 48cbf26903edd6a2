package pose

import "errors"

// Exercise identifies one of the supported rehabilitation exercises.
type Exercise string

const (
	Squat            Exercise = "squat"
	ArmRaise         Exercise = "arm-raise"
	ShoulderRotation Exercise = "shoulder"
)

// ErrUnknownExercise is returned when an exercise identifier is not one of
// the supported set.
var ErrUnknownExercise = errors.New("unknown exercise")

// ParseExercise validates an exercise identifier. The set is closed; the
// exercise is fixed for a session's lifetime.
func ParseExercise(s string) (Exercise, error) {
	switch Exercise(s) {
	case Squat, ArmRaise, ShoulderRotation:
		return Exercise(s), nil
	}
	return "", ErrUnknownExercise
}
