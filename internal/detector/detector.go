// Package detector abstracts the pose-landmark source. The analysis core
// only requires "a set of named 3D points with per-point confidence, or
// none"; where those points come from (a real model process or the built-in
// synthetic skeleton) is selected once at startup.
package detector

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"rehabsense/internal/pose"
)

// Detector produces a landmark frame from an encoded image. The boolean
// return is false when no pose was found in the image; that is not an error.
// Implementations must be safe for concurrent use across sessions.
type Detector interface {
	Detect(ctx context.Context, image []byte) (pose.Frame, bool, error)
}

// ErrUnknownDetector is returned by New for an unrecognized detector kind.
var ErrUnknownDetector = errors.New("unknown detector kind")

// ErrMalformedFrame is returned when an incoming image payload cannot be
// decoded at all. Callers treat it like an empty frame for state machine
// purposes and log a warning.
var ErrMalformedFrame = errors.New("malformed frame payload")

// New returns a detector by kind. "mock" is the synthetic skeleton;
// "mock-animated" drives that skeleton through squat-like cycles for demos.
func New(kind string) (Detector, error) {
	switch kind {
	case "mock", "":
		return &Mock{}, nil
	case "mock-animated":
		return &Mock{Animate: true, Period: 60}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownDetector, kind)
}

var (
	defaultOnce sync.Once
	defaultDet  Detector
)

// Default returns the process-wide detector, lazily constructing the mock on
// first use. The instance holds no per-call state, so sharing it across
// sessions is safe.
func Default() Detector {
	defaultOnce.Do(func() {
		defaultDet = &Mock{}
	})
	return defaultDet
}

// Decode strips an optional data-URL prefix and base64-decodes an incoming
// frame payload. The bytes are handed to the Detector as-is.
func Decode(payload string) ([]byte, error) {
	if i := strings.IndexByte(payload, ','); i >= 0 {
		payload = payload[i+1:]
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return raw, nil
}
