package session

import (
	"context"
	"sync/atomic"

	"rehabsense/internal/analysis"
	"rehabsense/internal/pose"
)

// runtime is the per-session worker wiring. Exactly one goroutine (the
// worker) drives the session's pipeline, so frame processing is strictly
// sequential per session. The inbox holds at most one frame: when frames
// arrive faster than they are processed the oldest undelivered frame is
// dropped and counted, and the pipeline is told about the gap before the
// next frame is processed. Recency beats completeness for live feedback.
type runtime struct {
	inbox    chan pose.Frame
	feedback chan analysis.Feedback
	dropped  atomic.Int64
	cancel   context.CancelFunc
	done     chan struct{}
}

func newRuntime(cancel context.CancelFunc) *runtime {
	return &runtime{
		inbox:    make(chan pose.Frame, 1),
		feedback: make(chan analysis.Feedback, 1),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// submit hands a frame to the worker without ever blocking the transport.
// A full inbox means the worker is behind: evict the stale frame, count the
// drop, and leave the fresh frame in its place.
func (rt *runtime) submit(f pose.Frame) {
	select {
	case rt.inbox <- f:
		return
	default:
	}
	select {
	case <-rt.inbox:
		rt.dropped.Add(1)
	default:
	}
	select {
	case rt.inbox <- f:
	default:
		rt.dropped.Add(1)
	}
}

// deliver publishes a feedback record, keeping only the most recent one when
// the reader is slow.
func (rt *runtime) deliver(fb analysis.Feedback) {
	select {
	case rt.feedback <- fb:
		return
	default:
	}
	select {
	case <-rt.feedback:
	default:
	}
	select {
	case rt.feedback <- fb:
	default:
	}
}

// run is the worker loop. It exits when the session context is cancelled,
// which happens before session resources are released.
func (s *Service) run(ctx context.Context, st *State) {
	rt := st.runtime
	defer close(rt.done)

	for {
		select {
		case <-ctx.Done():
			return
		case f := <-rt.inbox:
			if gap := rt.dropped.Swap(0); gap > 0 {
				st.Pipeline.ReportGap(int(gap))
				if s.metrics != nil {
					s.metrics.AddFramesDropped(int(gap))
				}
			}

			fb, err := st.Pipeline.Process(f)
			if err != nil {
				// Only the finalized-session invariant reaches here; the
				// session is ending, stop processing.
				s.log.Warn("frame after finalize, stopping worker",
					"session_id", string(st.ID), "error", err.Error())
				return
			}

			if s.metrics != nil {
				s.metrics.IncFramesProcessed()
				if fb.RepCompleted {
					s.metrics.IncRepsCounted()
				}
			}
			rt.deliver(fb)
		}
	}
}
