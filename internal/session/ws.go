package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"rehabsense/internal/analysis"
	"rehabsense/internal/detector"
	"rehabsense/internal/pose"
)

// WSHandler serves the bidirectional per-session streaming channel: the
// client sends landmark or image frames, the server answers with per-frame
// feedback records. One connection per session is expected.
type WSHandler struct {
	svc      *Service
	log      *slog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler returns a websocket handler for the given session service.
func NewWSHandler(svc *Service, log *slog.Logger) *WSHandler {
	return &WSHandler{
		svc: svc,
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1 << 16,
			WriteBufferSize: 1 << 12,
			// The session id is the capability; browser clients connect
			// cross-origin in development.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// wsMessage is one inbound client message. Exactly one of the fields is
// expected per message.
type wsMessage struct {
	Exercise  string                   `json:"exercise,omitempty"`
	Frame     string                   `json:"frame,omitempty"`
	Landmarks map[string]pose.Landmark `json:"landmarks,omitempty"`
	Timestamp float64                  `json:"timestamp,omitempty"`
}

// wsFeedback mirrors the feedback record layout the frontend consumes.
type wsFeedback struct {
	Type           string  `json:"type"`
	Reps           int     `json:"reps"`
	CorrectReps    int     `json:"correct_reps"`
	IncorrectReps  int     `json:"incorrect_reps"`
	Accuracy       float64 `json:"accuracy"`
	Misalignments  int     `json:"misalignments"`
	Alerts         int     `json:"alerts"`
	JointDeviation float64 `json:"joint_deviation"`
	Feedback       string  `json:"feedback"`
	PostureCorrect bool    `json:"posture_correct"`
	PoseDetected   bool    `json:"pose_detected"`
	RepCompleted   bool    `json:"rep_completed"`
}

func feedbackMessage(fb analysis.Feedback) wsFeedback {
	return wsFeedback{
		Type:           "feedback",
		Reps:           fb.Metrics.TotalReps,
		CorrectReps:    fb.Metrics.CorrectReps,
		IncorrectReps:  fb.Metrics.IncorrectReps,
		Accuracy:       fb.Metrics.PostureAccuracy,
		Misalignments:  fb.Metrics.MisalignmentsCount,
		Alerts:         fb.Metrics.IncorrectFormAlerts,
		JointDeviation: fb.Metrics.AverageJointDeviation,
		Feedback:       fb.Feedback,
		PostureCorrect: fb.PostureCorrect,
		PoseDetected:   fb.PoseDetected,
		RepCompleted:   fb.RepCompleted,
	}
}

// ServePose handles GET /ws/pose?session={id}.
func (h *WSHandler) ServePose(w http.ResponseWriter, r *http.Request) {
	id := ID(r.URL.Query().Get("session"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing session query parameter")
		return
	}

	feedback, err := h.svc.Feedback(id)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			writeError(w, http.StatusNotFound, "session not found")
		case errors.Is(err, ErrEnded):
			writeError(w, http.StatusConflict, "session has ended")
		default:
			writeError(w, http.StatusInternalServerError, "session unavailable")
		}
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	h.log.Info("pose stream connected", slog.String("session_id", string(id)))

	// gorilla permits one concurrent writer; acks from the read loop and
	// feedback from the worker are funneled through a single goroutine.
	control := make(chan any, 4)
	stop := make(chan struct{})
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-stop:
				return
			case fb := <-feedback:
				if conn.WriteJSON(feedbackMessage(fb)) != nil {
					return
				}
			case msg := <-control:
				if conn.WriteJSON(msg) != nil {
					return
				}
			}
		}
	}()
	defer func() {
		close(stop)
		<-writerDone
	}()

	h.readLoop(conn, id, control)
	h.log.Info("pose stream disconnected", slog.String("session_id", string(id)))
}

func (h *WSHandler) readLoop(conn *websocket.Conn, id ID, control chan<- any) {
	var seq int64
	snap, err := h.svc.Snapshot(id)
	if err != nil {
		return
	}
	exercise := snap.Exercise

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			// Malformed input: logged and treated like an empty frame so
			// the stall accounting still advances.
			h.log.Warn("malformed websocket message",
				slog.String("session_id", string(id)),
				slog.String("error", err.Error()))
			seq++
			if h.submit(id, pose.NewFrame(seq), control) {
				return
			}
			continue
		}

		if msg.Exercise != "" {
			// The exercise is fixed at session start; acknowledge a match,
			// reject a change.
			if msg.Exercise == exercise {
				control <- map[string]string{"type": "exercise_set", "exercise": exercise}
			} else {
				control <- map[string]string{
					"type":  "error",
					"error": "exercise cannot change mid-session",
				}
			}
			continue
		}

		seq++
		frame := h.frameFrom(id, msg, seq)
		if h.submit(id, frame, control) {
			return
		}
	}
}

// frameFrom turns one inbound message into a landmark frame: client-side
// landmarks pass through directly, image payloads go through the detector,
// and anything unusable becomes an empty frame.
func (h *WSHandler) frameFrom(id ID, msg wsMessage, seq int64) pose.Frame {
	if len(msg.Landmarks) > 0 {
		f := pose.NewFrame(seq)
		if msg.Timestamp > 0 {
			f.Timestamp = time.UnixMilli(int64(msg.Timestamp)).UTC()
		}
		for name, lm := range msg.Landmarks {
			f.Landmarks[pose.Name(name)] = lm
		}
		return f
	}

	if msg.Frame != "" {
		raw, err := detector.Decode(msg.Frame)
		if err != nil {
			h.log.Warn("dropping malformed frame payload",
				slog.String("session_id", string(id)),
				slog.String("error", err.Error()))
			return pose.NewFrame(seq)
		}
		f, found, err := h.svc.Detector().Detect(context.Background(), raw)
		if err != nil || !found {
			return pose.NewFrame(seq)
		}
		f.Seq = seq
		return f
	}

	return pose.NewFrame(seq)
}

// submit forwards the frame; the true return means the session ended and
// the connection should close.
func (h *WSHandler) submit(id ID, f pose.Frame, control chan<- any) bool {
	if err := h.svc.Submit(id, f); err != nil {
		control <- map[string]string{"type": "error", "error": "session has ended"}
		return true
	}
	return false
}
