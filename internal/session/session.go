// Package session drives the per-frame recognition loop: acquire frame,
// detect faces, match each against the gallery, gate through the duplicate
// guard, record admitted matches, and emit live feedback.
package session

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kadlecj/facetrack/internal/attendance"
	"github.com/kadlecj/facetrack/internal/gallery"
	"github.com/kadlecj/facetrack/internal/imaging"
	"github.com/kadlecj/facetrack/internal/match"
	"github.com/kadlecj/facetrack/internal/store"
	"github.com/kadlecj/facetrack/internal/vision"
)

// Detector is the slice of the vision client the session needs.
type Detector interface {
	Detect(ctx context.Context, frameJPEG []byte) ([]vision.Face, error)
}

// Status of a session.
type Status string

const (
	StatusRunning Status = "running"
	StatusStopped Status = "stopped"
)

// recordTimeout bounds the store write for one admitted match. The write uses
// a context detached from session cancellation so that stopping a session
// never aborts a write already decided.
const recordTimeout = 5 * time.Second

// Stats are cumulative counters for one session.
type Stats struct {
	Frames       int `json:"frames"`
	FacesSeen    int `json:"faces_seen"`
	Marked       int `json:"marked"`
	Already      int `json:"already_marked"`
	Unknown      int `json:"unknown"`
	CameraErrors int `json:"camera_errors"`
}

// Session is one run of the attendance pipeline over a frame stream.
type Session struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`

	Broadcaster *Broadcaster `json:"-"`

	gallery     *gallery.Gallery
	matcher     *match.Matcher
	guard       *attendance.Guard
	recorder    *attendance.Recorder
	detector    Detector
	dim         int
	maxFrameDim int

	mu        sync.RWMutex
	status    Status
	stoppedAt *time.Time
	stats     Stats
}

// Config wires a session's collaborators. All state (gallery, day cache) is
// owned by the caller and passed in explicitly, so independent sessions or
// test harnesses can run against independent instances.
type Config struct {
	Gallery     *gallery.Gallery
	Matcher     *match.Matcher
	Guard       *attendance.Guard
	Recorder    *attendance.Recorder
	Detector    Detector
	Dim         int
	MaxFrameDim int
}

// New creates a session ready to Run.
func New(cfg Config) *Session {
	maxFrameDim := cfg.MaxFrameDim
	if maxFrameDim <= 0 {
		maxFrameDim = 640
	}
	return &Session{
		ID:          uuid.NewString(),
		StartedAt:   time.Now(),
		Broadcaster: &Broadcaster{},
		gallery:     cfg.Gallery,
		matcher:     cfg.Matcher,
		guard:       cfg.Guard,
		recorder:    cfg.Recorder,
		detector:    cfg.Detector,
		dim:         cfg.Dim,
		maxFrameDim: maxFrameDim,
		status:      StatusRunning,
	}
}

// GetStatus returns the session status.
func (s *Session) GetStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// GetStats returns a copy of the session counters.
func (s *Session) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// StoppedAt returns when the session ended, or nil while running.
func (s *Session) StoppedAt() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stoppedAt
}

// Run consumes frames and camera errors until ctx is cancelled or the frame
// channel closes. Cancellation takes effect between frames; the loop itself
// never terminates on pipeline errors.
func (s *Session) Run(ctx context.Context, frames <-chan []byte, cameraErrs <-chan error) {
	defer s.finish()

	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-cameraErrs:
			if !ok {
				cameraErrs = nil
				continue
			}
			s.bumpStats(func(st *Stats) { st.CameraErrors++ })
			s.Broadcaster.Send(Feedback{
				Outcome: OutcomeCameraError,
				Detail:  err.Error(),
				At:      time.Now(),
			})
		case frame, ok := <-frames:
			if !ok {
				return
			}
			s.processFrame(ctx, frame)
		}
	}
}

func (s *Session) finish() {
	now := time.Now()
	s.mu.Lock()
	s.status = StatusStopped
	s.stoppedAt = &now
	s.mu.Unlock()
	s.Broadcaster.CloseAll()
}

// processFrame runs the detect/match/gate/record path for one frame. Failures
// are isolated per face: one undecodable region never blocks its siblings.
func (s *Session) processFrame(ctx context.Context, frame []byte) {
	s.bumpStats(func(st *Stats) { st.Frames++ })

	scaled, err := imaging.Downscale(frame, s.maxFrameDim)
	if err != nil {
		log.Printf("dropping undecodable frame: %v", err)
		return
	}

	faces, err := s.detector.Detect(ctx, scaled)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("detection failed, dropping frame: %v", err)
		}
		return
	}

	if len(faces) == 0 {
		s.Broadcaster.Send(Feedback{Outcome: OutcomeNoFace, At: time.Now()})
		return
	}

	snapshot := s.gallery.Snapshot()
	for _, face := range faces {
		s.processFace(ctx, face, snapshot)
	}
}

func (s *Session) processFace(ctx context.Context, face vision.Face, snapshot *gallery.Snapshot) {
	s.bumpStats(func(st *Stats) { st.FacesSeen++ })

	if !match.Usable(face.Encoding, s.dim) {
		// Encoding failed for this region; drop it and move on.
		return
	}

	result := s.matcher.Match(face.Encoding, snapshot)
	if !result.Matched {
		s.bumpStats(func(st *Stats) { st.Unknown++ })
		s.Broadcaster.Send(Feedback{Outcome: OutcomeUnknown, At: time.Now()})
		return
	}

	now := s.recorder.Now()
	day := store.DayOf(now)

	decision, err := s.guard.TryAdmit(ctx, result.IdentityID, day)
	if err != nil {
		log.Printf("duplicate check failed for %s: %v", result.Name, err)
		return
	}
	if decision == attendance.AlreadyPresent {
		s.bumpStats(func(st *Stats) { st.Already++ })
		s.sendRecognized(OutcomeAlreadyMarked, result)
		return
	}

	// The write must not be torn down by a session stop that races it.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	_, err = s.recorder.Record(writeCtx, result.IdentityID, now, result.Confidence, store.MethodFaceRecognition)
	switch {
	case err == nil:
		s.bumpStats(func(st *Stats) { st.Marked++ })
		log.Printf("attendance marked for %s (identity %d) with confidence %.2f", result.Name, result.IdentityID, result.Confidence)
		s.sendRecognized(OutcomeMarked, result)
	case errors.Is(err, store.ErrDuplicateAttendance):
		// A concurrent writer beat us; same user-visible outcome as the
		// guard catching it.
		s.bumpStats(func(st *Stats) { st.Already++ })
		s.sendRecognized(OutcomeAlreadyMarked, result)
	default:
		// Transient store failure: release the optimistic admission so a
		// later frame can retry.
		s.guard.Revoke(result.IdentityID, day)
		log.Printf("recording attendance for %s failed: %v", result.Name, err)
	}
}

func (s *Session) sendRecognized(outcome Outcome, result match.Result) {
	s.Broadcaster.Send(Feedback{
		Outcome:    outcome,
		IdentityID: result.IdentityID,
		Name:       result.Name,
		Confidence: result.Confidence,
		At:         time.Now(),
	})
}

func (s *Session) bumpStats(f func(*Stats)) {
	s.mu.Lock()
	f(&s.stats)
	s.mu.Unlock()
}
