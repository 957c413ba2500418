package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kadlecj/facetrack/internal/attendance"
	"github.com/kadlecj/facetrack/internal/camera"
	"github.com/kadlecj/facetrack/internal/config"
	"github.com/kadlecj/facetrack/internal/gallery"
	"github.com/kadlecj/facetrack/internal/match"
)

// ErrSessionRunning is returned when a session is started while one is active.
var ErrSessionRunning = errors.New("an attendance session is already running")

// ErrNoSession is returned when there is no active session to stop.
var ErrNoSession = errors.New("no attendance session is running")

// Manager owns the long-lived pipeline collaborators and runs at most one
// attendance session at a time. The camera is acquired when a session starts
// and released when it stops.
type Manager struct {
	gallery   *gallery.Gallery
	matcher   *match.Matcher
	guard     *attendance.Guard
	recorder  *attendance.Recorder
	detector  Detector
	cameraCfg config.CameraConfig
	dim       int

	// newSource exists so tests can substitute a fake camera.
	newSource func() (camera.Source, error)

	mu      sync.Mutex
	current *Session
	cancel  context.CancelFunc
	done    chan struct{}
}

// ManagerConfig wires a Manager.
type ManagerConfig struct {
	Gallery  *gallery.Gallery
	Matcher  *match.Matcher
	Guard    *attendance.Guard
	Recorder *attendance.Recorder
	Detector Detector
	Camera   config.CameraConfig
	Dim      int
}

// NewManager creates a session manager.
func NewManager(cfg ManagerConfig) *Manager {
	m := &Manager{
		gallery:   cfg.Gallery,
		matcher:   cfg.Matcher,
		guard:     cfg.Guard,
		recorder:  cfg.Recorder,
		detector:  cfg.Detector,
		cameraCfg: cfg.Camera,
		dim:       cfg.Dim,
	}
	m.newSource = func() (camera.Source, error) {
		return camera.NewHTTPCamera(&m.cameraCfg)
	}
	return m
}

// SetSourceFactory overrides how the camera is opened. Used by tests and the
// headless CLI runner.
func (m *Manager) SetSourceFactory(f func() (camera.Source, error)) {
	m.newSource = f
}

// Start opens the camera and launches a new session. Fails when one is
// already running or the camera cannot be opened.
func (m *Manager) Start() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil && m.current.GetStatus() == StatusRunning {
		return nil, ErrSessionRunning
	}

	source, err := m.newSource()
	if err != nil {
		return nil, fmt.Errorf("opening camera: %w", err)
	}

	sess := New(Config{
		Gallery:     m.gallery,
		Matcher:     m.matcher,
		Guard:       m.guard,
		Recorder:    m.recorder,
		Detector:    m.detector,
		Dim:         m.dim,
		MaxFrameDim: m.cameraCfg.MaxFrameDim,
	})

	ctx, cancel := context.WithCancel(context.Background())
	producer := camera.NewProducer(source, m.cameraCfg.QueueSize)
	done := make(chan struct{})

	go producer.Run(ctx)
	go func() {
		defer close(done)
		sess.Run(ctx, producer.Frames(), producer.Errors())
	}()

	m.current = sess
	m.cancel = cancel
	m.done = done
	return sess, nil
}

// Stop cancels the active session and waits for the frame loop to exit
// between frames. The camera is released by the producer on the way out.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if m.current == nil || m.current.GetStatus() != StatusRunning {
		m.mu.Unlock()
		return ErrNoSession
	}
	cancel, done := m.cancel, m.done
	m.mu.Unlock()

	cancel()
	<-done
	return nil
}

// Current returns the most recent session (running or stopped), or nil.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}
