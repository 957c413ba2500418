package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kadlecj/facetrack/internal/attendance"
	"github.com/kadlecj/facetrack/internal/camera"
	"github.com/kadlecj/facetrack/internal/config"
	"github.com/kadlecj/facetrack/internal/gallery"
	"github.com/kadlecj/facetrack/internal/match"
	"github.com/kadlecj/facetrack/internal/store/mock"
)

// idleSource never produces a frame; it just waits for cancellation.
type idleSource struct{}

func (idleSource) Next(ctx context.Context) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (idleSource) Close() error { return nil }

func newTestManager(t *testing.T) *Manager {
	t.Helper()

	events := mock.NewAttendanceStore()
	m := NewManager(ManagerConfig{
		Gallery:  gallery.New(testDim),
		Matcher:  match.New(0.6, testDim),
		Guard:    attendance.NewGuard(attendance.NewDayCache(), events),
		Recorder: attendance.NewRecorder(events, time.UTC),
		Detector: &scriptedDetector{},
		Camera:   config.CameraConfig{QueueSize: 2},
		Dim:      testDim,
	})
	m.SetSourceFactory(func() (camera.Source, error) {
		return idleSource{}, nil
	})
	return m
}

func TestManagerStartStop(t *testing.T) {
	m := newTestManager(t)

	sess, err := m.Start()
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if sess.GetStatus() != StatusRunning {
		t.Errorf("status = %v, want running", sess.GetStatus())
	}
	if m.Current() != sess {
		t.Error("Current() does not return the started session")
	}

	if err := m.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if sess.GetStatus() != StatusStopped {
		t.Errorf("status = %v after stop, want stopped", sess.GetStatus())
	}
}

func TestManagerRejectsSecondStart(t *testing.T) {
	m := newTestManager(t)

	if _, err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Stop()

	if _, err := m.Start(); !errors.Is(err, ErrSessionRunning) {
		t.Errorf("second Start err = %v, want ErrSessionRunning", err)
	}
}

func TestManagerStopWithoutSession(t *testing.T) {
	m := newTestManager(t)
	if err := m.Stop(); !errors.Is(err, ErrNoSession) {
		t.Errorf("Stop err = %v, want ErrNoSession", err)
	}
}

func TestManagerRestartAfterStop(t *testing.T) {
	m := newTestManager(t)

	first, err := m.Start()
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	second, err := m.Start()
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	defer m.Stop()

	if second.ID == first.ID {
		t.Error("restarted session reuses the old ID")
	}
}

func TestManagerPropagatesCameraOpenFailure(t *testing.T) {
	m := newTestManager(t)
	m.SetSourceFactory(func() (camera.Source, error) {
		return nil, errors.New("device not found")
	})

	if _, err := m.Start(); err == nil {
		t.Error("expected an error when the camera cannot be opened")
	}
	if m.Current() != nil {
		t.Error("failed start left a session behind")
	}
}
