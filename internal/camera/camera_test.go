package camera

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/kadlecj/facetrack/internal/config"
)

// fakeSource replays a scripted sequence of frames/errors, then blocks until
// the context is cancelled.
type fakeSource struct {
	mu     sync.Mutex
	script []func() ([]byte, error)
	closed bool
}

func (f *fakeSource) Next(ctx context.Context) ([]byte, error) {
	f.mu.Lock()
	if len(f.script) == 0 {
		f.mu.Unlock()
		<-ctx.Done()
		return nil, ctx.Err()
	}
	step := f.script[0]
	f.script = f.script[1:]
	f.mu.Unlock()
	return step()
}

func (f *fakeSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSource) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func frameStep(data []byte) func() ([]byte, error) {
	return func() ([]byte, error) { return data, nil }
}

func errorStep(err error) func() ([]byte, error) {
	return func() ([]byte, error) { return nil, err }
}

func TestProducerDeliversFrames(t *testing.T) {
	source := &fakeSource{script: []func() ([]byte, error){
		frameStep([]byte("frame-1")),
		frameStep([]byte("frame-2")),
	}}
	p := NewProducer(source, 4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	for _, want := range []string{"frame-1", "frame-2"} {
		select {
		case frame := <-p.Frames():
			if string(frame) != want {
				t.Errorf("got frame %q, want %q", frame, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}

func TestProducerDropsOldestWhenFull(t *testing.T) {
	source := &fakeSource{script: []func() ([]byte, error){
		frameStep([]byte("old-1")),
		frameStep([]byte("old-2")),
		frameStep([]byte("new-1")),
		frameStep([]byte("new-2")),
	}}
	p := NewProducer(source, 2)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	// Let the producer exhaust the script with nobody draining the queue;
	// the two oldest frames must have been shed.
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	var got []string
	for frame := range p.Frames() {
		got = append(got, string(frame))
	}
	if len(got) != 2 || got[0] != "new-1" || got[1] != "new-2" {
		t.Errorf("queued frames = %v, want [new-1 new-2]", got)
	}
}

func TestProducerReportsErrorsAndRecovers(t *testing.T) {
	readErr := errors.New("device busy")
	source := &fakeSource{script: []func() ([]byte, error){
		errorStep(readErr),
		frameStep([]byte("after-recovery")),
	}}
	p := NewProducer(source, 2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	select {
	case err := <-p.Errors():
		if !errors.Is(err, readErr) {
			t.Errorf("got error %v, want %v", err, readErr)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for camera error")
	}

	// The loop retries after backoff and keeps producing.
	select {
	case frame := <-p.Frames():
		if string(frame) != "after-recovery" {
			t.Errorf("got frame %q", frame)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("producer did not recover after error")
	}
}

func TestProducerClosesSourceOnCancel(t *testing.T) {
	source := &fakeSource{}
	p := NewProducer(source, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("producer did not stop on cancel")
	}

	if !source.isClosed() {
		t.Error("source was not closed")
	}
	if _, ok := <-p.Frames(); ok {
		t.Error("frame channel not closed")
	}
}

func TestHTTPCameraFetchesFrame(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("jpeg-bytes"))
	}))
	defer server.Close()

	cam, err := NewHTTPCamera(&config.CameraConfig{URL: server.URL, Interval: time.Millisecond})
	if err != nil {
		t.Fatalf("NewHTTPCamera: %v", err)
	}

	frame, err := cam.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if string(frame) != "jpeg-bytes" {
		t.Errorf("frame = %q", frame)
	}
}

func TestHTTPCameraErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "non-200 status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
		},
		{
			name: "wrong content type",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/html")
				w.Write([]byte("<html>login page</html>"))
			},
		},
		{
			name: "empty body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "image/jpeg")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			cam, err := NewHTTPCamera(&config.CameraConfig{URL: server.URL, Interval: time.Millisecond})
			if err != nil {
				t.Fatalf("NewHTTPCamera: %v", err)
			}
			if _, err := cam.Next(context.Background()); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestNewHTTPCameraRequiresURL(t *testing.T) {
	if _, err := NewHTTPCamera(&config.CameraConfig{}); err == nil {
		t.Error("expected an error for missing URL")
	}
}
