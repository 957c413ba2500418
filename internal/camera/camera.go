// Package camera acquires frames from a video source and feeds them to the
// recognition pipeline through a bounded queue.
package camera

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kadlecj/facetrack/internal/config"
)

// Source yields a sequence of JPEG frames. End-of-stream and device errors
// are recoverable conditions: callers retry or surface a camera-unavailable
// state, they never treat them as fatal.
type Source interface {
	// Next blocks until the next frame is available or ctx is done.
	Next(ctx context.Context) ([]byte, error)
	// Close releases the device/connection. Safe to call more than once.
	Close() error
}

// HTTPCamera polls a snapshot URL (the common IP-camera "current frame"
// endpoint) at a fixed interval.
type HTTPCamera struct {
	url      string
	interval time.Duration
	http     *http.Client
	last     time.Time
}

// NewHTTPCamera creates a snapshot-polling camera from config.
func NewHTTPCamera(cfg *config.CameraConfig) (*HTTPCamera, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("camera URL is not configured")
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	return &HTTPCamera{
		url:      cfg.URL,
		interval: interval,
		http:     &http.Client{Timeout: 5 * time.Second},
	}, nil
}

// Next fetches one frame, pacing requests to the configured interval.
func (c *HTTPCamera) Next(ctx context.Context) ([]byte, error) {
	if wait := c.interval - time.Since(c.last); wait > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	c.last = time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("camera read: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("camera returned status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		return nil, fmt.Errorf("camera returned unexpected content type %q", ct)
	}

	frame, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading frame: %w", err)
	}
	if len(frame) == 0 {
		return nil, fmt.Errorf("camera returned an empty frame")
	}
	return frame, nil
}

// Close is a no-op for the snapshot camera; each frame is its own request.
func (c *HTTPCamera) Close() error {
	return nil
}

// Producer pumps frames from a Source into a bounded queue so that a slow
// detection pass sheds frames instead of stalling the camera. Policy is
// drop-oldest: when the queue is full the stale frame is discarded and the
// fresh one enqueued, because for live attendance the newest frame is always
// the most useful one.
type Producer struct {
	source Source
	frames chan []byte
	errs   chan error
}

// NewProducer creates a producer over the source with the given queue size.
func NewProducer(source Source, queueSize int) *Producer {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Producer{
		source: source,
		frames: make(chan []byte, queueSize),
		errs:   make(chan error, 1),
	}
}

// Frames returns the queue of captured frames.
func (p *Producer) Frames() <-chan []byte {
	return p.frames
}

// Errors returns camera read errors. The channel holds at most one pending
// error; consumers that lag simply see the most recent failure.
func (p *Producer) Errors() <-chan error {
	return p.errs
}

// Run reads frames until ctx is cancelled, then closes the queue and
// releases the source. It never returns on camera errors; those are reported
// through Errors and retried with exponential backoff.
func (p *Producer) Run(ctx context.Context) {
	defer close(p.frames)
	defer p.source.Close()

	backoff := time.Duration(0)
	for {
		frame, err := p.source.Next(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			select {
			case p.errs <- err:
			default:
			}
			if backoff == 0 {
				backoff = 500 * time.Millisecond
			} else if backoff < 10*time.Second {
				backoff *= 2
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			continue
		}
		backoff = 0

		p.enqueue(ctx, frame)
	}
}

// enqueue adds a frame to the queue, dropping the oldest queued frame when
// the queue is full.
func (p *Producer) enqueue(ctx context.Context, frame []byte) {
	for {
		select {
		case p.frames <- frame:
			return
		case <-ctx.Done():
			return
		default:
		}
		select {
		case <-p.frames:
		default:
		}
	}
}
