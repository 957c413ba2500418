package session

import (
	"sync"
	"time"
)

// feedbackChannelBuffer is the per-listener buffer. A listener that stops
// draining loses events rather than stalling the frame loop.
const feedbackChannelBuffer = 64

// Outcome classifies the per-face result of one pass through the pipeline.
type Outcome string

const (
	// OutcomeMarked: attendance was written to the store on this frame.
	OutcomeMarked Outcome = "marked"
	// OutcomeAlreadyMarked: the person is recognized but attendance for the
	// day already exists (caught by either the cache or the store).
	OutcomeAlreadyMarked Outcome = "already_marked"
	// OutcomeUnknown: a face was found but matched no enrolled identity.
	OutcomeUnknown Outcome = "unknown"
	// OutcomeNoFace: the frame contained no usable face.
	OutcomeNoFace Outcome = "no_face"
	// OutcomeCameraError: the frame source is failing; the loop keeps retrying.
	OutcomeCameraError Outcome = "camera_error"
)

// Feedback is one event emitted to the presentation layer. For multi-face
// frames each face produces its own event; there is no frame-level verdict.
type Feedback struct {
	Outcome    Outcome   `json:"outcome"`
	IdentityID int64     `json:"identity_id,omitempty"`
	Name       string    `json:"name,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	At         time.Time `json:"at"`
}

// Broadcaster fans feedback events out to any number of listeners (SSE
// connections, the CLI, tests).
type Broadcaster struct {
	mu        sync.RWMutex
	listeners []chan Feedback
	closed    bool
}

// AddListener registers a new listener channel. After CloseAll the returned
// channel is already closed, so a late subscriber sees end-of-stream instead
// of a channel nobody will ever close.
func (b *Broadcaster) AddListener() chan Feedback {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Feedback, feedbackChannelBuffer)
	if b.closed {
		close(ch)
		return ch
	}
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener unregisters and closes a listener channel.
func (b *Broadcaster) RemoveListener(ch chan Feedback) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// Send broadcasts an event. Slow listeners are skipped, never waited for.
func (b *Broadcaster) Send(event Feedback) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
		}
	}
}

// CloseAll closes every listener channel. Called once when a session ends.
func (b *Broadcaster) CloseAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, listener := range b.listeners {
		close(listener)
	}
	b.listeners = nil
	b.closed = true
}
