// Package vision is the client for the external face detection/encoding
// service. The service is an opaque collaborator: one JPEG frame in, zero or
// more (bounding box, encoding vector) pairs out. No detection or model code
// lives in this repository.
package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kadlecj/facetrack/internal/config"
)

// Face is one detected face region with its encoding vector.
type Face struct {
	BBox     []float64 `json:"bbox"` // [x1, y1, x2, y2] in frame pixels
	Encoding []float64 `json:"encoding"`
}

// detectResponse is the wire format of the service's /detect endpoint.
type detectResponse struct {
	Faces []Face `json:"faces"`
}

// Client talks to the vision service over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a vision client from config.
func NewClient(cfg *config.VisionConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Detect sends one JPEG frame and returns the detected faces. A frame with no
// faces yields an empty slice, not an error; anything else (unreachable
// service, non-2xx, bad payload) is an error the caller treats as a dropped
// frame.
func (c *Client) Detect(ctx context.Context, frameJPEG []byte) ([]Face, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("vision service URL is not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/detect", bytes.NewReader(frameJPEG))
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("detect failed with status %d: %s", resp.StatusCode, readErrorBody(resp.Body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("could not read response body: %w", err)
	}

	var result detectResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("could not unmarshal response: %w", err)
	}

	if result.Faces == nil {
		return []Face{}, nil
	}
	return result.Faces, nil
}

// EncodeImage runs detection on an enrollment photo and requires exactly one
// face in it. Used by the enroll/retake flows.
func (c *Client) EncodeImage(ctx context.Context, imageJPEG []byte) ([]float64, error) {
	faces, err := c.Detect(ctx, imageJPEG)
	if err != nil {
		return nil, err
	}
	switch len(faces) {
	case 0:
		return nil, fmt.Errorf("no face found in the image")
	case 1:
		return faces[0].Encoding, nil
	default:
		return nil, fmt.Errorf("found %d faces in the image, expected exactly one", len(faces))
	}
}

// readErrorBody reads up to 512 bytes of an error response for diagnostics.
func readErrorBody(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, 512))
	if err != nil || len(body) == 0 {
		return "(no body)"
	}
	return strings.TrimSpace(string(body))
}
