package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	jobdomain "github.com/kittypup/kittypup/internal/job/domain"
)

// Deliverer hands a single job to the external compute worker.
type Deliverer interface {
	Deliver(ctx context.Context, msg jobdomain.DispatchMessage) error
}

// generateRequest is the wire contract of the compute worker's accept
// endpoint. The worker reports the outcome later on callback_url.
type generateRequest struct {
	JobID       string   `json:"job_id"`
	PetType     string   `json:"pet_type"`
	ImageKeys   []string `json:"image_keys"`
	Breed       *string  `json:"breed,omitempty"`
	Watermark   bool     `json:"watermark"`
	CallbackURL string   `json:"callback_url"`
}

// GPUClient delivers jobs to the GPU worker fleet over HTTP.
type GPUClient struct {
	httpClient  *http.Client
	baseURL     string
	callbackURL string
}

func NewGPUClient(baseURL, callbackBase string) *GPUClient {
	return &GPUClient{
		httpClient:  &http.Client{Timeout: deliveryTimeout},
		baseURL:     strings.TrimRight(baseURL, "/"),
		callbackURL: strings.TrimRight(callbackBase, "/") + "/internal/worker-callback",
	}
}

func (c *GPUClient) Deliver(ctx context.Context, msg jobdomain.DispatchMessage) error {
	body, err := json.Marshal(generateRequest{
		JobID:       msg.JobID.String(),
		PetType:     string(msg.PetType),
		ImageKeys:   msg.ImageKeys,
		Breed:       msg.Breed,
		Watermark:   msg.IsWatermarked,
		CallbackURL: c.callbackURL,
	})
	if err != nil {
		return fmt.Errorf("encode generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generate", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("deliver job %s: %w", msg.JobID, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("deliver job %s: worker returned %d", msg.JobID, resp.StatusCode)
	}
	return nil
}

var _ Deliverer = (*GPUClient)(nil)
