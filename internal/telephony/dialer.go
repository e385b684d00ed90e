package telephony

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"crm-interactions/internal/calls"

	"github.com/google/uuid"
)

// HTTPDialer places outbound calls through the PBX click-to-dial REST API.
//
// Request:  POST {BaseURL}/api/v1/calls  {"from": "...", "to": "..."}
// Response: 2xx {"id": "...", "created_at": "RFC3339"}
type HTTPDialer struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewHTTPDialer(baseURL, token string, client *http.Client) *HTTPDialer {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPDialer{baseURL: strings.TrimRight(baseURL, "/"), token: token, client: client}
}

type placeCallResponse struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

func (d *HTTPDialer) PlaceCall(ctx context.Context, req calls.PlaceCallRequest) (calls.PlacedCall, error) {
	body, err := json.Marshal(map[string]string{"from": req.From, "to": req.To})
	if err != nil {
		return calls.PlacedCall{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/api/v1/calls", bytes.NewReader(body))
	if err != nil {
		return calls.PlacedCall{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if d.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+d.token)
	}

	res, err := d.client.Do(httpReq)
	if err != nil {
		return calls.PlacedCall{}, err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return calls.PlacedCall{}, fmt.Errorf("pbx: place call: status %d: %s", res.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out placeCallResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return calls.PlacedCall{}, fmt.Errorf("pbx: decode response: %w", err)
	}
	if out.ID == "" {
		return calls.PlacedCall{}, errors.New("pbx: response missing call id")
	}
	return calls.PlacedCall{ID: out.ID, CreatedAt: out.CreatedAt}, nil
}

// SandboxDialer accepts every call without contacting a PBX. Used in mock mode.
type SandboxDialer struct {
	// Fail, when set, is returned by every PlaceCall.
	Fail error
	now  func() time.Time
}

func NewSandboxDialer() *SandboxDialer { return &SandboxDialer{now: time.Now} }

func (d *SandboxDialer) PlaceCall(ctx context.Context, req calls.PlaceCallRequest) (calls.PlacedCall, error) {
	if d.Fail != nil {
		return calls.PlacedCall{}, d.Fail
	}
	now := time.Now
	if d.now != nil {
		now = d.now
	}
	return calls.PlacedCall{ID: "sandbox-" + uuid.NewString(), CreatedAt: now().UTC()}, nil
}
