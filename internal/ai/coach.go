package ai

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
)

// CoachClient talks to the HealthMate coaching backend. The streaming path
// returns a chunked SSE body that DecodeStream consumes; the non-streaming
// path exists for completeness but production fallback goes through
// BackupClient.
type CoachClient struct {
	BaseURL string
	AppName string
	Client  *http.Client
}

type coachChatReq struct {
	Prompt    string `json:"prompt"`
	SessionID string `json:"session_id"`
	Locale    string `json:"locale"`
	Stream    bool   `json:"stream"`
}

type coachChatResp struct {
	Reply string `json:"reply"`
	Error string `json:"error,omitempty"`
}

func NewCoachClient(baseURL, appName string) *CoachClient {
	if baseURL == "" {
		baseURL = "http://localhost:8085"
	}
	return &CoachClient{
		BaseURL: baseURL,
		AppName: appName,
		Client:  &http.Client{Timeout: 90 * time.Second},
	}
}

func (c *CoachClient) newRequest(ctx context.Context, token string, req ChatRequest, stream bool) (*http.Request, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("coach: bearer token is required")
	}
	body := coachChatReq{
		Prompt:    req.Prompt,
		SessionID: req.SessionID,
		Locale:    req.Locale,
		Stream:    stream,
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/v1/chat", strings.TrimRight(c.BaseURL, "/"))
	hr, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	hr.Header.Set("Content-Type", "application/json")
	hr.Header.Set("Authorization", "Bearer "+token)
	// Session-correlation header required by the backend.
	hr.Header.Set("X-Session-ID", req.SessionID)
	if c.AppName != "" {
		hr.Header.Set("X-Title", c.AppName)
	}
	return hr, nil
}

func (c *CoachClient) Chat(ctx context.Context, token string, req ChatRequest) (string, error) {
	if c.Client == nil {
		return "", errors.New("coach: http client is nil")
	}
	hr, err := c.newRequest(ctx, token, req, false)
	if err != nil {
		return "", err
	}

	resp, err := c.Client.Do(hr)
	if err != nil {
		return "", ClassifyErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", ClassifyStatus(resp.StatusCode, readErrBody(resp.Body))
	}

	var decoded coachChatResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", err
	}
	if decoded.Error != "" {
		return "", errors.New(decoded.Error)
	}
	return decoded.Reply, nil
}

// StreamChat opens the chunked request and forwards decoded events. Both
// channels close when streaming ends; any failure before clean end-of-stream
// is delivered on the error channel.
func (c *CoachClient) StreamChat(ctx context.Context, token string, req ChatRequest) (<-chan Event, <-chan error) {
	events := make(chan Event, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(events)
		defer close(errs)

		if c.Client == nil {
			errs <- errors.New("coach: http client is nil")
			return
		}
		hr, err := c.newRequest(ctx, token, req, true)
		if err != nil {
			errs <- err
			return
		}

		resp, err := c.Client.Do(hr)
		if err != nil {
			errs <- ClassifyErr(err)
			return
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			msg := readErrBody(resp.Body)
			resp.Body.Close()
			errs <- ClassifyStatus(resp.StatusCode, msg)
			return
		}

		// DecodeStream owns resp.Body from here and closes it.
		decoded, decErrs := DecodeStream(ctx, resp.Body)
		for ev := range decoded {
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
		if err := <-decErrs; err != nil {
			errs <- err
		}
	}()

	return events, errs
}

func readErrBody(r io.Reader) string {
	body, _ := io.ReadAll(io.LimitReader(r, 4*1024))
	msg := strings.TrimSpace(string(body))
	return msg
}
