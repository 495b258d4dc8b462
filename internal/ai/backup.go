package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// BackupClient is the non-streaming fallback transport. It answers with one
// complete reply and is only called after the primary stream has failed.
type BackupClient struct {
	BaseURL string
	Client  *http.Client
}

type backupChatResp struct {
	Reply string `json:"reply"`
	Error string `json:"error,omitempty"`
}

func NewBackupClient(baseURL string) *BackupClient {
	if baseURL == "" {
		baseURL = "http://localhost:8086"
	}
	return &BackupClient{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *BackupClient) Chat(ctx context.Context, token string, req ChatRequest) (string, error) {
	if c.Client == nil {
		return "", errors.New("backup: http client is nil")
	}

	b, err := json.Marshal(coachChatReq{
		Prompt:    req.Prompt,
		SessionID: req.SessionID,
		Locale:    req.Locale,
	})
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/v1/chat/backup", strings.TrimRight(c.BaseURL, "/"))
	hr, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	hr.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(token) != "" {
		hr.Header.Set("Authorization", "Bearer "+token)
	}
	hr.Header.Set("X-Session-ID", req.SessionID)

	resp, err := c.Client.Do(hr)
	if err != nil {
		return "", ClassifyErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", ClassifyStatus(resp.StatusCode, readErrBody(resp.Body))
	}

	var decoded backupChatResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", err
	}
	if decoded.Error != "" {
		return "", errors.New(decoded.Error)
	}
	if decoded.Reply == "" {
		return "", errors.New("backup: empty response")
	}
	return decoded.Reply, nil
}
