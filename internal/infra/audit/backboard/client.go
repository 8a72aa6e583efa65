package backboard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const assistantSystemPrompt = "You are a reasoning audit assistant for a financial call " +
	"risk analysis pipeline. You store grounding context, retrieved knowledge, and " +
	"model reasoning output for each call to provide full traceability and " +
	"explainability. When asked about past calls, summarize the reasoning chain and " +
	"highlight risk patterns."

// Client talks to the Backboard thread API. It lazily provisions one
// assistant and caches its identifier for the process lifetime.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client

	mu          sync.Mutex
	assistantID string
}

func NewClient(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = "https://app.backboard.io/api"
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// CreateThread opens an audit thread tagged with the call identifier.
func (c *Client) CreateThread(ctx context.Context, callID string) (string, error) {
	assistantID, err := c.ensureAssistant(ctx)
	if err != nil {
		return "", err
	}

	body := map[string]any{
		"metadata_": map[string]string{"call_id": callID, "source": "callground"},
	}
	var resp struct {
		ThreadID string `json:"thread_id"`
		ID       string `json:"id"`
	}
	if err := c.postJSON(ctx, "/assistants/"+assistantID+"/threads", body, &resp); err != nil {
		return "", fmt.Errorf("creating audit thread: %w", err)
	}
	threadID := resp.ThreadID
	if threadID == "" {
		threadID = resp.ID
	}
	if threadID == "" {
		return "", fmt.Errorf("audit thread response carried no identifier")
	}
	return threadID, nil
}

// Append stores one labeled message on the thread without triggering
// model reasoning on the remote side.
func (c *Client) Append(ctx context.Context, threadID, label, content string) error {
	form := url.Values{
		"content":     {fmt.Sprintf("[%s]\n%s", label, content)},
		"send_to_llm": {"false"},
		"stream":      {"false"},
		"memory":      {"Auto"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/threads/"+threadID+"/messages",
		strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("appending to audit thread: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("audit append returned status %d", resp.StatusCode)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// Fetch returns the thread's messages as a JSON document.
func (c *Client) Fetch(ctx context.Context, threadID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/threads/"+threadID+"/messages", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching audit thread: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("audit fetch returned status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ensureAssistant creates or reuses the audit assistant. Only the first
// caller pays the round trip.
func (c *Client) ensureAssistant(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.assistantID != "" {
		return c.assistantID, nil
	}

	body := map[string]any{
		"name":          "Callground Auditor",
		"system_prompt": assistantSystemPrompt,
	}
	var resp struct {
		AssistantID string `json:"assistant_id"`
		ID          string `json:"id"`
	}
	if err := c.postJSON(ctx, "/assistants", body, &resp); err != nil {
		return "", fmt.Errorf("provisioning audit assistant: %w", err)
	}
	id := resp.AssistantID
	if id == "" {
		id = resp.ID
	}
	if id == "" {
		return "", fmt.Errorf("assistant response carried no identifier")
	}
	c.assistantID = id
	return id, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
