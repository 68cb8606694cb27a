// Package nlp is the boundary to the external natural-language parser.
// The parser turns staff free text into a structured command with a
// confidence score; everything it returns is untrusted input that the
// caller re-validates field by field before acting.
package nlp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"caresched/internal/timeutil"
)

// Command contexts the parser can be primed with.
const (
	ContextGeneral      = "general"
	ContextClient       = "client"
	ContextPractitioner = "practitioner"
	ContextRule         = "rule"
	ContextSchedule     = "schedule"
)

// ParsedCommand is the parser's structured output. Data is decoded per
// Type by the typed accessors below.
type ParsedCommand struct {
	Type       string          `json:"type"` // "move", "cancel", "create"
	Confidence float64         `json:"confidence"`
	Data       json.RawMessage `json:"data"`
	Warnings   []string        `json:"warnings,omitempty"`
}

// MoveCommand relocates one session.
type MoveCommand struct {
	SessionID string `json:"session_id"`
	Date      string `json:"date,omitempty"`
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
}

// CancelCommand removes one session.
type CancelCommand struct {
	SessionID string `json:"session_id"`
}

// CreateCommand adds one session.
type CreateCommand struct {
	PractitionerID string `json:"practitioner_id"`
	ClientID       string `json:"client_id"`
	RoomID         string `json:"room_id,omitempty"`
	Date           string `json:"date"`
	StartTime      string `json:"start_time"`
	EndTime        string `json:"end_time,omitempty"`
}

// Client calls the parser service. A token-bucket limiter keeps request
// bursts from one chatty caller within the service's quota.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewClient(baseURL, apiKey string, ratePerSecond float64, burst int) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(ratePerSecond), burst),
	}
}

type parseRequest struct {
	Text    string `json:"text"`
	Context string `json:"context"`
}

// Parse submits free text and a command context. Parser failures are
// returned as-is; the caller decides whether to re-prompt, never this
// client.
func (c *Client) Parse(ctx context.Context, text, commandContext string) (*ParsedCommand, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(parseRequest{Text: text, Context: commandContext})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/parse", strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("parser request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("parser http %d", resp.StatusCode)
	}

	var parsed ParsedCommand
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode parser response: %w", err)
	}
	if parsed.Confidence < 0 || parsed.Confidence > 1 {
		return nil, fmt.Errorf("parser confidence %v out of range", parsed.Confidence)
	}
	return &parsed, nil
}

// Move decodes and validates a move payload.
func (p *ParsedCommand) Move() (*MoveCommand, error) {
	if p.Type != "move" {
		return nil, fmt.Errorf("command type %q is not move", p.Type)
	}
	var cmd MoveCommand
	if err := json.Unmarshal(p.Data, &cmd); err != nil {
		return nil, fmt.Errorf("decode move payload: %w", err)
	}
	if cmd.SessionID == "" {
		return nil, fmt.Errorf("move payload missing session_id")
	}
	if cmd.Date == "" && cmd.StartTime == "" {
		return nil, fmt.Errorf("move payload changes nothing")
	}
	if err := validTemporal(cmd.Date, cmd.StartTime, cmd.EndTime); err != nil {
		return nil, err
	}
	return &cmd, nil
}

// Cancel decodes and validates a cancel payload.
func (p *ParsedCommand) Cancel() (*CancelCommand, error) {
	if p.Type != "cancel" {
		return nil, fmt.Errorf("command type %q is not cancel", p.Type)
	}
	var cmd CancelCommand
	if err := json.Unmarshal(p.Data, &cmd); err != nil {
		return nil, fmt.Errorf("decode cancel payload: %w", err)
	}
	if cmd.SessionID == "" {
		return nil, fmt.Errorf("cancel payload missing session_id")
	}
	return &cmd, nil
}

// Create decodes and validates a create payload.
func (p *ParsedCommand) Create() (*CreateCommand, error) {
	if p.Type != "create" {
		return nil, fmt.Errorf("command type %q is not create", p.Type)
	}
	var cmd CreateCommand
	if err := json.Unmarshal(p.Data, &cmd); err != nil {
		return nil, fmt.Errorf("decode create payload: %w", err)
	}
	if cmd.PractitionerID == "" || cmd.ClientID == "" {
		return nil, fmt.Errorf("create payload missing practitioner_id or client_id")
	}
	if cmd.Date == "" || cmd.StartTime == "" {
		return nil, fmt.Errorf("create payload missing date or start_time")
	}
	if err := validTemporal(cmd.Date, cmd.StartTime, cmd.EndTime); err != nil {
		return nil, err
	}
	return &cmd, nil
}

func validTemporal(date, start, end string) error {
	if date != "" {
		if _, err := timeutil.ParseDate(date); err != nil {
			return err
		}
	}
	if start != "" {
		if _, err := timeutil.ParseTimeOfDay(start); err != nil {
			return err
		}
	}
	if end != "" {
		if _, err := timeutil.ParseTimeOfDay(end); err != nil {
			return err
		}
	}
	return nil
}
