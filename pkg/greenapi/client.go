package greenapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"wadigest/pkg/config"
)

const methodPath = "/waInstance{idInstance}/{method}/{apiTokenInstance}"

var (
	ErrSendingDisabled = errors.New("message sending is disabled")
	ErrNotSummary      = errors.New("only summary messages may be sent")
)

// APIError is a non-2xx response from the Green API.
type APIError struct {
	Method     string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("green api %s: status %d: %s", e.Method, e.StatusCode, body)
}

// Contact is one entry of getContacts.
type Contact struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ContactName string `json:"contactName"`
	Type        string `json:"type"`
}

func (c Contact) IsGroup() bool {
	return c.Type == "group" || strings.HasSuffix(c.ID, "@g.us")
}

// DisplayName prefers the saved contact name over the profile name.
func (c Contact) DisplayName() string {
	if name := strings.TrimSpace(c.ContactName); name != "" {
		return name
	}
	if name := strings.TrimSpace(c.Name); name != "" {
		return name
	}
	return c.ID
}

// SendResult is the response of sendMessage.
type SendResult struct {
	IDMessage string `json:"idMessage"`
}

// Client talks to one Green API instance. Calls are spaced by the
// configured API delay to stay under the platform rate limits.
type Client struct {
	http           *resty.Client
	instanceID     string
	token          string
	apiDelay       time.Duration
	sendingEnabled bool

	mu       sync.Mutex
	lastCall time.Time
}

func New(cfg config.GreenAPIConfig) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("green_api config: %w", err)
	}

	retryWait := time.Duration(cfg.RetryDelaySeconds) * time.Second
	if retryWait <= 0 {
		retryWait = time.Second
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(retryWait).
		SetRetryMaxWaitTime(8 * retryWait).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return resp.StatusCode() == http.StatusTooManyRequests || resp.StatusCode() >= http.StatusInternalServerError
		})
	if cfg.RequestTimeoutSeconds > 0 {
		httpClient.SetTimeout(time.Duration(cfg.RequestTimeoutSeconds) * time.Second)
	}

	return &Client{
		http:           httpClient,
		instanceID:     cfg.InstanceID,
		token:          cfg.Token,
		apiDelay:       time.Duration(cfg.APIDelayMillis) * time.Millisecond,
		sendingEnabled: !cfg.SendingDisabled,
	}, nil
}

// State returns the instance state, for example "authorized".
func (c *Client) State(ctx context.Context) (string, error) {
	var out struct {
		StateInstance string `json:"stateInstance"`
	}
	body, err := c.call(ctx, http.MethodGet, "getStateInstance", nil)
	if err != nil {
		return "", err
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode getStateInstance: %w", err)
	}
	return out.StateInstance, nil
}

// Health fails unless the instance is authorized.
func (c *Client) Health(ctx context.Context) error {
	state, err := c.State(ctx)
	if err != nil {
		return err
	}
	if state != "authorized" {
		return fmt.Errorf("green api instance state is %q", state)
	}
	return nil
}

// ChatHistory returns the newest count records of a chat as undecoded
// JSON objects, newest first as the platform delivers them. Numbers are
// kept as json.Number.
func (c *Client) ChatHistory(ctx context.Context, chatID string, count int) ([]any, error) {
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return nil, errors.New("chat id is required")
	}
	if count <= 0 {
		count = 100
	}

	body, err := c.call(ctx, http.MethodPost, "getChatHistory", map[string]any{
		"chatId": chatID,
		"count":  count,
	})
	if err != nil {
		return nil, err
	}

	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	var records []any
	if err := decoder.Decode(&records); err != nil {
		return nil, fmt.Errorf("decode getChatHistory: %w", err)
	}
	if records == nil {
		records = []any{}
	}
	return records, nil
}

// Contacts lists the instance's contacts and groups.
func (c *Client) Contacts(ctx context.Context) ([]Contact, error) {
	body, err := c.call(ctx, http.MethodGet, "getContacts", nil)
	if err != nil {
		return nil, err
	}
	var contacts []Contact
	if err := json.Unmarshal(body, &contacts); err != nil {
		return nil, fmt.Errorf("decode getContacts: %w", err)
	}
	return contacts, nil
}

// Groups is Contacts narrowed to group chats.
func (c *Client) Groups(ctx context.Context) ([]Contact, error) {
	contacts, err := c.Contacts(ctx)
	if err != nil {
		return nil, err
	}
	groups := make([]Contact, 0, len(contacts))
	for _, contact := range contacts {
		if contact.IsGroup() {
			groups = append(groups, contact)
		}
	}
	return groups, nil
}

// SendMessage posts text to a chat. Only summaries are ever sent, and only
// when sending is enabled in config.
func (c *Client) SendMessage(ctx context.Context, chatID string, text string, isSummary bool) (SendResult, error) {
	log := clientLogger()
	if !c.sendingEnabled {
		log.Warn("green api send blocked", "chat_id", chatID, "reason", "disabled")
		return SendResult{}, ErrSendingDisabled
	}
	if !isSummary {
		log.Warn("green api send blocked", "chat_id", chatID, "reason", "not_summary")
		return SendResult{}, ErrNotSummary
	}

	body, err := c.call(ctx, http.MethodPost, "sendMessage", map[string]any{
		"chatId":  chatID,
		"message": text,
	})
	if err != nil {
		return SendResult{}, err
	}
	var out SendResult
	if err := json.Unmarshal(body, &out); err != nil {
		return SendResult{}, fmt.Errorf("decode sendMessage: %w", err)
	}
	return out, nil
}

func (c *Client) SendingEnabled() bool { return c.sendingEnabled }

func (c *Client) call(ctx context.Context, httpMethod string, method string, payload any) ([]byte, error) {
	if err := c.throttle(ctx); err != nil {
		return nil, err
	}

	log := clientLogger()
	startedAt := time.Now()
	log.Debug("green api request started", "method", method)

	req := c.http.R().
		SetContext(ctx).
		SetPathParams(map[string]string{
			"idInstance":       c.instanceID,
			"method":           method,
			"apiTokenInstance": c.token,
		})
	if payload != nil {
		req.SetBody(payload)
	}

	resp, err := req.Execute(httpMethod, methodPath)
	if err != nil {
		log.Debug("green api request failed", "method", method, "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return nil, fmt.Errorf("green api %s: %w", method, err)
	}
	if resp.IsError() {
		log.Debug("green api request failed", "method", method, "duration_ms", time.Since(startedAt).Milliseconds(), "status", resp.StatusCode())
		return nil, &APIError{Method: method, StatusCode: resp.StatusCode(), Body: resp.String()}
	}

	log.Debug("green api request completed", "method", method, "duration_ms", time.Since(startedAt).Milliseconds(), "attempts", resp.Request.Attempt)
	return resp.Body(), nil
}

// throttle waits until apiDelay has passed since the previous call.
func (c *Client) throttle(ctx context.Context) error {
	if c.apiDelay <= 0 {
		return ctx.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if wait := c.apiDelay - time.Since(c.lastCall); wait > 0 && !c.lastCall.IsZero() {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	c.lastCall = time.Now()
	return nil
}

func clientLogger() *slog.Logger {
	return slog.Default().With("component", "greenapi")
}
