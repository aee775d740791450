// Package helpdesk is a thin client over the center's external help-desk
// service. The platform never stores tickets itself, it forwards them and
// reads status back.
package helpdesk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/teleatencion/platform/internal/shared/config"
)

// Client talks to the help-desk REST API
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	retryAttempts int
	retryDelay    time.Duration
}

// New creates a help-desk client from the service configuration
func New(cfg config.HelpdeskConfig) *Client {
	return &Client{
		baseURL: cfg.URL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		retryAttempts: 3,
		retryDelay:    time.Second,
	}
}

// CreateTicket opens a ticket on behalf of a provider
func (c *Client) CreateTicket(ctx context.Context, reportedBy string, req TicketRequest) (*Ticket, error) {
	payload := map[string]any{
		"patient_document": req.PatientDocument,
		"motive":           req.Motive,
		"description":      req.Description,
		"facility":         req.Facility,
		"reported_by":      reportedBy,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode ticket: %w", err)
	}

	resp, err := c.doRequest(ctx, http.MethodPost, c.baseURL+"/tickets", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create ticket: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var ticket Ticket
	if err := json.NewDecoder(resp.Body).Decode(&ticket); err != nil {
		return nil, fmt.Errorf("failed to decode ticket: %w", err)
	}

	return &ticket, nil
}

// GetTicket retrieves a ticket by its help-desk identifier
func (c *Client) GetTicket(ctx context.Context, ticketID string) (*Ticket, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, c.baseURL+"/tickets/"+ticketID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ticket: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("ticket not found: %s", ticketID)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var ticket Ticket
	if err := json.NewDecoder(resp.Body).Decode(&ticket); err != nil {
		return nil, fmt.Errorf("failed to decode ticket: %w", err)
	}

	return &ticket, nil
}

// Health checks help-desk service availability
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("help-desk service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("help-desk service unhealthy: %d", resp.StatusCode)
	}

	return nil
}

// doRequest performs an HTTP request with retry on server errors
func (c *Client) doRequest(ctx context.Context, method, url string, body io.Reader) (*http.Response, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = io.ReadAll(body)
		if err != nil {
			return nil, err
		}
	}

	var lastErr error
	for attempt := 0; attempt < c.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}

		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
		if err != nil {
			return nil, err
		}

		req.Header.Set("Accept", "application/json")
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("X-API-Key", c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			continue
		}

		return resp, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
