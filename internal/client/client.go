package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/richmiles/platform-infra/internal/config"
	"github.com/richmiles/platform-infra/internal/metrics"
)

const (
	defaultTimeout = 20 * time.Second
	maxBodyBytes   = 1 << 20
)

type Client struct {
	httpClient             *http.Client
	ingestURL              string
	apiKey                 string
	userAgent              string
	allowInsecureLocalhost bool
	newRequestID           func() string
}

type Options struct {
	// HTTPClient overrides the default client; its Timeout is left untouched.
	HTTPClient *http.Client
	UserAgent  string
}

// HTTPError is an application-level failure: the server answered with a
// status of 400 or above.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("metrics ingest failed (%d): %s", e.StatusCode, e.Body)
}

// ConnectionError is a transport-level failure (DNS, TCP, TLS, deadline).
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("metrics ingest connection failed: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

func NewClient(cfg config.Config) *Client {
	return NewClientWithOptions(cfg, Options{})
}

func NewClientWithOptions(cfg config.Config, opts Options) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = "metrics-collector"
	}
	return &Client{
		httpClient:             httpClient,
		ingestURL:              strings.TrimSpace(cfg.IngestURL),
		apiKey:                 cfg.APIKey,
		userAgent:              userAgent,
		allowInsecureLocalhost: cfg.AllowInsecureLocalhost,
		newRequestID:           uuid.NewString,
	}
}

// SendPayload posts the payload once. Statuses below 400 are success.
func (c *Client) SendPayload(ctx context.Context, payload *metrics.Payload) (*IngestResponse, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return nil, config.ErrMissingAPIKey
	}
	if err := c.validateIngestURL(); err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	requestID := c.newRequestID()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.ingestURL, bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("X-Request-ID", requestID)
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ConnectionError{Err: transportReason(err)}
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	body := strings.TrimSpace(strings.ToValidUTF8(string(bodyBytes), "�"))
	if resp.StatusCode >= 400 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: body}
	}

	return &IngestResponse{
		StatusCode: resp.StatusCode,
		Body:       body,
		RequestID:  requestID,
	}, nil
}

func (c *Client) validateIngestURL() error {
	parsed, err := url.Parse(c.ingestURL)
	if err != nil {
		return fmt.Errorf("invalid ingest URL: %w", err)
	}

	switch parsed.Scheme {
	case "https":
		return nil
	case "http":
		if c.allowInsecureLocalhost && isLocalhost(parsed.Hostname()) {
			return nil
		}
		return errors.New("ingest URL must use HTTPS")
	default:
		return errors.New("ingest URL must use HTTPS")
	}
}

func isLocalhost(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback()
}

// transportReason strips the url.Error wrapper so the message carries the
// underlying reason once.
func transportReason(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return urlErr.Err
	}
	return err
}
