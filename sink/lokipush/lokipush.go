package lokipush

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/c360/logship/errors"
	"github.com/c360/logship/event"
	"github.com/c360/logship/stream"
)

const (
	component = "Loki"

	// pushPath is the Loki push API endpoint, appended to the base URL.
	pushPath = "/loki/api/v1/push"

	// DefaultTimeout bounds a single push request.
	DefaultTimeout = 10 * time.Second
)

// labelNamePattern matches valid Loki label names.
var labelNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config holds configuration for the Loki push sink
type Config struct {
	// URL is the base URL of the Loki instance, e.g. http://localhost:3100.
	URL string `json:"url"`

	// TenantID is sent as the X-Scope-OrgID header when set.
	TenantID string `json:"tenant_id"`

	// Labels are static labels attached to every pushed stream, in
	// addition to job, group, and stream.
	Labels map[string]string `json:"labels"`

	// Timeout bounds a single push request. Zero means DefaultTimeout.
	Timeout time.Duration `json:"timeout"`

	// Client overrides the HTTP client, for custom TLS or transports.
	Client *http.Client `json:"-"`
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.URL == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate", "url is required")
	}

	parsed, err := url.Parse(c.URL)
	if err != nil {
		return errors.WrapInvalid(err, "Config", "Validate", "invalid URL format")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"url scheme must be http or https")
	}

	if c.Timeout < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"timeout cannot be negative")
	}

	for name := range c.Labels {
		if !labelNamePattern.MatchString(name) {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
				"invalid label name "+name)
		}
		switch name {
		case "job", "group", "stream":
			return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
				"label "+name+" is reserved")
		}
	}

	return nil
}

// DefaultConfig returns default configuration for the Loki push sink
func DefaultConfig() Config {
	return Config{
		URL:     "http://localhost:3100",
		Labels:  make(map[string]string),
		Timeout: DefaultTimeout,
	}
}

// Sink pushes log batches to a Loki instance. Loki creates streams
// implicitly from labels and keeps no client-visible write position, so this
// sink is cursorless: Cursor always returns NoCursor and Append ignores the
// supplied cursor. Duplicate suppression is up to the server.
type Sink struct {
	pushURL    string
	tenantID   string
	baseLabels map[string]string
	client     *http.Client
}

// New creates a Loki push sink from configuration.
func New(cfg Config) (*Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}

	baseLabels := map[string]string{"job": "logship"}
	for k, v := range cfg.Labels {
		baseLabels[k] = v
	}

	return &Sink{
		pushURL:    strings.TrimSuffix(cfg.URL, "/") + pushPath,
		tenantID:   cfg.TenantID,
		baseLabels: baseLabels,
		client:     client,
	}, nil
}

// pushStream is one labeled stream in the push payload.
type pushStream struct {
	Stream map[string]string `json:"stream"`
	Values [][2]string       `json:"values"`
}

// pushPayload is the body of a push request.
type pushPayload struct {
	Streams []pushStream `json:"streams"`
}

// CreateStream validates the destination and options. Loki creates streams
// implicitly on first push, and retention is configured server-side, so
// nothing is sent.
func (s *Sink) CreateStream(_ context.Context, dest stream.Destination, opts stream.CreateOptions) error {
	if err := dest.Validate(); err != nil {
		return err
	}
	return opts.Validate()
}

// Append pushes events as one labeled stream. All events land or none do;
// Loki applies a push atomically per request. The returned cursor is always
// NoCursor.
func (s *Sink) Append(ctx context.Context, dest stream.Destination, _ stream.Cursor, events []event.Event) (stream.Cursor, error) {
	if err := dest.Validate(); err != nil {
		return stream.NoCursor, err
	}
	if len(events) == 0 {
		return stream.NoCursor, errors.WrapInvalid(errors.ErrEmptyBatch, component, "Append", "reject empty batch")
	}

	values := make([][2]string, len(events))
	for i, ev := range events {
		// Loki wants nanosecond timestamps as strings.
		ns := ev.Time * int64(time.Millisecond)
		values[i] = [2]string{strconv.FormatInt(ns, 10), ev.Message}
	}

	labels := make(map[string]string, len(s.baseLabels)+2)
	for k, v := range s.baseLabels {
		labels[k] = v
	}
	labels["group"] = dest.Group
	labels["stream"] = dest.Stream

	payload := pushPayload{Streams: []pushStream{{Stream: labels, Values: values}}}
	body, err := json.Marshal(payload)
	if err != nil {
		return stream.NoCursor, errors.WrapInvalid(err, component, "Append", "encode push payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.pushURL, bytes.NewReader(body))
	if err != nil {
		return stream.NoCursor, errors.WrapInvalid(err, component, "Append", "build push request")
	}
	req.Header.Set("Content-Type", "application/json")
	if s.tenantID != "" {
		req.Header.Set("X-Scope-OrgID", s.tenantID)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return stream.NoCursor, errors.WrapTransient(err, component, "Append", "send push request")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		// Read and discard body to reuse connection
		_, _ = io.Copy(io.Discard, resp.Body)
		return stream.NoCursor, nil
	}

	return stream.NoCursor, s.statusError(resp)
}

// Cursor reports the sink as cursorless.
func (s *Sink) Cursor(_ context.Context, dest stream.Destination) (stream.Cursor, error) {
	if err := dest.Validate(); err != nil {
		return stream.NoCursor, err
	}
	return stream.NoCursor, nil
}

// statusError maps a rejected push onto the shared error classes. Rate
// limiting and server trouble are worth retrying, bad credentials are not,
// and everything else means the payload itself was refused.
func (s *Sink) statusError(resp *http.Response) error {
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

	statusErr := fmt.Errorf("loki returned status %d", resp.StatusCode)
	if msg := strings.TrimSpace(string(detail)); msg != "" {
		statusErr = fmt.Errorf("loki returned status %d: %s", resp.StatusCode, msg)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return errors.WrapTransient(statusErr, component, "Append", "push rejected")
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return errors.WrapFatal(statusErr, component, "Append", "push rejected")
	default:
		return errors.WrapInvalid(statusErr, component, "Append", "push rejected")
	}
}
