// Package notify posts failed scenarios to a Slack incoming webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"coherence/internal/runner"
	"coherence/pkg/logging"
)

const (
	subsystem = "Notify"

	// DefaultTimeout bounds a single webhook delivery
	DefaultTimeout = 10 * time.Second
)

// Notifier delivers a text message somewhere a human will read it.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Webhook posts messages to a Slack incoming-webhook URL.
type Webhook struct {
	url    string
	client *http.Client
}

// Option configures a Webhook.
type Option func(*Webhook)

// WithHTTPClient replaces the client used for deliveries.
func WithHTTPClient(client *http.Client) Option {
	return func(w *Webhook) { w.client = client }
}

// NewWebhook creates a notifier posting to url.
func NewWebhook(url string, opts ...Option) *Webhook {
	w := &Webhook{
		url:    url,
		client: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

type payload struct {
	Text string `json:"text"`
}

// Notify POSTs {"text": text}. Any non-2xx status is an error.
func (w *Webhook) Notify(ctx context.Context, text string) error {
	body, err := json.Marshal(payload{Text: text})
	if err != nil {
		return fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}

// FailureReporter notifies about every failed or errored scenario. Delivery
// errors are logged and never interrupt the run.
type FailureReporter struct {
	notifier Notifier
	timeout  time.Duration
	runID    string
}

var _ runner.Reporter = (*FailureReporter)(nil)

// NewFailureReporter creates a reporter sending failures through notifier.
func NewFailureReporter(notifier Notifier) *FailureReporter {
	return &FailureReporter{notifier: notifier, timeout: DefaultTimeout}
}

func (r *FailureReporter) ReportStart(runID string, _ int) {
	r.runID = runID
}

func (r *FailureReporter) ReportScenarioResult(result runner.ScenarioResult) {
	if result.Result != runner.StatusFailed && result.Result != runner.StatusError {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := r.notifier.Notify(ctx, FormatFailure(r.runID, result)); err != nil {
		logging.Warn(subsystem, "Failed to notify about scenario %s: %v", result.Name, err)
		return
	}
	logging.Debug(subsystem, "Notified failure of scenario %s", result.Name)
}

func (r *FailureReporter) ReportSuiteResult(runner.SuiteResult) {}

// FormatFailure renders the message sent for a failed scenario.
func FormatFailure(runID string, result runner.ScenarioResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, ":x: Scenario *%s* %s", result.Name, strings.ToLower(string(result.Result)))
	if runID != "" {
		fmt.Fprintf(&b, " (run %s)", runID)
	}
	if result.Message != "" {
		fmt.Fprintf(&b, "\n%s", result.Message)
	}
	if result.CallStack != "" {
		fmt.Fprintf(&b, "\n```\n%s\n```", result.CallStack)
	}
	return b.String()
}
