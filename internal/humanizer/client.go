// Package humanizer talks to the external rewriting provider.
//
// The provider exposes an asynchronous job API: a document is submitted, then
// polled until its output is ready. Client hides that protocol behind Humanize.
package humanizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/maazshahbaz/ai-humanizer/internal/errs"
	"github.com/maazshahbaz/ai-humanizer/internal/model"
)

// StatusProcessing is returned by Retrieve while the job is not finished.
const StatusProcessing = "processing"

const (
	defaultBaseURL        = "https://api.undetectable.ai/v2"
	defaultModel          = "v11"
	defaultPollInterval   = 2 * time.Second
	defaultMaxAttempts    = 30
	defaultRequestTimeout = 30 * time.Second
	maxErrorBody          = 4 << 10
)

// Observer receives finished jobs, e.g. for metrics.
type Observer interface {
	JobFinished(job model.PendingJob, elapsed time.Duration)
}

// Config configures the provider client.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	PollInterval   time.Duration
	MaxAttempts    int
	RequestTimeout time.Duration
	HTTPClient     *http.Client
	Logger         *zap.Logger
	Observer       Observer
}

// Client performs HTTP calls to the provider's document API.
type Client struct {
	apiKey       string
	baseURL      string
	model        string
	pollInterval time.Duration
	maxAttempts  int
	http         *http.Client
	log          *zap.Logger
	observer     Observer
	tracer       trace.Tracer
}

// New constructs a client, filling unset fields with production defaults.
func New(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.RequestTimeout
		if timeout <= 0 {
			timeout = defaultRequestTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	mdl := strings.TrimSpace(cfg.Model)
	if mdl == "" {
		mdl = defaultModel
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		apiKey:       strings.TrimSpace(cfg.APIKey),
		baseURL:      base,
		model:        mdl,
		pollInterval: interval,
		maxAttempts:  attempts,
		http:         hc,
		log:          log,
		observer:     cfg.Observer,
		tracer:       otel.Tracer("github.com/maazshahbaz/ai-humanizer/internal/humanizer"),
	}
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool { return c.apiKey != "" }

type submitRequest struct {
	Text        string `json:"text"`
	Readability string `json:"readability"`
	Purpose     string `json:"purpose"`
	Strength    string `json:"strength"`
	Model       string `json:"model"`
}

type submitResponse struct {
	Status string `json:"status"`
	ID     string `json:"id"`
}

type documentResponse struct {
	ID          string `json:"id"`
	Output      string `json:"output"`
	Input       string `json:"input"`
	Readability string `json:"readability"`
	Purpose     string `json:"purpose"`
	CreatedDate string `json:"createdDate"`
	Status      string `json:"status"`
	Error       string `json:"error"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Submit creates a provider job and returns its opaque ID.
func (c *Client) Submit(ctx context.Context, content string, opts Options) (string, error) {
	if !c.HasCredentials() {
		return "", fmt.Errorf("%w: provider API key is missing", errs.ErrConfiguration)
	}
	if utf8.RuneCountInString(content) < model.MinTextLength {
		return "", errs.Validation(fmt.Sprintf("content must be at least %d characters", model.MinTextLength))
	}
	if err := opts.Validate(); err != nil {
		return "", err
	}
	opts = opts.withDefaults(c.model)

	body, err := json.Marshal(submitRequest{
		Text:        content,
		Readability: string(opts.Readability),
		Purpose:     string(opts.Purpose),
		Strength:    string(opts.Strength),
		Model:       opts.Model,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/documents", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadRequest {
		return "", fmt.Errorf("%w: %s", errs.ErrInsufficientProviderCredits, readError(resp.Body))
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: submit: status %d: %s", errs.ErrProvider, resp.StatusCode, readError(resp.Body))
	}

	var out submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: submit: decode response: %v", errs.ErrProvider, err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("%w: submit: response without document id", errs.ErrProvider)
	}
	return out.ID, nil
}

// Retrieve fetches the job. It returns StatusProcessing until the output is ready.
func (c *Client) Retrieve(ctx context.Context, jobID string) (string, error) {
	if strings.TrimSpace(jobID) == "" {
		return "", errs.Validation("document id is required")
	}
	if !c.HasCredentials() {
		return "", fmt.Errorf("%w: provider API key is missing", errs.ErrConfiguration)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/documents/"+url.PathEscape(jobID), nil)
	if err != nil {
		return "", err
	}
	resp, err := c.do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: retrieve: status %d: %s", errs.ErrProvider, resp.StatusCode, readError(resp.Body))
	}

	var doc documentResponse
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: retrieve: decode response: %v", errs.ErrProvider, err)
	}
	if doc.Error != "" {
		return "", fmt.Errorf("%w: %s", errs.ErrProvider, doc.Error)
	}
	switch st := strings.ToLower(doc.Status); st {
	case StatusProcessing, "pending", "queued":
		return StatusProcessing, nil
	case "failed", "error", "cancelled", "canceled", "rejected":
		return "", fmt.Errorf("%w: document %s: %s", errs.ErrProvider, jobID, st)
	}
	if doc.Output == "" {
		return StatusProcessing, nil
	}
	return doc.Output, nil
}

// Humanize submits content and polls until the rewrite is ready, the poll
// budget is spent, or ctx is done. Polls are strictly sequential.
func (c *Client) Humanize(ctx context.Context, content string, opts Options) (text string, err error) {
	ctx, span := c.tracer.Start(ctx, "humanizer.Humanize")
	defer span.End()

	start := time.Now()
	job := model.PendingJob{}
	defer func() {
		if err != nil {
			job.Status = model.JobFailed
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			job.Status = model.JobComplete
		}
		span.SetAttributes(
			attribute.String("humanizer.job_id", job.ID),
			attribute.Int("humanizer.attempts", job.Attempt),
			attribute.String("humanizer.status", string(job.Status)),
		)
		if job.ID != "" && c.observer != nil {
			c.observer.JobFinished(job, time.Since(start))
		}
		c.log.Debug("provider job finished",
			zap.String("job_id", job.ID),
			zap.Int("attempts", job.Attempt),
			zap.String("status", string(job.Status)),
			zap.Duration("dur", time.Since(start)),
		)
	}()

	id, err := c.Submit(ctx, content, opts)
	if err != nil {
		return "", err
	}
	job.ID = id
	job.Status = model.JobSubmitted

	interval := c.pollInterval
	if opts.PollInterval > 0 {
		interval = opts.PollInterval
	}
	attempts := c.maxAttempts
	if opts.MaxAttempts > 0 {
		attempts = opts.MaxAttempts
	}

	timer := time.NewTimer(interval)
	defer timer.Stop()
	for job.Attempt < attempts {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("humanize %s: %w", id, ctx.Err())
		case <-timer.C:
		}

		job.Attempt++
		out, err := c.Retrieve(ctx, id)
		if err != nil {
			return "", err
		}
		if out != StatusProcessing {
			return out, nil
		}
		job.Status = model.JobProcessing
		timer.Reset(interval)
	}
	return "", fmt.Errorf("%w (job %s, %d attempts)", errs.ErrTimeout, id, job.Attempt)
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %s %s: %v", errs.ErrProvider, req.Method, req.URL.Path, err)
	}
	return resp, nil
}

func readError(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	var e errorResponse
	if json.Unmarshal(b, &e) == nil {
		switch {
		case e.Message != "":
			return e.Message
		case e.Error != "":
			return e.Error
		}
	}
	if s := strings.TrimSpace(string(b)); s != "" {
		return s
	}
	return "no details"
}

// IsRetryable reports whether a user may simply resubmit after err.
func IsRetryable(err error) bool {
	return errors.Is(err, errs.ErrTimeout) ||
		(errors.Is(err, errs.ErrProvider) && !errors.Is(err, errs.ErrInsufficientProviderCredits))
}
