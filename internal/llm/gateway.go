// Package llm is the model gateway: it turns a backend address, a raw
// prompt, and a generation configuration into a normalized {text, metadata}
// result, negotiating protocol dialects, endpoint fallback, retries, and
// output sanitization along the way.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"promptpipe/internal/metrics"
	"promptpipe/internal/pipeline"
)

type Options struct {
	// Retries is the number of whole-chain re-attempts after the first
	// pass. Negative means none.
	Retries int
	// RetryDelay is the fixed pause between whole-chain attempts.
	RetryDelay time.Duration
	// GenerateTimeout bounds generation-class endpoint calls.
	GenerateTimeout time.Duration
	// ProbeTimeout bounds metadata/health-class endpoint calls.
	ProbeTimeout time.Duration
	// Admission gates invocations per backend; nil means no gating.
	Admission AdmissionPolicy
}

// Gateway is constructed once at process start and passed by handle.
type Gateway struct {
	generate  *http.Client
	probe     *http.Client
	retries   int
	delay     time.Duration
	admission AdmissionPolicy
}

func New(opts Options) *Gateway {
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.RetryDelay < 0 {
		opts.RetryDelay = 0
	}
	if opts.GenerateTimeout <= 0 {
		opts.GenerateTimeout = 180 * time.Second
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 8 * time.Second
	}
	if opts.Admission == nil {
		opts.Admission = NoAdmission()
	}
	return &Gateway{
		generate:  &http.Client{Timeout: opts.GenerateTimeout},
		probe:     &http.Client{Timeout: opts.ProbeTimeout},
		retries:   opts.Retries,
		delay:     opts.RetryDelay,
		admission: opts.Admission,
	}
}

// Invoke runs the dialect's fallback chain against the backend, retrying
// the whole chain up to the configured count. Only the last attempt's
// failure propagates.
func (g *Gateway) Invoke(ctx context.Context, backend, prompt string, cfg pipeline.GenerationConfig) (Result, error) {
	base, err := normalizeBaseURL(backend)
	if err != nil {
		return Result{}, err
	}
	release, err := g.admission.Acquire(ctx, backend)
	if err != nil {
		return Result{}, fmt.Errorf("llm: admission refused for %s: %w", backend, err)
	}
	defer release()

	dialect := ParseDialect(cfg.Dialect)
	text := FormatPrompt(dialect, prompt)
	chain := chainFor(dialect)

	attempts := g.retries + 1
	var last error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return Result{}, ctx.Err()
			case <-time.After(g.delay):
			}
		}
		res, err := g.walkChain(ctx, base, chain, text, cfg)
		if err == nil {
			return res, nil
		}
		last = err
	}
	return Result{}, &GatewayError{Backend: backend, Attempts: attempts, Err: last}
}

// walkChain tries each candidate in order and short-circuits on the first
// success.
func (g *Gateway) walkChain(ctx context.Context, base string, chain []candidate, prompt string, cfg pipeline.GenerationConfig) (Result, error) {
	var last error
	for _, c := range chain {
		res, err := g.call(ctx, base, c, prompt, cfg)
		if err == nil {
			return res, nil
		}
		last = err
	}
	return Result{}, last
}

func (g *Gateway) call(ctx context.Context, base string, c candidate, prompt string, cfg pipeline.GenerationConfig) (Result, error) {
	payload, err := json.Marshal(c.build(prompt, cfg))
	if err != nil {
		return Result{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+c.path, bytes.NewReader(payload))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.clientFor(c.class).Do(req)
	if err != nil {
		metrics.GatewayAttempts.WithLabelValues(c.path, "error").Inc()
		return Result{}, fmt.Errorf("llm: %s: %w", c.path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.GatewayAttempts.WithLabelValues(c.path, "error").Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return Result{}, fmt.Errorf("llm: %s: unexpected status %s: %s", c.path, resp.Status, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.GatewayAttempts.WithLabelValues(c.path, "error").Inc()
		return Result{}, fmt.Errorf("llm: %s: read body: %w", c.path, err)
	}
	res, err := Normalize(body)
	if err != nil {
		metrics.GatewayAttempts.WithLabelValues(c.path, "error").Inc()
		return Result{}, fmt.Errorf("llm: %s: %w", c.path, err)
	}
	metrics.GatewayAttempts.WithLabelValues(c.path, "ok").Inc()
	res.Text = Sanitize(res.Text)
	return res, nil
}

func (g *Gateway) clientFor(class timeoutClass) *http.Client {
	if class == classProbe {
		return g.probe
	}
	return g.generate
}

// BackendStatus is the outcome of a short-timeout health probe.
type BackendStatus struct {
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// Probe checks a backend's metadata endpoint on the probe timeout class.
func (g *Gateway) Probe(ctx context.Context, backend string) BackendStatus {
	base, err := normalizeBaseURL(backend)
	if err != nil {
		return BackendStatus{Detail: err.Error()}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/api/version", nil)
	if err != nil {
		return BackendStatus{Detail: err.Error()}
	}
	resp, err := g.probe.Do(req)
	if err != nil {
		return BackendStatus{Detail: err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return BackendStatus{Detail: "unexpected status " + resp.Status}
	}
	var v struct {
		Version string `json:"version"`
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if err := json.Unmarshal(body, &v); err == nil && v.Version != "" {
		return BackendStatus{OK: true, Detail: v.Version}
	}
	return BackendStatus{OK: true}
}

func normalizeBaseURL(backend string) (string, error) {
	s := strings.TrimSpace(backend)
	if s == "" {
		return "", fmt.Errorf("llm: backend address is empty")
	}
	if !strings.Contains(s, "://") {
		s = "http://" + s
	}
	return strings.TrimRight(s, "/"), nil
}
