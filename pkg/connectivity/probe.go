package connectivity

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ProbeResult is the outcome of one reachability check.
type ProbeResult struct {
	Target    string        `json:"target"`
	OK        bool          `json:"ok"`
	Latency   time.Duration `json:"latency"`
	Error     string        `json:"error,omitempty"`
	CheckedAt time.Time     `json:"checked_at"`
}

// Prober checks whether the catalog is reachable. Probe must honor ctx.
type Prober interface {
	Probe(ctx context.Context) ProbeResult
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context) ProbeResult

// Probe implements Prober.
func (f ProberFunc) Probe(ctx context.Context) ProbeResult {
	return f(ctx)
}

// ProbeConfig configures an HTTPProber.
type ProbeConfig struct {
	// Target is the URL requested by the probe.
	Target string

	// Method is GET or HEAD. A failed HEAD is retried once as GET.
	Method string

	// Timeout bounds each probe.
	Timeout time.Duration

	// UserAgent header sent with probes.
	UserAgent string
}

// DefaultProbeConfig returns a GET probe with a 5 second timeout.
func DefaultProbeConfig(target string) ProbeConfig {
	return ProbeConfig{
		Target:    target,
		Method:    http.MethodGet,
		Timeout:   5 * time.Second,
		UserAgent: "petstore-browser/0.1.0",
	}
}

// HTTPProber probes a known endpoint over HTTP. Any 2xx response received
// within the timeout counts as reachable.
type HTTPProber struct {
	client *http.Client
	cfg    ProbeConfig
}

// NewHTTPProber validates cfg and returns a prober.
func NewHTTPProber(cfg ProbeConfig) (*HTTPProber, error) {
	u, err := url.Parse(cfg.Target)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid probe target %q", cfg.Target)
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("probe timeout must be positive (got %s)", cfg.Timeout)
	}

	cfg.Method = strings.ToUpper(cfg.Method)
	switch cfg.Method {
	case "":
		cfg.Method = http.MethodGet
	case http.MethodGet, http.MethodHead:
	default:
		return nil, fmt.Errorf("probe method must be GET or HEAD (got %q)", cfg.Method)
	}

	return &HTTPProber{client: &http.Client{}, cfg: cfg}, nil
}

// SetHTTPClient replaces the underlying HTTP client (for testing).
func (p *HTTPProber) SetHTTPClient(client *http.Client) {
	p.client = client
}

// Probe implements Prober.
func (p *HTTPProber) Probe(ctx context.Context) ProbeResult {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	start := time.Now()
	err := p.request(ctx, p.cfg.Method)
	if err != nil && p.cfg.Method == http.MethodHead && ctx.Err() == nil {
		err = p.request(ctx, http.MethodGet)
	}

	result := ProbeResult{
		Target:    p.cfg.Target,
		OK:        err == nil,
		Latency:   time.Since(start),
		CheckedAt: time.Now(),
	}
	if err != nil {
		result.Error = err.Error()
	}
	return result
}

func (p *HTTPProber) request(ctx context.Context, method string) error {
	req, err := http.NewRequestWithContext(ctx, method, p.cfg.Target, nil)
	if err != nil {
		return err
	}
	if p.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", p.cfg.UserAgent)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused; the content is irrelevant.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
