package submit

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lysyi3m/sitemap-comb/app/fanout"
	"github.com/lysyi3m/sitemap-comb/app/sitemap"
)

type EndpointResult struct {
	Endpoint string `json:"endpoint"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
}

type SubmitResult struct {
	Success bool             `json:"success"`
	Results []EndpointResult `json:"results"`
}

// Recorder observes individual endpoint calls.
type Recorder interface {
	ObserveSubmission(host string, success bool, d time.Duration)
}

// Submitter notifies search engines that a sitemap has changed.
type Submitter struct {
	cfg        sitemap.SubmissionConfig
	httpClient *http.Client
	userAgent  string
	recorder   Recorder
}

func NewSubmitter(cfg sitemap.SubmissionConfig, httpClient *http.Client, userAgent string) *Submitter {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Submitter{
		cfg:        cfg,
		httpClient: httpClient,
		userAgent:  userAgent,
	}
}

func (s *Submitter) SetRecorder(r Recorder) {
	s.recorder = r
}

func (s *Submitter) Enabled() bool {
	return s.cfg.Enabled && len(s.cfg.Endpoints) > 0
}

// Submit pings every configured endpoint concurrently. A failing endpoint
// never affects the others; results follow configuration order.
func (s *Submitter) Submit(ctx context.Context, sitemapURL string) SubmitResult {
	if !s.Enabled() {
		return SubmitResult{Success: false, Results: []EndpointResult{}}
	}

	escaped := url.QueryEscape(sitemapURL)

	tasks := make([]fanout.Task[struct{}], len(s.cfg.Endpoints))
	for i, endpoint := range s.cfg.Endpoints {
		target := strings.ReplaceAll(endpoint, sitemap.SubmissionToken, escaped)
		tasks[i] = func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.ping(ctx, target)
		}
	}

	outcomes := fanout.All(ctx, tasks)

	result := SubmitResult{
		Success: true,
		Results: make([]EndpointResult, len(outcomes)),
	}
	for i, outcome := range outcomes {
		er := EndpointResult{Endpoint: s.cfg.Endpoints[i], Success: outcome.Err == nil}
		if outcome.Err != nil {
			er.Error = outcome.Err.Error()
			result.Success = false
			slog.Warn("Sitemap submission failed", "endpoint", s.cfg.Endpoints[i], "error", outcome.Err)
		}
		result.Results[i] = er
	}

	slog.Info("Sitemap submitted",
		"sitemap", sitemapURL,
		"endpoints", len(outcomes),
		"failed", fanout.Failed(outcomes))

	return result
}

func (s *Submitter) ping(ctx context.Context, target string) error {
	started := time.Now()

	timeoutCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout())
	defer cancel()

	err := s.do(timeoutCtx, target)

	if s.recorder != nil {
		host := target
		if u, parseErr := url.Parse(target); parseErr == nil {
			host = u.Host
		}
		s.recorder.ObserveSubmission(host, err == nil, time.Since(started))
	}

	return err
}

func (s *Submitter) do(ctx context.Context, target string) error {
	req, err := http.NewRequestWithContext(ctx, "GET", target, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to submit sitemap: %w", err)
	}
	defer resp.Body.Close()

	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	return nil
}
