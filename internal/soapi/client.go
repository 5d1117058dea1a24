// Package soapi implements clients for the two generations of the Stack
// Overflow for Teams / Enterprise REST API.
//
// LegacyClient speaks API 2.3 (key/token headers, has_more pagination and the
// server-driven backoff protocol). ModernClient speaks API v3 (bearer tokens,
// totalPages pagination). Both satisfy APIClient.
//
// Calls are issued sequentially. Impersonation is expressed per call through
// a Credential, never as client state.
package soapi

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"github.com/mrlokans/so4t-import/internal/tracing"
)

const (
	// DefaultTimeout for API requests
	DefaultTimeout = 60 * time.Second

	userAgent = "so4t-import/1.0"
)

// Method is the HTTP verb of an API call.
type Method int

const (
	MethodGet Method = iota
	MethodPost
)

func (m Method) String() string {
	switch m {
	case MethodGet:
		return http.MethodGet
	case MethodPost:
		return http.MethodPost
	default:
		return fmt.Sprintf("Method(%d)", int(m))
	}
}

// Params holds request parameters. The legacy API sends them form-style;
// the v3 API sends them as JSON for anything but GET.
type Params map[string]any

// Request describes one logical API call, possibly spanning several pages.
type Request struct {
	Method     Method
	Endpoint   string
	Params     Params
	Page       int // first page to request; 0 leaves paging to the server
	Credential Credential
}

// Result holds what a call produced. Paginated calls fill Items; single-shot
// v3 calls fill Body. Both are empty when the server sent no payload.
type Result struct {
	Items []json.RawMessage
	Body  json.RawMessage
}

// APIClient is the behaviour both API generations share.
type APIClient interface {
	VerifyConnection(ctx context.Context) error
	Send(ctx context.Context, req Request) (*Result, error)
}

var (
	_ APIClient = (*LegacyClient)(nil)
	_ APIClient = (*ModernClient)(nil)
)

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Recorder receives call-level measurements.
type Recorder interface {
	ObserveCall(api, method string, status int, elapsed time.Duration)
	ObserveBackoff(api string, wait time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ObserveCall(string, string, int, time.Duration) {}
func (nopRecorder) ObserveBackoff(string, time.Duration)           {}

// Option configures a client
type Option func(*session)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(s *session) {
		s.httpClient = c
	}
}

// WithLogger sets a custom logger
func WithLogger(l *slog.Logger) Option {
	return func(s *session) {
		s.logger = l
	}
}

// WithTimeout sets the per-request timeout used when the client builds its
// own HTTP client, including the one built after a TLS fallback.
func WithTimeout(d time.Duration) Option {
	return func(s *session) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithSleeper replaces the function used to wait out backoff requests.
func WithSleeper(fn Sleeper) Option {
	return func(s *session) {
		s.sleep = fn
	}
}

// WithRateLimit paces outgoing requests. Zero or negative means unlimited.
func WithRateLimit(requestsPerSecond float64) Option {
	return func(s *session) {
		if requestsPerSecond > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
		}
	}
}

// WithRecorder sets where call metrics go
func WithRecorder(r Recorder) Option {
	return func(s *session) {
		if r != nil {
			s.recorder = r
		}
	}
}

// session is the runtime state of one client: its transport and whether TLS
// verification survived the connectivity check.
type session struct {
	api             string
	cfg             ClientConfig
	httpClient      *http.Client
	timeout         time.Duration
	tlsVerification bool
	logger          *slog.Logger
	sleep           Sleeper
	limiter         *rate.Limiter
	recorder        Recorder
}

func newSession(api string, cfg ClientConfig, opts []Option) *session {
	s := &session{
		api:             api,
		cfg:             cfg,
		timeout:         DefaultTimeout,
		tlsVerification: true,
		logger:          slog.Default(),
		sleep:           sleepContext,
		limiter:         rate.NewLimiter(rate.Inf, 1),
		recorder:        nopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.httpClient == nil {
		s.httpClient = newHTTPClient(s.timeout, true)
	}
	s.logger = s.logger.With("api", api)
	return s
}

// connect sends the connectivity check. A certificate verification failure is
// retried once without verification and the relaxed transport is kept for the
// rest of the session.
func (s *session) connect(ctx context.Context, build func(context.Context) (*http.Request, error)) (int, []byte, error) {
	req, err := build(ctx)
	if err != nil {
		return 0, nil, err
	}
	status, body, err := s.do(req)
	if err == nil || !isTLSVerificationError(err) {
		return status, body, err
	}

	s.logger.Warn("TLS verification failed, trying again without verification", "url", req.URL.Redacted(), "error", err)
	s.httpClient = newHTTPClient(s.timeout, false)
	s.tlsVerification = false

	req, err = build(ctx)
	if err != nil {
		return 0, nil, err
	}
	return s.do(req)
}

// TLSVerification reports whether certificates are still being verified.
func (s *session) TLSVerification() bool {
	return s.tlsVerification
}

// do sends one HTTP request and reads the whole body.
func (s *session) do(req *http.Request) (int, []byte, error) {
	ctx, span := tracing.StartSpan(req.Context(), "soapi."+s.api+" "+req.Method)
	defer span.End()
	tracing.AddCallAttributes(span, s.api, req.Method, req.URL.Path)

	if err := s.limiter.Wait(ctx); err != nil {
		tracing.RecordError(span, err)
		return 0, nil, fmt.Errorf("waiting for rate limiter: %w", err)
	}

	req = req.WithContext(ctx)
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.recorder.ObserveCall(s.api, req.Method, 0, time.Since(start))
		tracing.RecordError(span, err)
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	elapsed := time.Since(start)
	s.recorder.ObserveCall(s.api, req.Method, resp.StatusCode, elapsed)
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if err != nil {
		tracing.RecordError(span, err)
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}

	s.logger.Debug("API call", "method", req.Method, "url", req.URL.Redacted(), "status", resp.StatusCode, "elapsed", elapsed)
	return resp.StatusCode, body, nil
}

// backoff honours a server backoff instruction: the requested seconds plus one.
func (s *session) backoff(ctx context.Context, seconds int) error {
	wait := time.Duration(seconds+1) * time.Second
	s.logger.Info("API backoff request received", "wait", wait)
	s.recorder.ObserveBackoff(s.api, wait)
	return s.sleep(ctx, wait)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func isTLSVerificationError(err error) bool {
	var certErr *tls.CertificateVerificationError
	var unknownAuthority x509.UnknownAuthorityError
	var hostnameErr x509.HostnameError
	var invalidErr x509.CertificateInvalidError
	return errors.As(err, &certErr) ||
		errors.As(err, &unknownAuthority) ||
		errors.As(err, &hostnameErr) ||
		errors.As(err, &invalidErr)
}

// newHTTPClient creates an HTTP client with optimized transport settings
func newHTTPClient(timeout time.Duration, verifyTLS bool) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ForceAttemptHTTP2:     true,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: !verifyTLS, //nolint:gosec // G402: opt-out only after a failed verification
		},
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
