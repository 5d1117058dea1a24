package soapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const legacyAPI = "2.3"

// LegacyClient talks to the 2.3 API.
type LegacyClient struct {
	s *session
}

// NewLegacyClient creates a client for the 2.3 API. It does not touch the
// network; call VerifyConnection before anything else.
func NewLegacyClient(cfg ClientConfig, opts ...Option) *LegacyClient {
	return &LegacyClient{s: newSession(legacyAPI, cfg, opts)}
}

// legacyPage is the common 2.3 response wrapper.
type legacyPage struct {
	Items   []json.RawMessage `json:"items"`
	HasMore bool              `json:"has_more"`
	Backoff int               `json:"backoff"`
}

// Tag is a tag as listed by either API generation.
type Tag struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// NewArticle is the input for CreateArticle.
type NewArticle struct {
	Title string
	Body  string
	Type  string
	Tags  string // space-delimited, sent as-is
}

// Article is a created article.
type Article struct {
	ArticleID int    `json:"article_id"`
	Title     string `json:"title"`
	Link      string `json:"link"`
}

// TLSVerification reports whether certificates are still being verified.
func (c *LegacyClient) TLSVerification() bool {
	return c.s.TLSVerification()
}

// VerifyConnection checks the instance is reachable with the configured
// credentials.
func (c *LegacyClient) VerifyConnection(ctx context.Context) error {
	c.s.logger.Info("Testing API connection")
	endpoint := c.s.cfg.BaseURL + "/tags"

	status, body, err := c.s.connect(ctx, func(ctx context.Context) (*http.Request, error) {
		return c.newRequest(ctx, Request{Method: MethodGet, Endpoint: "/tags"}, 0)
	})
	if err != nil {
		return &ConnectivityError{API: legacyAPI, URL: endpoint, Err: err}
	}
	if status != http.StatusOK {
		return &ConnectivityError{API: legacyAPI, URL: endpoint, StatusCode: status, Body: string(body)}
	}

	c.s.logger.Info("API connection successful", "tls_verification", c.s.tlsVerification)
	return nil
}

// Send runs the paginated call routine. A failed page ends the loop and the
// items gathered so far are returned without an error; only transport
// failures and cancellation are reported.
//
// Backoff never re-reads a page that was consumed. A failed response with a
// backoff repeats the same page after the wait. A 200 response with a backoff
// keeps its items and the wait happens before the next page, so the page
// counter advances in that one case.
func (c *LegacyClient) Send(ctx context.Context, req Request) (*Result, error) {
	items, failure, err := c.paginate(ctx, req)
	if err != nil {
		return nil, err
	}
	if failure != nil {
		c.s.logger.Warn("API call failed, continuing with partial results",
			"url", failure.URL,
			"status", failure.StatusCode,
			"body", truncate(failure.Body, 500),
			"items", len(items))
	}
	return &Result{Items: items}, nil
}

// ExchangeImpersonationToken trades the primary token for one acting as
// accountID. How long the returned token stays in use is up to the caller.
func (c *LegacyClient) ExchangeImpersonationToken(ctx context.Context, accountID string) (string, error) {
	items, failure, err := c.paginate(ctx, Request{
		Method:   MethodPost,
		Endpoint: "/access-tokens/exchange",
		Params: Params{
			"access_tokens": c.s.cfg.APIToken,
			"exchange_type": "impersonate",
			"account_id":    accountID,
		},
	})
	if err != nil {
		return "", fmt.Errorf("exchange token for account %s: %w", accountID, err)
	}
	if failure != nil {
		return "", fmt.Errorf("exchange token for account %s: %w", accountID, failure)
	}
	if len(items) == 0 {
		return "", fmt.Errorf("account %s: %w", accountID, ErrNoAccessToken)
	}

	var token struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(items[0], &token); err != nil {
		return "", fmt.Errorf("decode access token: %w", err)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("account %s: %w", accountID, ErrNoAccessToken)
	}
	return token.AccessToken, nil
}

// CreateArticle posts a new article. Any failure is fatal to the caller.
func (c *LegacyClient) CreateArticle(ctx context.Context, a NewArticle, cred Credential) (*Article, error) {
	items, failure, err := c.paginate(ctx, Request{
		Method:   MethodPost,
		Endpoint: "/articles/add",
		Params: Params{
			"title":        a.Title,
			"body":         a.Body,
			"article_type": a.Type,
			"tags":         a.Tags,
		},
		Credential: cred,
	})
	if err != nil {
		return nil, fmt.Errorf("create article %q: %w", a.Title, err)
	}
	if failure != nil {
		return nil, fmt.Errorf("create article %q: %w", a.Title, failure)
	}

	created := &Article{Title: a.Title}
	if len(items) > 0 {
		if err := json.Unmarshal(items[0], created); err != nil {
			return nil, fmt.Errorf("decode created article: %w", err)
		}
	}
	c.s.logger.Info("Created article", "title", a.Title, "article_id", created.ArticleID)
	return created, nil
}

// ListTags returns every tag on the instance. A failure part way through
// yields the tags read so far.
func (c *LegacyClient) ListTags(ctx context.Context) ([]Tag, error) {
	res, err := c.Send(ctx, Request{
		Method:   MethodGet,
		Endpoint: "/tags",
		Params:   Params{"pagesize": 100},
		Page:     1,
	})
	if err != nil {
		return nil, err
	}
	return decodeItems[Tag](res.Items)
}

// paginate issues req until the server reports no more pages.
//
// A backoff on a failed response repeats the same page after the wait. A
// backoff on a good response is honoured before the next page is requested.
// The page counter moves only after a page has been consumed. A failed page
// without backoff stops the loop and is returned as failure alongside the
// items gathered so far.
func (c *LegacyClient) paginate(ctx context.Context, req Request) ([]json.RawMessage, *CallError, error) {
	var items []json.RawMessage
	page := req.Page

	for {
		httpReq, err := c.newRequest(ctx, req, page)
		if err != nil {
			return items, nil, err
		}

		status, body, err := c.s.do(httpReq)
		if err != nil {
			return items, nil, err
		}

		var p legacyPage
		decodeErr := json.Unmarshal(body, &p)

		if status != http.StatusOK {
			if decodeErr == nil && p.Backoff > 0 {
				if err := c.s.backoff(ctx, p.Backoff); err != nil {
					return items, nil, err
				}
				continue
			}
			return items, c.callError(req, status, body), nil
		}
		if decodeErr != nil {
			c.s.logger.Warn("Unreadable API response", "url", httpReq.URL.Redacted(), "error", decodeErr)
			return items, c.callError(req, status, body), nil
		}

		items = append(items, p.Items...)
		if !p.HasMore {
			return items, nil, nil
		}

		if p.Backoff > 0 {
			if err := c.s.backoff(ctx, p.Backoff); err != nil {
				return items, nil, err
			}
		}

		if page == 0 {
			page = 1
		}
		page++
	}
}

// newRequest builds one page request. With an impersonation credential the
// parameters must travel form-encoded in the body; the API ignores them in
// the query string for impersonated calls.
func (c *LegacyClient) newRequest(ctx context.Context, req Request, page int) (*http.Request, error) {
	cfg := c.s.cfg

	values := url.Values{}
	for k, v := range req.Params {
		values.Set(k, formValue(v))
	}
	if cfg.AuthMode == AuthModeTeamsToken {
		values.Set("team", cfg.TeamSlug)
	}
	if page > 0 {
		values.Set("page", strconv.Itoa(page))
	}

	u, err := url.Parse(cfg.BaseURL + req.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", req.Endpoint, err)
	}

	var httpReq *http.Request
	if req.Credential.Impersonated() {
		httpReq, err = http.NewRequestWithContext(ctx, req.Method.String(), u.String(), strings.NewReader(values.Encode()))
		if err == nil {
			httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	} else {
		u.RawQuery = values.Encode()
		httpReq, err = http.NewRequestWithContext(ctx, req.Method.String(), u.String(), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-API-Access-Token", req.Credential.resolve(cfg.APIToken))
	if cfg.AuthMode == AuthModeEnterpriseKeyToken {
		httpReq.Header.Set("X-API-Key", cfg.APIKey)
	}
	return httpReq, nil
}

func (c *LegacyClient) callError(req Request, status int, body []byte) *CallError {
	return &CallError{
		API:        legacyAPI,
		Method:     req.Method,
		URL:        c.s.cfg.BaseURL + req.Endpoint,
		StatusCode: status,
		Body:       string(body),
	}
}

func formValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []string:
		return strings.Join(t, " ")
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

func decodeItems[T any](raw []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(raw))
	for _, item := range raw {
		var v T
		if err := json.Unmarshal(item, &v); err != nil {
			return nil, fmt.Errorf("decode item: %w", err)
		}
		out = append(out, v)
	}
	return out, nil
}
