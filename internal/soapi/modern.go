package soapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
)

const modernAPI = "v3"

// ModernClient talks to the v3 API. Every call authenticates with a bearer
// token; impersonation swaps that token per call.
type ModernClient struct {
	s *session
}

// NewModernClient creates a client for the v3 API. It does not touch the
// network; call VerifyConnection before anything else.
func NewModernClient(cfg ClientConfig, opts ...Option) *ModernClient {
	return &ModernClient{s: newSession(modernAPI, cfg, opts)}
}

// modernPage is the v3 wrapper for list endpoints.
type modernPage struct {
	Items      []json.RawMessage `json:"items"`
	TotalPages *int              `json:"totalPages"`
	Page       int               `json:"page"`
}

// NewQuestion is the input for CreateQuestion.
type NewQuestion struct {
	Title string   `json:"title"`
	Body  string   `json:"body"`
	Tags  []string `json:"tags"`
}

// Question is a created question.
type Question struct {
	ID       int    `json:"id"`
	Title    string `json:"title"`
	ShareURL string `json:"shareUrl"`
}

// Answer is a created answer.
type Answer struct {
	ID         int    `json:"id"`
	QuestionID int    `json:"questionId"`
	ShareURL   string `json:"shareUrl"`
}

// TLSVerification reports whether certificates are still being verified.
func (c *ModernClient) TLSVerification() bool {
	return c.s.TLSVerification()
}

// VerifyConnection checks the instance is reachable with the configured token.
func (c *ModernClient) VerifyConnection(ctx context.Context) error {
	c.s.logger.Info("Testing API connection")
	endpoint := c.s.cfg.BaseURL + "/tags"

	status, body, err := c.s.connect(ctx, func(ctx context.Context) (*http.Request, error) {
		return c.newRequest(ctx, Request{Method: MethodGet, Endpoint: "/tags"}, 0)
	})
	if err != nil {
		return &ConnectivityError{API: modernAPI, URL: endpoint, Err: err}
	}
	if status != http.StatusOK {
		return &ConnectivityError{API: modernAPI, URL: endpoint, StatusCode: status, Body: string(body)}
	}

	c.s.logger.Info("API connection successful", "tls_verification", c.s.tlsVerification)
	return nil
}

// Send issues req. Any status other than 200, 201 or 204 is returned as a
// *CallError. A body that is not JSON counts as success without a payload.
//
// Requests carrying a Page walk the listing until page reaches the
// totalPages the server reports; all other requests are single-shot. A later
// page that reports no totalPages is the last one read.
func (c *ModernClient) Send(ctx context.Context, req Request) (*Result, error) {
	var items []json.RawMessage
	page := req.Page

	for {
		httpReq, err := c.newRequest(ctx, req, page)
		if err != nil {
			return nil, err
		}

		status, body, err := c.s.do(httpReq)
		if err != nil {
			return nil, err
		}

		switch status {
		case http.StatusOK, http.StatusCreated, http.StatusNoContent:
		default:
			return nil, &CallError{
				API:        modernAPI,
				Method:     req.Method,
				URL:        c.s.cfg.BaseURL + req.Endpoint,
				StatusCode: status,
				Body:       string(body),
			}
		}

		if !json.Valid(body) {
			c.s.logger.Info("API request successfully sent", "url", httpReq.URL.Redacted())
			return &Result{Items: items}, nil
		}

		if page > 0 {
			var p modernPage
			decoded := json.Unmarshal(body, &p) == nil
			if decoded && p.TotalPages != nil {
				c.s.logger.Debug("Received page", "page", page, "total_pages", *p.TotalPages, "url", httpReq.URL.Redacted())
				items = append(items, p.Items...)
				if page >= *p.TotalPages {
					return &Result{Items: items}, nil
				}
				page++
				continue
			}
			if page > req.Page {
				// A later page without totalPages ends the listing.
				if decoded {
					items = append(items, p.Items...)
				}
				c.s.logger.Warn("Page carried no totalPages, stopping", "page", page, "url", httpReq.URL.Redacted())
				return &Result{Items: items}, nil
			}
		}

		c.s.logger.Debug("API request successfully sent", "url", httpReq.URL.Redacted())
		return &Result{Body: body}, nil
	}
}

// CreateQuestion posts a question and returns it so an answer can follow.
func (c *ModernClient) CreateQuestion(ctx context.Context, q NewQuestion, cred Credential) (*Question, error) {
	if q.Tags == nil {
		q.Tags = []string{}
	}
	res, err := c.Send(ctx, Request{
		Method:   MethodPost,
		Endpoint: "/questions",
		Params: Params{
			"title": q.Title,
			"body":  q.Body,
			"tags":  q.Tags,
		},
		Credential: cred,
	})
	if err != nil {
		return nil, fmt.Errorf("create question %q: %w", q.Title, err)
	}
	if len(res.Body) == 0 {
		return nil, fmt.Errorf("create question %q: %w", q.Title, ErrEmptyResponse)
	}

	var created Question
	if err := json.Unmarshal(res.Body, &created); err != nil {
		return nil, fmt.Errorf("decode created question: %w", err)
	}
	c.s.logger.Info("Created question", "title", q.Title, "question_id", created.ID)
	return &created, nil
}

// CreateAnswer posts an answer to an existing question.
func (c *ModernClient) CreateAnswer(ctx context.Context, questionID int, body string, cred Credential) (*Answer, error) {
	res, err := c.Send(ctx, Request{
		Method:     MethodPost,
		Endpoint:   "/questions/" + strconv.Itoa(questionID) + "/answers",
		Params:     Params{"body": body},
		Credential: cred,
	})
	if err != nil {
		return nil, fmt.Errorf("create answer for question %d: %w", questionID, err)
	}

	created := &Answer{QuestionID: questionID}
	if len(res.Body) > 0 {
		if err := json.Unmarshal(res.Body, created); err != nil {
			return nil, fmt.Errorf("decode created answer: %w", err)
		}
	}
	c.s.logger.Info("Created answer", "question_id", questionID, "answer_id", created.ID)
	return created, nil
}

// ListTags returns every tag on the instance.
func (c *ModernClient) ListTags(ctx context.Context) ([]Tag, error) {
	res, err := c.Send(ctx, Request{
		Method:   MethodGet,
		Endpoint: "/tags",
		Params:   Params{"pageSize": 100},
		Page:     1,
	})
	if err != nil {
		return nil, err
	}

	type v3Tag struct {
		Name      string `json:"name"`
		PostCount int    `json:"postCount"`
	}
	raw, err := decodeItems[v3Tag](res.Items)
	if err != nil {
		return nil, err
	}
	tags := make([]Tag, 0, len(raw))
	for _, t := range raw {
		tags = append(tags, Tag{Name: t.Name, Count: t.PostCount})
	}
	return tags, nil
}

// newRequest builds one v3 request: query parameters for GET, a JSON body
// for everything else.
func (c *ModernClient) newRequest(ctx context.Context, req Request, page int) (*http.Request, error) {
	cfg := c.s.cfg

	u, err := url.Parse(cfg.BaseURL + req.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", req.Endpoint, err)
	}

	params := make(Params, len(req.Params)+1)
	for k, v := range req.Params {
		params[k] = v
	}
	if page > 0 {
		params["page"] = page
	}

	var body io.Reader
	if req.Method == MethodGet {
		q := u.Query()
		for k, v := range params {
			q.Set(k, formValue(v))
		}
		u.RawQuery = q.Encode()
	} else {
		data, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method.String(), u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+req.Credential.resolve(cfg.APIToken))
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	return httpReq, nil
}
