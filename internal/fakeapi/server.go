// Package fakeapi serves an in-memory Stack Overflow for Teams / Enterprise
// instance speaking both API generations. It backs the importer tests and the
// sandbox command, which lets operators rehearse an import locally.
//
// Enterprise routes live under /api/2.3 and /api/v3. Teams routes live under
// /2.3 (scoped by the team query parameter) and /v3/teams/:team.
package fakeapi

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

const impersonationPrefix = "impersonated-"

// Config describes the instance being faked.
type Config struct {
	Token string
	Key   string // required on Enterprise routes when set
	Team  string // accepted team slug for Teams routes
	Tags  []string
}

// Request is one request the server received.
type Request struct {
	API       string // "2.3" or "v3"
	Method    string
	Path      string
	Token     string
	Form      map[string]string // legacy parameters, from the query or a form body
	FormBody  bool              // legacy parameters arrived form-encoded in the body
	JSON      map[string]any    // v3 request body
	Timestamp time.Time
}

// Article is a created article.
type Article struct {
	ID        int
	Title     string
	Body      string
	Type      string
	Tags      string
	AccountID string // empty when created with the primary token
}

// Question is a created question.
type Question struct {
	ID        int
	Title     string
	Body      string
	Tags      []string
	AccountID string
}

// Answer is a created answer.
type Answer struct {
	ID         int
	QuestionID int
	Body       string
	AccountID  string
}

// Failure makes the next Times requests whose path ends in Endpoint fail
// with Status. A positive Backoff is included in the body the way the 2.3
// API reports throttling.
type Failure struct {
	Endpoint string
	Method   string // empty matches any method
	Status   int
	Backoff  int
	Times    int
}

// Server is the fake instance. It is safe for concurrent use.
type Server struct {
	cfg    Config
	engine *gin.Engine

	mu        sync.Mutex
	requests  []Request
	articles  []Article
	questions []Question
	answers   []Answer
	exchanges []string
	failures  []Failure
	nextID    int
}

// New creates a fake instance.
func New(cfg Config) *Server {
	s := &Server{cfg: cfg, nextID: 100}

	router := gin.New()
	router.Use(gin.Recovery())

	for _, prefix := range []string{"/api/2.3", "/2.3"} {
		legacy := router.Group(prefix, s.record("2.3"), s.inject(), s.legacyAuth(prefix == "/2.3"))
		legacy.GET("/tags", s.legacyTags)
		legacy.POST("/access-tokens/exchange", s.exchange)
		legacy.POST("/articles/add", s.addArticle)
	}

	for _, prefix := range []string{"/api/v3", "/v3/teams/:team"} {
		modern := router.Group(prefix, s.record("v3"), s.inject(), s.modernAuth())
		modern.GET("/tags", s.modernTags)
		modern.POST("/questions", s.addQuestion)
		modern.POST("/questions/:id/answers", s.addAnswer)
	}

	s.engine = router
	return s
}

// Handler returns the HTTP handler serving both API generations.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Fail queues a failure.
func (s *Server) Fail(f Failure) {
	if f.Times <= 0 {
		f.Times = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, f)
}

// Requests returns every request received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// RequestsTo returns the requests whose path ends in endpoint.
func (s *Server) RequestsTo(endpoint string) []Request {
	var out []Request
	for _, r := range s.Requests() {
		if strings.HasSuffix(r.Path, endpoint) {
			out = append(out, r)
		}
	}
	return out
}

// Articles returns the created articles in creation order.
func (s *Server) Articles() []Article {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Article(nil), s.articles...)
}

// Questions returns the created questions in creation order.
func (s *Server) Questions() []Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Question(nil), s.questions...)
}

// Answers returns the created answers in creation order.
func (s *Server) Answers() []Answer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Answer(nil), s.answers...)
}

// Exchanges returns the account ids tokens were exchanged for.
func (s *Server) Exchanges() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.exchanges...)
}

func (s *Server) record(api string) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := Request{
			API:       api,
			Method:    c.Request.Method,
			Path:      c.Request.URL.Path,
			Timestamp: time.Now(),
		}

		if api == "2.3" {
			req.Token = c.GetHeader("X-API-Access-Token")
			req.FormBody = strings.HasPrefix(c.ContentType(), "application/x-www-form-urlencoded")
			req.Form = map[string]string{}
			if err := c.Request.ParseForm(); err == nil {
				for k := range c.Request.Form {
					req.Form[k] = c.Request.Form.Get(k)
				}
			}
		} else {
			req.Token = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
			if c.Request.Method != http.MethodGet && c.Request.ContentLength != 0 {
				var body map[string]any
				if err := c.ShouldBindJSON(&body); err != nil {
					c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"errorMessage": "invalid JSON body"})
					return
				}
				req.JSON = body
			}
		}

		s.mu.Lock()
		s.requests = append(s.requests, req)
		s.mu.Unlock()

		c.Set("request", req)
		c.Next()
	}
}

func (s *Server) inject() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.mu.Lock()
		var hit *Failure
		for i := range s.failures {
			f := &s.failures[i]
			if f.Times > 0 && strings.HasSuffix(c.Request.URL.Path, f.Endpoint) &&
				(f.Method == "" || f.Method == c.Request.Method) {
				f.Times--
				copied := *f
				hit = &copied
				break
			}
		}
		s.mu.Unlock()

		if hit == nil {
			c.Next()
			return
		}
		body := gin.H{"error_id": hit.Status, "error_name": "injected", "error_message": "injected failure"}
		if hit.Backoff > 0 {
			body["backoff"] = hit.Backoff
		}
		c.AbortWithStatusJSON(hit.Status, body)
	}
}

func (s *Server) legacyAuth(teams bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := c.MustGet("request").(Request)
		if !s.validToken(req.Token) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, legacyError(403, "access_token_required", "invalid access token"))
			return
		}
		if teams {
			if req.Form["team"] != s.cfg.Team {
				c.AbortWithStatusJSON(http.StatusNotFound, legacyError(404, "no_team", "unknown team"))
				return
			}
		} else if s.cfg.Key != "" && c.GetHeader("X-API-Key") != s.cfg.Key {
			c.AbortWithStatusJSON(http.StatusBadRequest, legacyError(400, "key_required", "invalid API key"))
			return
		}
		c.Next()
	}
}

func (s *Server) modernAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		req := c.MustGet("request").(Request)
		if !s.validToken(req.Token) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"errorMessage": "invalid bearer token"})
			return
		}
		if team := c.Param("team"); team != "" && team != s.cfg.Team {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"errorMessage": "unknown team"})
			return
		}
		c.Next()
	}
}

func (s *Server) validToken(token string) bool {
	return token != "" && (token == s.cfg.Token || strings.HasPrefix(token, impersonationPrefix))
}

// accountFor returns the account an impersonation token acts as.
func accountFor(token string) string {
	return strings.TrimPrefix(token, impersonationPrefix)
}

func (s *Server) legacyTags(c *gin.Context) {
	req := c.MustGet("request").(Request)
	page := atoiDefault(req.Form["page"], 1)
	pageSize := atoiDefault(req.Form["pagesize"], 30)

	items, hasMore := s.tagPage(page, pageSize)
	out := make([]gin.H, 0, len(items))
	for _, name := range items {
		out = append(out, gin.H{"name": name, "count": 0})
	}
	c.JSON(http.StatusOK, gin.H{"items": out, "has_more": hasMore, "page": page, "page_size": pageSize})
}

func (s *Server) modernTags(c *gin.Context) {
	page := atoiDefault(c.Query("page"), 1)
	pageSize := atoiDefault(c.Query("pageSize"), 30)

	items, _ := s.tagPage(page, pageSize)
	out := make([]gin.H, 0, len(items))
	for _, name := range items {
		out = append(out, gin.H{"name": name, "postCount": 0})
	}
	total := len(s.allTags())
	totalPages := (total + pageSize - 1) / pageSize
	if totalPages == 0 {
		totalPages = 1
	}
	c.JSON(http.StatusOK, gin.H{
		"items":      out,
		"page":       page,
		"pageSize":   pageSize,
		"totalCount": total,
		"totalPages": totalPages,
	})
}

func (s *Server) exchange(c *gin.Context) {
	req := c.MustGet("request").(Request)
	if req.Form["exchange_type"] != "impersonate" {
		c.JSON(http.StatusBadRequest, legacyError(400, "bad_parameter", "exchange_type must be impersonate"))
		return
	}
	if req.Form["access_tokens"] != s.cfg.Token {
		c.JSON(http.StatusBadRequest, legacyError(400, "bad_parameter", "access_tokens must be the primary token"))
		return
	}
	account := req.Form["account_id"]
	if account == "" {
		c.JSON(http.StatusBadRequest, legacyError(400, "bad_parameter", "account_id is required"))
		return
	}

	s.mu.Lock()
	s.exchanges = append(s.exchanges, account)
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"items": []gin.H{{"access_token": impersonationPrefix + account}}, "has_more": false})
}

func (s *Server) addArticle(c *gin.Context) {
	req := c.MustGet("request").(Request)
	if req.Form["title"] == "" {
		c.JSON(http.StatusBadRequest, legacyError(400, "bad_parameter", "title is required"))
		return
	}

	s.mu.Lock()
	s.nextID++
	article := Article{
		ID:        s.nextID,
		Title:     req.Form["title"],
		Body:      req.Form["body"],
		Type:      req.Form["article_type"],
		Tags:      req.Form["tags"],
		AccountID: accountFor(impersonatedOnly(req.Token, s.cfg.Token)),
	}
	s.articles = append(s.articles, article)
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"items": []gin.H{{
			"article_id": article.ID,
			"title":      article.Title,
			"link":       fmt.Sprintf("/articles/%d", article.ID),
		}},
		"has_more": false,
	})
}

func (s *Server) addQuestion(c *gin.Context) {
	req := c.MustGet("request").(Request)
	title, _ := req.JSON["title"].(string)
	if title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"errorMessage": "title is required"})
		return
	}
	body, _ := req.JSON["body"].(string)

	var tags []string
	if raw, ok := req.JSON["tags"].([]any); ok {
		for _, t := range raw {
			if name, ok := t.(string); ok {
				tags = append(tags, name)
			}
		}
	}

	s.mu.Lock()
	s.nextID++
	q := Question{
		ID:        s.nextID,
		Title:     title,
		Body:      body,
		Tags:      tags,
		AccountID: accountFor(impersonatedOnly(req.Token, s.cfg.Token)),
	}
	s.questions = append(s.questions, q)
	s.mu.Unlock()

	c.JSON(http.StatusCreated, gin.H{
		"id":       q.ID,
		"title":    q.Title,
		"tags":     q.Tags,
		"shareUrl": fmt.Sprintf("/questions/%d", q.ID),
	})
}

func (s *Server) addAnswer(c *gin.Context) {
	req := c.MustGet("request").(Request)
	questionID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errorMessage": "invalid question id"})
		return
	}
	body, _ := req.JSON["body"].(string)

	s.mu.Lock()
	defer s.mu.Unlock()

	found := false
	for _, q := range s.questions {
		if q.ID == questionID {
			found = true
			break
		}
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"errorMessage": "question not found"})
		return
	}

	s.nextID++
	a := Answer{
		ID:         s.nextID,
		QuestionID: questionID,
		Body:       body,
		AccountID:  accountFor(impersonatedOnly(req.Token, s.cfg.Token)),
	}
	s.answers = append(s.answers, a)

	c.JSON(http.StatusCreated, gin.H{
		"id":         a.ID,
		"questionId": a.QuestionID,
		"shareUrl":   fmt.Sprintf("/questions/%d/answers/%d", questionID, a.ID),
	})
}

// allTags returns configured tags plus tags used by created content, sorted.
func (s *Server) allTags() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := map[string]bool{}
	for _, t := range s.cfg.Tags {
		seen[t] = true
	}
	for _, a := range s.articles {
		for _, t := range strings.Fields(a.Tags) {
			seen[t] = true
		}
	}
	for _, q := range s.questions {
		for _, t := range q.Tags {
			seen[t] = true
		}
	}

	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func (s *Server) tagPage(page, pageSize int) ([]string, bool) {
	tags := s.allTags()
	start := (page - 1) * pageSize
	if start >= len(tags) || start < 0 {
		return nil, false
	}
	end := start + pageSize
	if end > len(tags) {
		end = len(tags)
	}
	return tags[start:end], end < len(tags)
}

func impersonatedOnly(token, primary string) string {
	if token == primary {
		return ""
	}
	return token
}

func legacyError(id int, name, message string) gin.H {
	return gin.H{"error_id": id, "error_name": name, "error_message": message}
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
