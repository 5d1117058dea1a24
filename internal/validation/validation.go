// Package validation checks import rows against the platform's static limits
// before anything is sent. Every violation in the file is reported, not just
// the first.
package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mrlokans/so4t-import/internal/records"
)

const (
	MaxTitleLength          = 150
	MaxArticleBodyLength    = 100000
	MaxQuestionBodyLength   = 30000
	MaxAnswerLength         = 30000
	MaxTagLength            = 35
	MaxArticleTags          = 4
	MaxQuestionTags         = 5
	invalidTagCharacters    = "<>&\"'`()[]{}\\/_=~|^@$%*?!"
	articleTypesDescription = "knowledge-article, how-to-guide, announcement, policy"
)

// ArticleTypes lists the accepted article types.
var ArticleTypes = []string{"knowledge-article", "how-to-guide", "announcement", "policy"}

// Violation is one broken limit on one row.
type Violation struct {
	Row     int    `json:"row"` // 1-based data row, header excluded
	Title   string `json:"title"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	return fmt.Sprintf("\"%s\": %s", v.Title, v.Message)
}

// Error carries every violation found in a file.
type Error struct {
	Violations []Violation
}

func (e *Error) Error() string {
	return fmt.Sprintf("data integrity check failed with %d issue(s)", len(e.Violations))
}

// Err wraps violations in an *Error, or returns nil when there are none.
func Err(violations []Violation) error {
	if len(violations) == 0 {
		return nil
	}
	return &Error{Violations: violations}
}

// CheckQuestions validates question rows.
func CheckQuestions(rows []records.Question) []Violation {
	var out []Violation
	for i, q := range rows {
		c := checker{row: i + 1, title: q.Title}
		c.title150()
		c.maxLength("body", q.Body, MaxQuestionBodyLength, "Body")
		c.maxLength("answer", q.Answer, MaxAnswerLength, "Answer")
		c.tags(q.TagList(), MaxQuestionTags)
		out = append(out, c.violations...)
	}
	return out
}

// CheckArticles validates article rows.
func CheckArticles(rows []records.Article) []Violation {
	var out []Violation
	for i, a := range rows {
		c := checker{row: i + 1, title: a.Title}
		c.title150()
		c.maxLength("body", a.Body, MaxArticleBodyLength, "Body")
		if !validArticleType(a.Type) {
			c.add("type", "Invalid article type. Must be one of the following: "+articleTypesDescription)
		}
		c.tags(a.TagList(), MaxArticleTags)
		out = append(out, c.violations...)
	}
	return out
}

type checker struct {
	row        int
	title      string
	violations []Violation
}

func (c *checker) add(field, message string) {
	c.violations = append(c.violations, Violation{Row: c.row, Title: c.title, Field: field, Message: message})
}

func (c *checker) title150() {
	if utf8.RuneCountInString(c.title) > MaxTitleLength {
		c.add("title", fmt.Sprintf("Title too long. Must be %d characters or fewer.", MaxTitleLength))
	}
}

func (c *checker) maxLength(field, value string, limit int, label string) {
	if utf8.RuneCountInString(value) > limit {
		c.add(field, fmt.Sprintf("%s too long. Must be %s characters or fewer.", label, thousands(limit)))
	}
}

func (c *checker) tags(tags []string, limit int) {
	for _, tag := range tags {
		if utf8.RuneCountInString(tag) > MaxTagLength {
			c.add("tags", fmt.Sprintf("Tag name \"%s\" too long. Must be %d characters or fewer.", tag, MaxTagLength))
		}
		for _, ch := range invalidTagCharacters {
			if strings.ContainsRune(tag, ch) {
				c.add("tags", fmt.Sprintf("Tag name \"%s\" contains invalid character \"%c\".", tag, ch))
			}
		}
	}
	if len(tags) > limit {
		c.add("tags", fmt.Sprintf("Too many tags. Must be %d or fewer.", limit))
	}
}

func validArticleType(t string) bool {
	for _, at := range ArticleTypes {
		if t == at {
			return true
		}
	}
	return false
}

// thousands formats n with comma separators, e.g. 100000 -> "100,000".
func thousands(n int) string {
	s := fmt.Sprint(n)
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String()
}
