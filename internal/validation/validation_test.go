package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/so4t-import/internal/records"
)

func TestCheckArticles(t *testing.T) {
	tests := []struct {
		name         string
		article      records.Article
		wantMessages []string
	}{
		{
			name:    "valid",
			article: records.Article{Title: "Setup", Body: "text", Type: "policy", Tags: "a b c d"},
		},
		{
			name:         "title too long",
			article:      records.Article{Title: strings.Repeat("t", 151), Type: "policy"},
			wantMessages: []string{"Title too long. Must be 150 characters or fewer."},
		},
		{
			name:    "title of 150 multibyte characters is fine",
			article: records.Article{Title: strings.Repeat("é", 150), Type: "policy"},
		},
		{
			name:         "body too long",
			article:      records.Article{Title: "t", Body: strings.Repeat("b", 100001), Type: "policy"},
			wantMessages: []string{"Body too long. Must be 100,000 characters or fewer."},
		},
		{
			name:         "wrong type",
			article:      records.Article{Title: "t", Type: "faq"},
			wantMessages: []string{"Invalid article type. Must be one of the following: knowledge-article, how-to-guide, announcement, policy"},
		},
		{
			name:         "too many tags",
			article:      records.Article{Title: "t", Type: "announcement", Tags: "a b c d e"},
			wantMessages: []string{"Too many tags. Must be 4 or fewer."},
		},
		{
			name:    "several problems at once",
			article: records.Article{Title: "t", Type: "bogus", Tags: "snake_case " + strings.Repeat("x", 36)},
			wantMessages: []string{
				"Invalid article type. Must be one of the following: knowledge-article, how-to-guide, announcement, policy",
				`Tag name "snake_case" contains invalid character "_".`,
				`Tag name "` + strings.Repeat("x", 36) + `" too long. Must be 35 characters or fewer.`,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			violations := CheckArticles([]records.Article{tt.article})
			assert.Equal(t, tt.wantMessages, messages(violations))
		})
	}
}

func TestCheckQuestions(t *testing.T) {
	rows := []records.Question{
		{Title: "fine", Body: "b", Answer: "a", Tags: "a b c d e"},
		{Title: "too many tags", Tags: "a b c d e f"},
		{Title: "long body and answer", Body: strings.Repeat("b", 30001), Answer: strings.Repeat("a", 30001)},
		{Title: "bad tag", Tags: "c# what?"},
	}

	violations := CheckQuestions(rows)

	assert.Equal(t, []string{
		"Too many tags. Must be 5 or fewer.",
		"Body too long. Must be 30,000 characters or fewer.",
		"Answer too long. Must be 30,000 characters or fewer.",
		`Tag name "what?" contains invalid character "?".`,
	}, messages(violations))

	require.Len(t, violations, 4)
	assert.Equal(t, 2, violations[0].Row)
	assert.Equal(t, "tags", violations[0].Field)
	assert.Equal(t, "long body and answer", violations[1].Title)
	assert.Equal(t, `"bad tag": Tag name "what?" contains invalid character "?".`, violations[3].String())
}

func TestCheckQuestions_TagMessagesAreNotEscaped(t *testing.T) {
	violations := CheckQuestions([]records.Question{
		{Title: "quotes", Body: "b", Tags: `say"hi back\slash`},
	})

	require.Len(t, violations, 2)
	assert.Equal(t, `Tag name "say"hi" contains invalid character """.`, violations[0].Message)
	assert.Equal(t, `Tag name "back\slash" contains invalid character "\".`, violations[1].Message)
}

func TestErr(t *testing.T) {
	assert.NoError(t, Err(nil))

	err := Err([]Violation{{Title: "t", Message: "m"}})
	var vErr *Error
	require.ErrorAs(t, err, &vErr)
	assert.Len(t, vErr.Violations, 1)
	assert.Contains(t, err.Error(), "1 issue")
}

func TestThousands(t *testing.T) {
	assert.Equal(t, "150", thousands(150))
	assert.Equal(t, "30,000", thousands(30000))
	assert.Equal(t, "100,000", thousands(100000))
	assert.Equal(t, "1,000,000", thousands(1000000))
}

func messages(vs []Violation) []string {
	if len(vs) == 0 {
		return nil
	}
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		out = append(out, v.Message)
	}
	return out
}
