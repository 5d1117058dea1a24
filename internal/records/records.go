// Package records reads import rows from CSV files.
//
// Two layouts are supported, one per import mode. Columns are matched by
// header name, case-insensitively, so their order does not matter and extra
// columns are ignored.
package records

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// Mode selects what an import creates.
type Mode int

const (
	ModeQuestions Mode = iota
	ModeArticles
)

func (m Mode) String() string {
	switch m {
	case ModeQuestions:
		return "questions"
	case ModeArticles:
		return "articles"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Required columns per mode.
var (
	QuestionColumns = []string{"title", "body", "answer", "tags", "asker_account_id", "answerer_account_id"}
	ArticleColumns  = []string{"title", "body", "type", "tags", "author_account_id"}
)

// Question is one question and its answer.
type Question struct {
	Title             string
	Body              string
	Answer            string
	Tags              string // space-delimited
	AskerAccountID    string
	AnswererAccountID string
}

// TagList splits Tags on whitespace.
func (q Question) TagList() []string {
	return strings.Fields(q.Tags)
}

// Article is one knowledge article.
type Article struct {
	Title           string
	Body            string
	Type            string
	Tags            string // space-delimited, sent to the API unchanged
	AuthorAccountID string
}

// TagList splits Tags on whitespace.
func (a Article) TagList() []string {
	return strings.Fields(a.Tags)
}

// ReadQuestions parses question rows.
func ReadQuestions(r io.Reader) ([]Question, error) {
	var out []Question
	err := readRows(r, QuestionColumns, func(row row) {
		out = append(out, Question{
			Title:             row.get("title"),
			Body:              row.get("body"),
			Answer:            row.get("answer"),
			Tags:              row.get("tags"),
			AskerAccountID:    row.get("asker_account_id"),
			AnswererAccountID: row.get("answerer_account_id"),
		})
	})
	return out, err
}

// ReadArticles parses article rows.
func ReadArticles(r io.Reader) ([]Article, error) {
	var out []Article
	err := readRows(r, ArticleColumns, func(row row) {
		out = append(out, Article{
			Title:           row.get("title"),
			Body:            row.get("body"),
			Type:            row.get("type"),
			Tags:            row.get("tags"),
			AuthorAccountID: row.get("author_account_id"),
		})
	})
	return out, err
}

// LoadQuestions reads question rows from a file.
func LoadQuestions(path string) ([]Question, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	rows, err := ReadQuestions(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rows, nil
}

// LoadArticles reads article rows from a file.
func LoadArticles(path string) ([]Article, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	rows, err := ReadArticles(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rows, nil
}

type row struct {
	record      []string
	headerIndex map[string]int
}

func (r row) get(column string) string {
	if idx, ok := r.headerIndex[column]; ok && idx < len(r.record) {
		return strings.TrimSpace(r.record[idx])
	}
	return ""
}

func readRows(r io.Reader, required []string, emit func(row)) error {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return fmt.Errorf("file is empty")
	}
	if err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}

	headerIndex := make(map[string]int, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		headerIndex[strings.ToLower(strings.TrimSpace(h))] = i
	}

	var missing []string
	for _, col := range required {
		if _, ok := headerIndex[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}

	lineNum := 1
	for {
		lineNum++
		record, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNum, err)
		}
		if blank(record) {
			continue
		}
		emit(row{record: record, headerIndex: headerIndex})
	}
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
