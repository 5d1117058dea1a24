package records

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadQuestions(t *testing.T) {
	csvData := "\ufeffTitle,Body,Answer,Tags,Asker_Account_ID,Answerer_Account_ID,Extra\n" +
		`"How do I deploy?","Steps, please.","Run make deploy.","deploy ops",12,34,ignored` + "\n" +
		",,,,,,\n" +
		`Second,Body two,Answer two,,,,` + "\n"

	rows, err := ReadQuestions(strings.NewReader(csvData))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, Question{
		Title:             "How do I deploy?",
		Body:              "Steps, please.",
		Answer:            "Run make deploy.",
		Tags:              "deploy ops",
		AskerAccountID:    "12",
		AnswererAccountID: "34",
	}, rows[0])
	assert.Equal(t, []string{"deploy", "ops"}, rows[0].TagList())
	assert.Empty(t, rows[1].TagList())
	assert.Empty(t, rows[1].AskerAccountID)
}

func TestReadArticles(t *testing.T) {
	csvData := "type,title,body,tags,author_account_id\n" +
		"how-to-guide,Setup,Install things,setup  tooling,7\n"

	rows, err := ReadArticles(strings.NewReader(csvData))
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.Equal(t, "Setup", rows[0].Title)
	assert.Equal(t, "how-to-guide", rows[0].Type)
	assert.Equal(t, "setup  tooling", rows[0].Tags, "tags are kept as written")
	assert.Equal(t, []string{"setup", "tooling"}, rows[0].TagList())
	assert.Equal(t, "7", rows[0].AuthorAccountID)
}

func TestReadRows_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		read    func(string) error
		wantErr string
	}{
		{
			name:    "empty file",
			data:    "",
			read:    func(s string) error { _, err := ReadArticles(strings.NewReader(s)); return err },
			wantErr: "empty",
		},
		{
			name:    "article columns missing",
			data:    "title,body\nA,B\n",
			read:    func(s string) error { _, err := ReadArticles(strings.NewReader(s)); return err },
			wantErr: "missing required columns: type, tags, author_account_id",
		},
		{
			name:    "question file read as articles",
			data:    "title,body,answer,tags,asker_account_id,answerer_account_id\n",
			read:    func(s string) error { _, err := ReadArticles(strings.NewReader(s)); return err },
			wantErr: "type",
		},
		{
			name:    "answer column missing",
			data:    "title,body,tags,asker_account_id,answerer_account_id\n",
			read:    func(s string) error { _, err := ReadQuestions(strings.NewReader(s)); return err },
			wantErr: "answer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.read(tt.data)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadQuestions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "questions.csv")
	require.NoError(t, os.WriteFile(path, []byte(
		"title,body,answer,tags,asker_account_id,answerer_account_id\nQ,B,A,t1,1,2\n"), 0o600))

	rows, err := LoadQuestions(path)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Q", rows[0].Title)

	_, err = LoadQuestions(filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)
}

func TestMode_String(t *testing.T) {
	assert.Equal(t, "questions", ModeQuestions.String())
	assert.Equal(t, "articles", ModeArticles.String())
}
