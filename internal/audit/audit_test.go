package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReporter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	reporter := NewReporter(dir)

	t.Run("SaveJSON creates the directory and saves the file", func(t *testing.T) {
		data := map[string]any{
			"mode":   "articles",
			"issues": []string{`"Setup": Too many tags. Must be 4 or fewer.`},
		}

		path, err := reporter.SaveJSON(data)
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(path, ".json"))
		assert.Equal(t, dir, filepath.Dir(path))

		content, err := os.ReadFile(path)
		require.NoError(t, err)

		var saved map[string]any
		require.NoError(t, json.Unmarshal(content, &saved))
		assert.Equal(t, "articles", saved["mode"])
	})

	t.Run("each report gets its own file", func(t *testing.T) {
		first, err := reporter.SaveJSON(map[string]int{"n": 1})
		require.NoError(t, err)
		second, err := reporter.SaveJSON(map[string]int{"n": 2})
		require.NoError(t, err)
		assert.NotEqual(t, first, second)
	})
}
