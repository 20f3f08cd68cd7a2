package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T, categories map[string]bool) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	InitializeWith(zap.New(core), categories)
	t.Cleanup(CloseAll)
	return logs
}

// TestAllCategoriesLog tests that every category writes when no filter is set
func TestAllCategoriesLog(t *testing.T) {
	logs := observe(t, nil)

	for _, cat := range AllCategories {
		Get(cat).Info("hello from %s", cat)
	}

	require.Equal(t, len(AllCategories), logs.Len())
	for i, entry := range logs.All() {
		assert.Equal(t, string(AllCategories[i]), entry.LoggerName)
		assert.Equal(t, "hello from "+string(AllCategories[i]), entry.Message)
	}
}

func TestCategoryFilter(t *testing.T) {
	logs := observe(t, map[string]bool{"browser": false, "ranking": true})

	BrowserWarn("should be dropped")
	Ranking("kept %d", 1)
	Cleaner("kept because unlisted")

	require.Equal(t, 2, logs.Len())
	assert.False(t, IsCategoryEnabled(CategoryBrowser))
	assert.True(t, IsCategoryEnabled(CategoryRanking))
	assert.True(t, IsCategoryEnabled(CategoryCleaner))
}

func TestDisabledIsNoop(t *testing.T) {
	require.NoError(t, Initialize(Config{Enabled: false}))
	t.Cleanup(CloseAll)

	assert.False(t, IsCategoryEnabled(CategoryPipeline))
	// Must not panic.
	Pipeline("nothing %s", "here")
	Get(CategoryScraper).With("url", "x").Error("still nothing")
}

func TestWithCarriesFields(t *testing.T) {
	logs := observe(t, nil)

	Get(CategoryPipeline).With("request_id", "abc").Info("stage %s", "scrape")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "stage scrape", entry.Message)
	assert.Equal(t, "abc", entry.ContextMap()["request_id"])
}

func TestInitializeWritesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Initialize(Config{Enabled: true, Level: "debug", JSONFormat: true, Directory: dir}))

	SearchDebug("query=%q", "go generics")
	CloseAll()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `"logger":"search"`), "got %s", data)
}

func TestInitializeRejectsBadLevel(t *testing.T) {
	err := Initialize(Config{Enabled: true, Level: "loud"})
	require.Error(t, err)
	CloseAll()
}
