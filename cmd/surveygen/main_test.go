package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"resty.dev/v3"

	"github.com/at-ishikawa/surveygen/internal/auth"
	"github.com/at-ishikawa/surveygen/internal/cache"
	"github.com/at-ishikawa/surveygen/internal/config"
	"github.com/at-ishikawa/surveygen/internal/database"
	"github.com/at-ishikawa/surveygen/internal/generation/fake"
	"github.com/at-ishikawa/surveygen/internal/orchestrator"
	"github.com/at-ishikawa/surveygen/internal/ratelimit"
	"github.com/at-ishikawa/surveygen/internal/server"
	"github.com/at-ishikawa/surveygen/internal/survey"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	old := configFile
	t.Cleanup(func() { configFile = old })

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestNewRootCommand(t *testing.T) {
	cmd := newRootCommand()
	assert.Equal(t, "surveygen", cmd.Use)

	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"migrate", "generate", "cache"}, names)
}

func TestCommands_ConfigError(t *testing.T) {
	cfgPath := writeConfigFile(t, "{{invalid yaml content")

	for _, args := range [][]string{
		{"migrate"},
		{"generate", "coffee"},
		{"cache", "list"},
		{"cache", "show", "coffee"},
		{"cache", "stats"},
	} {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			_, err := execute(t, append([]string{"--config", cfgPath}, args...)...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "load config")
		})
	}
}

func TestCommands_MemoryDriverIsRejected(t *testing.T) {
	cfgPath := writeConfigFile(t, "database:\n  driver: memory\n")

	_, err := execute(t, "--config", cfgPath, "migrate")
	assert.ErrorContains(t, err, "memory driver")

	_, err = execute(t, "--config", cfgPath, "cache", "stats")
	assert.ErrorContains(t, err, "memory driver")
}

func TestCacheCommands_SQLite(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "surveys.db")
	cfgPath := writeConfigFile(t, fmt.Sprintf("database:\n  driver: sqlite\n  path: %s\n", dbPath))

	out, err := execute(t, "--config", cfgPath, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "Migrated sqlite database")

	db, err := database.Open(config.DatabaseConfig{Driver: database.DriverSQLite, Path: dbPath})
	require.NoError(t, err)
	doc, err := survey.NewDocument("Coffee habits", []survey.Question{
		{Type: survey.QuestionOpenText, Text: "Why coffee?"},
	})
	require.NoError(t, err)
	_, err = cache.NewDBStore(db).InsertIfAbsent(context.Background(), "Coffee Survey", "coffee survey", doc)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	out, err = execute(t, "--config", cfgPath, "cache", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Coffee Survey")
	assert.Contains(t, out, "Coffee habits")

	out, err = execute(t, "--config", cfgPath, "cache", "show", "COFFEE", "  survey")
	require.NoError(t, err)
	assert.Contains(t, out, `"prompt_normalized": "coffee survey"`)
	assert.Contains(t, out, `"title": "Coffee habits"`)

	_, err = execute(t, "--config", cfgPath, "cache", "show", "tea")
	assert.ErrorIs(t, err, cache.ErrNotFound)

	out, err = execute(t, "--config", cfgPath, "cache", "stats")
	require.NoError(t, err)
	assert.Equal(t, "Entries: 1\n", out)
}

func TestPrintEntries(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	doc, err := survey.NewDocument("Coffee habits", []survey.Question{
		{Type: survey.QuestionRating, Text: "How strong?", Scale: 5},
	})
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, printEntries(&out, []cache.Entry{
		{ID: 3, RawInput: "Coffee Survey", Document: doc, CreatedAt: now.Add(-2 * time.Hour)},
	}, now))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Contains(t, lines[1], "Coffee habits")
	assert.Contains(t, lines[1], "2 hours ago")
}

func TestRequestSurvey(t *testing.T) {
	gate := auth.NewGate("s3cret")
	store := cache.NewMemoryStore()
	o := orchestrator.New(gate, ratelimit.NewFixedWindow(10, time.Minute), store, fake.New())
	srv := httptest.NewServer(server.NewHandler(o, store, gate, nil).Routes())
	defer srv.Close()

	client := resty.New().SetBaseURL(srv.URL)
	defer client.Close()

	first, err := requestSurvey(client, "s3cret", "Coffee Survey")
	require.NoError(t, err)
	assert.False(t, first.cached)
	assert.Equal(t, "Coffee Survey (#1)", first.document.Title)

	second, err := requestSurvey(client, "s3cret", "coffee survey")
	require.NoError(t, err)
	assert.True(t, second.cached)

	_, err = requestSurvey(client, "wrong", "Coffee Survey")
	assert.ErrorContains(t, err, "401 UNAUTHORIZED")

	_, err = requestSurvey(client, "s3cret", "ab")
	assert.ErrorContains(t, err, "400 INVALID_INPUT")

	var out bytes.Buffer
	require.NoError(t, printSurvey(&out, second))
	assert.Contains(t, out.String(), "Coffee Survey (#1)")
	assert.Contains(t, out.String(), "cached")
	assert.Contains(t, out.String(), "- Daily")
	assert.Contains(t, out.String(), "scale 1-5")
}
