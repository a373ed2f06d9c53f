package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raziel-gershoni/calbrew-sub001/internal/anniversaries/application/queries"
)

func writeImportFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestImportCmd(t *testing.T) {
	app, _ := setupLocalModeTestApp(t)
	SetApp(app)
	defer SetApp(nil)

	ctx := context.Background()
	path := writeImportFile(t, `
events:
  - title: "Grandpa's yahrzeit"
    description: "Kaddish"
    anchor_day: 12
    anchor_month: 9
    anchor_year: 5752
  - title: "Wedding anniversary"
    anchor_day: 15
    anchor_month: 1
    anchor_year: 5778
`)

	importProvider = ""
	importCmd.SetContext(ctx)
	require.NoError(t, importCmd.RunE(importCmd, []string{path}))

	events, err := app.ListEventsHandler.Handle(ctx, queries.ListEventsQuery{UserID: testUserID})
	require.NoError(t, err)
	require.Len(t, events, 2)

	titles := []string{events[0].Title, events[1].Title}
	assert.Contains(t, titles, "Grandpa's yahrzeit")
	assert.Contains(t, titles, "Wedding anniversary")
}

func TestImportCmd_PartialFailure(t *testing.T) {
	app, _ := setupLocalModeTestApp(t)
	SetApp(app)
	defer SetApp(nil)

	ctx := context.Background()
	path := writeImportFile(t, `
events:
  - title: "Valid"
    anchor_day: 10
    anchor_month: 5
    anchor_year: 5750
  - title: "Broken"
    anchor_day: 40
    anchor_month: 5
    anchor_year: 5750
`)

	importProvider = ""
	importCmd.SetContext(ctx)

	err := importCmd.RunE(importCmd, []string{path})
	require.Error(t, err, "a failed entry should surface after the rest import")
	assert.Contains(t, err.Error(), "1 events failed")

	events, listErr := app.ListEventsHandler.Handle(ctx, queries.ListEventsQuery{UserID: testUserID})
	require.NoError(t, listErr)
	require.Len(t, events, 1)
	assert.Equal(t, "Valid", events[0].Title)
}

func TestImportCmd_EmptyFile(t *testing.T) {
	app, _ := setupLocalModeTestApp(t)
	SetApp(app)
	defer SetApp(nil)

	path := writeImportFile(t, "events: []\n")

	importCmd.SetContext(context.Background())
	err := importCmd.RunE(importCmd, []string{path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no events")
}

func TestImportCmd_MissingFile(t *testing.T) {
	app, _ := setupLocalModeTestApp(t)
	SetApp(app)
	defer SetApp(nil)

	importCmd.SetContext(context.Background())
	err := importCmd.RunE(importCmd, []string{filepath.Join(t.TempDir(), "absent.yaml")})
	require.Error(t, err)
}
