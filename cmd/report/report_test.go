package report

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/conf"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datastore"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/report"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/testutil"
)

// seeded returns settings pointing at a file database holding a fixture
// campaign with one annotator range over three files.
func seeded(t *testing.T) (*conf.Settings, *testutil.Fixture) {
	t.Helper()
	settings := &conf.Settings{}
	settings.Database.SQLite.Path = filepath.Join(t.TempDir(), "report.db")

	manager, err := datastore.Open(&settings.Database)
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })

	f := testutil.NewFixtureOn(t, manager.DB(), 3)
	f.AddRange(t, f.Phase, f.Annotator, 0, 2)
	return settings, f
}

func TestRunWritesStatusCSV(t *testing.T) {
	settings, f := seeded(t)

	var out bytes.Buffer
	require.NoError(t, Run(context.Background(), settings, f.Campaign.ID, &Options{Kind: KindStatus, Format: "csv"}, &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4, "header plus one row per file")
	assert.Contains(t, lines[0], f.Annotator.Username)
}

func TestRunWritesXLSXIntoDirectory(t *testing.T) {
	settings, f := seeded(t)
	dir := t.TempDir()

	var out bytes.Buffer
	opts := &Options{Phase: "annotation", Kind: KindResults, Format: "xlsx", Output: dir}
	require.NoError(t, Run(context.Background(), settings, f.Campaign.ID, opts, &out))

	path := filepath.Join(dir, f.Campaign.Name+"_annotation_results.xlsx")
	assert.FileExists(t, path)
	assert.Contains(t, out.String(), path)

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()
	book, err := excelize.OpenReader(file)
	require.NoError(t, err)
	defer func() { _ = book.Close() }()
	rows, err := book.GetRows(KindResults)
	require.NoError(t, err)
	require.NotEmpty(t, rows)
	assert.Equal(t, report.ReportHeader, rows[0])
}

func TestRunRejectsBadOptions(t *testing.T) {
	settings, f := seeded(t)

	tests := []struct {
		name string
		opts Options
	}{
		{"phase", Options{Phase: "review", Kind: KindResults, Format: "csv"}},
		{"format", Options{Kind: KindResults, Format: "pdf"}},
		{"kind", Options{Kind: "summary", Format: "csv"}},
		{"missing phase", Options{Phase: "verification", Kind: KindResults, Format: "csv"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			assert.Error(t, Run(context.Background(), settings, f.Campaign.ID, &tt.opts, &out))
			assert.Empty(t, out.String())
		})
	}

	var out bytes.Buffer
	assert.Error(t, Run(context.Background(), settings, 9999, &Options{Kind: KindResults, Format: "csv"}, &out))
}
