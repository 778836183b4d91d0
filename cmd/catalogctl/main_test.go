package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sheet = "ISBN,Title,Author,Year,Rate,Discount\n" +
	"978-0261103344,The Hobbit,J.R.R. Tolkien,1937,12.99,10\n" +
	"978-0441172719,Dune,Frank Herbert,1965,9.99,0\n"

// run executes catalogctl against an isolated data directory.
func run(t *testing.T, dataDir string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{
		"--env-file", filepath.Join(dataDir, "missing.env"),
		"--data-path", dataDir,
		"--store-driver", "sqlite",
	}, args...))
	err := cmd.ExecuteContext(t.Context())
	return out.String(), err
}

func writeSheet(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vendor.csv")
	require.NoError(t, os.WriteFile(path, []byte(sheet), 0o644))
	return path
}

func TestImportThenReports(t *testing.T) {
	data := t.TempDir()
	file := writeSheet(t)

	out, err := run(t, data, "import", file, "--json")
	require.NoError(t, err)

	var report struct {
		ID    string `json:"id"`
		Stats struct {
			Total    int `json:"total"`
			Inserted int `json:"inserted"`
		} `json:"stats"`
		LogFile string `json:"log_file"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report), out)
	assert.Equal(t, 2, report.Stats.Total)
	assert.Equal(t, 2, report.Stats.Inserted)
	assert.FileExists(t, report.LogFile)

	out, err = run(t, data, "reports", "list")
	require.NoError(t, err)
	assert.Contains(t, out, report.ID)
	assert.Contains(t, out, "1 of 1 reports")

	out, err = run(t, data, "reports", "show", report.ID)
	require.NoError(t, err)
	assert.Contains(t, out, `"file_name": "vendor.csv"`)
}

func TestImport_SecondRunSkipsDuplicates(t *testing.T) {
	data := t.TempDir()
	file := writeSheet(t)

	_, err := run(t, data, "import", file)
	require.NoError(t, err)

	out, err := run(t, data, "import", file)
	require.NoError(t, err)
	assert.Contains(t, out, "inserted:   0")
	assert.Contains(t, out, "duplicates: 2")
}

func TestImport_SkipDuplicatesOnlyControlsReview(t *testing.T) {
	data := t.TempDir()
	file := writeSheet(t)

	_, err := run(t, data, "import", file)
	require.NoError(t, err)

	out, err := run(t, data, "import", file, "--skip-duplicates=false", "--json")
	require.NoError(t, err)

	var report struct {
		Stats struct {
			Inserted   int `json:"inserted"`
			Duplicates int `json:"duplicates"`
		} `json:"stats"`
		PendingReview []struct {
			Kind string `json:"kind"`
		} `json:"pending_review"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report), out)
	assert.Equal(t, 0, report.Stats.Inserted)
	assert.Equal(t, 2, report.Stats.Duplicates)
	require.Len(t, report.PendingReview, 2)
	assert.Equal(t, "duplicate", report.PendingReview[0].Kind)

	flag := newImportCmd(&globalFlags{}).Flags().Lookup("skip-duplicates")
	require.NotNil(t, flag)
	assert.Equal(t, "leave duplicates out of the review list", flag.Usage)
}

func TestHeaders(t *testing.T) {
	out, err := run(t, t.TempDir(), "headers", writeSheet(t))
	require.NoError(t, err)
	assert.Contains(t, out, `"total_rows": 2`)
	assert.Contains(t, out, `"has_required_book_fields": true`)
}

func TestCheck(t *testing.T) {
	out, err := run(t, t.TempDir(), "check", "--title", "Dune", "--isbn", "978-0441172719", "--rate", "9.99")
	require.NoError(t, err)
	assert.Contains(t, out, `"action": "INSERT_BOOK_AND_PRICING"`)
}

func TestImport_MissingFile(t *testing.T) {
	_, err := run(t, t.TempDir(), "import", filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}

func TestReportsShow_Unknown(t *testing.T) {
	_, err := run(t, t.TempDir(), "reports", "show", "missing")
	assert.Error(t, err)
}
