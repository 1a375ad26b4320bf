// Package fixture builds spreadsheets and zip archives for tests.
package fixture

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// Formula is a cell value written as a formula instead of a literal.
type Formula string

// Sheet is a named grid of cell values; nil cells are left blank.
type Sheet struct {
	Name string
	Rows [][]any
}

// Entry is one zip member.
type Entry struct {
	Name string
	Data []byte
}

// Workbook renders sheets as an xlsx file.
func Workbook(t testing.TB, sheets ...Sheet) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for i, sh := range sheets {
		if i == 0 {
			require.NoError(t, f.SetSheetName("Sheet1", sh.Name))
		} else {
			_, err := f.NewSheet(sh.Name)
			require.NoError(t, err)
		}
		for r, row := range sh.Rows {
			for c, v := range row {
				if v == nil {
					continue
				}
				cell, err := excelize.CoordinatesToCellName(c+1, r+1)
				require.NoError(t, err)
				if fx, ok := v.(Formula); ok {
					require.NoError(t, f.SetCellFormula(sh.Name, cell, string(fx)))
					continue
				}
				require.NoError(t, f.SetCellValue(sh.Name, cell, v))
			}
		}
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

// Zip packs entries, in order, into a zip archive. Names ending in "/" are
// directories.
func Zip(t testing.TB, entries ...Entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e.Name)
		require.NoError(t, err)
		if len(e.Data) > 0 {
			_, err = w.Write(e.Data)
			require.NoError(t, err)
		}
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// Serve publishes data over HTTP for the lifetime of the test.
func Serve(t testing.TB, data []byte) *url.URL {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/zip")
		_, _ = w.Write(data)
	}))
	t.Cleanup(srv.Close)
	u, err := url.Parse(srv.URL + "/archive.zip")
	require.NoError(t, err)
	return u
}

// FileURL writes data under a temp dir and returns its file:// URL.
func FileURL(t testing.TB, data []byte) *url.URL {
	t.Helper()
	path := filepath.Join(t.TempDir(), "archive.zip")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return &url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
}

// Unreachable returns an http URL nothing listens on.
func Unreachable(t testing.TB) *url.URL {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	u, err := url.Parse(srv.URL + "/archive.zip")
	require.NoError(t, err)
	srv.Close()
	return u
}

// Users is the three-column sheet used across packages.
func Users() Sheet {
	return Sheet{Name: "Users", Rows: [][]any{
		{"UserID", "Username", "Email"},
		{101, "alice", "alice@example.com"},
		{102, "bob", "bob@example.com"},
		{103, "carol", "carol@example.com"},
	}}
}
