// Package archive downloads a zip archive of spreadsheets and extracts it into
// a private temporary workspace.
//
// A Source is single use: New, Materialize, any number of listings and
// document opens, then Close. Close removes the workspace and is safe to call
// on every exit path, including after a failed Materialize.
package archive

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/ukaji3/exsource-go/pkg/exsource"
	"github.com/ukaji3/exsource-go/pkg/exsource/models"
	"github.com/ukaji3/exsource-go/pkg/exsource/workbook"
)

// TempDirPrefix starts the name of every workspace directory.
const TempDirPrefix = "exsource_zip_"

// ErrNotMaterialized is returned when a Source is used before Materialize
// succeeded or after Close.
var ErrNotMaterialized = errors.New("archive has not been materialized")

type state int

const (
	stateCreated state = iota
	stateMaterialized
	stateClosed
)

// Source is one materialization of a remote archive. It is not safe for
// concurrent use.
type Source struct {
	url    *url.URL
	cfg    exsource.Config
	logger *slog.Logger
	client *http.Client

	state state
	dir   string
	files []models.SpreadsheetFile
}

// Option configures a Source.
type Option func(*Source)

// WithConfig applies timeouts, the workspace parent and the entry size cap
// from cfg. The URL of cfg is ignored.
func WithConfig(cfg exsource.Config) Option {
	return func(s *Source) {
		s.cfg = cfg
	}
}

// WithLogger sets the diagnostic sink.
func WithLogger(l *slog.Logger) Option {
	return func(s *Source) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithHTTPClient replaces the client built from the configured timeouts.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Source) {
		s.client = c
	}
}

// New returns an unmaterialized Source for u. It performs no I/O.
func New(u *url.URL, opts ...Option) *Source {
	s := &Source{
		url:    u,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cfg.URL = u
	return s
}

// URL returns the archive location.
func (s *Source) URL() string {
	if s.url == nil {
		return ""
	}
	return s.url.String()
}

// Dir returns the workspace directory, empty before Materialize and after Close.
func (s *Source) Dir() string {
	return s.dir
}

// Materialize creates the workspace, downloads the archive and extracts every
// spreadsheet entry into it. On failure the workspace is removed before the
// error is returned.
func (s *Source) Materialize(ctx context.Context) (err error) {
	switch s.state {
	case stateMaterialized:
		return nil
	case stateClosed:
		return ErrNotMaterialized
	}
	if s.url == nil {
		return s.fail(exsource.CodeInternal, nil, "archive url is required")
	}

	dir, err := os.MkdirTemp(s.cfg.TempDir, TempDirPrefix+uuid.NewString()+"-")
	if err != nil {
		return s.fail(exsource.CodeInternal, err, "cannot create workspace")
	}
	s.dir = dir
	s.logger.Debug("created workspace", "dir", dir)
	defer func() {
		if err != nil {
			s.removeWorkspace()
			s.state = stateClosed
		}
	}()

	s.logger.Info("downloading archive", "url", s.URL())
	spool := filepath.Join(dir, ".download-"+uuid.NewString())
	n, err := s.fetch(ctx, spool)
	if err != nil {
		return err
	}

	files, err := s.extract(spool, dir)
	if err != nil {
		return err
	}
	if rerr := os.Remove(spool); rerr != nil {
		s.logger.Warn("cannot remove downloaded archive", "path", spool, "error", rerr)
	}

	s.files = files
	s.state = stateMaterialized
	s.logger.Info("extracted archive", "url", s.URL(), "bytes", n, "files", len(files), "dir", dir)
	return nil
}

// Files lists the extracted spreadsheets in archive order.
func (s *Source) Files() ([]models.SpreadsheetFile, error) {
	if s.state != stateMaterialized {
		return nil, ErrNotMaterialized
	}
	return append([]models.SpreadsheetFile(nil), s.files...), nil
}

// Schemas lists the schema name of every extracted spreadsheet.
func (s *Source) Schemas() ([]string, error) {
	files, err := s.Files()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.Schema)
	}
	return out, nil
}

// Lookup finds the spreadsheet whose schema name is schema, exact match
// first, then ignoring case.
func (s *Source) Lookup(schema string) (models.SpreadsheetFile, bool, error) {
	files, err := s.Files()
	if err != nil {
		return models.SpreadsheetFile{}, false, err
	}
	for _, f := range files {
		if f.Schema == schema {
			return f, true, nil
		}
	}
	for _, f := range files {
		if strings.EqualFold(f.Schema, schema) {
			return f, true, nil
		}
	}
	return models.SpreadsheetFile{}, false, nil
}

// OpenDocument opens an extracted spreadsheet by its full name. The caller
// owns the returned Document.
func (s *Source) OpenDocument(fullName string) (workbook.Document, error) {
	files, err := s.Files()
	if err != nil {
		return nil, err
	}
	member := false
	for _, f := range files {
		if f.FullName == fullName {
			member = true
			break
		}
	}
	path := filepath.Join(s.dir, fullName)
	if !member {
		return nil, s.fail(exsource.CodeFileOpen, nil, "spreadsheet %q not found in archive", fullName)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, s.fail(exsource.CodeFileOpen, err, "spreadsheet %q missing from workspace", fullName)
	}

	doc, err := workbook.Open(path)
	if err != nil {
		s.logger.Error("cannot open spreadsheet", "file", fullName, "error", err)
		return nil, exsource.WithContext(err, exsource.Context{URL: s.URL(), Schema: models.SchemaName(fullName)})
	}
	return doc, nil
}

// Close removes the workspace. Deletion failures are logged, never returned.
// Close is idempotent.
func (s *Source) Close() error {
	if s.state == stateClosed {
		return nil
	}
	s.state = stateClosed
	s.removeWorkspace()
	s.files = nil
	return nil
}

// removeWorkspace deletes the workspace bottom-up, continuing past failures.
func (s *Source) removeWorkspace() {
	if s.dir == "" {
		return
	}
	dir := s.dir
	s.dir = ""

	var paths []string
	walkErr := filepath.WalkDir(dir, func(p string, _ os.DirEntry, err error) error {
		if err != nil {
			s.logger.Warn("cannot walk workspace entry", "path", p, "error", err)
			return nil
		}
		paths = append(paths, p)
		return nil
	})
	if walkErr != nil {
		s.logger.Warn("cannot walk workspace", "dir", dir, "error", walkErr)
	}

	// Children sort after their parent, so reverse order deletes leaves first.
	sort.Sort(sort.Reverse(sort.StringSlice(paths)))
	failed := 0
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			failed++
			s.logger.Warn("cannot delete workspace entry", "path", p, "error", err)
		}
	}
	if failed == 0 {
		s.logger.Debug("removed workspace", "dir", dir)
	}
}

func (s *Source) fail(code exsource.Code, err error, format string, args ...any) *exsource.Error {
	e := exsource.NewError(code, err, format, args...)
	e.URL = s.URL()
	return e
}

// With materializes a Source for u, runs fn and always closes the Source.
func With(ctx context.Context, u *url.URL, opts []Option, fn func(*Source) error) error {
	s := New(u, opts...)
	defer s.Close()
	if err := s.Materialize(ctx); err != nil {
		return err
	}
	return fn(s)
}
