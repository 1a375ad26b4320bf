package archive

import (
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/klauspost/compress/zip"
	"github.com/ukaji3/exsource-go/pkg/exsource"
	"github.com/ukaji3/exsource-go/pkg/exsource/models"
)

// entryBaseName strips every directory component from a zip entry name.
func entryBaseName(name string) string {
	return path.Base(strings.ReplaceAll(name, `\`, "/"))
}

// isSpreadsheetName reports whether a base name has a spreadsheet extension.
func isSpreadsheetName(name string) bool {
	return models.EncodingForName(name) != models.EncodingUnknown && models.SchemaName(name) != ""
}

// extract copies every spreadsheet entry of the zip at archivePath into dir
// under its base name. An entry whose schema name matches, ignoring case, one
// already extracted is skipped.
func (s *Source) extract(archivePath, dir string) ([]models.SpreadsheetFile, error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, s.fail(exsource.CodeFileOpen, err, "cannot decode zip archive")
	}
	defer func() { _ = zr.Close() }()

	limit := s.cfg.EffectiveMaxEntryBytes()
	var files []models.SpreadsheetFile
	seen := make(map[string]string)
	for _, entry := range zr.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		name := entryBaseName(entry.Name)
		if !isSpreadsheetName(name) {
			continue
		}
		schema := models.SchemaName(name)
		key := strings.ToLower(schema)
		if first, ok := seen[key]; ok {
			s.logger.Warn("skipping duplicate spreadsheet", "entry", entry.Name, "schema", schema, "kept", first)
			continue
		}
		if limit > 0 && entry.UncompressedSize64 > uint64(limit) {
			return nil, s.fail(exsource.CodeFileOpen, nil, "entry %q exceeds %d bytes", entry.Name, limit)
		}

		s.logger.Debug("extracting spreadsheet", "entry", entry.Name, "name", name)
		n, err := copyEntry(entry, filepath.Join(dir, name), limit)
		if err != nil {
			var pe *os.PathError
			if errors.As(err, &pe) {
				return nil, s.fail(exsource.CodeInternal, err, "cannot extract %q", entry.Name)
			}
			return nil, s.fail(exsource.CodeFileOpen, err, "cannot extract %q", entry.Name)
		}
		seen[key] = entry.Name
		files = append(files, models.SpreadsheetFile{
			Schema:   schema,
			FullName: name,
			Encoding: models.EncodingForName(name),
			Size:     n,
		})
	}
	return files, nil
}

var errEntryTooLarge = errors.New("entry exceeds the extraction limit")

func copyEntry(entry *zip.File, dst string, limit int64) (n int64, err error) {
	rc, err := entry.Open()
	if err != nil {
		return 0, err
	}
	defer func() { _ = rc.Close() }()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	var r io.Reader = rc
	if limit > 0 {
		// One byte over the limit tells a truncated copy from an exact fit.
		r = io.LimitReader(rc, limit+1)
	}
	n, err = io.Copy(out, r)
	if err != nil {
		return n, err
	}
	if limit > 0 && n > limit {
		return n, errEntryTooLarge
	}
	return n, nil
}
