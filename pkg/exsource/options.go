// Package exsource exposes spreadsheets bundled in a remote zip archive as
// read-only tables: each spreadsheet file is a schema, each sheet a table.
package exsource

import (
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

const (
	// DefaultConnectTimeout bounds establishing the archive download connection.
	DefaultConnectTimeout = 10 * time.Second
	// DefaultReadTimeout bounds the wait for the next chunk of the archive body.
	DefaultReadTimeout = 60 * time.Second
	// DefaultMaxEntryBytes caps the uncompressed size of one extracted spreadsheet.
	DefaultMaxEntryBytes int64 = 1 << 30
	// DefaultScanBatchSize is the number of rows per columnar batch.
	DefaultScanBatchSize = 1024
)

// Config configures every connector component. A Config is passed by value
// to each constructor; nothing is read from package-level state.
type Config struct {
	// URL locates the zip archive. Required, must be absolute.
	URL *url.URL
	// ConnectTimeout bounds the TCP/TLS connect of the download.
	// Zero means DefaultConnectTimeout.
	ConnectTimeout time.Duration
	// ReadTimeout bounds response headers and each read of the body.
	// Zero means DefaultReadTimeout.
	ReadTimeout time.Duration
	// TempDir is the parent of per-request workspaces. Empty means os.TempDir().
	TempDir string
	// MaxEntryBytes caps each extracted file. Zero means DefaultMaxEntryBytes,
	// negative disables the cap.
	MaxEntryBytes int64
	// Location is the zone used to turn spreadsheet wall-clock timestamps into
	// instants. Nil means time.Local.
	Location *time.Location
	// ScanBatchSize is the row count per columnar output batch.
	// Zero means DefaultScanBatchSize.
	ScanBatchSize int
}

// DefaultConfig returns a Config for rawURL with default settings.
func DefaultConfig(rawURL string) (Config, error) {
	u, err := ParseURL(rawURL)
	if err != nil {
		return Config{}, err
	}
	return Config{URL: u}, nil
}

// ParseURL parses and validates an archive location. Invalid values are
// rejected here, before any request runs.
func ParseURL(rawURL string) (*url.URL, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, errors.New("archive url is required")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid archive url %q", rawURL)
	}
	if !u.IsAbs() {
		return nil, errors.Newf("invalid archive url %q: not an absolute URI", rawURL)
	}
	return u, nil
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	if c.URL == nil {
		return errors.New("archive url is required")
	}
	if !c.URL.IsAbs() {
		return errors.Newf("invalid archive url %q: not an absolute URI", c.URL.String())
	}
	if c.ConnectTimeout < 0 || c.ReadTimeout < 0 {
		return errors.New("timeouts must not be negative")
	}
	if c.ScanBatchSize < 0 {
		return errors.New("scan batch size must not be negative")
	}
	return nil
}

// ArchiveURL returns the archive location as a string, empty when unset.
func (c Config) ArchiveURL() string {
	if c.URL == nil {
		return ""
	}
	return c.URL.String()
}

// EffectiveConnectTimeout returns ConnectTimeout or its default.
func (c Config) EffectiveConnectTimeout() time.Duration {
	if c.ConnectTimeout > 0 {
		return c.ConnectTimeout
	}
	return DefaultConnectTimeout
}

// EffectiveReadTimeout returns ReadTimeout or its default.
func (c Config) EffectiveReadTimeout() time.Duration {
	if c.ReadTimeout > 0 {
		return c.ReadTimeout
	}
	return DefaultReadTimeout
}

// EffectiveMaxEntryBytes returns the extraction cap; 0 means unlimited.
func (c Config) EffectiveMaxEntryBytes() int64 {
	switch {
	case c.MaxEntryBytes < 0:
		return 0
	case c.MaxEntryBytes == 0:
		return DefaultMaxEntryBytes
	default:
		return c.MaxEntryBytes
	}
}

// EffectiveLocation returns Location or time.Local.
func (c Config) EffectiveLocation() *time.Location {
	if c.Location != nil {
		return c.Location
	}
	return time.Local
}

// EffectiveScanBatchSize returns ScanBatchSize or its default.
func (c Config) EffectiveScanBatchSize() int {
	if c.ScanBatchSize > 0 {
		return c.ScanBatchSize
	}
	return DefaultScanBatchSize
}

// ErrorContext returns the identity carried by errors for schema and table.
func (c Config) ErrorContext(schema, table string) Context {
	return Context{URL: c.ArchiveURL(), Schema: schema, Table: table}
}
