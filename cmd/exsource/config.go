package main

import (
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/cockroachdb/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/ukaji3/exsource-go/pkg/exsource"
)

// Setting keys. Each is a persistent flag, an EXSOURCE_* variable (dashes
// become underscores) and a key of the optional config file.
const (
	keyURL            = "url"
	keyConnectTimeout = "connect-timeout"
	keyReadTimeout    = "read-timeout"
	keyTempDir        = "temp-dir"
	keyMaxEntryBytes  = "max-entry-bytes"
	keyTimezone       = "timezone"
	keyBatchSize      = "batch-size"
	keyLogLevel       = "log-level"
	keyLogFormat      = "log-format"
)

func registerSettings(fs *pflag.FlagSet) {
	fs.String(keyURL, "", "archive URL (http, https or file)")
	fs.Duration(keyConnectTimeout, exsource.DefaultConnectTimeout, "download connect timeout")
	fs.Duration(keyReadTimeout, exsource.DefaultReadTimeout, "download read timeout")
	fs.String(keyTempDir, "", "parent directory of request workspaces (default: system temp dir)")
	fs.Int64(keyMaxEntryBytes, exsource.DefaultMaxEntryBytes, "maximum extracted size of one spreadsheet, negative for no limit")
	fs.String(keyTimezone, "Local", "zone used to interpret spreadsheet timestamps")
	fs.Int(keyBatchSize, exsource.DefaultScanBatchSize, "rows per Arrow record batch")
	fs.String(keyLogLevel, "warn", "log level: debug, info, warn, error")
	fs.String(keyLogFormat, "text", "log format: text, json, logfmt")
}

func newViper(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("EXSOURCE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, errors.Wrap(err, "bind flags")
	}
	return v, nil
}

// readConfigFile merges a YAML, TOML or JSON file into v; the format
// follows the extension.
func readConfigFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return errors.Wrapf(err, "read config file %s", path)
	}
	return nil
}

func configFromViper(v *viper.Viper) (exsource.Config, error) {
	u, err := exsource.ParseURL(v.GetString(keyURL))
	if err != nil {
		return exsource.Config{}, err
	}
	loc, err := time.LoadLocation(v.GetString(keyTimezone))
	if err != nil {
		return exsource.Config{}, errors.Wrapf(err, "invalid timezone %q", v.GetString(keyTimezone))
	}
	cfg := exsource.Config{
		URL:            u,
		ConnectTimeout: v.GetDuration(keyConnectTimeout),
		ReadTimeout:    v.GetDuration(keyReadTimeout),
		TempDir:        v.GetString(keyTempDir),
		MaxEntryBytes:  v.GetInt64(keyMaxEntryBytes),
		Location:       loc,
		ScanBatchSize:  v.GetInt(keyBatchSize),
	}
	return cfg, cfg.Validate()
}

// newLogger returns a slog.Logger backed by charmbracelet/log.
func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid log level %q", level)
	}
	var f log.Formatter
	switch strings.ToLower(format) {
	case "text":
		f = log.TextFormatter
	case "json":
		f = log.JSONFormatter
	case "logfmt":
		f = log.LogfmtFormatter
	default:
		return nil, errors.Newf("invalid log format %q", format)
	}
	h := log.NewWithOptions(w, log.Options{
		Level:           lvl,
		Formatter:       f,
		ReportTimestamp: true,
		Prefix:          "exsource",
	})
	return slog.New(h), nil
}
