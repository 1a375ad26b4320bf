package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/ukaji3/exsource-go/pkg/exsource/archive"
	"github.com/ukaji3/exsource-go/pkg/exsource/connector"
)

// app holds the state shared by every subcommand.
type app struct {
	cfgFile string
	v       *viper.Viper
	stderr  io.Writer
	logger  *slog.Logger
	conn    *connector.Connector
	// sourceOpts are passed to every archive source; tests inject clients here.
	sourceOpts []archive.Option
}

func newApp() *app {
	return &app{stderr: os.Stderr}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "exsource",
		Short: "Query spreadsheets inside a remote zip archive",
		Long: TitleStyle.Render("exsource") + SubtitleStyle.Render(" - spreadsheets in a zip archive as tables") + `

Every .xls or .xlsx file in the archive is a schema named after the file,
and every sheet is a table whose first row holds the column names.

` + SubtitleStyle.Render("Examples:") + `
  exsource schemas --url https://example.com/reports.zip
  exsource tables sales
  exsource columns sales Q1
  exsource scan sales Q1 --columns Region,Units:bigint --format jsonl`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (YAML, TOML or JSON)")
	registerSettings(root.PersistentFlags())

	root.AddCommand(
		newSchemasCmd(a),
		newTablesCmd(a),
		newColumnsCmd(a),
		newDescribeCmd(a),
		newScanCmd(a),
	)
	return root
}

// setup loads configuration and builds the connector before any subcommand runs.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	v, err := newViper(cmd.Root().PersistentFlags())
	if err != nil {
		return err
	}
	if err := readConfigFile(v, a.cfgFile); err != nil {
		return err
	}
	a.v = v

	logger, err := newLogger(a.stderr, v.GetString(keyLogLevel), v.GetString(keyLogFormat))
	if err != nil {
		return err
	}
	a.logger = logger

	cfg, err := configFromViper(v)
	if err != nil {
		return err
	}
	conn, err := connector.New(cfg, logger, a.sourceOpts...)
	if err != nil {
		return err
	}
	a.conn = conn
	return nil
}
