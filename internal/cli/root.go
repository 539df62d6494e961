// Package cli defines the cobra command tree for realtyctl.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"realtyhub/internal/config"
	"realtyhub/internal/database"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type options struct {
	configPath string
	format     string
	verbose    bool
}

// NewRootCmd creates the root command with global flags.
func NewRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "realtyctl",
		Short:         "Administer a realtyhub deployment",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultConfig := os.Getenv("CONFIG_PATH")
	if defaultConfig == "" {
		defaultConfig = "configs/config.yaml"
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", defaultConfig, "path to config.yaml")
	root.PersistentFlags().StringVar(&opts.format, "format", "text", "output format (text|json)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log at info level")

	root.AddCommand(
		newMigrateCmd(opts),
		newTokenCmd(opts),
		newReplayCmd(opts),
		newUserCmd(opts),
		newPropertyCmd(opts),
		newTelegramCmd(opts),
		newBackupCmd(opts),
	)
	return root
}

func (o *options) load() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", o.configPath, err)
	}
	return cfg, nil
}

// logger writes human-readable lines to the command's stderr.
func (o *options) logger(cmd *cobra.Command) *zerolog.Logger {
	level := zerolog.WarnLevel
	if o.verbose {
		level = zerolog.InfoLevel
	}
	l := zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), NoColor: true}).
		Level(level).
		With().Timestamp().Logger()
	return &l
}

func (o *options) openDB(cmd *cobra.Command) (*config.Config, *database.DB, error) {
	cfg, err := o.load()
	if err != nil {
		return nil, nil, err
	}
	db, err := database.Open(cfg.Database, o.logger(cmd))
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	return cfg, db, nil
}

func (o *options) isJSON() bool {
	return o.format == "json"
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func closeDB(cmd *cobra.Command, db *database.DB) {
	if err := db.Close(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: closing database: %v\n", err)
	}
}
