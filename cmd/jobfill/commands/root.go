// Package commands implements the jobfill CLI.
package commands

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jobfill/jobfill/internal/app"
	"github.com/jobfill/jobfill/internal/browser"
	"github.com/jobfill/jobfill/internal/config"
)

var (
	green  = color.New(color.FgGreen, color.Bold)
	red    = color.New(color.FgRed, color.Bold)
	yellow = color.New(color.FgYellow, color.Bold)
	cyan   = color.New(color.FgCyan, color.Bold)
	bold   = color.New(color.Bold)
	dim    = color.New(color.Faint)
)

// Options are the settings shared by every command.
type Options struct {
	EnvFile string
	Verbose bool

	// NewDriver starts the live browser for fill. Defaults to browser.New.
	NewDriver func(cfg config.BrowserConfig, logger *zap.Logger) (browser.Driver, error)
}

// NewRootCommand builds the command tree. A nil opts uses the defaults.
func NewRootCommand(opts *Options) *cobra.Command {
	if opts == nil {
		opts = &Options{}
	}
	if opts.NewDriver == nil {
		opts.NewDriver = browser.New
	}

	root := &cobra.Command{
		Use:   "jobfill",
		Short: "Autofill job application forms from a stored profile",
		Long: `jobfill fills job application forms from a stored profile.

Commands:
  fill       Autofill live pages in a browser
  fill-html  Autofill a saved HTML document
  profile    Show and edit the stored profile
  mappings   List the loaded field mappings`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.EnvFile, "env-file", "", "load environment variables from this file")
	root.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	root.AddCommand(newFillCommand(opts))
	root.AddCommand(newFillHTMLCommand(opts))
	root.AddCommand(newProfileCommand(opts))
	root.AddCommand(newMappingsCommand(opts))
	return root
}

// session loads the configuration and wires the components. The caller
// closes the returned app.
func (o *Options) session(ctx context.Context) (*app.App, error) {
	if o.EnvFile != "" {
		if err := godotenv.Load(o.EnvFile); err != nil {
			return nil, fmt.Errorf("loading %s: %w", o.EnvFile, err)
		}
	} else {
		// A missing .env file is fine
		_ = godotenv.Load()
	}

	cfg, err := config.LoadWithDefaults()
	if err != nil {
		return nil, err
	}

	level := "warn"
	if o.Verbose {
		level = "debug"
	}
	logger := app.NewLogger(cfg.Env, level)

	return app.New(ctx, cfg, logger, nil)
}
