package cli

import (
	"fmt"
	"slices"

	"github.com/benbjohnson/clock"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/roach88/configstore/internal/client"
	"github.com/roach88/configstore/internal/config"
	"github.com/roach88/configstore/internal/model"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	EnvFile    string

	// Clock drives scheduling and scan timestamps. Nil means wall time.
	Clock clock.Clock
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command of the configstore CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "configstore",
		Short: "Inspect and follow a config store",
		Long: `Lists the policies, access documents and routes held in a config store,
follows their changes, and shows the polling schedule and scan history.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "configuration file (YAML)")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file with CSC_* overrides")

	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewScheduleCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

func (o *RootOptions) clock() clock.Clock {
	if o.Clock == nil {
		return clock.New()
	}
	return o.Clock
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// logger writes to the command's stderr: console lines for text output,
// JSON for json output. Only warnings and errors unless verbose.
func (o *RootOptions) logger(cmd *cobra.Command) *zap.SugaredLogger {
	level := zapcore.WarnLevel
	if o.Verbose {
		level = zapcore.DebugLevel
	}
	var encoder zapcore.Encoder
	if o.Format == "json" {
		encoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	} else {
		encoder = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	}
	core := zapcore.NewCore(encoder, zapcore.AddSync(cmd.ErrOrStderr()), level)
	return zap.New(core).Sugar().Named("configstore")
}

func (o *RootOptions) loadConfig() (*config.Config, error) {
	return config.Load(o.ConfigPath, config.WithEnvFile(o.EnvFile))
}

// openClient loads the configuration and builds an enabled client. Any
// failure has already been reported through f.
func (o *RootOptions) openClient(cmd *cobra.Command, f *OutputFormatter, extra ...client.Option) (*client.Client, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, f.Fail(ExitFailure, ErrCodeConfig, err)
	}
	opts := append([]client.Option{
		client.WithLogger(o.logger(cmd)),
		client.WithClock(o.clock()),
	}, extra...)
	c, err := client.New(cfg, opts...)
	if err != nil {
		return nil, f.Fail(ExitFailure, ErrCodeConfig, err)
	}
	if c.Disabled() {
		return nil, f.Fail(ExitCommandError, ErrCodeDisabled, client.ErrDisabled)
	}
	return c, nil
}

func parseTypes(names []string) ([]model.EntityType, error) {
	types := make([]model.EntityType, 0, len(names))
	for _, n := range names {
		t, err := model.ParseEntityType(n)
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, nil
}
