package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/configstore/internal/config"
)

// ValidationResult holds the outcome of validate.
type ValidationResult struct {
	Valid  bool           `json:"valid"`
	Field  string         `json:"field,omitempty"`
	Config *config.Config `json:"config,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration",
		Long: `Load the configuration file, the dotenv file and CSC_* environment
overrides, and check the result without touching the store.

Exit codes:
  0 - Configuration is valid
  1 - Configuration is invalid`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	cfg, err := opts.loadConfig()
	if err != nil {
		var verr *config.ValidationError
		if errors.As(err, &verr) {
			if werr := f.Error(ErrCodeConfig, verr.Message, ValidationResult{Field: verr.Field}); werr != nil {
				return werr
			}
			return WrapExitError(ExitFailure, ErrCodeConfig, err)
		}
		return f.Fail(ExitFailure, ErrCodeConfig, err)
	}

	if f.JSON() {
		redacted := *cfg
		if redacted.S3.SecretKey != "" {
			redacted.S3.SecretKey = "<redacted>"
		}
		return f.Success(ValidationResult{Valid: true, Config: &redacted})
	}

	fmt.Fprintf(f.Writer, "✓ configuration valid (backend %s, environment %s)\n", cfg.Backend, cfg.EntityEnvironment())
	return nil
}
