package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/configstore/internal/polling"
)

// ScheduleOptions holds flags for the schedule command.
type ScheduleOptions struct {
	*RootOptions
	Count int
}

// Schedule is the printed polling schedule.
type Schedule struct {
	Interval  string      `json:"interval"`
	TimeOfDay string      `json:"time_of_day_utc"`
	Next      []time.Time `json:"next"`
}

// NewScheduleCommand creates the schedule command.
func NewScheduleCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScheduleOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Print the next polling instants",
		Long: `Print the next scheduled scans for the configured polling interval
and time of day. Instants are UTC and lie on the grid through the time
of day spaced by the interval.

Examples:
  configstore schedule
  configstore schedule --count 24 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchedule(opts, cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Count, "count", "n", 5, "number of instants to print")
	return cmd
}

func runSchedule(opts *ScheduleOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	if opts.Count < 1 {
		return f.Fail(ExitCommandError, ErrCodeConfig, fmt.Errorf("count must be positive, got %d", opts.Count))
	}

	cfg, err := opts.loadConfig()
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeConfig, err)
	}
	if !cfg.Enabled || !cfg.Polling.Enabled {
		return f.Success("Polling is disabled.")
	}
	pc, err := cfg.PollingConfiguration()
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeConfig, err)
	}

	next := polling.FirstPollTime(pc.Interval, pc.TimeOfDay, opts.clock().Now())
	s := Schedule{
		Interval:  polling.FormatDuration(pc.Interval),
		TimeOfDay: pc.TimeOfDay.String(),
		Next:      make([]time.Time, opts.Count),
	}
	for i := range opts.Count {
		s.Next[i] = next.Add(time.Duration(i) * pc.Interval)
	}

	if f.JSON() {
		return f.Success(s)
	}
	fmt.Fprintf(f.Writer, "every %s through %s UTC\n", s.Interval, s.TimeOfDay)
	for _, t := range s.Next {
		fmt.Fprintf(f.Writer, "  %s\n", t.Format(time.RFC3339))
	}
	return nil
}
