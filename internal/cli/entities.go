package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/configstore/internal/model"
)

// EntityView is the printed form of an entity version.
type EntityView struct {
	ID       string           `json:"id"`
	Type     model.EntityType `json:"type"`
	Name     string           `json:"name"`
	Location string           `json:"location"`
	Version  string           `json:"version"`
	Logical  string           `json:"logical_version"`
	Patch    int              `json:"patch"`
	Patches  []int            `json:"patches"`
	Items    []string         `json:"items,omitempty"`
	Filtered []string         `json:"filtered,omitempty"`
}

func viewOf(info *model.EntityInfo) EntityView {
	history := info.History()
	patches := make([]int, len(history))
	for i, v := range history {
		patches[i] = v.PatchVersion()
	}
	items := info.Items()
	names := make([]string, len(items))
	for i, item := range items {
		names[i] = item.Name
	}
	return EntityView{
		ID:       info.ID(),
		Type:     info.Type(),
		Name:     info.Name(),
		Location: info.LocationPrefix(),
		Version:  info.Version(),
		Logical:  info.PatchVersionString(),
		Patch:    info.PatchVersion(),
		Patches:  patches,
		Items:    names,
		Filtered: info.FilteredItemNames(),
	}
}

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Types []string
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the latest version of every entity",
		Long: `Scan the store once and list the latest version of every entity,
ordered by location.

Examples:
  configstore list
  configstore list --type policy --type access
  configstore list --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, cmd)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.Types, "type", "t", nil, "entity types to list (policy|access|pip)")
	return cmd
}

func runList(opts *ListOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	types, err := parseTypes(opts.Types)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, err)
	}

	c, err := opts.openClient(cmd, f)
	if err != nil {
		return err
	}
	defer c.Close()

	infos, err := c.EntityInfos(cmd.Context(), types...)
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeScan, err)
	}
	f.VerboseLog("scanned %d entities", len(infos))

	views := make([]EntityView, len(infos))
	for i, info := range infos {
		views[i] = viewOf(info)
	}
	if f.JSON() {
		return f.Success(views)
	}
	return writeEntityTable(f.Writer, views)
}

func writeEntityTable(w io.Writer, views []EntityView) error {
	if len(views) == 0 {
		_, err := fmt.Fprintln(w, "No entities found.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tID\tPATCH\tVERSION\tLOCATION")
	for _, v := range views {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", v.Type, v.ID, v.Patch, v.Version, v.Location)
	}
	return tw.Flush()
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Load one entity and print its content",
		Long: `Load the latest version of one entity and print its metadata,
its activation status, and the items it is built from.

Examples:
  configstore show payments/cards/limits/1.0
  configstore show payments/cards/limits/1/access-control --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

// EntityDetail is an EntityView with loaded content.
type EntityDetail struct {
	EntityView
	Activation     model.EntityActivationStatus `json:"activation,omitempty"`
	CompileVersion int                          `json:"compile_version,omitempty"`
	PolicyType     string                       `json:"policy_type,omitempty"`
	Document       string                       `json:"document,omitempty"`
	Route          string                       `json:"route,omitempty"`
}

func runShow(opts *RootOptions, id string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	c, err := opts.openClient(cmd, f)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx := cmd.Context()
	infos, err := c.EntityInfos(ctx)
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeScan, err)
	}
	var info *model.EntityInfo
	for _, candidate := range infos {
		if candidate.ID() == id {
			info = candidate
			break
		}
	}
	if info == nil {
		return f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Errorf("no entity with id %q", id))
	}

	entity, err := c.Entity(ctx, info)
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeScan, err)
	}

	detail := EntityDetail{EntityView: viewOf(info)}
	switch e := entity.(type) {
	case *model.Policy:
		detail.Activation = e.ActivationStatus
		detail.CompileVersion = e.CompileVersion
		detail.PolicyType = e.PolicyType
	case *model.Access:
		detail.Document = e.Document
	case *model.Pip:
		detail.Route = e.Route
	}

	if f.JSON() {
		return f.Success(detail)
	}
	writeDetail(f.Writer, detail)
	return nil
}

func writeDetail(w io.Writer, d EntityDetail) {
	fmt.Fprintf(w, "%s %s\n", d.Type, d.ID)
	fmt.Fprintf(w, "  location:  %s\n", d.Location)
	fmt.Fprintf(w, "  version:   %s (%s)\n", d.Version, d.Logical)
	fmt.Fprintf(w, "  patches:   %v\n", d.Patches)
	if d.Activation != "" {
		fmt.Fprintf(w, "  status:    %s\n", d.Activation)
		fmt.Fprintf(w, "  compile:   %d\n", d.CompileVersion)
		fmt.Fprintf(w, "  type:      %s\n", d.PolicyType)
	}
	if d.Route != "" {
		fmt.Fprintf(w, "  route:     %s\n", d.Route)
	}
	fmt.Fprintln(w, "  items:")
	for _, name := range d.Items {
		fmt.Fprintf(w, "    %s\n", name)
	}
	for _, name := range d.Filtered {
		fmt.Fprintf(w, "    %s (ignored)\n", name)
	}
	if d.Document != "" {
		fmt.Fprintln(w, "  document:")
		fmt.Fprintln(w, d.Document)
	}
}
