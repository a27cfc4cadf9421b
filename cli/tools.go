package cli

import (
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/petal-labs/toolrun/builtin"
)

// NewToolsCmd creates the "tools" subcommand listing built-in tools.
func NewToolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List built-in tools and their argument schemas",
		RunE:  runTools,
	}
}

func runTools(cmd *cobra.Command, args []string) error {
	writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
	fmt.Fprintln(writer, "NAME\tSCHEMA\tDEFAULTS\tRETRIES\tTIMEOUT\tASYNC")

	for _, tool := range builtin.Tools() {
		schema := "-"
		if len(tool.Spec.Schema) > 0 {
			fields := make([]string, 0, len(tool.Spec.Schema))
			for field, typeName := range tool.Spec.Schema {
				fields = append(fields, field+":"+typeName)
			}
			slices.Sort(fields)
			schema = strings.Join(fields, ",")
		}

		defaults := "-"
		if len(tool.Spec.Defaults) > 0 {
			fields := make([]string, 0, len(tool.Spec.Defaults))
			for field, value := range tool.Spec.Defaults {
				fields = append(fields, fmt.Sprintf("%s=%v", field, value))
			}
			slices.Sort(fields)
			defaults = strings.Join(fields, ",")
		}

		timeout := "-"
		if tool.Timeout > 0 {
			timeout = tool.Timeout.Round(time.Millisecond).String()
		}

		fmt.Fprintf(writer, "%s\t%s\t%s\t%d\t%s\t%t\n",
			tool.Name, schema, defaults, tool.MaxRetries, timeout, tool.AsyncFn != nil)
	}
	return writer.Flush()
}
