// Package cli implements the toolrun command-line interface.
package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/petal-labs/toolrun/builtin"
	"github.com/petal-labs/toolrun/core"
	"github.com/petal-labs/toolrun/engine"
	"github.com/petal-labs/toolrun/trace"
)

// Process exit codes.
const (
	exitSuccess    = 0
	exitValidation = 1
	exitRuntime    = 2
	exitInputParse = 4
)

// NewRunCmd creates the "run" subcommand.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <tool>",
		Short: "Invoke a built-in tool through the engine",
		Args:  cobra.ExactArgs(1),
		RunE:  runRun,
	}

	cmd.Flags().StringP("args", "a", "", "Raw argument string (JSON object)")
	cmd.Flags().String("mode", "blocking", "Invocation mode: blocking | suspending")
	cmd.Flags().Bool("trace", false, "Print trace events after the result")

	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
	toolName := strings.TrimSpace(args[0])
	rawArgs, _ := cmd.Flags().GetString("args")
	mode, _ := cmd.Flags().GetString("mode")
	showTrace, _ := cmd.Flags().GetBool("trace")

	eng := engine.New(engine.Config{Registry: builtin.NewRegistry()})

	var result core.ToolResult
	switch mode {
	case "blocking":
		result = eng.RunBlocking(cmd.Context(), toolName, rawArgs)
	case "suspending":
		result = eng.RunSuspending(cmd.Context(), toolName, rawArgs)
	default:
		return exitError(exitInputParse, "unsupported --mode %q (use blocking or suspending)", mode)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return exitError(exitRuntime, "encoding result: %v", err)
	}
	_, _ = cmd.OutOrStdout().Write(append(data, '\n'))

	if showTrace {
		printTrace(cmd, eng.Sink().Events())
	}

	if !result.OK {
		return exitError(exitRuntime, "%s", result.ErrorMessage)
	}
	return nil
}

func printTrace(cmd *cobra.Command, events []trace.Event) {
	for _, ev := range events {
		line := fmt.Sprintf("%4d  %-22s  %s", ev.Seq, ev.Kind, ev.Tool)
		if ev.Attempt > 0 {
			line += fmt.Sprintf("  attempt=%d", ev.Attempt)
		}
		if len(ev.Payload) > 0 {
			if data, err := json.Marshal(ev.Payload); err == nil {
				line += "  " + string(data)
			}
		}
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}
}
