package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRunCommandBlocking(t *testing.T) {
	out, err := execute(t, NewRunCmd(), "echo", "--args", `{"message":"hi","upper":true}`)
	if err != nil {
		t.Fatalf("run error = %v\n%s", err, out)
	}

	var result struct {
		ToolName string
		OK       bool
		Output   map[string]any
	}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("output not JSON: %v\n%s", err, out)
	}
	if !result.OK || result.ToolName != "echo" {
		t.Errorf("result = %+v", result)
	}
	if result.Output["message"] != "HI" {
		t.Errorf("Output = %v", result.Output)
	}
}

func TestRunCommandSuspendingMode(t *testing.T) {
	out, err := execute(t, NewRunCmd(), "sleep", "--mode", "suspending", "--args", `{"duration_ms":1}`)
	if err != nil {
		t.Fatalf("run error = %v\n%s", err, out)
	}
	if !strings.Contains(out, "slept_ms") {
		t.Errorf("output = %s", out)
	}
}

func TestRunCommandUnknownToolExitsNonzero(t *testing.T) {
	_, err := execute(t, NewRunCmd(), "ghost")
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("error = %v, want *ExitError", err)
	}
	if exitErr.Code != exitRuntime {
		t.Errorf("Code = %d", exitErr.Code)
	}
	if exitErr.Message != "unknown_tool" {
		t.Errorf("Message = %q", exitErr.Message)
	}
}

func TestRunCommandBadMode(t *testing.T) {
	_, err := execute(t, NewRunCmd(), "echo", "--mode", "parallel")
	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != exitInputParse {
		t.Errorf("error = %v", err)
	}
}

func TestRunCommandTraceFlag(t *testing.T) {
	out, err := execute(t, NewRunCmd(), "echo", "--args", `{"message":"trace probe"}`, "--trace")
	if err != nil {
		t.Fatalf("run error = %v\n%s", err, out)
	}
	for _, kind := range []string{"tool.resolve.ok", "cache.miss", "tool.invoke.success", "cache.store"} {
		if !strings.Contains(out, kind) {
			t.Errorf("trace output missing %q:\n%s", kind, out)
		}
	}
}

func TestToolsCommandListsBuiltins(t *testing.T) {
	out, err := execute(t, NewToolsCmd())
	if err != nil {
		t.Fatalf("tools error = %v", err)
	}
	for _, name := range []string{"echo", "sum", "sleep", "template_render"} {
		if !strings.Contains(out, name) {
			t.Errorf("listing missing %q:\n%s", name, out)
		}
	}
	if !strings.Contains(out, "message:string") {
		t.Errorf("listing missing echo schema:\n%s", out)
	}
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "good.yaml")
	if err := os.WriteFile(good, []byte("name: greet\nschema:\n  who: string\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("name: broken\nschema:\n  who: number\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, NewValidateCmd(), good)
	if err != nil {
		t.Fatalf("validate error = %v\n%s", err, out)
	}
	if !strings.Contains(out, "ok (greet)") {
		t.Errorf("output = %s", out)
	}

	out, err = execute(t, NewValidateCmd(), good, bad)
	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != exitValidation {
		t.Fatalf("error = %v", err)
	}
	if !strings.Contains(out, "unknown type") {
		t.Errorf("output = %s", out)
	}
}

func TestScheduleCommandOnce(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "toolrun.yaml")
	content := "schedules:\n  - name: hi\n    tool: echo\n    args: '{\"message\":\"hi\"}'\n    cron: \"* * * * *\"\n"
	if err := os.WriteFile(cfg, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, NewScheduleCmd(), "--config", cfg, "--once")
	if err != nil {
		t.Fatalf("schedule error = %v\n%s", err, out)
	}
	if !strings.Contains(out, "hi: ok") {
		t.Errorf("output = %s", out)
	}
}

func TestScheduleCommandRejectsUnknownTool(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "toolrun.yaml")
	content := "schedules:\n  - tool: ghost\n    cron: \"* * * * *\"\n"
	if err := os.WriteFile(cfg, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := execute(t, NewScheduleCmd(), "--config", cfg, "--once")
	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != exitValidation {
		t.Errorf("error = %v", err)
	}
}
