package gitcore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

var execCommandContext = exec.CommandContext

// commandError carries the trimmed stderr of a failed git or gh call.
type commandError struct {
	name     string
	args     []string
	exitCode int
	stderr   string
}

func (e *commandError) Error() string {
	sub := ""
	if len(e.args) > 0 {
		sub = " " + e.args[0]
	}
	if e.stderr != "" {
		return fmt.Sprintf("%s%s failed: %s", e.name, sub, e.stderr)
	}
	return fmt.Sprintf("%s%s failed with exit code %d", e.name, sub, e.exitCode)
}

// run executes name in dir and returns stdout. Exit codes listed in okCodes
// (besides 0) are not treated as failures.
func run(ctx context.Context, dir, name string, args []string, okCodes ...int) (string, error) {
	cmd := execCommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = append(cmd.Environ(), "GIT_TERMINAL_PROMPT=0", "GH_PROMPT_DISABLED=1", "NO_COLOR=1")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return stdout.String(), nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		for _, ok := range okCodes {
			if code == ok {
				return stdout.String(), nil
			}
		}
		return "", &commandError{name: name, args: args, exitCode: code, stderr: strings.TrimSpace(stderr.String())}
	}
	if errors.Is(err, exec.ErrNotFound) {
		return "", fmt.Errorf("%s is not installed or not on PATH", name)
	}
	return "", fmt.Errorf("running %s: %w", name, err)
}

func git(ctx context.Context, dir string, args ...string) (string, error) {
	return run(ctx, dir, "git", args)
}

func gh(ctx context.Context, dir string, args ...string) (string, error) {
	return run(ctx, dir, "gh", args)
}

// validateRef rejects names that git would read as options.
func validateRef(kind, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return fmt.Errorf("%s is required", kind)
	}
	if strings.HasPrefix(value, "-") {
		return fmt.Errorf("invalid %s: %s", kind, value)
	}
	return nil
}
