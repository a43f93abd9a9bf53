package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fieldtrace/signalstudio/internal/apperr"
	"github.com/fieldtrace/signalstudio/internal/logger"
)

// ExecutionResult is the run outcome the HTTP boundary reports back.
type ExecutionResult struct {
	Success       bool            `json:"success"`
	Output        string          `json:"output"`
	Error         string          `json:"error,omitempty"`
	ExecutionTime float64         `json:"executionTime"`
	Result        json.RawMessage `json:"result,omitempty"`
}

// Limits bounds a single execution; zero values fall back to defaults.
type Limits struct {
	Timeout  time.Duration
	MaxRSSMB int
}

func (l Limits) withDefaults() Limits {
	if l.Timeout <= 0 {
		l.Timeout = 30 * time.Second
	}
	if l.MaxRSSMB <= 0 {
		l.MaxRSSMB = 256
	}
	return l
}

// pythonInterpreter is overridable in tests.
var pythonInterpreter = "python3"

// Execute validates code, then — if safe — runs it in a child `python3`
// process: resource limits are set first, then the user code is exec'd
// against a restricted-builtins namespace, with stdout/stderr captured
// and a final `{success, output, result}` /
// `{success, output, error}` object written to a dedicated result pipe.
func Execute(ctx context.Context, code string, data map[string]any, limits Limits) (*ExecutionResult, error) {
	limits = limits.withDefaults()

	validation, err := Validate(code)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if !validation.Safe {
		msg := "code is not allowed:"
		for _, e := range validation.Errors {
			msg += "\n  - " + e
		}
		return &ExecutionResult{Success: false, Error: msg}, nil
	}

	dataJSON, err := json.Marshal(data)
	if err != nil {
		return nil, apperr.Validation("injected data is not JSON-serializable")
	}

	dir, err := os.MkdirTemp("", "analysis-*")
	if err != nil {
		return nil, apperr.Internal(err)
	}
	defer os.RemoveAll(dir)

	scriptPath := filepath.Join(dir, "user_code.py")
	if err := os.WriteFile(scriptPath, []byte(code), 0o600); err != nil {
		return nil, apperr.Internal(err)
	}

	driverPath := filepath.Join(dir, "driver.py")
	cpuSeconds := int(limits.Timeout.Seconds()) + 5
	driver := renderDriver(scriptPath, limits.MaxRSSMB, cpuSeconds)
	if err := os.WriteFile(driverPath, []byte(driver), 0o600); err != nil {
		return nil, apperr.Internal(err)
	}

	runCtx, cancel := context.WithTimeout(ctx, limits.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, pythonInterpreter, driverPath)
	cmd.Stdin = bytes.NewReader(dataJSON)
	cmd.Env = []string{"PYTHONDONTWRITEBYTECODE=1"}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	if runCtx.Err() == context.DeadlineExceeded {
		killProcessGroup(cmd)
		logger.Sandbox().Warn().Dur("elapsed", elapsed).Msg("analysis run timed out")
		return &ExecutionResult{
			Success:       false,
			Error:         fmt.Sprintf("Timeout: execution exceeded %s", limits.Timeout),
			ExecutionTime: elapsed.Seconds(),
		}, nil
	}
	if runErr != nil {
		logger.Sandbox().Error().Err(runErr).Str("stderr", stderr.String()).Msg("analysis run failed")
		return &ExecutionResult{
			Success:       false,
			Output:        stdout.String(),
			Error:         "execution failed: " + firstLine(stderr.String()),
			ExecutionTime: elapsed.Seconds(),
		}, nil
	}

	var result ExecutionResult
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		return &ExecutionResult{
			Success:       false,
			Error:         "no result returned by sandbox worker",
			ExecutionTime: elapsed.Seconds(),
		}, nil
	}
	result.ExecutionTime = elapsed.Seconds()
	return &result, nil
}

func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	pgid, err := syscall.Getpgid(cmd.Process.Pid)
	if err != nil {
		_ = cmd.Process.Kill()
		return
	}
	_ = syscall.Kill(-pgid, syscall.SIGTERM)
	time.Sleep(200 * time.Millisecond)
	_ = syscall.Kill(-pgid, syscall.SIGKILL)
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
