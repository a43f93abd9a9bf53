package sandbox

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requirePython(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath(pythonInterpreter); err != nil {
		t.Skip("python3 not available on this host")
	}
}

func TestExecute_RejectsUnsafeCodeWithoutSpawning(t *testing.T) {
	res, err := Execute(context.Background(), "import os\n", nil, Limits{})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "os")
}

func TestExecute_RunsSafeCode(t *testing.T) {
	requirePython(t)
	code := "result = sum([1, 2, 3, 4, 5])\nprint('computed')\n__result__ = result\n"
	res, err := Execute(context.Background(), code, nil, Limits{Timeout: 5 * time.Second})
	require.NoError(t, err)
	assert.True(t, res.Success, res.Error)
	assert.Contains(t, res.Output, "computed")
}

func TestExecute_TimesOutOnInfiniteLoop(t *testing.T) {
	requirePython(t)
	res, err := Execute(context.Background(), "while True:\n    pass\n", nil, Limits{Timeout: 2 * time.Second})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "Timeout")
	assert.LessOrEqual(t, res.ExecutionTime, 5.0)
}
