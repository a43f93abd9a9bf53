package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_SafeCode(t *testing.T) {
	res, err := Validate("import numpy as np\nresult = np.mean([1, 2, 3])\n__result__ = result\n")
	require.NoError(t, err)
	assert.True(t, res.Safe, res.Errors)
	assert.Contains(t, res.Imports, "numpy")
}

func TestValidate_RejectsDisallowedImport(t *testing.T) {
	res, err := Validate("import os\n")
	require.NoError(t, err)
	assert.False(t, res.Safe)
	assert.Contains(t, res.Errors[0], "os")
}

func TestValidate_RejectsOpen(t *testing.T) {
	res, err := Validate("open('/etc/passwd')\n")
	require.NoError(t, err)
	assert.False(t, res.Safe)
}

func TestValidate_RejectsWithOpen(t *testing.T) {
	res, err := Validate("with open('x') as f:\n    pass\n")
	require.NoError(t, err)
	assert.False(t, res.Safe)
}

func TestValidate_RejectsEval(t *testing.T) {
	res, err := Validate("eval('1+1')\n")
	require.NoError(t, err)
	assert.False(t, res.Safe)
}

func TestValidate_RejectsDunderImport(t *testing.T) {
	res, err := Validate("__import__('os')\n")
	require.NoError(t, err)
	assert.False(t, res.Safe)
}

func TestValidate_RejectsClassIntrospection(t *testing.T) {
	res, err := Validate("[].__class__.__bases__\n")
	require.NoError(t, err)
	assert.False(t, res.Safe)
}

func TestValidate_RejectsGlobals(t *testing.T) {
	res, err := Validate("globals()\n")
	require.NoError(t, err)
	assert.False(t, res.Safe)
}

func TestValidate_AllowsJSONLoadsDumps(t *testing.T) {
	res, err := Validate("import json\njson.loads('{}')\n")
	require.NoError(t, err)
	assert.True(t, res.Safe, res.Errors)
}

func TestValidate_RejectsGlobalStatement(t *testing.T) {
	res, err := Validate("def f():\n    global x\n    x = 1\n")
	require.NoError(t, err)
	assert.False(t, res.Safe)
}

func TestValidate_RejectsAsyncDef(t *testing.T) {
	res, err := Validate("async def f():\n    pass\n")
	require.NoError(t, err)
	assert.False(t, res.Safe)
}

func TestValidate_RejectsOversizedCode(t *testing.T) {
	huge := make([]byte, MaxCodeLength+1)
	for i := range huge {
		huge[i] = 'x'
	}
	res, err := Validate(string(huge))
	require.NoError(t, err)
	assert.False(t, res.Safe)
}

func TestValidate_RejectsSyntaxError(t *testing.T) {
	res, err := Validate("def f(:\n")
	require.NoError(t, err)
	assert.False(t, res.Safe)
}
