package stdiosupervisor

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func intp(v int) *int { return &v }

func TestEvaluate_BoundaryTable(t *testing.T) {
	assert.True(t, Evaluate(ModeAuto, true, intp(1)))
	assert.False(t, Evaluate(ModeAuto, true, intp(0)))
	assert.False(t, Evaluate(ModeAuto, false, intp(1)))
	assert.True(t, Evaluate(ModeAlways, true, intp(0)))
	assert.False(t, Evaluate(ModeSilent, true, intp(2)))
}

func TestEvaluate_AutoWithUnknownExitCode(t *testing.T) {
	assert.False(t, Evaluate(ModeAuto, true, nil))
}

func TestSurface_AddsTrailingNewlineOnlyWhenMissing(t *testing.T) {
	var buf bytes.Buffer
	Surface(&buf, "mytool", []string{"line one", "line two\n"})
	out := buf.String()
	assert.Contains(t, out, "--- stderr: mytool ---\n")
	assert.Contains(t, out, "line oneline two\n")

	buf.Reset()
	Surface(&buf, "mytool", []string{"no newline"})
	assert.True(t, bytes.HasSuffix(buf.Bytes(), []byte("no newline\n")))
}

func TestSurface_EmptyStderrNoTrailingNewlineAdded(t *testing.T) {
	var buf bytes.Buffer
	Surface(&buf, "mytool", nil)
	assert.Equal(t, "--- stderr: mytool ---\n", buf.String())
}
