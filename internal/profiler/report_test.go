package profiler

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWriteReport_CompleteRun(t *testing.T) {
	result := &Result{
		Spawn:                3 * time.Millisecond,
		InitializeResponse:   25 * time.Millisecond,
		InitializedSent:      26 * time.Millisecond,
		FirstDiagnostic:      176 * time.Millisecond,
		FirstFromInitialized: 150 * time.Millisecond,
		AllDiagnosed:         206 * time.Millisecond,
		Complete:             true,
		Diagnostics: []FileDiagnostics{
			{File: "oos.r", Count: 2},
			{File: "collate.r", Count: 0},
		},
	}

	var buf bytes.Buffer
	WriteReport(&buf, result)
	out := buf.String()

	assert.Contains(t, out, "TIMING SUMMARY")
	assert.Contains(t, out, "Process spawn:              3.0ms")
	assert.Contains(t, out, "Initialize response:       25.0ms")
	assert.Contains(t, out, "Initialized sent:          26.0ms")
	assert.Contains(t, out, "First diagnostic:         176.0ms")
	assert.Contains(t, out, "(from initialized):     150.0ms")
	assert.Contains(t, out, "All files diagnosed:      206.0ms")
	assert.Contains(t, out, "Diagnostics by file:")
	assert.Contains(t, out, "  oos.r: 2")
	assert.Contains(t, out, "  collate.r: 0")
}

func TestWriteReport_PartialRun(t *testing.T) {
	result := &Result{
		Spawn:              3 * time.Millisecond,
		InitializeResponse: 25 * time.Millisecond,
		InitializedSent:    26 * time.Millisecond,
	}

	var buf bytes.Buffer
	WriteReport(&buf, result)
	out := buf.String()

	assert.NotContains(t, out, "First diagnostic:")
	assert.NotContains(t, out, "All files diagnosed:")
	assert.Contains(t, out, "Diagnostics by file:")
}
