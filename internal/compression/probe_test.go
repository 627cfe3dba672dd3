package compression

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolatePath keeps a real Ghostscript on the host out of the candidate list.
func isolatePath(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
}

func TestProbeReturnsFirstWorkingCandidate(t *testing.T) {
	isolatePath(t)
	dir := t.TempDir()

	broken := writeScript(t, dir, "broken", "exit 1\n")
	working := writeScript(t, dir, "working", "echo 10.02.1\n")
	later := writeScript(t, dir, "later", "echo 9.50\n")
	missing := filepath.Join(dir, "missing")

	probe := NewGhostscriptProbe("", []string{missing, broken, working, later}, time.Second, testLogger())
	bin, ok := probe.Probe(context.Background())

	require.True(t, ok)
	assert.Equal(t, working, bin.Path)
	assert.Equal(t, "10.02.1", bin.Version)
}

func TestProbeNothingFound(t *testing.T) {
	isolatePath(t)
	dir := t.TempDir()

	notExec := filepath.Join(dir, "gs")
	require.NoError(t, os.WriteFile(notExec, []byte("#!/bin/sh\necho 1\n"), 0644))

	probe := NewGhostscriptProbe("", []string{notExec, dir, filepath.Join(dir, "nope")}, time.Second, testLogger())
	bin, ok := probe.Probe(context.Background())

	assert.False(t, ok)
	assert.Empty(t, bin.Path)
}

func TestProbeCandidateTimeout(t *testing.T) {
	isolatePath(t)
	dir := t.TempDir()

	hang := writeScript(t, dir, "hang", "while :; do :; done\n")
	working := writeScript(t, dir, "working", "echo 10.0\n")

	probe := NewGhostscriptProbe("", []string{hang, working}, 200*time.Millisecond, testLogger())

	start := time.Now()
	bin, ok := probe.Probe(context.Background())

	require.True(t, ok)
	assert.Equal(t, working, bin.Path)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestProbeConfiguredPathFirst(t *testing.T) {
	isolatePath(t)
	dir := t.TempDir()

	configured := writeScript(t, dir, "custom-gs", "echo 10.03\n")
	other := writeScript(t, dir, "gs", "echo 9.00\n")

	probe := NewGhostscriptProbe(configured, []string{other, configured}, time.Second, testLogger())
	assert.Equal(t, []string{configured, other}, probe.Candidates())

	bin, ok := probe.Probe(context.Background())
	require.True(t, ok)
	assert.Equal(t, configured, bin.Path)
}

func TestProbeDefaultCandidates(t *testing.T) {
	isolatePath(t)
	probe := NewGhostscriptProbe("", nil, 0, testLogger())
	assert.Equal(t, DefaultGhostscriptCandidates, probe.Candidates())
}
