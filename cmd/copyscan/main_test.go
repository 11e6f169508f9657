package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kdimtricp/copyscan/internal/patterns"
	"github.com/kdimtricp/copyscan/internal/session"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("COPYSCAN_LOG_LEVEL", "error")

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "none.toml")}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestScan_Static(t *testing.T) {
	out, err := execute(t, "scan", "holiday.mp4", "--seed", "3")
	require.NoError(t, err)

	assert.Contains(t, out, "File: holiday.mp4")
	assert.Contains(t, out, "Risk Level: ")
	assert.Contains(t, out, "Recommendation: ")
}

func TestScan_StaticIsReproducible(t *testing.T) {
	first, err := execute(t, "scan", "holiday.mp4", "--seed", "11", "--report")
	require.NoError(t, err)
	second, err := execute(t, "scan", "holiday.mp4", "--seed", "11", "--report")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestScan_CrowdsourcedReport(t *testing.T) {
	out, err := execute(t, "scan", "My_OfficialTrailer_Copy.mp4",
		"--variant", "crowdsourced",
		"--reference", "OfficialTrailer.mp4",
		"--seed", "5",
		"--report")
	require.NoError(t, err)

	assert.Contains(t, out, "Copyright Analysis Report\n\nFile: My_OfficialTrailer_Copy.mp4\n")
	assert.Contains(t, out, "- [metadata] Metadata matches learned keywords: officialtrailer (confidence 80%)")
}

func TestScan_CrowdsourcedNeedsReferences(t *testing.T) {
	_, err := execute(t, "scan", "clip.mp4", "--variant", "crowdsourced")
	assert.ErrorIs(t, err, session.ErrNoReferences)
}

func TestScan_RejectsNonVideo(t *testing.T) {
	_, err := execute(t, "scan", "document.pdf")
	assert.ErrorIs(t, err, patterns.ErrNotVideo)

	_, err = execute(t, "scan", "clip.mp4", "--variant", "crowdsourced", "--reference", "notes.txt")
	assert.ErrorIs(t, err, patterns.ErrNotVideo)
}

func TestScan_UnknownVariant(t *testing.T) {
	_, err := execute(t, "scan", "clip.mp4", "--variant", "psychic")
	assert.ErrorContains(t, err, "unknown variant")
}

func TestPatternsCommand(t *testing.T) {
	out, err := execute(t, "patterns")
	require.NoError(t, err)

	assert.Contains(t, out, "Popular Song #1")
	assert.Contains(t, out, "Sports Network")
	assert.Contains(t, out, "licensed-content")
}

func TestMigrateCommand(t *testing.T) {
	t.Setenv("DB_PATH", filepath.Join(t.TempDir(), "refs.db"))

	out, err := execute(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "applied")

	out, err = execute(t, "migrate", "--status")
	require.NoError(t, err)
	assert.Contains(t, out, "reference_videos")
	assert.NotContains(t, out, "pending")
}

func TestConfigCommand(t *testing.T) {
	t.Setenv("PORT", "9191")

	out, err := execute(t, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "port = 9191")
}
