package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/kilianp07/grantvest/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cfgPath, logLevel, inputPath, workers = "", "", defaultInput, 0
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "grantvest.yaml")
	data := "report:\n  sinks:\n    - type: json\n      conf:\n        path: " + filepath.Join(dir, "out.json") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestConfigValidate(t *testing.T) {
	out, err := execute(t, "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "configuration OK")
}

func TestConfigShow(t *testing.T) {
	out, err := execute(t, "config", "show", "--workers", "3")
	require.NoError(t, err)

	var cfg config.Config
	require.NoError(t, yaml.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, 30, cfg.Vesting.CliffPeriodDays)
	assert.Len(t, cfg.Vesting.Milestones, 4)
}

func TestConfigValidate_BadLevel(t *testing.T) {
	_, err := execute(t, "config", "validate", "--log-level", "chatty")
	assert.Error(t, err)
}

func TestHybridCommand(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "fund.csv")
	require.NoError(t, os.WriteFile(input, []byte("Proposal,REQUESTED $,STATUS\nRust SDK,\"$10,000\",FUNDED\n"), 0o644))

	out, err := execute(t, "hybrid", "-c", writeConfig(t, dir), "-i", input, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "HYBRID VESTING SUMMARY")
	assert.Contains(t, out, "Project: Rust SDK")
	assert.FileExists(t, filepath.Join(dir, "out.json"))
}

func TestExampleCommand(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "fund.csv")
	require.NoError(t, os.WriteFile(input, []byte("Proposal,REQUESTED $,STATUS\nWallet,$100,FUNDED\nExplorer,$200,FUNDED\n"), 0o644))

	out, err := execute(t, "example", "Wallet", "-c", writeConfig(t, dir), "-i", input, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "Project: Wallet")
	assert.NoFileExists(t, filepath.Join(dir, "out.json"))
}

func TestHybridCommand_MissingInput(t *testing.T) {
	dir := t.TempDir()
	_, err := execute(t, "flat", "-c", writeConfig(t, dir), "-i", filepath.Join(dir, "missing.csv"), "--log-level", "error")
	assert.Error(t, err)
}
