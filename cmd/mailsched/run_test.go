package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T) (cfgPath, dir string) {
	t.Helper()
	dir = t.TempDir()
	cfgPath = filepath.Join(dir, "config.yaml")
	body := fmt.Sprintf(`logging:
  level: error
  console: false
  file:
    enabled: false
store:
  path: %s
`, filepath.Join(dir, "email_tasks.json"))
	require.NoError(t, os.WriteFile(cfgPath, []byte(body), 0o644))
	return cfgPath, dir
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code := run(context.Background(), args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestUsageErrors(t *testing.T) {
	t.Parallel()
	cases := map[string][]string{
		"exclusive":     {"-list", "-remove", "task_1"},
		"missing flags": {"-add", "5", "-unit", "minutes"},
		"bad unit":      {"-add", "5", "-unit", "weeks", "-email-list", "a.csv", "-message-file", "m.txt", "-subject", "s"},
		"zero interval": {"-add", "0", "-unit", "minutes", "-email-list", "a.csv", "-message-file", "m.txt", "-subject", "s"},
		"stray args":    {"-list", "extra"},
		"unknown flag":  {"-nope"},
	}
	for name, args := range cases {
		args := args
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			code, _, _ := runCLI(t, args...)
			require.Equal(t, exitUsage, code)
		})
	}
}

func TestAddListRemove(t *testing.T) {
	cfg, dir := writeConfig(t)
	env := filepath.Join(dir, ".env")

	code, out, _ := runCLI(t, "-config", cfg, "-env", env, "-list")
	require.Equal(t, exitOK, code)
	require.Contains(t, out, "No tasks scheduled.")

	add := []string{"-config", cfg, "-env", env, "-add", "10", "-unit", "minutes",
		"-email-list", "people.csv", "-message-file", "msg.txt", "-subject", "Weekly",
		"-attachment", "a.pdf", "-attachment", "b.pdf"}
	code, out, _ = runCLI(t, add...)
	require.Equal(t, exitOK, code)
	require.Contains(t, out, "Task 'task_1' added successfully.")

	code, out, _ = runCLI(t, add...)
	require.Equal(t, exitOK, code)
	require.Contains(t, out, "already exists")

	code, out, _ = runCLI(t, "-config", cfg, "-env", env, "-list")
	require.Equal(t, exitOK, code)
	require.Contains(t, out, "task_1")
	require.Contains(t, out, "every 10 minutes")
	require.Contains(t, out, "Weekly")

	code, out, _ = runCLI(t, "-config", cfg, "-env", env, "-remove", "task_1")
	require.Equal(t, exitOK, code)
	require.Contains(t, out, "Task 'task_1' removed")

	code, out, _ = runCLI(t, "-config", cfg, "-env", env, "-remove", "task_1")
	require.Equal(t, exitOK, code)
	require.Contains(t, out, "Task 'task_1' not found.")
}

func TestBadConfigExitsOne(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfg := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("bogus_section: 1\n"), 0o644))

	code, _, errOut := runCLI(t, "-config", cfg, "-env", filepath.Join(dir, ".env"), "-list")
	require.Equal(t, exitError, code)
	require.Contains(t, errOut, "fatal")
}
