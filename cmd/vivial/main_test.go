package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tj-smith47/vivialconnect-go/config"
	"github.com/tj-smith47/vivialconnect-go/vivialtest"
)

// setup starts a fake API and points the environment at it.
func setup(t *testing.T) *vivialtest.Server {
	t.Helper()
	s := vivialtest.NewServer(t)
	t.Setenv("VIVIAL_CONNECT_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("VIVIAL_CONNECT_API_KEY", s.APIKey)
	t.Setenv("VIVIAL_CONNECT_API_SECRET", s.APISecret)
	t.Setenv("VIVIAL_CONNECT_ACCOUNT_ID", s.AccountID)
	t.Setenv("VIVIAL_CONNECT_BASE_URL", s.BaseURL())
	return s
}

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, strings.NewReader(stdin), &stdout, &stderr)
	return stdout.String(), err
}

func TestSendAndList(t *testing.T) {
	s := setup(t)

	out, err := runCLI(t, "", "send", "--from", "+13025550199", "--to", "+13025550100", "--body", "hi there")
	require.NoError(t, err)
	assert.Contains(t, out, "accepted")
	require.Len(t, s.Rows("messages"), 1)

	out, err = runCLI(t, "", "messages", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "+13025550199 -> +13025550100")
	assert.Contains(t, out, "hi there")

	out, err = runCLI(t, "", "count", "messages")
	require.NoError(t, err)
	assert.Equal(t, "1\n", out)
}

func TestSendBulk(t *testing.T) {
	s := setup(t)

	out, err := runCLI(t, "", "send", "--from", "+13025550199", "--to", "+13025550101,+13025550102", "--body", "all")
	require.NoError(t, err)
	assert.Contains(t, out, "queued for 2 recipients")
	assert.Len(t, s.Rows("messages"), 2)
}

func TestSendRequiresRecipient(t *testing.T) {
	setup(t)
	_, err := runCLI(t, "", "send", "--body", "nobody")
	assert.EqualError(t, err, "--to is required")
}

func TestAvailableAndBuy(t *testing.T) {
	s := setup(t)

	out, err := runCLI(t, "", "available", "--area-code", "415", "--limit", "2")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "+14155550100"))

	_, err = runCLI(t, "", "buy", "+14155550100")
	require.NoError(t, err)
	rows := s.Rows("numbers")
	require.Len(t, rows, 1)
	assert.Equal(t, "+14155550100", rows[0]["phone_number"])

	out, err = runCLI(t, "", "numbers")
	require.NoError(t, err)
	assert.Contains(t, out, "+14155550100\tlocal")
}

func TestDump(t *testing.T) {
	setup(t)

	out, err := runCLI(t, "", "--dump", "lookup", "+13025550100")
	require.NoError(t, err)
	assert.Contains(t, out, "map[string]interface {}")
	assert.Contains(t, out, "Fake Wireless")
}

func TestStatus(t *testing.T) {
	setup(t)

	out, err := runCLI(t, "", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "status: active")
}

func TestConfigure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	out, err := runCLI(t, "key-1\nsecret-1\n777\n", "--config", path, "--profile", "work", "configure")
	require.NoError(t, err)
	assert.Contains(t, out, `saved profile "work"`)

	f, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "work", f.Default)
	p, err := f.Profile("")
	require.NoError(t, err)
	assert.Equal(t, config.Profile{APIKey: "key-1", APISecret: "secret-1", AccountID: "777"}, p)
}

func TestUnknownCommand(t *testing.T) {
	_, err := runCLI(t, "", "frobnicate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")
}

func TestMissingCredentials(t *testing.T) {
	t.Setenv("VIVIAL_CONNECT_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("VIVIAL_CONNECT_API_KEY", "")
	t.Setenv("VIVIAL_CONNECT_API_SECRET", "")
	t.Setenv("VIVIAL_CONNECT_ACCOUNT_ID", "")

	_, err := runCLI(t, "", "count", "messages")
	assert.ErrorIs(t, err, config.ErrNoProfile)
}
