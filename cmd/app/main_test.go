package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
environment: test
engine:
  symbols: [AAPL]
kafka:
  brokers: [localhost:9092]
clickhouse:
  database: fs_test
analytics:
  service_url: http://localhost:8000
`

func run(t *testing.T, args ...string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(testConfig), 0o600))

	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs(append(args, "--config", p))
	require.NoError(t, cmd.Execute())
	return out.String()
}

func TestSchemaCommandPrintsDDL(t *testing.T) {
	out := run(t, "schema")
	assert.Contains(t, out, "CREATE DATABASE IF NOT EXISTS fs_test")
	assert.Contains(t, out, "fs_test.signals")
}

func TestCheckCommand(t *testing.T) {
	out := run(t, "check")
	assert.Contains(t, out, "config ok: env=test symbols=[AAPL]")
}
