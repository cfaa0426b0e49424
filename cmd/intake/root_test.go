package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/intake/internal/config"
	"github.com/agenthands/intake/internal/core"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestIngestAndRun_SQLite(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "intake.db")
	input := filepath.Join(dir, "records.json")
	require.NoError(t, os.WriteFile(input, []byte(`[
		{"id": "a", "from": "john@example.com", "subject": "Name: John Doe Request Type: Billing Issue", "body": "Sub-Request Type: Payment Delay SSN: 123-45-6789", "classification": "request"},
		{"id": "b", "from": "john@example.com", "subject": "Name: John Doe Request Type: Billing Issue", "body": "Sub-Request Type: Payment Delay SSN: 123-45-6789", "classification": "request"}
	]`), 0o644))

	out, err := execute(t, "ingest", input, "--store", "sqlite", "--store-uri", db)
	require.NoError(t, err)
	assert.Contains(t, out, "a\trequest")

	out, err = execute(t, "run", "--store", "sqlite", "--store-uri", db)
	require.NoError(t, err)

	var sum core.RunSummary
	require.NoError(t, json.Unmarshal([]byte(out), &sum))
	assert.Equal(t, 2, sum.Processed)
	assert.Equal(t, 1, sum.Duplicates)
	assert.Equal(t, 2, sum.Assigned)
	assert.Equal(t, 1, sum.Cases)
}

func TestRun_UnknownStage(t *testing.T) {
	_, err := execute(t, "run", "summary", "--store", "memory")
	assert.Error(t, err)
}

func TestRoster(t *testing.T) {
	out, err := execute(t, "roster")
	require.NoError(t, err)

	assert.Contains(t, out, " 1. Alice (#1)")
	assert.Contains(t, out, "Billing Issue: Invoice Discrepancy, Payment Delay, Refund Request")
}

func TestReadRecords_Single(t *testing.T) {
	path := filepath.Join(t.TempDir(), "one.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"id":"x","body":"hi","attachments":["page"]}`), 0o644))

	recs, err := readRecords(path)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, []string{"page"}, recs[0].Attachments)

	_, err = readRecords(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestPrintRoster(t *testing.T) {
	var buf bytes.Buffer
	printRoster(&buf, config.DefaultRoster()[:1])
	assert.Equal(t, " 1. Alice (#1)\n      Billing Issue: Invoice Discrepancy, Payment Delay, Refund Request\n", buf.String())
}
