package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cliSpec = `
scenario_id: loan.approval
version: 1.0.0
block_on_indeterminate: true
conditions:
  - id: age_check
    evidence_id: applicant.age
    provider_id: static
    operator: greater_than_or_equal
    expected: {kind: number, value: "18"}
    required: true
requirement: {condition: age_check}
limits:
  provider_timeout_ms: 200
  global_budget_ms: 2000
`

const cliFacts = `{"applicant.age": {"kind": "number", "value": "21"}}`

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestRunUsage(t *testing.T) {
	var out, errOut bytes.Buffer
	assert.Equal(t, 2, Run([]string{"verdict"}, &out, &errOut))
	assert.Contains(t, errOut.String(), "usage")

	assert.Equal(t, 2, Run([]string{"verdict", "frobnicate"}, &out, &errOut))
	assert.Equal(t, 0, Run([]string{"verdict", "help"}, &out, &errOut))
}

func TestEvalVerifyRoundTrip(t *testing.T) {
	t.Setenv("VERDICT_STORE", "memory")
	t.Setenv("VERDICT_REDIS_ADDR", "")
	specPath := writeTemp(t, "spec.yaml", cliSpec)
	factsPath := writeTemp(t, "facts.json", cliFacts)
	packPath := filepath.Join(t.TempDir(), "pack.json")

	var out, errOut bytes.Buffer
	code := Run([]string{"verdict", "eval",
		"-spec", specPath, "-facts", factsPath, "-pack-out", packPath}, &out, &errOut)
	require.Equal(t, 0, code, errOut.String())

	var res map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.Equal(t, "decided", res["state"])
	assert.Equal(t, "true", res["outcome"])
	assert.Equal(t, float64(4), res["steps"])

	out.Reset()
	code = Run([]string{"verdict", "verify", "-pack", packPath}, &out, &errOut)
	require.Equal(t, 0, code, errOut.String())
	assert.Contains(t, out.String(), "OK")
}

func TestVerifyDetectsTampering(t *testing.T) {
	t.Setenv("VERDICT_STORE", "memory")
	t.Setenv("VERDICT_REDIS_ADDR", "")
	specPath := writeTemp(t, "spec.yaml", cliSpec)
	factsPath := writeTemp(t, "facts.json", cliFacts)
	packPath := filepath.Join(t.TempDir(), "pack.json")

	var out, errOut bytes.Buffer
	code := Run([]string{"verdict", "eval",
		"-spec", specPath, "-facts", factsPath, "-pack-out", packPath}, &out, &errOut)
	require.Equal(t, 0, code, errOut.String())

	raw, err := os.ReadFile(packPath)
	require.NoError(t, err)
	tampered := bytes.Replace(raw, []byte(`"21"`), []byte(`"12"`), 1)
	require.NotEqual(t, raw, tampered)
	require.NoError(t, os.WriteFile(packPath, tampered, 0600))

	out.Reset()
	code = Run([]string{"verdict", "verify", "-pack", packPath}, &out, &errOut)
	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "FAIL")
}

func TestEvalS3BackendRequiresBucket(t *testing.T) {
	t.Setenv("VERDICT_STORE", "s3")
	t.Setenv("VERDICT_S3_BUCKET", "")
	specPath := writeTemp(t, "spec.yaml", cliSpec)
	factsPath := writeTemp(t, "facts.json", cliFacts)

	var out, errOut bytes.Buffer
	code := Run([]string{"verdict", "eval", "-spec", specPath, "-facts", factsPath}, &out, &errOut)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut.String(), "VERDICT_S3_BUCKET")
}

func TestEvalUnreachableBrokerFails(t *testing.T) {
	t.Setenv("VERDICT_STORE", "memory")
	t.Setenv("VERDICT_REDIS_ADDR", "127.0.0.1:1")
	specPath := writeTemp(t, "spec.yaml", cliSpec)
	factsPath := writeTemp(t, "facts.json", cliFacts)

	var out, errOut bytes.Buffer
	code := Run([]string{"verdict", "eval", "-spec", specPath, "-facts", factsPath}, &out, &errOut)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut.String(), "redis")
}

func TestExplainPrintsPlan(t *testing.T) {
	t.Setenv("VERDICT_STORE", "memory")
	t.Setenv("VERDICT_REDIS_ADDR", "")
	specPath := writeTemp(t, "spec.yaml", cliSpec)
	factsPath := writeTemp(t, "facts.json", cliFacts)

	var out, errOut bytes.Buffer
	code := Run([]string{"verdict", "explain", "-spec", specPath, "-facts", factsPath}, &out, &errOut)
	require.Equal(t, 0, code, errOut.String())
	assert.Contains(t, out.String(), "decided")
	assert.Contains(t, out.String(), "age_check")
}
