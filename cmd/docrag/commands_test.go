package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/config"
	"docrag/internal/domain"
)

func writeConfig(t *testing.T) (cfgPath, corpusDir string) {
	t.Helper()
	root := t.TempDir()
	corpusDir = filepath.Join(root, "corpus")
	require.NoError(t, os.MkdirAll(corpusDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(corpusDir, "aml_policy.txt"),
		[]byte("Money laundering is the process of disguising the origin of illegal funds. Banks must report suspicious transfers."), 0o644))

	cfg := config.Default()
	cfg.Corpus.Dir = corpusDir
	cfg.Corpus.IndexDir = filepath.Join(root, "index")
	cfg.Log.Level = "error"
	cfgPath = filepath.Join(root, "config.yaml")
	require.NoError(t, config.Save(cfgPath, cfg))
	return cfgPath, corpusDir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := rootCMD()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCLI_StatusBeforeBuild(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	out, err := run(t, "--config", cfgPath, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "No index found")
}

func TestCLI_AskBeforeBuild(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	_, err := run(t, "--config", cfgPath, "ask", "What is money laundering?")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "build the index")
}

func TestCLI_BuildStatusAsk(t *testing.T) {
	cfgPath, _ := writeConfig(t)

	out, err := run(t, "--config", cfgPath, "build")
	require.NoError(t, err)
	assert.Contains(t, out, "Indexed 1 documents")

	out, err = run(t, "--config", cfgPath, "status", "--json")
	require.NoError(t, err)
	var st domain.Status
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.True(t, st.Indexed)
	assert.Equal(t, 1, st.NumDocuments)

	out, err = run(t, "--config", cfgPath, "ask", "--json", "What is money laundering?")
	require.NoError(t, err)
	var ans askOutput
	require.NoError(t, json.Unmarshal([]byte(out), &ans))
	assert.NotEmpty(t, ans.Answer)
	require.NotEmpty(t, ans.Sources)
	assert.Equal(t, "aml_policy.txt", ans.Sources[0].Source)
}

func TestCLI_BuildEmptyDirectory(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	_, err := run(t, "--config", cfgPath, "build", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no source files found")
}

type countingCloser struct{ closed int }

func (c *countingCloser) Close() error {
	c.closed++
	return nil
}

func TestApp_CloseReleasesBackends(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	a, err := newApp(&globalOptions{configPath: cfgPath})
	require.NoError(t, err)
	c := &countingCloser{}
	a.closers = append(a.closers, c)
	assert.Positive(t, a.embedder.Dimension())

	a.close()
	assert.Equal(t, 1, c.closed)
}
