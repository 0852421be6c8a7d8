package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yamlCatalog = `
records:
  - id: slack
    label: Slack
    description: Send messages to Slack channels
    category: messaging
    kind: action
    requires: [http-auth]
    metadata:
      keywords: [chat, notify]
      success_rate: 0.97
  - id: webhook
    label: Webhook
    kind: trigger
patterns:
  - id: notify-flow
    members: [webhook, slack]
`

const jsonCatalog = `{
  "records": [
    {"id": "sheets", "label": "Google Sheets", "category": "data"}
  ]
}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFile_YAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "catalog.yaml", yamlCatalog)

	cat, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, cat.Records, 2)
	require.Len(t, cat.Patterns, 1)

	slack := cat.Records[0]
	assert.Equal(t, "Slack", slack.Label)
	assert.Equal(t, "messaging", slack.Category)
	assert.Equal(t, KindAction, slack.Kind)
	keywords, _ := slack.Metadata.GetStrings("keywords")
	assert.Equal(t, []string{"chat", "notify"}, keywords)

	rate, ok := slack.Metadata.GetNumber("success_rate")
	require.True(t, ok)
	assert.InDelta(t, 0.97, rate, 1e-9)
}

func TestLoadFile_JSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "catalog.json", jsonCatalog)

	cat, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, cat.Records, 1)
	assert.Equal(t, "Google Sheets", cat.Records[0].Label)
}

func TestLoadFile_Malformed(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadFile(writeFile(t, dir, "bad.yaml", "records: ["))
	assert.Error(t, err)

	_, err = LoadFile(writeFile(t, dir, "bad.json", "{"))
	assert.Error(t, err)

	_, err = LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadPath_Directory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "10-base.yaml", yamlCatalog)
	writeFile(t, dir, "20-extra.json", jsonCatalog)
	writeFile(t, dir, "30-broken.yaml", "patterns: {nope")
	writeFile(t, dir, "notes.txt", "not a catalog")

	cat, issues, err := LoadPath(dir)
	require.NoError(t, err)

	assert.Len(t, cat.Records, 3, "records from both loadable files merge")
	require.Len(t, issues, 1, "the malformed file is reported, not fatal")
	assert.Contains(t, issues[0].Path, "30-broken.yaml")
	assert.Error(t, issues[0].Err)
}

func TestLoadPath_SingleFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "catalog.yml", yamlCatalog)

	cat, issues, err := LoadPath(path)
	require.NoError(t, err)
	assert.Empty(t, issues)
	assert.Equal(t, 2, cat.Len())
}

func TestLoadPath_DuplicateAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "records:\n  - {id: slack, label: One}\n")
	writeFile(t, dir, "b.yaml", "records:\n  - {id: slack, label: Two}\n")

	_, _, err := LoadPath(dir)
	require.Error(t, err, "the same id in two files is a catalog-level conflict")
}

func TestLoadPath_Missing(t *testing.T) {
	_, _, err := LoadPath(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
