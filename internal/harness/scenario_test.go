package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleEventYAML = `
  - maker_address: "0x1111111111111111111111111111111111111111"
    taker_address: "0x2222222222222222222222222222222222222222"
    maker_asset: "0x3333333333333333333333333333333333333333"
    taker_asset: "0x4444444444444444444444444444444444444444"
    maker_amount: "100"
    taker_amount: "200"
    expiration: "9999"
    remaining: "100"
`

func writeScenario(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "s.yaml", `
name: one_event
description: "one event"
events:`+sampleEventYAML+`
expect:
  - event: 0
    updates_count: 1
    remaining_amount: "100"
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "one_event", scenario.Name)
	require.Len(t, scenario.Events, 1)
	assert.Equal(t, "0x1111111111111111111111111111111111111111", scenario.Events[0].MakerAddress)
	assert.EqualValues(t, "9999", scenario.Events[0].Expiration)
	require.Len(t, scenario.Expect, 1)
	require.NotNil(t, scenario.Expect[0].Event)
	assert.Equal(t, 0, *scenario.Expect[0].Event)
	assert.Equal(t, uint64(1), *scenario.Expect[0].UpdatesCount)
	assert.True(t, scenario.Expect[0].wantExists())
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_RejectsUnknownFields(t *testing.T) {
	_, err := ParseScenario([]byte(`
name: typo
events:` + sampleEventYAML + `
expects: []
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_Validation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing name",
			yaml:    "events:" + sampleEventYAML,
			wantErr: "name is required",
		},
		{
			name:    "no events",
			yaml:    "name: x\nevents: []\n",
			wantErr: "events list is required",
		},
		{
			name:    "unknown expect_error",
			yaml:    "name: x\nevents:" + sampleEventYAML + "    expect_error: store_error\n",
			wantErr: "expect_error must be",
		},
		{
			name:    "expectation without selector",
			yaml:    "name: x\nevents:" + sampleEventYAML + "expect:\n  - updates_count: 1\n",
			wantErr: "one of id or event is required",
		},
		{
			name:    "expectation with both selectors",
			yaml:    "name: x\nevents:" + sampleEventYAML + "expect:\n  - event: 0\n    id: \"0x00\"\n",
			wantErr: "mutually exclusive",
		},
		{
			name:    "event out of range",
			yaml:    "name: x\nevents:" + sampleEventYAML + "expect:\n  - event: 1\n",
			wantErr: "out of range",
		},
		{
			name:    "absent record with field checks",
			yaml:    "name: x\nevents:" + sampleEventYAML + "expect:\n  - event: 0\n    exists: false\n    updates_count: 1\n",
			wantErr: "cannot be combined",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenarios_Directory(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "b.yaml", "name: b\nevents:"+sampleEventYAML)
	writeScenario(t, dir, "a.yml", "name: a\nevents:"+sampleEventYAML)
	writeScenario(t, dir, "notes.txt", "ignored")

	scenarios, err := LoadScenarios(dir)
	require.NoError(t, err)
	require.Len(t, scenarios, 2)
	assert.Equal(t, "a", scenarios[0].Name)
	assert.Equal(t, "b", scenarios[1].Name)
}

func TestLoadScenarios_EmptyDirectory(t *testing.T) {
	_, err := LoadScenarios(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no scenario files")
}

func TestLoadScenarios_NamesBadFile(t *testing.T) {
	dir := t.TempDir()
	bad := writeScenario(t, dir, "bad.yaml", "name: [")

	_, err := LoadScenarios(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), bad)
}
