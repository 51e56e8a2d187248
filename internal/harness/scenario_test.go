package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario_Valid(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "crud_roundtrip.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "crud_roundtrip", s.Name)
	assert.Equal(t, "", s.Backend)
	require.Len(t, s.Steps, 6)
	assert.Equal(t, "create_entry", s.Steps[0].Op)
	assert.Equal(t, "Morning walk", s.Steps[0].Args["content"])
	require.NotNil(t, s.Steps[0].Expect)
	assert.Equal(t, true, s.Steps[0].Expect.Data["pinned"])
	assert.Equal(t, "entry not found: id 1", s.Steps[5].Expect.Error)
	require.Len(t, s.Assertions, 5)
	assert.True(t, s.Assertions[3].Absent)
}

func TestLoadScenario_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "missing name",
			content: "description: d\nsteps:\n  - op: shutdown\n",
			want:    "name is required",
		},
		{
			name:    "missing description",
			content: "name: n\nsteps:\n  - op: shutdown\n",
			want:    "description is required",
		},
		{
			name:    "no steps",
			content: "name: n\ndescription: d\n",
			want:    "steps list is required",
		},
		{
			name:    "unknown op",
			content: "name: n\ndescription: d\nsteps:\n  - op: rename_entry\n",
			want:    `unknown op "rename_entry"`,
		},
		{
			name:    "unknown backend",
			content: "name: n\ndescription: d\nbackend: redis\nsteps:\n  - op: shutdown\n",
			want:    `unknown backend "redis"`,
		},
		{
			name:    "unknown field",
			content: "name: n\ndescription: d\nstep:\n  - op: shutdown\n",
			want:    "failed to parse YAML",
		},
		{
			name:    "unknown assertion",
			content: "name: n\ndescription: d\nsteps:\n  - op: shutdown\nassertions:\n  - type: trace_contains\n",
			want:    `unknown assertion type "trace_contains"`,
		},
		{
			name:    "final_state without id",
			content: "name: n\ndescription: d\nsteps:\n  - op: shutdown\nassertions:\n  - type: final_state\n    absent: true\n",
			want:    "id is required for final_state",
		},
		{
			name:    "final_state without expect",
			content: "name: n\ndescription: d\nsteps:\n  - op: shutdown\nassertions:\n  - type: final_state\n    id: 1\n",
			want:    "expect or absent is required",
		},
		{
			name:    "trace_order without ops",
			content: "name: n\ndescription: d\nsteps:\n  - op: shutdown\nassertions:\n  - type: trace_order\n",
			want:    "ops list is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}
