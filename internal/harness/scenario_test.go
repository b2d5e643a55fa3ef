package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario_Valid(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/food_last_month.yaml")
	require.NoError(t, err)

	assert.Equal(t, "food_last_month", s.Name)
	require.Len(t, s.Steps, 3)
	assert.True(t, s.Steps[0].Answer)
	assert.True(t, s.Steps[1].Carry)
	assert.Equal(t, "u2", s.Steps[2].User)

	require.NotNil(t, s.Steps[0].Expect)
	require.NotNil(t, s.Steps[0].Expect.Value)
	assert.Equal(t, int64(57050), *s.Steps[0].Expect.Value)
	assert.Equal(t, []string{"user_id", "date", "category"}, s.Steps[0].Expect.Filters)
}

func TestLoadScenario_LedgerRelativeToFile(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/ledger_file.yaml")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("testdata", "scenarios", "ledgers", "march.yaml"), s.Ledger)
}

func TestLoadScenario_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "unknown field",
			content: "name: x\ndescription: y\nstep:\n  - ask: hi\n",
			wantErr: "field step not found",
		},
		{
			name:    "missing name",
			content: "description: y\nsteps:\n  - ask: hi\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			content: "name: x\nsteps:\n  - ask: hi\n",
			wantErr: "description is required",
		},
		{
			name:    "no steps",
			content: "name: x\ndescription: y\n",
			wantErr: "steps list is required",
		},
		{
			name:    "empty ask",
			content: "name: x\ndescription: y\nsteps:\n  - user: u1\n",
			wantErr: "steps[0]: ask is required",
		},
		{
			name:    "carry on first step",
			content: "name: x\ndescription: y\nsteps:\n  - ask: hi\n    carry: true\n",
			wantErr: "carry needs a previous step",
		},
		{
			name:    "bad today",
			content: "name: x\ndescription: y\ntoday: yesterday\nsteps:\n  - ask: hi\n",
			wantErr: "today",
		},
		{
			name:    "bad timezone",
			content: "name: x\ndescription: y\ntimezone: Mars/Olympus\nsteps:\n  - ask: hi\n",
			wantErr: "timezone",
		},
		{
			name:    "unknown fail mode",
			content: "name: x\ndescription: y\nsteps:\n  - ask: hi\n    hint: {fail: sometimes}\n",
			wantErr: "unknown fail mode",
		},
		{
			name:    "raw and fail",
			content: "name: x\ndescription: y\nsteps:\n  - ask: hi\n    hint: {fail: timeout, raw: '{}'}\n",
			wantErr: "mutually exclusive",
		},
		{
			name:    "missing shape",
			content: "name: x\ndescription: y\nsteps:\n  - ask: hi\n    expect: {aggregate: sum}\n",
			wantErr: "shape is required",
		},
		{
			name:    "reason on executable shape",
			content: "name: x\ndescription: y\nsteps:\n  - ask: hi\n    expect: {shape: LIST, reason: no_signal}\n",
			wantErr: "reason only applies to UNRESOLVED",
		},
		{
			name:    "unknown reason",
			content: "name: x\ndescription: y\nsteps:\n  - ask: hi\n    expect: {shape: UNRESOLVED, reason: bored}\n",
			wantErr: "unknown reason",
		},
		{
			name:    "ledger and expenses",
			content: "name: x\ndescription: y\nledger: a.yaml\nexpenses:\n  - {user_id: u1, date: '2025-01-01', amount: 1, category: food}\nsteps:\n  - ask: hi\n",
			wantErr: "mutually exclusive",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeScenario(t, t.TempDir(), "s.yaml", tt.content)
			_, err := LoadScenario(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadDir(t *testing.T) {
	scenarios, err := LoadDir("testdata/scenarios")
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	names := make([]string, len(scenarios))
	for i, s := range scenarios {
		names[i] = s.Name
	}
	assert.IsNonDecreasing(t, names, "scenario files are named after their scenarios")

	t.Run("duplicate names", func(t *testing.T) {
		dir := t.TempDir()
		writeScenario(t, dir, "a.yaml", "name: same\ndescription: a\nsteps:\n  - ask: hi\n")
		writeScenario(t, dir, "b.yaml", "name: same\ndescription: b\nsteps:\n  - ask: hi\n")
		_, err := LoadDir(dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already used")
	})
}
