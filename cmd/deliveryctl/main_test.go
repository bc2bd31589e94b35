package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("KAFKA_BROKERS", "")

	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--env-file", filepath.Join(t.TempDir(), "missing.env")}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestCommandsRequireDatabase(t *testing.T) {
	pid := uuid.NewString()
	for _, args := range [][]string{
		{"migrate"},
		{"seed"},
		{"pending", "--project", pid},
		{"template", "--project", pid},
	} {
		_, err := run(t, args...)
		assert.ErrorIs(t, err, errNoDatabase, "%v", args)
	}
}

func TestResolveValidatesFlagsBeforeConnecting(t *testing.T) {
	_, err := run(t, "resolve", uuid.NewString(), "--location", "not-a-uuid")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "location_id must be a UUID")
}

func TestUploadRejectsBadProject(t *testing.T) {
	_, err := run(t, "upload", "--project", "nope", "deliveries.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --project")
}

func TestTemplateRequiresProjectFlag(t *testing.T) {
	_, err := run(t, "template")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "project" not set`)
}
