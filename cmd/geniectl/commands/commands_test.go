package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geniesugar/glucose-monitor/internal/model"
)

// testEnv points the CLI at a fresh database file.
func testEnv(t *testing.T) {
	t.Helper()
	t.Setenv("APP_ENV", "development")
	t.Setenv("DB_PATH", filepath.Join(t.TempDir(), "glucose.db"))
	t.Setenv("JWT_SECRET", "cli-test-secret-0123456789")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("SENDGRID_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
}

// execute runs geniectl with args. Flag variables are package globals, so
// they are reset first.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	envFile, verbose, jsonOutput = "", false, false
	userName, userEmail, userPassword, userRole, userPhone, userDOB = "", "", "", string(model.RolePatient), "", ""
	summaryDays = 0

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestConfigCheck_MasksSecrets(t *testing.T) {
	testEnv(t)

	out, err := execute(t, "config", "check")
	require.NoError(t, err)

	assert.Contains(t, out, "JWT_SECRET")
	assert.Contains(t, out, "cli-****")
	assert.NotContains(t, out, "cli-test-secret-0123456789")
	assert.Contains(t, out, "SENDGRID_API_KEY is unset")
	assert.Contains(t, out, "Configuration is valid")
}

func TestConfigCheck_EnvFile(t *testing.T) {
	testEnv(t)
	t.Cleanup(func() { os.Unsetenv("DEXCOM_LOOKBACK") })

	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("DEXCOM_LOOKBACK=6h\n"), 0o600))

	out, err := execute(t, "config", "check", "--env-file", path, "--json")
	require.NoError(t, err)

	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "6h0m0s", got["DEXCOM_LOOKBACK"])
}

func TestConfigCheck_MissingEnvFile(t *testing.T) {
	testEnv(t)

	_, err := execute(t, "config", "check", "--env-file", filepath.Join(t.TempDir(), "nope.env"))
	assert.Error(t, err)
}

func TestUserCreateAndSummary(t *testing.T) {
	testEnv(t)

	out, err := execute(t, "user", "create",
		"--name", "Root", "--email", "root@example.com", "--password", "admin-password", "--role", "admin")
	require.NoError(t, err)
	assert.Contains(t, out, "Created admin root@example.com")

	t.Setenv("GENIECTL_PASSWORD", "patient-password")
	_, err = execute(t, "user", "create", "--name", "Pat Doe", "--email", "Pat@Example.com", "--dob", "1990-04-02")
	require.NoError(t, err)

	out, err = execute(t, "summary", "--json")
	require.NoError(t, err)

	var rows []model.PatientSummary
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 1, "admins are not patients")
	assert.Equal(t, "Pat Doe", rows[0].Name)
	assert.Equal(t, "pat@example.com", rows[0].Email)
	assert.Zero(t, rows[0].ReadingsCount)
	assert.Nil(t, rows[0].AvgGlucose)

	out, err = execute(t, "summary", "--days", "30")
	require.NoError(t, err)
	assert.Contains(t, out, "Pat Doe")
	assert.Contains(t, out, "READINGS")
}

func TestUserCreate_Rejections(t *testing.T) {
	testEnv(t)

	_, err := execute(t, "user", "create", "--name", "X", "--email", "x@example.com", "--password", "long-enough", "--role", "nurse")
	assert.Error(t, err)

	_, err = execute(t, "user", "create", "--name", "X", "--email", "x@example.com", "--password", "short")
	assert.Error(t, err)

	_, err = execute(t, "user", "create", "--name", "X", "--email", "x@example.com", "--password", "long-enough", "--dob", "02/04/1990")
	assert.Error(t, err)
}

func TestSummary_RejectsBadDays(t *testing.T) {
	testEnv(t)

	_, err := execute(t, "summary", "--days", "400")
	assert.Error(t, err)
}

func TestSync_UnknownUser(t *testing.T) {
	testEnv(t)

	_, err := execute(t, "sync", "does-not-exist")
	assert.Error(t, err)
}
