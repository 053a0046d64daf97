package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Valid(t *testing.T) {
	cfg := writeConfig(t, t.TempDir(), "environment: qa\n")

	out, err := execute(t, NewValidateCommand(rootOpts(cfg, "text")))
	require.NoError(t, err)
	assert.Equal(t, "✓ configuration valid (backend local, environment qa)\n", out)
}

func TestValidate_JSONRedactsSecret(t *testing.T) {
	cfg := writeConfig(t, t.TempDir(), "")
	opts := rootOpts(cfg, "json")
	t.Setenv("CSC_S3_SECRET_KEY", "hunter2")

	out, err := execute(t, NewValidateCommand(opts))
	require.NoError(t, err)
	assert.NotContains(t, out, "hunter2")

	var resp struct {
		Data ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.Data.Valid)
	require.NotNil(t, resp.Data.Config)
	assert.Equal(t, "<redacted>", resp.Data.Config.S3.SecretKey)
}

func TestValidate_InvalidInterval(t *testing.T) {
	opts := rootOpts(writePollingConfig(t, "PT7S", "02:00:00"), "json")

	out, err := execute(t, NewValidateCommand(opts))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeConfig, resp.Error.Code)
	assert.Contains(t, out, `"field": "polling.interval"`)
}

func TestValidate_MissingFile(t *testing.T) {
	out, err := execute(t, NewValidateCommand(rootOpts("/nonexistent/configstore.yaml", "text")))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E_CONFIG]")
}
