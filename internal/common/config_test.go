package common_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurelmarchand/medidocs/internal/common"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DB_URL", "file:test.db")
	t.Setenv("MISTRAL_API_KEY", "test-key")

	cfg := common.LoadConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "https://api.mistral.ai/v1", cfg.Mistral.BaseURL)
	assert.Equal(t, "pixtral-large-latest", cfg.Mistral.OCRModel)
	assert.Equal(t, "mistral-large-latest", cfg.Mistral.TextModel)
	assert.InDelta(t, 0.1, cfg.Mistral.Temperature, 1e-6)
	assert.InDelta(t, 0.1, cfg.Mistral.TopP, 1e-6)
	assert.Equal(t, 120*time.Second, cfg.Mistral.Timeout)

	assert.Equal(t, 2, cfg.Pipeline.MaxConcurrent)
	assert.Equal(t, time.Second, cfg.Pipeline.CallDelay)
	assert.Equal(t, 4, cfg.Pipeline.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Pipeline.BackoffBase)
	assert.Equal(t, 60*time.Second, cfg.Pipeline.BackoffCap)
	assert.InDelta(t, 2.0, cfg.Pipeline.RenderZoom, 1e-9)
	assert.True(t, cfg.Pipeline.StoreImages)

	assert.Equal(t, "templates/fields.yaml", cfg.Template.Path)
	assert.Equal(t, "v1", cfg.Template.Version)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("DB_URL", "postgres://localhost/medidocs")
	t.Setenv("MISTRAL_API_KEY", "test-key")
	t.Setenv("PIPELINE_MAX_CONCURRENT", "4")
	t.Setenv("PIPELINE_CALL_DELAY", "250ms")
	t.Setenv("MISTRAL_TEMPERATURE", "0.7")
	t.Setenv("STORE_PAGE_IMAGES", "false")
	t.Setenv("TEMPLATE_VERSION", "v2")

	cfg := common.LoadConfig()
	assert.Equal(t, 4, cfg.Pipeline.MaxConcurrent)
	assert.Equal(t, 250*time.Millisecond, cfg.Pipeline.CallDelay)
	assert.InDelta(t, 0.7, cfg.Mistral.Temperature, 1e-6)
	assert.False(t, cfg.Pipeline.StoreImages)
	assert.Equal(t, "v2", cfg.Template.Version)
}

func TestValidate(t *testing.T) {
	t.Setenv("DB_URL", "")
	t.Setenv("MISTRAL_API_KEY", "")

	cfg := common.LoadConfig()
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	t.Setenv("DB_URL", "file:test.db")
	cfg = common.LoadConfig()
	assert.Error(t, cfg.Validate())

	t.Setenv("MISTRAL_API_KEY", "test-key")
	cfg = common.LoadConfig()
	assert.NoError(t, cfg.Validate())
}

func TestAppError(t *testing.T) {
	cause := errors.New("boom")
	err := common.NewAppError("CONFIG_ERROR", "DB_URL is required", cause)
	assert.Equal(t, "CONFIG_ERROR: DB_URL is required: boom", err.Error())
	assert.ErrorIs(t, err, cause)

	bare := common.NewAppError("NOT_FOUND", "document missing", nil)
	assert.Equal(t, "NOT_FOUND: document missing", bare.Error())

	assert.Nil(t, common.WrapError(nil, "context"))
	wrapped := common.WrapError(common.ErrNotFound, "loading document")
	assert.ErrorIs(t, wrapped, common.ErrNotFound)
	assert.Contains(t, wrapped.Error(), "loading document")
}
