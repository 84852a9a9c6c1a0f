package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/internal/common"
)

func TestBuildProcessor(t *testing.T) {
	cfg := common.DefaultConfig()
	cfg.OCR.Enabled = false

	proc, err := buildProcessor(cfg, nil)
	require.NoError(t, err)
	assert.False(t, proc.LLMEnabled())

	cfg.LLM.APIKey = "injected-by-test"
	proc, err = buildProcessor(cfg, nil)
	require.NoError(t, err)
	assert.True(t, proc.LLMEnabled())

	cfg.Reconcile.MergePolicy = "average"
	_, err = buildProcessor(cfg, nil)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestDefaultOut(t *testing.T) {
	assert.Equal(t, "x.xlsx", defaultOut("x.xlsx", "/data/docs", "d.xlsx"))
	assert.Equal(t, filepath.Join("/data", "d.xlsx"), defaultOut("", "/data/docs/", "d.xlsx"))
	assert.Equal(t, "d.xlsx", defaultOut("", "", "d.xlsx"))
}
