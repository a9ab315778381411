package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_RejectsUnknownAdapterKind(t *testing.T) {
	cfg := Default()
	cfg.Adapters = []AdapterSpec{{Name: "a", Kind: "bogus"}}

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown kind")
}

func TestValidate_RejectsDuplicateAdapterNames(t *testing.T) {
	cfg := Default()
	cfg.Adapters = []AdapterSpec{
		{Name: "qa-sql", Kind: "retriever"},
		{Name: "qa-sql", Kind: "retriever"},
	}

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate adapter name")
}

func TestValidate_AcceptsDefaults(t *testing.T) {
	require.NoError(t, Validate(Default()))
}

func TestLoad_EnvOverridesApply(t *testing.T) {
	t.Setenv("ORBIT_HTTP_PORT", "9090")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.HTTP.Port)
}

func TestLoad_UnknownEnvVarsIgnored(t *testing.T) {
	t.Setenv("ORBIT_TOTALLY_UNKNOWN", "whatever")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().HTTP.Port, cfg.HTTP.Port)
}
