package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.Positive(t, cfg.PruneTimeout)
	require.GreaterOrEqual(t, cfg.RiskFactor, 0.0)
}

func TestRiskFactorPerBlockMatchesSpecFormula(t *testing.T) {
	cfg := Default()
	cfg.RiskFactor = 15

	got := cfg.RiskFactorPerBlock()
	want := 15.0 / float64(blocksPerYear) / 10_000

	require.InDelta(t, want, got, 1e-15)
}

func TestLoadRejectsNegativeRiskFactor(t *testing.T) {
	_, err := Load([]string{"--riskfactor=-1", "--datadir=" + t.TempDir()})
	require.Error(t, err)
}

func TestLoadAppliesDataDirOverride(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load([]string{"--datadir=" + dir})
	require.NoError(t, err)
	require.Equal(t, dir, cfg.DataDir)
}
