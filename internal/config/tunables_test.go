package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTunablesValid(t *testing.T) {
	require.NoError(t, DefaultTunables().Validate())
}

func TestMultiplierFor(t *testing.T) {
	tun := DefaultTunables()

	cases := []struct {
		streak int
		want   float64
	}{
		{0, 1.0},
		{6, 1.0},
		{7, 1.5},
		{13, 1.5},
		{14, 2.0},
		{30, 3.0},
		{60, 4.0},
		{90, 5.0},
		{365, 5.0},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, tun.MultiplierFor(c.streak), "streak=%d", c.streak)
	}
}

func TestSeverityFor(t *testing.T) {
	bands := DefaultTunables().Severity

	assert.Equal(t, "low", bands.SeverityFor(0))
	assert.Equal(t, "low", bands.SeverityFor(39))
	assert.Equal(t, "medium", bands.SeverityFor(40))
	assert.Equal(t, "high", bands.SeverityFor(70))
	assert.Equal(t, "critical", bands.SeverityFor(90))
	assert.Equal(t, "critical", bands.SeverityFor(100))
}

func TestValidateRejectsBrokenBands(t *testing.T) {
	tun := DefaultTunables()
	tun.Severity = SeverityBands{Critical: 40, High: 70, Medium: 90}
	assert.Error(t, tun.Validate())

	tun = DefaultTunables()
	tun.RiskLevels.Critical = 150
	assert.Error(t, tun.Validate())
}

func TestValidateRejectsDecreasingMultipliers(t *testing.T) {
	tun := DefaultTunables()
	tun.Multipliers = []MultiplierStep{
		{MinStreak: 0, Factor: 2.0},
		{MinStreak: 7, Factor: 1.0},
	}
	assert.Error(t, tun.Validate())

	// Без базовой ступени таблица тоже некорректна.
	tun.Multipliers = []MultiplierStep{{MinStreak: 7, Factor: 1.5}}
	assert.Error(t, tun.Validate())
}

func TestValidateRejectsBadDetector(t *testing.T) {
	tun := DefaultTunables()
	tun.Detectors["duplicate_submission"] = DetectorWeights{Weight: 50, Cap: 10}
	assert.Error(t, tun.Validate())
}

func TestLoadTunablesEmptyPathReturnsDefaults(t *testing.T) {
	tun, err := LoadTunables("")
	require.NoError(t, err)
	assert.Equal(t, DefaultTunables(), tun)
}

func TestLoadTunablesOverridesDefaults(t *testing.T) {
	// YAML переопределяет только названные поля, остальное — дефолты.
	path := filepath.Join(t.TempDir(), "tunables.yaml")
	yaml := `
referral:
  signup_bonus: 200
  activity_bonus: 50
  redemption_share: 0.25
severity:
  critical: 95
  high: 75
  medium: 50
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	tun, err := LoadTunables(path)
	require.NoError(t, err)
	assert.Equal(t, int64(200), tun.Referral.SignupBonus)
	assert.Equal(t, 0.25, tun.Referral.RedemptionShare)
	assert.Equal(t, 95, tun.Severity.Critical)
	assert.Equal(t, "medium", tun.Severity.SeverityFor(50))
	// Нетронутые таблицы остаются дефолтными.
	assert.Equal(t, int64(100), tun.Milestones[7])
	assert.Equal(t, 5, tun.Recommend.TopN)
}

func TestLoadTunablesRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tunables.yaml")
	require.NoError(t, os.WriteFile(path, []byte("severity:\n  medium: 90\n  high: 50\n  critical: 95\n"), 0o644))

	_, err := LoadTunables(path)
	assert.Error(t, err)

	_, err = LoadTunables(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
