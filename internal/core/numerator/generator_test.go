package numerator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfig_KeyAndFormat(t *testing.T) {
	period := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	cfg := DefaultConfig("SAL")
	assert.Equal(t, "SAL_2026", cfg.Key(period))
	assert.Equal(t, "SAL-2026-00042", cfg.Format(period, 42))

	cfg.ResetPeriod = "month"
	assert.Equal(t, "SAL_2026_03", cfg.Key(period))

	plain := Config{Prefix: "PRT", PadWidth: 3}
	assert.Equal(t, "PRT", plain.Key(period))
	assert.Equal(t, "PRT-007", plain.Format(period, 7))
}
