package power_test

import (
	"testing"

	"codeberg.org/mutker/battctl/internal/power"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByName(t *testing.T) {
	p, err := power.ByName("pinephone")
	require.NoError(t, err)
	assert.Equal(t, "pinephone", p.Name)
	assert.True(t, p.UnreliableCurrentSign, "Expected the PinePhone telemetry quirks")
	assert.True(t, p.OptimisticChargeStatus)

	p, err = power.ByName("pinephone-pro")
	require.NoError(t, err)
	assert.Equal(t, "pinephone-pro", p.Name)
	assert.False(t, p.UnreliableCurrentSign)

	_, err = power.ByName("librem5")
	assert.Error(t, err, "Expected an unknown platform name to fail")
}

func TestLimitBounds(t *testing.T) {
	p := power.PinePhone()

	assert.Equal(t, 500, p.MinLimit())
	assert.Equal(t, 2000, p.MaxLimit())
	assert.Equal(t, 500, p.DefaultLimit(), "Expected the default to be the safe minimum step")
}

func TestQuantizeSnapsToNearestStep(t *testing.T) {
	p := power.PinePhone()

	cases := []struct {
		request int
		want    int
	}{
		{0, 500},
		{500, 500},
		{650, 500},
		{800, 900},
		{1300, 1500},
		{1751, 2000},
		{9999, 2000},
	}

	for _, c := range cases {
		assert.Equal(t, c.want, p.Quantize(c.request), "Unexpected quantization of %d mA", c.request)
	}
}

func TestStepUpAndDownAreClampedAtBounds(t *testing.T) {
	p := power.PinePhonePro()

	assert.Equal(t, 850, p.StepUp(450))
	assert.Equal(t, 2000, p.StepUp(2000), "Expected StepUp to saturate at the maximum")
	assert.Equal(t, 1500, p.StepDown(2000))
	assert.Equal(t, 450, p.StepDown(450), "Expected StepDown to saturate at the minimum")

	// Off-step inputs get quantized before stepping.
	assert.Equal(t, 1250, p.StepUp(980))
	assert.Equal(t, 850, p.StepDown(980))
}
