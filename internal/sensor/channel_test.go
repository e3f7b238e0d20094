package sensor

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/wound.alert/internal/wound"
)

// countingNoise records every clean value it is asked to perturb.
type countingNoise struct {
	offset float64
	seen   []float64
	resets int
}

func (c *countingNoise) Apply(clean float64) float64 {
	c.seen = append(c.seen, clean)
	return clean + c.offset
}

func (c *countingNoise) Reset() { c.resets++ }

func TestNewChannelRejectsUnknownKind(t *testing.T) {
	gen, err := wound.NewGenerator(wound.ScenarioNormal, wound.DefaultProfile())
	require.NoError(t, err)

	_, err = NewChannel(gen, &countingNoise{}, wound.Quantity("oxygen"))
	assert.ErrorIs(t, err, wound.ErrUnknownSensorKind)

	_, err = NewChannel(gen, nil, wound.QuantityPH)
	assert.Error(t, err)
}

func TestChannelReadUsesBoundQuantity(t *testing.T) {
	gen, err := wound.NewGenerator(wound.ScenarioInfection, wound.DefaultProfile())
	require.NoError(t, err)

	phNoise := &countingNoise{offset: 0.5}
	tempNoise := &countingNoise{offset: -0.25}
	ph, err := NewChannel(gen, phNoise, wound.QuantityPH)
	require.NoError(t, err)
	temp, err := NewChannel(gen, tempNoise, wound.QuantityTemperature)
	require.NoError(t, err)

	for _, tHours := range []float64{0, 50, 100} {
		gotPH, err := ph.Read(tHours)
		require.NoError(t, err)
		assert.Equal(t, gen.PH(tHours)+0.5, gotPH)

		gotTemp, err := temp.Read(tHours)
		require.NoError(t, err)
		assert.Equal(t, gen.Temperature(tHours)-0.25, gotTemp)
	}

	// One perturbation per read, no caching.
	assert.Len(t, phNoise.seen, 3)
	assert.Len(t, tempNoise.seen, 3)
	assert.Equal(t, wound.QuantityPH, ph.Kind())
}

func TestChannelResetResetsNoise(t *testing.T) {
	gen, err := wound.NewGenerator(wound.ScenarioNormal, wound.DefaultProfile())
	require.NoError(t, err)
	noise, err := NewNoiseModel(NoiseConfig{DriftSigmaPerHour: 0.3, SamplingIntervalMinutes: 15}, rand.NewPCG(5, 6))
	require.NoError(t, err)

	ch, err := NewChannel(gen, noise, wound.QuantityTemperature)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		_, err := ch.Read(float64(i) * 0.25)
		require.NoError(t, err)
	}
	require.NotZero(t, noise.Drift())

	ch.Reset()
	assert.Zero(t, noise.Drift())
}

func TestChannelReadWithRealNoiseIsNoisy(t *testing.T) {
	gen, err := wound.NewGenerator(wound.ScenarioNormal, wound.DefaultProfile())
	require.NoError(t, err)
	noise, err := NewNoiseModel(DefaultPHNoise(), rand.NewPCG(8, 9))
	require.NoError(t, err)
	ch, err := NewChannel(gen, noise, wound.QuantityPH)
	require.NoError(t, err)

	got, err := ch.Read(1)
	require.NoError(t, err)
	assert.NotEqual(t, gen.PH(1), got)
	assert.InDelta(t, gen.PH(1), got, 0.5)
}
