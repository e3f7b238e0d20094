package sensor

import (
	"fmt"

	"github.com/banshee-data/wound.alert/internal/wound"
)

// GroundTruth supplies clean values for a quantity at a simulated time.
// *wound.Generator satisfies it.
type GroundTruth interface {
	Value(kind wound.Quantity, tHours float64) (float64, error)
}

// Perturber turns a clean value into a measured one, advancing any internal
// state by one sample. *NoiseModel satisfies it.
type Perturber interface {
	Apply(clean float64) float64
	Reset()
}

// Channel is one physical sensor: a ground-truth source, a noise model and
// the quantity it measures.
type Channel struct {
	truth GroundTruth
	noise Perturber
	kind  wound.Quantity
}

// NewChannel binds truth and noise to kind. Kinds other than pH and
// temperature fail with wound.ErrUnknownSensorKind.
func NewChannel(truth GroundTruth, noise Perturber, kind wound.Quantity) (*Channel, error) {
	if _, err := wound.ParseQuantity(string(kind)); err != nil {
		return nil, err
	}
	if truth == nil || noise == nil {
		return nil, fmt.Errorf("sensor channel %q requires ground truth and noise model", kind)
	}
	return &Channel{truth: truth, noise: noise, kind: kind}, nil
}

// Kind returns the measured quantity.
func (c *Channel) Kind() wound.Quantity { return c.kind }

// Read returns the noisy reading at tHours. Each call advances the noise
// model, so Read must be called once per sample instant in increasing time
// order.
func (c *Channel) Read(tHours float64) (float64, error) {
	clean, err := c.truth.Value(c.kind, tHours)
	if err != nil {
		return 0, fmt.Errorf("read %s at t=%.3fh: %w", c.kind, tHours, err)
	}
	return c.noise.Apply(clean), nil
}

// Reset clears the accumulated drift of the bound noise model.
func (c *Channel) Reset() {
	c.noise.Reset()
}
