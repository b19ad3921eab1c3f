package noise

import "gonum.org/v1/gonum/stat/distuv"

// NoisyTimestamp is the Gaussian distribution of a scan frame's true
// capture time around its recorded timestamp. The spread comes from the
// residual error of synchronizing the sensor clock to the system clock.
type NoisyTimestamp struct {
	mean  float64
	sigma float64
}

// NewNoisyTimestamp builds a timestamp distribution with the given mean
// time (seconds) and clock-sync standard deviation.
func NewNoisyTimestamp(mean, sigma float64) NoisyTimestamp {
	return NoisyTimestamp{mean: mean, sigma: sigma}
}

// Mean returns the recorded timestamp.
func (nt NoisyTimestamp) Mean() float64 { return nt.mean }

// Sigma returns the clock-sync standard deviation.
func (nt NoisyTimestamp) Sigma() float64 { return nt.sigma }

// Sample draws one capture time using the given standard normal source.
// A zero spread returns the mean without consuming randomness.
func (nt NoisyTimestamp) Sample(stdNormal *distuv.Normal) float64 {
	if nt.sigma == 0 {
		return nt.mean
	}
	return nt.mean + nt.sigma*stdNormal.Rand()
}
