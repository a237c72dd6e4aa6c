package control

// ema is an exponential moving average. The zero value is unseeded: the
// first sample passes through unchanged.
type ema struct {
	value  float64
	seeded bool
}

func (e *ema) next(sample, alpha float64) float64 {
	if !e.seeded {
		e.value = sample
		e.seeded = true
		return sample
	}
	e.value = alpha*sample + (1-alpha)*e.value
	return e.value
}

func (e *ema) reset() { *e = ema{} }
