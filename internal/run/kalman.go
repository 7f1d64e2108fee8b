package run

// kalmanFilter is a scalar 1-D Kalman filter over speed in m/s. The state
// transition is a random walk: predict only inflates the error covariance
// by the process noise q, update folds in a measurement weighted by the
// gain p/(p+r).
type kalmanFilter struct {
	value float64 // current estimate (m/s)
	cov   float64 // error covariance
	q     float64 // process noise
	r     float64 // measurement noise
}

const initialCovariance = 1.0

func newKalmanFilter(q, r float64) *kalmanFilter {
	return &kalmanFilter{cov: initialCovariance, q: q, r: r}
}

// Update runs one predict+update cycle with measurement z and returns the
// new estimate.
func (k *kalmanFilter) Update(z float64) float64 {
	k.cov += k.q
	gain := k.cov / (k.cov + k.r)
	k.value += gain * (z - k.value)
	k.cov *= 1 - gain
	return k.value
}

// Reset returns the filter to its neutral state.
func (k *kalmanFilter) Reset() {
	k.value = 0
	k.cov = initialCovariance
}
