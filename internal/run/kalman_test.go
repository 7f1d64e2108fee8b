package run

import (
	"math"
	"testing"
)

func TestKalmanConvergesToConstantMeasurement(t *testing.T) {
	k := newKalmanFilter(0.1, 2.0)

	var est float64
	for i := 0; i < 50; i++ {
		est = k.Update(10)
	}
	if math.Abs(est-10) > 0.01 {
		t.Errorf("estimate after 50 updates = %v, want ~10", est)
	}
}

func TestKalmanCovarianceShrinksOnUpdate(t *testing.T) {
	k := newKalmanFilter(0.1, 2.0)

	before := k.cov
	k.Update(5)
	if k.cov >= before {
		t.Errorf("covariance did not shrink: before=%v after=%v", before, k.cov)
	}
}

func TestKalmanSingleUpdateMath(t *testing.T) {
	k := newKalmanFilter(0.1, 2.0)

	// predict: p = 1.0 + 0.1; gain = 1.1/3.1; x = 0 + gain*8.
	got := k.Update(8)
	want := (1.1 / 3.1) * 8
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("Update(8) = %v, want %v", got, want)
	}
	wantCov := 1.1 * (1 - 1.1/3.1)
	if math.Abs(k.cov-wantCov) > 1e-12 {
		t.Errorf("cov = %v, want %v", k.cov, wantCov)
	}
}

func TestKalmanReset(t *testing.T) {
	k := newKalmanFilter(0.1, 2.0)
	k.Update(20)
	k.Update(20)

	k.Reset()
	if k.value != 0 || k.cov != initialCovariance {
		t.Errorf("after reset value=%v cov=%v", k.value, k.cov)
	}
}
