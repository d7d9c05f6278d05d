package service

import (
	"math"

	"github.com/pulso-health/backend/pkg/model"
)

// ComputeHRV derives time-domain heart-rate-variability metrics from a
// session's R-peaks. R-R intervals must be strictly positive to count; with
// fewer than 2 valid intervals both metrics are zero. Never fails.
func ComputeHRV(rpeaks []model.RPeak) model.HRVMetrics {
	intervals := make([]float64, 0, len(rpeaks))
	for _, p := range rpeaks {
		if p.RRIntervalMS > 0 {
			intervals = append(intervals, p.RRIntervalMS)
		}
	}

	if len(intervals) < 2 {
		return model.HRVMetrics{}
	}

	return model.HRVMetrics{
		SDNN:  sampleStdDev(intervals),
		RMSSD: rmssd(intervals),
	}
}

// sampleStdDev computes the sample standard deviation (n-1 denominator)
func sampleStdDev(values []float64) float64 {
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	sumSquares := 0.0
	for _, v := range values {
		d := v - mean
		sumSquares += d * d
	}

	return math.Sqrt(sumSquares / float64(len(values)-1))
}

// rmssd computes the root mean square of successive interval differences
func rmssd(intervals []float64) float64 {
	sumSquares := 0.0
	for i := 0; i < len(intervals)-1; i++ {
		d := math.Abs(intervals[i+1] - intervals[i])
		sumSquares += d * d
	}

	return math.Sqrt(sumSquares / float64(len(intervals)-1))
}
