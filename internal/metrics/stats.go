// Package metrics aggregates training throughput and loss.
package metrics

import "time"

// Window accumulates timing and loss stats across training samples.
type Window struct {
	samples  int
	compute  time.Duration
	steps    int
	lossSum  float64
	lastLoss float64
}

// Record adds a measurement covering samples images that took d and
// produced loss.
func (w *Window) Record(samples int, d time.Duration, loss float64) {
	w.samples += samples
	w.compute += d
	w.steps++
	w.lossSum += loss
	w.lastLoss = loss
}

// Samples returns the number of images recorded since the last snapshot.
func (w *Window) Samples() int {
	return w.samples
}

// Snapshot returns aggregated metrics and resets the window.
func (w *Window) Snapshot() Snapshot {
	snap := Snapshot{Samples: w.samples}
	if w.compute > 0 {
		snap.ImagesPerSec = float64(w.samples) / w.compute.Seconds()
	}
	if w.samples > 0 {
		snap.AvgSampleMS = (w.compute.Seconds() * 1000) / float64(w.samples)
	}
	if w.steps > 0 {
		snap.AvgLoss = w.lossSum / float64(w.steps)
	}
	snap.LastLoss = w.lastLoss

	*w = Window{}
	return snap
}

// Snapshot represents loggable metrics.
type Snapshot struct {
	Samples      int
	ImagesPerSec float64
	AvgSampleMS  float64
	AvgLoss      float64
	LastLoss     float64
}
