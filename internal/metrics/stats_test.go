package metrics

import (
	"math"
	"testing"
	"time"
)

func TestWindowSnapshot(t *testing.T) {
	var w Window
	w.Record(64, 30*time.Millisecond, 1.2)
	w.Record(64, 30*time.Millisecond, 0.8)
	if w.Samples() != 128 {
		t.Fatalf("expected 128 samples, got %d", w.Samples())
	}

	snap := w.Snapshot()
	if math.Abs(snap.ImagesPerSec-2133.3333) > 1 {
		t.Fatalf("unexpected throughput %.2f", snap.ImagesPerSec)
	}
	if math.Abs(snap.AvgSampleMS-60.0/128) > 1e-9 {
		t.Fatalf("unexpected ms per sample %.4f", snap.AvgSampleMS)
	}
	if math.Abs(snap.AvgLoss-1.0) > 1e-9 {
		t.Fatalf("expected avg loss 1.0, got %.4f", snap.AvgLoss)
	}
	if snap.LastLoss != 0.8 {
		t.Fatalf("expected last loss 0.8, got %.2f", snap.LastLoss)
	}
	if w.samples != 0 || w.steps != 0 || w.lossSum != 0 {
		t.Fatalf("window was not reset")
	}
}

func TestWindowSnapshot_Empty(t *testing.T) {
	var w Window
	snap := w.Snapshot()
	if snap != (Snapshot{}) {
		t.Fatalf("expected zero snapshot, got %+v", snap)
	}
}
