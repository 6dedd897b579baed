// Package trainer runs epochs of online training over a network and
// reports progress.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/born-ml/lncnn/internal/dataset"
	"github.com/born-ml/lncnn/internal/metrics"
	"github.com/born-ml/lncnn/internal/network"
	"github.com/born-ml/lncnn/internal/serialization"
)

// ErrNoTrainingData is returned when there is nothing to train on.
var ErrNoTrainingData = errors.New("trainer: no training images")

// EpochReport summarizes one epoch.
type EpochReport struct {
	Epoch        int
	Loss         float64 // Mean squared error over the epoch
	TrainAcc     float64
	TestAcc      float64
	ImagesPerSec float64
	Duration     time.Duration
}

// Report summarizes a run.
type Report struct {
	Epochs []EpochReport
}

// Final returns the last epoch's report, or a zero report when no epoch
// finished.
func (r Report) Final() EpochReport {
	if len(r.Epochs) == 0 {
		return EpochReport{}
	}
	return r.Epochs[len(r.Epochs)-1]
}

// Run trains net for cfg.Epochs epochs. Each epoch shuffles the training
// images with a source seeded from cfg.Seed, trains on them one at a time
// and evaluates on test. When test is empty and cfg.ValidationRatio is set,
// the tail of the training images is held out instead.
//
// The context is checked between chunks of cfg.LogEvery images; a
// cancelled run returns the epochs completed so far with ctx.Err().
func Run(ctx context.Context, net *network.Network, train, test []dataset.Image, cfg Config, logger *log.Logger) (Report, error) {
	if err := cfg.Validate(); err != nil {
		return Report{}, fmt.Errorf("trainer: %w", err)
	}
	if logger == nil {
		logger = log.Default()
	}

	// Shuffle a copy so the caller's order is kept.
	train = append([]dataset.Image(nil), train...)
	rng := rand.New(rand.NewSource(cfg.Seed))
	if len(test) == 0 && cfg.ValidationRatio > 0 {
		dataset.Shuffle(train, rng)
		var err error
		train, test, err = dataset.Split(train, cfg.ValidationRatio)
		if err != nil {
			return Report{}, fmt.Errorf("trainer: %w", err)
		}
	}
	if len(train) == 0 {
		return Report{}, ErrNoTrainingData
	}

	var report Report
	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		dataset.Shuffle(train, rng)
		er, err := runEpoch(ctx, net, train, epoch, cfg.LogEvery, logger)
		if err != nil {
			return report, err
		}

		er.TestAcc, err = net.Evaluate(test)
		if err != nil {
			return report, fmt.Errorf("epoch %d: evaluate: %w", epoch, err)
		}
		report.Epochs = append(report.Epochs, er)

		logger.Printf("epoch=%d loss=%.4f train_accuracy=%.4f accuracy=%.4f images_per_sec=%.1f duration=%s",
			er.Epoch, er.Loss, er.TrainAcc, er.TestAcc, er.ImagesPerSec, er.Duration.Round(time.Millisecond))

		if cfg.CheckpointPath != "" {
			ckpt := &serialization.CheckpointMeta{Epoch: epoch, Loss: er.Loss, Accuracy: er.TestAcc}
			if err := net.SaveCheckpoint(cfg.CheckpointPath, ckpt); err != nil {
				return report, fmt.Errorf("epoch %d: save checkpoint: %w", epoch, err)
			}
		}
	}
	return report, nil
}

func runEpoch(ctx context.Context, net *network.Network, train []dataset.Image, epoch, logEvery int, logger *log.Logger) (EpochReport, error) {
	var (
		window  metrics.Window
		lossSum float64
		correct int
	)
	start := time.Now()

	for offset := 0; offset < len(train); offset += logEvery {
		if err := ctx.Err(); err != nil {
			return EpochReport{}, err
		}
		end := min(offset+logEvery, len(train))

		chunkStart := time.Now()
		stats, err := net.Train(train[offset:end])
		if err != nil {
			return EpochReport{}, fmt.Errorf("epoch %d: train: %w", epoch, err)
		}
		window.Record(stats.Samples, time.Since(chunkStart), stats.Loss)
		lossSum += stats.Loss * float64(stats.Samples)
		correct += stats.Correct

		if end < len(train) {
			snap := window.Snapshot()
			logger.Printf("epoch=%d images=%d/%d images_per_sec=%.1f sample_ms=%.3f loss=%.4f",
				epoch, end, len(train), snap.ImagesPerSec, snap.AvgSampleMS, snap.LastLoss)
		}
	}

	duration := time.Since(start)
	er := EpochReport{
		Epoch:    epoch,
		Loss:     lossSum / float64(len(train)),
		TrainAcc: float64(correct) / float64(len(train)),
		Duration: duration,
	}
	if duration > 0 {
		er.ImagesPerSec = float64(len(train)) / duration.Seconds()
	}
	return er, nil
}
