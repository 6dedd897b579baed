package trainer

import (
	"errors"
	"fmt"
)

// Default values applied by Validate.
const (
	DefaultEpochs   = 1
	DefaultLogEvery = 1000
)

// Config captures the knobs of a training run.
type Config struct {
	Epochs          int
	Seed            int64
	ValidationRatio float64 // Fraction of training images held out when no test set is given
	LogEvery        int     // Log throughput every LogEvery images
	CheckpointPath  string  // Snapshot written after every epoch when set
}

// Validate verifies the config is runnable and fills in defaults.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.Epochs < 0 {
		return fmt.Errorf("epochs must be >= 0 (got %d)", c.Epochs)
	}
	if c.Epochs == 0 {
		c.Epochs = DefaultEpochs
	}
	if c.ValidationRatio < 0 || c.ValidationRatio >= 1 {
		return fmt.Errorf("validation_ratio must be in [0, 1) (got %g)", c.ValidationRatio)
	}
	if c.LogEvery <= 0 {
		c.LogEvery = DefaultLogEvery
	}
	return nil
}
