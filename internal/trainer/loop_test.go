package trainer

import (
	"bytes"
	"context"
	"log"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/lncnn/internal/dataset"
	"github.com/born-ml/lncnn/internal/network"
	"github.com/born-ml/lncnn/internal/serialization"
)

func newNetwork(t *testing.T) *network.Network {
	t.Helper()
	net, err := network.NewBuilder(12, 12, 255, 1).
		AddConvolution(2, 3, 1, 0.05).
		AddMaxPool(2, 2).
		AddFullyConnected(4, 0.05).
		Build()
	require.NoError(t, err)
	return net
}

func synthetic(t *testing.T, n int, seed int64) []dataset.Image {
	t.Helper()
	images, err := dataset.Synthetic(n, 12, 12, 4, seed)
	require.NoError(t, err)
	return images
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultEpochs, cfg.Epochs)
	assert.Equal(t, DefaultLogEvery, cfg.LogEvery)

	bad := []Config{
		{Epochs: -1},
		{ValidationRatio: 1},
		{ValidationRatio: -0.1},
	}
	for _, c := range bad {
		assert.Error(t, c.Validate(), "%+v", c)
	}

	var nilCfg *Config
	assert.Error(t, nilCfg.Validate())
}

func TestRun(t *testing.T) {
	net := newNetwork(t)
	train := synthetic(t, 20, 1)
	test := synthetic(t, 8, 2)
	order := dataset.Labels(train)

	var logs bytes.Buffer
	logger := log.New(&logs, "", 0)
	ckpt := filepath.Join(t.TempDir(), "ckpt.lncn")

	report, err := Run(context.Background(), net, train, test, Config{
		Epochs:         2,
		Seed:           3,
		LogEvery:       8,
		CheckpointPath: ckpt,
	}, logger)
	require.NoError(t, err)

	require.Len(t, report.Epochs, 2)
	for i, er := range report.Epochs {
		assert.Equal(t, i+1, er.Epoch)
		assert.GreaterOrEqual(t, er.Loss, 0.0)
		assert.True(t, er.TestAcc >= 0 && er.TestAcc <= 1)
		assert.True(t, er.TrainAcc >= 0 && er.TrainAcc <= 1)
	}
	assert.Equal(t, report.Epochs[1], report.Final())

	// The caller's slice keeps its order.
	assert.Equal(t, order, dataset.Labels(train))

	out := logs.String()
	assert.Contains(t, out, "epoch=1 images=8/20")
	assert.Contains(t, out, "epoch=1 images=16/20")
	assert.Contains(t, out, "epoch=2 loss=")
	assert.Contains(t, out, "images_per_sec=")

	_, header, err := serialization.ReadFile(ckpt)
	require.NoError(t, err)
	require.NotNil(t, header.CheckpointMeta)
	assert.Equal(t, 2, header.CheckpointMeta.Epoch)

	loaded, err := network.Load(ckpt)
	require.NoError(t, err)
	assert.Equal(t, net.StateDict(), loaded.StateDict())
}

// TestRun_Deterministic checks that equal seeds give equal training.
func TestRun_Deterministic(t *testing.T) {
	run := func() *network.Network {
		net := newNetwork(t)
		_, err := Run(context.Background(), net, synthetic(t, 16, 1), nil,
			Config{Epochs: 2, Seed: 5}, log.New(&bytes.Buffer{}, "", 0))
		require.NoError(t, err)
		return net
	}
	assert.Equal(t, run().StateDict(), run().StateDict())
}

func TestRun_ValidationSplit(t *testing.T) {
	net := newNetwork(t)
	var logs bytes.Buffer

	report, err := Run(context.Background(), net, synthetic(t, 10, 1), nil,
		Config{Epochs: 1, ValidationRatio: 0.2, LogEvery: 4}, log.New(&logs, "", 0))
	require.NoError(t, err)
	require.Len(t, report.Epochs, 1)
	assert.Contains(t, logs.String(), "images=4/8")
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := Run(ctx, newNetwork(t), synthetic(t, 4, 1), nil, Config{Epochs: 3}, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, report.Epochs)
	assert.Equal(t, EpochReport{}, report.Final())
}

func TestRun_Errors(t *testing.T) {
	net := newNetwork(t)

	_, err := Run(context.Background(), net, nil, nil, Config{}, nil)
	assert.ErrorIs(t, err, ErrNoTrainingData)

	_, err = Run(context.Background(), net, synthetic(t, 2, 1), nil, Config{Epochs: -1}, nil)
	assert.Error(t, err)

	// Images of the wrong size are rejected by the network.
	wrong, err := dataset.Synthetic(2, 5, 5, 2, 1)
	require.NoError(t, err)
	_, err = Run(context.Background(), net, wrong, nil, Config{}, log.New(&bytes.Buffer{}, "", 0))
	assert.ErrorIs(t, err, network.ErrInputShape)
}
