package network

import (
	"encoding/json"
	"fmt"
	"io"
	"math/rand"

	"github.com/born-ml/lncnn/internal/nn"
	"github.com/born-ml/lncnn/internal/serialization"
	"github.com/born-ml/lncnn/internal/tensor"
)

const modelType = "lncnn.network"

// Layer kinds recorded in a snapshot.
const (
	KindConv2D    = "conv2d"
	KindMaxPool2D = "maxpool2d"
	KindLinear    = "linear"
)

// Description is the architecture of a network, enough to rebuild it
// before its parameters are loaded.
type Description struct {
	Rows          int                `json:"rows"`
	Cols          int                `json:"cols"`
	ScalingFactor float64            `json:"scaling_factor"`
	Layers        []LayerDescription `json:"layers"`
}

// LayerDescription describes one layer. Fields not used by Kind are zero.
type LayerDescription struct {
	Kind         string  `json:"kind"`
	InChannels   int     `json:"in_channels,omitempty"`
	InRows       int     `json:"in_rows,omitempty"`
	InCols       int     `json:"in_cols,omitempty"`
	Filters      int     `json:"filters,omitempty"`
	FilterSize   int     `json:"filter_size,omitempty"`
	Window       int     `json:"window,omitempty"`
	Stride       int     `json:"stride,omitempty"`
	Inputs       int     `json:"inputs,omitempty"`
	Outputs      int     `json:"outputs,omitempty"`
	LearningRate float64 `json:"learning_rate,omitempty"`
}

// Describe returns the network's architecture.
func (n *Network) Describe() Description {
	d := Description{
		Rows:          n.rows,
		Cols:          n.cols,
		ScalingFactor: n.scalingFactor,
		Layers:        make([]LayerDescription, 0, n.model.Len()),
	}
	for i := 0; i < n.model.Len(); i++ {
		d.Layers = append(d.Layers, describeLayer(n.model.Layer(i)))
	}
	return d
}

func describeLayer(layer nn.Layer) LayerDescription {
	in := layer.InputDims()
	switch l := layer.(type) {
	case *nn.Conv2D:
		return LayerDescription{
			Kind:         KindConv2D,
			InChannels:   in.Channels,
			InRows:       in.Rows,
			InCols:       in.Cols,
			Filters:      l.NumFilters(),
			FilterSize:   l.FilterSize(),
			Stride:       l.Stride(),
			LearningRate: l.LearningRate(),
		}
	case *nn.MaxPool2D:
		return LayerDescription{
			Kind:       KindMaxPool2D,
			InChannels: in.Channels,
			InRows:     in.Rows,
			InCols:     in.Cols,
			Window:     l.Window(),
			Stride:     l.Stride(),
		}
	case *nn.Linear:
		return LayerDescription{
			Kind:         KindLinear,
			Inputs:       in.Elements,
			Outputs:      l.OutputDims().Elements,
			LearningRate: l.LearningRate(),
		}
	default:
		panic(fmt.Sprintf("network: cannot describe layer %T", layer))
	}
}

// FromDescription builds a network with freshly initialized parameters.
func FromDescription(d Description, seed int64) (*Network, error) {
	rng := rand.New(rand.NewSource(seed))
	layers := make([]nn.Layer, 0, len(d.Layers))
	for i, ld := range d.Layers {
		var (
			layer nn.Layer
			err   error
		)
		switch ld.Kind {
		case KindConv2D:
			layer, err = nn.NewConv2D(ld.FilterSize, ld.Stride, ld.Filters, ld.InChannels, ld.InRows, ld.InCols, ld.LearningRate, rng)
		case KindMaxPool2D:
			layer, err = nn.NewMaxPool2D(ld.Stride, ld.Window, ld.InChannels, ld.InRows, ld.InCols)
		case KindLinear:
			layer, err = nn.NewLinear(ld.Inputs, ld.Outputs, ld.LearningRate, rng)
		default:
			err = fmt.Errorf("%w: unknown layer kind %q", ErrInvalidConfig, ld.Kind)
		}
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		layers = append(layers, layer)
	}
	return New(d.Rows, d.Cols, d.ScalingFactor, layers...)
}

// StateDict returns every layer's parameters, keyed "<layer>.<name>".
func (n *Network) StateDict() map[string]tensor.Grid {
	return n.model.StateDict()
}

// LoadStateDict replaces every layer's parameters.
func (n *Network) LoadStateDict(stateDict map[string]tensor.Grid) error {
	return n.model.LoadStateDict(stateDict)
}

// Encode writes the architecture and parameters to w. ckpt may be nil.
func (n *Network) Encode(w io.Writer, ckpt *serialization.CheckpointMeta) error {
	header, err := n.snapshotHeader(ckpt)
	if err != nil {
		return err
	}
	return serialization.Write(w, n.StateDict(), header)
}

// Save writes the architecture and parameters to path.
func (n *Network) Save(path string) error {
	return n.SaveCheckpoint(path, nil)
}

// SaveCheckpoint writes the network and training progress to path.
func (n *Network) SaveCheckpoint(path string, ckpt *serialization.CheckpointMeta) error {
	header, err := n.snapshotHeader(ckpt)
	if err != nil {
		return err
	}
	return serialization.WriteFile(path, n.StateDict(), header)
}

func (n *Network) snapshotHeader(ckpt *serialization.CheckpointMeta) (serialization.Header, error) {
	desc, err := json.Marshal(n.Describe())
	if err != nil {
		return serialization.Header{}, fmt.Errorf("failed to marshal description: %w", err)
	}
	return serialization.Header{
		ModelType:      modelType,
		Model:          desc,
		CheckpointMeta: ckpt,
	}, nil
}

// Decode reads a network written by Encode.
func Decode(r io.Reader) (*Network, error) {
	stateDict, header, err := serialization.Read(r)
	if err != nil {
		return nil, err
	}
	return fromSnapshot(stateDict, header)
}

// Load reads a network written by Save or SaveCheckpoint.
func Load(path string) (*Network, error) {
	stateDict, header, err := serialization.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return fromSnapshot(stateDict, header)
}

func fromSnapshot(stateDict map[string]tensor.Grid, header serialization.Header) (*Network, error) {
	if header.ModelType != modelType {
		return nil, fmt.Errorf("%w: snapshot holds %q, want %q", ErrInvalidConfig, header.ModelType, modelType)
	}
	var desc Description
	if err := json.Unmarshal(header.Model, &desc); err != nil {
		return nil, fmt.Errorf("failed to parse description: %w", err)
	}
	net, err := FromDescription(desc, 0)
	if err != nil {
		return nil, err
	}
	if err := net.LoadStateDict(stateDict); err != nil {
		return nil, err
	}
	return net, nil
}
