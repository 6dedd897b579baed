// Package main provides the lncnn command: train and evaluate the digit
// classifier.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/born-ml/lncnn/internal/dataset"
	"github.com/born-ml/lncnn/internal/network"
	"github.com/born-ml/lncnn/internal/trainer"
)

const version = "v0.1.0"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("lncnn %s\n", version)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, log.Default()); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Fatalf("lncnn: %v", err)
	}
}

type options struct {
	trainPath  string
	testPath   string
	idxDir     string
	synthetic  int
	rows       int
	cols       int
	samples    int
	epochs     int
	filters    int
	filterSize int
	stride     int
	poolWindow int
	poolStride int
	classes    int
	lr         float64
	scale      float64
	seed       int64
	logEvery   int
	validation float64
	savePath   string
	loadPath   string
	print      bool
}

func parseFlags(args []string, output io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("lncnn", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&o.trainPath, "train", "", "Training set CSV (label,pixel...)")
	fs.StringVar(&o.testPath, "test", "", "Test set CSV (label,pixel...)")
	fs.StringVar(&o.idxDir, "idx-dir", "", "Directory containing the official MNIST IDX files")
	fs.IntVar(&o.synthetic, "synthetic", 0, "Generate this many synthetic images instead of loading data")
	fs.IntVar(&o.rows, "rows", 28, "Image rows")
	fs.IntVar(&o.cols, "cols", 28, "Image cols")
	fs.IntVar(&o.samples, "samples", 0, "Max samples to load per set (0 = all)")
	fs.IntVar(&o.epochs, "epochs", 3, "Number of training epochs (0 = evaluate only)")
	fs.IntVar(&o.filters, "filters", 8, "Convolution filters")
	fs.IntVar(&o.filterSize, "filter-size", 5, "Convolution filter size")
	fs.IntVar(&o.stride, "stride", 1, "Convolution stride")
	fs.IntVar(&o.poolWindow, "pool-window", 3, "Max pool window")
	fs.IntVar(&o.poolStride, "pool-stride", 2, "Max pool stride")
	fs.IntVar(&o.classes, "classes", 10, "Number of output classes")
	fs.Float64Var(&o.lr, "lr", 0.1, "Learning rate")
	fs.Float64Var(&o.scale, "scale", 25600, "Divisor applied to raw pixel values")
	fs.Int64Var(&o.seed, "seed", 123, "Random seed for initialization and shuffling")
	fs.IntVar(&o.logEvery, "log-every", trainer.DefaultLogEvery, "Log throughput every N images")
	fs.Float64Var(&o.validation, "validation", 0.2, "Held-out fraction when no test set is given")
	fs.StringVar(&o.savePath, "save", "", "Write a snapshot after every epoch to this path")
	fs.StringVar(&o.loadPath, "load", "", "Start from a snapshot instead of a fresh network")
	fs.BoolVar(&o.print, "print", false, "Print the network layers")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if fs.NArg() > 0 {
		return o, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return o, nil
}

func run(ctx context.Context, args []string, stdout io.Writer, logger *log.Logger) error {
	o, err := parseFlags(args, stdout)
	if err != nil {
		return err
	}

	train, test, err := loadData(o)
	if err != nil {
		return err
	}
	logger.Printf("loaded train=%d test=%d", len(train), len(test))

	net, err := buildNetwork(o)
	if err != nil {
		return err
	}
	if o.print {
		fmt.Fprintln(stdout, net)
	}

	if o.epochs > 0 {
		report, err := trainer.Run(ctx, net, train, test, trainer.Config{
			Epochs:          o.epochs,
			Seed:            o.seed,
			ValidationRatio: o.validation,
			LogEvery:        o.logEvery,
			CheckpointPath:  o.savePath,
		}, logger)
		if err != nil {
			return err
		}
		final := report.Final()
		fmt.Fprintf(stdout, "Success rate after %d epochs: %.4f\n", final.Epoch, final.TestAcc)
		return nil
	}

	// Evaluate only.
	if len(test) == 0 {
		test = train
	}
	acc, err := net.Evaluate(test)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Success rate: %.4f\n", acc)
	return nil
}

func buildNetwork(o options) (*network.Network, error) {
	if o.loadPath != "" {
		net, err := network.Load(o.loadPath)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", o.loadPath, err)
		}
		if net.Rows() != o.rows || net.Cols() != o.cols {
			return nil, fmt.Errorf("%w: snapshot expects %dx%d images, data is %dx%d",
				network.ErrInputShape, net.Rows(), net.Cols(), o.rows, o.cols)
		}
		return net, nil
	}
	return network.NewBuilder(o.rows, o.cols, o.scale, o.seed).
		AddConvolution(o.filters, o.filterSize, o.stride, o.lr).
		AddMaxPool(o.poolWindow, o.poolStride).
		AddFullyConnected(o.classes, o.lr).
		Build()
}

func loadData(o options) (train, test []dataset.Image, err error) {
	switch {
	case o.synthetic > 0:
		train, err = dataset.Synthetic(o.synthetic, o.rows, o.cols, o.classes, o.seed)
		return train, nil, err

	case o.idxDir != "":
		train, err = dataset.LoadIDX(
			filepath.Join(o.idxDir, dataset.TrainImagesFile),
			filepath.Join(o.idxDir, dataset.TrainLabelsFile),
			o.samples)
		if err != nil {
			return nil, nil, err
		}
		test, err = dataset.LoadIDX(
			filepath.Join(o.idxDir, dataset.TestImagesFile),
			filepath.Join(o.idxDir, dataset.TestLabelsFile),
			o.samples)
		if errors.Is(err, os.ErrNotExist) {
			// Training files only; hold out part of them instead.
			return train, nil, nil
		}
		return train, test, err

	case o.trainPath != "":
		train, err = dataset.LoadCSV(o.trainPath, o.rows, o.cols, o.samples)
		if err != nil {
			return nil, nil, err
		}
		if o.testPath != "" {
			test, err = dataset.LoadCSV(o.testPath, o.rows, o.cols, o.samples)
		}
		return train, test, err

	default:
		return nil, nil, errors.New("no data: set -train, -idx-dir or -synthetic")
	}
}
