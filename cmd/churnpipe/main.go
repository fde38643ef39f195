package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/dletelier/churnpipe/artifact"
	"github.com/dletelier/churnpipe/config"
	"github.com/dletelier/churnpipe/pipeline"
	"github.com/dletelier/churnpipe/record"
	pkgerrors "github.com/dletelier/churnpipe/pkg/errors"
	pkglog "github.com/dletelier/churnpipe/pkg/log"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("churnpipe failed", pkglog.ErrAttr(err))
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load(args)
	if err != nil {
		return err
	}
	pkglog.SetupLogger(cfg.LogLevel)

	zl := zerolog.New(os.Stderr).With().Timestamp().Logger()
	pkgerrors.SetWarningHandler(pkgerrors.ZerologWarningHandler(zl))

	slog.Info("loading artifacts",
		slog.String(pkglog.ModelPathKey, cfg.ModelPath),
		slog.String(pkglog.EncodersPathKey, cfg.EncodersPath))
	store, err := artifact.Load(cfg.ModelPath, cfg.EncodersPath)
	if err != nil {
		return err
	}

	if cfg.Check {
		return check(store)
	}

	var opts []pipeline.Option
	if cfg.ScoreTimeout > 0 {
		opts = append(opts, pipeline.WithScoreTimeout(cfg.ScoreTimeout))
	}
	engine, err := pipeline.NewEngine(store, opts...)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if cfg.Batch {
		return runBatch(ctx, engine, cfg, store.Encoders.Target)
	}
	return runSingle(ctx, engine, cfg, store.Encoders.Target)
}

// check verifies that the artifacts load and agree with each other,
// scores nothing, and reports the outcome on stdout.
func check(store *artifact.Store) error {
	model, ok := store.Model.(*artifact.Ensemble)
	if ok {
		slog.Info("artifacts verified",
			slog.String(pkglog.ModelNameKey, model.Name()),
			slog.String(pkglog.ModelVersionKey, model.Version()),
			slog.Int(pkglog.FeaturesKey, model.NumFeatures()),
			slog.Int(pkglog.EncodersKey, store.Encoders.Len()))
	}
	fmt.Println("artifacts OK")
	fmt.Printf("  model:    %s\n", store.ModelPath())
	fmt.Printf("  encoders: %s\n", store.EncodersPath())
	return nil
}

func runSingle(ctx context.Context, engine *pipeline.Engine, cfg *config.Config, target string) error {
	rec, err := record.LoadSingle(cfg.CustomerData, target)
	if err != nil {
		return err
	}
	res, err := engine.Predict(ctx, rec, cfg.Threshold)
	if err != nil {
		return err
	}

	out, cleanup, err := openOutput(cfg.Output)
	if err != nil {
		return err
	}
	defer cleanup()
	return pipeline.WriteResult(out, res)
}

func runBatch(ctx context.Context, engine *pipeline.Engine, cfg *config.Config, target string) error {
	stream, err := record.Open(cfg.CustomerData, record.ModeBatch, target)
	if err != nil {
		return err
	}
	defer stream.Close()

	start := time.Now()
	report, runErr := engine.PredictBatch(ctx, stream, cfg.Threshold)
	if report == nil {
		return runErr
	}
	slog.Info("batch finished",
		slog.Int(pkglog.SucceededKey, report.Succeeded()),
		slog.Int(pkglog.FailedKey, report.Failed()),
		slog.Int64(pkglog.DurationMsKey, time.Since(start).Milliseconds()))

	// Flush whatever was scored even when the source terminated early.
	out, cleanup, err := openOutput(cfg.Output)
	if err != nil {
		if runErr != nil {
			return runErr
		}
		return err
	}
	defer cleanup()
	if err := pipeline.WriteReport(out, report); err != nil {
		return err
	}
	return runErr
}

// openOutput resolves the result sink. An empty path gets a timestamped
// file in the working directory; "-" writes to stdout.
func openOutput(path string) (*os.File, func(), error) {
	if path == "-" {
		return os.Stdout, func() {}, nil
	}
	if path == "" {
		path = pipeline.DefaultOutputPath(time.Now())
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, pkgerrors.Wrapf(err, "creating output file %s", path)
	}
	slog.Info("writing results", slog.String("output", path))
	return f, func() { _ = f.Close() }, nil
}
