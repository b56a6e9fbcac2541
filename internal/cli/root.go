// Package cli implements the nanospectrum command line.
package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ironsheep/nanospectrum/internal/artifact"
	"github.com/ironsheep/nanospectrum/internal/config"
	"github.com/ironsheep/nanospectrum/internal/evaluation"
	"github.com/ironsheep/nanospectrum/internal/logging"
	"github.com/ironsheep/nanospectrum/internal/matcher"
	"github.com/ironsheep/nanospectrum/internal/predictor"
)

// BuildInfo is stamped into the binary at link time.
type BuildInfo struct {
	Version   string
	BuildTime string
	GitCommit string
}

// app carries the state shared by every command once the root has run.
type app struct {
	build BuildInfo

	cfgFile  string
	logLevel string

	cfg    *config.Config
	logger *slog.Logger
}

// NewRootCmd builds the command tree.
func NewRootCmd(build BuildInfo) *cobra.Command {
	a := &app{build: build}

	root := &cobra.Command{
		Use:   "nanospectrum",
		Short: "Predict and evaluate nanoparticle absorption spectra from micrographs",
		Long: `nanospectrum extracts particle morphology from electron micrographs,
predicts absorption spectra with registered predictors, digitizes reference
curves from published figures and scores predictors against them.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is ./nanospectrum.yaml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(
		newEvaluateCmd(a),
		newPredictCmd(a),
		newExtractCmd(a),
		newDigitizeCmd(a),
		newModelsCmd(a),
		newServeCmd(a),
		newVersionCmd(a),
	)
	return root
}

// Execute runs the command line with ctx.
func Execute(ctx context.Context, build BuildInfo) error {
	return NewRootCmd(build).ExecuteContext(ctx)
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}

	logger, err := logging.NewWriter(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	a.cfg, a.logger = cfg, logger
	if cfg.Source != "" {
		logger.Debug("config loaded", "path", cfg.Source)
	}
	return nil
}

func (a *app) registry(ctx context.Context) (*predictor.Registry, error) {
	store, err := artifact.New(ctx, a.cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact store: %w", err)
	}
	return predictor.NewRegistry(a.cfg.Registry, store, a.cfg.Morphology, a.logger), nil
}

func (a *app) orchestrator(reg *predictor.Registry) *evaluation.Orchestrator {
	return evaluation.New(reg, matcher.New(), a.cfg.Evaluation, a.logger)
}
