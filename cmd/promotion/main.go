package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/aurelius/promotion/internal/config"
	"github.com/aurelius/promotion/internal/engine"
	"github.com/aurelius/promotion/internal/gates"
	"github.com/aurelius/promotion/internal/identity"
	httpapi "github.com/aurelius/promotion/internal/interfaces/http"
	"github.com/aurelius/promotion/internal/ops"
	"github.com/aurelius/promotion/internal/parity"
	"github.com/aurelius/promotion/internal/persistence/postgres"
	"github.com/aurelius/promotion/internal/persistence/scorecache"
	"github.com/aurelius/promotion/internal/readiness"
	"github.com/aurelius/promotion/internal/telemetry"
)

const (
	appName = "promotion"
	version = "v1.0.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Strategy promotion verification and readiness gating",
		Version: version,
		Long: `Promotion verifies trading strategies before deployment: deterministic
run identities, replay parity checks, dev/CRV/product trust gates,
lineage governance, and the weighted DROPS readiness scorecard.`,
	}
	rootCmd.PersistentFlags().String("config", "", "Path to YAML configuration file")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the promotion HTTP service",
		Long:  "Serves gate verification, readiness scoring, strategy status, health, and metrics endpoints",
		RunE:  runServe,
	}

	verifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "Run replay verification and evaluate a trust gate",
		Long:  "Executes the engine twice for the given spec, checks replay parity, and evaluates the requested gate over the resulting evidence",
		RunE:  runVerify,
	}
	verifyCmd.Flags().String("spec", "", "Path to canonical spec JSON (required)")
	verifyCmd.Flags().String("data", "", "Path to dataset file (required)")
	verifyCmd.Flags().String("data-source", "", "Dataset source label for provenance")
	verifyCmd.Flags().String("strategy-id", "", "Strategy identifier (required)")
	verifyCmd.Flags().String("gate", "product", "Gate type to evaluate (dev|crv|product)")
	verifyCmd.Flags().String("work-dir", "", "Working directory for run artifacts (default: temp)")

	scoreCmd := &cobra.Command{
		Use:   "score",
		Short: "Compute a readiness scorecard from a signals file",
		Long:  "Scores the DROPS readiness dimensions from a JSON signals file and prints the full scorecard",
		RunE:  runScore,
	}
	scoreCmd.Flags().String("signals", "", "Path to readiness signals JSON (required)")
	scoreCmd.Flags().String("strategy-id", "", "Strategy identifier (required)")

	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Run replay determinism verification only",
		Long:  "Executes primary and replay engine runs and prints the normalized metrics with the parity verdict",
		RunE:  runReplay,
	}
	replayCmd.Flags().String("spec", "", "Path to canonical spec JSON (required)")
	replayCmd.Flags().String("data", "", "Path to dataset file (required)")
	replayCmd.Flags().String("data-source", "", "Dataset source label for provenance")
	replayCmd.Flags().String("work-dir", "", "Working directory for run artifacts (default: temp)")

	rootCmd.AddCommand(serveCmd, verifyCmd, scoreCmd, replayCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path, _ = cmd.InheritedFlags().GetString("config")
	}
	return config.Load(path)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	scorer, err := readiness.NewScorer(cfg.Readiness)
	if err != nil {
		return err
	}

	tele := telemetry.NewRegistry()
	health := ops.NewHealth()

	runner := engine.NewProcessRunner(cfg.Engine).WithMetrics(tele)
	checker, err := parity.NewReplayChecker(runner, identity.NewBuilder(runner), cfg.Replay)
	if err != nil {
		return err
	}

	handlers := &httpapi.Handlers{
		Thresholds: cfg.Gates,
		Scorer:     scorer,
		Replay:     checker.WithMetrics(tele),
		WorkDir:    cfg.WorkDir,
		Ops:        health,
		Telemetry:  tele,
	}

	var store *postgres.Store
	if cfg.Postgres.DSN == "" {
		health.SetComponent("postgres", ops.StatusDegraded, "postgres_not_configured")
	} else if store, err = postgres.Open(cfg.Postgres.DSN); err != nil {
		health.SetComponent("postgres", ops.StatusDegraded, "postgres_unreachable")
		log.Error().Err(err).Msg("continuing without gate result persistence")
	} else {
		health.SetComponent("postgres", ops.StatusHealthy, "")
		handlers.GateStore = store.Gates()
		handlers.ReadyStore = store.Readiness()
		defer store.Close()
	}

	cache := scorecache.New(redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
		DB:   cfg.Redis.DB,
	}), cfg.Redis.TTL)
	if err := cache.Ping(cmd.Context()); err != nil {
		health.SetComponent("redis", ops.StatusDegraded, "redis_unreachable")
		log.Error().Err(err).Msg("continuing without scorecard cache")
	} else {
		health.SetComponent("redis", ops.StatusHealthy, "")
		handlers.Cache = cache
	}

	server, err := httpapi.NewServer(cfg.HTTP, handlers)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func runVerify(cmd *cobra.Command, args []string) error {
	strategyID, _ := cmd.Flags().GetString("strategy-id")
	gateFlag, _ := cmd.Flags().GetString("gate")
	if strategyID == "" {
		return fmt.Errorf("--strategy-id is required")
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	metrics, err := verifyFromFlags(cmd, cfg)
	if err != nil {
		return err
	}

	evidence := gates.Evidence{
		StrategyID:     strategyID,
		StrategyExists: true,
		Backtest:       metrics,
		Thresholds:     &cfg.Gates,
	}

	if gates.GateType(gateFlag) == gates.GateProduct {
		return printJSON(gates.DecideProduct(evidence))
	}
	result, err := gates.Evaluate(gates.GateType(gateFlag), evidence)
	if err != nil {
		return err
	}
	return printJSON(result)
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	metrics, err := verifyFromFlags(cmd, cfg)
	if err != nil {
		return err
	}
	return printJSON(metrics)
}

func verifyFromFlags(cmd *cobra.Command, cfg config.Config) (*engine.NormalizedMetrics, error) {
	specPath, _ := cmd.Flags().GetString("spec")
	dataPath, _ := cmd.Flags().GetString("data")
	dataSource, _ := cmd.Flags().GetString("data-source")
	workDir, _ := cmd.Flags().GetString("work-dir")

	if specPath == "" || dataPath == "" {
		return nil, fmt.Errorf("--spec and --data are required")
	}
	if workDir == "" {
		dir, err := os.MkdirTemp(cfg.WorkDir, "promotion-run-")
		if err != nil {
			return nil, fmt.Errorf("failed to create working directory: %w", err)
		}
		workDir = dir
	}

	specData, err := os.ReadFile(specPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read spec file %s: %w", specPath, err)
	}
	var spec identity.CanonicalSpec
	if err := json.Unmarshal(specData, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse spec file %s: %w", specPath, err)
	}

	runner := engine.NewProcessRunner(cfg.Engine)
	checker, err := parity.NewReplayChecker(runner, identity.NewBuilder(runner), cfg.Replay)
	if err != nil {
		return nil, err
	}
	return checker.Verify(cmd.Context(), spec, dataSource, dataPath, workDir)
}

func runScore(cmd *cobra.Command, args []string) error {
	signalsPath, _ := cmd.Flags().GetString("signals")
	strategyID, _ := cmd.Flags().GetString("strategy-id")
	if signalsPath == "" || strategyID == "" {
		return fmt.Errorf("--signals and --strategy-id are required")
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(signalsPath)
	if err != nil {
		return fmt.Errorf("failed to read signals file %s: %w", signalsPath, err)
	}
	var signals readiness.Signals
	if err := json.Unmarshal(data, &signals); err != nil {
		return fmt.Errorf("failed to parse signals file %s: %w", signalsPath, err)
	}

	scorer, err := readiness.NewScorer(cfg.Readiness)
	if err != nil {
		return err
	}
	return printJSON(scorer.Score(strategyID, signals, previousScorecard(cmd.Context(), cfg, strategyID)))
}

// previousScorecard best-effort loads the prior scorecard so CLI scoring
// reports the same transition deltas the service would.
func previousScorecard(ctx context.Context, cfg config.Config, strategyID string) *readiness.Payload {
	if cfg.Redis.Addr == "" {
		return nil
	}
	cache := scorecache.New(redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
		DB:   cfg.Redis.DB,
	}), cfg.Redis.TTL)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := cache.Ping(pingCtx); err != nil {
		return nil
	}
	previous, err := cache.Get(ctx, strategyID)
	if err != nil {
		return nil
	}
	return previous
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
