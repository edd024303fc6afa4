package engine

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/aurelius/promotion/internal/telemetry"
)

// Runner invokes the external simulation engine. Implementations must be
// safe for concurrent use across independent output directories.
type Runner interface {
	// Run executes one backtest into an isolated output directory.
	Run(ctx context.Context, specPath, dataPath, outDir string) error
	// Version returns the engine's self-reported version string.
	Version(ctx context.Context) (string, error)
}

// ProcessRunnerConfig controls external engine process invocation.
type ProcessRunnerConfig struct {
	Binary     string        `yaml:"binary"`
	RunTimeout time.Duration `yaml:"run_timeout"`
}

// DefaultProcessRunnerConfig returns conservative invocation defaults.
func DefaultProcessRunnerConfig() ProcessRunnerConfig {
	return ProcessRunnerConfig{
		Binary:     "quant_engine",
		RunTimeout: 5 * time.Minute,
	}
}

// ProcessRunner launches the engine binary as a bounded subprocess. A
// circuit breaker shields callers from hammering a broken engine install;
// an open breaker surfaces as an invocation failure, which upstream maps
// to a failed replay rather than a crash.
type ProcessRunner struct {
	config  ProcessRunnerConfig
	breaker *gobreaker.CircuitBreaker
	metrics *telemetry.Registry
}

// NewProcessRunner creates a runner for the configured engine binary.
func NewProcessRunner(config ProcessRunnerConfig) *ProcessRunner {
	if config.Binary == "" {
		config.Binary = DefaultProcessRunnerConfig().Binary
	}
	if config.RunTimeout <= 0 {
		config.RunTimeout = DefaultProcessRunnerConfig().RunTimeout
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "engine",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).
				Str("from", from.String()).Str("to", to.String()).
				Msg("engine circuit breaker state change")
		},
	})

	return &ProcessRunner{config: config, breaker: breaker}
}

// WithMetrics attaches the service metrics registry. Nil-safe to skip
// for one-shot invocations.
func (pr *ProcessRunner) WithMetrics(metrics *telemetry.Registry) *ProcessRunner {
	pr.metrics = metrics
	return pr
}

func (pr *ProcessRunner) record(result string, elapsed time.Duration) {
	if pr.metrics == nil {
		return
	}
	pr.metrics.EngineRuns.WithLabelValues(result).Inc()
	pr.metrics.EngineDuration.Observe(elapsed.Seconds())
}

// Run executes `<binary> backtest --spec ... --data ... --out ...` with the
// configured timeout. Timeouts and non-zero exits are returned as errors;
// the process is killed when the deadline passes.
func (pr *ProcessRunner) Run(ctx context.Context, specPath, dataPath, outDir string) error {
	started := time.Now()
	result := "success"

	_, err := pr.breaker.Execute(func() (interface{}, error) {
		runCtx, cancel := context.WithTimeout(ctx, pr.config.RunTimeout)
		defer cancel()

		start := time.Now()
		cmd := exec.CommandContext(runCtx, pr.config.Binary,
			"backtest",
			"--spec", specPath,
			"--data", dataPath,
			"--out", outDir,
		)
		output, err := cmd.CombinedOutput()
		elapsed := time.Since(start)

		if runCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("engine run timed out after %s", pr.config.RunTimeout)
		}
		if err != nil {
			log.Error().Err(err).
				Str("binary", pr.config.Binary).
				Dur("elapsed", elapsed).
				Str("output", truncate(string(output), 512)).
				Msg("engine backtest failed")
			return nil, fmt.Errorf("engine backtest failed: %w", err)
		}

		log.Debug().Str("out_dir", outDir).Dur("elapsed", elapsed).Msg("engine backtest complete")
		return nil, nil
	})
	if err != nil {
		result = "failure"
	}
	pr.record(result, time.Since(started))
	return err
}

// Version queries the engine with --version. Callers treat any failure as
// the literal "unknown" version; this method still reports the error so
// the degradation is logged exactly once at the call site.
func (pr *ProcessRunner) Version(ctx context.Context) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(runCtx, pr.config.Binary, "--version")
	output, err := cmd.CombinedOutput()
	version := strings.TrimSpace(string(output))
	if err != nil {
		return "", fmt.Errorf("engine version query failed: %w", err)
	}
	if version == "" {
		return "", fmt.Errorf("engine reported empty version")
	}
	return version, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
