package parity

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/aurelius/promotion/internal/engine"
	"github.com/aurelius/promotion/internal/identity"
	"github.com/aurelius/promotion/internal/telemetry"
)

// ReplayCheckerConfig controls the determinism verification pass.
type ReplayCheckerConfig struct {
	Tolerances Tolerances `yaml:"tolerances"`
	SkipReplay bool       `yaml:"skip_replay"`
	// LaunchesPerSecond bounds how fast engine processes are spawned when
	// many verifications run concurrently. Zero disables pacing.
	LaunchesPerSecond float64 `yaml:"launches_per_second"`
}

// DefaultReplayCheckerConfig returns the canonical replay configuration.
func DefaultReplayCheckerConfig() ReplayCheckerConfig {
	return ReplayCheckerConfig{
		Tolerances:        DefaultTolerances(),
		SkipReplay:        false,
		LaunchesPerSecond: 4,
	}
}

// ReplayChecker runs the engine twice for the same identity and compares
// the normalized outputs within per-metric tolerances. It owns the full
// evidence assembly for one verification: identity, primary run, replay
// run, parity verdict, and lineage fields.
type ReplayChecker struct {
	runner  engine.Runner
	builder *identity.Builder
	config  ReplayCheckerConfig
	limiter *rate.Limiter
	metrics *telemetry.Registry
}

// NewReplayChecker creates a checker over the given engine runner.
func NewReplayChecker(runner engine.Runner, builder *identity.Builder, config ReplayCheckerConfig) (*ReplayChecker, error) {
	if err := config.Tolerances.Validate(); err != nil {
		return nil, err
	}

	var limiter *rate.Limiter
	if config.LaunchesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.LaunchesPerSecond), 1)
	}

	return &ReplayChecker{
		runner:  runner,
		builder: builder,
		config:  config,
		limiter: limiter,
	}, nil
}

// WithMetrics attaches the service metrics registry. Nil-safe to skip
// for one-shot invocations.
func (rc *ReplayChecker) WithMetrics(metrics *telemetry.Registry) *ReplayChecker {
	rc.metrics = metrics
	return rc
}

// Verify executes the primary run and, unless disabled, the replay run in
// isolated subdirectories of workDir, then returns the primary run's
// normalized metrics with the parity verdict and lineage evidence filled
// in. Only a failed primary run returns an error; a failed replay is a
// failed parity check, never an escaping error.
func (rc *ReplayChecker) Verify(ctx context.Context, spec identity.CanonicalSpec, dataSource, dataPath, workDir string) (*engine.NormalizedMetrics, error) {
	runID, err := rc.builder.Build(ctx, spec, dataPath)
	if err != nil {
		return nil, err
	}

	canonical, err := spec.CanonicalJSON()
	if err != nil {
		return nil, err
	}
	specPath := filepath.Join(workDir, "spec.json")
	if err := os.WriteFile(specPath, canonical, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write canonical spec: %w", err)
	}

	primary, err := rc.runOnce(ctx, specPath, dataPath, filepath.Join(workDir, "primary"))
	if err != nil {
		return nil, err
	}

	metrics := engine.Normalize(primary.Stats, primary.EquityCurve, primary.Trades)
	metrics.CRVPassed = primary.HasCRV && primary.CRV.Passed
	metrics.CRVViolations = primary.CRV.Violations

	check := engine.SkippedParityCheck()
	if !rc.config.SkipReplay {
		check = rc.replayAndCompare(ctx, specPath, dataPath, workDir, metrics)
	}
	metrics.ParityCheck = check
	metrics.ReplayPass = check.Passed
	if rc.metrics != nil && len(check.Violations) > 0 {
		rc.metrics.ParityViolations.Add(float64(len(check.Violations)))
	}

	metrics.RunIdentity = runID
	metrics.DataProvenance = engine.DataProvenance{
		Source:   dataSourceOrDefault(dataSource),
		Path:     dataPath,
		DataHash: runID.DataHash,
	}
	metrics.TransformationLineage = []engine.LineageStep{
		{Step: "build_spec", Details: "strategy -> canonical engine spec"},
		{Step: "execute_engine", Details: "external engine backtest"},
		{Step: "replay_compare", Details: "second invocation + tolerance comparison"},
		{Step: "normalize_metrics", Details: "stats -> normalized metrics schema"},
	}
	metrics.PolicyOutcomes = engine.PolicyOutcomes{
		CRVPassed:  metrics.CRVPassed,
		ReplayPass: metrics.ReplayPass,
		Recorded:   true,
	}
	metrics.ArtifactLinks = engine.ArtifactNames()
	metrics.ExecutionMode = "engine"

	log.Info().
		Str("spec_hash", runID.SpecHash).
		Bool("parity_checked", check.Checked).
		Bool("parity_passed", check.Passed).
		Int("violations", len(check.Violations)).
		Msg("replay determinism verification complete")

	return &metrics, nil
}

func (rc *ReplayChecker) replayAndCompare(ctx context.Context, specPath, dataPath, workDir string, primary engine.NormalizedMetrics) engine.ParityCheck {
	replay, err := rc.runOnce(ctx, specPath, dataPath, filepath.Join(workDir, "replay"))
	if err != nil {
		log.Warn().Err(err).Msg("replay invocation failed, recording failed parity check")
		return engine.FailedReplayCheck()
	}

	replayMetrics := engine.Normalize(replay.Stats, replay.EquityCurve, replay.Trades)
	return Compare(primary, replayMetrics, rc.config.Tolerances)
}

func (rc *ReplayChecker) runOnce(ctx context.Context, specPath, dataPath, outDir string) (engine.RunArtifacts, error) {
	if rc.limiter != nil {
		if err := rc.limiter.Wait(ctx); err != nil {
			return engine.RunArtifacts{}, fmt.Errorf("engine launch pacing interrupted: %w", err)
		}
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return engine.RunArtifacts{}, fmt.Errorf("failed to create run directory %s: %w", outDir, err)
	}
	if err := rc.runner.Run(ctx, specPath, dataPath, outDir); err != nil {
		return engine.RunArtifacts{}, err
	}
	return engine.ReadArtifacts(outDir)
}

func dataSourceOrDefault(source string) string {
	if source == "" {
		return "default"
	}
	return source
}
