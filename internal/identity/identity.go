package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
)

// ErrDataNotFound indicates the resolved dataset path does not exist. An
// unresolvable dataset is a hard failure, never silently defaulted.
var ErrDataNotFound = errors.New("backtest data file not found")

// VersionProvider reports the external engine's self-reported version.
type VersionProvider interface {
	Version(ctx context.Context) (string, error)
}

// RunIdentity uniquely and reproducibly names one backtest execution.
// Immutable once built; embedded in normalized metrics for audit lookups.
type RunIdentity struct {
	SpecHash      string `json:"spec_hash"`
	DataHash      string `json:"data_hash"`
	Seed          string `json:"seed"`
	EngineVersion string `json:"engine_version"`
}

// Empty reports whether the identity carries no evidence at all.
func (r RunIdentity) Empty() bool {
	return r.SpecHash == "" && r.DataHash == "" && r.Seed == "" && r.EngineVersion == ""
}

// Builder constructs run identities from canonical specs and datasets.
type Builder struct {
	versions VersionProvider
}

// NewBuilder creates an identity builder. The version provider is queried
// once per build; failures degrade to the literal "unknown".
func NewBuilder(versions VersionProvider) *Builder {
	return &Builder{versions: versions}
}

// Build computes the identity tuple for one (spec, dataset) pair. Two calls
// with identical inputs produce byte-identical identities.
func (b *Builder) Build(ctx context.Context, spec CanonicalSpec, dataPath string) (RunIdentity, error) {
	canonical, err := spec.CanonicalJSON()
	if err != nil {
		return RunIdentity{}, err
	}

	dataHash, err := HashFile(dataPath)
	if err != nil {
		return RunIdentity{}, err
	}

	return RunIdentity{
		SpecHash:      HashBytes(canonical),
		DataHash:      dataHash,
		Seed:          strconv.FormatInt(spec.Seed, 10),
		EngineVersion: b.engineVersion(ctx),
	}, nil
}

func (b *Builder) engineVersion(ctx context.Context) string {
	if b.versions == nil {
		return "unknown"
	}
	version, err := b.versions.Version(ctx)
	if err != nil || version == "" {
		log.Warn().Err(err).Msg("engine version query failed, recording unknown")
		return "unknown"
	}
	return version
}

// HashBytes returns the hex SHA-256 of the given content.
func HashBytes(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// HashFile returns the hex SHA-256 of a file's content (not its path).
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrDataNotFound, path)
		}
		return "", fmt.Errorf("failed to open data file %s: %w", path, err)
	}
	defer f.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", fmt.Errorf("failed to hash data file %s: %w", path, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
