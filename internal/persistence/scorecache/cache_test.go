package scorecache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurelius/promotion/internal/readiness"
)

func testPayload() readiness.Payload {
	return readiness.Payload{
		StrategyID:       "strat-1",
		ScorecardVersion: readiness.ScorecardVersion,
		Score:            92.5,
		Band:             readiness.BandRed,
		Blocked:          true,
		HardBlockers:     []string{"missing_run_identity"},
		Components:       map[string]float64{"D": 70, "R": 100, "P": 100, "O": 100, "U": 100},
	}
}

func TestPutStoresUnderStrategyKey(t *testing.T) {
	client, mock := redismock.NewClientMock()
	cache := New(client, time.Hour)

	payload := testPayload()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	mock.ExpectSet("promotion:scorecard:strat-1", body, time.Hour).SetVal("OK")

	require.NoError(t, cache.Put(context.Background(), payload))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetHit(t *testing.T) {
	client, mock := redismock.NewClientMock()
	cache := New(client, time.Hour)

	payload := testPayload()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	mock.ExpectGet("promotion:scorecard:strat-1").SetVal(string(body))

	cached, err := cache.Get(context.Background(), "strat-1")
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.InDelta(t, 92.5, cached.Score, 1e-9)
	assert.Equal(t, readiness.BandRed, cached.Band)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetMissReturnsNil(t *testing.T) {
	client, mock := redismock.NewClientMock()
	cache := New(client, time.Hour)

	mock.ExpectGet("promotion:scorecard:strat-1").RedisNil()

	cached, err := cache.Get(context.Background(), "strat-1")
	require.NoError(t, err)
	assert.Nil(t, cached, "a cache miss is a nil payload, not an error")
}

func TestGetCorruptEntryTreatedAsMiss(t *testing.T) {
	client, mock := redismock.NewClientMock()
	cache := New(client, time.Hour)

	mock.ExpectGet("promotion:scorecard:strat-1").SetVal("{not-json")

	cached, err := cache.Get(context.Background(), "strat-1")
	require.NoError(t, err)
	assert.Nil(t, cached)
}
