package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"pitaradio/model"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
)

var lookupsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pitaradio_charts_cache_lookups_total",
		Help: "Charts cache lookups and writes by result",
	},
	[]string{"result"},
)

func init() {
	prometheus.MustRegister(lookupsTotal)
}

// errVersionMoved aborts a Set whose ranking predates an invalidation.
var errVersionMoved = errors.New("charts version moved")

// ChartsCache keeps ranked charts per genre in Redis for a short TTL. Each genre also has
// a version counter that Invalidate bumps; Set only writes when the version it was given
// is still current.
type ChartsCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewChartsCache(client redis.UniversalClient, ttl time.Duration) *ChartsCache {
	return &ChartsCache{client: client, ttl: ttl}
}

// ChartsKey is the Redis key holding the charts of genre.
func ChartsKey(genre string) string {
	return fmt.Sprintf("charts:%s", genre)
}

// VersionKey is the Redis key holding the invalidation counter of genre.
func VersionKey(genre string) string {
	return fmt.Sprintf("charts-version:%s", genre)
}

// Get returns the cached charts and the genre's version. ok is false on a miss.
func (c *ChartsCache) Get(ctx context.Context, genre string) ([]model.ChartEntry, int64, bool, error) {
	vals, err := c.client.MGet(ctx, VersionKey(genre), ChartsKey(genre)).Result()
	if err != nil {
		lookupsTotal.WithLabelValues("error").Inc()
		return nil, 0, false, fmt.Errorf("failed to read charts cache: %w", err)
	}
	version, err := parseVersion(vals[0])
	if err != nil {
		lookupsTotal.WithLabelValues("error").Inc()
		return nil, 0, false, err
	}
	data, ok := vals[1].(string)
	if !ok {
		lookupsTotal.WithLabelValues("miss").Inc()
		return nil, version, false, nil
	}

	entries, err := decodeCharts([]byte(data))
	if err != nil {
		lookupsTotal.WithLabelValues("error").Inc()
		return nil, 0, false, err
	}
	lookupsTotal.WithLabelValues("hit").Inc()
	return entries, version, true, nil
}

// Set stores entries unless genre was invalidated after version was read. A skipped
// write is not an error.
func (c *ChartsCache) Set(ctx context.Context, genre string, entries []model.ChartEntry, version int64) error {
	data, err := encodeCharts(entries)
	if err != nil {
		return err
	}

	vkey := VersionKey(genre)
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, vkey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != version {
			return errVersionMoved
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, ChartsKey(genre), data, c.ttl)
			return nil
		})
		return err
	}, vkey)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, errVersionMoved), errors.Is(err, redis.TxFailedErr):
		lookupsTotal.WithLabelValues("stale").Inc()
		return nil
	default:
		return fmt.Errorf("failed to write charts cache: %w", err)
	}
}

// Invalidate drops the cached charts of genre and bumps its version.
func (c *ChartsCache) Invalidate(ctx context.Context, genre string) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, VersionKey(genre))
		pipe.Del(ctx, ChartsKey(genre))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to invalidate charts cache: %w", err)
	}
	return nil
}

func parseVersion(v interface{}) (int64, error) {
	s, ok := v.(string)
	if !ok {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt charts version %q: %w", s, err)
	}
	return n, nil
}

func encodeCharts(entries []model.ChartEntry) ([]byte, error) {
	if entries == nil {
		entries = []model.ChartEntry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal charts: %w", err)
	}
	return data, nil
}

func decodeCharts(data []byte) ([]model.ChartEntry, error) {
	entries := []model.ChartEntry{}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to unmarshal charts: %w", err)
	}
	return entries, nil
}
