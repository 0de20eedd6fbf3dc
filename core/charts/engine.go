// Package charts computes the genre leaderboard from the catalog and the engagement counters.
package charts

import (
	"context"
	"sort"
	"strings"

	"pitaradio/core/errs"
	"pitaradio/logger"
	"pitaradio/model"
)

// TrackLister lists catalog tracks of one genre.
type TrackLister interface {
	List(ctx context.Context, genre string) ([]*model.Track, error)
}

// StatReader loads the statistics that exist for the given tracks.
type StatReader interface {
	GetMany(ctx context.Context, trackIDs []int64) (map[int64]model.TrackStat, error)
}

// Cache stores computed charts per genre. Implementations may be lossy.
// Get reports the genre's current version even on a miss; Set must drop the entries when
// the version moved on since, so a ranking computed before an invalidation is never stored.
type Cache interface {
	Get(ctx context.Context, genre string) (entries []model.ChartEntry, version int64, ok bool, err error)
	Set(ctx context.Context, genre string, entries []model.ChartEntry, version int64) error
}

// Engine answers GetCharts. It holds no state of its own.
type Engine struct {
	tracks TrackLister
	stats  StatReader
	cache  Cache
}

// NewEngine builds an Engine; cache may be nil.
func NewEngine(tracks TrackLister, stats StatReader, cache Cache) *Engine {
	return &Engine{tracks: tracks, stats: stats, cache: cache}
}

// GetCharts returns every track of genre ranked by claps, then plays, then title.
// Tracks that were never clapped or played are included with zero counters.
func (e *Engine) GetCharts(ctx context.Context, genre string) ([]model.ChartEntry, error) {
	if strings.TrimSpace(genre) == "" {
		return nil, errs.Invalid("genre is required")
	}

	useCache := e.cache != nil
	var version int64
	if useCache {
		entries, v, ok, err := e.cache.Get(ctx, genre)
		switch {
		case err != nil:
			logger.Warn("Charts cache read failed", logger.String("genre", genre), logger.ErrorField(err))
			useCache = false
		case ok:
			return entries, nil
		default:
			version = v
		}
	}

	entries, err := e.compute(ctx, genre)
	if err != nil {
		return nil, err
	}

	if useCache {
		if err := e.cache.Set(ctx, genre, entries, version); err != nil {
			logger.Warn("Charts cache write failed", logger.String("genre", genre), logger.ErrorField(err))
		}
	}
	return entries, nil
}

func (e *Engine) compute(ctx context.Context, genre string) ([]model.ChartEntry, error) {
	tracks, err := e.tracks.List(ctx, genre)
	if err != nil {
		return nil, err
	}
	entries := make([]model.ChartEntry, 0, len(tracks))
	if len(tracks) == 0 {
		return entries, nil
	}

	ids := make([]int64, len(tracks))
	for i, t := range tracks {
		ids[i] = t.ID
	}
	stats, err := e.stats.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	for _, t := range tracks {
		entries = append(entries, model.NewChartEntry(t, stats[t.ID])) // missing key: zero stat
	}
	Rank(entries)
	return entries, nil
}

// Rank sorts entries in chart order.
func Rank(entries []model.ChartEntry) {
	sort.Slice(entries, func(i, j int) bool { return Less(entries[i], entries[j]) })
}

// Less reports whether a ranks above b: more claps, then more plays, then title, then id.
func Less(a, b model.ChartEntry) bool {
	if a.ClapCount != b.ClapCount {
		return a.ClapCount > b.ClapCount
	}
	if a.PlayCount != b.PlayCount {
		return a.PlayCount > b.PlayCount
	}
	if a.Title != b.Title {
		return a.Title < b.Title
	}
	return a.TrackID < b.TrackID
}
