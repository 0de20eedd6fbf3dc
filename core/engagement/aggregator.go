// Package engagement applies clap and play events to the per-track counters.
package engagement

import (
	"context"

	"pitaradio/core/errs"
	"pitaradio/logger"
	"pitaradio/model"

	"github.com/prometheus/client_golang/prometheus"
)

var eventsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pitaradio_engagement_events_total",
		Help: "Accepted engagement events by kind",
	},
	[]string{"kind"},
)

func init() {
	prometheus.MustRegister(eventsTotal)
}

// StatWriter is the subset of the engagement store the aggregator mutates.
type StatWriter interface {
	IncrementClap(ctx context.Context, trackID int64) error
	AddPlay(ctx context.Context, trackID int64, seconds int64) error
}

// TrackLookup resolves a track's genre for cache invalidation.
type TrackLookup interface {
	GetByID(ctx context.Context, id int64) (*model.Track, error)
}

// Invalidator drops cached charts for a genre.
type Invalidator interface {
	Invalidate(ctx context.Context, genre string) error
}

// Aggregator records claps and plays. It never deduplicates: every well-formed call is a
// distinct event.
type Aggregator struct {
	stats       StatWriter
	tracks      TrackLookup
	invalidator Invalidator
}

// NewAggregator builds an Aggregator. tracks and invalidator may be nil when no charts
// cache is in use.
func NewAggregator(stats StatWriter, tracks TrackLookup, invalidator Invalidator) *Aggregator {
	return &Aggregator{stats: stats, tracks: tracks, invalidator: invalidator}
}

// RecordClap adds one clap to trackID, creating its statistic on first use.
func (a *Aggregator) RecordClap(ctx context.Context, trackID int64) error {
	if trackID <= 0 {
		return errs.Invalid("trackId must be a positive integer, got %d", trackID)
	}
	if err := a.stats.IncrementClap(ctx, trackID); err != nil {
		logger.Error("Failed to record clap", logger.Int64("trackId", trackID), logger.ErrorField(err))
		return err
	}
	eventsTotal.WithLabelValues("clap").Inc()
	a.invalidate(ctx, trackID)
	return nil
}

// RecordPlay adds one play and seconds of listening to trackID. A non-positive seconds
// value is accepted and ignored.
func (a *Aggregator) RecordPlay(ctx context.Context, trackID int64, seconds int64) error {
	if trackID <= 0 {
		return errs.Invalid("trackId must be a positive integer, got %d", trackID)
	}
	if seconds <= 0 {
		logger.Debug("Ignoring play without listened seconds",
			logger.Int64("trackId", trackID), logger.Int64("seconds", seconds))
		return nil
	}
	if err := a.stats.AddPlay(ctx, trackID, seconds); err != nil {
		logger.Error("Failed to record play",
			logger.Int64("trackId", trackID), logger.Int64("seconds", seconds), logger.ErrorField(err))
		return err
	}
	eventsTotal.WithLabelValues("play").Inc()
	a.invalidate(ctx, trackID)
	return nil
}

// invalidate is best effort: the event is already stored.
func (a *Aggregator) invalidate(ctx context.Context, trackID int64) {
	if a.invalidator == nil || a.tracks == nil {
		return
	}
	track, err := a.tracks.GetByID(ctx, trackID)
	if err != nil {
		logger.Debug("Skipping charts invalidation", logger.Int64("trackId", trackID), logger.ErrorField(err))
		return
	}
	if err := a.invalidator.Invalidate(ctx, track.Genre); err != nil {
		logger.Warn("Failed to invalidate charts cache",
			logger.String("genre", track.Genre), logger.ErrorField(err))
	}
}
