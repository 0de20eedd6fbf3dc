// Package catalog serves read-only views of the track catalog.
package catalog

import (
	"context"
	"strings"

	"pitaradio/core/errs"
	"pitaradio/core/selection"
	"pitaradio/model"
)

// TrackStore is the catalog subset used here.
type TrackStore interface {
	List(ctx context.Context, genre string) ([]*model.Track, error)
	Genres(ctx context.Context) ([]string, error)
}

// StatReader loads existing statistics by track id.
type StatReader interface {
	GetMany(ctx context.Context, trackIDs []int64) (map[int64]model.TrackStat, error)
}

// Service lists genres and tracks and picks a next track server-side.
type Service struct {
	tracks TrackStore
	stats  StatReader
	picker *selection.Picker
}

func NewService(tracks TrackStore, stats StatReader, picker *selection.Picker) *Service {
	if picker == nil {
		picker = selection.NewPicker(nil)
	}
	return &Service{tracks: tracks, stats: stats, picker: picker}
}

// Genres returns the distinct genres in byte order.
func (s *Service) Genres(ctx context.Context) ([]string, error) {
	return s.tracks.Genres(ctx)
}

// Tracks lists tracks, all of them when genre is empty, with their clap counts.
func (s *Service) Tracks(ctx context.Context, genre string) ([]model.TrackView, error) {
	tracks, err := s.tracks.List(ctx, genre)
	if err != nil {
		return nil, err
	}
	views := make([]model.TrackView, 0, len(tracks))
	if len(tracks) == 0 {
		return views, nil
	}

	ids := make([]int64, len(tracks))
	for i, t := range tracks {
		ids[i] = t.ID
	}
	stats, err := s.stats.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, t := range tracks {
		views = append(views, t.View(stats[t.ID]))
	}
	return views, nil
}

// Next draws one track of genre with the clap-weighted policy. ok is false when the
// genre has no tracks.
func (s *Service) Next(ctx context.Context, genre string) (view model.TrackView, ok bool, err error) {
	if strings.TrimSpace(genre) == "" {
		return view, false, errs.Invalid("genre is required")
	}
	views, err := s.Tracks(ctx, genre)
	if err != nil {
		return view, false, err
	}
	view, ok = selection.PickFrom(s.picker, views, func(v model.TrackView) int64 { return v.ClapCount })
	return view, ok, nil
}
