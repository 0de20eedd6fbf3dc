package catalog

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"pitaradio/core/errs"
	"pitaradio/core/selection"
	"pitaradio/model"
)

type stubTracks struct {
	tracks []*model.Track
}

func (s *stubTracks) List(ctx context.Context, genre string) ([]*model.Track, error) {
	var out []*model.Track
	for _, t := range s.tracks {
		if genre == "" || t.Genre == genre {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *stubTracks) Genres(ctx context.Context) ([]string, error) {
	return []string{"Ambient", "Rock"}, nil
}

type stubStats map[int64]model.TrackStat

func (s stubStats) GetMany(ctx context.Context, ids []int64) (map[int64]model.TrackStat, error) {
	out := map[int64]model.TrackStat{}
	for _, id := range ids {
		if st, ok := s[id]; ok {
			out[id] = st
		}
	}
	return out, nil
}

func newService() *Service {
	tracks := &stubTracks{tracks: []*model.Track{
		{ID: 1, Title: "One", Genre: "Rock", URL: "/u/1.mp3"},
		{ID: 2, Title: "Two", Genre: "Rock", URL: "/u/2.mp3"},
		{ID: 3, Title: "Three", Genre: "Ambient", URL: "/u/3.mp3"},
	}}
	stats := stubStats{2: {TrackID: 2, ClapCount: 40}}
	return NewService(tracks, stats, selection.NewPicker(rand.New(rand.NewSource(1))))
}

func TestTracksJoinsClapCounts(t *testing.T) {
	views, err := newService().Tracks(context.Background(), "Rock")
	if err != nil {
		t.Fatal(err)
	}
	if len(views) != 2 {
		t.Fatalf("Tracks(Rock) returned %d views", len(views))
	}
	if views[0].ClapCount != 0 || views[1].ClapCount != 40 {
		t.Errorf("clap counts = %d, %d; want 0, 40", views[0].ClapCount, views[1].ClapCount)
	}
	if views[1].URL != "/u/2.mp3" {
		t.Errorf("URL = %q", views[1].URL)
	}
}

func TestTracksUnfiltered(t *testing.T) {
	views, err := newService().Tracks(context.Background(), "")
	if err != nil || len(views) != 3 {
		t.Errorf("Tracks(\"\") = %d views, %v; want 3", len(views), err)
	}
}

func TestNext(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	seen := map[int64]int{}
	for i := 0; i < 300; i++ {
		v, ok, err := svc.Next(ctx, "Rock")
		if err != nil || !ok {
			t.Fatalf("Next(Rock) = %v, %v", ok, err)
		}
		seen[v.ID]++
	}
	if seen[1] == 0 || seen[2] == 0 {
		t.Errorf("expected both tracks to be picked, got %v", seen)
	}
	if seen[3] != 0 {
		t.Errorf("picked a track from another genre: %v", seen)
	}
	// weights 1 and 3
	if seen[2] <= seen[1] {
		t.Errorf("clapped track picked %d times, unclapped %d; expected bias", seen[2], seen[1])
	}

	if _, ok, err := svc.Next(ctx, "Jazz"); ok || err != nil {
		t.Errorf("Next(Jazz) = %v, %v; want false, nil", ok, err)
	}
	if _, _, err := svc.Next(ctx, " "); !errors.Is(err, errs.ErrInvalidArgument) {
		t.Errorf("Next(blank) error = %v, want ErrInvalidArgument", err)
	}
}
