package ingest

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"pitaradio/core/errs"
	"pitaradio/model"
	"pitaradio/storage"
)

type fakeBlobs struct {
	puts        map[string]string
	contentType string
	err         error
}

func (f *fakeBlobs) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if f.puts == nil {
		f.puts = map[string]string{}
	}
	f.puts[key] = string(data)
	f.contentType = contentType
	return "/uploads/" + key, nil
}

func (f *fakeBlobs) List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	return nil, nil
}

type fakeTracks struct {
	created []*model.Track
	err     error
}

func (f *fakeTracks) Create(ctx context.Context, t *model.Track) error {
	if f.err != nil {
		return f.err
	}
	t.ID = int64(len(f.created) + 1)
	f.created = append(f.created, t)
	return nil
}

func newTestService(blobs *fakeBlobs, tracks *fakeTracks) *Service {
	s := NewService(blobs, tracks)
	s.newID = func() string { return "fixed-id" }
	return s
}

func TestIngestStoresFileAndCreatesTrack(t *testing.T) {
	blobs, tracks := &fakeBlobs{}, &fakeTracks{}
	s := newTestService(blobs, tracks)

	track, err := s.Ingest(context.Background(), Upload{
		Filename: "Song.MP3",
		Size:     4,
		Body:     strings.NewReader("data"),
		Title:    "  Night Drive ",
		Artist:   "Pita",
		Genre:    "Synth Wave",
		CoverURL: "https://img.example.com/c.jpg",
	})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if track.ID != 1 || track.Title != "Night Drive" || track.Genre != "Synth Wave" {
		t.Errorf("track = %+v", track)
	}
	if track.URL != "/uploads/synth-wave/fixed-id.mp3" {
		t.Errorf("URL = %q", track.URL)
	}
	if blobs.puts["synth-wave/fixed-id.mp3"] != "data" {
		t.Errorf("stored blobs = %v", blobs.puts)
	}
	if blobs.contentType != "audio/mpeg" {
		t.Errorf("content type = %q", blobs.contentType)
	}
	if track.CoverURL != "https://img.example.com/c.jpg" || track.ArtistURL != "" {
		t.Errorf("cover/artist = %q / %q", track.CoverURL, track.ArtistURL)
	}
}

func TestIngestRejectsInvalidUploads(t *testing.T) {
	valid := func() Upload {
		return Upload{Filename: "a.ogg", Body: strings.NewReader("x"), Title: "T", Artist: "A"}
	}
	tests := []struct {
		name   string
		modify func(*Upload)
	}{
		{"missing title", func(u *Upload) { u.Title = "  " }},
		{"missing artist", func(u *Upload) { u.Artist = "" }},
		{"missing file", func(u *Upload) { u.Body = nil }},
		{"bad extension", func(u *Upload) { u.Filename = "a.exe" }},
		{"no extension", func(u *Upload) { u.Filename = "audio" }},
		{"cover not http", func(u *Upload) { u.CoverURL = "javascript:alert(1)" }},
		{"artist url too long", func(u *Upload) { u.ArtistURL = "https://x.io/" + strings.Repeat("a", 500) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blobs, tracks := &fakeBlobs{}, &fakeTracks{}
			u := valid()
			tt.modify(&u)
			_, err := newTestService(blobs, tracks).Ingest(context.Background(), u)
			if !errors.Is(err, errs.ErrInvalidArgument) {
				t.Fatalf("Ingest() error = %v, want ErrInvalidArgument", err)
			}
			if len(blobs.puts) != 0 || len(tracks.created) != 0 {
				t.Error("invalid upload reached storage")
			}
		})
	}
}

func TestIngestTruncatesLongFields(t *testing.T) {
	tracks := &fakeTracks{}
	long := strings.Repeat("é", 250)
	track, err := newTestService(&fakeBlobs{}, tracks).Ingest(context.Background(), Upload{
		Filename: "a.flac", Body: strings.NewReader("x"), Title: long, Artist: long, Genre: long,
	})
	if err != nil {
		t.Fatal(err)
	}
	if n := len([]rune(track.Title)); n != model.MaxTitleLen {
		t.Errorf("title runes = %d", n)
	}
	if n := len([]rune(track.Genre)); n != model.MaxGenreLen {
		t.Errorf("genre runes = %d", n)
	}
}

func TestIngestPropagatesStoreErrors(t *testing.T) {
	boom := errors.New("disk full")
	if _, err := newTestService(&fakeBlobs{err: boom}, &fakeTracks{}).Ingest(context.Background(),
		Upload{Filename: "a.wav", Body: strings.NewReader("x"), Title: "T", Artist: "A"}); !errors.Is(err, boom) {
		t.Errorf("blob error = %v", err)
	}

	dbErr := errs.Store("create track", errors.New("locked"))
	if _, err := newTestService(&fakeBlobs{}, &fakeTracks{err: dbErr}).Ingest(context.Background(),
		Upload{Filename: "a.wav", Body: strings.NewReader("x"), Title: "T", Artist: "A"}); !errors.Is(err, errs.ErrStoreUnavailable) {
		t.Errorf("track error = %v", err)
	}
}

func TestSanitizeGenre(t *testing.T) {
	tests := map[string]string{
		"":            model.DefaultGenre,
		"   ":         model.DefaultGenre,
		"//\\":        model.DefaultGenre,
		" Rock ":      "Rock",
		"Hip/Hop":     "HipHop",
		"Lo\x00Fi\n":  "LoFi",
		"..\\..\\etc": "....etc",
		"Drum & Bass": "Drum & Bass",
		"rock":        "rock",
	}
	for in, want := range tests {
		if got := SanitizeGenre(in); got != want {
			t.Errorf("SanitizeGenre(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSlug(t *testing.T) {
	tests := map[string]string{
		"Synth Wave":  "synth-wave",
		"Drum & Bass": "drum-bass",
		"Électro":     "lectro",
		"日本":          "misc",
	}
	for in, want := range tests {
		if got := Slug(in); got != want {
			t.Errorf("Slug(%q) = %q, want %q", in, got, want)
		}
	}
}
