// Package ingest turns an uploaded audio file plus form metadata into a catalog track.
package ingest

import (
	"context"
	"io"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"pitaradio/core/errs"
	"pitaradio/logger"
	"pitaradio/model"
	"pitaradio/storage"

	"github.com/google/uuid"
)

// AllowedExtensions lists the audio formats accepted for upload.
var AllowedExtensions = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".ogg":  true,
	".m4a":  true,
	".aac":  true,
	".flac": true,
}

// TrackCreator persists a new catalog entry.
type TrackCreator interface {
	Create(ctx context.Context, t *model.Track) error
}

// Upload is one submitted file with its form fields, before validation.
type Upload struct {
	Filename  string
	Size      int64
	Body      io.Reader
	Title     string
	Artist    string
	Genre     string
	CoverURL  string
	ArtistURL string
}

// Service validates uploads, stores the audio and registers the track.
type Service struct {
	blobs  storage.BlobStore
	tracks TrackCreator
	newID  func() string
}

func NewService(blobs storage.BlobStore, tracks TrackCreator) *Service {
	return &Service{blobs: blobs, tracks: tracks, newID: uuid.NewString}
}

// Ingest validates u, writes its body to the blob store and creates the track.
// Validation failures wrap errs.ErrInvalidArgument and happen before anything is stored.
func (s *Service) Ingest(ctx context.Context, u Upload) (*model.Track, error) {
	title := truncate(strings.TrimSpace(u.Title), model.MaxTitleLen)
	artist := truncate(strings.TrimSpace(u.Artist), model.MaxArtistLen)
	if title == "" || artist == "" {
		return nil, errs.Invalid("title and artist are required")
	}
	if u.Body == nil {
		return nil, errs.Invalid("file is required")
	}
	ext := strings.ToLower(filepath.Ext(u.Filename))
	if !AllowedExtensions[ext] {
		return nil, errs.Invalid("unsupported file type %q", ext)
	}
	coverURL, err := optionalURL("cover_url", u.CoverURL)
	if err != nil {
		return nil, err
	}
	artistURL, err := optionalURL("artist_url", u.ArtistURL)
	if err != nil {
		return nil, err
	}
	genre := SanitizeGenre(u.Genre)

	key := Slug(genre) + "/" + s.newID() + ext
	location, err := s.blobs.Put(ctx, key, u.Body, u.Size, storage.ContentTypeFor(ext))
	if err != nil {
		logger.Error("Failed to store upload", logger.String("key", key), logger.ErrorField(err))
		return nil, err
	}

	track := &model.Track{
		Title:     title,
		Artist:    artist,
		Genre:     genre,
		URL:       location,
		CoverURL:  coverURL,
		ArtistURL: artistURL,
	}
	if err := s.tracks.Create(ctx, track); err != nil {
		// the blob stays behind; nothing references it
		logger.Error("Failed to register uploaded track", logger.String("url", location), logger.ErrorField(err))
		return nil, err
	}

	logger.Info("Track uploaded",
		logger.Int64("trackId", track.ID),
		logger.String("genre", genre),
		logger.Int64("size", u.Size))
	return track, nil
}

// SanitizeGenre trims, drops control characters and path separators, and caps the length.
// A genre that ends up empty becomes model.DefaultGenre.
func SanitizeGenre(genre string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || r == '/' || r == '\\' {
			return -1
		}
		return r
	}, genre)
	cleaned = truncate(strings.TrimSpace(cleaned), model.MaxGenreLen)
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return model.DefaultGenre
	}
	return cleaned
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slug renders genre as a lowercase path segment.
func Slug(genre string) string {
	s := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(genre), "-"), "-")
	if s == "" {
		return "misc"
	}
	return s
}

func optionalURL(field, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	if len(raw) > model.MaxURLLen {
		return "", errs.Invalid("%s exceeds %d characters", field, model.MaxURLLen)
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", errs.Invalid("%s must be an http(s) URL", field)
	}
	return raw, nil
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
