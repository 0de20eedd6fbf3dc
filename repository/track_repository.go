package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"pitaradio/core/errs"
	"pitaradio/logger"
	"pitaradio/model"

	"gorm.io/gorm"
)

// TrackRepository defines the catalog operations.
type TrackRepository interface {
	Create(ctx context.Context, track *model.Track) error
	GetByID(ctx context.Context, id int64) (*model.Track, error)
	List(ctx context.Context, genre string) ([]*model.Track, error)
	Genres(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, id int64) error
}

type gormTrackRepository struct {
	db *gorm.DB
}

// NewTrackRepository creates a gorm-backed TrackRepository.
func NewTrackRepository(db *gorm.DB) TrackRepository {
	return &gormTrackRepository{db: db}
}

// Create inserts the track and fills in its ID and CreatedUTC.
func (r *gormTrackRepository) Create(ctx context.Context, track *model.Track) error {
	if track.CreatedUTC.IsZero() {
		track.CreatedUTC = time.Now().UTC()
	}
	if err := r.db.WithContext(ctx).Create(track).Error; err != nil {
		return errs.Store("create track", err)
	}
	logger.Info("Track created",
		logger.Int64("trackId", track.ID),
		logger.String("title", track.Title),
		logger.String("genre", track.Genre))
	return nil
}

// GetByID returns errs.ErrTrackNotFound for an unknown id.
func (r *gormTrackRepository) GetByID(ctx context.Context, id int64) (*model.Track, error) {
	var track model.Track
	err := r.db.WithContext(ctx).First(&track, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: id %d", errs.ErrTrackNotFound, id)
	}
	if err != nil {
		return nil, errs.Store(fmt.Sprintf("get track %d", id), err)
	}
	return &track, nil
}

// List returns all tracks, or only those whose genre equals genre exactly when it is
// non-empty. Rows are ordered by id.
func (r *gormTrackRepository) List(ctx context.Context, genre string) ([]*model.Track, error) {
	q := r.db.WithContext(ctx).Model(&model.Track{})
	if genre != "" {
		q = q.Where("genre = ?", genre)
	}
	var rows []*model.Track
	if err := q.Order("id ASC").Find(&rows).Error; err != nil {
		return nil, errs.Store("list tracks", err)
	}
	if genre == "" {
		return rows, nil
	}
	// case-insensitive collations (MySQL) would let "rock" match "Rock"
	tracks := rows[:0]
	for _, t := range rows {
		if t.Genre == genre {
			tracks = append(tracks, t)
		}
	}
	return tracks, nil
}

// Genres returns the distinct non-empty genres in byte order.
func (r *gormTrackRepository) Genres(ctx context.Context) ([]string, error) {
	var raw []string
	err := r.db.WithContext(ctx).Model(&model.Track{}).
		Where("genre IS NOT NULL AND genre <> ''").
		Distinct().
		Pluck("genre", &raw).Error
	if err != nil {
		return nil, errs.Store("list genres", err)
	}
	seen := make(map[string]struct{}, len(raw))
	genres := make([]string, 0, len(raw))
	for _, g := range raw {
		if _, ok := seen[g]; ok {
			continue
		}
		seen[g] = struct{}{}
		genres = append(genres, g)
	}
	sort.Strings(genres)
	return genres, nil
}

// Delete removes a track together with its statistic row in one transaction.
func (r *gormTrackRepository) Delete(ctx context.Context, id int64) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("track_id = ?", id).Delete(&model.TrackStat{}).Error; err != nil {
			return errs.Store("delete track stats", err)
		}
		res := tx.Where("id = ?", id).Delete(&model.Track{})
		if res.Error != nil {
			return errs.Store("delete track", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: id %d", errs.ErrTrackNotFound, id)
		}
		return nil
	})
	if err != nil {
		return err
	}
	logger.Info("Track deleted", logger.Int64("trackId", id))
	return nil
}
