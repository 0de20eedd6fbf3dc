package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pitaradio/core/errs"
	"pitaradio/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrStatNotFound is returned by Get for a track that has never been clapped or played.
var ErrStatNotFound = errors.New("track statistic not found")

// StatRepository holds the per-track engagement counters.
//
// IncrementClap and AddPlay are single INSERT ... ON CONFLICT DO UPDATE statements, so
// concurrent calls for the same track never lose an increment and calls for different
// tracks take no shared lock in this process.
type StatRepository interface {
	IncrementClap(ctx context.Context, trackID int64) error
	AddPlay(ctx context.Context, trackID int64, seconds int64) error
	Get(ctx context.Context, trackID int64) (*model.TrackStat, error)
	GetMany(ctx context.Context, trackIDs []int64) (map[int64]model.TrackStat, error)
}

type gormStatRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewStatRepository creates a gorm-backed StatRepository.
func NewStatRepository(db *gorm.DB) StatRepository {
	return &gormStatRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (r *gormStatRepository) IncrementClap(ctx context.Context, trackID int64) error {
	now := r.now()
	return r.upsert(ctx, "increment clap",
		model.TrackStat{TrackID: trackID, ClapCount: 1, UpdatedUTC: now},
		map[string]interface{}{
			"clap_count":  gorm.Expr("clap_count + ?", 1),
			"updated_utc": now,
		})
}

func (r *gormStatRepository) AddPlay(ctx context.Context, trackID int64, seconds int64) error {
	now := r.now()
	return r.upsert(ctx, "add play",
		model.TrackStat{TrackID: trackID, PlayCount: 1, PlaySeconds: seconds, UpdatedUTC: now},
		map[string]interface{}{
			"play_count":   gorm.Expr("play_count + ?", 1),
			"play_seconds": gorm.Expr("play_seconds + ?", seconds),
			"updated_utc":  now,
		})
}

func (r *gormStatRepository) upsert(ctx context.Context, op string, row model.TrackStat, updates map[string]interface{}) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "track_id"}},
			DoUpdates: clause.Assignments(updates),
		}).
		Create(&row).Error
	if err != nil {
		return errs.Store(fmt.Sprintf("%s for track %d", op, row.TrackID), err)
	}
	return nil
}

func (r *gormStatRepository) Get(ctx context.Context, trackID int64) (*model.TrackStat, error) {
	var stat model.TrackStat
	err := r.db.WithContext(ctx).First(&stat, "track_id = ?", trackID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrStatNotFound
	}
	if err != nil {
		return nil, errs.Store(fmt.Sprintf("get stat %d", trackID), err)
	}
	return &stat, nil
}

// GetMany returns the existing statistics keyed by track id. Ids without a row are absent.
func (r *gormStatRepository) GetMany(ctx context.Context, trackIDs []int64) (map[int64]model.TrackStat, error) {
	out := make(map[int64]model.TrackStat, len(trackIDs))
	if len(trackIDs) == 0 {
		return out, nil
	}
	var rows []model.TrackStat
	if err := r.db.WithContext(ctx).Where("track_id IN ?", trackIDs).Find(&rows).Error; err != nil {
		return nil, errs.Store("get stats", err)
	}
	for _, s := range rows {
		out[s.TrackID] = s
	}
	return out, nil
}
