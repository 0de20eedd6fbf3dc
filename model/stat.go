package model

import "time"

// TrackStat holds the engagement counters of one track. The primary key is the track id,
// so a track has at most one row. Rows appear on the first clap or play.
type TrackStat struct {
	TrackID     int64     `json:"track_id" gorm:"column:track_id;primaryKey;autoIncrement:false"`
	PlayCount   int64     `json:"play_count" gorm:"column:play_count;not null;default:0"`
	PlaySeconds int64     `json:"play_seconds" gorm:"column:play_seconds;not null;default:0"`
	ClapCount   int64     `json:"clap_count" gorm:"column:clap_count;not null;default:0"`
	UpdatedUTC  time.Time `json:"updated_utc" gorm:"column:updated_utc;not null"`
}

func (TrackStat) TableName() string { return "track_stats" }

// ChartEntry is one row of a genre leaderboard.
type ChartEntry struct {
	TrackID     int64  `json:"track_id"`
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	Genre       string `json:"genre"`
	CoverURL    string `json:"cover_url"`
	ArtistURL   string `json:"artist_url"`
	ClapCount   int64  `json:"clap_count"`
	PlayCount   int64  `json:"play_count"`
	PlaySeconds int64  `json:"play_seconds"`
}

// NewChartEntry joins a track with its statistic; pass the zero TrackStat when none exists.
func NewChartEntry(t *Track, s TrackStat) ChartEntry {
	return ChartEntry{
		TrackID:     t.ID,
		Title:       t.Title,
		Artist:      t.Artist,
		Genre:       t.Genre,
		CoverURL:    t.CoverURL,
		ArtistURL:   t.ArtistURL,
		ClapCount:   s.ClapCount,
		PlayCount:   s.PlayCount,
		PlaySeconds: s.PlaySeconds,
	}
}
