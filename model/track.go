package model

import "time"

// DefaultGenre is assigned when an upload carries no usable genre.
const DefaultGenre = "Unsorted"

// Field limits, enforced at ingestion and mirrored in the column sizes.
const (
	MaxTitleLen  = 200
	MaxArtistLen = 200
	MaxGenreLen  = 100
	MaxURLLen    = 500
)

// Track is a catalog entry. Rows are created by upload ingestion and never updated by the
// engagement paths.
type Track struct {
	ID         int64     `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	Title      string    `json:"title" gorm:"column:title;size:200;not null"`
	Artist     string    `json:"artist" gorm:"column:artist;size:200;not null"`
	Genre      string    `json:"genre" gorm:"column:genre;size:100;not null;default:Unsorted;index"`
	URL        string    `json:"url" gorm:"column:url;size:500;not null"`
	CoverURL   string    `json:"cover_url" gorm:"column:cover_url;size:500;not null;default:''"`
	ArtistURL  string    `json:"artist_url" gorm:"column:artist_url;size:500;not null;default:''"`
	CreatedUTC time.Time `json:"created_utc" gorm:"column:created_utc;not null"`
}

// TableName pins the table name independent of gorm's pluralisation.
func (Track) TableName() string { return "tracks" }

// TrackView is the /api/tracks projection. ClapCount lets clients weight their pick.
type TrackView struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Artist    string `json:"artist"`
	Genre     string `json:"genre"`
	URL       string `json:"url"`
	CoverURL  string `json:"cover_url"`
	ArtistURL string `json:"artist_url"`
	ClapCount int64  `json:"clap_count"`
}

// View projects a track joined with its (possibly zero) statistic.
func (t *Track) View(stat TrackStat) TrackView {
	return TrackView{
		ID:        t.ID,
		Title:     t.Title,
		Artist:    t.Artist,
		Genre:     t.Genre,
		URL:       t.URL,
		CoverURL:  t.CoverURL,
		ArtistURL: t.ArtistURL,
		ClapCount: stat.ClapCount,
	}
}
