package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"

	"pitaradio/core/catalog"
	"pitaradio/core/charts"
	"pitaradio/core/engagement"
	"pitaradio/core/errs"
	"pitaradio/core/ingest"
	"pitaradio/logger"
	"pitaradio/repository"

	"github.com/gorilla/mux"
)

// APIHandler serves the /api endpoints.
type APIHandler struct {
	catalog     *catalog.Service
	charts      *charts.Engine
	engagement  *engagement.Aggregator
	ingest      *ingest.Service
	tracks      repository.TrackRepository
	invalidator engagement.Invalidator // may be nil
	health      func(ctx context.Context) error
	maxUpload   int64
}

// NewAPIHandler wires the handler. invalidator and health may be nil.
func NewAPIHandler(
	catalogSvc *catalog.Service,
	chartsEngine *charts.Engine,
	aggregator *engagement.Aggregator,
	ingestSvc *ingest.Service,
	tracks repository.TrackRepository,
	invalidator engagement.Invalidator,
	health func(ctx context.Context) error,
	maxUpload int64,
) *APIHandler {
	return &APIHandler{
		catalog:     catalogSvc,
		charts:      chartsEngine,
		engagement:  aggregator,
		ingest:      ingestSvc,
		tracks:      tracks,
		invalidator: invalidator,
		health:      health,
		maxUpload:   maxUpload,
	}
}

// RegisterRoutes mounts the API and health endpoints on router.
func (h *APIHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/genres", h.GenresHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/tracks", h.TracksHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/tracks/{id}", h.DeleteTrackHandler).Methods(http.MethodDelete)
	router.HandleFunc("/api/charts", h.ChartsHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/next", h.NextHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/stats/clap", h.ClapHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/stats/play", h.PlayHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/upload", h.UploadHandler).Methods(http.MethodPost)
	router.HandleFunc("/healthz", h.HealthHandler).Methods(http.MethodGet)
}

func (h *APIHandler) GenresHandler(w http.ResponseWriter, r *http.Request) {
	genres, err := h.catalog.Genres(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if genres == nil {
		genres = []string{}
	}
	writeJSON(w, http.StatusOK, genres)
}

func (h *APIHandler) TracksHandler(w http.ResponseWriter, r *http.Request) {
	tracks, err := h.catalog.Tracks(r.Context(), r.URL.Query().Get("genre"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tracks)
}

func (h *APIHandler) ChartsHandler(w http.ResponseWriter, r *http.Request) {
	entries, err := h.charts.GetCharts(r.Context(), r.URL.Query().Get("genre"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// NextHandler answers one weighted pick of the genre, or 204 when it has no tracks.
func (h *APIHandler) NextHandler(w http.ResponseWriter, r *http.Request) {
	track, ok, err := h.catalog.Next(r.Context(), r.URL.Query().Get("genre"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, track)
}

type clapRequest struct {
	TrackID int64 `json:"trackId"`
}

// playRequest accepts fractional seconds as sent by audio elements; they are truncated.
type playRequest struct {
	TrackID int64       `json:"trackId"`
	Seconds json.Number `json:"seconds"`
}

// parseSeconds reads any non-negative integer that fits int64. Fractions are truncated and
// negative values count as zero.
func parseSeconds(n json.Number) (int64, error) {
	if n == "" {
		return 0, nil
	}
	if v, err := strconv.ParseInt(string(n), 10, 64); err == nil {
		if v < 0 {
			return 0, nil
		}
		return v, nil
	} else if errors.Is(err, strconv.ErrRange) {
		return 0, errs.Invalid("seconds out of range")
	}
	f, err := strconv.ParseFloat(string(n), 64)
	if err != nil {
		return 0, errs.Invalid("seconds must be a number")
	}
	// float64(math.MaxInt64) rounds up to 2^63, which no longer fits
	if f >= math.MaxInt64 {
		return 0, errs.Invalid("seconds out of range")
	}
	if f <= 0 {
		return 0, nil
	}
	return int64(f), nil
}

func (h *APIHandler) ClapHandler(w http.ResponseWriter, r *http.Request) {
	var req clapRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.engagement.RecordClap(r.Context(), req.TrackID); err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w)
}

func (h *APIHandler) PlayHandler(w http.ResponseWriter, r *http.Request) {
	var req playRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	seconds, err := parseSeconds(req.Seconds)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.engagement.RecordPlay(r.Context(), req.TrackID, seconds); err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w)
}

// UploadHandler accepts multipart form fields file, title, artist, genre, cover_url and
// artist_url and answers the created track.
func (h *APIHandler) UploadHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]interface{}{
				"ok": false, "error": fmt.Sprintf("upload exceeds %d bytes", h.maxUpload),
			})
			return
		}
		writeError(w, r, errs.Invalid("malformed multipart form: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, errs.Invalid("file is required"))
		return
	}
	defer file.Close()

	track, err := h.ingest.Ingest(r.Context(), ingest.Upload{
		Filename:  header.Filename,
		Size:      header.Size,
		Body:      file,
		Title:     r.FormValue("title"),
		Artist:    r.FormValue("artist"),
		Genre:     r.FormValue("genre"),
		CoverURL:  r.FormValue("cover_url"),
		ArtistURL: r.FormValue("artist_url"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, track)
}

// DeleteTrackHandler removes a track together with its statistic.
func (h *APIHandler) DeleteTrackHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, errs.Invalid("invalid track id %q", mux.Vars(r)["id"]))
		return
	}

	track, err := h.tracks.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.tracks.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	if h.invalidator != nil {
		if err := h.invalidator.Invalidate(r.Context(), track.Genre); err != nil {
			logger.Warn("Failed to invalidate charts cache",
				logger.String("genre", track.Genre), logger.ErrorField(err))
		}
	}

	logger.Info("Track deleted", logger.Int64("trackId", id), logger.String("genre", track.Genre))
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health(r.Context()); err != nil {
			logger.Error("Health check failed", logger.ErrorField(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decodeBody reads a small JSON body; anything unparseable is an invalid argument.
func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return errs.Invalid("malformed request body: %v", err)
	}
	return nil
}
