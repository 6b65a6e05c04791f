// Package server implements a read-only HTTP API over an output directory.
//
// Endpoints:
//
//	GET /api/image/{digest}     Serve the stored output bytes
//	GET /api/record/{digest}    Latest journal record for a digest
//	GET /api/health             Output totals + journal stats
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/Jesssullivan/snapcrop/internal/catalog"
	"github.com/Jesssullivan/snapcrop/internal/optimize"
	"github.com/Jesssullivan/snapcrop/internal/store"
	"github.com/rs/zerolog"
)

// New creates an HTTP handler serving outDir. journal may be nil, in which
// case /api/record always returns 404.
func New(outDir string, journal *catalog.DB, logger zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/image/{digest}", imageHandler(outDir))
	mux.HandleFunc("GET /api/record/{digest}", recordHandler(journal, logger))
	mux.HandleFunc("GET /api/health", healthHandler(outDir, journal, logger))

	return mux
}

func imageHandler(outDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		digest := r.PathValue("digest")
		if !store.ValidDigest(digest) {
			http.Error(w, "invalid digest", http.StatusBadRequest)
			return
		}

		path, ok := store.Find(outDir, digest)
		if !ok {
			http.NotFound(w, r)
			return
		}

		ext := strings.TrimPrefix(filepath.Ext(path), ".")
		if f, err := optimize.ParseFormat(ext); err == nil {
			w.Header().Set("Content-Type", f.ContentType())
		}
		// Outputs are immutable once written.
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		http.ServeFile(w, r, path)
	}
}

func recordHandler(journal *catalog.DB, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		digest := r.PathValue("digest")
		if !store.ValidDigest(digest) {
			http.Error(w, "invalid digest", http.StatusBadRequest)
			return
		}
		if journal == nil {
			http.NotFound(w, r)
			return
		}

		rec, err := journal.Latest(r.Context(), digest)
		if errors.Is(err, catalog.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		if err != nil {
			logger.Error().Err(err).Str("digest", digest).Msg("server: journal lookup failed")
			http.Error(w, "journal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, rec)
	}
}

type healthResponse struct {
	Status  string         `json:"status"`
	Files   int            `json:"files"`
	TotalMB float64        `json:"total_mb"`
	Journal *catalog.Stats `json:"journal,omitempty"`
	Records int            `json:"records,omitempty"`
}

func healthHandler(outDir string, journal *catalog.DB, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := store.List(outDir)
		if err != nil {
			logger.Error().Err(err).Msg("server: list outputs failed")
			http.Error(w, "stats error", http.StatusInternalServerError)
			return
		}

		resp := healthResponse{Status: "ok", Files: len(entries)}
		var total int64
		for _, e := range entries {
			total += e.Size
		}
		resp.TotalMB = float64(total) / (1024 * 1024)

		if journal != nil {
			stats, err := journal.Stats(r.Context(), "")
			if err != nil {
				logger.Error().Err(err).Msg("server: journal stats failed")
				http.Error(w, "stats error", http.StatusInternalServerError)
				return
			}
			resp.Journal = stats
			if resp.Records, err = journal.Count(r.Context()); err != nil {
				logger.Error().Err(err).Msg("server: journal count failed")
				http.Error(w, "stats error", http.StatusInternalServerError)
				return
			}
		}
		writeJSON(w, resp)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
