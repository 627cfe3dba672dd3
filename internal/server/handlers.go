package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"pdfsqueeze/internal/compression"
	"pdfsqueeze/internal/database"
)

const (
	headerLevel    = "X-Compression-Level"
	headerFilename = "X-Filename"

	// multipart parts above this are spooled to disk by net/http.
	multipartMemory = 32 << 20

	cleanupTimeout = 10 * time.Second
)

// RemoteRequest is the body of POST /api/compress/remote.
type RemoteRequest struct {
	URL       string `json:"url"`
	Level     string `json:"level"`
	Filename  string `json:"filename"`
	ObjectKey string `json:"objectKey"`
}

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	GhostscriptAvailable    bool   `json:"ghostscript_available"`
	GhostscriptPath         string `json:"ghostscript_path,omitempty"`
	GhostscriptVersion      string `json:"ghostscript_version,omitempty"`
	Workers                 int    `json:"workers"`
	BusyWorkers             int    `json:"busy_workers"`
	FallbackOnNativeFailure bool   `json:"fallback_on_native_failure"`
	LosslessPrepass         bool   `json:"lossless_prepass"`
	StatsEnabled            bool   `json:"stats_enabled"`
}

// StatsResponse is the body of GET /api/stats.
type StatsResponse struct {
	*database.Statistics
	AverageRatio float64 `json:"average_compression_ratio"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	bin, ok := s.deps.Prober.Probe(r.Context())

	writeJSON(w, http.StatusOK, StatusResponse{
		GhostscriptAvailable:    ok,
		GhostscriptPath:         bin.Path,
		GhostscriptVersion:      bin.Version,
		Workers:                 s.pool.Cap(),
		BusyWorkers:             s.pool.Running(),
		FallbackOnNativeFailure: s.cfg.Engine.FallbackOnNativeFailure,
		LosslessPrepass:         s.cfg.Engine.LosslessPrepass,
		StatsEnabled:            s.deps.Stats != nil,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.Stats == nil {
		writeJSON(w, http.StatusOK, StatsResponse{Statistics: &database.Statistics{}})
		return
	}

	stats, err := s.deps.Stats.Get(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, StatsResponse{Statistics: stats, AverageRatio: stats.AverageRatio()})
}

// handleCompress accepts either a raw application/pdf body or a multipart
// form with a "file" part.
func (s *Server) handleCompress(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxUploadBytes)

	var (
		data     []byte
		level    string
		filename string
		err      error
	)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		data, level, filename, err = s.readMultipart(r)
	} else {
		data, err = io.ReadAll(r.Body)
		level = firstNonEmpty(r.URL.Query().Get("level"), r.Header.Get(headerLevel))
		filename = firstNonEmpty(r.URL.Query().Get("filename"), r.Header.Get(headerFilename))
	}
	if err != nil {
		s.writeError(w, r, s.uploadError(err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Server.RequestTimeout)
	defer cancel()

	var (
		result *compression.Result
		cerr   error
	)
	if err := s.pool.Run(ctx, func() {
		result, cerr = s.compress(ctx, data, level, filename)
	}); err != nil {
		s.writeError(w, r, err)
		return
	}
	if cerr != nil {
		s.writeError(w, r, cerr)
		return
	}

	s.writeResult(w, result)
}

func (s *Server) handleCompressRemote(w http.ResponseWriter, r *http.Request) {
	var req RemoteRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&req); err != nil {
		s.writeError(w, r, compression.NewValidationError("invalid JSON body"))
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		s.writeError(w, r, compression.NewValidationError("url is required"))
		return
	}

	if req.ObjectKey != "" {
		// Delete the temporary object on every exit path, even after the
		// request context is gone.
		defer s.removeObject(context.WithoutCancel(r.Context()), req.ObjectKey)
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Server.RequestTimeout)
	defer cancel()

	var (
		result *compression.Result
		cerr   error
	)
	if err := s.pool.Run(ctx, func() {
		data, err := s.deps.Fetcher.Fetch(ctx, req.URL)
		if err != nil {
			cerr = err
			return
		}
		result, cerr = s.compress(ctx, data, req.Level, req.Filename)
	}); err != nil {
		s.writeError(w, r, err)
		return
	}
	if cerr != nil {
		s.writeError(w, r, cerr)
		return
	}

	s.writeResult(w, result)
}

func (s *Server) compress(ctx context.Context, data []byte, level, filename string) (*compression.Result, error) {
	result, err := s.deps.Selector.Compress(ctx, compression.Request{
		Data:     data,
		Level:    compression.ParseLevel(level),
		Filename: filename,
		Engine:   compression.PreferAuto,
	})
	if err != nil {
		return nil, err
	}

	if s.deps.Stats != nil {
		if err := s.deps.Stats.Record(ctx, result); err != nil {
			s.logger.Warn("Failed to record statistics", "error", err)
		}
	}

	return result, nil
}

func (s *Server) readMultipart(r *http.Request) (data []byte, level, filename string, err error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return nil, "", "", err
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", "", compression.NewValidationError("missing file part")
	}
	defer file.Close()

	data, err = io.ReadAll(file)
	if err != nil {
		return nil, "", "", err
	}

	return data, r.FormValue("level"), header.Filename, nil
}

func (s *Server) uploadError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return compression.NewPayloadTooLargeError(maxErr.Limit+1, maxErr.Limit)
	}
	var ce *compression.Error
	if errors.As(err, &ce) {
		return ce
	}
	return compression.NewValidationError("could not read request body")
}

func (s *Server) removeObject(ctx context.Context, key string) {
	ctx, cancel := context.WithTimeout(ctx, cleanupTimeout)
	defer cancel()

	if err := s.deps.Cleaner.Remove(ctx, key); err != nil {
		s.logger.Warn("Failed to remove uploaded object", "key", key, "error", err)
	}
}

func (s *Server) writeResult(w http.ResponseWriter, result *compression.Result) {
	h := w.Header()
	h.Set("Content-Type", "application/pdf")
	h.Set("Content-Length", strconv.Itoa(len(result.Data)))
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": result.Filename}))
	h.Set("X-Original-Size", strconv.FormatInt(result.OriginalSize, 10))
	h.Set("X-Compressed-Size", strconv.FormatInt(result.FinalSize, 10))
	h.Set("X-Compression-Engine", string(result.Engine))
	h.Set("X-Compression-Level", string(result.Level))
	w.WriteHeader(http.StatusOK)
	w.Write(result.Data)
}

// writeError classifies err and writes the client-safe message. Unclassified
// failures are logged with full detail.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	e := compression.Classify(err)

	if e.Kind == compression.KindInternal {
		s.logger.Error("Request failed",
			"request_id", chimiddleware.GetReqID(r.Context()),
			"path", r.URL.Path,
			"error", err)
	} else {
		s.logger.Info("Request rejected",
			"request_id", chimiddleware.GetReqID(r.Context()),
			"path", r.URL.Path,
			"kind", e.Kind,
			"error", err)
	}

	writeJSON(w, e.StatusCode(), errorResponse{Error: e.UserMessage(), Kind: string(e.Kind)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
