package inference

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sandeepseesa/promptea/internal/infrastructure/middleware"
	"github.com/sandeepseesa/promptea/pkg/validation"
)

// Upload replies
const (
	uploadedMessage    = "File uploaded and embeddings generated."
	unsupportedMessage = "Only PDF and DOCX files are supported."
)

// RouterOptions configures the backend's HTTP surface
type RouterOptions struct {
	Logger         *zap.Logger
	AllowedOrigins []string
	MaxUpload      int64
	Metrics        middleware.HTTPObserver
	MetricsHandler http.Handler
}

type handler struct {
	svc       *Service
	logger    *zap.Logger
	maxUpload int64
}

// NewRouter serves svc on /search and /upload. Failures the browser should
// show are answered with 200 and an {"error": ...} body; only unexpected
// search failures are a 500.
func NewRouter(svc *Service, opts RouterOptions) http.Handler {
	h := &handler{svc: svc, logger: opts.Logger, maxUpload: opts.MaxUpload}
	if h.logger == nil {
		h.logger = zap.NewNop()
	}
	if h.maxUpload <= 0 {
		h.maxUpload = 20 << 20
	}

	r := chi.NewRouter()
	r.Use(middleware.Stack(h.logger, opts.Metrics, opts.AllowedOrigins)...)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, "Hello, World!")
	})
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if opts.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", opts.MetricsHandler)
	}
	r.Post("/upload", h.upload)
	r.Post("/search", h.search)
	return r
}

type errorBody struct {
	Error string `json:"error"`
}

func (h *handler) upload(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > h.maxUpload {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "document is too large"})
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "document is too large"})
			return
		}
		validation.WriteErrors(w, http.StatusBadRequest, validation.ValidationErrors{
			{Field: "file", Message: "a multipart file field is required"},
		})
		return
	}
	defer file.Close()

	if _, err := FormatOf(header.Filename); err != nil {
		writeJSON(w, http.StatusOK, errorBody{Error: unsupportedMessage})
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusOK, errorBody{Error: fmt.Sprintf("Unexpected error: %v", err)})
		return
	}

	if _, err := h.svc.Upload(r.Context(), header.Filename, data); err != nil {
		h.logger.Warn("upload failed", zap.String("document", header.Filename), zap.Error(err))
		writeJSON(w, http.StatusOK, errorBody{Error: fmt.Sprintf("Unexpected error: %v", err)})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": uploadedMessage})
}

func (h *handler) search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := validation.DecodeJSONLenient(r, &req); err != nil {
		var verrs validation.ValidationErrors
		if errors.As(err, &verrs) {
			validation.WriteErrors(w, http.StatusBadRequest, verrs)
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}

	resp, err := h.svc.Search(r.Context(), req)
	if err != nil {
		var merr *ModelError
		if errors.As(err, &merr) {
			writeJSON(w, http.StatusOK, errorBody{Error: merr.Error()})
			return
		}
		h.logger.Error("search failed",
			zap.String("model", req.Model),
			zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
