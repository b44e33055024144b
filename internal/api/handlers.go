package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"secure.notes/config"
	"secure.notes/internal/crypto"
	"secure.notes/internal/link"
	"secure.notes/internal/logger"
	"secure.notes/internal/models"
	"secure.notes/internal/store"
	"secure.notes/web"
)

// maxTokenAttempts bounds regeneration when a fresh token collides.
const maxTokenAttempts = 3

type Handler struct {
	store  store.Store
	config *config.Config
	now    func() time.Time
}

func NewHandler(s store.Store, cfg *config.Config) *Handler {
	return &Handler{
		store:  s,
		config: cfg,
		now:    time.Now,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

// CreateNote stores an opaque envelope and answers with the link to fetch
// it. The server never inspects the data.
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	log := logger.FromRequest(r)

	r.Body = http.MaxBytesReader(w, r.Body, h.config.Notes.MaxSize)

	var req models.CreateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.error(w, http.StatusRequestEntityTooLarge, "note is too large")
			return
		}
		h.error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Data) == "" {
		h.error(w, http.StatusBadRequest, "data is required")
		return
	}

	now := h.now()
	note := &models.Note{
		Data:      req.Data,
		CreatedAt: now,
	}
	if h.config.Notes.Retention > 0 {
		note.ExpiresAt = now.Add(h.config.Notes.Retention)
	}

	var err error
	for attempt := 0; attempt < maxTokenAttempts; attempt++ {
		note.Token = crypto.GenerateID()
		if err = h.store.Save(r.Context(), note); !errors.Is(err, store.ErrConflict) {
			break
		}
	}
	if err != nil {
		log.Err(err).Msg("failed to save note")
		h.error(w, http.StatusInternalServerError, "failed to save note")
		return
	}

	log.Info().Int("size", len(req.Data)).Msg("note stored")

	h.json(w, http.StatusCreated, models.CreateNoteResponse{
		Data: models.CreatedNote{
			NoteLink: strings.TrimRight(h.config.Server.BaseURL, "/") + link.NotesPrefix + note.Token,
		},
	})
}

// FetchNote hands out the envelope and destroys it in the same step.
func (h *Handler) FetchNote(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	note, err := h.store.Take(r.Context(), token)
	if err != nil {
		h.handleStoreError(w, r, err)
		return
	}

	logger.FromRequest(r).Info().Msg("note consumed")

	h.json(w, http.StatusOK, models.FetchNoteResponse{Data: note.Data})
}

func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	exists, err := h.store.Exists(r.Context(), token)
	if err != nil {
		h.handleStoreError(w, r, err)
		return
	}

	h.json(w, http.StatusOK, models.NoteStatusResponse{
		Token:  token,
		Exists: exists,
	})
}

func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	h.serveFile(w, "index.html")
}

func (h *Handler) serveFile(w http.ResponseWriter, filename string) {
	content, err := web.GetFile(filename)
	if err != nil {
		http.Error(w, "file not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(content)
}

func (h *Handler) json(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) error(w http.ResponseWriter, status int, message string) {
	h.json(w, status, models.ErrorResponse{Error: message})
}

// Expired and consumed notes look the same from outside: not found.
func (h *Handler) handleStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrExpired):
		h.error(w, http.StatusNotFound, "note not found")
	default:
		logger.FromRequest(r).Err(err).Msg("store failure")
		h.error(w, http.StatusInternalServerError, "internal error")
	}
}
