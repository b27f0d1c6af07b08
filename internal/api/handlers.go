package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"onetime.share/config"
	"onetime.share/internal/crypto"
	"onetime.share/internal/models"
	"onetime.share/internal/secrets"
	"onetime.share/internal/store"
	"onetime.share/web"
)

type Handler struct {
	engine *secrets.Engine
	config *config.Config
	log    *slog.Logger
}

func NewHandler(e *secrets.Engine, cfg *config.Config, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		engine: e,
		config: cfg,
		log:    log,
	}
}

type CreateRequest struct {
	Type       string `json:"type,omitempty"`
	Data       string `json:"data"`
	Name       string `json:"name,omitempty"`
	TTLSeconds int    `json:"ttl,omitempty"`
	Passphrase string `json:"passphrase,omitempty"`
}

type CreateResponse struct {
	ID        string    `json:"id"`
	Password  string    `json:"password"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

type RevealResponse struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
	Data string `json:"data"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) CreateSecret(w http.ResponseWriter, r *http.Request) {
	payload, ttl, passphrase, ok := h.parseCreate(w, r)
	if !ok {
		return
	}

	created, err := h.engine.AddSecret(r.Context(), payload, ttl, passphrase)
	if err != nil {
		h.handleError(w, err)
		return
	}

	// The password travels in the URL fragment, which browsers never send
	// to the server.
	url := h.config.Server.BaseURL + "/s/" + created.ID + "#" + created.Password

	h.json(w, http.StatusCreated, CreateResponse{
		ID:        created.ID,
		Password:  created.Password,
		URL:       url,
		ExpiresAt: created.ExpiresAt,
	})
}

// parseCreate accepts JSON and multipart/form-data bodies and applies the
// configured input limits. It writes the error response itself and reports
// ok=false when the request is rejected.
func (h *Handler) parseCreate(w http.ResponseWriter, r *http.Request) (models.Payload, time.Duration, string, bool) {
	var payload models.Payload
	var ttlSeconds int
	var passphrase string

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(int64(h.config.Secrets.MaxPayloadSize) + 4096); err != nil {
			h.error(w, http.StatusBadRequest, "invalid multipart body")
			return payload, 0, "", false
		}

		if file, header, err := r.FormFile("data"); err == nil {
			defer file.Close()
			data, err := io.ReadAll(io.LimitReader(file, int64(h.config.Secrets.MaxPayloadSize)+1))
			if err != nil {
				h.error(w, http.StatusBadRequest, "reading uploaded file failed")
				return payload, 0, "", false
			}
			name := r.FormValue("name")
			if name == "" {
				name = header.Filename
			}
			payload = models.Payload{Type: models.PayloadFile, Name: name, Data: data}
		} else {
			payload = models.Payload{Type: models.PayloadText, Data: []byte(r.FormValue("data"))}
		}

		if v := r.FormValue("ttl"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				h.error(w, http.StatusBadRequest, "invalid ttl value")
				return payload, 0, "", false
			}
			ttlSeconds = n
		}
		passphrase = r.FormValue("passphrase")

	case "application/json", "":
		var req CreateRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, int64(h.config.Secrets.MaxPayloadSize)*2+4096)).Decode(&req); err != nil {
			h.error(w, http.StatusBadRequest, "invalid request body")
			return payload, 0, "", false
		}

		switch req.Type {
		case "", string(models.PayloadText):
			payload = models.Payload{Type: models.PayloadText, Data: []byte(req.Data)}
		case string(models.PayloadFile):
			data, err := base64.StdEncoding.DecodeString(req.Data)
			if err != nil {
				h.error(w, http.StatusBadRequest, "file data must be base64 encoded")
				return payload, 0, "", false
			}
			payload = models.Payload{Type: models.PayloadFile, Name: req.Name, Data: data}
		default:
			h.error(w, http.StatusBadRequest, "type field can only be 'text' or 'file'")
			return payload, 0, "", false
		}
		ttlSeconds = req.TTLSeconds
		passphrase = req.Passphrase

	default:
		h.error(w, http.StatusUnsupportedMediaType, "unsupported media type")
		return payload, 0, "", false
	}

	limits := h.config.Secrets
	if len(payload.Data) == 0 {
		h.error(w, http.StatusBadRequest, "data field must not be empty")
		return payload, 0, "", false
	}
	if len(payload.Data) > limits.MaxPayloadSize {
		h.error(w, http.StatusBadRequest, fmt.Sprintf("data must be at most %d bytes", limits.MaxPayloadSize))
		return payload, 0, "", false
	}
	if len(payload.Name) > limits.MaxNameLength {
		h.error(w, http.StatusBadRequest, fmt.Sprintf("name must be at most %d characters", limits.MaxNameLength))
		return payload, 0, "", false
	}
	if len(passphrase) > limits.MaxPassphraseLen {
		h.error(w, http.StatusBadRequest, fmt.Sprintf("passphrase must be at most %d characters", limits.MaxPassphraseLen))
		return payload, 0, "", false
	}

	ttl := limits.DefaultTTL
	if ttlSeconds != 0 {
		ttl = time.Duration(ttlSeconds) * time.Second
		if ttl < limits.MinTTL || ttl > limits.MaxTTL {
			h.error(w, http.StatusBadRequest, fmt.Sprintf("ttl must be between %d and %d seconds",
				int(limits.MinTTL.Seconds()), int(limits.MaxTTL.Seconds())))
			return payload, 0, "", false
		}
	}

	return payload, ttl, passphrase, true
}

func (h *Handler) RevealSecret(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	query := r.URL.Query()

	payload, err := h.engine.GetSecretData(r.Context(), id, query.Get("password"), query.Get("passphrase"))
	if err != nil {
		h.handleError(w, err)
		return
	}

	if raw := query.Get("raw"); raw == "" && query.Has("raw") || raw == "true" {
		h.sendRaw(w, payload)
		return
	}

	switch payload.Type {
	case models.PayloadText:
		h.json(w, http.StatusOK, RevealResponse{Type: string(models.PayloadText), Data: string(payload.Data)})
	case models.PayloadFile:
		h.json(w, http.StatusOK, RevealResponse{
			Type: string(models.PayloadFile),
			Name: payload.Name,
			Data: base64.StdEncoding.EncodeToString(payload.Data),
		})
	default:
		h.error(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) sendRaw(w http.ResponseWriter, payload *models.Payload) {
	switch payload.Type {
	case models.PayloadFile:
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", payload.Name))
	case models.PayloadText:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="secret.txt"`)
	default:
		h.error(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(payload.Data)
}

func (h *Handler) GetMeta(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	meta, err := h.engine.GetSecretMetaData(r.Context(), id)
	if err != nil {
		h.handleError(w, err)
		return
	}

	h.json(w, http.StatusOK, meta)
}

func (h *Handler) DeleteSecret(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.engine.DeleteSecret(r.Context(), id); err != nil {
		h.handleError(w, err)
		return
	}

	h.json(w, http.StatusOK, map[string]string{"status": string(models.StatusDeleted)})
}

func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	h.serveFile(w, "index.html")
}

func (h *Handler) RevealPage(w http.ResponseWriter, r *http.Request) {
	h.serveFile(w, "reveal.html")
}

func (h *Handler) serveFile(w http.ResponseWriter, filename string) {
	content, err := web.GetFile(filename)
	if err != nil {
		http.Error(w, "file not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(content)
}

func (h *Handler) json(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) error(w http.ResponseWriter, status int, message string) {
	h.json(w, status, ErrorResponse{Error: message})
}

func (h *Handler) handleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, secrets.ErrNotFound):
		h.error(w, http.StatusNotFound, "secret not found")
	case errors.Is(err, secrets.ErrInvalidPassphrase):
		h.error(w, http.StatusBadRequest, "invalid passphrase")
	case errors.Is(err, crypto.ErrDecryption):
		h.error(w, http.StatusBadRequest, "decryption failed")
	case errors.Is(err, store.ErrConflict):
		h.error(w, http.StatusServiceUnavailable, "could not allocate secret id")
	case errors.Is(err, store.ErrUnavailable):
		h.error(w, http.StatusServiceUnavailable, "store unavailable")
	default:
		h.log.Error("unhandled error", "error", err)
		h.error(w, http.StatusInternalServerError, "internal error")
	}
}
