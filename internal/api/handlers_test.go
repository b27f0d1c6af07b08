package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onetime.share/config"
	"onetime.share/internal/models"
	"onetime.share/internal/secrets"
	"onetime.share/internal/store"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := config.Default()
	cfg.RateLimit.Enabled = false

	st := store.NewMemoryStore(time.Minute)
	t.Cleanup(func() { st.Close() })

	engine := secrets.NewEngine(st, secrets.Options{
		TombstoneTTL: cfg.Secrets.TombstoneTTL,
		MaxAttempts:  cfg.Secrets.MaxAttempts,
	}, slog.Default())

	srv := httptest.NewServer(SetupRouter(engine, cfg, slog.Default()))
	t.Cleanup(srv.Close)
	return srv
}

func createSecret(t *testing.T, srv *httptest.Server, body map[string]any) CreateResponse {
	t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/api/secrets", "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created CreateResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	return created
}

func TestCreateAndRevealFlow(t *testing.T) {
	srv := newTestServer(t)

	created := createSecret(t, srv, map[string]any{"data": "hello", "ttl": 300})
	assert.Len(t, created.ID, 16)
	assert.Len(t, created.Password, 32)
	assert.Contains(t, created.URL, "/s/"+created.ID+"#"+created.Password)

	revealURL := fmt.Sprintf("%s/api/secrets/%s?password=%s", srv.URL, created.ID, url.QueryEscape(created.Password))

	resp, err := http.Get(revealURL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var revealed RevealResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&revealed))
	assert.Equal(t, "text", revealed.Type)
	assert.Equal(t, "hello", revealed.Data)

	// The second reveal hits the tombstone.
	resp2, err := http.Get(revealURL)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
}

func TestRevealRaw(t *testing.T) {
	srv := newTestServer(t)

	created := createSecret(t, srv, map[string]any{"data": "raw text"})

	resp, err := http.Get(fmt.Sprintf("%s/api/secrets/%s?password=%s&raw=true", srv.URL, created.ID, url.QueryEscape(created.Password)))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, "text/plain; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "secret.txt")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "raw text", string(body))
}

func TestMultipartFileUpload(t *testing.T) {
	srv := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("data", "id_ed25519")
	require.NoError(t, err)
	_, err = part.Write([]byte("PRIVATE KEY MATERIAL"))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("ttl", "3600"))
	require.NoError(t, mw.Close())

	resp, err := http.Post(srv.URL+"/api/secrets", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created CreateResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))

	raw, err := http.Get(fmt.Sprintf("%s/api/secrets/%s?password=%s&raw", srv.URL, created.ID, url.QueryEscape(created.Password)))
	require.NoError(t, err)
	defer raw.Body.Close()
	require.Equal(t, http.StatusOK, raw.StatusCode)

	assert.Equal(t, "application/octet-stream", raw.Header.Get("Content-Type"))
	assert.Contains(t, raw.Header.Get("Content-Disposition"), "id_ed25519")

	body, err := io.ReadAll(raw.Body)
	require.NoError(t, err)
	assert.Equal(t, "PRIVATE KEY MATERIAL", string(body))
}

func TestCreateValidation(t *testing.T) {
	srv := newTestServer(t)

	cases := []struct {
		name string
		body map[string]any
	}{
		{"empty data", map[string]any{"data": ""}},
		{"bad type", map[string]any{"type": "blob", "data": "x"}},
		{"ttl below minimum", map[string]any{"data": "x", "ttl": 10}},
		{"ttl above maximum", map[string]any{"data": "x", "ttl": 60 * 60 * 24 * 30}},
		{"passphrase too long", map[string]any{"data": "x", "passphrase": "0123456789012345678901234567890123"}},
		{"file data not base64", map[string]any{"type": "file", "data": "not-base64!!", "name": "f"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw, err := json.Marshal(tc.body)
			require.NoError(t, err)

			resp, err := http.Post(srv.URL+"/api/secrets", "application/json", bytes.NewReader(raw))
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestInvalidPassphraseResponse(t *testing.T) {
	srv := newTestServer(t)

	created := createSecret(t, srv, map[string]any{"data": "guarded", "passphrase": "x"})

	resp, err := http.Get(fmt.Sprintf("%s/api/secrets/%s?password=%s&passphrase=y", srv.URL, created.ID, url.QueryEscape(created.Password)))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "invalid passphrase", body.Error)
}

func TestMetaEndpoint(t *testing.T) {
	srv := newTestServer(t)

	created := createSecret(t, srv, map[string]any{"data": "peek", "passphrase": "x"})

	resp, err := http.Get(srv.URL + "/api/secrets/" + created.ID + "/meta")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var meta models.Metadata
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&meta))
	assert.Equal(t, models.StatusUnread, meta.Status)
	assert.True(t, meta.HasPassphrase)

	resp2, err := http.Get(srv.URL + "/api/secrets/nosuchsecret0000/meta")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
}

func TestDeleteEndpoint(t *testing.T) {
	srv := newTestServer(t)

	created := createSecret(t, srv, map[string]any{"data": "doomed"})

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/secrets/"+created.ID, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	get, err := http.Get(fmt.Sprintf("%s/api/secrets/%s?password=%s", srv.URL, created.ID, url.QueryEscape(created.Password)))
	require.NoError(t, err)
	defer get.Body.Close()
	assert.Equal(t, http.StatusNotFound, get.StatusCode)

	meta, err := http.Get(srv.URL + "/api/secrets/" + created.ID + "/meta")
	require.NoError(t, err)
	defer meta.Body.Close()
	assert.Equal(t, http.StatusOK, meta.StatusCode)
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t)

	req, err := http.NewRequest(http.MethodPut, srv.URL+"/api/secrets/abc", bytes.NewReader(nil))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
