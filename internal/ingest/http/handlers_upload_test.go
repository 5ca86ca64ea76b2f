package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/infradash/infradash-backend/internal/auth"
	ingest "github.com/infradash/infradash-backend/internal/ingest/domain"
	"github.com/infradash/infradash-backend/internal/ingest/service"
	"github.com/infradash/infradash-backend/internal/projects/domain"
)

const (
	testAPIKey    = "admin-key"
	testCSRFToken = "csrf-token"
)

type memPersister struct {
	stored []domain.Project
}

func (m *memPersister) StoreMany(_ context.Context, projects []domain.Project) (int, error) {
	m.stored = append(m.stored, projects...)
	return len(projects), nil
}

type keyAuthorizer struct{}

func (keyAuthorizer) Authorize(_ context.Context, bearer string) (auth.Principal, error) {
	if bearer == "" {
		return auth.Principal{}, auth.ErrUnauthorized
	}
	if bearer != testAPIKey {
		return auth.Principal{}, auth.ErrForbidden
	}
	return auth.Principal{ID: "admin", Admin: true}, nil
}

type staticTokens struct{}

func (staticTokens) Issue(context.Context, string) (string, error) { return testCSRFToken, nil }

func (staticTokens) Validate(_ context.Context, _ string, token string) error {
	if token != testCSRFToken {
		return auth.ErrTokenMismatch
	}
	return nil
}

func newTestRouter(persister service.Persister) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	coordinator := service.NewCoordinator(persister, nil, 2, 0)
	Register(r, coordinator, keyAuthorizer{}, staticTokens{})
	return r
}

func multipartBody(t *testing.T, payload string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "projects.json")
	require.NoError(t, err)
	_, err = part.Write([]byte(payload))
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return &body, writer.FormDataContentType()
}

func uploadRequest(t *testing.T, payload string) *http.Request {
	t.Helper()
	body, contentType := multipartBody(t, payload)
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	req.Header.Set("X-CSRF-Token", testCSRFToken)
	return req
}

const validPayload = `[
	{"contractId":"24Z00001","contractName":"Road A","contractor":"ACME","implementingOffice":"RO V","contractCost":"1000000","contractEffectivityDate":"2024-01-01","contractExpiryDate":"2024-12-31","status":"completed","accomplishmentInPercentage":10,"region":"Region V"},
	{"contractId":"24Z00002","contractName":"Road B","contractor":"ACME","implementingOffice":"RO V","contractCost":"2000000","contractEffectivityDate":"2024-01-01","contractExpiryDate":"2024-12-31","status":"on-going","accomplishmentInPercentage":20,"region":"Region V"},
	{"contractId":"24Z00003","contractName":"Road C","contractor":"ACME","implementingOffice":"RO V","contractCost":"3000000","contractEffectivityDate":"2024-01-01","contractExpiryDate":"2024-12-31","status":"suspended","accomplishmentInPercentage":30,"region":"Region V"}
]`

func TestUpload_StreamsProgressAndComplete(t *testing.T) {
	persister := &memPersister{}
	r := newTestRouter(persister)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, uploadRequest(t, validPayload))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))

	var progresses []ingest.ProgressEvent
	var completes []ingest.CompleteEvent
	for _, line := range strings.Split(w.Body.String(), "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		raw := strings.TrimPrefix(line, "data: ")
		var typed struct {
			Type string `json:"type"`
		}
		require.NoError(t, json.Unmarshal([]byte(raw), &typed))
		switch typed.Type {
		case ingest.EventProgress:
			var e ingest.ProgressEvent
			require.NoError(t, json.Unmarshal([]byte(raw), &e))
			progresses = append(progresses, e)
		case ingest.EventComplete:
			var e ingest.CompleteEvent
			require.NoError(t, json.Unmarshal([]byte(raw), &e))
			completes = append(completes, e)
		}
	}

	require.Len(t, progresses, 2, "batch size 2 over 3 records is two batches")
	assert.Equal(t, 2, progresses[0].Processed)
	assert.Equal(t, 3, progresses[1].Processed)

	require.Len(t, completes, 1)
	assert.Equal(t, 3, completes[0].TotalCount)
	assert.Equal(t, 3, completes[0].SuccessCount)
	assert.Equal(t, 0, completes[0].FailureCount)

	require.Len(t, persister.stored, 3)
	assert.Equal(t, domain.StatusOnGoing, persister.stored[1].Status, "status stored in canonical casing")
}

func TestUpload_SingleObjectPayload(t *testing.T) {
	persister := &memPersister{}
	r := newTestRouter(persister)

	single := `{"contractId":"24Z00009","contractName":"Bridge","contractor":"ACME","implementingOffice":"RO V","contractCost":500000,"contractEffectivityDate":"2024-01-01","contractExpiryDate":"2024-12-31","status":"Completed","accomplishmentInPercentage":100,"region":"Region V"}`

	w := httptest.NewRecorder()
	r.ServeHTTP(w, uploadRequest(t, single))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"totalCount":1`)
	assert.Len(t, persister.stored, 1)
}

func TestUpload_StructuralFailureIsPlainHTTPError(t *testing.T) {
	r := newTestRouter(&memPersister{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, uploadRequest(t, `not json at all`))

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"), "no event stream for a structural failure")

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body["error"])
}

func TestUpload_MissingFile(t *testing.T) {
	r := newTestRouter(&memPersister{})

	req := httptest.NewRequest(http.MethodPost, "/upload", nil)
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	req.Header.Set("X-CSRF-Token", testCSRFToken)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "file is required")
}

func TestUpload_MissingAuthorization(t *testing.T) {
	r := newTestRouter(&memPersister{})

	body, contentType := multipartBody(t, validPayload)
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUpload_InvalidAntiForgeryToken(t *testing.T) {
	r := newTestRouter(&memPersister{})

	body, contentType := multipartBody(t, validPayload)
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	req.Header.Set("X-CSRF-Token", "forged")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "invalid anti-forgery token")
}

func TestUpload_PartialValidationFailure(t *testing.T) {
	persister := &memPersister{}
	r := newTestRouter(persister)

	payload := `[
	{"contractName":"No ID","contractor":"ACME","implementingOffice":"RO V","contractCost":"1","contractEffectivityDate":"2024-01-01","contractExpiryDate":"2024-12-31","status":"completed","accomplishmentInPercentage":10,"region":"Region V"},
	{"contractId":"24Z00002","contractName":"Road B","contractor":"ACME","implementingOffice":"RO V","contractCost":"2","contractEffectivityDate":"2024-01-01","contractExpiryDate":"2024-12-31","status":"completed","accomplishmentInPercentage":20,"region":"Region V"}
]`

	w := httptest.NewRecorder()
	r.ServeHTTP(w, uploadRequest(t, payload))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"successCount":1`)
	assert.Contains(t, w.Body.String(), `"failureCount":1`)
	assert.Len(t, persister.stored, 1)
}
