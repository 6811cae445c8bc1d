package ingestion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	v1 "github.com/meridian-lab/project-meridian/internal/api/v1"
	"github.com/gin-gonic/gin"
	"github.com/meridian-lab/project-meridian/internal/core/channel"
	"github.com/meridian-lab/project-meridian/internal/core/storage"
	"github.com/stretchr/testify/require"
)

// fakeTouchpointStore is an in-memory TouchpointStore. Keys already saved
// return ErrDuplicate, mirroring the postgres adapter's dedup behavior.
type fakeTouchpointStore struct {
	saved   []*v1.Touchpoint
	seen    map[string]bool
	saveErr error
	listErr error
}

func newFakeTouchpointStore() *fakeTouchpointStore {
	return &fakeTouchpointStore{seen: make(map[string]bool)}
}

func (f *fakeTouchpointStore) SaveTouchpoint(_ context.Context, tp *v1.Touchpoint) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	key := fmt.Sprintf("%s|%s|%s|%s", tp.UserID, tp.Timestamp.Format(time.RFC3339Nano), tp.Channel, tp.Interaction)
	if f.seen[key] {
		return storage.ErrDuplicate
	}
	f.seen[key] = true
	tp.IngestSeq = int64(len(f.saved) + 1)
	f.saved = append(f.saved, tp)
	return nil
}

func (f *fakeTouchpointStore) RetrieveTouchpointsAfterCursor(_ context.Context, cursor int64, limit int) ([]*v1.Touchpoint, error) {
	var out []*v1.Touchpoint
	for _, tp := range f.saved {
		if tp.IngestSeq > cursor {
			out = append(out, tp)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeTouchpointStore) RetrieveUserTouchpoints(_ context.Context, userID string) ([]*v1.Touchpoint, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*v1.Touchpoint
	for _, tp := range f.saved {
		if tp.UserID == userID {
			out = append(out, tp)
		}
	}
	return out, nil
}

func newTestRouter(store storage.TouchpointStore, resolver *channel.Resolver) *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := NewService(store, resolver, 1)
	r := gin.New()
	svc.RegisterRoutes(r)
	return r
}

func postBatch(t *testing.T, r *gin.Engine, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/touchpoints", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestIngestHandler_Success(t *testing.T) {
	store := newFakeTouchpointStore()
	r := newTestRouter(store, nil)

	resp := postBatch(t, r, `[
		{"user_id": "user-1", "timestamp": "2024-03-01T12:00:00Z", "channel": "facebook", "interaction": "touch", "value": "0"},
		{"user_id": "user-1", "timestamp": "2024-03-01T12:05:00Z", "channel": "direct", "interaction": "conversion", "value": "99.99"}
	]`)

	require.Equal(t, http.StatusAccepted, resp.Code)

	var result batchResult
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &result))
	require.Equal(t, 2, result.Accepted)
	require.Equal(t, 0, result.Duplicates)

	require.Len(t, store.saved, 2)
	require.False(t, store.saved[0].IngestedAt.IsZero())
	require.Equal(t, "99.99", store.saved[1].Value.String())
}

func TestIngestHandler_ChannelCanonicalization(t *testing.T) {
	store := newFakeTouchpointStore()
	resolver := channel.NewResolver([]channel.AliasRule{
		{Name: "paid_social", Canonical: "facebook", Aliases: []string{"fb", "Facebook Ads"}},
	})
	r := newTestRouter(store, resolver)

	resp := postBatch(t, r, `[
		{"user_id": "user-1", "timestamp": "2024-03-01T12:00:00Z", "channel": "Facebook Ads", "interaction": "touch", "value": "0"},
		{"user_id": "user-1", "timestamp": "2024-03-01T12:01:00Z", "channel": "Google-Ads", "interaction": "touch", "value": "0"}
	]`)

	require.Equal(t, http.StatusAccepted, resp.Code)
	require.Len(t, store.saved, 2)
	require.Equal(t, "facebook", store.saved[0].Channel)
	require.Equal(t, "google_ads", store.saved[1].Channel)
}

func TestIngestHandler_DuplicatesSkipped(t *testing.T) {
	store := newFakeTouchpointStore()
	r := newTestRouter(store, nil)

	body := `[
		{"user_id": "user-1", "timestamp": "2024-03-01T12:00:00Z", "channel": "email", "interaction": "touch", "value": "0"}
	]`

	resp := postBatch(t, r, body)
	require.Equal(t, http.StatusAccepted, resp.Code)

	resp = postBatch(t, r, body)
	require.Equal(t, http.StatusAccepted, resp.Code)

	var result batchResult
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &result))
	require.Equal(t, 0, result.Accepted)
	require.Equal(t, 1, result.Duplicates)
	require.Len(t, store.saved, 1)
}

func TestIngestHandler_InvalidJSON(t *testing.T) {
	r := newTestRouter(newFakeTouchpointStore(), nil)

	resp := postBatch(t, r, `{not json`)
	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.Contains(t, resp.Body.String(), "invalid_json")
}

func TestIngestHandler_EmptyBatch(t *testing.T) {
	r := newTestRouter(newFakeTouchpointStore(), nil)

	resp := postBatch(t, r, `[]`)
	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.Contains(t, resp.Body.String(), "validation_failed")
}

func TestIngestHandler_BadRecordRejectsWholeBatch(t *testing.T) {
	store := newFakeTouchpointStore()
	r := newTestRouter(store, nil)

	// Second record has a non-zero value on a touch interaction.
	resp := postBatch(t, r, `[
		{"user_id": "user-1", "timestamp": "2024-03-01T12:00:00Z", "channel": "email", "interaction": "touch", "value": "0"},
		{"user_id": "user-2", "timestamp": "2024-03-01T12:00:00Z", "channel": "email", "interaction": "touch", "value": "5"}
	]`)

	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.Contains(t, resp.Body.String(), `"index":1`)
	require.Empty(t, store.saved)
}

func TestIngestHandler_OversizedBody(t *testing.T) {
	r := newTestRouter(newFakeTouchpointStore(), nil)

	big := bytes.Repeat([]byte("a"), 2*1024*1024)
	req := httptest.NewRequest(http.MethodPost, "/v1/touchpoints", bytes.NewReader(big))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	require.Equal(t, http.StatusRequestEntityTooLarge, resp.Code)
}

func TestIngestHandler_StoreError(t *testing.T) {
	store := newFakeTouchpointStore()
	store.saveErr = errors.New("db failure")
	r := newTestRouter(store, nil)

	resp := postBatch(t, r, `[
		{"user_id": "user-1", "timestamp": "2024-03-01T12:00:00Z", "channel": "email", "interaction": "touch", "value": "0"}
	]`)

	require.Equal(t, http.StatusInternalServerError, resp.Code)
	require.Contains(t, resp.Body.String(), "internal_error")
}

func TestListTouchpointsHandler_Success(t *testing.T) {
	store := newFakeTouchpointStore()
	r := newTestRouter(store, nil)

	resp := postBatch(t, r, `[
		{"user_id": "user-1", "timestamp": "2024-03-01T12:00:00Z", "channel": "email", "interaction": "touch", "value": "0"}
	]`)
	require.Equal(t, http.StatusAccepted, resp.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/touchpoints/user-1", nil)
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		UserID      string           `json:"user_id"`
		Touchpoints []*v1.Touchpoint `json:"touchpoints"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Equal(t, "user-1", body.UserID)
	require.Len(t, body.Touchpoints, 1)
	require.Equal(t, "email", body.Touchpoints[0].Channel)
}

func TestListTouchpointsHandler_EmptyResult(t *testing.T) {
	r := newTestRouter(newFakeTouchpointStore(), nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/touchpoints/nobody", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), `"touchpoints":[]`)
}

func TestListTouchpointsHandler_StoreError(t *testing.T) {
	store := newFakeTouchpointStore()
	store.listErr = errors.New("db failure")
	r := newTestRouter(store, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/touchpoints/user-1", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	require.Equal(t, http.StatusInternalServerError, resp.Code)
}
