package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arforge/internal/models"
)

func TestSubmitSendsBearerAuthAndReturnsTaskID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/tasks", r.URL.Path)
		assert.Equal(t, "Bearer secret-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req SubmitRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, int64(42), req.ProductID)

		json.NewEncoder(w).Encode(map[string]any{
			"code": 0,
			"data": map[string]any{"task_id": "task-xyz"},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "secret-key", 0)
	taskID, err := client.Submit(context.Background(), SubmitRequest{ProductID: 42, Name: "Walnut Desk"})
	require.NoError(t, err)
	assert.Equal(t, "task-xyz", taskID)
}

func TestGetStatusParsesEnvelope(t *testing.T) {
	body := `{"code":0,"message":"","data":{"task_id":"task-xyz","status":"processing","progress":64,"result":{"model_url":"","image_url":""}}}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/tasks/task-xyz", r.URL.Path)
		w.Write([]byte(body))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "secret-key", 0)
	res, err := client.GetStatus(context.Background(), "task-xyz")
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusProcessing, res.Status)
	assert.Equal(t, 64, res.Progress)
	// Raw preserves the verbatim body for the audit trail.
	assert.JSONEq(t, body, string(res.Raw))
}

func TestGetStatusSuccessCarriesResultURLs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"code": 0,
			"data": map[string]any{
				"task_id":  "task-xyz",
				"status":   "success",
				"progress": 100,
				"result": map[string]any{
					"model_url": "https://cdn.example.com/m.glb",
					"image_url": "https://cdn.example.com/p.webp",
				},
			},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "secret-key", 0)
	res, err := client.GetStatus(context.Background(), "task-xyz")
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusSuccess, res.Status)
	assert.Equal(t, "https://cdn.example.com/m.glb", res.ModelURL)
	assert.Equal(t, "https://cdn.example.com/p.webp", res.PreviewURL)
}

func TestGetStatusUnknownStatusNormalizesToProcessing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"code": 0,
			"data": map[string]any{"task_id": "task-xyz", "status": "FINALIZING", "progress": 97},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "secret-key", 0)
	res, err := client.GetStatus(context.Background(), "task-xyz")
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusProcessing, res.Status)
	assert.Equal(t, "FINALIZING", res.RawStatus)
}

func TestGetStatusProgressIsClamped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"code": 0,
			"data": map[string]any{"task_id": "task-xyz", "status": "processing", "progress": 180},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "secret-key", 0)
	res, err := client.GetStatus(context.Background(), "task-xyz")
	require.NoError(t, err)
	assert.Equal(t, 100, res.Progress)
}

func TestApplicationErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"code": 4001, "message": "quota exceeded"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "secret-key", 0)
	_, err := client.GetStatus(context.Background(), "task-xyz")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrServiceError))
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestNon2xxResponseIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "secret-key", 0)
	_, err := client.GetStatus(context.Background(), "task-xyz")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestMalformedPayloadIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "secret-key", 0)
	_, err := client.GetStatus(context.Background(), "task-xyz")
	require.Error(t, err)
}
