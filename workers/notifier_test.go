package workers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"quest-tracking-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifierDeliversEvent(t *testing.T) {
	type received struct {
		Event   string                 `json:"event"`
		Payload map[string]interface{} `json:"payload"`
	}

	var got received
	var gotToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/notifications", r.URL.Path)
		gotToken = r.Header.Get("X-Service-Token")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	n := NewNotifier(srv.URL, "secret-token")
	handler := n.HandlerFor(models.TaskQuestCompleted)

	err := handler(context.Background(), map[string]interface{}{
		"external_user_id": "u-1",
		"quest_title":      "Summit Hike",
	})
	require.NoError(t, err)

	assert.Equal(t, "secret-token", gotToken)
	assert.Equal(t, models.TaskQuestCompleted, got.Event)
	assert.Equal(t, "Summit Hike", got.Payload["quest_title"])
}

func TestNotifierRejectsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "template missing", http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := NewNotifier(srv.URL, "secret-token")
	err := n.HandlerFor(models.TaskWelcomeUser)(context.Background(), map[string]interface{}{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestNotifierUnreachableService(t *testing.T) {
	n := NewNotifier("http://127.0.0.1:1", "secret-token")
	err := n.HandlerFor(models.TaskDailyDigest)(context.Background(), nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unreachable")
}
