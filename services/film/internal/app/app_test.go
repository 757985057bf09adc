package internal

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"reelshare/pkg/logger"
	"reelshare/pkg/queue"
	"reelshare/services/film/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenBacklog struct{}

func (brokenBacklog) QueueLength() (int, error) {
	return 0, errors.New("channel closed")
}

func getHealth(t *testing.T, backlog worker.Backlog) map[string]interface{} {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/health", healthHandler(backlog, logger.New()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHealth_ReportsPendingViews(t *testing.T) {
	q := worker.NewLocalQueue(8, logger.New())
	defer q.Close()
	require.NoError(t, q.PublishView(queue.ViewEvent{ContentID: "c-1"}))
	require.NoError(t, q.PublishView(queue.ViewEvent{ContentID: "c-2"}))

	body := getHealth(t, q)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(2), body["pending_views"])
}

func TestHealth_UninspectableQueueStaysHealthy(t *testing.T) {
	body := getHealth(t, brokenBacklog{})
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "unavailable", body["view_queue"])
	assert.NotContains(t, body, "pending_views")
}
