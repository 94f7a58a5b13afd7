package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"adgrid/internal/dto"
	"adgrid/internal/events"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventsStream(t *testing.T) {
	hub := events.NewHub(4)
	h := NewEventsHandler(hub)
	h.heartbeat = time.Hour

	e := echo.New()
	e.GET("/api/events", h.Stream)
	srv := httptest.NewServer(e)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get(echo.HeaderContentType))
	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	sent := events.New(events.TypePurchaseCompleted, "purchase", "order_1", 3, "alice", nil)
	require.NoError(t, hub.Publish(ctx, sent))

	reader := bufio.NewReader(resp.Body)
	var eventType, data string
	for data == "" {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			eventType = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}

	assert.Equal(t, events.TypePurchaseCompleted, eventType)
	var got events.Event
	require.NoError(t, json.Unmarshal([]byte(data), &got))
	assert.Equal(t, "order_1", got.EntityID)
	assert.Equal(t, 3, got.BoxIndex)
	assert.Equal(t, sent.Version, got.Version)

	resp.Body.Close()
	cancel()
	assert.Eventually(t, func() bool { return hub.Subscribers() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestClientConfig(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodGet, "/api/config", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	cfg := decode[dto.ClientConfigResponse](t, rec)
	assert.Equal(t, "rzp_public", cfg.KeyID)
	assert.Equal(t, 12, cfg.BoxCount)
	assert.Equal(t, int64(83), cfg.UnitPrice)
}
