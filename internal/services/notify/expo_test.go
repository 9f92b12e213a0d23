package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weaponwatch-server-go/internal/config"
	"weaponwatch-server-go/internal/models"
)

func TestExpoPusherPostsMessageArray(t *testing.T) {
	var received []models.PushMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	pusher := NewExpoPusher(&config.Config{PushGatewayURL: srv.URL, PushTimeout: time.Second})
	msg, ok := Compose(models.PhasePending, testSite(), admin(), true)
	require.True(t, ok)

	require.NoError(t, pusher.Push(context.Background(), msg))
	require.Len(t, received, 1)
	assert.Equal(t, "POTENTIAL THREAT DETECTED", received[0].Title)
	assert.Equal(t, admin().PushToken, received[0].To)
}

func TestExpoPusherGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errors":[{"code":"PUSH_TOO_MANY_EXPERIENCE_IDS"}]}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	pusher := NewExpoPusher(&config.Config{PushGatewayURL: srv.URL, PushTimeout: time.Second})
	msg, _ := Compose(models.PhasePending, testSite(), admin(), true)

	err := pusher.Push(context.Background(), msg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}
