package infra

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDrawerClient_Kick(t *testing.T) {
	var got DrawerKick
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/kick", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewDrawerClient(srv.URL, nil)
	require.True(t, c.Enabled())
	require.NoError(t, c.Kick(context.Background(), DrawerKick{OrderID: "o1", PaymentID: "p1", Amount: "10.00"}))
	assert.Equal(t, "p1", got.PaymentID)
}

func TestDrawerClient_FailuresTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewDrawerClient(srv.URL, NewCircuitBreaker("drawer", CircuitBreakerConfig{FailureThreshold: 2}))
	for i := 0; i < 2; i++ {
		assert.Error(t, c.Kick(context.Background(), DrawerKick{}))
	}
	assert.ErrorIs(t, c.Kick(context.Background(), DrawerKick{}), ErrCircuitOpen)
	assert.Equal(t, CBOpen, c.BreakerState())
}

func TestDrawerClient_DisabledWithoutURL(t *testing.T) {
	assert.False(t, NewDrawerClient("", nil).Enabled())
	var nilClient *DrawerClient
	assert.False(t, nilClient.Enabled())
}
