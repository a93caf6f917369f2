package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockedby/stockwatch-os/internal/logger"
)

func TestSendText_OK(t *testing.T) {
	var gotPath, gotKey string
	var gotBody sendTextBody

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("apikey")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"key":{"id":"msg-1"}}`))
	}))
	defer srv.Close()

	client := NewClient(5*time.Second, logger.Get())
	err := client.SendText(context.Background(), SendRequest{
		GatewayURL: srv.URL,
		APIKey:     "tenant-key",
		Instance:   "loja-centro",
		Number:     "5511999990000",
		Text:       "📦 Relatório de Estoque",
	})

	require.NoError(t, err)
	assert.Equal(t, "/message/sendText/loja-centro", gotPath)
	assert.Equal(t, "tenant-key", gotKey)
	assert.Equal(t, "5511999990000", gotBody.Number)
	assert.Equal(t, "📦 Relatório de Estoque", gotBody.Text)
}

func TestSendText_TrailingSlashOnGatewayURL(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(5*time.Second, logger.Get())
	err := client.SendText(context.Background(), SendRequest{
		GatewayURL: srv.URL + "/",
		APIKey:     "k",
		Instance:   "inst",
		Number:     "n",
		Text:       "t",
	})
	require.NoError(t, err)
	assert.Equal(t, "/message/sendText/inst", gotPath)
}

func TestSendText_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"status":401,"error":"Unauthorized","response":{"message":"invalid apikey"}}`))
	}))
	defer srv.Close()

	client := NewClient(5*time.Second, logger.Get())
	err := client.SendText(context.Background(), SendRequest{
		GatewayURL: srv.URL, APIKey: "bad", Instance: "inst", Number: "n", Text: "t",
	})

	require.ErrorIs(t, err, ErrGateway)
	assert.Contains(t, err.Error(), "status 401")
	assert.Contains(t, err.Error(), "invalid apikey")
}

func TestSendText_ErrorBodyTruncated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(strings.Repeat("x", 10_000)))
	}))
	defer srv.Close()

	client := NewClient(5*time.Second, logger.Get())
	err := client.SendText(context.Background(), SendRequest{
		GatewayURL: srv.URL, APIKey: "k", Instance: "inst", Number: "n", Text: "t",
	})

	require.ErrorIs(t, err, ErrGateway)
	assert.Less(t, len(err.Error()), maxErrorBody+128)
}

func TestSendText_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // closed server refuses connections

	client := NewClient(time.Second, logger.Get())
	err := client.SendText(context.Background(), SendRequest{
		GatewayURL: srv.URL, APIKey: "k", Instance: "inst", Number: "n", Text: "t",
	})
	assert.ErrorIs(t, err, ErrGateway)
}

func TestSendText_MissingGatewayConfig(t *testing.T) {
	client := NewClient(time.Second, logger.Get())

	err := client.SendText(context.Background(), SendRequest{Instance: "inst"})
	assert.ErrorIs(t, err, ErrGateway)

	err = client.SendText(context.Background(), SendRequest{GatewayURL: "http://gw"})
	assert.ErrorIs(t, err, ErrGateway)
}
