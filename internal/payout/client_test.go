package payout

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransfer(t *testing.T) {
	var got TransferRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/app/transfer", r.URL.Path)
		assert.Equal(t, "key-1", r.Header.Get("Rocket-Pay-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"success":true,"data":{"id":991,"tgUserId":42,"currency":"USDT","amount":142.5}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key-1")
	tr, err := c.Transfer(context.Background(), 7, 42, "USDT", decimal.RequireFromString("142.5"))
	require.NoError(t, err)

	assert.EqualValues(t, 991, tr.ID)
	assert.EqualValues(t, 42, got.TgUserID)
	assert.Equal(t, "USDT", got.Currency)
	assert.Equal(t, json.Number("142.5"), got.Amount)
	assert.Equal(t, TransferID(7), got.TransferID)
}

func TestTransferErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Rocket-Pay-Key") == "bad" {
			http.Error(w, `{"success":false}`, http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"success":false,"message":"not enough funds"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "bad").Transfer(context.Background(), 1, 1, "USDT", decimal.NewFromInt(1))
	assert.ErrorContains(t, err, "status: 401")

	_, err = NewClient(srv.URL, "ok").Transfer(context.Background(), 1, 1, "USDT", decimal.NewFromInt(1))
	assert.ErrorContains(t, err, "not enough funds")
}

func TestTransferIDIsStable(t *testing.T) {
	assert.Equal(t, TransferID(5), TransferID(5))
	assert.NotEqual(t, TransferID(5), TransferID(6))
}
