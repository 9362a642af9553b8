package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/counterline/posledger/pos"
)

func testOrder() pos.Order {
	return pos.Order{
		ID:            "20261017-0001",
		Lines:         []pos.MenuLine{{ProductID: "latte", UnitPrice: pos.MustMoney("65"), Quantity: 1}},
		Subtotal:      pos.MustMoney("65"),
		Total:         pos.MustMoney("65"),
		CreatedAt:     time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC),
		PaymentMethod: pos.PaymentCash,
		Status:        pos.OrderCompleted,
		SyncState:     pos.SyncPending,
	}
}

func TestSaveOrder_Success(t *testing.T) {
	var got pos.Order
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/orders", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"status":"success"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", 0)
	require.NoError(t, c.SaveOrder(context.Background(), testOrder()))
	assert.Equal(t, "20261017-0001", got.ID)
	assert.Equal(t, "65.00", got.Total.String())
}

func TestSaveOrder_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "error envelope",
			status: http.StatusOK,
			body:   `{"status":"error","message":"duplicate"}`,
			check:  func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrRejected) },
		},
		{
			name:   "missing status",
			status: http.StatusOK,
			body:   `{}`,
			check:  func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrRejected) },
		},
		{
			name:   "malformed body",
			status: http.StatusOK,
			body:   `<html>`,
			check:  func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrMalformedResponse) },
		},
		{
			name:   "http error",
			status: http.StatusBadGateway,
			body:   `upstream down`,
			check: func(t *testing.T, err error) {
				var se *StatusError
				require.True(t, errors.As(err, &se))
				assert.Equal(t, http.StatusBadGateway, se.Code)
				assert.Equal(t, "upstream down", se.Body)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			err := NewClient(srv.URL, 0).SaveOrder(context.Background(), testOrder())
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestSaveOrder_ContextTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := NewClient(srv.URL, 0).SaveOrder(ctx, testOrder())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFetchMenu(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/menu", r.URL.Path)
		w.Write([]byte(`{
			"status": "success",
			"categories": ["coffee", "cake"],
			"menuItems": [
				{"id": "latte", "name": "Latte", "price": 65, "category": "coffee"},
				{"id": "brownie", "name": "Brownie", "price": "45.5", "category": "cake"}
			]
		}`))
	}))
	defer srv.Close()

	menu, err := NewClient(srv.URL, DefaultRPS).FetchMenu(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"coffee", "cake"}, menu.Categories)
	require.Len(t, menu.MenuItems, 2)
	assert.Equal(t, "65.00", menu.MenuItems[0].Price.String())
	assert.Equal(t, "45.50", menu.MenuItems[1].Price.String())
	assert.Equal(t, int32(1), calls.Load())
}
