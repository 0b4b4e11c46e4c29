package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	_ "github.com/noah-isme/stocktrace/testing"
)

func newTestServer(t *testing.T) (*testEnv, *httptest.Server) {
	t.Helper()
	env := newTestEnv(t, ServiceConfig{})
	r := chi.NewRouter()
	NewHandler(nil, env.service).MountRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return env, srv
}

func postMovement(t *testing.T, srv *httptest.Server, body map[string]any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(srv.URL+"/movements", "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	return resp
}

func TestHandlerRecordMovement(t *testing.T) {
	env, srv := newTestServer(t)
	productID := env.addProduct(5, 0)

	resp := postMovement(t, srv, map[string]any{
		"product_id": productID, "kind": "ISSUE", "quantity": 2, "note": "order #18"})
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var out recordMovementResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotEmpty(t, out.MovementID)
	require.Equal(t, int64(3), out.NewQuantity)
}

func TestHandlerInsufficientStockConflict(t *testing.T) {
	env, srv := newTestServer(t)
	productID := env.addProduct(1, 0)

	resp := postMovement(t, srv, map[string]any{
		"product_id": productID, "kind": "ISSUE", "quantity": 2})
	defer resp.Body.Close()
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestHandlerUnknownProduct(t *testing.T) {
	_, srv := newTestServer(t)

	resp := postMovement(t, srv, map[string]any{
		"product_id": "33333333-3333-3333-3333-333333333333", "kind": "RECEIPT", "quantity": 1})
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandlerRequestValidation(t *testing.T) {
	env, srv := newTestServer(t)
	productID := env.addProduct(5, 0)

	cases := []map[string]any{
		{"product_id": productID, "kind": "TRANSFER", "quantity": 1},
		{"product_id": productID, "kind": "ISSUE", "quantity": 0},
		{"product_id": productID, "kind": "ISSUE", "quantity": -4},
		{"product_id": "not-a-uuid", "kind": "ISSUE", "quantity": 1},
		{"kind": "ISSUE", "quantity": 1},
	}
	for i, body := range cases {
		resp := postMovement(t, srv, body)
		require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, "case %d", i)
		resp.Body.Close()
	}

	resp, err := http.Post(srv.URL+"/movements", "application/json", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandlerHistoryAndQuantity(t *testing.T) {
	env, srv := newTestServer(t)
	productID := env.addProduct(0, 0)

	for _, body := range []map[string]any{
		{"product_id": productID, "kind": "RECEIPT", "quantity": 10},
		{"product_id": productID, "kind": "ISSUE", "quantity": 4},
	} {
		resp := postMovement(t, srv, body)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		resp.Body.Close()
	}

	resp, err := http.Get(fmt.Sprintf("%s/products/%s/history", srv.URL, productID))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var entries []HistoryEntry
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&entries))
	require.Len(t, entries, 2)
	require.Equal(t, int64(6), entries[0].BalanceAfter)
	require.Equal(t, int64(10), entries[1].BalanceAfter)

	qresp, err := http.Get(fmt.Sprintf("%s/products/%s/quantity", srv.URL, productID))
	require.NoError(t, err)
	defer qresp.Body.Close()
	require.Equal(t, http.StatusOK, qresp.StatusCode)

	var quantity struct {
		ProductID string `json:"product_id"`
		Quantity  int64  `json:"quantity"`
	}
	require.NoError(t, json.NewDecoder(qresp.Body).Decode(&quantity))
	require.Equal(t, int64(6), quantity.Quantity)
}

func TestHandlerHistoryUnknownProductEmpty(t *testing.T) {
	_, srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/products/44444444-4444-4444-4444-444444444444/history")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var entries []HistoryEntry
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&entries))
	require.Empty(t, entries)
}
