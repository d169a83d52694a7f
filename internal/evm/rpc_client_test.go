package evm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rpcServer(t *testing.T, handler func(method string, params []json.RawMessage) (any, *rpcError)) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     uint64            `json:"id"`
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		result, rpcErr := handler(req.Method, req.Params)
		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func fastClient(endpoint string) *HTTPClient {
	return NewHTTPClient(endpoint,
		WithMaxRetries(2),
		WithRetryDelay(time.Millisecond),
		WithRateLimit(10_000),
	)
}

func TestBlockNumber(t *testing.T) {
	srv := rpcServer(t, func(method string, _ []json.RawMessage) (any, *rpcError) {
		require.Equal(t, "eth_blockNumber", method)
		return "0x64", nil
	})
	defer srv.Close()

	head, err := fastClient(srv.URL).BlockNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(100), head)
}

func TestCallRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		var req struct {
			ID uint64 `json:"id"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": "0x2a"})
	}))
	defer srv.Close()

	head, err := fastClient(srv.URL).BlockNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(42), head)
	assert.Equal(t, int32(3), calls.Load())
}

func TestCallGivesUpAfterMaxRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := fastClient(srv.URL).BlockNumber(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries exceeded")
}

func TestCallDoesNotRetryNodeErrors(t *testing.T) {
	var calls atomic.Int32
	srv := rpcServer(t, func(string, []json.RawMessage) (any, *rpcError) {
		calls.Add(1)
		return nil, &rpcError{Code: -32602, Message: "invalid params"}
	})
	defer srv.Close()

	_, err := fastClient(srv.URL).BlockNumber(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid params")
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetLogs(t *testing.T) {
	srv := rpcServer(t, func(method string, params []json.RawMessage) (any, *rpcError) {
		require.Equal(t, "eth_getLogs", method)
		require.Len(t, params, 1)

		var filter map[string]any
		require.NoError(t, json.Unmarshal(params[0], &filter))
		assert.Equal(t, "0x14", filter["fromBlock"])
		assert.Equal(t, "0x1e", filter["toBlock"])
		assert.Equal(t, "0xfac7", filter["address"])

		return []map[string]any{{
			"address":         "0xfac7",
			"topics":          []string{"0xaaaa"},
			"data":            "0x",
			"blockNumber":     "0x15",
			"blockHash":       "0xbh",
			"transactionHash": "0xth",
			"logIndex":        "0x2",
			"removed":         false,
		}}, nil
	})
	defer srv.Close()

	logs, err := fastClient(srv.URL).GetLogs(context.Background(), FilterQuery{
		Address:   "0xfac7",
		Topics:    []string{"0xaaaa"},
		FromBlock: 20,
		ToBlock:   30,
	})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, uint64(21), logs[0].BlockNumber)
	assert.Equal(t, uint32(2), logs[0].LogIndex)
	assert.Equal(t, "0xth", logs[0].TxHash)
}

func TestBlockTimestamp(t *testing.T) {
	srv := rpcServer(t, func(method string, params []json.RawMessage) (any, *rpcError) {
		require.Equal(t, "eth_getBlockByNumber", method)
		return map[string]any{"timestamp": "0x65"}, nil
	})
	defer srv.Close()

	ts, err := fastClient(srv.URL).BlockTimestamp(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, int64(101_000), ts)
}

func TestBlockTimestampMissingBlock(t *testing.T) {
	srv := rpcServer(t, func(string, []json.RawMessage) (any, *rpcError) {
		return nil, nil
	})
	defer srv.Close()

	_, err := fastClient(srv.URL).BlockTimestamp(context.Background(), 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
