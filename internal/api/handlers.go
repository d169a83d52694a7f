package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"launchpad-indexer/internal/cache"
	"launchpad-indexer/internal/domain"
	"launchpad-indexer/internal/storage"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 200

	// ohlcvDefaultSpan bounds the series window when from/to are omitted.
	ohlcvDefaultSpan = 24 * time.Hour
)

type tokenListResponse struct {
	Tokens []domain.TokenView `json:"tokens"`
	Total  int64              `json:"total"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}

type tradeListResponse struct {
	Trades []domain.TradeView `json:"trades"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}

type holderListResponse struct {
	Holders []domain.HolderView `json:"holders"`
	Limit   int                 `json:"limit"`
}

type ohlcvResponse struct {
	Interval string                `json:"interval"`
	Bars     []domain.PriceBarView `json:"bars"`
}

type statsResponse struct {
	TokenCount    int64 `json:"tokenCount"`
	MigratedCount int64 `json:"migratedCount"`
	Timestamp     int64 `json:"timestamp"`
}

func (s *Server) handleTokens(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	key := fmt.Sprintf("tokens:%d:%d", limit, offset)
	v, err := s.cached(r.Context(), key, cache.ClassListing, func(ctx context.Context) (any, error) {
		tokens, err := s.store.Tokens().List(ctx, limit, offset)
		if err != nil {
			return nil, err
		}
		total, err := s.store.Tokens().Count(ctx)
		if err != nil {
			return nil, err
		}
		resp := tokenListResponse{
			Tokens: make([]domain.TokenView, 0, len(tokens)),
			Total:  total,
			Limit:  limit,
			Offset: offset,
		}
		for _, t := range tokens {
			resp.Tokens = append(resp.Tokens, domain.NewTokenView(t))
		}
		return resp, nil
	})
	s.respond(w, v, err)
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	addr := r.PathValue("address")

	key := "token:" + addr
	v, err := s.cached(r.Context(), key, cache.ClassTick, func(ctx context.Context) (any, error) {
		t, err := s.store.Tokens().Get(ctx, addr)
		if err != nil {
			return nil, err
		}
		return domain.NewTokenView(t), nil
	})
	s.respond(w, v, err)
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	addr := r.PathValue("address")
	limit, offset := pagination(r)

	key := fmt.Sprintf("trades:%s:%d:%d", addr, limit, offset)
	v, err := s.cached(r.Context(), key, cache.ClassTick, func(ctx context.Context) (any, error) {
		trades, err := s.store.Trades().ListByToken(ctx, addr, limit, offset)
		if err != nil {
			return nil, err
		}
		resp := tradeListResponse{
			Trades: make([]domain.TradeView, 0, len(trades)),
			Limit:  limit,
			Offset: offset,
		}
		for _, t := range trades {
			resp.Trades = append(resp.Trades, domain.NewTradeView(t))
		}
		return resp, nil
	})
	s.respond(w, v, err)
}

func (s *Server) handleHolders(w http.ResponseWriter, r *http.Request) {
	addr := r.PathValue("address")
	limit, _ := pagination(r)

	key := fmt.Sprintf("holders:%s:%d", addr, limit)
	v, err := s.cached(r.Context(), key, cache.ClassTick, func(ctx context.Context) (any, error) {
		holders, err := s.store.Holders().ListByToken(ctx, addr, limit)
		if err != nil {
			return nil, err
		}
		resp := holderListResponse{
			Holders: make([]domain.HolderView, 0, len(holders)),
			Limit:   limit,
		}
		for _, h := range holders {
			resp.Holders = append(resp.Holders, domain.NewHolderView(h))
		}
		return resp, nil
	})
	s.respond(w, v, err)
}

func (s *Server) handleOHLCV(w http.ResponseWriter, r *http.Request) {
	addr := r.PathValue("address")

	interval := domain.Interval(r.URL.Query().Get("interval"))
	if interval == "" {
		interval = domain.Interval1m
	}
	if !interval.Valid() {
		s.writeError(w, http.StatusBadRequest, "unknown interval")
		return
	}

	to := queryInt64(r, "to", time.Now().UnixMilli())
	from := queryInt64(r, "from", to-ohlcvDefaultSpan.Milliseconds())
	if from > to {
		s.writeError(w, http.StatusBadRequest, "from is after to")
		return
	}

	key := fmt.Sprintf("ohlcv:%s:%s:%d:%d", addr, interval, from, to)
	v, err := s.cached(r.Context(), key, cache.ClassTick, func(ctx context.Context) (any, error) {
		bars, err := s.store.PriceBars().Series(ctx, addr, interval, from, to)
		if err != nil {
			return nil, err
		}
		resp := ohlcvResponse{
			Interval: string(interval),
			Bars:     make([]domain.PriceBarView, 0, len(bars)),
		}
		for _, b := range bars {
			resp.Bars = append(resp.Bars, domain.NewPriceBarView(b))
		}
		return resp, nil
	})
	s.respond(w, v, err)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	v, err := s.cached(r.Context(), "stats", cache.ClassStats, func(ctx context.Context) (any, error) {
		total, err := s.store.Tokens().Count(ctx)
		if err != nil {
			return nil, err
		}
		unmigrated, err := s.store.Tokens().ListUnmigrated(ctx)
		if err != nil {
			return nil, err
		}
		return statsResponse{
			TokenCount:    total,
			MigratedCount: total - int64(len(unmigrated)),
			Timestamp:     time.Now().UnixMilli(),
		}, nil
	})
	s.respond(w, v, err)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// cached routes the compute through the read cache when one is wired;
// tests and degraded deployments run without it.
func (s *Server) cached(ctx context.Context, key string, class cache.Class, fn func(ctx context.Context) (any, error)) (any, error) {
	if s.cache == nil {
		return fn(ctx)
	}
	return s.cache.GetOrCompute(ctx, key, class, fn)
}

func (s *Server) respond(w http.ResponseWriter, v any, err error) {
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "not found")
			return
		}
		s.logger.Error("read handler failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func pagination(r *http.Request) (limit, offset int) {
	limit = int(queryInt64(r, "limit", defaultPageLimit))
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	offset = int(queryInt64(r, "offset", 0))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func queryInt64(r *http.Request, key string, fallback int64) int64 {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}
