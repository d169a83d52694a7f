package syncer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"launchpad-indexer/internal/domain"
	"launchpad-indexer/internal/evm"
	"launchpad-indexer/internal/projector"
	"launchpad-indexer/internal/storage"
	"launchpad-indexer/internal/storage/memory"
)

const (
	factoryAddr = "0xfac0000000000000000000000000000000000000"
	tokenAddr   = "0x1111111111111111111111111111111111111111"
	curveAddr   = "0x2222222222222222222222222222222222222222"
	walletAddr  = "0x3333333333333333333333333333333333333333"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClient serves canned logs for any source whose address matches.
type fakeClient struct {
	head    uint64
	logs    []evm.Log
	headErr error
	logsErr error
	tsErr   map[uint64]error

	tsCalls int
}

func (f *fakeClient) BlockNumber(context.Context) (uint64, error) {
	return f.head, f.headErr
}

func (f *fakeClient) GetLogs(_ context.Context, q evm.FilterQuery) ([]evm.Log, error) {
	if f.logsErr != nil {
		return nil, f.logsErr
	}
	var out []evm.Log
	for _, l := range f.logs {
		if l.Address != q.Address {
			continue
		}
		if l.BlockNumber < q.FromBlock || l.BlockNumber > q.ToBlock {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (f *fakeClient) BlockTimestamp(_ context.Context, block uint64) (int64, error) {
	f.tsCalls++
	if err := f.tsErr[block]; err != nil {
		return 0, err
	}
	return int64(block) * 1000, nil
}

// eventDecode maps canned logs back to pre-built events by idempotency
// key so tests never construct ABI hex.
type eventDecode struct {
	events map[string]domain.ChainEvent
}

func newEventDecode() *eventDecode {
	return &eventDecode{events: make(map[string]domain.ChainEvent)}
}

func (d *eventDecode) add(l evm.Log, ev domain.ChainEvent) evm.Log {
	d.events[fmt.Sprintf("%s|%d", l.TxHash, l.LogIndex)] = ev
	return l
}

func (d *eventDecode) decode(l evm.Log, ts int64) (domain.ChainEvent, error) {
	ev, ok := d.events[fmt.Sprintf("%s|%d", l.TxHash, l.LogIndex)]
	if !ok {
		return nil, fmt.Errorf("no event for log %s:%d", l.TxHash, l.LogIndex)
	}
	return ev, nil
}

func logAt(addr string, block uint64, index uint32) evm.Log {
	return evm.Log{
		Address:     addr,
		Topics:      []string{"0x0"},
		TxHash:      fmt.Sprintf("0x%064x", block*1000+uint64(index)),
		BlockNumber: block,
		BlockHash:   fmt.Sprintf("0x%064x", block),
		LogIndex:    index,
	}
}

func refFor(l evm.Log) domain.EventRef {
	return domain.EventRef{
		TxHash:      l.TxHash,
		LogIndex:    l.LogIndex,
		BlockNumber: l.BlockNumber,
		BlockHash:   l.BlockHash,
		Timestamp:   int64(l.BlockNumber) * 1000,
	}
}

func launchAt(l evm.Log) *domain.TokenLaunched {
	return &domain.TokenLaunched{
		EventRef:     refFor(l),
		Token:        tokenAddr,
		Creator:      walletAddr,
		BondingCurve: curveAddr,
		Name:         "Test",
		Symbol:       "TST",
		TotalSupply:  big.NewInt(1_000_000),
		CurveSupply:  big.NewInt(800_000),
	}
}

func buyAt(l evm.Log, wallet string, ethIn, tokensOut int64) *domain.TokensPurchased {
	return &domain.TokensPurchased{
		EventRef:  refFor(l),
		Token:     tokenAddr,
		Buyer:     wallet,
		EthIn:     big.NewInt(ethIn),
		TokensOut: big.NewInt(tokensOut),
		NewPrice:  big.NewInt(0),
		Fee:       big.NewInt(0),
	}
}

type recordingSink struct {
	notifications []domain.Notification
}

func (r *recordingSink) Dispatch(_ context.Context, ns []domain.Notification) {
	r.notifications = append(r.notifications, ns...)
}

func newTestSyncer(client evm.Client, store storage.Store, dec DecodeFunc, sink NotificationSink) *Syncer {
	return New(Options{
		Client:   client,
		Store:    store,
		Registry: NewStoreRegistry(store.Tokens(), factoryAddr, 1),
		Applier: projector.New(projector.Options{
			Store:  store,
			Logger: testLogger(),
		}),
		Sink:          sink,
		Logger:        testLogger(),
		Confirmations: 0,
		Decode:        dec,
	})
}

func TestTickProjectsFactoryAndCurveLogs(t *testing.T) {
	store := memory.NewStore()
	dec := newEventDecode()

	launchLog := logAt(factoryAddr, 10, 0)
	buyLog := logAt(curveAddr, 20, 0)

	client := &fakeClient{
		head: 100,
		logs: []evm.Log{
			dec.add(launchLog, launchAt(launchLog)),
			dec.add(buyLog, buyAt(buyLog, walletAddr, 500, 1000)),
		},
	}

	sink := &recordingSink{}
	s := newTestSyncer(client, store, dec.decode, sink)
	ctx := context.Background()

	// First tick: only the factory source exists, so only the launch
	// lands. The curve source appears next tick via the registry.
	s.Tick(ctx)

	_, err := store.Tokens().Get(ctx, tokenAddr)
	require.NoError(t, err)

	wm, err := store.Watermarks().Get(ctx, SourceFactory)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), wm.LastBlock)

	// Second tick: the registry now derives the curve source and the
	// buy is projected.
	s.Tick(ctx)

	token, err := store.Tokens().Get(ctx, tokenAddr)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), token.SoldSupply.Int64())

	wm, err = store.Watermarks().Get(ctx, CurveSourceName(curveAddr))
	require.NoError(t, err)
	assert.Equal(t, uint64(100), wm.LastBlock)

	// Notifications flowed to the sink for both events.
	types := make(map[string]int)
	for _, n := range sink.notifications {
		types[n.Type]++
	}
	assert.Equal(t, 2, types[domain.NotifyTokenNew])
	assert.Equal(t, 2, types[domain.NotifyTradeNew])
	assert.Equal(t, 1, types[domain.NotifyHolderUpdate])
}

func TestTickIdempotentAcrossRestarts(t *testing.T) {
	store := memory.NewStore()
	dec := newEventDecode()

	launchLog := logAt(factoryAddr, 10, 0)
	client := &fakeClient{
		head: 100,
		logs: []evm.Log{dec.add(launchLog, launchAt(launchLog))},
	}

	s := newTestSyncer(client, store, dec.decode, nil)
	ctx := context.Background()

	s.Tick(ctx)
	// Simulate a lost watermark write: reset and re-tick. Projection
	// dedup keeps state single-counted.
	require.NoError(t, store.Watermarks().Reset(ctx, SourceFactory, 0))
	s.Tick(ctx)

	count, err := store.Tokens().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestConfirmationsHoldBackHead(t *testing.T) {
	store := memory.NewStore()
	dec := newEventDecode()

	headLog := logAt(factoryAddr, 100, 0)
	client := &fakeClient{
		head: 100,
		logs: []evm.Log{dec.add(headLog, launchAt(headLog))},
	}

	s := newTestSyncer(client, store, dec.decode, nil)
	s.confirmations = 5
	s.Tick(context.Background())

	// Block 100 is not yet confirmed; nothing projected, watermark at 95.
	_, err := store.Tokens().Get(context.Background(), tokenAddr)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	wm, err := store.Watermarks().Get(context.Background(), SourceFactory)
	require.NoError(t, err)
	assert.Equal(t, uint64(95), wm.LastBlock)
}

func TestBatchSizeClampsRange(t *testing.T) {
	store := memory.NewStore()
	client := &fakeClient{head: 10_000}

	s := newTestSyncer(client, store, newEventDecode().decode, nil)
	s.batchBlocks = 100
	s.Tick(context.Background())

	wm, err := store.Watermarks().Get(context.Background(), SourceFactory)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), wm.LastBlock, "one batch from start block 1")
}

func TestMalformedLogSkipped(t *testing.T) {
	store := memory.NewStore()
	dec := newEventDecode()

	badLog := logAt(factoryAddr, 5, 0) // never registered with dec
	goodLog := logAt(factoryAddr, 10, 0)

	client := &fakeClient{
		head: 100,
		logs: []evm.Log{badLog, dec.add(goodLog, launchAt(goodLog))},
	}

	s := newTestSyncer(client, store, dec.decode, nil)
	s.Tick(context.Background())

	// The malformed log is skipped, the rest of the batch lands and the
	// watermark still advances.
	_, err := store.Tokens().Get(context.Background(), tokenAddr)
	require.NoError(t, err)

	wm, err := store.Watermarks().Get(context.Background(), SourceFactory)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), wm.LastBlock)
}

func TestQuarantinedEventDoesNotBlockBatch(t *testing.T) {
	store := memory.NewStore()
	dec := newEventDecode()

	launchLog := logAt(factoryAddr, 10, 0)
	client := &fakeClient{
		head: 100,
		logs: []evm.Log{dec.add(launchLog, launchAt(launchLog))},
	}
	s := newTestSyncer(client, store, dec.decode, nil)
	ctx := context.Background()
	s.Tick(ctx)

	// A sell with no position violates the balance invariant.
	sellLog := logAt(curveAddr, 20, 0)
	okLog := logAt(curveAddr, 30, 0)
	client.logs = append(client.logs,
		dec.add(sellLog, &domain.TokensSold{
			EventRef: refFor(sellLog),
			Token:    tokenAddr,
			Seller:   walletAddr,
			TokensIn: big.NewInt(100),
			EthOut:   big.NewInt(50),
		}),
		dec.add(okLog, buyAt(okLog, walletAddr, 500, 1000)),
	)
	s.Tick(ctx)

	// The poisoned event is quarantined; the later buy still applied
	// and the watermark moved past both.
	token, err := store.Tokens().Get(ctx, tokenAddr)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), token.SoldSupply.Int64())

	wm, err := store.Watermarks().Get(ctx, CurveSourceName(curveAddr))
	require.NoError(t, err)
	assert.Equal(t, uint64(100), wm.LastBlock)
}

func TestStorageFailureAdvancesPrefixOnly(t *testing.T) {
	store := memory.NewStore()
	dec := newEventDecode()

	okLog := logAt(factoryAddr, 10, 0)
	failLog := logAt(factoryAddr, 20, 0)
	dec.add(okLog, launchAt(okLog))
	dec.add(failLog, launchAt(failLog))

	client := &fakeClient{head: 100, logs: []evm.Log{okLog, failLog}}

	failing := &failingApplier{
		inner:  projector.New(projector.Options{Store: store, Logger: testLogger()}),
		failAt: failLog.TxHash,
	}
	s := New(Options{
		Client:   client,
		Store:    store,
		Registry: NewStoreRegistry(store.Tokens(), factoryAddr, 1),
		Applier:  failing,
		Logger:   testLogger(),
		Decode:   dec.decode,
	})

	err := s.syncSource(context.Background(), Source{
		Name:       SourceFactory,
		Kind:       KindFactory,
		Address:    factoryAddr,
		Topics:     nil,
		StartBlock: 1,
	}, 100)
	require.Error(t, err)

	// The applied prefix is fenced: watermark stops just before the
	// failed block so the retry resumes there.
	wm, err := store.Watermarks().Get(context.Background(), SourceFactory)
	require.NoError(t, err)
	assert.Equal(t, uint64(19), wm.LastBlock)
}

func TestBlockTimestampsResolvedOncePerBlock(t *testing.T) {
	store := memory.NewStore()
	dec := newEventDecode()

	launchLog := logAt(factoryAddr, 10, 0)
	client := &fakeClient{
		head: 100,
		logs: []evm.Log{dec.add(launchLog, launchAt(launchLog))},
	}
	s := newTestSyncer(client, store, dec.decode, nil)
	ctx := context.Background()
	s.Tick(ctx)

	// Three curve logs in one block resolve the timestamp once.
	logs := []evm.Log{
		logAt(curveAddr, 20, 0),
		logAt(curveAddr, 20, 1),
		logAt(curveAddr, 20, 2),
	}
	for i, l := range logs {
		client.logs = append(client.logs, dec.add(l, buyAt(l, walletAddr, 100, int64(100+i))))
	}

	client.tsCalls = 0
	s.Tick(ctx)
	assert.Equal(t, 1, client.tsCalls)
}

type failingApplier struct {
	inner  Applier
	failAt string // tx hash that fails
}

func (f *failingApplier) Apply(ctx context.Context, ev domain.ChainEvent) ([]domain.Notification, error) {
	if ev.Ref().TxHash == f.failAt {
		return nil, errors.New("storage unavailable")
	}
	return f.inner.Apply(ctx, ev)
}
