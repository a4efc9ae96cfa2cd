package host

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/dataversion/pkg/account"
	"github.com/ssargent/dataversion/pkg/codec"
	"github.com/ssargent/dataversion/pkg/instruction"
	"github.com/ssargent/dataversion/pkg/processor"
	"github.com/ssargent/dataversion/pkg/programerr"
	"github.com/ssargent/dataversion/pkg/storage"
)

const slotSize = 1024

type testHost struct {
	*Host
	programID account.Address
	store     *storage.AccountStore
	metrics   *Metrics
}

func newTestHost(t *testing.T) *testHost {
	t.Helper()
	store, err := storage.Open("", storage.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	programID := solana.NewWallet().PublicKey()
	metrics := NewMetrics(prometheus.NewRegistry())
	return &testHost{
		Host:      New(store, processor.New(programID, nil), metrics),
		programID: programID,
		store:     store,
		metrics:   metrics,
	}
}

func encode(t *testing.T, cmd instruction.Command) []byte {
	t.Helper()
	data, err := instruction.Encode(cmd)
	require.NoError(t, err)
	return data
}

func TestHost_InitializeAndSet(t *testing.T) {
	h := newTestHost(t)
	ctx := context.Background()
	address := solana.NewWallet().PublicKey()

	acct, err := h.CreateAccount(ctx, address, slotSize)
	require.NoError(t, err)
	assert.Equal(t, h.programID, acct.Owner)

	res, err := h.Invoke(ctx, Request{Target: address, Data: encode(t, instruction.Initialize{})})
	require.NoError(t, err)
	assert.False(t, res.ID.IsNil())
	assert.True(t, res.Record.Initialized)
	assert.Equal(t, address, res.Record.Content.Key)

	_, err = h.Invoke(ctx, Request{Target: address, Data: encode(t, instruction.SetValue{Value: 50})})
	require.NoError(t, err)
	res, err = h.Invoke(ctx, Request{Target: address, Data: encode(t, instruction.SetText{Text: "Hello"})})
	require.NoError(t, err)
	assert.Equal(t, uint64(50), res.Record.Content.Value)
	assert.Equal(t, "Hello", res.Record.Content.Text)

	stored, record, err := h.Inspect(address)
	require.NoError(t, err)
	assert.Len(t, stored.Data, slotSize)
	assert.Equal(t, byte(50), stored.Data[2])
	assert.Equal(t, *res.Record, *record)

	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.invocationsTotal.WithLabelValues("initialize", resultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.invocationsTotal.WithLabelValues("set_text", resultSuccess)))
}

func TestHost_FailureLeavesStoreUnchanged(t *testing.T) {
	h := newTestHost(t)
	ctx := context.Background()
	address := solana.NewWallet().PublicKey()
	_, err := h.CreateAccount(ctx, address, slotSize)
	require.NoError(t, err)
	_, err = h.Invoke(ctx, Request{Target: address, Data: encode(t, instruction.Initialize{})})
	require.NoError(t, err)

	before, err := h.store.Get(address)
	require.NoError(t, err)

	foreign := solana.NewWallet().PublicKey()
	_, err = h.store.Create(foreign, solana.NewWallet().PublicKey(), slotSize)
	require.NoError(t, err)

	cases := []struct {
		name string
		req  Request
		want *programerr.Error
		code string
	}{
		{
			name: "duplicate initialize",
			req:  Request{Target: address, Data: encode(t, instruction.Initialize{})},
			want: programerr.ErrAlreadyInitialized,
			code: "AlreadyInitializedState",
		},
		{
			name: "foreign tracking account",
			req:  Request{Target: address, Tracking: []account.Address{foreign}, Data: encode(t, instruction.SetValue{Value: 2})},
			want: programerr.ErrIncorrectProgramID,
			code: "IncorrectProgramId",
		},
		{
			name: "fail sentinel",
			req:  Request{Target: address, Data: encode(t, instruction.Fail{})},
			want: programerr.ErrInvalidInstruction,
			code: "InvalidInstruction",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.Invoke(ctx, tc.req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)

			after, err := h.store.Get(address)
			require.NoError(t, err)
			assert.Equal(t, before.Data, after.Data)
		})
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.invocationsTotal.WithLabelValues("invalid", "InvalidInstruction")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.invocationsTotal.WithLabelValues("set_value", "IncorrectProgramId")))
}

func TestHost_MissingAccounts(t *testing.T) {
	h := newTestHost(t)
	ctx := context.Background()

	_, err := h.Invoke(ctx, Request{Target: solana.NewWallet().PublicKey(), Data: encode(t, instruction.Initialize{})})
	assert.True(t, errors.Is(err, storage.ErrAccountNotFound))

	address := solana.NewWallet().PublicKey()
	_, err = h.CreateAccount(ctx, address, slotSize)
	require.NoError(t, err)
	_, err = h.Invoke(ctx, Request{
		Target:   address,
		Tracking: []account.Address{solana.NewWallet().PublicKey()},
		Data:     encode(t, instruction.Initialize{}),
	})
	assert.True(t, errors.Is(err, storage.ErrAccountNotFound))

	_, err = h.CreateAccount(ctx, address, slotSize)
	assert.True(t, errors.Is(err, storage.ErrAccountExists))
}

func TestHost_LegacyUpgradePersisted(t *testing.T) {
	h := newTestHost(t)
	ctx := context.Background()
	address := solana.NewWallet().PublicKey()

	acct, err := h.CreateAccount(ctx, address, slotSize)
	require.NoError(t, err)
	acct.Data[0] = 1
	acct.Data[1] = codec.LegacyVersion
	binary.LittleEndian.PutUint64(acct.Data[2:], 50)
	require.NoError(t, h.store.Put(acct))

	stored, record, err := h.Inspect(address)
	require.NoError(t, err)
	assert.Equal(t, codec.CurrentVersion, record.Version)
	assert.Equal(t, codec.LegacyVersion, stored.Data[1], "inspect must not persist the upgrade")

	res, err := h.Invoke(ctx, Request{Target: address, Data: encode(t, instruction.SetText{Text: "Hello"})})
	require.NoError(t, err)
	require.NotNil(t, res.Outcome.UpgradedFrom)

	stored, err = h.store.Get(address)
	require.NoError(t, err)
	assert.Equal(t, codec.CurrentVersion, stored.Data[1])
	assert.Equal(t, byte(50), stored.Data[2])
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.upgradesTotal.WithLabelValues("0")))
}

func TestHost_ConcurrentInitialize(t *testing.T) {
	h := newTestHost(t)
	ctx := context.Background()
	address := solana.NewWallet().PublicKey()
	_, err := h.CreateAccount(ctx, address, slotSize)
	require.NoError(t, err)

	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	data := encode(t, instruction.Initialize{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.Invoke(ctx, Request{Target: address, Data: data})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, programerr.ErrAlreadyInitialized):
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, rejected)
}

func TestHost_CanceledContext(t *testing.T) {
	h := newTestHost(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.Invoke(ctx, Request{Target: solana.NewWallet().PublicKey()})
	assert.ErrorIs(t, err, context.Canceled)
	_, err = h.CreateAccount(ctx, solana.NewWallet().PublicKey(), slotSize)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHost_Accounts(t *testing.T) {
	h := newTestHost(t)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := h.CreateAccount(ctx, solana.NewWallet().PublicKey(), slotSize)
		require.NoError(t, err)
	}

	accts, err := h.Accounts()
	require.NoError(t, err)
	assert.Len(t, accts, 2)
}
