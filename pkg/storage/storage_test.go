package storage

import (
	"bytes"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMem(t *testing.T) *AccountStore {
	t.Helper()
	s, err := Open("", Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAccountStore_CreateGet(t *testing.T) {
	s := openMem(t)
	address := solana.NewWallet().PublicKey()
	owner := solana.NewWallet().PublicKey()

	created, err := s.Create(address, owner, 1024)
	require.NoError(t, err)
	assert.Len(t, created.Data, 1024)

	got, err := s.Get(address)
	require.NoError(t, err)
	assert.Equal(t, address, got.Address)
	assert.Equal(t, owner, got.Owner)
	assert.Equal(t, make([]byte, 1024), got.Data)

	_, err = s.Create(address, owner, 1024)
	assert.True(t, errors.Is(err, ErrAccountExists))

	_, err = s.Create(solana.NewWallet().PublicKey(), owner, -1)
	assert.Error(t, err)
}

func TestAccountStore_GetMissing(t *testing.T) {
	s := openMem(t)

	_, err := s.Get(solana.NewWallet().PublicKey())
	assert.True(t, errors.Is(err, ErrAccountNotFound))
}

func TestAccountStore_Put(t *testing.T) {
	s := openMem(t)
	owner := solana.NewWallet().PublicKey()

	a, err := s.Create(solana.NewWallet().PublicKey(), owner, 16)
	require.NoError(t, err)
	b, err := s.Create(solana.NewWallet().PublicKey(), owner, 16)
	require.NoError(t, err)

	t.Run("batch write", func(t *testing.T) {
		a.Data[0], b.Data[0] = 1, 2
		require.NoError(t, s.Put(a, b))

		got, err := s.Get(a.Address)
		require.NoError(t, err)
		assert.Equal(t, byte(1), got.Data[0])
		got, err = s.Get(b.Address)
		require.NoError(t, err)
		assert.Equal(t, byte(2), got.Data[0])
	})

	t.Run("size change rejected atomically", func(t *testing.T) {
		a.Data[0] = 9
		resized := *b
		resized.Data = make([]byte, 32)

		err := s.Put(a, &resized)
		assert.True(t, errors.Is(err, ErrSizeMismatch))

		got, err := s.Get(a.Address)
		require.NoError(t, err)
		assert.Equal(t, byte(1), got.Data[0], "first account must not be written")
	})

	t.Run("owner change rejected", func(t *testing.T) {
		moved := *a
		moved.Owner = solana.NewWallet().PublicKey()
		assert.Error(t, s.Put(&moved))
	})

	t.Run("missing account", func(t *testing.T) {
		ghost := *a
		ghost.Address = solana.NewWallet().PublicKey()
		assert.True(t, errors.Is(s.Put(&ghost), ErrAccountNotFound))
	})
}

func TestAccountStore_GetReturnsCopy(t *testing.T) {
	s := openMem(t)
	address := solana.NewWallet().PublicKey()
	_, err := s.Create(address, solana.NewWallet().PublicKey(), 8)
	require.NoError(t, err)

	got, err := s.Get(address)
	require.NoError(t, err)
	got.Data[0] = 0xFF

	again, err := s.Get(address)
	require.NoError(t, err)
	assert.Equal(t, byte(0), again.Data[0])
}

func TestAccountStore_ListAndReopen(t *testing.T) {
	dir := t.TempDir()
	owner := solana.NewWallet().PublicKey()

	s, err := Open(dir, Options{Sync: true})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := s.Create(solana.NewWallet().PublicKey(), owner, 4)
		require.NoError(t, err)
	}
	require.NoError(t, s.Close())

	s, err = Open(dir, Options{})
	require.NoError(t, err)
	defer s.Close()

	accts, err := s.List()
	require.NoError(t, err)
	require.Len(t, accts, 3)
	for i := 1; i < len(accts); i++ {
		assert.Negative(t, bytes.Compare(accts[i-1].Address[:], accts[i].Address[:]), "list is not in address order")
	}
	for _, acct := range accts {
		assert.Equal(t, owner, acct.Owner)
		assert.Len(t, acct.Data, 4)
	}
}
