// Package storage persists account slots in pebble.
//
// Each slot is stored under its 32 byte address as [Owner(32)][Data...].
// The store never resizes a slot after creation.
package storage

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"

	"github.com/ssargent/dataversion/pkg/account"
)

// Errors
var (
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountExists   = errors.New("account already exists")
	ErrSizeMismatch    = errors.New("account data size cannot change")
	ErrCorruption      = errors.New("stored account is corrupt")
)

// AccountStore is a pebble backed slot store.
type AccountStore struct {
	db   *pebble.DB
	sync *pebble.WriteOptions
}

// Options configures an AccountStore.
type Options struct {
	// Sync forces an fsync on every write.
	Sync bool
	// InMemory keeps the store in a memory filesystem, for tests.
	InMemory bool
}

// Open opens or creates the store at path.
func Open(path string, opts Options) (*AccountStore, error) {
	po := &pebble.Options{}
	if opts.InMemory {
		po.FS = vfs.NewMem()
	}
	db, err := pebble.Open(path, po)
	if err != nil {
		return nil, errors.Wrapf(err, "open account store at %s", path)
	}
	return &AccountStore{db: db, sync: writeOpts(opts.Sync)}, nil
}

func writeOpts(sync bool) *pebble.WriteOptions {
	if sync {
		return pebble.Sync
	}
	return pebble.NoSync
}

// Create allocates a zeroed slot of size bytes owned by owner.
func (s *AccountStore) Create(address, owner account.Address, size int) (*account.Account, error) {
	if size < 0 {
		return nil, errors.Newf("invalid account size %d", size)
	}
	if _, err := s.Get(address); err == nil {
		return nil, errors.Wrapf(ErrAccountExists, "%s", address)
	} else if !errors.Is(err, ErrAccountNotFound) {
		return nil, err
	}

	acct := &account.Account{Address: address, Owner: owner, Data: make([]byte, size)}
	if err := s.db.Set(address[:], marshal(acct), s.sync); err != nil {
		return nil, errors.Wrapf(err, "create account %s", address)
	}
	return acct, nil
}

// Get loads the slot at address. The returned Data is a private copy.
func (s *AccountStore) Get(address account.Address) (*account.Account, error) {
	value, closer, err := s.db.Get(address[:])
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, errors.Wrapf(ErrAccountNotFound, "%s", address)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read account %s", address)
	}
	defer closer.Close()

	return unmarshal(address, value)
}

// Put replaces the data of existing slots atomically. Owners and sizes
// must match what is stored.
func (s *AccountStore) Put(accts ...*account.Account) error {
	batch := s.db.NewBatch()
	defer batch.Close()

	for _, acct := range accts {
		stored, err := s.Get(acct.Address)
		if err != nil {
			return err
		}
		if len(stored.Data) != len(acct.Data) {
			return errors.Wrapf(ErrSizeMismatch, "%s: %d != %d", acct.Address, len(acct.Data), len(stored.Data))
		}
		if !stored.Owner.Equals(acct.Owner) {
			return errors.Newf("account %s owner cannot change from %s to %s", acct.Address, stored.Owner, acct.Owner)
		}
		if err := batch.Set(acct.Address[:], marshal(acct), nil); err != nil {
			return errors.Wrapf(err, "stage account %s", acct.Address)
		}
	}

	if err := batch.Commit(s.sync); err != nil {
		return errors.Wrap(err, "commit accounts")
	}
	return nil
}

// List returns every stored slot in address order.
func (s *AccountStore) List() ([]*account.Account, error) {
	iter, err := s.db.NewIter(nil)
	if err != nil {
		return nil, errors.Wrap(err, "iterate accounts")
	}
	defer iter.Close()

	var out []*account.Account
	for iter.First(); iter.Valid(); iter.Next() {
		if len(iter.Key()) != account.AddressLength {
			return nil, errors.Wrapf(ErrCorruption, "key of %d bytes", len(iter.Key()))
		}
		acct, err := unmarshal(account.Address(iter.Key()), iter.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, acct)
	}
	return out, iter.Error()
}

// Close closes the underlying database.
func (s *AccountStore) Close() error {
	return s.db.Close()
}

func marshal(acct *account.Account) []byte {
	buf := make([]byte, account.AddressLength+len(acct.Data))
	copy(buf, acct.Owner[:])
	copy(buf[account.AddressLength:], acct.Data)
	return buf
}

func unmarshal(address account.Address, value []byte) (*account.Account, error) {
	if len(value) < account.AddressLength {
		return nil, errors.Wrapf(ErrCorruption, "%s: value of %d bytes", address, len(value))
	}
	acct := &account.Account{Address: address, Data: make([]byte, len(value)-account.AddressLength)}
	copy(acct.Owner[:], value[:account.AddressLength])
	copy(acct.Data, value[account.AddressLength:])
	return acct, nil
}
