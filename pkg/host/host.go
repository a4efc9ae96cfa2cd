// Package host runs program invocations against persisted account slots.
//
// The processor assumes its caller holds exclusive access to every buffer
// it is handed. Host provides that guarantee: it locks all accounts named by
// a request, runs the processor against private copies of their data, and
// persists the target only when the invocation succeeds.
package host

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/segmentio/ksuid"
	"k8s.io/klog/v2"

	"github.com/ssargent/dataversion/pkg/account"
	"github.com/ssargent/dataversion/pkg/codec"
	"github.com/ssargent/dataversion/pkg/instruction"
	"github.com/ssargent/dataversion/pkg/processor"
	"github.com/ssargent/dataversion/pkg/programerr"
)

// Store is the slot storage a Host persists to.
type Store interface {
	Create(address, owner account.Address, size int) (*account.Account, error)
	Get(address account.Address) (*account.Account, error)
	Put(accts ...*account.Account) error
	List() ([]*account.Account, error)
}

// Request names the accounts and instruction of one invocation.
type Request struct {
	Target   account.Address
	Tracking []account.Address
	Data     []byte
}

// Result describes a successful invocation.
type Result struct {
	ID      ksuid.KSUID
	Outcome *processor.Outcome
	Record  *codec.Record
}

// Host serializes invocations per account.
type Host struct {
	store   Store
	proc    *processor.Processor
	codec   *codec.RecordCodec
	metrics *Metrics

	mu    sync.Mutex
	locks map[account.Address]*sync.Mutex
}

// New creates a Host. A nil metrics value disables metrics.
func New(store Store, proc *processor.Processor, metrics *Metrics) *Host {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Host{
		store:   store,
		proc:    proc,
		codec:   proc.Codec(),
		metrics: metrics,
		locks:   make(map[account.Address]*sync.Mutex),
	}
}

// CreateAccount allocates a zeroed, program owned slot of size bytes.
func (h *Host) CreateAccount(ctx context.Context, address account.Address, size int) (*account.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	unlock := h.lock([]account.Address{address})
	defer unlock()

	acct, err := h.store.Create(address, h.proc.ProgramID(), size)
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	klog.V(1).InfoS("Created account", "address", address, "size", size)
	return acct, nil
}

// Invoke runs req and persists the target on success. Nothing is written
// when it fails.
func (h *Host) Invoke(ctx context.Context, req Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id := ksuid.New()

	unlock := h.lock(append([]account.Address{req.Target}, req.Tracking...))
	defer unlock()

	target, err := h.store.Get(req.Target)
	if err != nil {
		return nil, fmt.Errorf("load target: %w", err)
	}
	tracking := make([]account.Account, 0, len(req.Tracking))
	for _, address := range req.Tracking {
		acct, err := h.store.Get(address)
		if err != nil {
			return nil, fmt.Errorf("load tracking account: %w", err)
		}
		tracking = append(tracking, *acct)
	}

	before := bytes.Clone(target.Data)
	out, err := h.proc.Process(target, tracking, req.Data)
	if err != nil {
		h.metrics.recordInvocation(commandLabel(req.Data), resultLabel(err))
		klog.V(1).InfoS("Invocation failed", "id", id, "target", req.Target, "err", err)
		return nil, err
	}

	if !bytes.Equal(before, target.Data) {
		if err := h.store.Put(target); err != nil {
			h.metrics.recordInvocation(out.Command.Opcode().String(), "internal")
			return nil, fmt.Errorf("persist target: %w", err)
		}
	}

	h.metrics.recordInvocation(out.Command.Opcode().String(), resultSuccess)
	if out.UpgradedFrom != nil {
		h.metrics.recordUpgrade(*out.UpgradedFrom)
	}

	record, err := h.codec.Decode(target.Data)
	if err != nil {
		return nil, fmt.Errorf("decode persisted record: %w", err)
	}
	klog.V(1).InfoS("Invocation complete", "id", id, "target", req.Target, "command", out.Command.Opcode())
	return &Result{ID: id, Outcome: out, Record: record}, nil
}

// Inspect decodes the record stored at address without persisting any
// migration.
func (h *Host) Inspect(address account.Address) (*account.Account, *codec.Record, error) {
	unlock := h.lock([]account.Address{address})
	defer unlock()

	acct, err := h.store.Get(address)
	if err != nil {
		return nil, nil, err
	}
	record, err := h.codec.Decode(acct.Data)
	if err != nil {
		return acct, nil, err
	}
	return acct, record, nil
}

// Accounts lists every stored slot.
func (h *Host) Accounts() ([]*account.Account, error) {
	return h.store.List()
}

// lock acquires the per-address mutexes in address order so overlapping
// requests cannot deadlock.
func (h *Host) lock(addresses []account.Address) func() {
	unique := make([]account.Address, 0, len(addresses))
	seen := make(map[account.Address]bool, len(addresses))
	for _, a := range addresses {
		if !seen[a] {
			seen[a] = true
			unique = append(unique, a)
		}
	}
	sort.Slice(unique, func(i, j int) bool {
		return bytes.Compare(unique[i][:], unique[j][:]) < 0
	})

	h.mu.Lock()
	held := make([]*sync.Mutex, len(unique))
	for i, a := range unique {
		m, ok := h.locks[a]
		if !ok {
			m = &sync.Mutex{}
			h.locks[a] = m
		}
		held[i] = m
	}
	h.mu.Unlock()

	for _, m := range held {
		m.Lock()
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

func commandLabel(data []byte) string {
	cmd, err := instruction.Decode(data)
	if err != nil {
		return "invalid"
	}
	return cmd.Opcode().String()
}

func resultLabel(err error) string {
	if code, ok := programerr.CodeOf(err); ok {
		return code.String()
	}
	return "internal"
}
