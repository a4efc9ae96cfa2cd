// Package processor applies decoded commands to account records.
package processor

import (
	"k8s.io/klog/v2"

	"github.com/ssargent/dataversion/pkg/account"
	"github.com/ssargent/dataversion/pkg/codec"
	"github.com/ssargent/dataversion/pkg/instruction"
	"github.com/ssargent/dataversion/pkg/programerr"
)

// InitialValue is the value a freshly initialized record starts with.
const InitialValue uint64 = 1

// Outcome describes a successful invocation.
type Outcome struct {
	Command instruction.Command
	// UpgradedFrom is the legacy version the target was migrated from, or
	// nil when it was already current or uninitialized.
	UpgradedFrom *uint8
}

// Processor runs instructions against a target account on behalf of one
// program identity.
type Processor struct {
	programID account.Address
	codec     *codec.RecordCodec
}

// New creates a processor for programID. A nil codec selects the default
// record codec.
func New(programID account.Address, c *codec.RecordCodec) *Processor {
	if c == nil {
		c = codec.NewRecordCodec()
	}
	return &Processor{programID: programID, codec: c}
}

// ProgramID returns the identity tracking accounts must be owned by.
func (p *Processor) ProgramID() account.Address {
	return p.programID
}

// Codec returns the record codec used to read and write targets.
func (p *Processor) Codec() *codec.RecordCodec {
	return p.codec
}

// Process authorizes the tracking accounts, decodes data and applies the
// resulting command to target, writing the updated record back into
// target.Data in place.
//
// The caller must hold exclusive access to every buffer for the duration of
// the call. target.Data is left byte-for-byte unchanged on any error.
func (p *Processor) Process(target *account.Account, tracking []account.Account, data []byte) (*Outcome, error) {
	klog.V(2).Infof("Received process request for %s", target.Address)

	if err := account.CheckOwnership(p.programID, tracking); err != nil {
		return nil, err
	}

	cmd, err := instruction.Decode(data)
	if err != nil {
		klog.Warningf("Rejected instruction for %s: %v", target.Address, err)
		return nil, err
	}

	initialized, stored, err := codec.Header(target.Data)
	if err != nil {
		return nil, err
	}
	record, err := p.codec.Decode(target.Data)
	if err != nil {
		return nil, err
	}

	out := &Outcome{Command: cmd}
	if initialized && stored != codec.CurrentVersion {
		klog.V(1).Infof("Upgrading %s from version %d to %d", target.Address, stored, codec.CurrentVersion)
		out.UpgradedFrom = &stored
	}

	if err := apply(record, cmd, target.Address); err != nil {
		klog.Warningf("Rejected %s for %s: %v", cmd.Opcode(), target.Address, err)
		return nil, err
	}

	if err := p.codec.EncodeInto(record, target.Data); err != nil {
		return nil, err
	}
	return out, nil
}

func apply(record *codec.Record, cmd instruction.Command, address account.Address) error {
	switch c := cmd.(type) {
	case instruction.Initialize:
		klog.V(2).Infof("Initialize account %s", address)
		if record.Initialized {
			return programerr.ErrAlreadyInitialized
		}
		record.Initialized = true
		record.Version = codec.CurrentVersion
		record.Content = codec.Content{Value: InitialValue, Key: address}
	case instruction.SetValue:
		if !record.Initialized {
			return programerr.ErrNotInitialized
		}
		record.Content.Value = c.Value
	case instruction.SetText:
		if !record.Initialized {
			return programerr.ErrNotInitialized
		}
		record.Content.Text = c.Text
	default:
		return programerr.Wrap(programerr.ErrInvalidInstruction, "unhandled %s", cmd.Opcode())
	}
	return nil
}
