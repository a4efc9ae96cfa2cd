// Package instruction parses raw instruction bytes into program commands.
//
// Wire format:
//
//	[Opcode(1)][Payload...]
//
//	0   Initialize  no payload
//	1   SetValue    [Value(8)] little-endian
//	2   SetText     [Len(4)][UTF-8(Len)] little-endian length, at most codec.MaxTextLen
//	255 Fail        reserved, always rejected
package instruction

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	bin "github.com/gagliardetto/binary"

	"github.com/ssargent/dataversion/pkg/codec"
	"github.com/ssargent/dataversion/pkg/programerr"
)

// Opcode is the leading byte of an instruction.
type Opcode uint8

const (
	OpInitialize Opcode = 0
	OpSetValue   Opcode = 1
	OpSetText    Opcode = 2
	// OpFail is reserved for negative testing and never decodes.
	OpFail Opcode = 255
)

func (o Opcode) String() string {
	switch o {
	case OpInitialize:
		return "initialize"
	case OpSetValue:
		return "set_value"
	case OpSetText:
		return "set_text"
	case OpFail:
		return "fail"
	default:
		return fmt.Sprintf("opcode(%d)", uint8(o))
	}
}

// Command is one of Initialize, SetValue, SetText or Fail.
type Command interface {
	Opcode() Opcode
}

// Initialize marks an uninitialized account as initialized.
type Initialize struct{}

// SetValue replaces the record value.
type SetValue struct {
	Value uint64
}

// SetText replaces the record text.
type SetText struct {
	Text string
}

// Fail always fails to decode. It exists so clients can exercise the
// rejection path.
type Fail struct{}

func (Initialize) Opcode() Opcode { return OpInitialize }
func (SetValue) Opcode() Opcode   { return OpSetValue }
func (SetText) Opcode() Opcode    { return OpSetText }
func (Fail) Opcode() Opcode       { return OpFail }

// Decode parses data into a Command. Unknown opcodes, the Fail opcode,
// malformed payloads and trailing bytes all fail with
// programerr.ErrInvalidInstruction.
func Decode(data []byte) (Command, error) {
	dec := bin.NewBinDecoder(data)

	op, err := dec.ReadUint8()
	if err != nil {
		return nil, invalid("missing opcode")
	}

	var cmd Command
	switch Opcode(op) {
	case OpInitialize:
		cmd = Initialize{}
	case OpSetValue:
		value, err := dec.ReadUint64(bin.LE)
		if err != nil {
			return nil, invalid("set_value payload: %v", err)
		}
		cmd = SetValue{Value: value}
	case OpSetText:
		text, err := readText(dec)
		if err != nil {
			return nil, err
		}
		cmd = SetText{Text: text}
	default:
		return nil, invalid("unsupported %s", Opcode(op))
	}

	if dec.HasRemaining() {
		return nil, invalid("%d trailing bytes after %s", dec.Remaining(), cmd.Opcode())
	}
	return cmd, nil
}

func readText(dec *bin.Decoder) (string, error) {
	n, err := dec.ReadUint32(bin.LE)
	if err != nil {
		return "", invalid("set_text length: %v", err)
	}
	if n > codec.MaxTextLen {
		return "", invalid("set_text length %d exceeds %d", n, codec.MaxTextLen)
	}
	raw, err := dec.ReadBytes(int(n))
	if err != nil {
		return "", invalid("set_text payload: %v", err)
	}
	if !utf8.Valid(raw) {
		return "", invalid("set_text payload is not valid UTF-8")
	}
	return string(raw), nil
}

// Encode serializes cmd. Fail encodes to its opcode so it can be submitted
// and rejected.
func Encode(cmd Command) ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := bin.NewBinEncoder(buf)

	if err := enc.WriteUint8(uint8(cmd.Opcode())); err != nil {
		return nil, err
	}

	switch c := cmd.(type) {
	case Initialize, Fail:
	case SetValue:
		if err := enc.WriteUint64(c.Value, bin.LE); err != nil {
			return nil, err
		}
	case SetText:
		if err := enc.WriteUint32(uint32(len(c.Text)), bin.LE); err != nil {
			return nil, err
		}
		if err := enc.WriteBytes([]byte(c.Text), false); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown command type %T", cmd)
	}

	return buf.Bytes(), nil
}

func invalid(format string, args ...any) error {
	return programerr.Wrap(programerr.ErrInvalidInstruction, format, args...)
}
