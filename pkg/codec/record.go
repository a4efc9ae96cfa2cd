package codec

import (
	"bytes"
	"unicode/utf8"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/ssargent/dataversion/pkg/programerr"
)

const (
	// HeaderSize is the width of the initialized flag plus the version tag.
	HeaderSize = 2

	// CurrentVersion is the schema version every write produces.
	CurrentVersion uint8 = 1

	// MaxTextLen is the capacity of the text field in bytes.
	MaxTextLen = 128

	// ContentSize is the width of the current payload layout.
	ContentSize = 8 + solana.PublicKeyLength + 4 + MaxTextLen

	// RecordSize is the space a current-version record occupies in a buffer.
	RecordSize = HeaderSize + ContentSize
)

// Content is the current-version payload.
type Content struct {
	Value uint64
	Key   solana.PublicKey
	Text  string
}

// Record is a transient view of an account slot. It is decoded fresh for
// every invocation and written back before the invocation returns.
type Record struct {
	Initialized bool
	Version     uint8
	Content     Content
}

// NewRecord returns an uninitialized record stamped with CurrentVersion.
func NewRecord() *Record {
	return &Record{Version: CurrentVersion}
}

// RecordCodec handles serialization of records and migration of legacy
// layouts.
type RecordCodec struct {
	migrations map[uint8]Migration
}

// NewRecordCodec creates a codec with the built-in migrations registered.
// Options are applied afterwards and may replace them.
func NewRecordCodec(opts ...Option) *RecordCodec {
	c := &RecordCodec{migrations: make(map[uint8]Migration)}
	for version, m := range builtinMigrations() {
		c.migrations[version] = m
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Header reads the initialized flag and version tag without decoding the
// payload.
func Header(data []byte) (initialized bool, version uint8, err error) {
	if len(data) < HeaderSize {
		return false, 0, programerr.Wrap(programerr.ErrDeserializationFailure,
			"data too short for record header: %d < %d", len(data), HeaderSize)
	}
	return data[0] != 0, data[1], nil
}

// Decode deserializes the record stored in data, migrating legacy layouts to
// the current one.
func (c *RecordCodec) Decode(data []byte) (*Record, error) {
	initialized, version, err := Header(data)
	if err != nil {
		return nil, err
	}
	// The payload of an uninitialized slot is indeterminate.
	if !initialized {
		return NewRecord(), nil
	}

	payload := data[HeaderSize:]
	if version == CurrentVersion {
		content, err := decodeContent(payload)
		if err != nil {
			return nil, err
		}
		return &Record{Initialized: true, Version: CurrentVersion, Content: content}, nil
	}

	return c.migrate(version, payload)
}

func (c *RecordCodec) migrate(version uint8, payload []byte) (*Record, error) {
	m, ok := c.migrations[version]
	if !ok {
		return nil, programerr.Wrap(programerr.ErrUnsupportedVersion,
			"no migration registered for version %d", version)
	}
	if len(payload) < m.Width {
		return nil, programerr.Wrap(programerr.ErrDeserializationFailure,
			"version %d payload too short: %d < %d", version, len(payload), m.Width)
	}
	content, err := m.Migrate(payload[:m.Width])
	if err != nil {
		return nil, err
	}
	return &Record{Initialized: true, Version: CurrentVersion, Content: content}, nil
}

// Encode serializes r in the current layout. The result is RecordSize bytes
// long.
func (c *RecordCodec) Encode(r *Record) ([]byte, error) {
	if len(r.Content.Text) > MaxTextLen {
		return nil, programerr.Wrap(programerr.ErrDeserializationFailure,
			"text too long: %d > %d", len(r.Content.Text), MaxTextLen)
	}

	buf := bytes.NewBuffer(make([]byte, 0, RecordSize))
	enc := bin.NewBinEncoder(buf)

	var text [MaxTextLen]byte
	copy(text[:], r.Content.Text)

	// bytes.Buffer writes cannot fail
	_ = enc.WriteBool(r.Initialized)
	_ = enc.WriteUint8(CurrentVersion)
	_ = enc.WriteUint64(r.Content.Value, bin.LE)
	_ = enc.WriteBytes(r.Content.Key[:], false)
	_ = enc.WriteUint32(uint32(len(r.Content.Text)), bin.LE)
	_ = enc.WriteBytes(text[:], false)

	return buf.Bytes(), nil
}

// EncodeInto writes r into the leading RecordSize bytes of dst. dst is left
// untouched when it is too small or r cannot be encoded.
func (c *RecordCodec) EncodeInto(r *Record, dst []byte) error {
	if len(dst) < RecordSize {
		return programerr.Wrap(programerr.ErrAccountDataTooSmall,
			"buffer holds %d bytes, record needs %d", len(dst), RecordSize)
	}
	out, err := c.Encode(r)
	if err != nil {
		return err
	}
	copy(dst, out)
	return nil
}

func decodeContent(payload []byte) (Content, error) {
	var content Content
	if len(payload) < ContentSize {
		return content, programerr.Wrap(programerr.ErrDeserializationFailure,
			"payload too short: %d < %d", len(payload), ContentSize)
	}

	dec := bin.NewBinDecoder(payload[:ContentSize])

	value, err := dec.ReadUint64(bin.LE)
	if err != nil {
		return content, deserializationErr(err)
	}
	key, err := dec.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return content, deserializationErr(err)
	}
	textLen, err := dec.ReadUint32(bin.LE)
	if err != nil {
		return content, deserializationErr(err)
	}
	if textLen > MaxTextLen {
		return content, programerr.Wrap(programerr.ErrDeserializationFailure,
			"text length %d exceeds %d", textLen, MaxTextLen)
	}
	text, err := dec.ReadBytes(MaxTextLen)
	if err != nil {
		return content, deserializationErr(err)
	}
	if !utf8.Valid(text[:textLen]) {
		return content, programerr.Wrap(programerr.ErrDeserializationFailure, "text is not valid UTF-8")
	}

	content.Value = value
	content.Key = solana.PublicKeyFromBytes(key)
	content.Text = string(text[:textLen])
	return content, nil
}

func deserializationErr(err error) error {
	return programerr.Wrap(programerr.ErrDeserializationFailure, "%v", err)
}
