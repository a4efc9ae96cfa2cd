// Package codec provides versioned record serialization for dataversion
// account slots.
//
// The codec reads and writes a single Record inside a fixed-size account
// buffer. The buffer is allocated by the host before first use and its
// length never changes; the codec only ever touches the leading record
// space and leaves any trailing bytes alone.
//
// # Record Format
//
// Records are serialized with a two byte header followed by the payload for
// the declared schema version:
//
//	[Initialized(1)][Version(1)][Payload...]
//
// Fields:
//   - Initialized: 0 for a fresh slot, any other value for an initialized record
//   - Version: schema version tag identifying the payload layout
//   - Payload: fixed-width, little-endian, no padding between fields
//
// # Layouts
//
// Version 0 (legacy):
//
//	[Value(8)]
//
// Version 1 (current):
//
//	[Value(8)][Key(32)][TextLen(4)][Text(128)]
//
// Text is UTF-8, TextLen bytes long and zero padded to MaxTextLen.
//
// # Decoding
//
// A buffer whose initialized flag is zero decodes to the default record no
// matter what follows the header; the payload of an uninitialized slot is
// indeterminate and is never interpreted. An initialized buffer tagged with
// CurrentVersion is decoded directly. Any other tag is handed to the
// migration registered for it, which produces current-version content.
// Unknown tags fail with programerr.ErrUnsupportedVersion and short or
// malformed payloads fail with programerr.ErrDeserializationFailure.
//
// # Encoding
//
// Encoding always writes the header and the current payload layout. There is
// no way to write an older layout, so decoding and re-encoding a legacy
// record upgrades it on write. That upgrade cannot be undone.
//
// # Usage
//
//	c := codec.NewRecordCodec()
//
//	record, err := c.Decode(acct.Data)
//	if err != nil {
//	    return err
//	}
//	record.Content.Value = 42
//	if err := c.EncodeInto(record, acct.Data); err != nil {
//	    return err
//	}
//
// # Thread Safety
//
// A RecordCodec is immutable after construction and safe for concurrent use.
// Callers are responsible for serializing access to the buffers themselves.
package codec
