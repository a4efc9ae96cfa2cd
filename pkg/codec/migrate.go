package codec

import (
	bin "github.com/gagliardetto/binary"
)

// LegacyVersion is the layout written before the key and text fields were
// added.
const LegacyVersion uint8 = 0

// LegacyContentSize is the width of the version 0 payload.
const LegacyContentSize = 8

// MigrateFunc converts a payload written with an older layout into current
// content. It receives exactly the registered width of the old payload and
// must not retain it.
type MigrateFunc func(payload []byte) (Content, error)

// Migration describes how to read one historical layout.
type Migration struct {
	Width   int
	Migrate MigrateFunc
}

// Option configures a RecordCodec.
type Option func(*RecordCodec)

// WithMigration registers fn as the migration for version. It replaces any
// migration already registered for that tag. Registering CurrentVersion is a
// programming error and panics.
func WithMigration(version uint8, width int, fn MigrateFunc) Option {
	if version == CurrentVersion {
		panic("codec: cannot register a migration for the current version")
	}
	return func(c *RecordCodec) {
		c.migrations[version] = Migration{Width: width, Migrate: fn}
	}
}

func builtinMigrations() map[uint8]Migration {
	return map[uint8]Migration{
		LegacyVersion: {Width: LegacyContentSize, Migrate: migrateV0},
	}
}

// migrateV0 carries the value forward. Key and text did not exist in
// version 0 and start out empty.
func migrateV0(payload []byte) (Content, error) {
	value, err := bin.NewBinDecoder(payload).ReadUint64(bin.LE)
	if err != nil {
		return Content{}, deserializationErr(err)
	}
	return Content{Value: value}, nil
}
