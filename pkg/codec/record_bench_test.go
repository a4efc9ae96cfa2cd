//go:build bench
// +build bench

package codec

import (
	"strings"
	"testing"
)

func BenchmarkRecordCodec_EncodeInto(b *testing.B) {
	codec := NewRecordCodec()
	slot := make([]byte, 1024)

	benchmarks := []struct {
		name string
		text string
	}{
		{"empty text", ""},
		{"short text", "Hello"},
		{"full text", strings.Repeat("t", MaxTextLen)},
	}

	for _, bm := range benchmarks {
		record := &Record{Initialized: true, Content: Content{Value: 50, Key: testKey, Text: bm.text}}
		b.Run(bm.name, func(b *testing.B) {
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if err := codec.EncodeInto(record, slot); err != nil {
					b.Fatalf("EncodeInto failed: %v", err)
				}
			}
		})
	}
}

func BenchmarkRecordCodec_Decode(b *testing.B) {
	codec := NewRecordCodec()

	current, err := codec.Encode(&Record{Initialized: true, Content: Content{Value: 50, Key: testKey, Text: "Hello"}})
	if err != nil {
		b.Fatalf("Encode failed: %v", err)
	}

	benchmarks := []struct {
		name string
		data []byte
	}{
		{"current", current},
		{"legacy", legacySlot(50)},
		{"uninitialized", make([]byte, 1024)},
	}

	for _, bm := range benchmarks {
		b.Run(bm.name, func(b *testing.B) {
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := codec.Decode(bm.data); err != nil {
					b.Fatalf("Decode failed: %v", err)
				}
			}
		})
	}
}
