package txbuilder

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"
)

// Minimal BCS writer: little-endian fixed-width ints, ULEB128 lengths and
// enum variant tags. This covers the transaction layout; nothing here is
// generic serialization.
type bcsWriter struct {
	buf bytes.Buffer
}

func (w *bcsWriter) u8(v byte) { w.buf.WriteByte(v) }

func (w *bcsWriter) u16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.buf.Write(b[:])
}

func (w *bcsWriter) u64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

// uleb encodes a length or enum index as ULEB128.
func (w *bcsWriter) uleb(v uint64) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			w.buf.WriteByte(b | 0x80)
			continue
		}
		w.buf.WriteByte(b)
		return
	}
}

func (w *bcsWriter) fixedBytes(b []byte) { w.buf.Write(b) }

func (w *bcsWriter) vecBytes(b []byte) {
	w.uleb(uint64(len(b)))
	w.buf.Write(b)
}

func (w *bcsWriter) str(s string) { w.vecBytes([]byte(s)) }

func (w *bcsWriter) bool(v bool) {
	if v {
		w.u8(1)
	} else {
		w.u8(0)
	}
}

func (w *bcsWriter) bytes() []byte { return w.buf.Bytes() }

// encodePureU64 produces the BCS bytes of a pure u64 call argument.
func encodePureU64(v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return b[:]
}

// decodeAddress parses a 0x-prefixed hex object ID / account address into
// its fixed 32-byte form. Short IDs (like 0x6 for the clock) are
// left-padded.
func decodeAddress(addr string) ([]byte, error) {
	s := strings.TrimPrefix(strings.TrimSpace(addr), "0x")
	if s == "" {
		return nil, errors.New("empty address")
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.Wrapf(err, "bad address %q", addr)
	}
	if len(raw) > 32 {
		return nil, errors.Errorf("address %q longer than 32 bytes", addr)
	}
	out := make([]byte, 32)
	copy(out[32-len(raw):], raw)
	return out, nil
}
