// Package wire implements the packed wire formats at the boundary of the
// event-builder core: the flat-fragment format consumed by
// orderer.AddFragments, the raw upstream item model produced by the
// ring-source adapter, and the composite item model produced by the
// glommer.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrFraming is returned by DecodeFlatFragments when the buffer's declared
// record sizes don't tile it exactly.
var ErrFraming = errors.New("wire: truncated or overlong flat-fragment record")

const flatFragmentHeaderSize = 20

// FlatFragment is one decoded record from a flat-fragment buffer.
type FlatFragment struct {
	Timestamp   uint64
	SourceID    uint32
	BarrierType uint32
	Payload     []byte
}

// DecodeFlatFragments decodes buf as a tightly packed sequence of
// flat-fragment records, each a little-endian 20-byte header (timestamp
// u64, source_id u32, payload_size u32, barrier_type u32) then the payload.
// The final record's end must coincide with the end of buf exactly; any
// short header or a payload_size that overruns the buffer is a framing
// error. Payload slices borrow buf's backing array — callers that retain a
// FlatFragment past the lifetime of buf must copy it themselves
// (orderer.addFragment does, via fragment.Allocate).
func DecodeFlatFragments(buf []byte) ([]FlatFragment, error) {
	var out []FlatFragment
	off := 0
	for off < len(buf) {
		if len(buf)-off < flatFragmentHeaderSize {
			return nil, fmt.Errorf("%w: %d bytes left, need %d for header", ErrFraming, len(buf)-off, flatFragmentHeaderSize)
		}
		timestamp := binary.LittleEndian.Uint64(buf[off : off+8])
		sourceID := binary.LittleEndian.Uint32(buf[off+8 : off+12])
		payloadSize := binary.LittleEndian.Uint32(buf[off+12 : off+16])
		barrierType := binary.LittleEndian.Uint32(buf[off+16 : off+20])

		recordEnd := off + flatFragmentHeaderSize + int(payloadSize)
		if recordEnd > len(buf) {
			return nil, fmt.Errorf("%w: payload_size %d overruns buffer at offset %d", ErrFraming, payloadSize, off)
		}

		out = append(out, FlatFragment{
			Timestamp:   timestamp,
			SourceID:    sourceID,
			BarrierType: barrierType,
			Payload:     buf[off+flatFragmentHeaderSize : recordEnd],
		})
		off = recordEnd
	}
	if off != len(buf) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrFraming, len(buf)-off)
	}
	return out, nil
}

// EncodeFlatFragment appends the wire encoding of one record to dst and
// returns the extended slice. The ring-source adapter uses it to build
// orderer batches, and tests use it to construct input buffers.
func EncodeFlatFragment(dst []byte, timestamp uint64, sourceID, barrierType uint32, payload []byte) []byte {
	var hdr [flatFragmentHeaderSize]byte
	binary.LittleEndian.PutUint64(hdr[0:8], timestamp)
	binary.LittleEndian.PutUint32(hdr[8:12], sourceID)
	binary.LittleEndian.PutUint32(hdr[12:16], uint32(len(payload)))
	binary.LittleEndian.PutUint32(hdr[16:20], barrierType)
	dst = append(dst, hdr[:]...)
	dst = append(dst, payload...)
	return dst
}
