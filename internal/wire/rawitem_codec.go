package wire

import (
	"encoding/binary"
	"fmt"
)

const rawItemHeaderSize = 20

// EncodeRawItem appends item to dst in the self-delimiting on-disk
// layout transport_file.go replays: type u32, source_id u32, timestamp
// u64, body_size u32, body bytes. It exists so tests and the demo binary
// can build fixture files without a real ring buffer.
func EncodeRawItem(dst []byte, item RawItem) []byte {
	hdr := make([]byte, rawItemHeaderSize)
	binary.LittleEndian.PutUint32(hdr[0:4], item.Type)
	binary.LittleEndian.PutUint32(hdr[4:8], item.SourceID)
	binary.LittleEndian.PutUint64(hdr[8:16], item.Timestamp)
	binary.LittleEndian.PutUint32(hdr[16:20], uint32(len(item.Body)))
	dst = append(dst, hdr...)
	dst = append(dst, item.Body...)
	return dst
}

// DecodeRawItems parses a sequence of items encoded by EncodeRawItem. It
// returns ErrFraming if the buffer ends mid-record or a declared body
// size overruns what remains.
func DecodeRawItems(buf []byte) ([]RawItem, error) {
	var items []RawItem
	off := 0
	for off < len(buf) {
		if off+rawItemHeaderSize > len(buf) {
			return nil, fmt.Errorf("%w: truncated raw item header at offset %d", ErrFraming, off)
		}
		typ := binary.LittleEndian.Uint32(buf[off : off+4])
		sourceID := binary.LittleEndian.Uint32(buf[off+4 : off+8])
		ts := binary.LittleEndian.Uint64(buf[off+8 : off+16])
		bodySize := binary.LittleEndian.Uint32(buf[off+16 : off+20])
		off += rawItemHeaderSize

		end := off + int(bodySize)
		if end > len(buf) {
			return nil, fmt.Errorf("%w: raw item body overruns buffer at offset %d", ErrFraming, off)
		}
		items = append(items, RawItem{
			Type:      typ,
			SourceID:  sourceID,
			Timestamp: ts,
			Body:      buf[off:end],
		})
		off = end
	}
	return items, nil
}
