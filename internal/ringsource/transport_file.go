package ringsource

import (
	"fmt"
	"os"
	"time"

	"daqevb.dev/evbcore/internal/wire"
)

// FileTransport replays a recorded sequence of raw items from a file
// encoded with wire.EncodeRawItem, standing in for the on-disk replay
// source the original event builder uses for regression playback
// (FdDataSource in original_source/main/ddas/ddasdumper).
type FileTransport struct {
	items []wire.RawItem
	pos   int
}

// OpenFileTransport reads and decodes the entire fixture file into
// memory; ring sources in this domain are small enough that streaming
// decode isn't warranted.
func OpenFileTransport(path string) (*FileTransport, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Msg: fmt.Sprintf("opening fixture %s: %v", path, err)}
	}
	items, err := wire.DecodeRawItems(buf)
	if err != nil {
		return nil, &ConfigError{Msg: fmt.Sprintf("decoding fixture %s: %v", path, err)}
	}
	return &FileTransport{items: items}, nil
}

// DataReady reports whether unread items remain. Once the fixture is
// exhausted it waits out the full timeout before returning false, since no
// further item can arrive.
func (f *FileTransport) DataReady(timeout time.Duration) bool {
	if f.pos < len(f.items) {
		return true
	}
	time.Sleep(timeout)
	return false
}

func (f *FileTransport) Read(max int) ([]wire.RawItem, error) {
	if f.pos >= len(f.items) {
		return nil, nil
	}
	end := f.pos + max
	if end > len(f.items) {
		end = len(f.items)
	}
	out := f.items[f.pos:end]
	f.pos = end
	return out, nil
}

func (f *FileTransport) Close() error {
	return nil
}
