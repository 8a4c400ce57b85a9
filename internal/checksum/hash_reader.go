package checksum

import (
	"hash"
	"io"
)

// HashReader feeds everything read from Reader into Hash.
type HashReader struct {
	io.Reader
	hash.Hash
}

// NewHashReader wraps source so that reads also update target.
func NewHashReader(source io.Reader, target hash.Hash) *HashReader {
	return &HashReader{Reader: source, Hash: target}
}

func (h *HashReader) Read(buffer []byte) (int, error) {
	count, err := h.Reader.Read(buffer)
	_, _ = h.Hash.Write(buffer[:count])

	return count, err
}
