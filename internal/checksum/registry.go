package checksum

import (
	"context"
	"crypto/md5"  //nolint:gosec // MD5 is what vendors publish next to their archives.
	"crypto/sha1" //nolint:gosec // Kept for older archive listings.
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// DefaultAlgorithm is used when no checksum type is configured.
const DefaultAlgorithm = "md5"

var (
	// ErrUnknownAlgorithm is returned when a name has no registered hash.
	ErrUnknownAlgorithm = errors.New("unknown checksum algorithm")
	// errInvalidBufferSize is returned when a digest is requested with a non-positive chunk size.
	errInvalidBufferSize = errors.New("buffer size must be positive")
)

// Constructor creates a fresh streaming digest.
type Constructor func() hash.Hash

// Registry maps case-insensitive algorithm names to digest constructors.
type Registry struct {
	mu         sync.RWMutex
	algorithms map[string]Constructor
}

// Default is the registry consulted by configuration validation and the installer.
//
//nolint:gochecknoglobals // A single process-wide table of algorithms.
var Default = NewRegistry()

// NewRegistry returns a registry preloaded with md5, sha1, sha256 and sha512.
func NewRegistry() *Registry {
	r := &Registry{algorithms: make(map[string]Constructor, 4)}

	r.Register("md5", md5.New)
	r.Register("sha1", sha1.New)
	r.Register("sha256", sha256.New)
	r.Register("sha512", sha512.New)

	return r
}

// Register adds or replaces the constructor for name.
func (r *Registry) Register(name string, fn Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.algorithms[normalize(name)] = fn
}

// Lookup returns the constructor registered for name.
func (r *Registry) Lookup(name string) (Constructor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fn, ok := r.algorithms[normalize(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q (supported: %s)", ErrUnknownAlgorithm, name, strings.Join(r.namesLocked(), ", "))
	}

	return fn, nil
}

// Supported reports whether name is registered.
func (r *Registry) Supported(name string) bool {
	_, err := r.Lookup(name)
	return err == nil
}

// Names returns the registered algorithm names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.algorithms))
	for name := range r.algorithms {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// FileDigest computes the lowercase hex digest of the file at path, reading it
// bufferSize bytes at a time.
func (r *Registry) FileDigest(ctx context.Context, name, path string, bufferSize int) (string, error) {
	if bufferSize <= 0 {
		return "", errInvalidBufferSize
	}

	fn, err := r.Lookup(name)
	if err != nil {
		return "", err
	}

	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}

	defer func() {
		_ = file.Close()
	}()

	hasher := fn()
	reader := NewHashReader(&contextReader{ctx: ctx, r: file}, hasher)

	if _, err = io.CopyBuffer(io.Discard, reader, make([]byte, bufferSize)); err != nil {
		return "", fmt.Errorf("digest %s: %w", path, err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// contextReader stops a long digest once the context is done.
type contextReader struct {
	ctx context.Context //nolint:containedctx // Read has no context parameter.
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}

	return c.r.Read(p)
}
