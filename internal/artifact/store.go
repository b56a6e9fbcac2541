package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// ErrNotFound is returned when an artifact does not exist in the store.
var ErrNotFound = errors.New("artifact: not found")

// Store opens named artifacts for reading.
type Store interface {
	// Open returns a reader for name. The caller must close it.
	// A missing artifact yields an error wrapping ErrNotFound.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// Backend names accepted by Config.Backend.
const (
	BackendLocal = "local"
	BackendS3    = "s3"
	BackendMinio = "minio"
)

// Config selects and configures a Store.
type Config struct {
	// Backend is one of "local", "s3" or "minio". Empty means local.
	Backend string `yaml:"backend"`

	// Root is the directory for the local backend.
	Root string `yaml:"root"`

	// Bucket and Prefix locate artifacts in the s3 and minio backends.
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`

	// Region is used by the s3 backend; empty uses the AWS default chain.
	Region string `yaml:"region"`

	// Endpoint, AccessKey, SecretKey and UseSSL configure the minio backend.
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// New builds the Store selected by cfg.Backend.
func New(ctx context.Context, cfg Config) (Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", BackendLocal:
		return NewLocalStore(cfg.Root), nil
	case BackendS3:
		return NewS3StoreFromConfig(ctx, cfg)
	case BackendMinio:
		return NewMinioStoreFromConfig(cfg)
	default:
		return nil, fmt.Errorf("artifact: unknown storage backend %q", cfg.Backend)
	}
}

// LocalStore serves artifacts from a directory on disk.
type LocalStore struct {
	root string
}

// NewLocalStore creates a LocalStore rooted at root.
func NewLocalStore(root string) *LocalStore {
	return &LocalStore{root: root}
}

// Root returns the directory relative names are resolved against.
func (s *LocalStore) Root() string { return s.root }

// Open opens name. Absolute names are used as-is; relative names are joined to
// the store root.
func (s *LocalStore) Open(_ context.Context, name string) (io.ReadCloser, error) {
	p := name
	if !filepath.IsAbs(p) {
		p = filepath.Join(s.root, name)
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
		}
		return nil, err
	}
	return f, nil
}

func objectKey(prefix, name string) string {
	return path.Join(prefix, filepath.ToSlash(name))
}

// Compression is the transparent decompression applied by OpenDecoded.
type Compression string

const (
	CompressionNone Compression = ""
	CompressionZstd Compression = "zstd"
	CompressionLZ4  Compression = "lz4"
)

// CompressionOf returns the compression implied by name's suffix.
func CompressionOf(name string) Compression {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".zst", ".zstd":
		return CompressionZstd
	case ".lz4":
		return CompressionLZ4
	}
	return CompressionNone
}

// TrimCompression returns name without a .zst/.zstd/.lz4 suffix.
func TrimCompression(name string) string {
	if CompressionOf(name) == CompressionNone {
		return name
	}
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// OpenDecoded opens name from s and, when its suffix names a compression
// format, wraps the reader in the matching decoder.
func OpenDecoded(ctx context.Context, s Store, name string) (io.ReadCloser, error) {
	rc, err := s.Open(ctx, name)
	if err != nil {
		return nil, err
	}

	switch CompressionOf(name) {
	case CompressionZstd:
		dec, err := zstd.NewReader(rc)
		if err != nil {
			rc.Close()
			return nil, fmt.Errorf("artifact: zstd %s: %w", name, err)
		}
		return &decodedReader{Reader: dec, close: func() error {
			dec.Close()
			return rc.Close()
		}}, nil
	case CompressionLZ4:
		return &decodedReader{Reader: lz4.NewReader(rc), close: rc.Close}, nil
	}
	return rc, nil
}

// ReadAll opens name through OpenDecoded and returns its full contents.
func ReadAll(ctx context.Context, s Store, name string) ([]byte, error) {
	rc, err := OpenDecoded(ctx, s, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("artifact: read %s: %w", name, err)
	}
	return data, nil
}

type decodedReader struct {
	io.Reader
	close func() error
}

func (r *decodedReader) Close() error { return r.close() }
