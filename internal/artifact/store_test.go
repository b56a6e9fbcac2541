package artifact

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, data, 0644))
}

func TestLocalStoreOpen(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "models", "a.json"), []byte("relative"))
	abs := filepath.Join(t.TempDir(), "b.json")
	writeFile(t, abs, []byte("absolute"))

	s := NewLocalStore(root)
	ctx := context.Background()

	data, err := ReadAll(ctx, s, filepath.Join("models", "a.json"))
	require.NoError(t, err)
	assert.Equal(t, "relative", string(data))

	data, err = ReadAll(ctx, s, abs)
	require.NoError(t, err)
	assert.Equal(t, "absolute", string(data))

	_, err = s.Open(ctx, "missing.json")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpenDecoded(t *testing.T) {
	root := t.TempDir()
	payload := bytes.Repeat([]byte(`{"net.0.weight":[[1,2,3,4]]}`), 50)

	var zbuf bytes.Buffer
	zw, err := zstd.NewWriter(&zbuf)
	require.NoError(t, err)
	_, err = zw.Write(payload)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	writeFile(t, filepath.Join(root, "w.json.zst"), zbuf.Bytes())

	var lbuf bytes.Buffer
	lw := lz4.NewWriter(&lbuf)
	_, err = lw.Write(payload)
	require.NoError(t, err)
	require.NoError(t, lw.Close())
	writeFile(t, filepath.Join(root, "w.json.lz4"), lbuf.Bytes())

	writeFile(t, filepath.Join(root, "w.json"), payload)

	s := NewLocalStore(root)
	for _, name := range []string{"w.json", "w.json.zst", "w.json.lz4"} {
		t.Run(name, func(t *testing.T) {
			got, err := ReadAll(context.Background(), s, name)
			require.NoError(t, err)
			assert.Equal(t, payload, got)
		})
	}

	writeFile(t, filepath.Join(root, "bad.zst"), []byte("not zstd at all"))
	_, err = ReadAll(context.Background(), s, "bad.zst")
	assert.Error(t, err)
}

func TestCompressionOf(t *testing.T) {
	assert.Equal(t, CompressionZstd, CompressionOf("model.json.zst"))
	assert.Equal(t, CompressionLZ4, CompressionOf("MODEL.JSON.LZ4"))
	assert.Equal(t, CompressionNone, CompressionOf("model.json"))
	assert.Equal(t, "model.json", TrimCompression("model.json.zst"))
	assert.Equal(t, "model.json", TrimCompression("model.json"))
}

type fakeS3 struct {
	objects map[string][]byte
	keys    []string
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.keys = append(f.keys, *in.Key)
	data, ok := f.objects[*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestS3StoreOpen(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{"predictors/a.json": []byte("weights")}}
	s := NewS3Store(fake, "bucket", "predictors")

	data, err := ReadAll(context.Background(), s, "a.json")
	require.NoError(t, err)
	assert.Equal(t, "weights", string(data))
	assert.Equal(t, []string{"predictors/a.json"}, fake.keys)

	_, err = s.Open(context.Background(), "b.json")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	s, err := New(ctx, Config{Root: "/data"})
	require.NoError(t, err)
	assert.IsType(t, &LocalStore{}, s)

	s, err = New(ctx, Config{Backend: BackendMinio, Endpoint: "localhost:9000", Bucket: "models"})
	require.NoError(t, err)
	assert.IsType(t, &MinioStore{}, s)

	_, err = New(ctx, Config{Backend: BackendMinio})
	assert.Error(t, err)

	_, err = New(ctx, Config{Backend: BackendS3})
	assert.Error(t, err)

	_, err = New(ctx, Config{Backend: "ftp"})
	assert.Error(t, err)
}

// TestMinioStoreIntegration requires a running MinIO instance.
func TestMinioStoreIntegration(t *testing.T) {
	endpoint := os.Getenv("NANOSPECTRUM_MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("NANOSPECTRUM_MINIO_ENDPOINT not set")
	}

	s, err := NewMinioStoreFromConfig(Config{
		Endpoint:  endpoint,
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Bucket:    "nanospectrum-test",
	})
	require.NoError(t, err)

	_, err = s.Open(context.Background(), "does-not-exist.json")
	assert.ErrorIs(t, err, ErrNotFound)
}
