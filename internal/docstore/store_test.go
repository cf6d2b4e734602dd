package docstore

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wakareadme/internal/config"
)

func TestFSStoreRoundTrip(t *testing.T) {
	root := t.TempDir()
	store := NewFSStore(root)
	ctx := context.Background()

	_, err := store.Load(ctx, "README.md")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Save(ctx, "docs/README.md", "hello\n"))
	got, err := store.Load(ctx, "docs/README.md")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", got)

	entries, err := os.ReadDir(filepath.Join(root, "docs"))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary files must not be left behind")
	assert.Equal(t, "README.md", entries[0].Name())
}

func TestFSStoreKeepsMode(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "README.md")
	require.NoError(t, os.WriteFile(target, []byte("old"), 0o600))

	store := NewFSStore(root)
	require.NoError(t, store.Save(context.Background(), "README.md", "new"))

	info, err := os.Stat(target)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.Load(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, store.Save(ctx, "a", "x"))
	got, err := store.Load(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "x", got)
}

type fakeObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeObjects) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("missing")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeObjects) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = data
	f.mu.Unlock()
	return &s3.PutObjectOutput{}, nil
}

func TestS3Store(t *testing.T) {
	objects := &fakeObjects{objects: map[string][]byte{}}
	store := newS3Store(objects, "profiles", "/octo/")
	ctx := context.Background()

	_, err := store.Load(ctx, "README.md")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Save(ctx, "./README.md", "# hi"))
	assert.Contains(t, objects.objects, "profiles/octo/README.md")

	got, err := store.Load(ctx, "README.md")
	require.NoError(t, err)
	assert.Equal(t, "# hi", got)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, config.Store{Driver: "fs", Root: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &FSStore{}, s)

	s, err = Open(ctx, config.Store{Driver: "MEMORY"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	_, err = Open(ctx, config.Store{Driver: "s3"})
	assert.ErrorContains(t, err, "bucket required")

	_, err = Open(ctx, config.Store{Driver: "ftp"})
	assert.Error(t, err)
}
