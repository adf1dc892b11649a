package document

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/grachmannico95/invoice-proof/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHash(t *testing.T) {
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", Hash(nil))
}

func TestMemoryStore_PutGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	hash, err := s.Put(ctx, []byte("%PDF-1.7 invoice"), "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, Hash([]byte("%PDF-1.7 invoice")), hash)

	again, err := s.Put(ctx, []byte("%PDF-1.7 invoice"), "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, hash, again)

	doc, err := s.Get(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.7 invoice"), doc)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = s.Put(ctx, nil, "")
	assert.ErrorIs(t, err, domain.ErrMalformedInput)
}

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*in.Key] = b
	f.puts++
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.objects[*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(b))}, nil
}

func (f *fakeS3) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[*in.Key]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func TestS3Store_PutGet(t *testing.T) {
	fake := &fakeS3{objects: make(map[string][]byte)}
	s := newS3Store(fake, "invoices", "")
	ctx := context.Background()

	hash, err := s.Put(ctx, []byte("doc"), "")
	require.NoError(t, err)
	_, err = s.Put(ctx, []byte("doc"), "")
	require.NoError(t, err)
	assert.Equal(t, 1, fake.puts)
	assert.Contains(t, fake.objects, "documents/"+hash)

	doc, err := s.Get(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, []byte("doc"), doc)

	_, err = s.Get(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestS3Store_IntegrityCheck(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{"documents/" + Hash([]byte("a")): []byte("b")}}
	s := newS3Store(fake, "invoices", "")

	_, err := s.Get(context.Background(), Hash([]byte("a")))
	assert.Equal(t, domain.KindInternal, domain.KindOf(err))
}
