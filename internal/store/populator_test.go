package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"edge-resizer-go/internal/config"
	"edge-resizer-go/internal/metrics"
	"edge-resizer-go/internal/model"
)

type putCall struct {
	key          string
	body         []byte
	contentType  string
	cacheControl string
	ctxErr       error
}

// fakeStore records writes and optionally fails or blocks them.
type fakeStore struct {
	mu      sync.Mutex
	calls   []putCall
	err     error
	release chan struct{}
}

func (f *fakeStore) Put(ctx context.Context, key string, body []byte, contentType, cacheControl string) error {
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, putCall{key, body, contentType, cacheControl, ctx.Err()})
	return f.err
}

func (f *fakeStore) Get(context.Context, string) (*Object, error) {
	return nil, ErrNotFound
}

func (f *fakeStore) snapshot() []putCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]putCall(nil), f.calls...)
}

func newTestPopulator(s Store, bucket string) *Populator {
	cfg := &config.Config{Store: config.StoreConfig{Bucket: bucket, WriteTimeoutSeconds: 5}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewPopulator(cfg, s, logger, metrics.New())
}

func waitFor(t *testing.T, p *Populator) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
}

func TestPopulator_WritesVariant(t *testing.T) {
	fs := &fakeStore{}
	p := newTestPopulator(fs, "variants")

	result := &model.TransformResult{Body: []byte("webp-bytes"), MimeType: "image/webp"}
	p.Populate(context.Background(), "webp/tr:w-200/foo.jpg", result, "max-age=60")
	waitFor(t, p)

	calls := fs.snapshot()
	if len(calls) != 1 {
		t.Fatalf("Put called %d times, want 1", len(calls))
	}
	c := calls[0]
	if c.key != "webp/tr:w-200/foo.jpg" {
		t.Errorf("key = %q", c.key)
	}
	if string(c.body) != "webp-bytes" || c.contentType != "image/webp" || c.cacheControl != "max-age=60" {
		t.Errorf("Put(%q, %q, %q), unexpected arguments", c.body, c.contentType, c.cacheControl)
	}
}

func TestPopulator_DoesNotBlockCaller(t *testing.T) {
	fs := &fakeStore{release: make(chan struct{})}
	p := newTestPopulator(fs, "variants")

	returned := make(chan struct{})
	go func() {
		p.Populate(context.Background(), "k", &model.TransformResult{Body: []byte("x")}, "")
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("Populate() blocked on the store write")
	}

	close(fs.release)
	waitFor(t, p)
	if n := len(fs.snapshot()); n != 1 {
		t.Errorf("Put called %d times, want 1", n)
	}
}

func TestPopulator_SurvivesRequestCancellation(t *testing.T) {
	fs := &fakeStore{release: make(chan struct{})}
	p := newTestPopulator(fs, "variants")

	ctx, cancel := context.WithCancel(context.Background())
	p.Populate(ctx, "k", &model.TransformResult{Body: []byte("x")}, "")
	cancel()
	close(fs.release)
	waitFor(t, p)

	calls := fs.snapshot()
	if len(calls) != 1 {
		t.Fatalf("Put called %d times, want 1", len(calls))
	}
	if calls[0].ctxErr != nil {
		t.Errorf("write context error = %v, want nil after request cancellation", calls[0].ctxErr)
	}
}

func TestPopulator_ErrorsAreSwallowed(t *testing.T) {
	fs := &fakeStore{err: errors.New("503 slow down")}
	p := newTestPopulator(fs, "variants")

	p.Populate(context.Background(), "k", &model.TransformResult{Body: []byte("x")}, "")
	waitFor(t, p)

	if n := len(fs.snapshot()); n != 1 {
		t.Errorf("Put called %d times, want 1 (no retries)", n)
	}
}

func TestPopulator_DisabledWithoutBucket(t *testing.T) {
	fs := &fakeStore{}
	p := newTestPopulator(fs, "")

	p.Populate(context.Background(), "k", &model.TransformResult{Body: []byte("x")}, "")
	waitFor(t, p)

	if n := len(fs.snapshot()); n != 0 {
		t.Errorf("Put called %d times, want 0", n)
	}
}

func TestPopulator_WaitHonoursContext(t *testing.T) {
	fs := &fakeStore{release: make(chan struct{})}
	p := newTestPopulator(fs, "variants")
	p.Populate(context.Background(), "k", &model.TransformResult{Body: []byte("x")}, "")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := p.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want context.DeadlineExceeded", err)
	}

	close(fs.release)
	waitFor(t, p)
}
