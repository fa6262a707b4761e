package config

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/marmos91/dittodir/pkg/store/blob"
)

func TestCreateBlobStore(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		cfg  StoreConfig
	}{
		{name: "memory", cfg: StoreConfig{Type: "memory"}},
		{name: "filesystem", cfg: StoreConfig{
			Type:       "filesystem",
			Filesystem: map[string]any{"path": filepath.Join(t.TempDir(), "blobs")},
		}},
		{name: "badger in memory", cfg: StoreConfig{
			Type:   "badger",
			Badger: map[string]any{"in_memory": true},
		}},
		{name: "badger on disk", cfg: StoreConfig{
			Type:   "badger",
			Badger: map[string]any{"db_path": t.TempDir(), "block_cache_mb": "16"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := CreateBlobStore(ctx, &tt.cfg, nil)
			if err != nil {
				t.Fatalf("CreateBlobStore failed: %v", err)
			}
			defer func() { _ = store.Close() }()

			if err := store.Put(ctx, "alice/a.txt", []byte("x")); err != nil {
				t.Fatalf("Put failed: %v", err)
			}
			data, err := store.Get(ctx, "alice/a.txt")
			if err != nil || string(data) != "x" {
				t.Fatalf("Get = %q, %v", data, err)
			}
		})
	}
}

func TestCreateBlobStore_Errors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		cfg  StoreConfig
	}{
		{name: "unknown type", cfg: StoreConfig{Type: "dropbox"}},
		{name: "filesystem without path", cfg: StoreConfig{Type: "filesystem", Filesystem: map[string]any{}}},
		{name: "badger without path", cfg: StoreConfig{Type: "badger", Badger: map[string]any{}}},
		{name: "s3 without bucket", cfg: StoreConfig{Type: "s3", S3: map[string]any{"region": "eu-west-1"}}},
		{name: "s3 without region", cfg: StoreConfig{Type: "s3", S3: map[string]any{"bucket": "b"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := CreateBlobStore(ctx, &tt.cfg, nil); err == nil {
				t.Fatal("Expected error")
			}
		})
	}
}

func TestCreateBlobStore_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := CreateBlobStore(ctx, &StoreConfig{Type: "memory"}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
}

type recordingBlobMetrics struct{ ops []string }

func (m *recordingBlobMetrics) ObserveOperation(store, operation string, _ time.Duration, _ int, _ error) {
	m.ops = append(m.ops, store+"/"+operation)
}

func TestCreateBlobStore_Instrumented(t *testing.T) {
	m := &recordingBlobMetrics{}
	store, err := CreateBlobStore(context.Background(), &StoreConfig{Type: "memory"}, m)
	if err != nil {
		t.Fatalf("CreateBlobStore failed: %v", err)
	}
	_ = store.Put(context.Background(), "alice/a.txt", []byte("abc"))

	if len(m.ops) != 1 || m.ops[0] != "memory/put" {
		t.Errorf("Expected one memory/put observation, got %v", m.ops)
	}
}

var _ blob.Metrics = (*recordingBlobMetrics)(nil)
