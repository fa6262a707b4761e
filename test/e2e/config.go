package e2e

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/marmos91/dittodir/pkg/config"
	"github.com/marmos91/dittodir/pkg/store/blob"
)

// StoreType selects the blob store behind every Files backend of a test
// cluster.
type StoreType string

const (
	StoreMemory     StoreType = "memory"
	StoreFilesystem StoreType = "filesystem"
	StoreBadger     StoreType = "badger"
)

// TestConfig describes one cluster layout.
type TestConfig struct {
	Name string

	// Store is the blob store type of the Files backends
	Store StoreType

	// FilesBackends is the number of Files backends started
	FilesBackends int

	// Replicas is the replica count per write
	Replicas int
}

func (tc *TestConfig) String() string {
	return fmt.Sprintf("%s (%d backends, %d replicas)", tc.Name, tc.FilesBackends, tc.Replicas)
}

// CreateStore opens the blob store of backend i below dir.
func (tc *TestConfig) CreateStore(ctx context.Context, dir string, i int) (blob.Store, error) {
	storeCfg := &config.StoreConfig{Type: string(tc.Store)}
	switch tc.Store {
	case StoreMemory:
	case StoreFilesystem:
		storeCfg.Filesystem = map[string]any{"path": filepath.Join(dir, fmt.Sprintf("files-%d", i))}
	case StoreBadger:
		storeCfg.Badger = map[string]any{"db_path": filepath.Join(dir, fmt.Sprintf("badger-%d", i))}
	default:
		return nil, fmt.Errorf("unknown store type: %s", tc.Store)
	}
	return config.CreateBlobStore(ctx, storeCfg, nil)
}

// AllConfigurations returns every layout the end-to-end tests run on.
func AllConfigurations() []*TestConfig {
	return []*TestConfig{
		{Name: "memory", Store: StoreMemory, FilesBackends: 3, Replicas: 2},
		{Name: "filesystem", Store: StoreFilesystem, FilesBackends: 3, Replicas: 2},
		{Name: "badger", Store: StoreBadger, FilesBackends: 3, Replicas: 2},
	}
}
