package config

import (
	"testing"

	"github.com/marmos91/dittodir/pkg/client/local"
)

func TestInitializeRegistry(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Directory.FilesBackends = []string{"local://files-1", "http://files-2:8081", "https://files-3"}

	reg, err := InitializeRegistry(cfg, local.NewHub(), nil)
	if err != nil {
		t.Fatalf("InitializeRegistry failed: %v", err)
	}
	if got := reg.Addresses(); len(got) != 3 || got[0] != "local://files-1" {
		t.Errorf("Unexpected backends %v", got)
	}
	if _, err := reg.Files("http://files-2:8081"); err != nil {
		t.Errorf("Expected REST dialer for http backend: %v", err)
	}
}

func TestInitializeRegistry_LocalWithoutHub(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Directory.FilesBackends = []string{"local://files-1"}

	if _, err := InitializeRegistry(cfg, nil, nil); err == nil {
		t.Fatal("Expected error for local backend without a hub")
	}
}
