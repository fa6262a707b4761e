package config

import (
	"fmt"

	"github.com/marmos91/dittodir/internal/logger"
	"github.com/marmos91/dittodir/pkg/client"
	"github.com/marmos91/dittodir/pkg/client/local"
	"github.com/marmos91/dittodir/pkg/client/rest"
	"github.com/marmos91/dittodir/pkg/registry"
	"github.com/marmos91/dittodir/pkg/service"
)

// InitializeRegistry creates the Files backend registry of the Directory.
//
// This function:
//  1. Installs the REST dialer for "http" and "https" addresses
//  2. Installs the in-process dialer for "local" addresses if hub is non-nil
//  3. Adds every backend listed in directory.files_backends
//
// Parameters:
//   - cfg: Complete configuration
//   - hub: In-process backends of this process, or nil
//   - metrics: Retry decorator metrics, or nil
//
// Returns:
//   - *registry.Registry: Registry with all configured backends
//   - error: If a backend address is invalid or has no dialer
func InitializeRegistry(cfg *Config, hub *local.Hub, metrics client.Metrics) (*registry.Registry, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is nil")
	}

	reg := registry.New(RetryPolicy(&cfg.Directory.Retry), metrics)

	httpClient := rest.NewHTTPClient()
	dialREST := func(address string) (service.Files, error) {
		return rest.NewFiles(address, httpClient), nil
	}
	for _, scheme := range []string{"http", "https"} {
		if err := reg.RegisterDialer(scheme, dialREST); err != nil {
			return nil, err
		}
	}
	if hub != nil {
		if err := reg.RegisterDialer(local.Scheme, hub.Dial); err != nil {
			return nil, err
		}
	}

	for i, address := range cfg.Directory.FilesBackends {
		if err := reg.AddBackend(address); err != nil {
			return nil, fmt.Errorf("directory.files_backends[%d]: %w", i, err)
		}
	}
	logger.Debug("Registered %d files backend(s)", len(reg.Addresses()))

	return reg, nil
}
