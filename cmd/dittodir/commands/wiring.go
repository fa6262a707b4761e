package commands

import (
	"context"
	"fmt"

	"github.com/marmos91/dittodir/internal/logger"
	"github.com/marmos91/dittodir/pkg/adapter/rest"
	"github.com/marmos91/dittodir/pkg/cleanup"
	"github.com/marmos91/dittodir/pkg/client"
	"github.com/marmos91/dittodir/pkg/client/local"
	restclient "github.com/marmos91/dittodir/pkg/client/rest"
	"github.com/marmos91/dittodir/pkg/config"
	"github.com/marmos91/dittodir/pkg/directory"
	"github.com/marmos91/dittodir/pkg/files"
	"github.com/marmos91/dittodir/pkg/placement"
	"github.com/marmos91/dittodir/pkg/server"
	"github.com/marmos91/dittodir/pkg/service"
	"github.com/marmos91/dittodir/pkg/store/blob"
	"github.com/marmos91/dittodir/pkg/token"
	"github.com/marmos91/dittodir/pkg/usercache"
	"github.com/marmos91/dittodir/pkg/users"
)

// runtime holds what every service of a process shares.
type runtime struct {
	cfg     *config.Config
	tokens  *token.Signer
	metrics *config.MetricsResult
	srv     *server.Server
}

func newRuntime(cfg *config.Config) (*runtime, error) {
	signer, err := config.CreateTokenSigner(&cfg.Token)
	if err != nil {
		return nil, err
	}

	rt := &runtime{
		cfg:     cfg,
		tokens:  signer,
		metrics: config.InitializeMetrics(cfg),
		srv:     server.New(cfg.Server.ShutdownTimeout),
	}
	if rt.metrics.Server != nil {
		if err := rt.srv.AddAdapter(rt.metrics.Server); err != nil {
			return nil, err
		}
	}
	return rt, nil
}

func (rt *runtime) restConfig(port int) rest.Config {
	return rest.Config{
		Port:            port,
		ShutdownTimeout: rt.cfg.Server.ShutdownTimeout,
		MaxBodyBytes:    rt.cfg.Server.MaxBodyBytes,
		RateLimit: rest.RateLimitConfig{
			RequestsPerSecond: rt.cfg.Server.RateLimit.RequestsPerSecond,
			Burst:             rt.cfg.Server.RateLimit.Burst,
		},
	}
}

// addDirectory wires the Directory and its REST adapter. hub serves
// local:// backends and may be nil.
func (rt *runtime) addDirectory(hub *local.Hub) error {
	dc := rt.cfg.Directory
	m := rt.metrics

	reg, err := config.InitializeRegistry(rt.cfg, hub, m.Client)
	if err != nil {
		return err
	}

	policy := config.RetryPolicy(&dc.Retry)
	usersClient := client.NewUsers(dc.UsersURL, restclient.NewUsers(dc.UsersURL, nil), policy, m.Client)

	cache := usercache.New(usersClient, dc.UserCache.TTL, m.UserCache)
	cache.Start(dc.UserCache.SweepInterval)

	pool := cleanup.New(config.CleanupPoolConfig(&dc.Cleanup))
	pool.Start()

	dir := directory.New(directory.Config{Replicas: dc.Replication.Replicas}, directory.Options{
		Users:    cache,
		Backends: reg,
		Selector: placement.New(reg, dc.Replication.Candidates, m.Placement),
		Tokens:   rt.tokens,
		Cleaner:  pool,
		Metrics:  m.Directory,
	})

	adapter := rest.NewDirectory(rt.restConfig(dc.Port), dir, rest.DirectoryOptions{
		Backends: reg,
		Tokens:   rt.tokens,
		Metrics:  m.HTTP,
	})
	if err := rt.srv.AddAdapter(adapter); err != nil {
		return err
	}

	rt.srv.OnShutdown("cleanup pool", func(ctx context.Context) error {
		stats := pool.Stats()
		err := pool.Stop(ctx)
		logger.Info("Cleanup pool stopped: %s", stats.Summary())
		return err
	})
	rt.srv.OnShutdown("user cache", func(context.Context) error {
		cache.Stop()
		return nil
	})

	logger.Info("Directory: %d files backend(s), %d replica(s) per file, users at %s",
		len(reg.Addresses()), dc.Replication.Replicas, dc.UsersURL)
	return nil
}

// newFilesService opens the configured blob store and wraps it in a Files
// backend.
func (rt *runtime) newFilesService(ctx context.Context, storeCfg *config.StoreConfig) (*files.Service, error) {
	store, err := config.CreateBlobStore(ctx, storeCfg, rt.metrics.Blob)
	if err != nil {
		return nil, err
	}
	rt.closeOnShutdown(storeCfg.Type+" store", store)
	return files.New(store, rt.tokens), nil
}

func (rt *runtime) closeOnShutdown(name string, store blob.Store) {
	rt.srv.OnShutdown(name, func(context.Context) error {
		return store.Close()
	})
}

// addFiles wires a Files backend served over REST.
func (rt *runtime) addFiles(ctx context.Context) error {
	svc, err := rt.newFilesService(ctx, &rt.cfg.Files.Store)
	if err != nil {
		return err
	}
	return rt.srv.AddAdapter(rest.NewFiles(rt.restConfig(rt.cfg.Files.Port), svc, rt.metrics.HTTP))
}

// addUsers wires the Users backend. Account deletions cascade to the
// Directory at users.directory_url when it is set.
func (rt *runtime) addUsers() error {
	uc := rt.cfg.Users
	svc := users.New(uc.BcryptCost)

	if uc.DirectoryURL != "" {
		dir := client.NewDirectory(uc.DirectoryURL, restclient.NewDirectory(uc.DirectoryURL, nil),
			config.RetryPolicy(&rt.cfg.Directory.Retry), rt.metrics.Client)
		svc.OnDelete(func(ctx context.Context, user service.User, password string) error {
			// Retries reuse one token, so they must end within its window.
			ctx, cancel := context.WithTimeout(ctx, rt.tokens.Window())
			defer cancel()
			err := dir.DeleteUserFiles(ctx, user.UserID, password, rt.tokens.IssueNow(user.UserID))
			if err != nil {
				return fmt.Errorf("delete files of %s: %w", user.UserID, err)
			}
			return nil
		})
	}

	return rt.srv.AddAdapter(rest.NewUsers(rt.restConfig(uc.Port), svc, rt.metrics.HTTP))
}
