package e2e

import (
	"context"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/marmos91/dittodir/internal/logger"
	"github.com/marmos91/dittodir/pkg/adapter"
	"github.com/marmos91/dittodir/pkg/adapter/rest"
	"github.com/marmos91/dittodir/pkg/cleanup"
	"github.com/marmos91/dittodir/pkg/client"
	restclient "github.com/marmos91/dittodir/pkg/client/rest"
	"github.com/marmos91/dittodir/pkg/config"
	"github.com/marmos91/dittodir/pkg/directory"
	"github.com/marmos91/dittodir/pkg/files"
	"github.com/marmos91/dittodir/pkg/metrics"
	"github.com/marmos91/dittodir/pkg/placement"
	"github.com/marmos91/dittodir/pkg/server"
	"github.com/marmos91/dittodir/pkg/service"
	"github.com/marmos91/dittodir/pkg/store/blob"
	"github.com/marmos91/dittodir/pkg/token"
	"github.com/marmos91/dittodir/pkg/usercache"
	"github.com/marmos91/dittodir/pkg/users"
)

const testSecret = "e2e-test-secret-0123456789"

// process is one service running on its own port with its own lifecycle,
// so a test can stop it independently of the rest of the cluster.
type process struct {
	name   string
	port   int
	srv    *server.Server
	cancel context.CancelFunc
	done   chan error

	stopOnce sync.Once
}

func (p *process) stop(t *testing.T) {
	p.stopOnce.Do(func() {
		p.cancel()
		select {
		case <-p.done:
		case <-time.After(10 * time.Second):
			t.Logf("%s: stop timeout", p.name)
		}
	})
}

// FilesBackend is a running Files backend of the test cluster.
type FilesBackend struct {
	Address string
	Store   blob.Store
	proc    *process
}

// TestContext provides a complete testing environment with:
// - A Users backend, N Files backends and a Directory, each on its own port
// - REST clients for the Directory and the Users backend
// - Cleanup mechanisms
type TestContext struct {
	T        *testing.T
	Config   *TestConfig
	Tokens   *token.Signer
	Backends []*FilesBackend

	Directory *restclient.Directory
	Users     *restclient.Users

	ctx       context.Context
	processes []*process
}

// NewTestContext starts a cluster laid out as config describes.
func NewTestContext(t *testing.T, config *TestConfig) *TestContext {
	t.Helper()

	// Always use ERROR level to keep test output clean
	logger.SetLevel("ERROR")

	signer, err := token.New(testSecret, 10*time.Second)
	if err != nil {
		t.Fatalf("Failed to create token signer: %v", err)
	}

	tc := &TestContext{
		T:      t,
		Config: config,
		Tokens: signer,
		ctx:    context.Background(),
	}

	usersPort := findFreePort(t)
	dirPort := findFreePort(t)
	usersURL := fmt.Sprintf("http://localhost:%d", usersPort)
	dirURL := fmt.Sprintf("http://localhost:%d", dirPort)

	tc.startUsers(usersPort, dirURL)
	tc.startFilesBackends()
	tc.startDirectory(dirPort, usersURL)

	tc.Directory = restclient.NewDirectory(dirURL, nil)
	tc.Users = restclient.NewUsers(usersURL, nil)
	return tc
}

func (tc *TestContext) startUsers(port int, dirURL string) {
	tc.T.Helper()

	svc := users.New(4)
	policy := client.Policy{MaxAttempts: 3, MaxBackoff: 50 * time.Millisecond, Timeout: 2 * time.Second}
	dir := client.NewDirectory(dirURL, restclient.NewDirectory(dirURL, nil), policy, nil)
	svc.OnDelete(func(ctx context.Context, user service.User, password string) error {
		return dir.DeleteUserFiles(ctx, user.UserID, password, tc.Tokens.IssueNow(user.UserID))
	})

	tc.start("users", port, rest.NewUsers(rest.Config{Port: port}, svc, metrics.NewNoopHTTPMetrics()))
}

func (tc *TestContext) startFilesBackends() {
	tc.T.Helper()

	dir := tc.T.TempDir()
	for i := 1; i <= tc.Config.FilesBackends; i++ {
		store, err := tc.Config.CreateStore(tc.ctx, dir, i)
		if err != nil {
			tc.T.Fatalf("Failed to create %s store %d: %v", tc.Config.Store, i, err)
		}

		port := findFreePort(tc.T)
		a := rest.NewFiles(rest.Config{Port: port}, files.New(store, tc.Tokens), metrics.NewNoopHTTPMetrics())
		proc := tc.start(fmt.Sprintf("files-%d", i), port, a, func(context.Context) error {
			return store.Close()
		})

		tc.Backends = append(tc.Backends, &FilesBackend{
			Address: fmt.Sprintf("http://localhost:%d", port),
			Store:   store,
			proc:    proc,
		})
	}
}

func (tc *TestContext) startDirectory(port int, usersURL string) {
	tc.T.Helper()

	cfg := config.GetDefaultConfig()
	cfg.Directory.FilesBackends = nil
	for _, b := range tc.Backends {
		cfg.Directory.FilesBackends = append(cfg.Directory.FilesBackends, b.Address)
	}
	cfg.Directory.Retry = config.RetryConfig{MaxAttempts: 2, MaxBackoff: 50 * time.Millisecond, Timeout: 2 * time.Second}

	reg, err := config.InitializeRegistry(cfg, nil, nil)
	if err != nil {
		tc.T.Fatalf("Failed to create registry: %v", err)
	}

	policy := config.RetryPolicy(&cfg.Directory.Retry)
	cache := usercache.New(client.NewUsers(usersURL, restclient.NewUsers(usersURL, nil), policy, nil), time.Second, nil)
	pool := cleanup.New(cleanup.Config{Workers: 2, QueueSize: 64, JobTimeout: 5 * time.Second})
	pool.Start()

	dir := directory.New(directory.Config{Replicas: tc.Config.Replicas}, directory.Options{
		Users:    cache,
		Backends: reg,
		Selector: placement.New(reg, tc.Config.FilesBackends, nil),
		Tokens:   tc.Tokens,
		Cleaner:  pool,
	})

	a := rest.NewDirectory(rest.Config{Port: port}, dir, rest.DirectoryOptions{
		Backends: reg,
		Tokens:   tc.Tokens,
		Metrics:  metrics.NewNoopHTTPMetrics(),
	})
	tc.start("directory", port, a, pool.Stop)
}

// start serves a on port in its own server and waits until it accepts
// connections.
func (tc *TestContext) start(name string, port int, a adapter.Adapter, hooks ...func(context.Context) error) *process {
	tc.T.Helper()

	srv := server.New(5 * time.Second)
	if err := srv.AddAdapter(a); err != nil {
		tc.T.Fatalf("Failed to add %s adapter: %v", name, err)
	}
	for _, hook := range hooks {
		srv.OnShutdown(name, hook)
	}

	ctx, cancel := context.WithCancel(tc.ctx)
	proc := &process{name: name, port: port, srv: srv, cancel: cancel, done: make(chan error, 1)}
	go func() {
		proc.done <- srv.Serve(ctx)
	}()
	tc.processes = append(tc.processes, proc)

	if err := waitForPort(port, 10*time.Second); err != nil {
		tc.T.Fatalf("%s failed to start: %v", name, err)
	}
	return proc
}

// StopBackend takes the i-th Files backend offline.
func (tc *TestContext) StopBackend(i int) {
	tc.T.Helper()
	tc.Backends[i].proc.stop(tc.T)
}

// BackendFor returns the index of the backend serving loc, or -1.
func (tc *TestContext) BackendFor(loc string) int {
	addr := service.BackendOf(loc)
	for i, b := range tc.Backends {
		if b.Address == addr {
			return i
		}
	}
	return -1
}

// CreateUser registers userID with password on the Users backend.
func (tc *TestContext) CreateUser(userID, password string) {
	tc.T.Helper()
	_, err := tc.Users.CreateUser(tc.ctx, &service.User{
		UserID:   userID,
		FullName: userID,
		Email:    userID + "@example.com",
		Password: password,
	})
	if err != nil {
		tc.T.Fatalf("Failed to create user %s: %v", userID, err)
	}
}

// Context returns the context tests issue requests with.
func (tc *TestContext) Context() context.Context {
	return tc.ctx
}

// Cleanup stops every service in reverse start order.
func (tc *TestContext) Cleanup() {
	for i := len(tc.processes) - 1; i >= 0; i-- {
		tc.processes[i].stop(tc.T)
	}
}

// waitForPort waits for the server to be ready by attempting to connect.
func waitForPort(port int, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", fmt.Sprintf("localhost:%d", port), 500*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return fmt.Errorf("timeout waiting for port %d", port)
}

// findFreePort finds an available port.
func findFreePort(t testing.TB) int {
	t.Helper()
	listener, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		t.Fatalf("Failed to find free port: %v", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	_ = listener.Close()
	return port
}
