package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittodir/internal/logger"
	"github.com/marmos91/dittodir/pkg/client/local"
	"github.com/marmos91/dittodir/pkg/files"
	"github.com/marmos91/dittodir/pkg/store/blob"
	"github.com/marmos91/dittodir/pkg/store/blob/memory"
)

var localBackends int

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Run Directory, Users and Files backends in one process",
	Long: `Run a complete deployment in a single process.

The Directory places replicas on the configured Files backend, served over
REST on files.port, and on --local-backends in-memory backends reached
in-process. The Users backend cascades account deletions to the Directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if localBackends < 0 {
			return fmt.Errorf("--local-backends cannot be negative")
		}

		rt, err := newRuntime(cfg)
		if err != nil {
			return err
		}

		hub := local.NewHub()
		backends := make([]string, 0, localBackends+1)
		for i := 1; i <= localBackends; i++ {
			name := fmt.Sprintf("files-%d", i)
			store := blob.Instrument(memory.New(), name, rt.metrics.Blob)
			rt.closeOnShutdown(name+" store", store)

			addr, err := hub.Register(name, files.New(store, rt.tokens))
			if err != nil {
				return err
			}
			backends = append(backends, addr)
		}
		backends = append(backends, fmt.Sprintf("http://localhost:%d", cfg.Files.Port))

		cfg.Directory.FilesBackends = backends
		cfg.Directory.UsersURL = fmt.Sprintf("http://localhost:%d", cfg.Users.Port)
		cfg.Users.DirectoryURL = fmt.Sprintf("http://localhost:%d", cfg.Directory.Port)
		if cfg.Directory.Replication.Candidates > len(backends) {
			logger.Warn("Only %d files backend(s) available for %d placement candidates",
				len(backends), cfg.Directory.Replication.Candidates)
		}

		if err := rt.addFiles(cmd.Context()); err != nil {
			return err
		}
		if err := rt.addUsers(); err != nil {
			return err
		}
		if err := rt.addDirectory(hub); err != nil {
			return err
		}
		return run(rt.srv)
	},
}

func init() {
	clusterCmd.Flags().IntVar(&localBackends, "local-backends", 3, "number of in-memory files backends served in-process")
	rootCmd.AddCommand(clusterCmd)
}
