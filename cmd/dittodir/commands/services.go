package commands

import (
	"github.com/spf13/cobra"
)

var directoryCmd = &cobra.Command{
	Use:   "directory",
	Short: "Run the Directory service",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cfg)
		if err != nil {
			return err
		}
		if err := rt.addDirectory(nil); err != nil {
			return err
		}
		return run(rt.srv)
	},
}

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "Run a Files backend over the configured blob store",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cfg)
		if err != nil {
			return err
		}
		if err := rt.addFiles(cmd.Context()); err != nil {
			return err
		}
		return run(rt.srv)
	},
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Run the Users backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cfg)
		if err != nil {
			return err
		}
		if err := rt.addUsers(); err != nil {
			return err
		}
		return run(rt.srv)
	},
}

func init() {
	rootCmd.AddCommand(directoryCmd, filesCmd, usersCmd)
}
