// Command dde runs workflow definitions from the terminal.
//
// Usage:
//
//	dde validate workflow.yaml
//	dde run workflow.yaml --store sqlite --path runs.db
//	dde resume workflow.yaml <run-id> --store sqlite --path runs.db
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/flowdag/dde-go/dde"
	"github.com/flowdag/dde-go/dde/config"
	"github.com/flowdag/dde-go/dde/store"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// flags shared by run and resume, layered over the settings file.
type runFlags struct {
	settingsPath string
	storeBackend string
	storePath    string
	storeDSN     string
	workers      int
	jsonLog      bool
	speculate    bool
	failClosed   bool
	mockAddr     string
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "dde",
		Short:         "Dependency-driven workflow execution engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newValidateCmd(), newRunCmd(), newResumeCmd())
	return root
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.settingsPath, "config", "dde.yaml", "engine settings file")
	cmd.Flags().StringVar(&f.storeBackend, "store", "", "checkpoint backend: memory, file, sqlite or mysql")
	cmd.Flags().StringVar(&f.storePath, "path", "", "checkpoint directory (file) or database file (sqlite)")
	cmd.Flags().StringVar(&f.storeDSN, "dsn", "", "mysql connection string")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "max concurrent nodes (default from config)")
	cmd.Flags().BoolVar(&f.jsonLog, "json-log", false, "emit events as JSON lines")
	cmd.Flags().BoolVar(&f.speculate, "speculate", false, "activate contract mocks automatically")
	cmd.Flags().BoolVar(&f.failClosed, "fail-closed", false, "fail nodes whose condition cannot be evaluated")
	cmd.Flags().StringVar(&f.mockAddr, "mock-addr", "", "serve contract mocks over HTTP at this address during the run")
}

// settings merges the settings file with command line overrides.
func (f *runFlags) settings() (config.Settings, error) {
	settings, err := config.LoadSettings(f.settingsPath)
	if err != nil {
		return settings, err
	}
	if f.storeBackend != "" {
		settings.Store.Backend = f.storeBackend
	}
	if f.storePath != "" {
		settings.Store.Path = f.storePath
	}
	if f.storeDSN != "" {
		settings.Store.DSN = f.storeDSN
	}
	if f.workers > 0 {
		settings.MaxWorkers = f.workers
	}
	if f.jsonLog {
		settings.LogJSON = true
	}
	if f.speculate {
		settings.Speculation = true
	}
	if f.failClosed {
		settings.ConditionPolicy = "fail-closed"
	}
	return settings, settings.Validate()
}

// openStore builds the checkpoint store named by the settings. The memory
// backend must be asked for explicitly; an empty backend is an error so a
// forgotten flag cannot silently make runs unresumable.
func openStore(settings config.Settings) (store.Store[dde.Snapshot], error) {
	switch settings.Store.Backend {
	case config.BackendMemory:
		return store.NewMemStore[dde.Snapshot](), nil
	case config.BackendFile:
		return store.NewFileStore[dde.Snapshot](settings.Store.Path)
	case config.BackendSQLite:
		return store.NewSQLiteStore[dde.Snapshot](settings.Store.Path)
	case config.BackendMySQL:
		return store.NewMySQLStore[dde.Snapshot](settings.Store.DSN)
	case "":
		return nil, fmt.Errorf("no checkpoint backend configured: set store.backend or pass --store (use --store memory for an ephemeral run)")
	default:
		return nil, fmt.Errorf("unknown store backend %q", settings.Store.Backend)
	}
}
