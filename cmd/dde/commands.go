package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/flowdag/dde-go/dde"
	"github.com/flowdag/dde-go/dde/config"
	"github.com/flowdag/dde-go/dde/contract"
	"github.com/flowdag/dde-go/dde/emit"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <workflow.yaml>",
		Short: "Parse a workflow file and check its graph and contracts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wf, err := config.Load(args[0])
			if err != nil {
				return err
			}
			graph, registry, err := wf.Build()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "workflow %s@%s: %d nodes, %d contracts, ok\n",
				graph.ID, graph.Version, graph.Len(), len(registry.IDs()))
			return nil
		},
	}
}

func newRunCmd() *cobra.Command {
	flags := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run <workflow.yaml>",
		Short: "Execute a workflow from the start",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeWorkflow(cmd, flags, args[0], "")
		},
	}
	flags.register(cmd)
	return cmd
}

func newResumeCmd() *cobra.Command {
	flags := &runFlags{}
	cmd := &cobra.Command{
		Use:   "resume <workflow.yaml> <run-id>",
		Short: "Resume an interrupted run from its last checkpoint",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeWorkflow(cmd, flags, args[0], args[1])
		},
	}
	flags.register(cmd)
	return cmd
}

func executeWorkflow(cmd *cobra.Command, flags *runFlags, workflowPath, resumeID string) error {
	settings, err := flags.settings()
	if err != nil {
		return err
	}
	wf, err := config.Load(workflowPath)
	if err != nil {
		return err
	}
	graph, registry, err := wf.Build()
	if err != nil {
		return err
	}

	snapshots, err := openStore(settings)
	if err != nil {
		return err
	}
	defer snapshots.Close()

	opts := []dde.Option{
		dde.WithStore(snapshots),
		dde.WithEmitter(emit.NewLogEmitter(cmd.ErrOrStderr(), settings.LogJSON)),
		dde.WithMaxWorkers(settings.MaxWorkers),
		dde.WithCheckpointInterval(settings.CheckpointInterval),
		dde.WithSpeculation(settings.Speculation),
	}
	if len(registry.IDs()) > 0 {
		opts = append(opts, dde.WithRegistry(registry))
	}
	if settings.DefaultNodeTimeout > 0 {
		opts = append(opts, dde.WithDefaultNodeTimeout(settings.DefaultNodeTimeout.Std()))
	}
	if settings.RunTimeout > 0 {
		opts = append(opts, dde.WithRunTimeout(settings.RunTimeout.Std()))
	}
	if settings.ConditionPolicy == "fail-closed" {
		opts = append(opts, dde.WithConditionPolicy(dde.FailClosed))
	}

	scheduler, err := dde.NewScheduler(graph, newShellExecutor(wf.Commands()), opts...)
	if err != nil {
		return err
	}

	if flags.mockAddr != "" {
		stop := serveMocks(flags.mockAddr, registry, cmd.ErrOrStderr())
		defer stop()
	}

	ctx, cancel := contextWithInterrupt(cmd.Context())
	defer cancel()

	var report *dde.RunReport
	if resumeID == "" {
		report, err = scheduler.Start(ctx, wf.Globals)
	} else {
		report, err = scheduler.Resume(ctx, resumeID)
	}
	if report != nil {
		printReport(cmd.OutOrStdout(), report)
	}
	if err != nil {
		return err
	}
	if report.Status != dde.RunSucceeded {
		return fmt.Errorf("run %s finished %s", report.RunID, report.Status)
	}
	return nil
}

// serveMocks exposes the contract registry over HTTP for the duration of the
// run, so external consumers can fetch active mock payloads.
func serveMocks(addr string, registry *contract.Registry, logw io.Writer) func() {
	srv := &http.Server{Addr: addr, Handler: contract.NewMockHandler(registry)}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(logw, "mock server: %v\n", err)
		}
	}()
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
}

func printReport(w io.Writer, report *dde.RunReport) {
	fmt.Fprintf(w, "run %s (%s@%s): %s in %s\n",
		report.RunID, report.GraphID, report.GraphVersion, report.Status,
		report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
	for _, nr := range report.Nodes {
		line := fmt.Sprintf("  %-20s %-10s attempts=%d", nr.NodeID, nr.Status, nr.Attempts)
		if nr.Error != "" {
			line += " error=" + nr.Error
		}
		if len(nr.UsedMocks) > 0 {
			mocks, _ := json.Marshal(nr.UsedMocks)
			line += " mocks=" + string(mocks)
		}
		fmt.Fprintln(w, line)
	}
	for _, rec := range report.Reconciliations {
		fmt.Fprintf(w, "  contract %s: %s", rec.ContractID, rec.Verdict)
		if len(rec.Rework) > 0 {
			fmt.Fprintf(w, " rework=%v", rec.Rework)
		}
		fmt.Fprintln(w)
	}
}

// contextWithInterrupt cancels the run on SIGINT or SIGTERM. In-flight node
// attempts finish their current try before the run winds down.
func contextWithInterrupt(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
