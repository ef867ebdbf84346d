package main

import (
	"fmt"

	"github.com/erauner12/tasksync/internal/syncengine"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show queue counts and the last successful sync",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push queued operations to the server now",
	Args:  cobra.NoArgs,
	RunE:  runSync,
}

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect and administer the operation queue",
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List queued operations",
	Args:  cobra.NoArgs,
	RunE:  runQueueList,
}

var queueClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop every queued operation",
	Args:  cobra.NoArgs,
	RunE:  runQueueClear,
}

var queueRetryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Reset operations that used up their retries",
	Args:  cobra.NoArgs,
	RunE:  runQueueRetry,
}

var queueClearYes bool

func init() {
	rootCmd.AddCommand(statusCmd, syncCmd, queueCmd)
	queueCmd.AddCommand(queueListCmd, queueClearCmd, queueRetryCmd)

	queueClearCmd.Flags().BoolVarP(&queueClearYes, "yes", "y", false, "Do not ask for confirmation")
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	st, err := a.Engine.Status(ctx)
	if err != nil {
		return err
	}
	online := a.Monitor.IsOnline(ctx)

	out := cmd.OutOrStdout()
	if rootJSON {
		return printJSON(out, struct {
			syncengine.Status
			Online bool `json:"online"`
		}{st, online})
	}

	tw := newTable(out)
	fprintf(tw, "online\t%t\n", online)
	fprintf(tw, "last sync\t%s\n", formatMs(st.LastSyncTime))
	fprintf(tw, "pending\t%d\n", st.Pending)
	fprintf(tw, "failed\t%d\n", st.Failed)
	fprintf(tw, "exhausted\t%d\n", st.Exhausted)
	fprintf(tw, "syncing\t%d\n", st.Syncing)
	return tw.Flush()
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.Engine.SyncAll(ctx)
	if err != nil {
		return err
	}
	if rootJSON {
		return printJSON(cmd.OutOrStdout(), res)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Synced %d of %d operations (%d failed)\n", res.Success, res.Total, res.Failed)
	return nil
}

func runQueueList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	ops, err := a.Queue.All(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if rootJSON {
		return printJSON(out, ops)
	}
	if len(ops) == 0 {
		fmt.Fprintln(out, "Queue is empty")
		return nil
	}

	tw := newTable(out)
	fprintf(tw, "ID\tENTITY\tOP\tSTATUS\tRETRIES\tQUEUED\tERROR\n")
	for _, op := range ops {
		fprintf(tw, "%s\t%s/%s\t%s\t%s\t%d\t%s\t%s\n",
			truncate(op.ID, 8), op.EntityType, truncate(op.EntityID, 8), op.Operation, op.Status,
			op.RetryCount, formatMs(op.Timestamp), truncate(op.Error, 40))
	}
	return tw.Flush()
}

func runQueueClear(cmd *cobra.Command, args []string) error {
	if !queueClearYes {
		return fmt.Errorf("refusing to drop queued changes without --yes")
	}

	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Queue.Clear(ctx); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Queue cleared")
	return nil
}

func runQueueRetry(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.Queue.RetryExhausted(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Reset %d operations\n", n)
	return nil
}
