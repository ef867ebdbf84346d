package main

import (
	"fmt"
	"time"

	"github.com/erauner12/tasksync/internal/model"
	"github.com/erauner12/tasksync/internal/scheduler"
	"github.com/spf13/cobra"
)

var (
	recordKind     string
	listAll        bool
	addDescription string
	addPriority    string
	addDue         string
	addEnd         string
	addLocation    string
)

var tasksCmd = &cobra.Command{
	Use:     "tasks",
	Aliases: []string{"t"},
	Short:   "Manage local tasks and events",
}

var tasksListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List records",
	Args:    cobra.NoArgs,
	RunE:    runTasksList,
}

var tasksAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Create a record and queue it for sync",
	Args:  cobra.ExactArgs(1),
	RunE:  runTasksAdd,
}

var tasksDoneCmd = &cobra.Command{
	Use:   "done <id>",
	Short: "Mark a record completed",
	Args:  cobra.ExactArgs(1),
	RunE:  runTasksDone,
}

var tasksRmCmd = &cobra.Command{
	Use:     "rm <id>",
	Aliases: []string{"delete"},
	Short:   "Delete a record",
	Args:    cobra.ExactArgs(1),
	RunE:    runTasksRm,
}

func init() {
	rootCmd.AddCommand(tasksCmd)
	tasksCmd.AddCommand(tasksListCmd, tasksAddCmd, tasksDoneCmd, tasksRmCmd)

	tasksCmd.PersistentFlags().StringVarP(&recordKind, "kind", "k", string(model.KindTask), "Record kind (task or event)")

	tasksListCmd.Flags().BoolVarP(&listAll, "all", "a", false, "Include deleted records")

	tasksAddCmd.Flags().StringVarP(&addDescription, "description", "d", "", "Description")
	tasksAddCmd.Flags().StringVarP(&addPriority, "priority", "p", "", "Priority (low, medium, high)")
	tasksAddCmd.Flags().StringVar(&addDue, "due", "", "Due or start time (RFC 3339 or YYYY-MM-DD)")
	tasksAddCmd.Flags().StringVar(&addEnd, "end", "", "End time for events (RFC 3339 or YYYY-MM-DD)")
	tasksAddCmd.Flags().StringVar(&addLocation, "location", "", "Location for events")
}

// parseWhen parses an RFC 3339 timestamp or a bare date into epoch
// milliseconds. Empty input yields nil.
func parseWhen(s string) (*int64, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			ms := t.UnixMilli()
			return &ms, nil
		}
	}
	return nil, fmt.Errorf("invalid time %q: use RFC 3339 or YYYY-MM-DD", s)
}

func fieldsFromFlags(title string) (model.Fields, error) {
	due, err := parseWhen(addDue)
	if err != nil {
		return model.Fields{}, err
	}
	end, err := parseWhen(addEnd)
	if err != nil {
		return model.Fields{}, err
	}
	return model.Fields{
		Title:       title,
		Description: addDescription,
		DueDate:     due,
		EndDate:     end,
		Location:    addLocation,
		Priority:    model.Priority(addPriority),
	}, nil
}

// reportSync waits for the sync a mutation triggered and prints a one-line summary.
func reportSync(cmd *cobra.Command, ch <-chan scheduler.Outcome) {
	if ch == nil {
		return
	}
	out, ok := <-ch
	if !ok {
		return
	}
	if out.Err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "sync deferred: %v\n", out.Err)
		return
	}
	if out.Result.Total > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "synced %d/%d\n", out.Result.Success, out.Result.Total)
	}
}

func runTasksList(cmd *cobra.Command, args []string) error {
	kind, err := model.ParseKind(recordKind)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	recs, err := a.Tracker.List(ctx, kind, listAll)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if rootJSON {
		return printJSON(out, recs)
	}
	if len(recs) == 0 {
		fmt.Fprintf(out, "No %s found\n", kind.Plural())
		return nil
	}

	tw := newTable(out)
	fprintf(tw, "ID\tTITLE\tDUE\tDONE\tSYNC\tSERVER ID\n")
	for _, r := range recs {
		title := truncate(r.Title, 48)
		if r.Deleted {
			title += " (deleted)"
		}
		fprintf(tw, "%s\t%s\t%s\t%t\t%s\t%s\n",
			r.ID, title, formatOptMs(r.DueDate), r.Completed, r.SyncStatus, orDash(r.ServerID))
	}
	return tw.Flush()
}

func runTasksAdd(cmd *cobra.Command, args []string) error {
	kind, err := model.ParseKind(recordKind)
	if err != nil {
		return err
	}
	fields, err := fieldsFromFlags(args[0])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	rec, ch, err := a.Tracker.Create(ctx, kind, fields)
	if err != nil {
		return err
	}
	if rootJSON {
		reportSync(cmd, ch)
		return printJSON(cmd.OutOrStdout(), rec)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created %s %s\n", kind, rec.ID)
	reportSync(cmd, ch)
	return nil
}

func runTasksDone(cmd *cobra.Command, args []string) error {
	kind, err := model.ParseKind(recordKind)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	rec, ch, err := a.Tracker.Complete(ctx, kind, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Completed %s %s\n", kind, rec.ID)
	reportSync(cmd, ch)
	return nil
}

func runTasksRm(cmd *cobra.Command, args []string) error {
	kind, err := model.ParseKind(recordKind)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	ch, err := a.Tracker.Delete(ctx, kind, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s %s\n", kind, args[0])
	reportSync(cmd, ch)
	return nil
}
