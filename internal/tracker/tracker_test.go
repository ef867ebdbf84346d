package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/erauner12/tasksync/internal/connectivity"
	"github.com/erauner12/tasksync/internal/credentials"
	"github.com/erauner12/tasksync/internal/kv"
	"github.com/erauner12/tasksync/internal/model"
	"github.com/erauner12/tasksync/internal/queue"
	"github.com/erauner12/tasksync/internal/remote"
	"github.com/erauner12/tasksync/internal/scheduler"
	"github.com/erauner12/tasksync/internal/store"
	"github.com/erauner12/tasksync/internal/syncengine"
)

type countingTrigger struct {
	calls atomic.Int32
}

func (c *countingTrigger) Trigger(ctx context.Context) <-chan scheduler.Outcome {
	c.calls.Add(1)
	out := make(chan scheduler.Outcome, 1)
	close(out)
	return out
}

func newTestTracker(t *testing.T) (*Tracker, *store.Store, *queue.Queue, *countingTrigger) {
	t.Helper()
	backend := kv.NewMemory()
	st := store.New(backend)
	q := queue.New(backend)
	trig := &countingTrigger{}
	return New(st, q, trig), st, q, trig
}

func TestCreateThenUpdateCollapsesToOneOperation(t *testing.T) {
	ctx := context.Background()
	tr, _, q, trig := newTestTracker(t)

	rec, _, err := tr.Create(ctx, model.KindTask, model.Fields{Title: "T1"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	title := "T1 renamed"
	if _, _, err := tr.Update(ctx, model.KindTask, rec.ID, model.Patch{Title: &title}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	ops, _ := q.All(ctx)
	if len(ops) != 1 {
		t.Fatalf("queue has %d ops, want 1", len(ops))
	}
	// Never created remotely, so the collapsed entry still creates.
	if ops[0].Operation != model.OpCreate {
		t.Errorf("Operation = %q, want create", ops[0].Operation)
	}
	if ops[0].Data.Task.Title != "T1 renamed" {
		t.Errorf("Data title = %q, want latest", ops[0].Data.Task.Title)
	}
	if trig.calls.Load() != 2 {
		t.Errorf("triggers = %d, want 2", trig.calls.Load())
	}
}

func TestUpdateOfSyncedRecordQueuesUpdate(t *testing.T) {
	ctx := context.Background()
	tr, st, q, _ := newTestTracker(t)

	rec, _, _ := tr.Create(ctx, model.KindTask, model.Fields{Title: "T1"})
	ops, _ := q.All(ctx)
	q.Remove(ctx, ops[0].ID)
	sid := "99"
	st.MarkSynced(ctx, model.KindTask, rec.ID, &sid, 1)

	if _, _, err := tr.Complete(ctx, model.KindTask, rec.ID); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	ops, _ = q.All(ctx)
	if len(ops) != 1 || ops[0].Operation != model.OpUpdate || !ops[0].Data.Task.Completed {
		t.Errorf("ops = %+v", ops)
	}
}

func TestDeleteNeverCreatedPurges(t *testing.T) {
	ctx := context.Background()
	tr, st, q, _ := newTestTracker(t)

	rec, _, _ := tr.Create(ctx, model.KindEvent, model.Fields{Title: "draft"})
	if _, err := tr.Delete(ctx, model.KindEvent, rec.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if got, _ := st.Get(ctx, model.KindEvent, rec.ID); got != nil {
		t.Errorf("record still stored: %+v", got)
	}
	if ops, _ := q.All(ctx); len(ops) != 0 {
		t.Errorf("queue = %+v, want empty", ops)
	}
}

func TestDeleteSyncedRecordSoftDeletes(t *testing.T) {
	ctx := context.Background()
	tr, st, q, _ := newTestTracker(t)

	rec, _, _ := tr.Create(ctx, model.KindTask, model.Fields{Title: "T1"})
	ops, _ := q.All(ctx)
	q.Remove(ctx, ops[0].ID)
	sid := "5"
	st.MarkSynced(ctx, model.KindTask, rec.ID, &sid, 1)

	if _, err := tr.Delete(ctx, model.KindTask, rec.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	got, _ := st.Get(ctx, model.KindTask, rec.ID)
	if got == nil || !got.Deleted || got.SyncStatus != model.SyncStatusPending {
		t.Errorf("record = %+v, want soft-deleted pending", got)
	}
	ops, _ = q.All(ctx)
	if len(ops) != 1 || ops[0].Operation != model.OpDelete {
		t.Errorf("ops = %+v", ops)
	}

	visible, _ := tr.List(ctx, model.KindTask, false)
	if len(visible) != 0 {
		t.Errorf("List() without deleted = %+v", visible)
	}
	all, _ := tr.List(ctx, model.KindTask, true)
	if len(all) != 1 {
		t.Errorf("List(includeDeleted) = %d records", len(all))
	}
}

func TestEditOfDeletedRecordKeepsPendingDelete(t *testing.T) {
	ctx := context.Background()
	tr, st, q, _ := newTestTracker(t)

	rec, _, _ := tr.Create(ctx, model.KindTask, model.Fields{Title: "T1"})
	ops, _ := q.All(ctx)
	q.Remove(ctx, ops[0].ID)
	sid := "s1"
	st.MarkSynced(ctx, model.KindTask, rec.ID, &sid, 1)

	if _, err := tr.Delete(ctx, model.KindTask, rec.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	title := "edited after delete"
	if _, _, err := tr.Update(ctx, model.KindTask, rec.ID, model.Patch{Title: &title}); !IsNotFound(err) {
		t.Errorf("Update() of deleted record error = %v, want not found", err)
	}
	if _, _, err := tr.Complete(ctx, model.KindTask, rec.ID); !IsNotFound(err) {
		t.Errorf("Complete() of deleted record error = %v, want not found", err)
	}

	ops, _ = q.All(ctx)
	if len(ops) != 1 || ops[0].Operation != model.OpDelete || ops[0].Status != model.OpStatusPending {
		t.Errorf("ops = %+v, want the pending delete only", ops)
	}
	got, _ := st.Get(ctx, model.KindTask, rec.ID)
	if got.Title != "T1" {
		t.Errorf("deleted record was edited: %+v", got)
	}
}

func TestDeleteDuringInFlightCreateSoftDeletes(t *testing.T) {
	ctx := context.Background()
	tr, st, q, _ := newTestTracker(t)

	rec, _, _ := tr.Create(ctx, model.KindTask, model.Fields{Title: "racing"})
	ops, _ := q.All(ctx)
	if _, ok, err := q.Claim(ctx, ops[0].ID); err != nil || !ok {
		t.Fatalf("Claim() = %v, %v", ok, err)
	}

	if _, err := tr.Delete(ctx, model.KindTask, rec.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	got, _ := st.Get(ctx, model.KindTask, rec.ID)
	if got == nil || !got.Deleted {
		t.Fatalf("record = %+v, want kept and soft-deleted", got)
	}
	ops, _ = q.All(ctx)
	if len(ops) != 1 || ops[0].Status != model.OpStatusSyncing {
		t.Errorf("ops = %+v, want only the in-flight create", ops)
	}
}

func TestNotFound(t *testing.T) {
	ctx := context.Background()
	tr, _, q, trig := newTestTracker(t)

	if _, err := tr.Get(ctx, model.KindTask, "missing"); !IsNotFound(err) {
		t.Errorf("Get() error = %v", err)
	}
	if _, _, err := tr.Update(ctx, model.KindTask, "missing", model.Patch{}); !IsNotFound(err) {
		t.Errorf("Update() error = %v", err)
	}
	if _, err := tr.Delete(ctx, model.KindTask, "missing"); !IsNotFound(err) {
		t.Errorf("Delete() error = %v", err)
	}
	if ops, _ := q.All(ctx); len(ops) != 0 {
		t.Errorf("queue = %+v", ops)
	}
	if trig.calls.Load() != 0 {
		t.Errorf("triggers = %d, want 0", trig.calls.Load())
	}
}

func TestValidationErrorPropagates(t *testing.T) {
	tr, _, _, _ := newTestTracker(t)

	_, _, err := tr.Create(context.Background(), model.KindTask, model.Fields{Title: " "})
	var ve *store.ValidationError
	if err == nil || !errors.As(err, &ve) {
		t.Errorf("Create() error = %v, want ValidationError", err)
	}
}

func TestEndToEndPush(t *testing.T) {
	var mu sync.Mutex
	var received []map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/healthz":
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodPost && r.URL.Path == "/tasks":
			var body map[string]any
			json.NewDecoder(r.Body).Decode(&body)
			mu.Lock()
			received = append(received, body)
			mu.Unlock()
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id": 99}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	backend := kv.NewMemory()
	st := store.New(backend)
	q := queue.New(backend)
	creds := credentials.Static("token")
	monitor := connectivity.New(connectivity.NewHTTPProbe(server.URL))
	engine := syncengine.New(st, q, remote.NewAPI(remote.NewHTTPClient(server.URL, creds)), monitor, creds)
	sched := scheduler.New(engine, monitor)
	defer sched.Close()

	tr := New(st, q, sched)
	ctx := context.Background()

	rec, done, err := tr.Create(ctx, model.KindTask, model.Fields{Title: "Buy milk", Priority: model.PriorityHigh})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	out := <-done
	if out.Err != nil || out.Result != (syncengine.Result{Success: 1, Total: 1}) {
		t.Fatalf("Outcome = %+v", out)
	}

	got, _ := tr.Get(ctx, model.KindTask, rec.ID)
	if got.ServerID == nil || *got.ServerID != "99" || got.SyncStatus != model.SyncStatusSynced {
		t.Errorf("record = %+v", got)
	}
	if len(received) != 1 || received[0]["priority"] != "high" {
		t.Errorf("server received %+v", received)
	}
}
