package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/erauner12/tasksync/internal/model"
)

// execute runs the CLI with args and returns what it printed to stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	rootConfigPath, rootDebug, rootJSON = "", false, false
	recordKind, listAll = string(model.KindTask), false
	addDescription, addPriority, addDue, addEnd, addLocation = "", "", "", "", ""
	queueClearYes, loginToken = false, ""

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetIn(strings.NewReader(""))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func newServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	var creates atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/healthz":
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodPost && r.URL.Path == "/tasks":
			creates.Add(1)
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id": "srv-1"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server, &creates
}

func setEnv(t *testing.T, apiURL string) {
	t.Setenv("TASKSYNC_API_BASE_URL", apiURL)
	t.Setenv("TASKSYNC_STORE_DRIVER", "sqlite")
	t.Setenv("TASKSYNC_STORE_DSN", filepath.Join(t.TempDir(), "tasksync.db"))
	t.Setenv("TASKSYNC_TOKEN", "test-token")
}

func TestTasksAddListAndQueue(t *testing.T) {
	server, creates := newServer(t)
	setEnv(t, server.URL)

	out, err := execute(t, "tasks", "add", "Buy milk", "--priority", "high")
	if err != nil {
		t.Fatalf("tasks add: %v", err)
	}
	if !strings.HasPrefix(out, "Created task ") {
		t.Errorf("tasks add output = %q", out)
	}
	if creates.Load() != 1 {
		t.Errorf("remote creates = %d, want 1", creates.Load())
	}

	out, err = execute(t, "tasks", "list", "--json")
	if err != nil {
		t.Fatalf("tasks list: %v", err)
	}
	var recs []model.Record
	if err := json.Unmarshal([]byte(out), &recs); err != nil {
		t.Fatalf("decode list output %q: %v", out, err)
	}
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}
	if recs[0].Title != "Buy milk" || recs[0].Priority != model.PriorityHigh {
		t.Errorf("record = %+v", recs[0])
	}
	if recs[0].ServerID == nil || *recs[0].ServerID != "srv-1" {
		t.Errorf("ServerID = %v, want srv-1", recs[0].ServerID)
	}

	out, err = execute(t, "queue", "list")
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	if strings.TrimSpace(out) != "Queue is empty" {
		t.Errorf("queue list output = %q", out)
	}

	if _, err := execute(t, "queue", "clear"); err == nil {
		t.Error("queue clear without --yes should fail")
	}
}

func TestTasksAddRejectsBadDate(t *testing.T) {
	server, creates := newServer(t)
	setEnv(t, server.URL)

	if _, err := execute(t, "tasks", "add", "Dentist", "--due", "next tuesday"); err == nil {
		t.Fatal("expected an error for an unparseable date")
	}
	if creates.Load() != 0 {
		t.Errorf("remote creates = %d, want 0", creates.Load())
	}
}

func TestLoginLogoutWithFileCredentials(t *testing.T) {
	server, _ := newServer(t)
	setEnv(t, server.URL)
	t.Setenv("TASKSYNC_TOKEN", "")
	path := filepath.Join(t.TempDir(), "creds", "credentials.json")
	t.Setenv("TASKSYNC_CREDENTIAL_SOURCE", "file")
	t.Setenv("TASKSYNC_CREDENTIAL_FILE", path)

	if _, err := execute(t, "login", "--token", "opaque-token"); err != nil {
		t.Fatalf("login: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read credential file: %v", err)
	}
	if !strings.Contains(string(data), "opaque-token") {
		t.Errorf("credential file = %s", data)
	}

	if _, err := execute(t, "logout"); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("credential file still present: %v", err)
	}
}

func TestLoginRequiresToken(t *testing.T) {
	server, _ := newServer(t)
	setEnv(t, server.URL)
	t.Setenv("TASKSYNC_TOKEN", "")
	t.Setenv("TASKSYNC_CREDENTIAL_SOURCE", "file")
	t.Setenv("TASKSYNC_CREDENTIAL_FILE", filepath.Join(t.TempDir(), "credentials.json"))

	if _, err := execute(t, "login"); err == nil {
		t.Fatal("login without a token should fail")
	}
}

func TestParseWhen(t *testing.T) {
	tests := []struct {
		in      string
		want    *time.Time
		wantErr bool
	}{
		{in: ""},
		{in: "2026-03-01T09:30:00Z", want: ptrTime(time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC))},
		{in: "2026-03-01", want: ptrTime(time.Date(2026, 3, 1, 0, 0, 0, 0, time.Local))},
		{in: "soon", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseWhen(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseWhen(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			switch {
			case tt.want == nil && got != nil:
				t.Errorf("parseWhen(%q) = %d, want nil", tt.in, *got)
			case tt.want != nil && (got == nil || *got != tt.want.UnixMilli()):
				t.Errorf("parseWhen(%q) = %v, want %d", tt.in, got, tt.want.UnixMilli())
			}
		})
	}
}

func ptrTime(t time.Time) *time.Time { return &t }
