package model

import "testing"

func ptr[T any](v T) *T { return &v }

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"task", KindTask, false},
		{"tasks", KindTask, false},
		{"Events", KindEvent, false},
		{"note", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKind(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseKind(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseKind(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestPatchApply(t *testing.T) {
	f := Fields{Title: "old", Priority: PriorityLow, CategoryID: ptr("cat-1")}

	Patch{
		Title:      ptr("new"),
		Priority:   ptr(PriorityHigh),
		CategoryID: ptr(""),
		Completed:  ptr(true),
	}.Apply(&f, 1000)

	if f.Title != "new" {
		t.Errorf("Title = %q, want new", f.Title)
	}
	if f.Priority != PriorityHigh {
		t.Errorf("Priority = %q, want high", f.Priority)
	}
	if f.CategoryID != nil {
		t.Errorf("CategoryID = %v, want nil after clearing", *f.CategoryID)
	}
	if !f.Completed || f.CompletedAt == nil || *f.CompletedAt != 1000 {
		t.Errorf("expected completed at 1000, got completed=%v at=%v", f.Completed, f.CompletedAt)
	}

	Patch{Completed: ptr(false)}.Apply(&f, 2000)
	if f.Completed || f.CompletedAt != nil {
		t.Errorf("expected completion cleared, got completed=%v at=%v", f.Completed, f.CompletedAt)
	}
}

func TestFieldsValidate(t *testing.T) {
	tests := []struct {
		name    string
		fields  Fields
		wantErr bool
	}{
		{"valid", Fields{Title: "x", Priority: PriorityMedium}, false},
		{"blank title", Fields{Title: "  "}, true},
		{"bad priority", Fields{Title: "x", Priority: "urgent"}, true},
		{"end before start", Fields{Title: "x", DueDate: ptr(int64(10)), EndDate: ptr(int64(5))}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fields.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPayloadFor(t *testing.T) {
	task := &Record{Kind: KindTask, Fields: Fields{Title: "t", Completed: true}}
	p := PayloadFor(task)
	if err := p.Validate(); err != nil {
		t.Fatalf("task payload invalid: %v", err)
	}
	if p.Task == nil || !p.Task.Completed || p.Task.Title != "t" {
		t.Errorf("unexpected task payload: %+v", p.Task)
	}

	event := &Record{Kind: KindEvent, Fields: Fields{Title: "e", DueDate: ptr(int64(5)), Location: "home"}}
	p = PayloadFor(event)
	if err := p.Validate(); err != nil {
		t.Fatalf("event payload invalid: %v", err)
	}
	if p.Event == nil || *p.Event.StartDate != 5 || p.Event.Location != "home" {
		t.Errorf("unexpected event payload: %+v", p.Event)
	}
}

func TestPayloadValidateMismatch(t *testing.T) {
	p := Payload{Kind: KindEvent, Task: &TaskPayload{Title: "wrong"}}
	if err := p.Validate(); err == nil {
		t.Error("expected error for task body under event kind")
	}
	if _, err := p.Body(); err == nil {
		t.Error("expected Body() to reject mismatched payload")
	}
}

func TestOperationEligible(t *testing.T) {
	tests := []struct {
		name          string
		op            Operation
		wantEligible  bool
		wantExhausted bool
	}{
		{"pending", Operation{Status: OpStatusPending}, true, false},
		{"syncing", Operation{Status: OpStatusSyncing}, false, false},
		{"failed with retries left", Operation{Status: OpStatusFailed, RetryCount: 2}, true, false},
		{"failed exhausted", Operation{Status: OpStatusFailed, RetryCount: MaxRetries}, false, true},
		{"success", Operation{Status: OpStatusSuccess}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.op.Eligible(); got != tt.wantEligible {
				t.Errorf("Eligible() = %v, want %v", got, tt.wantEligible)
			}
			if got := tt.op.Exhausted(); got != tt.wantExhausted {
				t.Errorf("Exhausted() = %v, want %v", got, tt.wantExhausted)
			}
		})
	}
}
