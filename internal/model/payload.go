package model

import "fmt"

// TaskPayload is the remote field set of a task.
type TaskPayload struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	DueDate     *int64   `json:"dueDate"`
	Priority    Priority `json:"priority"`
	Completed   bool     `json:"completed"`
	CategoryID  *string  `json:"categoryId"`
}

// EventPayload is the remote field set of an event.
type EventPayload struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	StartDate   *int64  `json:"startDate"`
	EndDate     *int64  `json:"endDate"`
	Location    string  `json:"location"`
	CategoryID  *string `json:"categoryId"`
}

// Payload is the snapshot carried by an operation: exactly one variant is set
// and it must match Kind.
type Payload struct {
	Kind  Kind          `json:"kind"`
	Task  *TaskPayload  `json:"task,omitempty"`
	Event *EventPayload `json:"event,omitempty"`
}

// PayloadFor snapshots the business fields of r for the remote.
func PayloadFor(r *Record) Payload {
	switch r.Kind {
	case KindEvent:
		return Payload{Kind: KindEvent, Event: &EventPayload{
			Title:       r.Title,
			Description: r.Description,
			StartDate:   r.DueDate,
			EndDate:     r.EndDate,
			Location:    r.Location,
			CategoryID:  r.CategoryID,
		}}
	default:
		return Payload{Kind: KindTask, Task: &TaskPayload{
			Title:       r.Title,
			Description: r.Description,
			DueDate:     r.DueDate,
			Priority:    r.Priority,
			Completed:   r.Completed,
			CategoryID:  r.CategoryID,
		}}
	}
}

// Validate checks that the populated variant matches Kind.
func (p Payload) Validate() error {
	switch p.Kind {
	case KindTask:
		if p.Task == nil || p.Event != nil {
			return fmt.Errorf("payload kind %q requires a task body only", p.Kind)
		}
	case KindEvent:
		if p.Event == nil || p.Task != nil {
			return fmt.Errorf("payload kind %q requires an event body only", p.Kind)
		}
	default:
		return fmt.Errorf("unknown payload kind %q", p.Kind)
	}
	return nil
}

// Body returns the value to JSON-encode as the remote request body.
func (p Payload) Body() (any, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.Kind == KindEvent {
		return p.Event, nil
	}
	return p.Task, nil
}
