// Package model defines the records kept on-device and the operations queued to
// reconcile them with the remote API.
package model

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies the entity type of a record.
type Kind string

const (
	KindTask  Kind = "task"
	KindEvent Kind = "event"
)

// Kinds lists every syncable entity kind.
var Kinds = []Kind{KindTask, KindEvent}

// ParseKind accepts singular or plural forms ("task", "tasks").
func ParseKind(s string) (Kind, error) {
	switch strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "s") {
	case "task":
		return KindTask, nil
	case "event":
		return KindEvent, nil
	}
	return "", fmt.Errorf("unknown entity kind %q", s)
}

// Plural returns the collection name used for storage keys and remote paths.
func (k Kind) Plural() string {
	return string(k) + "s"
}

// SyncStatus reports whether the remote counterpart reflects local state.
type SyncStatus string

const (
	SyncStatusSynced   SyncStatus = "synced"
	SyncStatusPending  SyncStatus = "pending"
	SyncStatusConflict SyncStatus = "conflict"
)

// Priority of a task or event.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ErrInvalidPriority is returned by Fields.Validate for unknown priorities.
var ErrInvalidPriority = errors.New("priority must be one of low, medium, high")

// Record is a task or event as stored on-device.
//
// A record with a nil ServerID has never been created remotely; every mutation of
// it must still travel through the create path.
type Record struct {
	ID           string     `json:"id"`
	Kind         Kind       `json:"kind"`
	ServerID     *string    `json:"serverId"`
	CreatedAt    int64      `json:"createdAt"`
	UpdatedAt    int64      `json:"updatedAt"`
	SyncStatus   SyncStatus `json:"syncStatus"`
	LastSyncedAt *int64     `json:"lastSyncedAt"`
	Deleted      bool       `json:"deleted"`
	DeletedAt    *int64     `json:"deletedAt,omitempty"`

	Fields
}

// Fields holds the business fields of a record.
// DueDate is the due time of a task or the start time of an event.
type Fields struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	DueDate     *int64   `json:"dueDate"`
	EndDate     *int64   `json:"endDate,omitempty"`
	Location    string   `json:"location,omitempty"`
	Priority    Priority `json:"priority"`
	CategoryID  *string  `json:"categoryId"`
	TagIDs      []string `json:"tagIds,omitempty"`
	Completed   bool     `json:"completed"`
	CompletedAt *int64   `json:"completedAt,omitempty"`
}

// Validate checks the field set before it is persisted.
func (f Fields) Validate() error {
	if strings.TrimSpace(f.Title) == "" {
		return errors.New("title is required")
	}
	switch f.Priority {
	case "", PriorityLow, PriorityMedium, PriorityHigh:
	default:
		return ErrInvalidPriority
	}
	if f.DueDate != nil && f.EndDate != nil && *f.EndDate < *f.DueDate {
		return errors.New("endDate must not precede dueDate")
	}
	return nil
}

// Patch is a partial update of Fields; nil pointers leave a field untouched.
type Patch struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	DueDate     *int64    `json:"dueDate,omitempty"`
	EndDate     *int64    `json:"endDate,omitempty"`
	Location    *string   `json:"location,omitempty"`
	Priority    *Priority `json:"priority,omitempty"`
	CategoryID  *string   `json:"categoryId,omitempty"`
	TagIDs      *[]string `json:"tagIds,omitempty"`
	Completed   *bool     `json:"completed,omitempty"`
}

// Apply merges the patch into f. Un-completing a record clears CompletedAt;
// completing it stamps CompletedAt with now when it was unset.
func (p Patch) Apply(f *Fields, now int64) {
	if p.Title != nil {
		f.Title = *p.Title
	}
	if p.Description != nil {
		f.Description = *p.Description
	}
	if p.DueDate != nil {
		f.DueDate = p.DueDate
	}
	if p.EndDate != nil {
		f.EndDate = p.EndDate
	}
	if p.Location != nil {
		f.Location = *p.Location
	}
	if p.Priority != nil {
		f.Priority = *p.Priority
	}
	if p.CategoryID != nil {
		if *p.CategoryID == "" {
			f.CategoryID = nil
		} else {
			f.CategoryID = p.CategoryID
		}
	}
	if p.TagIDs != nil {
		f.TagIDs = *p.TagIDs
	}
	if p.Completed != nil {
		f.Completed = *p.Completed
		if !f.Completed {
			f.CompletedAt = nil
		} else if f.CompletedAt == nil {
			f.CompletedAt = &now
		}
	}
}

// HasServerID reports whether the record has been created remotely.
func (r *Record) HasServerID() bool {
	return r.ServerID != nil && *r.ServerID != ""
}
