package model

// MaxRetries bounds how many failed attempts an operation gets before it is left
// failed for manual intervention.
const MaxRetries = 3

// OpType is the kind of mutation an operation carries to the remote.
type OpType string

const (
	OpCreate OpType = "create"
	OpUpdate OpType = "update"
	OpDelete OpType = "delete"
)

// OpStatus tracks an operation through a sync run.
type OpStatus string

const (
	OpStatusPending OpStatus = "pending"
	OpStatusSyncing OpStatus = "syncing"
	OpStatusSuccess OpStatus = "success"
	OpStatusFailed  OpStatus = "failed"
)

// Operation is a queued intent to create, update or delete the remote
// counterpart of a record. Data is a snapshot taken at enqueue time.
type Operation struct {
	ID         string   `json:"id"`
	EntityType Kind     `json:"entityType"`
	EntityID   string   `json:"entityId"`
	Operation  OpType   `json:"operation"`
	Timestamp  int64    `json:"timestamp"`
	Data       Payload  `json:"data"`
	Status     OpStatus `json:"status"`
	RetryCount int      `json:"retryCount"`
	Error      string   `json:"error,omitempty"`
	// ServerID is set when the remote accepted a create whose local
	// acknowledgement could not be stored. A retry reuses it instead of
	// creating the remote resource again.
	ServerID string `json:"serverId,omitempty"`
}

// Eligible reports whether the operation may be attempted in a sync run.
func (o *Operation) Eligible() bool {
	switch o.Status {
	case OpStatusPending:
		return true
	case OpStatusFailed:
		return o.RetryCount < MaxRetries
	}
	return false
}

// Exhausted reports whether the operation used up its retries.
func (o *Operation) Exhausted() bool {
	return o.Status == OpStatusFailed && o.RetryCount >= MaxRetries
}

// Inherit folds a superseded operation into o. A create that never completed
// keeps o on the create path, and a server id recorded by it is carried over.
func (o *Operation) Inherit(prev Operation) {
	if prev.Operation == OpCreate && o.Operation == OpUpdate {
		o.Operation = OpCreate
	}
	if o.ServerID == "" {
		o.ServerID = prev.ServerID
	}
}
