package syncengine

import (
	"errors"
	"fmt"

	"github.com/erauner12/tasksync/internal/model"
)

// ErrAuthMissing aborts a run before any operation is touched: there is no
// usable bearer token.
var ErrAuthMissing = errors.New("sync credentials missing or expired")

// ErrRecordMissing marks an operation whose local record no longer exists.
var ErrRecordMissing = errors.New("record not found")

// RemoteOperationError is a failed remote call for one queued operation.
type RemoteOperationError struct {
	Op       model.OpType
	Kind     model.Kind
	EntityID string
	Err      error
}

func (e *RemoteOperationError) Error() string {
	return fmt.Sprintf("%s %s %s: %v", e.Op, e.Kind, e.EntityID, e.Err)
}

func (e *RemoteOperationError) Unwrap() error {
	return e.Err
}

// PreconditionError rejects an operation the remote cannot accept, such as an
// update of a record that was never created remotely.
type PreconditionError struct {
	Op       model.OpType
	EntityID string
	Reason   string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("cannot %s %s: %s", e.Op, e.EntityID, e.Reason)
}
