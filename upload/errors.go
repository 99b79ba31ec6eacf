package upload

import (
	"errors"
	"fmt"

	"xdao.co/carpin/carstat"
	"xdao.co/carpin/pack"
)

// ErrEmptyPayload rejects uploads without content.
var ErrEmptyPayload = errors.New("upload: empty payload")

// Op names the collaborator call that failed.
type Op string

const (
	OpReplicate Op = "replicate"
	OpBackup    Op = "backup"
	OpPersist   Op = "persist"
)

// Error is a collaborator failure after the archive was accepted.
// Side effects of sibling calls that succeeded are not undone.
type Error struct {
	Op  Op
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("upload: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsServerError reports whether err is a collaborator failure, as opposed
// to a problem with the submitted content.
func IsServerError(err error) bool {
	var e *Error
	return errors.As(err, &e)
}

// IsClientError reports whether err rejects the submitted content. Retrying
// the same input fails the same way.
func IsClientError(err error) bool {
	return errors.Is(err, ErrEmptyPayload) ||
		carstat.IsMalformed(err) ||
		errors.Is(err, pack.ErrNoFiles) ||
		errors.Is(err, pack.ErrInvalidName) ||
		errors.Is(err, pack.ErrDuplicateName)
}
