package errors

import (
	stderrors "errors"
	"fmt"
)

type Kind string

const (
	KindNotInitialized     Kind = "REPOSITORY_NOT_INITIALIZED"
	KindAlreadyInitialized Kind = "ALREADY_INITIALIZED"
	KindFileNotFound       Kind = "FILE_NOT_FOUND"
	KindAlreadyStaged      Kind = "ALREADY_STAGED"
	KindNotStaged          Kind = "NOT_STAGED"
	KindEmptyCommit        Kind = "EMPTY_COMMIT"
	KindCommitNotFound     Kind = "COMMIT_NOT_FOUND"
	KindAmbiguousCommitID  Kind = "AMBIGUOUS_COMMIT_ID"
	KindNotFound           Kind = "NOT_FOUND"
	KindStorage            Kind = "STORAGE"
	KindStaleHead          Kind = "STALE_HEAD"
)

// Sentinels for errors.Is comparisons. Only the Kind is compared.
var (
	ErrNotInitialized     = &Error{Kind: KindNotInitialized, Message: "not a minivcs repository"}
	ErrAlreadyInitialized = &Error{Kind: KindAlreadyInitialized, Message: "repository already initialized"}
	ErrFileNotFound       = &Error{Kind: KindFileNotFound, Message: "file not found"}
	ErrAlreadyStaged      = &Error{Kind: KindAlreadyStaged, Message: "already staged"}
	ErrNotStaged          = &Error{Kind: KindNotStaged, Message: "not staged"}
	ErrEmptyCommit        = &Error{Kind: KindEmptyCommit, Message: "nothing to commit"}
	ErrCommitNotFound     = &Error{Kind: KindCommitNotFound, Message: "commit not found"}
	ErrAmbiguousCommitID  = &Error{Kind: KindAmbiguousCommitID, Message: "ambiguous commit id"}
	ErrNotFound           = &Error{Kind: KindNotFound, Message: "content not found"}
	ErrStorage            = &Error{Kind: KindStorage, Message: "storage error"}
	ErrStaleHead          = &Error{Kind: KindStaleHead, Message: "head moved, retry"}
)

type Error struct {
	Kind    Kind
	Message string
	Path    string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Path != "" {
		msg = fmt.Sprintf("%s: %s", e.Path, msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func WithPath(kind Kind, path, message string) *Error {
	return &Error{Kind: kind, Path: path, Message: message}
}

// Storage wraps an I/O or decoding failure against the persisted layout.
func Storage(message string, err error) *Error {
	return &Error{Kind: KindStorage, Message: message, Err: err}
}

func FileNotFound(path string) *Error {
	return WithPath(KindFileNotFound, path, "no such file in working directory")
}

func AlreadyStaged(path string) *Error {
	return WithPath(KindAlreadyStaged, path, "already staged, unchanged")
}

func NotStaged(path string) *Error {
	return WithPath(KindNotStaged, path, "not staged")
}

func CommitNotFound(ref string) *Error {
	return &Error{Kind: KindCommitNotFound, Message: fmt.Sprintf("no commit matches %q", ref)}
}

func AmbiguousCommitID(ref string, matches int) *Error {
	return &Error{
		Kind:    KindAmbiguousCommitID,
		Message: fmt.Sprintf("prefix %q matches %d commits", ref, matches),
	}
}

func NotFound(hash string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("blob %s not found", hash)}
}

func StaleHead(expected, actual string) *Error {
	return &Error{
		Kind:    KindStaleHead,
		Message: fmt.Sprintf("head moved from %q to %q, retry the commit", short(expected), short(actual)),
	}
}

// KindOf returns the Kind of the first *Error in err's tree, or "".
// Joined errors are searched in order.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsBenign reports idempotent no-ops that are reported but do not fail a command.
func IsBenign(err error) bool {
	switch KindOf(err) {
	case KindAlreadyStaged, KindAlreadyInitialized:
		return true
	}
	return false
}

func short(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
