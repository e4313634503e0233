// Package oscarerr defines the internal error taxonomy used across the
// OSCAR execution backend (spec §7). Each kind wraps an underlying cause
// so callers can use errors.Is / errors.As against the sentinels below.
package oscarerr

import "fmt"

// Kind identifies one of the error categories in the propagation table.
type Kind string

const (
	KindInvalidClusterConfig  Kind = "InvalidClusterConfig"
	KindNoCluster             Kind = "NoCluster"
	KindServiceListError      Kind = "ServiceListError"
	KindServiceCreateTransient Kind = "ServiceCreateTransient"
	KindServiceCreationError  Kind = "ServiceCreationError"
	KindUploadError           Kind = "UploadError"
	KindPollTimeout           Kind = "PollTimeout"
	KindDownloadError         Kind = "DownloadError"
	KindOutputDirMissing      Kind = "OutputDirMissing"
)

// Error is a taxonomy-tagged error carrying an optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is allows errors.Is(err, oscarerr.New(kind, "", nil)) to match on Kind
// alone, so call sites can test "is this a PollTimeout" without caring
// about the message or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New constructs an Error of the given kind.
func New(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Sentinel values usable with errors.Is that carry no message or cause.
var (
	NoCluster        = New(KindNoCluster, "registry has no clusters", nil)
	OutputDirMissing = New(KindOutputDirMissing, "mount output directory missing", nil)
)
