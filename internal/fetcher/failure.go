package fetcher

import (
	"fmt"

	"github.com/feedlint/feedlint/internal/diag"
)

// FailureKind names the terminal fetch failures callers can branch on.
type FailureKind string

// Kinds of terminal failure. Each maps to a distinct root cause; callers
// must never have to parse message text to tell them apart.
const (
	FailureTimeout     FailureKind = "timeout"
	FailureBadStatus   FailureKind = "bad_status_line"
	FailureHTTPStatus  FailureKind = "http_status"
	FailureCertificate FailureKind = "certificate"
	FailureTooLarge    FailureKind = "too_large"
	FailureDecompress  FailureKind = "decompress"
	FailureArchive     FailureKind = "archive"
	FailureTransport   FailureKind = "transport"
)

// Failure is a terminal fetch error. It carries the diagnostic event
// that was appended to the run's log and wraps the underlying cause for
// debugging; Kind is the stable, programmatic identity.
type Failure struct {
	Kind  FailureKind
	Event diag.Event
	Err   error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("fetch failed (%s): %v", f.Kind, f.Err)
	}
	return fmt.Sprintf("fetch failed (%s)", f.Kind)
}

// Unwrap exposes the underlying cause to errors.Is/As.
func (f *Failure) Unwrap() error {
	return f.Err
}
