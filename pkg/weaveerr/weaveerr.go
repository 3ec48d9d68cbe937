// Package weaveerr defines the error taxonomy shared by every component of
// the sync engine (data model §7). Errors carry a Kind so callers can
// dispatch on the failure category without string matching, following the
// shape of bee's storage.ErrNotFound sentinel but generalized since several
// distinct kinds need the same programmatic handling (log + drop peer vs.
// log + back off vs. fatal).
package weaveerr

import "fmt"

// Kind classifies a weaveerr.Error for programmatic handling.
type Kind int

const (
	_ Kind = iota
	NotJoined
	NotFound
	ChunkNotFound
	FailedToReadChunk
	Invalid
	InvalidProof
	DiskFull
	ExceedsDiskPoolSizeLimit
	ExceedsDataRootSizeLimit
	DataRootNotFound
	TxDataTooBig
	TimedOut
	FatalJoinNoIntersection
)

func (k Kind) String() string {
	switch k {
	case NotJoined:
		return "not_joined"
	case NotFound:
		return "not_found"
	case ChunkNotFound:
		return "chunk_not_found"
	case FailedToReadChunk:
		return "failed_to_read_chunk"
	case Invalid:
		return "invalid"
	case InvalidProof:
		return "invalid_proof"
	case DiskFull:
		return "disk_full"
	case ExceedsDiskPoolSizeLimit:
		return "exceeds_disk_pool_size_limit"
	case ExceedsDataRootSizeLimit:
		return "exceeds_data_root_size_limit"
	case DataRootNotFound:
		return "data_root_not_found"
	case TxDataTooBig:
		return "tx_data_too_big"
	case TimedOut:
		return "timed_out"
	case FatalJoinNoIntersection:
		return "fatal_join_no_intersection"
	default:
		return "unknown"
	}
}

// Error is a weave-sync error tagged with a Kind.
type Error struct {
	K   Kind
	Msg string
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.K, e.Msg, e.Err)
	}
	if e.Msg != "" {
		return fmt.Sprintf("%s: %s", e.K, e.Msg)
	}
	return e.K.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target has the same Kind, so callers can write
// errors.Is(err, weaveerr.New(weaveerr.NotFound, "")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.K == e.K
}

// New constructs an *Error of the given kind.
func New(k Kind, msg string) *Error {
	return &Error{K: k, Msg: msg}
}

// Wrap constructs an *Error of the given kind wrapping an underlying cause.
func Wrap(k Kind, msg string, err error) *Error {
	return &Error{K: k, Msg: msg, Err: err}
}

// KindOf extracts the Kind from err, returning false if err is not (or does
// not wrap) a *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	for err != nil {
		if as, ok := err.(*Error); ok {
			e = as
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	if e == nil {
		return 0, false
	}
	return e.K, true
}
