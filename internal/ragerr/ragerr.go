// Package ragerr defines the error taxonomy shared across the engine.
//
// Every exported error is a typed sentinel that callers can match with
// errors.Is/errors.As; operations wrap it with Wrap to attach the
// failing operation name and, where relevant, the failing item, the
// way pkg/core/errors.go wraps with StoreError{Op, Err} in the
// teacher repo.
package ragerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error into one of the taxonomy buckets from the
// error handling design (spec §7). Kind is not meant to be exhaustive
// of every failure; it is the axis user-facing tooling switches on to
// pick an exit code or a recovery hint.
type Kind int

const (
	KindUnknown Kind = iota
	KindConfiguration
	KindStore
	KindModel
	KindIndex
	KindContent
	KindSearch
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindStore:
		return "store"
	case KindModel:
		return "model"
	case KindIndex:
		return "index"
	case KindContent:
		return "content"
	case KindSearch:
		return "search"
	default:
		return "unknown"
	}
}

// Sentinel errors. Use errors.Is against these, never string matching.
var (
	ErrStoreUnavailable  = errors.New("store unavailable")
	ErrStoreClosed       = errors.New("store closed")
	ErrNotFound          = errors.New("not found")
	ErrConstraint        = errors.New("constraint violation")
	ErrInvalidConfig     = errors.New("invalid configuration")
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	ErrModelMismatch     = errors.New("model mismatch")
	ErrIndexCapacity     = errors.New("index capacity exceeded")
	ErrIndexUnavailable  = errors.New("index worker unavailable")
	ErrDesynchronized    = errors.New("embedding id not present in store")
	ErrContentNotFound   = errors.New("content not found")
	ErrStorageLimit      = errors.New("content storage limit exceeded")
	ErrInvalidContent    = errors.New("invalid content format")
)

// Error wraps an underlying error with an operation name, a Kind and
// an optional actionable hint, mirroring StoreError in the teacher
// repo but carrying a Kind so callers can route on it without
// re-parsing the operation string.
type Error struct {
	Op   string
	Kind Kind
	Item string // the specific failing item (file, id, model name), if any
	Hint string // actionable next step, e.g. "rebuild", "re-ingest"
	Err  error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Err)
	if e.Item != "" {
		msg = fmt.Sprintf("%s: %s: %s", e.Op, e.Item, e.Err)
	}
	if e.Hint != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Hint)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return errors.Is(e.Err, target) }

// Wrap attaches operation context to err. Returns nil if err is nil.
func Wrap(op string, kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

// WrapItem attaches operation and item context to err.
func WrapItem(op, item string, kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Item: item, Err: err}
}

// WrapHint attaches operation context plus a recovery hint, used for
// the fatal, actionable failures spec §7 requires (model/dimension
// mismatch naming "rebuild" or "--force-rebuild").
func WrapHint(op, hint string, kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Hint: hint, Err: err}
}

// KindOf extracts the Kind from err if it (or something it wraps) is
// a *Error, otherwise KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
