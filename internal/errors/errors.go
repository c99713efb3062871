package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/dailyrhapsody/diary/internal/diary"
)

// Error is the structured error written back to API callers.
type Error struct {
	Status  int
	Err     error // The error this wraps
	Details []Detail
}

type Detail struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d: %s, details: %v", e.Status, e.Err, e.Details)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type transport struct {
	Message string   `json:"error"`
	Details []Detail `json:"details,omitempty"`
	Status  int      `json:"status"`
}

func (e *Error) MarshalJSON() ([]byte, error) {
	msg := http.StatusText(e.Status)
	if e.Err != nil {
		msg = e.Err.Error()
	}

	return json.Marshal(transport{
		Message: msg,
		Details: e.Details,
		Status:  e.Status,
	})
}

func (e *Error) UnmarshalJSON(byts []byte) error {
	t := transport{}
	if err := json.Unmarshal(byts, &t); err != nil {
		return err
	}

	e.Err = errors.New(t.Message)
	e.Details = t.Details
	e.Status = t.Status
	return nil
}

// E builds an [Error] from its arguments: a string or error becomes the
// message, an int the status, and any [Detail] is appended.
//
// The status defaults to 500.
func E(args ...any) *Error {
	ret := &Error{
		Status:  http.StatusInternalServerError,
		Err:     nil,
		Details: nil,
	}

	for _, arg := range args {
		switch arg := arg.(type) {
		case string:
			ret.Err = errors.New(arg)
		case error:
			ret.Err = arg
		case int:
			ret.Status = arg
		case Detail:
			ret.Details = append(ret.Details, arg)
		case []Detail:
			ret.Details = append(ret.Details, arg...)
		}
	}

	return ret
}

// FromDomain maps the diary sentinel errors onto statuses.
//
// Anything unrecognized, storage failures included, is a 500 whose message
// is not leaked to the caller.
func FromDomain(err error) *Error {
	var sErr *Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &sErr):
		return sErr
	case errors.Is(err, diary.ErrInvalid):
		return E(err, http.StatusBadRequest)
	case errors.Is(err, diary.ErrPinConflict):
		return E(err, http.StatusConflict)
	case errors.Is(err, diary.ErrNotFound):
		return E(err, http.StatusNotFound)
	case errors.Is(err, diary.ErrUnauthorized):
		return E(err, http.StatusUnauthorized)
	}

	return E(http.StatusInternalServerError, "internal server error")
}
