// Package apperr is the error taxonomy shared by services, handlers and
// workers.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindNotFound
	KindForbidden
	KindTransient
	KindIntegrity
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindTransient:
		return "transient"
	case KindIntegrity:
		return "integrity"
	default:
		return "internal"
	}
}

// Codes returned to clients.
const (
	CodeInvalidInput          = "InvalidInput"
	CodeAlreadyWorking        = "AlreadyWorking"
	CodePostNotFound          = "PostNotFound"
	CodeDuplicatePendingOffer = "DuplicatePendingOffer"
	CodeSkillMismatch         = "SkillMismatch"
	CodeInvalidMilestoneEdit  = "InvalidMilestoneEdit"
	CodeAlreadyCountered      = "AlreadyCountered"
	CodeAlreadyAccepted       = "AlreadyAccepted"
	CodeAlreadyRejected       = "AlreadyRejected"
	CodeOfferCountered        = "OfferCountered"
	CodeNotCountered          = "NotCountered"
	CodeAcceptanceFailed      = "AcceptanceFailed"
	CodeOfferNotFound         = "OfferNotFound"
	CodeCounterOfferNotFound  = "CounterOfferNotFound"
	CodeNotEditable           = "NotEditable"
	CodeRoomNotFound          = "RoomNotFound"
	CodeUserNotFound          = "UserNotFound"
	CodeUserBanned            = "UserBanned"
	CodeUserNotVerified       = "UserNotVerified"
	CodeProjectNotFound       = "ProjectNotFound"
	CodeProjectClosed         = "ProjectClosed"
	CodeLinkAlreadySubmitted  = "LinkAlreadySubmitted"
	CodeNotAParty             = "NotAParty"
	CodeForbidden             = "Forbidden"
	CodeUnavailable           = "Unavailable"
	CodeInternal              = "Internal"
)

type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func Wrap(kind Kind, code, message string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

func Validation(code, message string) *Error { return New(KindValidation, code, message) }
func Conflict(code, message string) *Error   { return New(KindConflict, code, message) }
func NotFound(code, message string) *Error   { return New(KindNotFound, code, message) }
func Forbidden(code, message string) *Error  { return New(KindForbidden, code, message) }

// As returns the *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns KindInternal for errors outside the taxonomy.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}

func CodeOf(err error) string {
	if e, ok := As(err); ok {
		return e.Code
	}
	return ""
}

// HasCode reports whether err carries code.
func HasCode(err error, code string) bool {
	return CodeOf(err) == code
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage hides internal details from clients.
func PublicMessage(err error) string {
	if e, ok := As(err); ok && e.Kind != KindInternal {
		return e.Message
	}
	return "Something went wrong, please try again later"
}
