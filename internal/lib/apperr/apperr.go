// Package apperr описывает ошибки сервисного слоя в виде явного результата:
// вид ошибки и сообщение, которое можно показать клиенту.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind вид ошибки сервисного слоя.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindBadRequest
	KindNotFound
	KindConflict
	KindUnauthorized
	KindForbidden
	KindUpstream
	KindPersistence
	KindExpired
)

// Error ошибка с видом и сообщением для клиента. Err хранит исходную причину
// для логов и не попадает в ответ.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Status HTTP-код для вида ошибки.
func (k Kind) Status() int {
	switch k {
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindBadRequest:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindUpstream:
		return http.StatusBadGateway
	case KindPersistence:
		return http.StatusFailedDependency
	case KindExpired:
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

// New создаёт ошибку без причины.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap создаёт ошибку с исходной причиной.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func BadRequest(msg string) *Error   { return New(KindBadRequest, msg) }
func NotFound(msg string) *Error     { return New(KindNotFound, msg) }
func Conflict(msg string) *Error     { return New(KindConflict, msg) }
func Unauthorized(msg string) *Error { return New(KindUnauthorized, msg) }
func Forbidden(msg string) *Error    { return New(KindForbidden, msg) }
func Expired(msg string) *Error      { return New(KindExpired, msg) }

// Internal скрывает причину от клиента за общим сообщением.
func Internal(err error) *Error {
	return Wrap(KindInternal, "Internal server error", err)
}

// Persistence ошибка записи в хранилище.
func Persistence(msg string, err error) *Error {
	return Wrap(KindPersistence, msg, err)
}

// Upstream ошибка внешнего сервиса.
func Upstream(msg string, err error) *Error {
	return Wrap(KindUpstream, msg, err)
}

// As достаёт *Error из цепочки. Ошибки другого типа считаются внутренними.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}

// IsKind проверяет вид ошибки в цепочке.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
