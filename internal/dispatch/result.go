package dispatch

import "net/http"

// Result is the uniform outcome envelope every engine operation returns:
// an HTTP-aligned status code, a human-readable message and the payload.
// Validation and state-conflict outcomes are results, not errors; only the
// transport decides how to encode them.
type Result[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data,omitempty"`
}

// Success reports whether the result carries a payload rather than a failure.
func (r Result[T]) Success() bool {
	return r.Code >= 200 && r.Code < 300
}

func ok[T any](data T, message string) Result[T] {
	return Result[T]{Code: http.StatusOK, Message: message, Data: data}
}

func badRequest[T any](message string) Result[T] {
	return Result[T]{Code: http.StatusBadRequest, Message: message}
}

func notFound[T any](message string) Result[T] {
	return Result[T]{Code: http.StatusNotFound, Message: message}
}

func conflict[T any](message string) Result[T] {
	return Result[T]{Code: http.StatusConflict, Message: message}
}

func internal[T any](message string) Result[T] {
	return Result[T]{Code: http.StatusInternalServerError, Message: message}
}
