package activitystore

// ResultCode separates the outcomes of an operation; the message alone is for humans.
type ResultCode string

const (
	CodeOK           ResultCode = "ok"
	CodeFallback     ResultCode = "fallback"
	CodeNotFound     ResultCode = "not_found"
	CodeInvalidInput ResultCode = "invalid_input"
	CodeBackendError ResultCode = "backend_error"
)

// Result is the uniform envelope returned by every service operation.
type Result[T any] struct {
	IsSuccess bool       `json:"isSuccess"`
	Message   string     `json:"message"`
	Data      *T         `json:"data,omitempty"`
	Code      ResultCode `json:"code"`
}

// Success wraps data in a successful envelope.
func Success[T any](message string, data T) Result[T] {
	return Result[T]{IsSuccess: true, Message: message, Data: &data, Code: CodeOK}
}

// FallbackSuccess wraps degraded data in a successful envelope marked as fallback.
func FallbackSuccess[T any](message string, data T) Result[T] {
	return Result[T]{IsSuccess: true, Message: message, Data: &data, Code: CodeFallback}
}

// Failure builds a failed envelope without data.
func Failure[T any](code ResultCode, message string) Result[T] {
	return Result[T]{IsSuccess: false, Message: message, Code: code}
}

// Value returns the data or the zero value when absent.
func (r Result[T]) Value() T {
	if r.Data == nil {
		var zero T
		return zero
	}

	return *r.Data
}

// IsFallback reports whether the data came from the fallback table.
func (r Result[T]) IsFallback() bool {
	return r.Code == CodeFallback
}
