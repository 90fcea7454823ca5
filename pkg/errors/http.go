package errors

import "fmt"

// ParserError is raised by pkg/parser when the byte stream violates the
// wire format or a parser limit (spec section 4.B). SuggestedStatus is 0
// when no specific HTTP status mapping applies; callers (typically the
// server) fall back to 400 in that case.
type ParserError struct {
	Message         string
	SuggestedStatus int
}

func (e *ParserError) Error() string {
	if e.SuggestedStatus != 0 {
		return fmt.Sprintf("parser error (suggested %d): %s", e.SuggestedStatus, e.Message)
	}
	return fmt.Sprintf("parser error: %s", e.Message)
}

// NewParserError constructs a ParserError with no specific status
// suggestion.
func NewParserError(message string) *ParserError {
	return &ParserError{Message: message}
}

// NewParserErrorStatus constructs a ParserError carrying a suggested HTTP
// status code (e.g. 413, 414, 431, 501, 505).
func NewParserErrorStatus(message string, status int) *ParserError {
	return &ParserError{Message: message, SuggestedStatus: status}
}

// ErrorResponse is the error kind a user handler raises to make the server
// render a specific HTTP status with a plain-text body (spec section 4.H).
type ErrorResponse struct {
	StatusCode int
	Message    string
}

func (e *ErrorResponse) Error() string {
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
}

// NewErrorResponse builds an ErrorResponse carrying an arbitrary status.
func NewErrorResponse(status int, message string) *ErrorResponse {
	return &ErrorResponse{StatusCode: status, Message: message}
}

// BadRequest is a 400 ErrorResponse.
func BadRequest(message string) *ErrorResponse { return &ErrorResponse{400, message} }

// NotFound is a 404 ErrorResponse, the caller's responsibility to raise
// when the router reports "no match" (spec section 4.I/7.6).
func NotFound(message string) *ErrorResponse { return &ErrorResponse{404, message} }

// MethodNotAllowed is a 405 ErrorResponse, raised by the router itself
// when a path matches but not for the requested method.
func MethodNotAllowed(message string) *ErrorResponse { return &ErrorResponse{405, message} }

// NotAcceptable is a 406 ErrorResponse that additionally carries the list
// of acceptable content types (spec section 6).
type NotAcceptableError struct {
	ErrorResponse
	Acceptable []string
}

func NewNotAcceptable(acceptable []string) *NotAcceptableError {
	return &NotAcceptableError{
		ErrorResponse: ErrorResponse{StatusCode: 406, Message: "not acceptable"},
		Acceptable:    acceptable,
	}
}

// RouteError is raised by Router.Add when a registration is invalid
// (spec section 4.I "add"): mismatched parameter names at a node,
// registering children beneath a prefix node, converting a node with
// children into a prefix node, or a duplicate (method, pattern).
type RouteError struct {
	Pattern string
	Reason  string
}

func (e *RouteError) Error() string {
	return fmt.Sprintf("invalid route %q: %s", e.Pattern, e.Reason)
}

// NewRouteError builds a RouteError (the boundary-visible "InvalidRouteError").
func NewRouteError(pattern, reason string) *RouteError {
	return &RouteError{Pattern: pattern, Reason: reason}
}
