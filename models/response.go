package models

// Response is the envelope every AJAX action returns: either a success
// payload or a structured error, never both.
type Response struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// ErrorData is the payload of a failed Response.
type ErrorData struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// OK wraps a success payload.
func OK(data any) Response {
	return Response{Success: true, Data: data}
}

// Fail wraps a structured error.
func Fail(code, message string) Response {
	return Response{Success: false, Data: ErrorData{Code: code, Message: message}}
}
