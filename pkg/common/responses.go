package common

import "net/http"

// GenericFailure replaces the message of every 5xx reply. The cause is
// logged server side, never sent to the caller.
const GenericFailure = "Something went wrong, please try again"

// Response is the body of every match market reply. Status mirrors the HTTP
// status so a client reading only the body sees the same outcome.
type Response struct {
	Status  int         `json:"status"`
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Reply wraps data for a successful reply with the given status. An empty
// message reads "success".
func Reply(status int, data interface{}, message string) Response {
	if message == "" {
		message = "success"
	}
	return Response{
		Status:  status,
		Success: true,
		Message: message,
		Data:    data,
	}
}

func OK(data interface{}, message string) Response {
	return Reply(http.StatusOK, data, message)
}

// Created wraps the row a request just created, such as a waitlist entry or
// a settlement payment.
func Created(data interface{}, message string) Response {
	return Reply(http.StatusCreated, data, message)
}

// Fail builds the body of a rejected request.
func Fail(status int, message string) Response {
	if status >= http.StatusInternalServerError {
		message = GenericFailure
	}
	return Response{
		Status:  status,
		Success: false,
		Message: message,
	}
}
