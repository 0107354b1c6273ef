package services

import "net/http"

// PipelineError is the normalized failure vocabulary of the search/import
// pipelines. Every failure path - missing script, sandbox timeout, script
// error, contract violation, persistence failure - is translated into one of
// these before crossing the service boundary; raw storage or validator errors
// never escape to the HTTP layer.
type PipelineError struct {
	StatusCode int
	Message    string
}

func (e *PipelineError) Error() string {
	return e.Message
}

func notFoundError(message string) *PipelineError {
	return &PipelineError{StatusCode: http.StatusNotFound, Message: message}
}

func timeoutError(message string) *PipelineError {
	return &PipelineError{StatusCode: http.StatusGatewayTimeout, Message: message}
}

func internalError(message string) *PipelineError {
	return &PipelineError{StatusCode: http.StatusInternalServerError, Message: message}
}
