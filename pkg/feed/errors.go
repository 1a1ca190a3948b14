package feed

import "fmt"

// InvalidFilterError reports a malformed request parameter (sort mode, metric
// name, weight set). Raised before any store access, rendered as a client error.
type InvalidFilterError struct {
	Reason string
}

func (e *InvalidFilterError) Error() string {
	return "invalid filter: " + e.Reason
}

func invalidFilterf(format string, args ...interface{}) *InvalidFilterError {
	return &InvalidFilterError{Reason: fmt.Sprintf(format, args...)}
}
