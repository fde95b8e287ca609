package graphql

import (
	"context"
	"fmt"

	"github.com/c360/linkstream/errors"
)

var errorMissingLink = errors.WrapFatal(errors.ErrKeyNotFound,
	"Resolver", "Vote.link", "vote references a missing link")

// queryError carries a client-facing message plus machine-readable
// extensions. The engine picks up Extensions() and attaches them to
// the GraphQL error response.
type queryError struct {
	message    string
	extensions map[string]interface{}
}

func (e *queryError) Error() string {
	return e.message
}

func (e *queryError) Extensions() map[string]interface{} {
	return e.extensions
}

// wrapError converts an internal error into its client-facing form,
// classified by error code
func wrapError(err error, operation string) error {
	if err == nil {
		return nil
	}

	// Validation errors already carry their field and code
	if errors.IsValidation(err) {
		return err
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &queryError{
			message: "Query timeout exceeded",
			extensions: map[string]interface{}{
				"code":      "DEADLINE_EXCEEDED",
				"operation": operation,
			},
		}

	case errors.Is(err, context.Canceled):
		return &queryError{
			message: "Query cancelled",
			extensions: map[string]interface{}{
				"code":      "CANCELLED",
				"operation": operation,
			},
		}

	case errors.IsTransient(err):
		return &queryError{
			message: fmt.Sprintf("Temporary error: %s", err.Error()),
			extensions: map[string]interface{}{
				"code":      "TRANSIENT_ERROR",
				"operation": operation,
				"retryable": true,
			},
		}

	case errors.IsInvalid(err):
		return &queryError{
			message: fmt.Sprintf("Invalid input: %s", err.Error()),
			extensions: map[string]interface{}{
				"code":      "INVALID_INPUT",
				"operation": operation,
			},
		}

	case errors.IsFatal(err):
		// Internal detail stays out of the response
		return &queryError{
			message: "Internal server error",
			extensions: map[string]interface{}{
				"code":      "INTERNAL_ERROR",
				"operation": operation,
			},
		}
	}

	return &queryError{
		message: fmt.Sprintf("Query failed: %s", err.Error()),
		extensions: map[string]interface{}{
			"code":      "QUERY_ERROR",
			"operation": operation,
		},
	}
}
