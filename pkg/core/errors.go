package core

import (
	"context"
	"errors"
	"net"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
)

// ErrorCategory describes the class of an error seen while talking to the
// cluster API or the service store.
type ErrorCategory string

const (
	// ErrorCategoryNone indicates no error.
	ErrorCategoryNone ErrorCategory = ""
	// ErrorCategoryRBAC indicates insufficient permissions to list or read workloads.
	ErrorCategoryRBAC ErrorCategory = "rbac"
	// ErrorCategoryNotFound indicates the requested object does not exist.
	ErrorCategoryNotFound ErrorCategory = "not_found"
	// ErrorCategoryTransient indicates a failure the next poll is likely to recover from.
	ErrorCategoryTransient ErrorCategory = "transient"
	// ErrorCategoryPermanent indicates anything else.
	ErrorCategoryPermanent ErrorCategory = "permanent"
)

// ClassifyError walks the error chain and returns the first matching category.
func ClassifyError(err error) ErrorCategory {
	if err == nil {
		return ErrorCategoryNone
	}
	for current := err; current != nil; current = errors.Unwrap(current) {
		switch {
		case apierrors.IsForbidden(current) || apierrors.IsUnauthorized(current):
			return ErrorCategoryRBAC
		case apierrors.IsNotFound(current):
			return ErrorCategoryNotFound
		case apierrors.IsTooManyRequests(current), apierrors.IsTimeout(current), apierrors.IsServerTimeout(current):
			return ErrorCategoryTransient
		}
		if errors.Is(current, context.DeadlineExceeded) || errors.Is(current, context.Canceled) {
			return ErrorCategoryTransient
		}
		var netErr net.Error
		if errors.As(current, &netErr) && netErr.Timeout() {
			return ErrorCategoryTransient
		}
		var opErr *net.OpError
		if errors.As(current, &opErr) {
			return ErrorCategoryTransient
		}
	}
	return ErrorCategoryPermanent
}

// IsRetryable reports whether a later attempt may succeed. It is the retry
// predicate for bootstrapping remote collaborators.
func IsRetryable(err error) bool {
	return ClassifyError(err) == ErrorCategoryTransient
}
