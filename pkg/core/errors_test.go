package core

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

type timeoutNetError struct{}

func (timeoutNetError) Error() string   { return "i/o timeout" }
func (timeoutNetError) Timeout() bool   { return true }
func (timeoutNetError) Temporary() bool { return true }

func TestClassifyError(t *testing.T) {
	deployments := schema.GroupResource{Group: "apps", Resource: "deployments"}
	cases := []struct {
		name string
		err  error
		want ErrorCategory
	}{{
		name: "nil",
		err:  nil,
		want: ErrorCategoryNone,
	}, {
		name: "forbidden list",
		err:  apierrors.NewForbidden(deployments, "", errors.New("denied")),
		want: ErrorCategoryRBAC,
	}, {
		name: "unauthorized",
		err:  apierrors.NewUnauthorized("expired token"),
		want: ErrorCategoryRBAC,
	}, {
		name: "node not found",
		err:  apierrors.NewNotFound(schema.GroupResource{Resource: "nodes"}, "node-1"),
		want: ErrorCategoryNotFound,
	}, {
		name: "server timeout",
		err:  apierrors.NewTimeoutError("slow", 1),
		want: ErrorCategoryTransient,
	}, {
		name: "throttled",
		err:  apierrors.NewTooManyRequests("back off", 0),
		want: ErrorCategoryTransient,
	}, {
		name: "deadline",
		err:  context.DeadlineExceeded,
		want: ErrorCategoryTransient,
	}, {
		name: "net timeout",
		err:  timeoutNetError{},
		want: ErrorCategoryTransient,
	}, {
		name: "connection refused",
		err:  fmt.Errorf("dial: %w", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connect: connection refused")}),
		want: ErrorCategoryTransient,
	}, {
		name: "wrapped forbidden",
		err:  fmt.Errorf("list deployments: %w", apierrors.NewForbidden(deployments, "", errors.New("denied"))),
		want: ErrorCategoryRBAC,
	}, {
		name: "store failure",
		err:  errors.New("relation \"services\" does not exist"),
		want: ErrorCategoryPermanent,
	}}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyError(tc.err); got != tc.want {
				t.Fatalf("expected %s got %s", tc.want, got)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(fmt.Errorf("ping: %w", context.DeadlineExceeded)) {
		t.Fatalf("deadline should be retryable")
	}
	if !IsRetryable(&net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}) {
		t.Fatalf("dial failures should be retryable")
	}
	if IsRetryable(errors.New("bad password")) {
		t.Fatalf("permanent errors must not be retried")
	}
}
