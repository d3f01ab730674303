package ledger

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrAccountNotFound is returned when the ledger has no account at an address.
var ErrAccountNotFound = errors.New("account not found")

// ErrorClass groups failures by how they should be retried.
type ErrorClass string

const (
	ErrorClassClient    ErrorClass = "client"
	ErrorClassServer    ErrorClass = "server"
	ErrorClassRateLimit ErrorClass = "rate_limit"
	ErrorClassNetwork   ErrorClass = "network"
	ErrorClassRPC       ErrorClass = "rpc"
	ErrorClassCanceled  ErrorClass = "canceled"
)

// rpcCodeNodeUnhealthy is returned by nodes that are behind the cluster.
const rpcCodeNodeUnhealthy = -32005

// HTTPError is a non-200 response from the RPC endpoint.
type HTTPError struct {
	Method     string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: rpc endpoint returned %d %s", e.Method, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("%s: rpc endpoint returned %d %s: %s", e.Method, e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

// RPCError is a JSON-RPC error object carried in a 200 response.
type RPCError struct {
	Method  string
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("%s: rpc error %d: %s", e.Method, e.Code, e.Message)
}

func classify(err error) ErrorClass {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorClassCanceled
	}
	var he *HTTPError
	if errors.As(err, &he) {
		switch {
		case he.StatusCode == http.StatusTooManyRequests:
			return ErrorClassRateLimit
		case he.StatusCode >= 500:
			return ErrorClassServer
		default:
			return ErrorClassClient
		}
	}
	var re *RPCError
	if errors.As(err, &re) {
		if re.Code == rpcCodeNodeUnhealthy {
			return ErrorClassServer
		}
		return ErrorClassRPC
	}
	if errors.Is(err, ErrAccountNotFound) {
		return ErrorClassClient
	}
	return ErrorClassNetwork
}

func shouldRetry(class ErrorClass) bool {
	switch class {
	case ErrorClassServer, ErrorClassRateLimit, ErrorClassNetwork:
		return true
	default:
		return false
	}
}
