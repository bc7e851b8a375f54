package a2a

import "fmt"

// ErrorKind classifies transport failures against a downstream agent.
type ErrorKind string

const (
	ErrConnectFailed     ErrorKind = "CONNECT_FAILED"
	ErrHTTPError         ErrorKind = "HTTP_ERROR"
	ErrJSONRPCError      ErrorKind = "JSON_RPC_ERROR"
	ErrMalformedResponse ErrorKind = "MALFORMED_RESPONSE"
	ErrTimeout           ErrorKind = "TIMEOUT"
)

// TransportError is any failure talking to an agent endpoint. It carries the
// endpoint and a short diagnostic; there is no retry at this layer.
type TransportError struct {
	Kind     ErrorKind
	Endpoint string
	Status   int       // HTTP status, for ErrHTTPError
	State    TaskState // last observed task state, for ErrTimeout
	Detail   string
	Err      error
}

func (e *TransportError) Error() string {
	switch e.Kind {
	case ErrHTTPError:
		return fmt.Sprintf("%s: agent at %s returned HTTP %d: %s", e.Kind, e.Endpoint, e.Status, e.Detail)
	case ErrTimeout:
		return fmt.Sprintf("%s: task at %s did not complete (last state %q): %s", e.Kind, e.Endpoint, e.State, e.Detail)
	default:
		return fmt.Sprintf("%s: agent at %s: %s", e.Kind, e.Endpoint, e.Detail)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// FetchError is a failed agent card fetch: connection error, non-2xx status,
// timeout, or malformed descriptor.
type FetchError struct {
	Endpoint string
	Detail   string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("FETCH_FAILED: agent card from %s: %s", e.Endpoint, e.Detail)
}

func (e *FetchError) Unwrap() error { return e.Err }
