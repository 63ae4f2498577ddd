package downstream

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"net"
	"net/http"
	"syscall"

	"github.com/pkg/errors"
	"github/chapool/go-signer/internal/jsonrpc"
)

// Outcome is the result of exactly one downstream attempt. It is one of *Success,
// *TransportFailure or *NodeError.
type Outcome interface {
	outcome()
	// Label names the outcome kind for logs and metrics.
	Label() string
}

// Success is a completed round trip with its body fully buffered.
type Success struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// NodeError is a round trip whose JSON-RPC body carried an error object. The buffered
// response is kept so it can be relayed verbatim.
type NodeError struct {
	Code     int
	Message  string
	Response *Success
}

type FailureKind int

const (
	FailureUnknown FailureKind = iota
	FailureTimeout
	FailureTLS
)

func (k FailureKind) String() string {
	switch k {
	case FailureTimeout:
		return "timeout"
	case FailureTLS:
		return "tls"
	default:
		return "unknown"
	}
}

// TransportFailure means no usable response was received from the downstream node.
type TransportFailure struct {
	Kind FailureKind
	Err  error
}

func (*Success) outcome()          {}
func (*NodeError) outcome()        {}
func (*TransportFailure) outcome() {}

func (*Success) Label() string            { return "success" }
func (*NodeError) Label() string          { return "node_error" }
func (f *TransportFailure) Label() string { return "transport_" + f.Kind.String() }

func (e *NodeError) Error() string {
	return e.Message
}

func (f *TransportFailure) Error() string {
	if f.Err == nil {
		return "downstream " + f.Kind.String() + " failure"
	}
	return f.Err.Error()
}

func (f *TransportFailure) Unwrap() error {
	return f.Err
}

// HTTPStatus is the status the caller receives for this failure.
func (f *TransportFailure) HTTPStatus() int {
	switch f.Kind {
	case FailureTimeout:
		return http.StatusGatewayTimeout
	case FailureTLS:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Inspect turns a Success whose body is a single JSON-RPC error response into a
// NodeError. Any other outcome, including batch or non JSON bodies, is returned as is.
func Inspect(o Outcome) Outcome {
	success, ok := o.(*Success)
	if !ok || len(success.Body) == 0 {
		return o
	}

	var body struct {
		Error *jsonrpc.Error `json:"error"`
	}
	if err := json.Unmarshal(success.Body, &body); err != nil || body.Error == nil {
		return o
	}

	return &NodeError{
		Code:     body.Error.Code,
		Message:  body.Error.Message,
		Response: success,
	}
}

// FailureFromError classifies a transport error. Certificate and handshake problems
// are TLS failures; failing to connect or running out of time are timeouts.
func FailureFromError(err error) *TransportFailure {
	return &TransportFailure{Kind: classify(err), Err: err}
}

func classify(err error) FailureKind {
	if isTLSError(err) {
		return FailureTLS
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, syscall.ECONNREFUSED) {
		return FailureTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureTimeout
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return FailureTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return FailureTimeout
	}

	return FailureUnknown
}

func isTLSError(err error) bool {
	var (
		recordErr    tls.RecordHeaderError
		verifyErr    *tls.CertificateVerificationError
		alertErr     tls.AlertError
		authorityErr x509.UnknownAuthorityError
		hostnameErr  x509.HostnameError
		invalidErr   x509.CertificateInvalidError
	)

	return errors.As(err, &recordErr) ||
		errors.As(err, &verifyErr) ||
		errors.As(err, &alertErr) ||
		errors.As(err, &authorityErr) ||
		errors.As(err, &hostnameErr) ||
		errors.As(err, &invalidErr)
}
