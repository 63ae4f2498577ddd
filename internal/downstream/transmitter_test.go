package downstream_test

import (
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/go-signer/internal/config"
	"github/chapool/go-signer/internal/downstream"
)

type recordingObserver struct {
	mu     sync.Mutex
	labels []string
}

func (o *recordingObserver) ObserveDownstream(outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.labels = append(o.labels, outcome)
}

func newTransmitter(t *testing.T, url string, timeout time.Duration, observer downstream.Observer) *downstream.Transmitter {
	t.Helper()

	tr, err := downstream.NewTransmitter(config.Downstream{
		URL:          url,
		PathPrefix:   "/gateway",
		Timeout:      timeout,
		MaxIdleConns: 4,
	}, observer, nil)
	require.NoError(t, err)
	t.Cleanup(tr.Close)

	return tr
}

func TestTransmitterSendSuccess(t *testing.T) {
	var (
		gotPath   string
		gotBody   []byte
		gotHeader http.Header
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotHeader = r.Header.Clone()
		gotBody, _ = io.ReadAll(r.Body)

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Node", "test")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":7,"result":"0x1"}`))
	}))
	defer srv.Close()

	observer := &recordingObserver{}
	tr := newTransmitter(t, srv.URL+"/node", time.Second, observer)

	header := http.Header{}
	header.Set("Authorization", "Bearer abc")
	header.Set("Connection", "close")

	body := []byte(`{"jsonrpc":"2.0","method":"eth_chainId","params":[],"id":7}`)
	out := tr.Send(t.Context(), downstream.ForwardedRequest{Path: "/gateway/v1", Header: header, Body: body})

	success, ok := out.(*downstream.Success)
	require.True(t, ok, "%T", out)
	assert.Equal(t, http.StatusOK, success.StatusCode)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":7,"result":"0x1"}`, string(success.Body))
	assert.Equal(t, "test", success.Header.Get("X-Node"))

	assert.Equal(t, "/node/v1", gotPath)
	assert.Equal(t, body, gotBody)
	assert.Equal(t, "Bearer abc", gotHeader.Get("Authorization"))
	assert.Equal(t, "application/json", gotHeader.Get("Content-Type"))

	assert.Equal(t, []string{"success"}, observer.labels)
}

func TestTransmitterSendKeepsDownstreamQuery(t *testing.T) {
	var (
		gotPath  string
		gotQuery string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":"0x1"}`))
	}))
	defer srv.Close()

	tr := newTransmitter(t, srv.URL+"/v2?apikey=secret", time.Second, nil)

	out := tr.Send(t.Context(), downstream.ForwardedRequest{
		Path: "/gateway/rpc",
		Body: []byte(`{"jsonrpc":"2.0","method":"eth_chainId","params":[],"id":1}`),
	})

	_, ok := out.(*downstream.Success)
	require.True(t, ok, "%T", out)
	assert.Equal(t, "/v2/rpc", gotPath)
	assert.Equal(t, "apikey=secret", gotQuery)
}

func TestTransmitterSendTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	tr := newTransmitter(t, srv.URL, 50*time.Millisecond, nil)

	out := tr.Send(t.Context(), downstream.ForwardedRequest{Path: "/", Body: []byte(`{}`)})

	failure, ok := out.(*downstream.TransportFailure)
	require.True(t, ok, "%T", out)
	assert.Equal(t, downstream.FailureTimeout, failure.Kind)
	assert.Equal(t, http.StatusGatewayTimeout, failure.HTTPStatus())
}

func TestTransmitterSendConnectionRefused(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	tr := newTransmitter(t, "http://"+addr, time.Second, nil)

	out := tr.Send(t.Context(), downstream.ForwardedRequest{Path: "/", Body: []byte(`{}`)})

	failure, ok := out.(*downstream.TransportFailure)
	require.True(t, ok, "%T", out)
	assert.Equal(t, http.StatusGatewayTimeout, failure.HTTPStatus())
}

func TestTransmitterSendUntrustedCertificate(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tr := newTransmitter(t, srv.URL, time.Second, nil)

	out := tr.Send(t.Context(), downstream.ForwardedRequest{Path: "/", Body: []byte(`{}`)})

	failure, ok := out.(*downstream.TransportFailure)
	require.True(t, ok, "%T", out)
	assert.Equal(t, downstream.FailureTLS, failure.Kind)
	assert.Equal(t, http.StatusBadGateway, failure.HTTPStatus())
}

func TestTransmitterInsecureSkipVerify(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":true}`))
	}))
	defer srv.Close()

	tr, err := downstream.NewTransmitter(config.Downstream{
		URL:                srv.URL,
		Timeout:            time.Second,
		InsecureSkipVerify: true,
	}, nil, nil)
	require.NoError(t, err)
	defer tr.Close()

	out := tr.Send(t.Context(), downstream.ForwardedRequest{Path: "/", Body: []byte(`{}`)})
	_, ok := out.(*downstream.Success)
	assert.True(t, ok, "%T", out)
}
