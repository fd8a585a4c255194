package transporter

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-distributed/kvpaxos"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	mu         sync.Mutex
	identities []string
	err        error
}

func (h *recordingHandler) Serve(identity string, resource string, req []byte) ([]byte, error) {
	h.mu.Lock()
	h.identities = append(h.identities, identity)
	err := h.err
	h.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return append([]byte(resource+":"), req...), nil
}

func (h *recordingHandler) seen() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.identities...)
}

func (h *recordingHandler) fail(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.err = err
}

func startServer(t *testing.T, h kvpaxos.Handler) *HTTPServer {
	s := NewHTTPServer("127.0.0.1:0", h)
	require.NoError(t, s.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.Stop(ctx)
	})
	return s
}

func TestHTTPCall(t *testing.T) {
	h := new(recordingHandler)
	s := startServer(t, h)

	config, err := kvpaxos.NewConfig([]string{s.Addr()})
	require.NoError(t, err)
	tr := NewHTTPTransporter(config, "alice", nil)
	assert.Equal(t, 1, tr.Size())

	reply, err := tr.Call(context.Background(), 0, kvpaxos.ResourceGet, []byte("hello"))
	assert.NoError(t, err)
	assert.Equal(t, []byte("get:hello"), reply)
	assert.Equal(t, []string{"alice"}, h.seen())

	_, err = tr.Call(context.Background(), 1, kvpaxos.ResourceGet, nil)
	assert.Error(t, err)

	_, err = tr.Call(context.Background(), 0, "nope", nil)
	assert.Error(t, err)
}

func TestHTTPCallCarriesErrors(t *testing.T) {
	h := &recordingHandler{err: fmt.Errorf("x:1:5: %w", kvpaxos.ErrStaleProposalSeq)}
	s := startServer(t, h)

	config, err := kvpaxos.NewConfig([]string{"http://" + s.Addr()})
	require.NoError(t, err)
	tr := NewHTTPTransporter(config, "alice", nil)

	_, err = tr.Call(context.Background(), 0, kvpaxos.ResourcePaxos, nil)
	assert.True(t, errors.Is(err, kvpaxos.ErrStaleProposalSeq))
	assert.Contains(t, err.Error(), "x:1:5")

	h.fail(kvpaxos.ErrClocksOutOfSync)
	_, err = tr.Call(context.Background(), 0, kvpaxos.ResourcePaxos, nil)
	assert.True(t, errors.Is(err, kvpaxos.ErrClocksOutOfSync))

	h.fail(errors.New("disk on fire"))
	_, err = tr.Call(context.Background(), 0, kvpaxos.ResourcePaxos, nil)
	var remote *kvpaxos.RemoteError
	assert.True(t, errors.As(err, &remote))
	assert.Equal(t, kvpaxos.CodeInternal, remote.Code)
}

func TestHTTPCallUnreachable(t *testing.T) {
	config, err := kvpaxos.NewConfig([]string{"127.0.0.1:1"})
	require.NoError(t, err)
	tr := NewHTTPTransporter(config, "alice", &http.Client{Timeout: time.Second})

	_, err = tr.Call(context.Background(), 0, kvpaxos.ResourceGet, nil)
	assert.Error(t, err)
}

func TestIdentityFromCertificate(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/kvpaxos/get", nil)
	r.Header.Set(identityHeader, "header")
	assert.Equal(t, "header", identityOf(r))

	r.TLS = &tls.ConnectionState{
		PeerCertificates: []*x509.Certificate{{Subject: pkix.Name{CommonName: "cert"}}},
	}
	assert.Equal(t, "cert", identityOf(r))
}

func TestHTTPServerRejectsGet(t *testing.T) {
	s := NewHTTPServer("127.0.0.1:0", new(recordingHandler))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/kvpaxos/get", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

// selfSigned returns a certificate for 127.0.0.1 with the given common name,
// usable by both ends of a connection, and a pool trusting it.
func selfSigned(t *testing.T, cn string) (tls.Certificate, *x509.CertPool) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: cn},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1")},
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	pool := x509.NewCertPool()
	pool.AddCert(cert)
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key, Leaf: cert}, pool
}

func TestHTTPSIdentityFromCertificate(t *testing.T) {
	cert, pool := selfSigned(t, "alice")

	h := new(recordingHandler)
	s := NewHTTPSServer("127.0.0.1:0", h, &tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientCAs:    pool,
		ClientAuth:   tls.RequireAndVerifyClientCert,
	})
	require.NoError(t, s.Start())
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.Stop(ctx)
	}()

	config, err := kvpaxos.NewConfig([]string{"https://" + s.Addr()})
	require.NoError(t, err)

	// The header claims another identity; the certificate wins.
	tr := NewHTTPTransporter(config, "mallory", &http.Client{
		Timeout: 5 * time.Second,
		Transport: &http.Transport{TLSClientConfig: &tls.Config{
			RootCAs:      pool,
			Certificates: []tls.Certificate{cert},
		}},
	})
	reply, err := tr.Call(context.Background(), 0, kvpaxos.ResourceGet, []byte("hi"))
	require.NoError(t, err)
	assert.Equal(t, []byte("get:hi"), reply)
	assert.Equal(t, []string{"alice"}, h.seen())

	// Without a client certificate the handshake fails.
	anonymous := NewHTTPTransporter(config, "alice", &http.Client{
		Timeout:   5 * time.Second,
		Transport: &http.Transport{TLSClientConfig: &tls.Config{RootCAs: pool}},
	})
	_, err = anonymous.Call(context.Background(), 0, kvpaxos.ResourceGet, nil)
	assert.Error(t, err)
	assert.Equal(t, []string{"alice"}, h.seen())
}
