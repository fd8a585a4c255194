package transporter

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-distributed/kvpaxos"
	"github.com/go-distributed/kvpaxos/message"
	"github.com/golang/glog"
)

const (
	prefix         = "/kvpaxos"
	contentType    = "application/protobuf"
	identityHeader = "X-Kvpaxos-Identity"
	maxBodySize    = 64 << 20
)

var resources = []string{kvpaxos.ResourcePaxos, kvpaxos.ResourceGet}

func resourcePath(resource string) string {
	return path.Join(prefix, resource)
}

// HTTPTransporter calls the nodes of a cluster over HTTP on behalf of one
// client identity.
type HTTPTransporter struct {
	config   *kvpaxos.Config
	identity string
	client   *http.Client
}

// Create a new http transporter. A nil client means http.DefaultClient.
func NewHTTPTransporter(config *kvpaxos.Config, identity string, client *http.Client) *HTTPTransporter {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTransporter{
		config:   config,
		identity: identity,
		client:   client,
	}
}

func (t *HTTPTransporter) Size() int {
	return t.config.Size()
}

func (t *HTTPTransporter) url(to int, resource string) string {
	addr := t.config.Node(to)
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	return strings.TrimSuffix(addr, "/") + resourcePath(resource)
}

// Call posts req to node `to` and blocks until the reply or ctx is done.
func (t *HTTPTransporter) Call(ctx context.Context, to int, resource string, req []byte) ([]byte, error) {
	if to < 0 || to >= t.config.Size() {
		return nil, fmt.Errorf("http transporter: no node %d", to)
	}

	hr, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url(to, resource), bytes.NewReader(req))
	if err != nil {
		return nil, err
	}
	hr.Header.Set("Content-Type", contentType)
	hr.Header.Set(identityHeader, t.identity)

	resp, err := t.client.Do(hr)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusOK {
		return body, nil
	}
	if resp.Header.Get("Content-Type") == contentType {
		e := new(message.ErrorReply)
		if err := e.UnmarshalProtobuf(body); err == nil {
			return nil, e.Err()
		}
	}
	return nil, fmt.Errorf("http transporter: %s from node %d", resp.Status, to)
}

// HTTPServer exposes a kvpaxos.Handler over HTTP.
//
// The caller's namespace is the common name of its verified client
// certificate when the server runs TLS with client authentication. Otherwise
// it is the X-Kvpaxos-Identity header, which is trusted as sent, so a plain
// HTTP server must only be reachable by trusted clients.
type HTTPServer struct {
	addr    string
	handler kvpaxos.Handler
	srv     *http.Server
	ln      net.Listener
}

func NewHTTPServer(addr string, handler kvpaxos.Handler) *HTTPServer {
	return NewHTTPSServer(addr, handler, nil)
}

// NewHTTPSServer serves over TLS with config. Set config.ClientAuth to
// tls.RequireAndVerifyClientCert to take identities from client certificates.
// A nil config serves plain HTTP.
func NewHTTPSServer(addr string, handler kvpaxos.Handler, config *tls.Config) *HTTPServer {
	s := &HTTPServer{
		addr:    addr,
		handler: handler,
	}
	s.srv = &http.Server{
		Handler:     s.installHandlers(),
		ReadTimeout: 10 * time.Second,
		TLSConfig:   config,
	}
	return s
}

func (s *HTTPServer) installHandlers() http.Handler {
	mux := http.NewServeMux()
	for _, resource := range resources {
		resource := resource
		mux.HandleFunc(resourcePath(resource), func(w http.ResponseWriter, r *http.Request) {
			s.handle(resource, w, r)
		})
	}
	return mux
}

// Handler returns the server's routes, for embedding in another server.
func (s *HTTPServer) Handler() http.Handler {
	return s.srv.Handler
}

// Start listening. It returns once the listener is bound.
func (s *HTTPServer) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	if s.srv.TLSConfig != nil {
		ln = tls.NewListener(ln, s.srv.TLSConfig)
	}
	s.ln = ln
	glog.Infof("HTTPServer: listening on %s (tls: %v)", ln.Addr(), s.srv.TLSConfig != nil)
	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			glog.Warning("HTTPServer: serve error: ", err)
		}
	}()
	return nil
}

// Addr returns the bound address once started.
func (s *HTTPServer) Addr() string {
	if s.ln == nil {
		return s.addr
	}
	return s.ln.Addr().String()
}

func (s *HTTPServer) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// identityOf prefers the verified client certificate over the header.
func identityOf(r *http.Request) string {
	if r.TLS != nil && len(r.TLS.PeerCertificates) > 0 {
		return r.TLS.PeerCertificates[0].Subject.CommonName
	}
	return r.Header.Get(identityHeader)
}

func (s *HTTPServer) handle(resource string, w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		glog.Warning("HTTPServer: Read HTTP body error for: ", resource, err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	reply, err := s.handler.Serve(identityOf(r), resource, data)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write(reply)
}

func (s *HTTPServer) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, kvpaxos.ErrStaleProposalSeq), errors.Is(err, kvpaxos.ErrClocksOutOfSync):
		status = http.StatusConflict
	case errors.Is(err, kvpaxos.ErrUnknownResource), errors.Is(err, kvpaxos.ErrNotFound):
		status = http.StatusNotFound
	default:
		glog.Warning("HTTPServer: handler error: ", err)
	}

	data, merr := message.NewErrorReply(err).MarshalProtobuf()
	if merr != nil {
		http.Error(w, err.Error(), status)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	w.Write(data)
}
