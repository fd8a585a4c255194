package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-distributed/kvpaxos/acceptor"
	"github.com/go-distributed/kvpaxos/persistent"
	"github.com/go-distributed/kvpaxos/replica"
	"github.com/go-distributed/kvpaxos/transporter"
	"github.com/golang/glog"
)

var (
	addr    = flag.String("addr", ":9000", "listen address")
	dataDir = flag.String("data", "data", "root directory of the namespace stores")
	engine  = flag.String("engine", persistent.EngineBolt, "storage engine: bolt or leveldb")
	skew    = flag.Duration("max-clock-skew", acceptor.DefaultMaxClockSkew, "largest accepted proposer clock skew")

	certFile = flag.String("tls-cert", "", "server certificate; serves plain HTTP when empty")
	keyFile  = flag.String("tls-key", "", "server private key")
	caFile   = flag.String("tls-client-ca", "", "CA bundle for client certificates, whose common name becomes the identity")
)

var errNoCerts = errors.New("no certificates in client CA bundle")

// tlsConfig returns nil when no certificate is configured.
func tlsConfig() (*tls.Config, error) {
	if *certFile == "" {
		return nil, nil
	}
	cert, err := tls.LoadX509KeyPair(*certFile, *keyFile)
	if err != nil {
		return nil, err
	}
	config := &tls.Config{Certificates: []tls.Certificate{cert}}
	if *caFile != "" {
		pem, err := os.ReadFile(*caFile)
		if err != nil {
			return nil, err
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, errNoCerts
		}
		config.ClientCAs = pool
		config.ClientAuth = tls.RequireAndVerifyClientCert
	}
	return config, nil
}

func main() {
	flag.Parse()
	defer glog.Flush()

	r, err := replica.New(&replica.Param{
		DataDir:      *dataDir,
		Engine:       *engine,
		MaxClockSkew: *skew,
	})
	if err != nil {
		glog.Fatal(err)
	}
	defer r.Close()

	config, err := tlsConfig()
	if err != nil {
		glog.Fatal(err)
	}
	s := transporter.NewHTTPSServer(*addr, r, config)
	if err := s.Start(); err != nil {
		glog.Fatal(err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	glog.Infof("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		glog.Warning("Shutdown error: ", err)
	}
}
