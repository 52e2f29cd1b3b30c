package electrum

import (
	"bufio"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"strconv"
	"testing"
	"time"
)

// splitTestAddr parses a "host:port" listener address into the (host,
// port) pair ClientOptions/ConnectionOptions expect.
func splitTestAddr(t *testing.T, addr string) (string, uint16) {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}
	return host, uint16(port)
}

// fakePeer is a minimal, scriptable stand-in for an Electrum server: a
// single TLS listener that accepts exactly one connection and exposes it
// as a buffered line reader/writer, so tests can assert on outbound frames
// and script inbound ones without any real network dependency.
type fakePeer struct {
	t        *testing.T
	listener net.Listener
	certPool *x509.CertPool

	conn   net.Conn
	reader *bufio.Reader
}

func newFakePeer(t *testing.T) *fakePeer {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "127.0.0.1"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse certificate: %v", err)
	}

	tlsCert := tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  key,
	}

	listener, err := tls.Listen("tcp", "127.0.0.1:0", &tls.Config{
		Certificates: []tls.Certificate{tlsCert},
	})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	pool := x509.NewCertPool()
	pool.AddCert(cert)

	peer := &fakePeer{t: t, listener: listener, certPool: pool}
	t.Cleanup(func() {
		_ = listener.Close()
		if peer.conn != nil {
			_ = peer.conn.Close()
		}
	})
	return peer
}

func (p *fakePeer) addr() string {
	return p.listener.Addr().String()
}

func (p *fakePeer) tlsConfig() *tls.Config {
	return &tls.Config{RootCAs: p.certPool}
}

// accept blocks until the client dials in. Call it from a goroutine
// started before Client.Connect.
func (p *fakePeer) accept() {
	p.t.Helper()
	conn, err := p.listener.Accept()
	if err != nil {
		p.t.Errorf("accept: %v", err)
		return
	}
	p.conn = conn
	p.reader = bufio.NewReader(conn)
}

// readLine blocks for the next newline-delimited frame from the client.
func (p *fakePeer) readLine() string {
	p.t.Helper()
	line, err := p.reader.ReadString('\n')
	if err != nil {
		p.t.Fatalf("read line: %v", err)
	}
	return line[:len(line)-1]
}

// send writes frame plus the statement delimiter.
func (p *fakePeer) send(frame string) {
	p.t.Helper()
	if _, err := p.conn.Write([]byte(frame + StatementDelimiter)); err != nil {
		p.t.Fatalf("write: %v", err)
	}
}
