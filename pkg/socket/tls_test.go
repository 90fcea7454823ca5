package socket

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	stderrors "errors"
	"math/big"
	"net"
	"strconv"
	"testing"
	"time"
)

var errNotHello = stderrors.New("unexpected payload")

func generateSelfSignedCert(t *testing.T) *PrivateCert {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "127.0.0.1"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("creating certificate: %v", err)
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("marshaling key: %v", err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})

	cert, err := LoadPEM(certPEM, keyPEM, nil)
	if err != nil {
		t.Fatalf("LoadPEM: %v", err)
	}
	return cert
}

func TestTLSHandshakeRoundTrip(t *testing.T) {
	cert := generateSelfSignedCert(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	_, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)

	serverDone := make(chan error, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			serverDone <- err
			return
		}
		tcpSock := WrapTCP(conn)
		tlsSock, err := AcceptTLS(tcpSock, cert)
		if err != nil {
			serverDone <- err
			return
		}
		defer tlsSock.Close()
		buf := make([]byte, 5)
		if _, err := tlsSock.Recv(buf); err != nil {
			serverDone <- err
			return
		}
		if string(buf) != "hello" {
			serverDone <- errNotHello
			return
		}
		if _, err := tlsSock.SendAll([]byte("world")); err != nil {
			serverDone <- err
			return
		}
		serverDone <- nil
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	client, err := DialTLS(ctx, "127.0.0.1", uint16(port), time.Second, true)
	if err != nil {
		t.Fatalf("DialTLS: %v", err)
	}
	defer client.Close()

	if _, err := client.SendAll([]byte("hello")); err != nil {
		t.Fatalf("SendAll: %v", err)
	}
	buf := make([]byte, 5)
	if _, err := client.Recv(buf); err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if string(buf) != "world" {
		t.Fatalf("Recv = %q, want %q", buf, "world")
	}

	if err := <-serverDone; err != nil {
		t.Fatalf("server side: %v", err)
	}
}

func TestDialTLSRejectsUntrustedCertWithoutInsecure(t *testing.T) {
	cert := generateSelfSignedCert(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	_, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		tcpSock := WrapTCP(conn)
		AcceptTLS(tcpSock, cert)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, err = DialTLS(ctx, "127.0.0.1", uint16(port), time.Second, false)
	if err == nil {
		t.Fatalf("expected an untrusted self-signed certificate to be rejected")
	}
}
