package socket

import (
	"bufio"
	"context"
	"crypto/tls"
	"crypto/x509"
	stderrors "errors"
	"io"
	"net"
	"time"

	"github.com/corewire/httpcore/pkg/errors"
	"github.com/corewire/httpcore/pkg/log"
	"github.com/corewire/httpcore/pkg/tlsconfig"
)

// handshakeProfile is the version/cipher-suite floor applied to both the
// client and server handshake configs (spec section 4.F). TLS 1.2+ matches
// the reference implementation's minimum accepted version.
var handshakeProfile = tlsconfig.ProfileSecure

func newHandshakeConfig() *tls.Config {
	cfg := &tls.Config{}
	tlsconfig.ApplyVersionProfile(cfg, handshakeProfile)
	tlsconfig.ApplyCipherSuites(cfg, handshakeProfile.Min)
	if tlsconfig.IsVersionDeprecated(handshakeProfile.Min) {
		log.Warnf("tls: configured minimum version %s is deprecated", tlsconfig.GetVersionName(handshakeProfile.Min))
	}
	return cfg
}

func logNegotiatedParams(peer string, state tls.ConnectionState) {
	log.Debugf("tls handshake with %s: version=%s cipher=%s", peer,
		tlsconfig.GetVersionName(state.Version), tlsconfig.GetCipherSuiteName(state.CipherSuite))
}

// TLSSocket layers TLS over a TCPSocket, running either the client or
// server side of the handshake depending on Role (spec section 4.F). Go's
// crypto/tls performs its own record-layer buffering and handshake state
// machine internally, which is what the reference implementation's
// inbound/outbound BIO plumbing exists to hand-roll for OpenSSL/Schannel —
// so this type is a thin role-aware wrapper rather than a reimplementation
// of that buffering.
type TLSSocket struct {
	id   uint64
	role Role
	tcp  net.Conn
	conn *tls.Conn
	br   *bufio.Reader
	peer string
}

// DialTLS connects over TCP then performs the client handshake, verifying
// the peer certificate against the system trust store unless insecure is
// true (spec section 4.F "Client handshake").
func DialTLS(ctx context.Context, host string, port uint16, timeout time.Duration, insecure bool) (*TLSSocket, error) {
	tcpSock, err := DialTCP(ctx, host, port, timeout)
	if err != nil {
		return nil, err
	}
	return UpgradeClientTLS(ctx, tcpSock, host, port, timeout, insecure)
}

// UpgradeClientTLS runs the client side of the handshake over an
// already-connected TCPSocket, e.g. one returned by a proxy tunnel
// (socket.ProxyDialer) rather than DialTCP.
func UpgradeClientTLS(ctx context.Context, tcpSock *TCPSocket, host string, port uint16, timeout time.Duration, insecure bool) (*TLSSocket, error) {
	cfg := newHandshakeConfig()
	cfg.ServerName = host
	cfg.InsecureSkipVerify = insecure

	handshakeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tlsConn := tls.Client(tcpSock.conn, cfg)
	if err := tlsConn.HandshakeContext(handshakeCtx); err != nil {
		tcpSock.Close()
		if isCertVerificationError(err) {
			return nil, errors.NewCertificateVerificationError(host, int(port), err)
		}
		return nil, errors.NewTLSError(host, int(port), err)
	}
	logNegotiatedParams(tcpSock.peer, tlsConn.ConnectionState())

	return &TLSSocket{
		id:   allocID(),
		role: RoleClient,
		tcp:  tcpSock.conn,
		conn: tlsConn,
		br:   bufio.NewReader(tlsConn),
		peer: tcpSock.peer,
	}, nil
}

func isCertVerificationError(err error) bool {
	var verifyErr *tls.CertificateVerificationError
	if stderrors.As(err, &verifyErr) {
		return true
	}
	var unknownAuth x509.UnknownAuthorityError
	var invalidCert x509.CertificateInvalidError
	var hostErr x509.HostnameError
	return stderrors.As(err, &unknownAuth) || stderrors.As(err, &invalidCert) || stderrors.As(err, &hostErr)
}

// AcceptTLS takes ownership of an already-accepted TCPSocket and runs the
// server side of the handshake using cert (spec section 4.F "Server
// handshake").
func AcceptTLS(tcpSock *TCPSocket, cert *PrivateCert) (*TLSSocket, error) {
	cfg := newHandshakeConfig()
	cfg.Certificates = []tls.Certificate{cert.cert}

	tlsConn := tls.Server(tcpSock.conn, cfg)
	if err := tlsConn.Handshake(); err != nil {
		tcpSock.Close()
		return nil, errors.NewTLSError("", 0, err)
	}
	logNegotiatedParams(tcpSock.peer, tlsConn.ConnectionState())

	return &TLSSocket{
		id:   allocID(),
		role: RoleServer,
		tcp:  tcpSock.conn,
		conn: tlsConn,
		br:   bufio.NewReader(tlsConn),
		peer: tcpSock.peer,
	}, nil
}

func (s *TLSSocket) ID() uint64          { return s.id }
func (s *TLSSocket) PeerAddress() string { return s.peer }
func (s *TLSSocket) Role() Role          { return s.role }

// RecvPending reports whether decrypted application data is already
// buffered locally — always consulting the bufio.Reader's internal buffer,
// since crypto/tls itself does the encrypted-record bookkeeping the spec's
// BIO design describes.
func (s *TLSSocket) RecvPending() bool { return s.br.Buffered() > 0 }

func (s *TLSSocket) Recv(buf []byte) (int, error) {
	n, err := s.br.Read(buf)
	if err == io.EOF {
		// A clean remote close is reported as (0, nil).
		return n, nil
	}
	if err != nil {
		return n, errors.NewIOError("reading from TLS socket", err)
	}
	return n, nil
}

func (s *TLSSocket) Send(buf []byte) (int, error) {
	n, err := s.conn.Write(buf)
	if err != nil {
		return n, errors.NewIOError("writing to TLS socket", err)
	}
	if n == 0 && len(buf) > 0 {
		return 0, errors.NewIOError("writing to TLS socket", io.ErrShortWrite)
	}
	return n, nil
}

func (s *TLSSocket) SendAll(buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := s.Send(buf[total:])
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func (s *TLSSocket) CheckRecvDisconnect() (bool, error) {
	if err := s.tcp.SetReadDeadline(time.Now()); err != nil {
		return false, errors.NewIOError("setting read deadline", err)
	}
	defer s.tcp.SetReadDeadline(time.Time{})

	_, err := s.br.Peek(1)
	switch {
	case err == nil:
		return false, errors.NewProtocolError("unexpected data while checking for peer disconnect", nil)
	case err == io.EOF:
		return true, nil
	default:
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return false, nil
		}
		return false, errors.NewIOError("checking for peer disconnect", err)
	}
}

// Disconnect sends the TLS close-notify record via conn.Close, then
// releases the underlying TCP socket (spec section 4.F "disconnect").
func (s *TLSSocket) Disconnect() error {
	closeErr := s.conn.Close()
	if tcpConn, ok := s.tcp.(*net.TCPConn); ok {
		tcpConn.SetLinger(0)
	}
	if closeErr != nil {
		return errors.NewIOError("closing TLS connection", closeErr)
	}
	return nil
}

func (s *TLSSocket) Close() error {
	return s.conn.Close()
}
