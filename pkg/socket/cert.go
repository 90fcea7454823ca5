package socket

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"

	"golang.org/x/crypto/pkcs12"

	"github.com/corewire/httpcore/pkg/errors"
)

// PrivateCert is the opaque server identity handle: certificate, private
// key, and an optional intermediate chain (spec section 6, GLOSSARY
// "PrivateCert"). Certificates load from PKCS#12 (password-protected) or a
// PEM certificate+key pair. The chain, when present, is appended to the
// certificate presented during the handshake; it is never used to
// authenticate the peer, since client-certificate verification (mTLS) is
// out of scope.
type PrivateCert struct {
	cert tls.Certificate
}

// LoadPEM loads a certificate+key pair (PEM-encoded, in-memory) and an
// optional PEM-encoded intermediate chain.
func LoadPEM(certPEM, keyPEM, caChainPEM []byte) (*PrivateCert, error) {
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, errors.NewValidationError("parsing PEM certificate/key: " + err.Error())
	}

	if len(caChainPEM) > 0 {
		chain, err := certsFromPEM(caChainPEM)
		if err != nil {
			return nil, err
		}
		cert.Certificate = append(cert.Certificate, certRawList(chain)...)
	}
	return &PrivateCert{cert: cert}, nil
}

func certsFromPEM(data []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, errors.NewValidationError("parsing PEM CA chain: " + err.Error())
		}
		certs = append(certs, cert)
	}
	if len(certs) == 0 {
		return nil, errors.NewValidationError("PEM CA chain contained no certificates")
	}
	return certs, nil
}

// LoadPKCS12 loads a password-protected PKCS#12 bundle (spec section 6
// "certificates loaded from PKCS#12"). golang.org/x/crypto/pkcs12 is the
// direct Go equivalent of the reference implementation's PKCS#12 loader;
// nothing in the retrieval pack offers this, so it is an out-of-pack
// dependency (see DESIGN.md).
func LoadPKCS12(data []byte, password string) (*PrivateCert, error) {
	key, leaf, chain, err := pkcs12.DecodeChain(data, password)
	if err != nil {
		return nil, errors.NewValidationError("parsing PKCS#12 bundle: " + err.Error())
	}

	cert := tls.Certificate{
		Certificate: [][]byte{leaf.Raw},
		PrivateKey:  key,
		Leaf:        leaf,
	}
	if len(chain) > 0 {
		cert.Certificate = append(cert.Certificate, certRawList(chain)...)
	}
	return &PrivateCert{cert: cert}, nil
}

func certRawList(certs []*x509.Certificate) [][]byte {
	out := make([][]byte, len(certs))
	for i, c := range certs {
		out[i] = c.Raw
	}
	return out
}
