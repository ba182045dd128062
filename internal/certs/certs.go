package certs

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"time"

	"github.com/pkg/errors"
)

// Resolution errors. They are always returned wrapped in a *ConfigError.
var (
	ErrNoPrivateKey  = errors.New("certs: no private keys found in PEM")
	ErrNoCertificate = errors.New("certs: no certificates found in PEM")
	ErrKeyMismatch   = errors.New("certs: private key does not match certificate")
	ErrUnsupported   = errors.New("certs: unsupported private key type")
)

// DefaultHosts are the subject alternative names of a generated certificate.
var DefaultHosts = []string{"localhost", "hermit.local", "127.0.0.1"}

// DefaultValidity is the lifetime of a generated certificate.
const DefaultValidity = 365 * 24 * time.Hour

// ConfigError reports a failure to produce usable TLS material. It is fatal
// at startup.
type ConfigError struct {
	Op   string
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("tls %s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("tls %s: %v", e.Op, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Source reads PEM bytes by path.
type Source interface {
	ReadFile(path string) ([]byte, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(path string) ([]byte, error)

// ReadFile calls f(path).
func (f SourceFunc) ReadFile(path string) ([]byte, error) { return f(path) }

// OSSource reads from the local filesystem.
type OSSource struct{}

// ReadFile reads the named file.
func (OSSource) ReadFile(path string) ([]byte, error) { return os.ReadFile(path) }

// Material is a resolved TLS identity.
type Material struct {
	CertPEM []byte
	KeyPEM  []byte
	// Config is the server-side TLS context. Callers must not modify it.
	Config *tls.Config
	// Generated is true when the pair was generated rather than loaded.
	Generated bool

	leaf *x509.Certificate
}

// Leaf returns the parsed end-entity certificate.
func (m *Material) Leaf() *x509.Certificate { return m.leaf }

// Resolve loads the PEM pair at certPath and keyPath through src, or
// generates a self-signed pair when either path is empty. A nil src reads
// from the filesystem.
func Resolve(certPath, keyPath string, src Source) (*Material, error) {
	if src == nil {
		src = OSSource{}
	}

	if certPath == "" || keyPath == "" {
		certPEM, keyPEM, err := GenerateSelfSigned(DefaultHosts, DefaultValidity)
		if err != nil {
			return nil, &ConfigError{Op: "generate", Err: err}
		}
		m, err := FromPEM(certPEM, keyPEM)
		if err != nil {
			return nil, err
		}
		m.Generated = true
		return m, nil
	}

	certPEM, err := src.ReadFile(certPath)
	if err != nil {
		return nil, &ConfigError{Op: "read certificate", Path: certPath, Err: err}
	}
	keyPEM, err := src.ReadFile(keyPath)
	if err != nil {
		return nil, &ConfigError{Op: "read key", Path: keyPath, Err: err}
	}

	return FromPEM(certPEM, keyPEM)
}

// FromPEM builds Material from a PEM certificate chain and a PEM private key.
// The first private key block is used; PKCS#8, PKCS#1 and SEC 1 encodings
// are accepted. Client certificates are not requested and the minimum
// protocol version is TLS 1.2.
func FromPEM(certPEM, keyPEM []byte) (*Material, error) {
	chain, err := parseChain(certPEM)
	if err != nil {
		return nil, &ConfigError{Op: "parse certificate", Err: err}
	}
	key, err := parseKey(keyPEM)
	if err != nil {
		return nil, &ConfigError{Op: "parse key", Err: err}
	}

	leaf, err := x509.ParseCertificate(chain[0])
	if err != nil {
		return nil, &ConfigError{Op: "parse certificate", Err: err}
	}
	pub, ok := leaf.PublicKey.(interface{ Equal(crypto.PublicKey) bool })
	if !ok || !pub.Equal(key.Public()) {
		return nil, &ConfigError{Op: "match key", Err: ErrKeyMismatch}
	}

	cert := tls.Certificate{
		Certificate: chain,
		PrivateKey:  key,
		Leaf:        leaf,
	}

	return &Material{
		CertPEM: certPEM,
		KeyPEM:  keyPEM,
		Config: &tls.Config{
			Certificates: []tls.Certificate{cert},
			ClientAuth:   tls.NoClientCert,
			MinVersion:   tls.VersionTLS12,
		},
		leaf: leaf,
	}, nil
}

func parseChain(data []byte) ([][]byte, error) {
	var chain [][]byte
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		if _, err := x509.ParseCertificate(block.Bytes); err != nil {
			return nil, errors.Wrapf(err, "certificate %d", len(chain))
		}
		chain = append(chain, block.Bytes)
	}
	if len(chain) == 0 {
		return nil, ErrNoCertificate
	}
	return chain, nil
}

func parseKey(data []byte) (crypto.Signer, error) {
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			return nil, ErrNoPrivateKey
		}

		var (
			key interface{}
			err error
		)
		switch block.Type {
		case "PRIVATE KEY":
			key, err = x509.ParsePKCS8PrivateKey(block.Bytes)
		case "RSA PRIVATE KEY":
			key, err = x509.ParsePKCS1PrivateKey(block.Bytes)
		case "EC PRIVATE KEY":
			key, err = x509.ParseECPrivateKey(block.Bytes)
		default:
			continue
		}
		if err != nil {
			return nil, errors.Wrap(err, block.Type)
		}

		signer, ok := key.(crypto.Signer)
		if !ok {
			return nil, ErrUnsupported
		}
		return signer, nil
	}
}

// GenerateSelfSigned creates a self-signed server certificate valid for
// hosts. Entries that parse as IP addresses become IP SANs; the rest become
// DNS SANs. The key is ECDSA P-256 encoded as PKCS#8.
func GenerateSelfSigned(hosts []string, validFor time.Duration) (certPEM, keyPEM []byte, err error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, errors.Wrap(err, "generate key")
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, nil, errors.Wrap(err, "generate serial")
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: "hermit self-signed", Organization: []string{"hermit"}},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(validFor),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else {
			template.DNSNames = append(template.DNSNames, h)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, nil, errors.Wrap(err, "create certificate")
	}
	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, nil, errors.Wrap(err, "marshal key")
	}

	var certBuf, keyBuf bytes.Buffer
	if err := pem.Encode(&certBuf, &pem.Block{Type: "CERTIFICATE", Bytes: der}); err != nil {
		return nil, nil, err
	}
	if err := pem.Encode(&keyBuf, &pem.Block{Type: "PRIVATE KEY", Bytes: keyDER}); err != nil {
		return nil, nil, err
	}
	return certBuf.Bytes(), keyBuf.Bytes(), nil
}

// VersionName returns a label such as "TLS 1.3" for a negotiated version.
func VersionName(version uint16) string {
	switch version {
	case tls.VersionTLS10:
		return "TLS 1.0"
	case tls.VersionTLS11:
		return "TLS 1.1"
	case tls.VersionTLS12:
		return "TLS 1.2"
	case tls.VersionTLS13:
		return "TLS 1.3"
	default:
		return fmt.Sprintf("unknown (0x%04x)", version)
	}
}
