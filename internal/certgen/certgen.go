// Package certgen creates key material locally: PKCS#10 requests for the
// enrollment endpoints and self-signed PKCS#12 bundles for bootstrap
// credentials. Nothing here talks to the remote CA.
package certgen

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"time"

	"github.com/globalsign/pemfile"
	"software.sslmate.com/src/go-pkcs12"
)

const (
	AlgorithmRSA   = "rsa"
	AlgorithmECDSA = "ecdsa"

	defaultRSABits  = 2048
	defaultValidity = 365 * 24 * time.Hour
)

const (
	csrPEMType = "CERTIFICATE REQUEST"

	pkcs8PrivateKeyPEMType = "PRIVATE KEY"
	pkcs1PrivateKeyPEMType = "RSA PRIVATE KEY"
	ecPrivateKeyPEMType    = "EC PRIVATE KEY"
)

// SubjectRequest describes the subject of a generated request or
// certificate.
type SubjectRequest struct {
	CommonName   string   `json:"common_name"`
	Organization string   `json:"organization,omitempty"`
	OrgUnit      string   `json:"organizational_unit,omitempty"`
	Country      string   `json:"country,omitempty"`
	Locality     string   `json:"locality,omitempty"`
	Email        string   `json:"email,omitempty"`
	DNSNames     []string `json:"dns_names,omitempty"`
}

func (s SubjectRequest) name() pkix.Name {
	name := pkix.Name{CommonName: s.CommonName}
	if s.Organization != "" {
		name.Organization = []string{s.Organization}
	}
	if s.OrgUnit != "" {
		name.OrganizationalUnit = []string{s.OrgUnit}
	}
	if s.Country != "" {
		name.Country = []string{s.Country}
	}
	if s.Locality != "" {
		name.Locality = []string{s.Locality}
	}
	return name
}

// KeySpec selects the key algorithm. The zero value means ECDSA P-256.
type KeySpec struct {
	Algorithm string `json:"algorithm,omitempty"`
	RSABits   int    `json:"rsa_bits,omitempty"`
}

func generateKey(spec KeySpec) (crypto.Signer, error) {
	switch spec.Algorithm {
	case "", AlgorithmECDSA:
		return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	case AlgorithmRSA:
		bits := spec.RSABits
		if bits == 0 {
			bits = defaultRSABits
		}
		if bits != 2048 && bits != 3072 && bits != 4096 {
			return nil, fmt.Errorf("invalid RSA bit size %d", bits)
		}
		return rsa.GenerateKey(rand.Reader, bits)
	default:
		return nil, fmt.Errorf("unsupported key algorithm %q", spec.Algorithm)
	}
}

// CSRResult holds a freshly generated key pair and request, both PEM
// encoded.
type CSRResult struct {
	CSRPEM        string `json:"csr"`
	PrivateKeyPEM string `json:"private_key"`
}

// GenerateCSR creates a new private key and a PKCS#10 request for the
// given subject.
func GenerateCSR(subject SubjectRequest, spec KeySpec) (*CSRResult, error) {
	if subject.CommonName == "" {
		return nil, fmt.Errorf("common name is required")
	}

	key, err := generateKey(spec)
	if err != nil {
		return nil, err
	}

	tmpl := &x509.CertificateRequest{
		Subject:  subject.name(),
		DNSNames: subject.DNSNames,
	}
	if subject.Email != "" {
		tmpl.EmailAddresses = []string{subject.Email}
	}

	csrDER, err := x509.CreateCertificateRequest(rand.Reader, tmpl, key)
	if err != nil {
		return nil, fmt.Errorf("failed to create certificate request: %w", err)
	}

	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}

	return &CSRResult{
		CSRPEM:        encodePEM(csrPEMType, csrDER),
		PrivateKeyPEM: encodePEM(pkcs8PrivateKeyPEMType, keyDER),
	}, nil
}

// BundleRequest describes a self-signed PKCS#12 credential bundle.
type BundleRequest struct {
	Subject  SubjectRequest `json:"subject"`
	Key      KeySpec        `json:"key,omitempty"`
	Validity time.Duration  `json:"-"`
	Password string         `json:"password"`
}

// GenerateBundle creates a self-signed certificate and packages it with
// its private key as a password-protected PKCS#12 archive.
func GenerateBundle(req BundleRequest) ([]byte, error) {
	if req.Subject.CommonName == "" {
		return nil, fmt.Errorf("common name is required")
	}
	if req.Password == "" {
		return nil, fmt.Errorf("bundle password is required")
	}

	key, err := generateKey(req.Key)
	if err != nil {
		return nil, err
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial number: %w", err)
	}

	validity := req.Validity
	if validity == 0 {
		validity = defaultValidity
	}

	tmpl := &x509.Certificate{
		SerialNumber: serial,
		Subject:      req.Subject.name(),
		DNSNames:     req.Subject.DNSNames,
		NotBefore:    time.Now().Add(-5 * time.Minute),
		NotAfter:     time.Now().Add(validity),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}
	if req.Subject.Email != "" {
		tmpl.EmailAddresses = []string{req.Subject.Email}
	}

	certDER, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, key.Public(), key)
	if err != nil {
		return nil, fmt.Errorf("failed to create certificate: %w", err)
	}
	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return nil, fmt.Errorf("failed to parse generated certificate: %w", err)
	}

	pfx, err := pkcs12.Modern.Encode(key, cert, nil, req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to encode PKCS#12 bundle: %w", err)
	}
	return pfx, nil
}

// LoadSigner reads a PEM private key from disk, accepting the PKCS#8,
// PKCS#1 and SEC 1 encodings.
func LoadSigner(keyFile string) (crypto.Signer, error) {
	blocks, err := pemfile.ReadBlocks(keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	if len(blocks) != 1 {
		return nil, fmt.Errorf("key file contains %d PEM blocks, want 1", len(blocks))
	}
	block := blocks[0]
	if err := pemfile.IsType(block, pkcs8PrivateKeyPEMType, pkcs1PrivateKeyPEMType, ecPrivateKeyPEMType); err != nil {
		return nil, err
	}

	var key interface{}
	switch block.Type {
	case pkcs8PrivateKeyPEMType:
		key, err = x509.ParsePKCS8PrivateKey(block.Bytes)
	case pkcs1PrivateKeyPEMType:
		key, err = x509.ParsePKCS1PrivateKey(block.Bytes)
	case ecPrivateKeyPEMType:
		key, err = x509.ParseECPrivateKey(block.Bytes)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("key of type %T is not a signer", key)
	}
	return signer, nil
}

// SignCSRWithKey builds a PKCS#10 request for subject using an existing
// private key instead of generating a fresh one.
func SignCSRWithKey(subject SubjectRequest, key crypto.Signer) (string, error) {
	if subject.CommonName == "" {
		return "", fmt.Errorf("common name is required")
	}

	tmpl := &x509.CertificateRequest{
		Subject:  subject.name(),
		DNSNames: subject.DNSNames,
	}
	csrDER, err := x509.CreateCertificateRequest(rand.Reader, tmpl, key)
	if err != nil {
		return "", fmt.Errorf("failed to create certificate request: %w", err)
	}
	return encodePEM(csrPEMType, csrDER), nil
}

func encodePEM(blockType string, der []byte) string {
	return string(pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der}))
}
