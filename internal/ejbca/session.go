package ejbca

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"os"

	"software.sslmate.com/src/go-pkcs12"
)

// newSession decodes the PKCS#12 credential bundle and builds the HTTP
// client used for every exchange with the remote service. The client
// certificate is presented on each request. Certificate-chain validation of
// the remote endpoint is skipped: the deployment environment runs the CA
// behind a self-signed certificate, a documented trust decision.
func newSession(cfg Config) (*http.Client, error) {
	content, err := os.ReadFile(cfg.BundlePath)
	if err != nil {
		return nil, fmt.Errorf("reading credential bundle: %w", err)
	}

	privateKey, certificate, chain, err := pkcs12.DecodeChain(content, cfg.BundlePassword)
	if err != nil {
		return nil, fmt.Errorf("decoding credential bundle: %w", err)
	}

	tlsCert := tls.Certificate{
		PrivateKey:  privateKey,
		Certificate: append([][]byte{certificate.Raw}, encodeChain(chain)...),
		Leaf:        certificate,
	}

	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		Certificates:       []tls.Certificate{tlsCert},
		InsecureSkipVerify: true, //nolint:gosec // the remote presents a self-signed certificate.
	}

	return &http.Client{
		Timeout: cfg.timeout(),
		Transport: &http.Transport{
			TLSClientConfig: tlsConfig,
		},
	}, nil
}

func encodeChain(chain []*x509.Certificate) [][]byte {
	if len(chain) == 0 {
		return nil
	}

	result := make([][]byte, len(chain))
	for i, cert := range chain {
		result[i] = cert.Raw
	}

	return result
}

// fetchServiceDescription retrieves the WSDL document over the established
// session. It doubles as the liveness probe: any transport failure or
// non-200 status means the remote is not usable.
func fetchServiceDescription(ctx context.Context, session *http.Client, wsdlURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, wsdlURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating service description request: %w", err)
	}

	resp, err := session.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching service description: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("service description returned status %d", resp.StatusCode)
	}

	doc, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading service description: %w", err)
	}

	return doc, nil
}
