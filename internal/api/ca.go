package api

import (
	"crypto/x509"
	"encoding/pem"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/djpki/ejbca-rest-gateway/internal/ejbca"
)

const crlPEMType = "X509 CRL"

func (s *Server) listCAs(w http.ResponseWriter, r *http.Request) {
	cas, err := s.client.GetAvailableCAs(r.Context())
	s.recordDispatch(r, "getAvailableCAs", err)
	if err != nil {
		errorFrom(err).Write(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(cas),
		"cas":   cas,
	})
}

func (s *Server) getCA(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	chain, err := s.client.GetLastCAChain(r.Context(), name)
	s.recordDispatch(r, "getLastCAChain", err)
	if err != nil {
		errorFrom(err).Write(w)
		return
	}
	if len(chain) == 0 {
		errNotFound("certificate authority %q not found", name).Write(w)
		return
	}

	summaries, err := chainSummaries(chain)
	if err != nil {
		(&apiError{status: http.StatusBadGateway, desc: "malformed CA chain payload"}).Write(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":        name,
		"chain_depth": len(chain),
		"chain":       summaries,
	})
}

func (s *Server) caChain(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	chain, err := s.client.GetLastCAChain(r.Context(), name)
	s.recordDispatch(r, "getLastCAChain", err)
	if err != nil {
		errorFrom(err).Write(w)
		return
	}
	if len(chain) == 0 {
		errNotFound("certificate authority %q not found", name).Write(w)
		return
	}

	format := r.URL.Query().Get("format")
	switch format {
	case "", "pem":
		var bundle []byte
		for _, record := range chain {
			der, err := record.DER()
			if err != nil {
				(&apiError{status: http.StatusBadGateway, desc: "malformed CA chain payload"}).Write(w)
				return
			}
			bundle = append(bundle, pem.EncodeToMemory(&pem.Block{
				Type:  certificatePEMType,
				Bytes: der,
			})...)
		}
		writeBytes(w, mimeTypePEM, name+"-chain.pem", bundle)
	case "json":
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"name":  name,
			"chain": certificateViews(chain),
		})
	default:
		errInvalidRequest("unsupported format %q, want pem or json", format).Write(w)
	}
}

// caCertificates reports the parsed metadata of the CA's own certificate
// chain.
func (s *Server) caCertificates(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	chain, err := s.client.GetLastCAChain(r.Context(), name)
	s.recordDispatch(r, "getLastCAChain", err)
	if err != nil {
		errorFrom(err).Write(w)
		return
	}
	if len(chain) == 0 {
		errNotFound("certificate authority %q not found", name).Write(w)
		return
	}

	summaries, err := chainSummaries(chain)
	if err != nil {
		(&apiError{status: http.StatusBadGateway, desc: "malformed CA chain payload"}).Write(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":         name,
		"certificates": summaries,
	})
}

func (s *Server) caCRL(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	delta, err := queryBool(r, "delta", false)
	if err != nil {
		errorFrom(err).Write(w)
		return
	}

	crl, err := s.client.GetLatestCRL(r.Context(), name, delta)
	s.recordDispatch(r, "getLatestCRL", err)
	if err != nil {
		errorFrom(err).Write(w)
		return
	}
	if len(crl) == 0 {
		errNotFound("no CRL available for %q", name).Write(w)
		return
	}

	format := r.URL.Query().Get("format")
	switch format {
	case "", "der":
		writeBytes(w, mimeTypeCRL, name+".crl", crl)
	case "pem":
		block := pem.EncodeToMemory(&pem.Block{Type: crlPEMType, Bytes: crl})
		writeBytes(w, mimeTypePEM, name+".crl.pem", block)
	default:
		errInvalidRequest("unsupported format %q, want der or pem", format).Write(w)
	}
}

func (s *Server) refreshCRL(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	err := s.client.CreateCRL(r.Context(), name)
	s.recordDispatch(r, "createCRL", err)
	if err != nil {
		errorFrom(err).Write(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"name":    name,
		"message": "CRL generation triggered",
	})
}

type certificateSummary struct {
	SubjectDN    string `json:"subject_dn"`
	IssuerDN     string `json:"issuer_dn"`
	SerialNumber string `json:"serial_number"`
	NotBefore    string `json:"not_before"`
	NotAfter     string `json:"not_after"`
	IsCA         bool   `json:"is_ca"`
}

func chainSummaries(chain []ejbca.CertificateRecord) ([]certificateSummary, error) {
	summaries := make([]certificateSummary, 0, len(chain))
	for _, record := range chain {
		der, err := record.DER()
		if err != nil {
			return nil, err
		}
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, certificateSummary{
			SubjectDN:    cert.Subject.String(),
			IssuerDN:     cert.Issuer.String(),
			SerialNumber: cert.SerialNumber.Text(16),
			NotBefore:    cert.NotBefore.UTC().Format("2006-01-02T15:04:05Z"),
			NotAfter:     cert.NotAfter.UTC().Format("2006-01-02T15:04:05Z"),
			IsCA:         cert.IsCA,
		})
	}
	return summaries, nil
}
