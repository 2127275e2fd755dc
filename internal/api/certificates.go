package api

import (
	"context"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.mozilla.org/pkcs7"

	"github.com/djpki/ejbca-rest-gateway/internal/certgen"
	"github.com/djpki/ejbca-rest-gateway/internal/ejbca"
)

const certificatePEMType = "CERTIFICATE"

func (s *Server) listCertificates(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if username == "" {
		errInvalidRequest("query parameter username is required").Write(w)
		return
	}
	onlyValid, err := queryBool(r, "only_valid", true)
	if err != nil {
		errorFrom(err).Write(w)
		return
	}

	certs, err := s.client.FindCerts(r.Context(), username, onlyValid)
	s.recordDispatch(r, "findCerts", err)
	if err != nil {
		errorFrom(err).Write(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":        len(certs),
		"certificates": certificateViews(certs),
	})
}

func (s *Server) getCertificate(w http.ResponseWriter, r *http.Request) {
	serial := chi.URLParam(r, "serial")
	issuerDN := r.URL.Query().Get("issuer_dn")
	if issuerDN == "" {
		errInvalidRequest("query parameter issuer_dn is required").Write(w)
		return
	}

	cert, err := s.client.GetCertificate(r.Context(), issuerDN, serial)
	s.recordDispatch(r, "getCertificate", err)
	if err != nil {
		errorFrom(err).Write(w)
		return
	}
	if cert == nil {
		errNotFound("certificate %s not found", serial).Write(w)
		return
	}

	writeJSON(w, http.StatusOK, certificateView(*cert))
}

func (s *Server) certificateStatus(w http.ResponseWriter, r *http.Request) {
	serial := chi.URLParam(r, "serial")
	issuerDN := r.URL.Query().Get("issuer_dn")
	if issuerDN == "" {
		errInvalidRequest("query parameter issuer_dn is required").Write(w)
		return
	}

	status, err := s.client.CheckRevocationStatus(r.Context(), issuerDN, serial)
	s.recordDispatch(r, "checkRevokationStatus", err)
	if err != nil {
		errorFrom(err).Write(w)
		return
	}
	if status == nil {
		errNotFound("certificate %s not found", serial).Write(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"issuer_dn":       status.IssuerDN,
		"serial_number":   status.CertificateSN,
		"revoked":         status.Revoked(),
		"reason":          status.Reason,
		"revocation_date": status.RevocationDate,
	})
}

func (s *Server) downloadCertificate(w http.ResponseWriter, r *http.Request) {
	serial := chi.URLParam(r, "serial")
	issuerDN := r.URL.Query().Get("issuer_dn")
	if issuerDN == "" {
		errInvalidRequest("query parameter issuer_dn is required").Write(w)
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "pem"
	}

	cert, err := s.client.GetCertificate(r.Context(), issuerDN, serial)
	s.recordDispatch(r, "getCertificate", err)
	if err != nil {
		errorFrom(err).Write(w)
		return
	}
	if cert == nil {
		errNotFound("certificate %s not found", serial).Write(w)
		return
	}

	der, err := cert.DER()
	if err != nil {
		errInvalidRequest("remote returned a malformed certificate payload").Write(w)
		return
	}

	switch format {
	case "pem":
		block := pem.EncodeToMemory(&pem.Block{Type: certificatePEMType, Bytes: der})
		writeBytes(w, mimeTypePEM, serial+".pem", block)
	case "der":
		writeBytes(w, mimeTypeDER, serial+".der", der)
	default:
		errInvalidRequest("unsupported format %q, want pem or der", format).Write(w)
	}
}

func (s *Server) expiringCertificates(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", 30)
	if err != nil {
		errorFrom(err).Write(w)
		return
	}
	maxResults, err := queryInt(r, "max_results", 100)
	if err != nil {
		errorFrom(err).Write(w)
		return
	}

	certs, err := s.client.GetCertificatesByExpirationTime(r.Context(), days, maxResults)
	s.recordDispatch(r, "getCertificatesByExpirationTime", err)
	if err != nil {
		errorFrom(err).Write(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"days":         days,
		"count":        len(certs),
		"certificates": certificateViews(certs),
	})
}

type enrollmentRequest struct {
	Username     string `json:"username"`
	Password     string `json:"password"`
	Request      string `json:"request"`
	ResponseType string `json:"response_type,omitempty"`
}

func (s *Server) requestPKCS10(w http.ResponseWriter, r *http.Request) {
	s.enroll(w, r, "pkcs10Request", s.client.PKCS10Request)
}

func (s *Server) requestCRMF(w http.ResponseWriter, r *http.Request) {
	s.enroll(w, r, "crmfRequest", s.client.CRMFRequest)
}

func (s *Server) enroll(w http.ResponseWriter, r *http.Request, operation string,
	call func(ctx context.Context, req ejbca.EnrollmentRequest) (*ejbca.IssuedCertificate, error)) {

	var req enrollmentRequest
	if err := decodeBody(r, &req); err != nil {
		errorFrom(err).Write(w)
		return
	}
	if req.Username == "" || req.Request == "" {
		errInvalidRequest("username and request are required").Write(w)
		return
	}

	issued, err := call(r.Context(), ejbca.EnrollmentRequest{
		Username:     req.Username,
		Password:     req.Password,
		Request:      req.Request,
		ResponseType: req.ResponseType,
	})
	s.recordDispatch(r, operation, err)
	if err != nil {
		errorFrom(err).Write(w)
		return
	}

	view, err := issuedCertificateView(issued)
	if err != nil {
		s.logger.Errorw("failed to reshape issuance response",
			"operation", operation, "error", err)
		(&apiError{status: http.StatusBadGateway, desc: "malformed issuance response"}).Write(w)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

type oneShotEnrollmentRequest struct {
	User         userRequest `json:"user"`
	Request      string      `json:"request"`
	RequestType  string      `json:"request_type,omitempty"`
	ResponseType string      `json:"response_type,omitempty"`
}

// requestCertificate registers (or updates) the end entity and enrolls it
// in a single certificateRequest round trip.
func (s *Server) requestCertificate(w http.ResponseWriter, r *http.Request) {
	var req oneShotEnrollmentRequest
	if err := decodeBody(r, &req); err != nil {
		errorFrom(err).Write(w)
		return
	}
	if req.User.Username == "" || req.User.SubjectDN == "" || req.Request == "" {
		errInvalidRequest("user.username, user.subject_dn and request are required").Write(w)
		return
	}

	var requestType int
	switch req.RequestType {
	case "", "pkcs10":
		requestType = ejbca.RequestTypePKCS10
	case "crmf":
		requestType = ejbca.RequestTypeCRMF
	default:
		errInvalidRequest("unsupported request_type %q, want pkcs10 or crmf", req.RequestType).Write(w)
		return
	}

	issued, err := s.client.CertificateRequest(r.Context(), req.User.toUserData(), req.Request, requestType, req.ResponseType)
	s.recordDispatch(r, "certificateRequest", err)
	if err != nil {
		errorFrom(err).Write(w)
		return
	}

	view, err := issuedCertificateView(issued)
	if err != nil {
		s.logger.Errorw("failed to reshape issuance response",
			"operation", "certificateRequest", "error", err)
		(&apiError{status: http.StatusBadGateway, desc: "malformed issuance response"}).Write(w)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

type renewRequest struct {
	IssuerDN     string `json:"issuer_dn"`
	SerialNumber string `json:"serial_number"`
	Username     string `json:"username"`
	Password     string `json:"password"`
	ResponseType string `json:"response_type,omitempty"`
}

// renewCertificate fetches the current certificate, builds a replacement
// CSR for the same subject with the configured renewal key and submits it
// as a pkcs10Request.
func (s *Server) renewCertificate(w http.ResponseWriter, r *http.Request) {
	if s.renewalKey == nil {
		(&apiError{status: http.StatusServiceUnavailable, desc: "certificate renewal is not configured"}).Write(w)
		return
	}

	var req renewRequest
	if err := decodeBody(r, &req); err != nil {
		errorFrom(err).Write(w)
		return
	}
	if req.IssuerDN == "" || req.SerialNumber == "" || req.Username == "" {
		errInvalidRequest("issuer_dn, serial_number and username are required").Write(w)
		return
	}

	record, err := s.client.GetCertificate(r.Context(), req.IssuerDN, req.SerialNumber)
	s.recordDispatch(r, "getCertificate", err)
	if err != nil {
		errorFrom(err).Write(w)
		return
	}
	if record == nil {
		errNotFound("certificate %s not found", req.SerialNumber).Write(w)
		return
	}

	der, err := record.DER()
	if err != nil {
		errInvalidRequest("remote returned a malformed certificate payload").Write(w)
		return
	}
	old, err := x509.ParseCertificate(der)
	if err != nil {
		errInvalidRequest("remote returned a malformed certificate payload").Write(w)
		return
	}

	csr, err := certgen.SignCSRWithKey(subjectFromCertificate(old), s.renewalKey)
	if err != nil {
		s.logger.Errorw("failed to build renewal request",
			"serial_number", req.SerialNumber, "error", err)
		(&apiError{status: http.StatusInternalServerError, desc: "failed to build renewal request"}).Write(w)
		return
	}

	issued, err := s.client.PKCS10Request(r.Context(), ejbca.EnrollmentRequest{
		Username:     req.Username,
		Password:     req.Password,
		Request:      csr,
		ResponseType: req.ResponseType,
	})
	s.recordDispatch(r, "pkcs10Request", err)
	if err != nil {
		errorFrom(err).Write(w)
		return
	}

	view, err := issuedCertificateView(issued)
	if err != nil {
		s.logger.Errorw("failed to reshape issuance response",
			"operation", "pkcs10Request", "error", err)
		(&apiError{status: http.StatusBadGateway, desc: "malformed issuance response"}).Write(w)
		return
	}
	view["old_serial_number"] = old.SerialNumber.Text(16)

	writeJSON(w, http.StatusOK, view)
}

func subjectFromCertificate(cert *x509.Certificate) certgen.SubjectRequest {
	subject := certgen.SubjectRequest{
		CommonName: cert.Subject.CommonName,
		DNSNames:   cert.DNSNames,
	}
	if len(cert.Subject.Organization) > 0 {
		subject.Organization = cert.Subject.Organization[0]
	}
	if len(cert.Subject.OrganizationalUnit) > 0 {
		subject.OrgUnit = cert.Subject.OrganizationalUnit[0]
	}
	if len(cert.Subject.Country) > 0 {
		subject.Country = cert.Subject.Country[0]
	}
	if len(cert.Subject.Locality) > 0 {
		subject.Locality = cert.Subject.Locality[0]
	}
	return subject
}

func certificateViews(certs []ejbca.CertificateRecord) []map[string]string {
	views := make([]map[string]string, 0, len(certs))
	for _, cert := range certs {
		views = append(views, certificateView(cert))
	}
	return views
}

func certificateView(cert ejbca.CertificateRecord) map[string]string {
	view := map[string]string{
		"certificate": cert.Base64(),
	}
	if cert.Type != "" {
		view["type"] = cert.Type
	}
	return view
}

type revokeCertRequest struct {
	IssuerDN     string `json:"issuer_dn"`
	SerialNumber string `json:"serial_number"`
	Reason       int    `json:"reason"`
}

func (s *Server) revokeCertificate(w http.ResponseWriter, r *http.Request) {
	var req revokeCertRequest
	if err := decodeBody(r, &req); err != nil {
		errorFrom(err).Write(w)
		return
	}
	if req.IssuerDN == "" || req.SerialNumber == "" {
		errInvalidRequest("issuer_dn and serial_number are required").Write(w)
		return
	}

	err := s.client.RevokeCert(r.Context(), req.IssuerDN, req.SerialNumber, req.Reason)
	s.recordDispatch(r, "revokeCert", err)
	if err != nil {
		errorFrom(err).Write(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"serial_number": req.SerialNumber,
		"reason":        req.Reason,
		"message":       "certificate revoked",
	})
}

type batchRevokeRequest struct {
	Entries     []revokeCertRequest `json:"entries"`
	StopOnError bool                `json:"stop_on_error,omitempty"`
}

type batchRevokeResult struct {
	SerialNumber string `json:"serial_number"`
	Success      bool   `json:"success"`
	Error        string `json:"error,omitempty"`
}

func (s *Server) revokeCertificateBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRevokeRequest
	if err := decodeBody(r, &req); err != nil {
		errorFrom(err).Write(w)
		return
	}
	if len(req.Entries) == 0 {
		errInvalidRequest("entries must not be empty").Write(w)
		return
	}

	results := make([]batchRevokeResult, 0, len(req.Entries))
	failed := 0
	for _, entry := range req.Entries {
		err := s.client.RevokeCert(r.Context(), entry.IssuerDN, entry.SerialNumber, entry.Reason)
		s.recordDispatch(r, "revokeCert", err)

		result := batchRevokeResult{SerialNumber: entry.SerialNumber, Success: err == nil}
		if err != nil {
			failed++
			result.Error = errorFrom(err).desc
		}
		results = append(results, result)

		if err != nil && req.StopOnError {
			break
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total":   len(req.Entries),
		"failed":  failed,
		"results": results,
	})
}

type generateCSRRequest struct {
	Subject certgen.SubjectRequest `json:"subject"`
	Key     certgen.KeySpec        `json:"key,omitempty"`
}

func (s *Server) generateCSR(w http.ResponseWriter, r *http.Request) {
	var req generateCSRRequest
	if err := decodeBody(r, &req); err != nil {
		errorFrom(err).Write(w)
		return
	}

	result, err := certgen.GenerateCSR(req.Subject, req.Key)
	if err != nil {
		errInvalidRequest("%s", err).Write(w)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) generateBundle(w http.ResponseWriter, r *http.Request) {
	var req certgen.BundleRequest
	if err := decodeBody(r, &req); err != nil {
		errorFrom(err).Write(w)
		return
	}

	pfx, err := certgen.GenerateBundle(req)
	if err != nil {
		errInvalidRequest("%s", err).Write(w)
		return
	}

	filename := fmt.Sprintf("%s.p12", req.Subject.CommonName)
	writeBytes(w, mimeTypePKCS12, filename, pfx)
}

// issuedCertificateView reshapes an issuance payload for JSON transport,
// unwrapping PKCS#7 responses into the contained certificates.
func issuedCertificateView(issued *ejbca.IssuedCertificate) (map[string]interface{}, error) {
	der, err := issued.DER()
	if err != nil {
		return nil, fmt.Errorf("malformed issuance payload: %w", err)
	}

	view := map[string]interface{}{
		"response_type": issued.ResponseType,
		"data":          base64.StdEncoding.EncodeToString(der),
	}

	switch issued.ResponseType {
	case ejbca.ResponseTypePKCS7, ejbca.ResponseTypePKCS7WithChain:
		parsed, err := pkcs7.Parse(der)
		if err != nil {
			return nil, fmt.Errorf("parsing PKCS#7 response: %w", err)
		}
		chain := make([]string, 0, len(parsed.Certificates))
		for _, cert := range parsed.Certificates {
			block := pem.EncodeToMemory(&pem.Block{Type: certificatePEMType, Bytes: cert.Raw})
			chain = append(chain, string(block))
		}
		view["certificates"] = chain
	default:
		block := pem.EncodeToMemory(&pem.Block{Type: certificatePEMType, Bytes: der})
		view["certificate"] = string(block)
	}

	return view, nil
}
