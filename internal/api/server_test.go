package api

import (
	"bytes"
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/djpki/ejbca-rest-gateway/internal/alogger"
	"github.com/djpki/ejbca-rest-gateway/internal/ejbca"
)

// fakeCA is a scriptable CAClient double. Every dispatched operation name
// is recorded; a non-nil err fails all calls.
type fakeCA struct {
	mu         sync.Mutex
	dispatched []string

	err          error
	initOK       bool
	status       ejbca.Status
	ops          []string
	users        []ejbca.UserRecord
	cas          []ejbca.NameAndID
	eeProfiles   []ejbca.NameAndID
	certProfiles []ejbca.NameAndID
	cert         *ejbca.CertificateRecord
	certs        []ejbca.CertificateRecord
	chain        []ejbca.CertificateRecord
	crl          []byte
	issued       *ejbca.IssuedCertificate
	revocation   *ejbca.RevocationStatus

	enrolled ejbca.EnrollmentRequest
}

func (f *fakeCA) record(operation string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dispatched = append(f.dispatched, operation)
}

func (f *fakeCA) dispatchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.dispatched)
}

func (f *fakeCA) Initialize(context.Context) bool { return f.initOK }
func (f *fakeCA) Status() ejbca.Status            { return f.status }
func (f *fakeCA) Operations() []string            { return append([]string(nil), f.ops...) }

func (f *fakeCA) HasOperation(name string) bool {
	for _, op := range f.ops {
		if op == name {
			return true
		}
	}
	return false
}

func (f *fakeCA) CallOperation(_ context.Context, name string, _ ejbca.Params) (*ejbca.Result, error) {
	f.record(name)
	if f.err != nil {
		return nil, f.err
	}
	if !f.HasOperation(name) {
		return nil, &ejbca.UnknownOperationError{Operation: name}
	}
	return &ejbca.Result{Body: []byte("<" + name + "Response/>")}, nil
}

func (f *fakeCA) GetAvailableCAs(context.Context) ([]ejbca.NameAndID, error) {
	f.record("getAvailableCAs")
	return f.cas, f.err
}

func (f *fakeCA) FindUser(_ context.Context, _ string) ([]ejbca.UserRecord, error) {
	f.record("findUser")
	return f.users, f.err
}

func (f *fakeCA) FindUsers(_ context.Context, _ ejbca.UserMatch) ([]ejbca.UserRecord, error) {
	f.record("findUser")
	return f.users, f.err
}

func (f *fakeCA) EditUser(_ context.Context, _ ejbca.UserData) error {
	f.record("editUser")
	return f.err
}

func (f *fakeCA) RevokeCert(_ context.Context, _, _ string, _ int) error {
	f.record("revokeCert")
	return f.err
}

func (f *fakeCA) RevokeUser(_ context.Context, _ string, _ int, _ bool) error {
	f.record("revokeUser")
	return f.err
}

func (f *fakeCA) GetCertificate(_ context.Context, _, _ string) (*ejbca.CertificateRecord, error) {
	f.record("getCertificate")
	return f.cert, f.err
}

func (f *fakeCA) FindCerts(_ context.Context, _ string, _ bool) ([]ejbca.CertificateRecord, error) {
	f.record("findCerts")
	return f.certs, f.err
}

func (f *fakeCA) PKCS10Request(_ context.Context, req ejbca.EnrollmentRequest) (*ejbca.IssuedCertificate, error) {
	f.record("pkcs10Request")
	f.mu.Lock()
	f.enrolled = req
	f.mu.Unlock()
	return f.issued, f.err
}

func (f *fakeCA) CRMFRequest(_ context.Context, _ ejbca.EnrollmentRequest) (*ejbca.IssuedCertificate, error) {
	f.record("crmfRequest")
	return f.issued, f.err
}

func (f *fakeCA) CertificateRequest(_ context.Context, _ ejbca.UserData, _ string, _ int, _ string) (*ejbca.IssuedCertificate, error) {
	f.record("certificateRequest")
	return f.issued, f.err
}

func (f *fakeCA) GetLastCAChain(_ context.Context, _ string) ([]ejbca.CertificateRecord, error) {
	f.record("getLastCAChain")
	return f.chain, f.err
}

func (f *fakeCA) GetLatestCRL(_ context.Context, _ string, _ bool) ([]byte, error) {
	f.record("getLatestCRL")
	return f.crl, f.err
}

func (f *fakeCA) CreateCRL(_ context.Context, _ string) error {
	f.record("createCRL")
	return f.err
}

func (f *fakeCA) GetAuthorizedEndEntityProfiles(context.Context) ([]ejbca.NameAndID, error) {
	f.record("getAuthorizedEndEntityProfiles")
	return f.eeProfiles, f.err
}

func (f *fakeCA) GetAvailableCertificateProfiles(_ context.Context, _ int64) ([]ejbca.NameAndID, error) {
	f.record("getAvailableCertificateProfiles")
	return f.certProfiles, f.err
}

func (f *fakeCA) CheckRevocationStatus(_ context.Context, _, _ string) (*ejbca.RevocationStatus, error) {
	f.record("checkRevokationStatus")
	return f.revocation, f.err
}

func (f *fakeCA) GetCertificatesByExpirationTime(_ context.Context, _, _ int) ([]ejbca.CertificateRecord, error) {
	f.record("getCertificatesByExpirationTime")
	return f.certs, f.err
}

func newTestServer(t *testing.T, fake *fakeCA) http.Handler {
	return newTestServerWithKey(t, fake, nil)
}

func newTestServerWithKey(t *testing.T, fake *fakeCA, renewalKey crypto.Signer) http.Handler {
	t.Helper()
	server := NewServer(Config{
		Client:     fake,
		Logger:     alogger.New(io.Discard, zerolog.ErrorLevel),
		RenewalKey: renewalKey,
		Info: Info{
			Version:    "test",
			ServiceURL: "https://ca.example.org:8443/ejbca/ejbcaws/ejbcaws",
			BundlePath: "/etc/gateway/credentials.p12",
		},
	})
	return server.Routes()
}

func doRequest(t *testing.T, handler http.Handler, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set(contentTypeHeader, mimeTypeJSON)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload
}

// makeCertRecord builds a real self-signed certificate in the base64 DER
// shape the remote transmits.
func makeCertRecord(t *testing.T, commonName string) ejbca.CertificateRecord {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(7),
		Subject:               pkix.Name{CommonName: commonName},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	return ejbca.CertificateRecord{
		Data: []byte(base64.StdEncoding.EncodeToString(der)),
	}
}

func TestGetUser(t *testing.T) {
	fake := &fakeCA{users: []ejbca.UserRecord{{Username: "alice", Status: ejbca.StatusGenerated}}}
	handler := newTestServer(t, fake)

	rec := doRequest(t, handler, http.MethodGet, "/users/alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", decodeResponse(t, rec)["username"])
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestGetUserNotFound(t *testing.T) {
	handler := newTestServer(t, &fakeCA{})

	rec := doRequest(t, handler, http.MethodGet, "/users/nobody", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, decodeResponse(t, rec)["error"], "nobody")
}

func TestCreateUserConflict(t *testing.T) {
	fake := &fakeCA{err: &ejbca.RemoteFault{
		Operation: "editUser",
		Message:   "End entity already exists: alice",
	}}
	handler := newTestServer(t, fake)

	rec := doRequest(t, handler, http.MethodPost, "/users", map[string]string{
		"username":   "alice",
		"subject_dn": "CN=alice",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateUserValidation(t *testing.T) {
	fake := &fakeCA{}
	handler := newTestServer(t, fake)

	rec := doRequest(t, handler, http.MethodPost, "/users", map[string]string{"username": "alice"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, fake.dispatchCount())
}

func TestServiceUnavailableMapping(t *testing.T) {
	fake := &fakeCA{err: ejbca.ErrNotInitialized}
	handler := newTestServer(t, fake)

	rec := doRequest(t, handler, http.MethodGet, "/ca", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestTransportErrorMapping(t *testing.T) {
	fake := &fakeCA{err: &ejbca.TransportError{
		Operation: "getAvailableCAs",
		Err:       io.ErrUnexpectedEOF,
	}}
	handler := newTestServer(t, fake)

	rec := doRequest(t, handler, http.MethodGet, "/ca", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestRemoteFaultNotFoundMapping(t *testing.T) {
	fake := &fakeCA{err: &ejbca.RemoteFault{
		Operation: "getLastCAChain",
		Message:   "CA with name UnknownCA does not exist",
	}}
	handler := newTestServer(t, fake)

	rec := doRequest(t, handler, http.MethodGet, "/ca/UnknownCA/chain", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthDegraded(t *testing.T) {
	handler := newTestServer(t, &fakeCA{status: ejbca.Status{Initialized: false}})

	rec := doRequest(t, handler, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "degraded", decodeResponse(t, rec)["status"])
}

func TestHealthOK(t *testing.T) {
	handler := newTestServer(t, &fakeCA{status: ejbca.Status{Initialized: true, Version: "8.3.2"}})

	rec := doRequest(t, handler, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeResponse(t, rec)["status"])
}

func TestRawSOAPCallUnknownEndpoint(t *testing.T) {
	fake := &fakeCA{ops: []string{"getEjbcaVersion"}}
	handler := newTestServer(t, fake)

	rec := doRequest(t, handler, http.MethodPost, "/soap/call/dropAllTables", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 0, fake.dispatchCount())
}

func TestRawSOAPCall(t *testing.T) {
	fake := &fakeCA{ops: []string{"getEjbcaVersion"}}
	handler := newTestServer(t, fake)

	rec := doRequest(t, handler, http.MethodPost, "/soap/call/getEjbcaVersion", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decodeResponse(t, rec)["response"], "getEjbcaVersionResponse")
}

func TestExecuteValidateOnly(t *testing.T) {
	fake := &fakeCA{ops: []string{"getEjbcaVersion"}}
	handler := newTestServer(t, fake)

	rec := doRequest(t, handler, http.MethodPost, "/operations/execute", map[string]interface{}{
		"operation":     "getEjbcaVersion",
		"validate_only": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	payload := decodeResponse(t, rec)
	assert.Equal(t, true, payload["available"])
	assert.Equal(t, 0, fake.dispatchCount())
}

func TestExecuteUnknownOperation(t *testing.T) {
	fake := &fakeCA{ops: []string{"getEjbcaVersion"}}
	handler := newTestServer(t, fake)

	rec := doRequest(t, handler, http.MethodPost, "/operations/execute", map[string]interface{}{
		"operation": "getPublisherQueueLength",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBatchStopOnError(t *testing.T) {
	fake := &fakeCA{ops: []string{"getEjbcaVersion"}}
	handler := newTestServer(t, fake)

	rec := doRequest(t, handler, http.MethodPost, "/operations/batch", map[string]interface{}{
		"stop_on_error": true,
		"operations": []map[string]interface{}{
			{"operation": "getEjbcaVersion"},
			{"operation": "badOperation"},
			{"operation": "getEjbcaVersion"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	payload := decodeResponse(t, rec)
	results := payload["results"].([]interface{})
	assert.Len(t, results, 2)
	assert.Equal(t, float64(1), payload["failed"])
}

func TestDownloadCertificatePEM(t *testing.T) {
	record := makeCertRecord(t, "device-001")
	fake := &fakeCA{cert: &record}
	handler := newTestServer(t, fake)

	rec := doRequest(t, handler, http.MethodGet,
		"/certificates/1a2b3c/download?issuer_dn=CN%3DManagementCA&format=pem", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, mimeTypePEM, rec.Header().Get(contentTypeHeader))
	assert.Contains(t, rec.Body.String(), "BEGIN CERTIFICATE")
}

func TestDownloadCertificateRequiresIssuer(t *testing.T) {
	handler := newTestServer(t, &fakeCA{})

	rec := doRequest(t, handler, http.MethodGet, "/certificates/1a2b3c/download", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func makeIssued(payload string) *ejbca.IssuedCertificate {
	return &ejbca.IssuedCertificate{
		Data:         []byte(base64.StdEncoding.EncodeToString([]byte(payload))),
		ResponseType: ejbca.ResponseTypeCertificate,
	}
}

func TestRequestCertificateOneShot(t *testing.T) {
	fake := &fakeCA{issued: makeIssued("cert-bytes")}
	handler := newTestServer(t, fake)

	rec := doRequest(t, handler, http.MethodPost, "/certificates/request", map[string]interface{}{
		"user": map[string]interface{}{
			"username":   "device-002",
			"subject_dn": "CN=device-002,O=lab",
		},
		"request": "ZmFrZS1jc3I=",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"certificateRequest"}, fake.dispatched)

	payload := decodeResponse(t, rec)
	assert.Equal(t, ejbca.ResponseTypeCertificate, payload["response_type"])
}

func TestRequestCertificateBadRequestType(t *testing.T) {
	fake := &fakeCA{issued: makeIssued("cert-bytes")}
	handler := newTestServer(t, fake)

	rec := doRequest(t, handler, http.MethodPost, "/certificates/request", map[string]interface{}{
		"user": map[string]interface{}{
			"username":   "device-002",
			"subject_dn": "CN=device-002,O=lab",
		},
		"request":      "ZmFrZS1jc3I=",
		"request_type": "spkac",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, fake.dispatchCount())
}

func TestRenewCertificate(t *testing.T) {
	record := makeCertRecord(t, "device-001")
	fake := &fakeCA{cert: &record, issued: makeIssued("new-cert-bytes")}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	handler := newTestServerWithKey(t, fake, key)

	rec := doRequest(t, handler, http.MethodPost, "/certificates/renew", map[string]interface{}{
		"issuer_dn":     "CN=ManagementCA",
		"serial_number": "1a2b3c",
		"username":      "device-001",
		"password":      "enroll",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"getCertificate", "pkcs10Request"}, fake.dispatched)

	payload := decodeResponse(t, rec)
	assert.Equal(t, "7", payload["old_serial_number"])

	// The replacement CSR carries the old certificate's subject and is
	// signed with the configured renewal key.
	block, _ := pem.Decode([]byte(fake.enrolled.Request))
	require.NotNil(t, block)
	csr, err := x509.ParseCertificateRequest(block.Bytes)
	require.NoError(t, err)
	require.NoError(t, csr.CheckSignature())
	assert.Equal(t, "device-001", csr.Subject.CommonName)
}

func TestRenewCertificateNotConfigured(t *testing.T) {
	fake := &fakeCA{}
	handler := newTestServer(t, fake)

	rec := doRequest(t, handler, http.MethodPost, "/certificates/renew", map[string]interface{}{
		"issuer_dn":     "CN=ManagementCA",
		"serial_number": "1a2b3c",
		"username":      "device-001",
	})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Zero(t, fake.dispatchCount())
}

func TestRenewCertificateUnknownSerial(t *testing.T) {
	fake := &fakeCA{}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	handler := newTestServerWithKey(t, fake, key)

	rec := doRequest(t, handler, http.MethodPost, "/certificates/renew", map[string]interface{}{
		"issuer_dn":     "CN=ManagementCA",
		"serial_number": "dead",
		"username":      "device-001",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, []string{"getCertificate"}, fake.dispatched)
}

func TestCAChainSummaries(t *testing.T) {
	fake := &fakeCA{chain: []ejbca.CertificateRecord{makeCertRecord(t, "ManagementCA")}}
	handler := newTestServer(t, fake)

	rec := doRequest(t, handler, http.MethodGet, "/ca/ManagementCA", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	payload := decodeResponse(t, rec)
	chain := payload["chain"].([]interface{})
	require.Len(t, chain, 1)
	entry := chain[0].(map[string]interface{})
	assert.Equal(t, "CN=ManagementCA", entry["subject_dn"])
	assert.Equal(t, true, entry["is_ca"])
}

func TestCACRLDownload(t *testing.T) {
	fake := &fakeCA{crl: []byte{0x30, 0x03, 0x02, 0x01, 0x01}}
	handler := newTestServer(t, fake)

	rec := doRequest(t, handler, http.MethodGet, "/ca/ManagementCA/crl", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, mimeTypeCRL, rec.Header().Get(contentTypeHeader))

	rec = doRequest(t, handler, http.MethodGet, "/ca/ManagementCA/crl?format=pem", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "BEGIN X509 CRL")
}

func TestGenerateCSREndpoint(t *testing.T) {
	handler := newTestServer(t, &fakeCA{})

	rec := doRequest(t, handler, http.MethodPost, "/certificates/generate-csr", map[string]interface{}{
		"subject": map[string]string{"common_name": "device-001"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	payload := decodeResponse(t, rec)
	assert.Contains(t, payload["csr"], "BEGIN CERTIFICATE REQUEST")
	assert.Contains(t, payload["private_key"], "BEGIN PRIVATE KEY")
}

func TestGenerateBundleEndpoint(t *testing.T) {
	handler := newTestServer(t, &fakeCA{})

	rec := doRequest(t, handler, http.MethodPost, "/certificates/bundle", map[string]interface{}{
		"subject":  map[string]string{"common_name": "gateway-admin"},
		"password": "changeit",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, mimeTypePKCS12, rec.Header().Get(contentTypeHeader))
	assert.NotEmpty(t, rec.Body.Bytes())
}

func TestSystemConfigMasksSecrets(t *testing.T) {
	handler := newTestServer(t, &fakeCA{})

	rec := doRequest(t, handler, http.MethodGet, "/system/config", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	payload := decodeResponse(t, rec)
	assert.Equal(t, "********", payload["bundle_password"])
	assert.Equal(t, "/etc/gateway/credentials.p12", payload["bundle_path"])
}

func TestReconnect(t *testing.T) {
	handler := newTestServer(t, &fakeCA{initOK: true})
	rec := doRequest(t, handler, http.MethodPost, "/system/reconnect", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	handler = newTestServer(t, &fakeCA{initOK: false})
	rec = doRequest(t, handler, http.MethodPost, "/system/reconnect", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListOperationsSearch(t *testing.T) {
	fake := &fakeCA{ops: []string{"findUser", "editUser", "getLatestCRL"}}
	handler := newTestServer(t, fake)

	rec := doRequest(t, handler, http.MethodGet, "/operations?search=user", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	payload := decodeResponse(t, rec)
	assert.Equal(t, float64(2), payload["count"])
}

func TestRateLimit(t *testing.T) {
	server := NewServer(Config{
		Client:    &fakeCA{},
		Logger:    alogger.New(io.Discard, zerolog.ErrorLevel),
		RateLimit: 1,
	})
	handler := server.Routes()

	limited := false
	for i := 0; i < 5; i++ {
		rec := doRequest(t, handler, http.MethodGet, "/health", nil)
		if rec.Code == http.StatusTooManyRequests {
			limited = true
		}
	}
	assert.True(t, limited)
}
