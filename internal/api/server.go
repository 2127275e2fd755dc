// Package api exposes the REST surface of the gateway. Handlers stay
// thin: decode, dispatch against the injected EJBCA client, map the error
// taxonomy to HTTP statuses.
package api

import (
	"context"
	"crypto"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/djpki/ejbca-rest-gateway/internal/common"
	"github.com/djpki/ejbca-rest-gateway/internal/db"
	"github.com/djpki/ejbca-rest-gateway/internal/ejbca"
)

// CAClient is the certificate-authority surface the REST layer consumes.
// *ejbca.Client implements it.
type CAClient interface {
	Initialize(ctx context.Context) bool
	Status() ejbca.Status
	Operations() []string
	HasOperation(name string) bool
	CallOperation(ctx context.Context, name string, params ejbca.Params) (*ejbca.Result, error)

	GetAvailableCAs(ctx context.Context) ([]ejbca.NameAndID, error)
	FindUser(ctx context.Context, username string) ([]ejbca.UserRecord, error)
	FindUsers(ctx context.Context, match ejbca.UserMatch) ([]ejbca.UserRecord, error)
	EditUser(ctx context.Context, user ejbca.UserData) error
	RevokeCert(ctx context.Context, issuerDN, serialNumber string, reason int) error
	RevokeUser(ctx context.Context, username string, reason int, deleteUser bool) error
	GetCertificate(ctx context.Context, issuerDN, serialNumber string) (*ejbca.CertificateRecord, error)
	FindCerts(ctx context.Context, username string, onlyValid bool) ([]ejbca.CertificateRecord, error)
	PKCS10Request(ctx context.Context, req ejbca.EnrollmentRequest) (*ejbca.IssuedCertificate, error)
	CRMFRequest(ctx context.Context, req ejbca.EnrollmentRequest) (*ejbca.IssuedCertificate, error)
	CertificateRequest(ctx context.Context, user ejbca.UserData, request string, requestType int, responseType string) (*ejbca.IssuedCertificate, error)
	GetLastCAChain(ctx context.Context, caName string) ([]ejbca.CertificateRecord, error)
	GetLatestCRL(ctx context.Context, caName string, delta bool) ([]byte, error)
	CreateCRL(ctx context.Context, caName string) error
	GetAuthorizedEndEntityProfiles(ctx context.Context) ([]ejbca.NameAndID, error)
	GetAvailableCertificateProfiles(ctx context.Context, endEntityProfileID int64) ([]ejbca.NameAndID, error)
	CheckRevocationStatus(ctx context.Context, issuerDN, serialNumber string) (*ejbca.RevocationStatus, error)
	GetCertificatesByExpirationTime(ctx context.Context, days int, maxResults int) ([]ejbca.CertificateRecord, error)
}

// Info is the static service metadata reported by the system endpoints.
// Secrets never appear here.
type Info struct {
	Version    string `json:"version"`
	ServiceURL string `json:"service_url"`
	BundlePath string `json:"bundle_path"`
	DBType     string `json:"db_type,omitempty"`
}

// Config assembles a Server.
type Config struct {
	Client    CAClient
	Store     *db.DB
	Logger    common.Logger
	RateLimit int
	Info      Info

	// RenewalKey signs replacement CSRs for the certificate renewal
	// endpoint. Renewal is disabled when nil.
	RenewalKey crypto.Signer
}

// Server holds the handler dependencies.
type Server struct {
	client     CAClient
	store      *db.DB
	logger     common.Logger
	info       Info
	rateLimit  int
	renewalKey crypto.Signer
	started    time.Time
}

// NewServer creates the REST server around an initialized (or lazily
// initializing) EJBCA client.
func NewServer(cfg Config) *Server {
	return &Server{
		client:     cfg.Client,
		store:      cfg.Store,
		logger:     cfg.Logger.With("component", "api"),
		info:       cfg.Info,
		rateLimit:  cfg.RateLimit,
		renewalKey: cfg.RenewalKey,
		started:    time.Now(),
	}
}

// Routes builds the chi router with the full endpoint surface.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(requestID)
	r.Use(logAndAudit(s.logger, s.store))
	r.Use(middleware.Recoverer)
	if s.rateLimit > 0 {
		r.Use(rateLimit(s.rateLimit))
	}

	r.Get("/", s.root)
	r.Get("/health", s.health)
	r.Get("/status/soap", s.soapStatus)

	r.Route("/users", func(r chi.Router) {
		r.Post("/", s.createUser)
		r.Get("/search", s.searchUsers)
		r.Get("/{username}", s.getUser)
		r.Put("/{username}", s.updateUser)
		r.Post("/{username}/revoke", s.revokeUser)
	})

	r.Route("/certificates", func(r chi.Router) {
		r.Get("/", s.listCertificates)
		r.Get("/expiring", s.expiringCertificates)
		r.Post("/request", s.requestCertificate)
		r.Post("/request/pkcs10", s.requestPKCS10)
		r.Post("/request/crmf", s.requestCRMF)
		r.Post("/renew", s.renewCertificate)
		r.Post("/revoke", s.revokeCertificate)
		r.Post("/revoke/batch", s.revokeCertificateBatch)
		r.Post("/generate-csr", s.generateCSR)
		r.Post("/bundle", s.generateBundle)
		r.Get("/{serial}", s.getCertificate)
		r.Get("/{serial}/status", s.certificateStatus)
		r.Get("/{serial}/download", s.downloadCertificate)
	})

	r.Route("/ca", func(r chi.Router) {
		r.Get("/", s.listCAs)
		r.Get("/{name}", s.getCA)
		r.Get("/{name}/chain", s.caChain)
		r.Get("/{name}/certificates", s.caCertificates)
		r.Get("/{name}/crl", s.caCRL)
		r.Post("/{name}/crl/refresh", s.refreshCRL)
	})

	r.Route("/profiles", func(r chi.Router) {
		r.Get("/end-entity", s.endEntityProfiles)
		r.Get("/certificate", s.certificateProfiles)
		r.Get("/validation", s.validateProfiles)
	})

	r.Route("/operations", func(r chi.Router) {
		r.Get("/", s.listOperations)
		r.Post("/execute", s.executeOperation)
		r.Post("/batch", s.batchOperations)
	})

	r.Post("/soap/call/{operation}", s.rawSOAPCall)

	r.Route("/system", func(r chi.Router) {
		r.Get("/info", s.systemInfo)
		r.Get("/config", s.systemConfig)
		r.Post("/reconnect", s.reconnect)
		r.Get("/audit/requests", s.auditRequests)
		r.Get("/audit/dispatches", s.auditDispatches)
	})

	return r
}

// recordDispatch writes one audit row for a remote operation outcome.
func (s *Server) recordDispatch(r *http.Request, operation string, err error) {
	if s.store == nil {
		return
	}
	s.store.SaveDispatch(requestIDFrom(r.Context()), operation, err)
}
