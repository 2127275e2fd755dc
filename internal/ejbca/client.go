package ejbca

import (
	"context"
	"encoding/xml"
	"net/http"
	"os"
	"sync"

	"github.com/djpki/ejbca-rest-gateway/internal/common"
	"github.com/tiaguinho/gosoap"
)

// Params is the parameter mapping passed to a remote operation. Nested
// structures use nested Params values, mirroring the remote message shape.
type Params = gosoap.Params

// Result is the raw outcome of a SOAP call: the response body element of
// the operation, ready to be decoded into a typed structure.
type Result struct {
	Body []byte
}

// Unmarshal decodes the response body into v.
func (r *Result) Unmarshal(v interface{}) error {
	return xml.Unmarshal(r.Body, v)
}

// dispatcher abstracts the SOAP invocation layer so tests can substitute a
// fake transport.
type dispatcher interface {
	call(operation string, params gosoap.Params) (*gosoap.Response, error)
}

type soapDispatcher struct {
	client *gosoap.Client
}

func (d *soapDispatcher) call(operation string, params gosoap.Params) (*gosoap.Response, error) {
	return d.client.Call(operation, params)
}

func connectSOAP(wsdlURL string, session *http.Client) (dispatcher, error) {
	client, err := gosoap.SoapClient(wsdlURL, session)
	if err != nil {
		return nil, err
	}
	return &soapDispatcher{client: client}, nil
}

// Status is a point-in-time snapshot of the client state for the
// observability endpoints.
type Status struct {
	Initialized bool   `json:"initialized"`
	Degraded    bool   `json:"degraded"`
	Version     string `json:"version,omitempty"`
	Operations  int    `json:"operations"`
	ServiceURL  string `json:"serviceUrl"`
}

// Client owns the authenticated session to the EJBCA web service, the
// discovered operation catalog and the dispatch contract used by every
// route handler. A single instance is created at startup and injected into
// the API layer; all state mutation happens under one mutex so concurrent
// first callers share a single initialization attempt.
type Client struct {
	cfg    Config
	logger common.Logger

	mu          sync.Mutex
	session     *http.Client
	soap        dispatcher
	catalog     map[string]struct{}
	initialized bool
	degraded    bool
	version     string

	// factory seams, replaced in tests
	dial    func(Config) (*http.Client, error)
	connect func(string, *http.Client) (dispatcher, error)
}

// New creates a client for the given remote configuration. No connection
// is attempted until Initialize or the first dispatch.
func New(cfg Config, logger common.Logger) *Client {
	return &Client{
		cfg:     cfg,
		logger:  logger.With("component", "ejbca"),
		dial:    newSession,
		connect: connectSOAP,
	}
}

// Initialize establishes the session, discovers the operation catalog and
// verifies the connection end to end. It returns false on any failure and
// never panics or propagates an error: every failure is logged with its
// stage and the client is left in a clean, retryable state.
func (c *Client) Initialize(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initializeLocked(ctx)
}

func (c *Client) initializeLocked(ctx context.Context) bool {
	// Partial state from an earlier attempt is untrusted: clear everything
	// and require full re-discovery.
	c.session = nil
	c.soap = nil
	c.catalog = nil
	c.initialized = false
	c.degraded = false
	c.version = ""

	if _, err := os.Stat(c.cfg.BundlePath); err != nil {
		c.logger.Errorw("credential bundle not found",
			"stage", "bundle", "path", c.cfg.BundlePath, "error", err)
		return false
	}

	session, err := c.dial(c.cfg)
	if err != nil {
		c.logger.Errorw("failed to build session from credential bundle",
			"stage", "session", "error", err)
		return false
	}

	doc, err := fetchServiceDescription(ctx, session, c.cfg.WSDLURL())
	if err != nil {
		c.logger.Errorw("service description probe failed",
			"stage", "probe", "url", c.cfg.WSDLURL(), "error", err)
		return false
	}

	degraded := false
	catalog, err := parseCatalog(doc)
	if err != nil {
		c.logger.Infow("falling back to minimal operation catalog",
			"stage", "catalog", "error", err)
		catalog = minimalCatalog()
		degraded = true
	}

	soap, err := c.connect(c.cfg.WSDLURL(), session)
	if err != nil {
		c.logger.Errorw("failed to create SOAP client",
			"stage", "soap", "error", err)
		return false
	}

	version, err := fetchVersion(soap)
	if err != nil {
		c.logger.Errorw("version check failed",
			"stage", "version", "error", truncate(err.Error(), errDetailLimit))
		return false
	}
	if version == "" {
		c.logger.Errorw("remote returned an empty version", "stage", "version")
		return false
	}

	c.session = session
	c.soap = soap
	c.catalog = catalog
	c.degraded = degraded
	c.version = version
	c.initialized = true

	c.logger.Infow("EJBCA client initialized",
		"version", version, "operations", len(catalog), "degraded", degraded)
	return true
}

// fetchVersion performs the end-to-end confidence check during
// initialization, before the client is marked usable.
func fetchVersion(soap dispatcher) (string, error) {
	res, err := soap.call(opGetVersion, gosoap.Params{})
	if err != nil {
		return "", err
	}
	var out getVersionResponse
	if err := xml.Unmarshal(res.Body, &out); err != nil {
		return "", err
	}
	return out.Return, nil
}

// ensure returns the live dispatcher and catalog, attempting exactly one
// initialization if the client is not currently initialized.
func (c *Client) ensure(ctx context.Context) (dispatcher, map[string]struct{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.initialized {
		if !c.initializeLocked(ctx) {
			return nil, nil, ErrNotInitialized
		}
	}
	return c.soap, c.catalog, nil
}

// CallOperation dispatches the named operation with the given parameter
// mapping and returns the raw result. Operation names missing from the
// catalog are rejected before any network attempt. A single failed call is
// not retried: mutating operations are not safely retryable without
// caller-level deduplication.
func (c *Client) CallOperation(ctx context.Context, name string, params Params) (*Result, error) {
	soap, catalog, err := c.ensure(ctx)
	if err != nil {
		return nil, err
	}

	if _, ok := catalog[name]; !ok {
		return nil, &UnknownOperationError{Operation: name}
	}

	if params == nil {
		params = Params{}
	}

	res, err := soap.call(name, params)
	if err != nil {
		c.logger.Errorw("operation failed",
			"operation", name, "error", truncate(err.Error(), errDetailLimit))
		return nil, &TransportError{Operation: name, Err: err}
	}

	if fault := parseFault(res.Body); fault != nil {
		c.logger.Errorw("remote fault",
			"operation", name, "fault", truncate(fault.Message, errDetailLimit))
		return nil, &RemoteFault{
			Operation: name,
			Code:      fault.Code,
			Message:   truncate(fault.Message, errDetailLimit),
		}
	}

	return &Result{Body: res.Body}, nil
}

// Initialized reports whether the client currently holds a verified
// session.
func (c *Client) Initialized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initialized
}

// Version returns the last known remote version, or the empty string.
func (c *Client) Version() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

// Operations returns the sorted names of the discovered operation catalog.
func (c *Client) Operations() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return catalogNames(c.catalog)
}

// HasOperation reports whether name is present in the discovered catalog.
func (c *Client) HasOperation(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.catalog[name]
	return ok
}

// Status returns a snapshot of the client state.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		Initialized: c.initialized,
		Degraded:    c.degraded,
		Version:     c.version,
		Operations:  len(c.catalog),
		ServiceURL:  c.cfg.ServiceURL(),
	}
}

// soapFault is the subset of a SOAP fault element surfaced to callers.
type soapFault struct {
	XMLName xml.Name `xml:"Fault"`
	Code    string   `xml:"faultcode"`
	Message string   `xml:"faultstring"`
}

// parseFault detects an application fault in a response body. The body of
// a successful call carries the operation response element instead, in
// which case decoding into the fault structure fails and nil is returned.
func parseFault(body []byte) *soapFault {
	var fault soapFault
	if err := xml.Unmarshal(body, &fault); err != nil {
		return nil
	}
	if fault.Code == "" && fault.Message == "" {
		return nil
	}
	return &fault
}
