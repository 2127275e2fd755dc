package ejbca

import (
	"context"
	"strconv"

	"github.com/tiaguinho/gosoap"
)

// EnrollmentRequest carries an issuance request against an existing end
// entity. The request payload is the base64 text of a PKCS#10 CSR or a
// CRMF message depending on the operation.
type EnrollmentRequest struct {
	Username     string
	Password     string
	Request      string
	HardTokenSN  string
	ResponseType string
}

// The remote names enrollment parameters arg0..arg4; the optional hard
// token serial is omitted entirely when empty.
func (r EnrollmentRequest) params() gosoap.Params {
	responseType := r.ResponseType
	if responseType == "" {
		responseType = ResponseTypeCertificate
	}
	p := gosoap.Params{
		"arg0": r.Username,
		"arg1": r.Password,
		"arg2": r.Request,
		"arg4": responseType,
	}
	if r.HardTokenSN != "" {
		p["arg3"] = r.HardTokenSN
	}
	return p
}

// GetVersion returns the remote version string.
func (c *Client) GetVersion(ctx context.Context) (string, error) {
	res, err := c.CallOperation(ctx, opGetVersion, nil)
	if err != nil {
		return "", err
	}
	var out getVersionResponse
	if err := res.Unmarshal(&out); err != nil {
		return "", &TransportError{Operation: opGetVersion, Err: err}
	}
	return out.Return, nil
}

// GetAvailableCAs lists the certificate authorities the session credential
// is authorized to see.
func (c *Client) GetAvailableCAs(ctx context.Context) ([]NameAndID, error) {
	res, err := c.CallOperation(ctx, opGetAvailableCAs, nil)
	if err != nil {
		return nil, err
	}
	var out getAvailableCAsResponse
	if err := res.Unmarshal(&out); err != nil {
		return nil, &TransportError{Operation: opGetAvailableCAs, Err: err}
	}
	return out.Return, nil
}

// FindUser looks up end entities by exact username. The username is
// matched opaquely even when it contains '=' or ',' characters.
func (c *Client) FindUser(ctx context.Context, username string) ([]UserRecord, error) {
	return c.FindUsers(ctx, UserMatch{
		MatchWith:  MatchWithUsername,
		MatchType:  MatchTypeEquals,
		MatchValue: username,
	})
}

// FindUsers looks up end entities by an arbitrary match criterion.
func (c *Client) FindUsers(ctx context.Context, match UserMatch) ([]UserRecord, error) {
	res, err := c.CallOperation(ctx, opFindUser, Params{"arg0": match.params()})
	if err != nil {
		return nil, err
	}
	var out findUserResponse
	if err := res.Unmarshal(&out); err != nil {
		return nil, &TransportError{Operation: opFindUser, Err: err}
	}
	return out.Return, nil
}

// EditUser creates the end entity or updates it when it already exists.
// Unset fields receive the conventional defaults.
func (c *Client) EditUser(ctx context.Context, user UserData) error {
	_, err := c.CallOperation(ctx, opEditUser, Params{"arg0": user.withDefaults().params()})
	return err
}

// RevokeCert revokes a single certificate identified by issuer DN and hex
// serial number.
func (c *Client) RevokeCert(ctx context.Context, issuerDN, serialNumber string, reason int) error {
	_, err := c.CallOperation(ctx, opRevokeCert, Params{
		"arg0": issuerDN,
		"arg1": serialNumber,
		"arg2": strconv.Itoa(reason),
	})
	return err
}

// RevokeUser revokes every certificate of the end entity and optionally
// deletes the entity afterwards.
func (c *Client) RevokeUser(ctx context.Context, username string, reason int, deleteUser bool) error {
	_, err := c.CallOperation(ctx, opRevokeUser, Params{
		"arg0": username,
		"arg1": strconv.Itoa(reason),
		"arg2": strconv.FormatBool(deleteUser),
	})
	return err
}

// GetCertificate fetches one certificate by issuer DN and hex serial
// number. A nil record means the certificate is unknown to the remote.
func (c *Client) GetCertificate(ctx context.Context, issuerDN, serialNumber string) (*CertificateRecord, error) {
	res, err := c.CallOperation(ctx, opGetCertificate, Params{
		"arg0": serialNumber,
		"arg1": issuerDN,
	})
	if err != nil {
		return nil, err
	}
	var out getCertificateResponse
	if err := res.Unmarshal(&out); err != nil {
		return nil, &TransportError{Operation: opGetCertificate, Err: err}
	}
	return out.Return, nil
}

// FindCerts searches certificates by username. Expired certificates are
// included when onlyValid is false.
func (c *Client) FindCerts(ctx context.Context, username string, onlyValid bool) ([]CertificateRecord, error) {
	res, err := c.CallOperation(ctx, opFindCerts, Params{
		"arg0": username,
		"arg1": strconv.FormatBool(onlyValid),
	})
	if err != nil {
		return nil, err
	}
	var out findCertsResponse
	if err := res.Unmarshal(&out); err != nil {
		return nil, &TransportError{Operation: opFindCerts, Err: err}
	}
	return out.Return, nil
}

// PKCS10Request submits a PKCS#10 CSR for the end entity and returns the
// issued certificate payload.
func (c *Client) PKCS10Request(ctx context.Context, req EnrollmentRequest) (*IssuedCertificate, error) {
	res, err := c.CallOperation(ctx, opPKCS10Request, req.params())
	if err != nil {
		return nil, err
	}
	var out pkcs10RequestResponse
	if err := res.Unmarshal(&out); err != nil {
		return nil, &TransportError{Operation: opPKCS10Request, Err: err}
	}
	return &out.Return, nil
}

// CRMFRequest submits a CRMF message for the end entity and returns the
// issued certificate payload.
func (c *Client) CRMFRequest(ctx context.Context, req EnrollmentRequest) (*IssuedCertificate, error) {
	res, err := c.CallOperation(ctx, opCRMFRequest, req.params())
	if err != nil {
		return nil, err
	}
	var out crmfRequestResponse
	if err := res.Unmarshal(&out); err != nil {
		return nil, &TransportError{Operation: opCRMFRequest, Err: err}
	}
	return &out.Return, nil
}

// CertificateRequest registers or updates the end entity described by user
// and enrolls it in one round trip. The request payload encoding is named
// by requestType (RequestTypePKCS10 or RequestTypeCRMF).
func (c *Client) CertificateRequest(ctx context.Context, user UserData, request string, requestType int, responseType string) (*IssuedCertificate, error) {
	if responseType == "" {
		responseType = ResponseTypeCertificate
	}
	res, err := c.CallOperation(ctx, opCertificateRequest, Params{
		"arg0": user.withDefaults().params(),
		"arg1": request,
		"arg2": strconv.Itoa(requestType),
		"arg4": responseType,
	})
	if err != nil {
		return nil, err
	}
	var out certificateRequestResponse
	if err := res.Unmarshal(&out); err != nil {
		return nil, &TransportError{Operation: opCertificateRequest, Err: err}
	}
	return &out.Return, nil
}

// GetLastCAChain returns the certificate chain of the named CA, leaf
// first.
func (c *Client) GetLastCAChain(ctx context.Context, caName string) ([]CertificateRecord, error) {
	res, err := c.CallOperation(ctx, opGetLastCAChain, Params{"arg0": caName})
	if err != nil {
		return nil, err
	}
	var out getLastCAChainResponse
	if err := res.Unmarshal(&out); err != nil {
		return nil, &TransportError{Operation: opGetLastCAChain, Err: err}
	}
	return out.Return, nil
}

// GetLatestCRL returns the most recent CRL of the named CA in DER form.
func (c *Client) GetLatestCRL(ctx context.Context, caName string, delta bool) ([]byte, error) {
	res, err := c.CallOperation(ctx, opGetLatestCRL, Params{
		"arg0": caName,
		"arg1": strconv.FormatBool(delta),
	})
	if err != nil {
		return nil, err
	}
	var out getLatestCRLResponse
	if err := res.Unmarshal(&out); err != nil {
		return nil, &TransportError{Operation: opGetLatestCRL, Err: err}
	}
	return decodeBase64(out.Return)
}

// CreateCRL asks the named CA to generate a fresh CRL.
func (c *Client) CreateCRL(ctx context.Context, caName string) error {
	_, err := c.CallOperation(ctx, opCreateCRL, Params{"arg0": caName})
	return err
}

// GetAuthorizedEndEntityProfiles lists the end-entity profiles the session
// credential may use.
func (c *Client) GetAuthorizedEndEntityProfiles(ctx context.Context) ([]NameAndID, error) {
	res, err := c.CallOperation(ctx, opGetAuthorizedEEProfiles, nil)
	if err != nil {
		return nil, err
	}
	var out getAuthorizedEEProfilesResponse
	if err := res.Unmarshal(&out); err != nil {
		return nil, &TransportError{Operation: opGetAuthorizedEEProfiles, Err: err}
	}
	return out.Return, nil
}

// GetAvailableCertificateProfiles lists the certificate profiles available
// under the given end-entity profile.
func (c *Client) GetAvailableCertificateProfiles(ctx context.Context, endEntityProfileID int64) ([]NameAndID, error) {
	res, err := c.CallOperation(ctx, opGetAvailableCertProfiles, Params{"arg0": strconv.FormatInt(endEntityProfileID, 10)})
	if err != nil {
		return nil, err
	}
	var out getAvailableCertProfilesResponse
	if err := res.Unmarshal(&out); err != nil {
		return nil, &TransportError{Operation: opGetAvailableCertProfiles, Err: err}
	}
	return out.Return, nil
}

// CheckRevocationStatus reports the revocation state of one certificate.
// A nil status means the certificate is unknown to the remote.
func (c *Client) CheckRevocationStatus(ctx context.Context, issuerDN, serialNumber string) (*RevocationStatus, error) {
	res, err := c.CallOperation(ctx, opCheckRevokationStatus, Params{
		"arg0": issuerDN,
		"arg1": serialNumber,
	})
	if err != nil {
		return nil, err
	}
	var out checkRevokationStatusResponse
	if err := res.Unmarshal(&out); err != nil {
		return nil, &TransportError{Operation: opCheckRevokationStatus, Err: err}
	}
	return out.Return, nil
}

// GetCertificatesByExpirationTime lists certificates expiring within the
// given number of days.
func (c *Client) GetCertificatesByExpirationTime(ctx context.Context, days int, maxResults int) ([]CertificateRecord, error) {
	res, err := c.CallOperation(ctx, opGetCertsByExpirationTime, Params{
		"arg0": strconv.Itoa(days),
		"arg1": strconv.Itoa(maxResults),
	})
	if err != nil {
		return nil, err
	}
	var out getCertsByExpirationTimeResponse
	if err := res.Unmarshal(&out); err != nil {
		return nil, &TransportError{Operation: opGetCertsByExpirationTime, Err: err}
	}
	return out.Return, nil
}
