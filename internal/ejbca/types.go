package ejbca

import (
	"encoding/base64"
	"encoding/xml"
	"strconv"

	"github.com/tiaguinho/gosoap"
)

// Match criterion codes. These are numeric enumerations fixed by the remote
// web service and must be preserved verbatim.
const (
	MatchWithUsername           = 0
	MatchWithEmail              = 1
	MatchWithStatus             = 2
	MatchWithEndEntityProfile   = 3
	MatchWithCertificateProfile = 4
	MatchWithCA                 = 5
	MatchWithToken              = 6
	MatchWithDN                 = 7
)

const (
	MatchTypeEquals     = 0
	MatchTypeBeginsWith = 1
	MatchTypeContains   = 2
)

// End-entity status codes.
const (
	StatusNew         = 10
	StatusFailed      = 11
	StatusInitialized = 20
	StatusInProcess   = 30
	StatusGenerated   = 40
	StatusRevoked     = 50
	StatusHistorical  = 60
	StatusKeyRecovery = 70
)

// Revocation reason codes.
const (
	ReasonNotRevoked           = -1
	ReasonUnspecified          = 0
	ReasonKeyCompromise        = 1
	ReasonCACompromise         = 2
	ReasonAffiliationChanged   = 3
	ReasonSuperseded           = 4
	ReasonCessationOfOperation = 5
	ReasonCertificateHold      = 6
	ReasonRemoveFromCRL        = 8
	ReasonPrivilegesWithdrawn  = 9
	ReasonAACompromise         = 10
)

// Token types.
const (
	TokenTypeUserGenerated = "USERGENERATED"
	TokenTypeP12           = "P12"
	TokenTypeJKS           = "JKS"
	TokenTypePEM           = "PEM"
)

// Certificate response types.
const (
	ResponseTypeCertificate     = "CERTIFICATE"
	ResponseTypePKCS7           = "PKCS7"
	ResponseTypePKCS7WithChain  = "PKCS7WITHCHAIN"
	ResponseTypeUnprotectedP12  = "PUBLICKEY"
	NotRevokedStatusDescription = "NOT_REVOKED"
)

// Request encodings accepted by the one-shot certificateRequest operation.
const (
	RequestTypePKCS10 = 0
	RequestTypeCRMF   = 1
)

// decodeBase64 decodes a base64 payload as transmitted in response
// character data.
func decodeBase64(data []byte) ([]byte, error) {
	return base64.StdEncoding.DecodeString(string(data))
}

// UserMatch is the structured search criterion accepted by findUser. The
// match value is passed through opaquely: usernames containing '=' or ','
// must not be interpreted as distinguished names.
type UserMatch struct {
	MatchWith  int
	MatchType  int
	MatchValue string
}

func (m UserMatch) params() gosoap.Params {
	return gosoap.Params{
		"matchwith":  strconv.Itoa(m.MatchWith),
		"matchtype":  strconv.Itoa(m.MatchType),
		"matchvalue": m.MatchValue,
	}
}

// UserData mirrors the remote userDataVOWS structure used by editUser. The
// remote field names are part of its contract and are assembled in params;
// they do not leak into calling code.
type UserData struct {
	Username               string
	Password               string
	ClearPwd               bool
	SubjectDN              string
	CAName                 string
	SubjectAltName         string
	Email                  string
	Status                 int
	TokenType              string
	SendNotification       bool
	KeyRecoverable         bool
	EndEntityProfileName   string
	CertificateProfileName string
}

// withDefaults fills the conventional defaults for fields left unset.
func (u UserData) withDefaults() UserData {
	if u.CAName == "" {
		u.CAName = "ManagementCA"
	}
	if u.Status == 0 {
		u.Status = StatusNew
	}
	if u.TokenType == "" {
		u.TokenType = TokenTypeUserGenerated
	}
	if u.EndEntityProfileName == "" {
		u.EndEntityProfileName = "EMPTY"
	}
	if u.CertificateProfileName == "" {
		u.CertificateProfileName = "ENDUSER"
	}
	return u
}

// params assembles the remote field mapping. Every value travels as
// character data, so numbers and booleans are rendered as text.
func (u UserData) params() gosoap.Params {
	return gosoap.Params{
		"username":               u.Username,
		"password":               u.Password,
		"clearPwd":               strconv.FormatBool(u.ClearPwd),
		"subjectDN":              u.SubjectDN,
		"caName":                 u.CAName,
		"subjectAltName":         u.SubjectAltName,
		"email":                  u.Email,
		"status":                 strconv.Itoa(u.Status),
		"tokenType":              u.TokenType,
		"sendNotification":       strconv.FormatBool(u.SendNotification),
		"keyRecoverable":         strconv.FormatBool(u.KeyRecoverable),
		"endEntityProfileName":   u.EndEntityProfileName,
		"certificateProfileName": u.CertificateProfileName,
	}
}

// UserRecord is a user entry returned by findUser.
type UserRecord struct {
	Username               string `xml:"username" json:"username"`
	SubjectDN              string `xml:"subjectDN" json:"subjectDN"`
	CAName                 string `xml:"caName" json:"caName"`
	SubjectAltName         string `xml:"subjectAltName" json:"subjectAltName"`
	Email                  string `xml:"email" json:"email"`
	Status                 int    `xml:"status" json:"status"`
	TokenType              string `xml:"tokenType" json:"tokenType"`
	EndEntityProfileName   string `xml:"endEntityProfileName" json:"endEntityProfileName"`
	CertificateProfileName string `xml:"certificateProfileName" json:"certificateProfileName"`
}

// NameAndID is a name/identifier pair, used for CA and profile listings.
type NameAndID struct {
	Name string `xml:"name" json:"name"`
	ID   int64  `xml:"id" json:"id"`
}

// CertificateRecord is a certificate entry as returned by getCertificate,
// findCerts and getLastCAChain. Certificate bytes travel base64-encoded.
type CertificateRecord struct {
	Data []byte `xml:"certificate" json:"-"`
	Type string `xml:"type" json:"type,omitempty"`
}

// DER returns the decoded certificate bytes.
func (c CertificateRecord) DER() ([]byte, error) {
	return base64.StdEncoding.DecodeString(string(c.Data))
}

// Base64 returns the certificate payload as transmitted.
func (c CertificateRecord) Base64() string {
	return string(c.Data)
}

// IssuedCertificate is the payload returned by the certificate issuance
// operations (pkcs10Request, crmfRequest, certificateRequest).
type IssuedCertificate struct {
	Data         []byte `xml:"data"`
	ResponseType string `xml:"responseType"`
}

// DER returns the decoded issuance payload.
func (c IssuedCertificate) DER() ([]byte, error) {
	return base64.StdEncoding.DecodeString(string(c.Data))
}

// RevocationStatus is the result of checkRevokationStatus.
type RevocationStatus struct {
	IssuerDN       string `xml:"issuerDN" json:"issuerDN"`
	CertificateSN  string `xml:"certificateSN" json:"certificateSN"`
	Reason         int    `xml:"reason" json:"reason"`
	RevocationDate string `xml:"revocationDate" json:"revocationDate,omitempty"`
}

// Revoked reports whether the status describes a revoked certificate.
func (s RevocationStatus) Revoked() bool {
	return s.Reason != ReasonNotRevoked
}

// Typed response envelopes. The XML names match the remote operation
// response elements.
type getVersionResponse struct {
	XMLName xml.Name `xml:"getEjbcaVersionResponse"`
	Return  string   `xml:"return"`
}

type getAvailableCAsResponse struct {
	XMLName xml.Name    `xml:"getAvailableCAsResponse"`
	Return  []NameAndID `xml:"return"`
}

type findUserResponse struct {
	XMLName xml.Name     `xml:"findUserResponse"`
	Return  []UserRecord `xml:"return"`
}

type getCertificateResponse struct {
	XMLName xml.Name           `xml:"getCertificateResponse"`
	Return  *CertificateRecord `xml:"return"`
}

type findCertsResponse struct {
	XMLName xml.Name            `xml:"findCertsResponse"`
	Return  []CertificateRecord `xml:"return"`
}

type pkcs10RequestResponse struct {
	XMLName xml.Name          `xml:"pkcs10RequestResponse"`
	Return  IssuedCertificate `xml:"return"`
}

type crmfRequestResponse struct {
	XMLName xml.Name          `xml:"crmfRequestResponse"`
	Return  IssuedCertificate `xml:"return"`
}

type certificateRequestResponse struct {
	XMLName xml.Name          `xml:"certificateRequestResponse"`
	Return  IssuedCertificate `xml:"return"`
}

type getLastCAChainResponse struct {
	XMLName xml.Name            `xml:"getLastCAChainResponse"`
	Return  []CertificateRecord `xml:"return"`
}

type getLatestCRLResponse struct {
	XMLName xml.Name `xml:"getLatestCRLResponse"`
	Return  []byte   `xml:"return"`
}

type getAuthorizedEEProfilesResponse struct {
	XMLName xml.Name    `xml:"getAuthorizedEndEntityProfilesResponse"`
	Return  []NameAndID `xml:"return"`
}

type getAvailableCertProfilesResponse struct {
	XMLName xml.Name    `xml:"getAvailableCertificateProfilesResponse"`
	Return  []NameAndID `xml:"return"`
}

type checkRevokationStatusResponse struct {
	XMLName xml.Name          `xml:"checkRevokationStatusResponse"`
	Return  *RevocationStatus `xml:"return"`
}

type getCertsByExpirationTimeResponse struct {
	XMLName xml.Name            `xml:"getCertificatesByExpirationTimeResponse"`
	Return  []CertificateRecord `xml:"return"`
}
