package ejbca

// Operation name constants for the typed wrappers. The names are fixed by
// the remote web service and must not be altered.
const (
	opCertificateRequest       = "certificateRequest"
	opCheckRevokationStatus    = "checkRevokationStatus"
	opCreateCRL                = "createCRL"
	opCRMFRequest              = "crmfRequest"
	opEditUser                 = "editUser"
	opFindCerts                = "findCerts"
	opFindUser                 = "findUser"
	opGetAuthorizedEEProfiles  = "getAuthorizedEndEntityProfiles"
	opGetAvailableCAs          = "getAvailableCAs"
	opGetAvailableCertProfiles = "getAvailableCertificateProfiles"
	opGetCertificate           = "getCertificate"
	opGetCertsByExpirationTime = "getCertificatesByExpirationTime"
	opGetLastCAChain           = "getLastCAChain"
	opGetLatestCRL             = "getLatestCRL"
	opGetVersion               = "getEjbcaVersion"
	opPKCS10Request            = "pkcs10Request"
	opRevokeCert               = "revokeCert"
	opRevokeUser               = "revokeUser"
)

// KnownOperations is the full set of operations published by the EJBCA web
// service. It is used by the raw SOAP gateway endpoints to reject unknown
// names before dispatch; the authoritative catalog is still the one
// discovered from the service description at initialization.
var KnownOperations = []string{
	"addSubjectToRole",
	"caCertResponse",
	"caCertResponseForRollover",
	"caRenewCertRequest",
	"certificateRequest",
	"checkRevokationStatus",
	"createCA",
	"createCRL",
	"createCryptoToken",
	"createExternallySignedCa",
	"crmfRequest",
	"customLog",
	"cvcRequest",
	"deleteUserDataFromSource",
	"editUser",
	"enrollAndIssueSshCertificate",
	"existsHardToken",
	"fetchUserData",
	"findCerts",
	"findUser",
	"generateCryptoTokenKeys",
	"genTokenCertificates",
	"getAuthorizedEndEntityProfiles",
	"getAvailableCAs",
	"getAvailableCAsInProfile",
	"getAvailableCertificateProfiles",
	"getCertificate",
	"getCertificatesByExpirationTime",
	"getCertificatesByExpirationTimeAndIssuer",
	"getCertificatesByExpirationTimeAndType",
	"getEjbcaVersion",
	"getHardTokenData",
	"getHardTokenDatas",
	"getLastCAChain",
	"getLastCertChain",
	"getLatestCRL",
	"getLatestCRLPartition",
	"getProfile",
	"getPublisherQueueLength",
	"getRemainingNumberOfApprovals",
	"getSshCaPublicKey",
	"importCaCert",
	"isApproved",
	"isAuthorized",
	"keyRecover",
	"keyRecoverEnroll",
	"keyRecoverNewest",
	"pkcs10Request",
	"pkcs12Req",
	"removeSubjectFromRole",
	"republishCertificate",
	"revokeCert",
	"revokeCertBackdated",
	"revokeCertWithMetadata",
	"revokeToken",
	"revokeUser",
	"rolloverCACert",
	"softTokenRequest",
	"spkacRequest",
}

// minimalOperations is the fallback catalog installed when the service
// description cannot be parsed. It keeps the core user and certificate
// operations usable while the client runs in degraded mode.
var minimalOperations = []string{
	opGetVersion,
	opGetAvailableCAs,
	opFindUser,
	opEditUser,
	opRevokeCert,
	opGetCertificate,
	opPKCS10Request,
	opRevokeUser,
}

// IsKnownOperation reports whether name is part of the published web
// service interface.
func IsKnownOperation(name string) bool {
	for _, op := range KnownOperations {
		if op == name {
			return true
		}
	}
	return false
}
