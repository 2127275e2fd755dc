package ejbca

import (
	"fmt"
	"time"
)

const (
	defaultProtocol = "https"
	defaultPort     = 8443
	defaultTimeout  = 30 * time.Second

	// servicePath is the fixed path of the EJBCA SOAP web service.
	servicePath = "/ejbca/ejbcaws/ejbcaws"
)

// Config contains the connection settings for the EJBCA web service. The
// credential bundle is a PKCS#12 archive holding the client certificate and
// private key used for mutual TLS authentication.
type Config struct {
	Host           string
	Port           int
	Protocol       string
	BundlePath     string
	BundlePassword string
	Timeout        time.Duration
}

// ServiceURL returns the SOAP invocation URL.
func (c Config) ServiceURL() string {
	protocol := c.Protocol
	if protocol == "" {
		protocol = defaultProtocol
	}
	port := c.Port
	if port == 0 {
		port = defaultPort
	}
	return fmt.Sprintf("%s://%s:%d%s", protocol, c.Host, port, servicePath)
}

// WSDLURL returns the URL of the service description document.
func (c Config) WSDLURL() string {
	return c.ServiceURL() + "?wsdl"
}

func (c Config) timeout() time.Duration {
	if c.Timeout == 0 {
		return defaultTimeout
	}
	return c.Timeout
}
