package placement

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

// TransportConfig carries the TLS and timeout knobs of the HTTP transport.
type TransportConfig struct {
	// CACert is a path to a PEM bundle that replaces the system roots when
	// verifying the service certificate.
	CACert string
	// Insecure disables certificate verification entirely.
	Insecure bool
	// Timeout bounds each request including body read. Zero means no limit.
	Timeout time.Duration
}

// NewTransport builds the *http.Client commands hand to NewClient.
func NewTransport(cfg TransportConfig) (*http.Client, error) {
	client := &http.Client{Timeout: cfg.Timeout}
	caPath := strings.TrimSpace(cfg.CACert)
	if caPath == "" && !cfg.Insecure {
		return client, nil
	}

	tlsCfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: cfg.Insecure,
	}
	if caPath != "" {
		caPEM, err := os.ReadFile(caPath)
		if err != nil {
			return nil, err
		}
		pool := x509.NewCertPool()
		if ok := pool.AppendCertsFromPEM(caPEM); !ok {
			return nil, fmt.Errorf("placement: parse tls ca bundle: %s", caPath)
		}
		tlsCfg.RootCAs = pool
	}
	client.Transport = &http.Transport{TLSClientConfig: tlsCfg}
	return client, nil
}
