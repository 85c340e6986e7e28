package config

import (
	"fmt"
	"os"
)

// Template returns the starter client config document.
func Template() string {
	return clientTemplate
}

// WriteTemplate writes the starter config to path. Existing files survive
// unless overwrite is set.
func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(clientTemplate), 0o600)
}

const clientTemplate = `endpoint = "http://127.0.0.1:8778"
api_version = "1.0"
service_type = "placement"

# token = "bearer-token-passed-as-x-auth-token"
# ca_cert = "/etc/placectl/ca.pem"
# insecure = false
# timeout = "30s"
`
