package httpx

import "golang.org/x/crypto/acme/autocert"

type TLS struct {
	CertManager *autocert.Manager
}

// NewTLSConfig makes a Let's Encrypt certificate manager that keeps
// certificates in the cache dir. A non-empty host restricts issuance to it.
func NewTLSConfig(host, cache string) *TLS {
	m := &autocert.Manager{Prompt: autocert.AcceptTOS, Cache: autocert.DirCache(cache)}
	if host != "" {
		m.HostPolicy = autocert.HostWhitelist(host)
	}
	return &TLS{CertManager: m}
}
