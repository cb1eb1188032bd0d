package httputil

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"cleanistic/config"
)

type Clients struct {
	Vision *http.Client // direct, for the vision API
	Lookup *http.Client // optionally proxied, for property record sites
}

// NewClients fails when a proxy is configured but unusable, rather than
// sending lookups direct
func NewClients(cfg *config.Config) (*Clients, error) {
	lookup, err := newLookupClient(cfg.Proxy, cfg.Lookup.Timeout)
	if err != nil {
		return nil, err
	}
	return &Clients{
		Vision: &http.Client{Timeout: cfg.Vision.Timeout},
		Lookup: lookup,
	}, nil
}

func newLookupClient(proxyCfg config.ProxyConfig, timeout time.Duration) (*http.Client, error) {
	if proxyCfg.URL == "" {
		return &http.Client{Timeout: timeout}, nil
	}

	proxyURL, err := url.Parse(proxyCfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_PROXY_URL: %w", err)
	}
	if proxyURL.Scheme == "" || proxyURL.Host == "" {
		return nil, fmt.Errorf("invalid HTTP_PROXY_URL: want scheme://host:port")
	}

	transport := &http.Transport{
		Proxy:             http.ProxyURL(proxyURL),
		ForceAttemptHTTP2: false,
		TLSNextProto:      make(map[string]func(string, *tls.Conn) http.RoundTripper),
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}, nil
}
