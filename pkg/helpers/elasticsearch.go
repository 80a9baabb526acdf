package helpers

import (
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
)

// NewESClient builds the client for the task search index. Blank entries in
// addrs are ignored; at least one address is required. Requests are retried
// on 502/503/504 and on 429 with a linear backoff.
func NewESClient(addrs []string, username, password string) (*elasticsearch.Client, error) {
	cfg, err := esConfig(addrs, username, password)
	if err != nil {
		return nil, err
	}
	return elasticsearch.NewClient(cfg)
}

func esConfig(addrs []string, username, password string) (elasticsearch.Config, error) {
	clean := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if a = strings.TrimSpace(a); a != "" {
			clean = append(clean, strings.TrimRight(a, "/"))
		}
	}
	if len(clean) == 0 {
		return elasticsearch.Config{}, errors.New("elasticsearch: no addresses configured")
	}
	return elasticsearch.Config{
		Addresses:     clean,
		Username:      username,
		Password:      password,
		RetryOnStatus: []int{http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout},
		MaxRetries:    2,
		RetryBackoff:  func(attempt int) time.Duration { return time.Duration(attempt) * 100 * time.Millisecond },
		Transport: &http.Transport{
			MaxIdleConnsPerHost:   10,
			ResponseHeaderTimeout: 5 * time.Second,
			TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
			DialContext:           (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
		},
	}, nil
}
