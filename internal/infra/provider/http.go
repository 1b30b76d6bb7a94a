package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"
)

// newHTTPClient builds the shared client shape for hosted providers.
func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// classifyStatus maps an HTTP error status onto the call error taxonomy.
func classifyStatus(providerName string, status int, retryAfter string, body string) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &CallError{
			Provider: providerName,
			Kind:     KindInvalidCredentials,
			Err:      fmt.Errorf("http %d: %s", status, body),
		}
	case status == http.StatusTooManyRequests:
		return &CallError{
			Provider:   providerName,
			Kind:       KindRateLimited,
			RetryAfter: parseRetryAfter(retryAfter),
			Err:        fmt.Errorf("rate limited (429): %s", body),
		}
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return &CallError{
			Provider: providerName,
			Kind:     KindTimeout,
			Err:      fmt.Errorf("http %d: %s", status, body),
		}
	default:
		return &CallError{
			Provider: providerName,
			Kind:     KindTransport,
			Err:      fmt.Errorf("http %d: %s", status, body),
		}
	}
}

// classifyTransport maps a transport-level error (dial, TLS, client
// timeout) onto the call error taxonomy.
func classifyTransport(providerName string, err error) error {
	kind := KindTransport
	if errors.Is(err, context.DeadlineExceeded) {
		kind = KindTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		kind = KindTimeout
	}
	return &CallError{Provider: providerName, Kind: kind, Err: err}
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

func truncateBody(b []byte) string {
	const max = 300
	if len(b) > max {
		return string(b[:max])
	}
	return string(b)
}
