package customHttpClient

import (
	"net/http"
	"sync"

	"github.com/akolanti/GroundedQA/internal/config"
)

var customTransport = &http.Transport{
	Proxy:               http.ProxyFromEnvironment,
	MaxIdleConns:        config.MaxIdleConns,
	MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
	IdleConnTimeout:     config.IdleConnTimeout,
	ForceAttemptHTTP2:   true,
}

var once sync.Once
var pooled *http.Client

// GetClient returns the shared client used for provider calls so that
// embedding, synthesis and search requests reuse warm connections.
// Deadlines come from the request context, not from the client.
func GetClient() *http.Client {
	once.Do(func() {
		pooled = &http.Client{Transport: customTransport}
	})
	return pooled
}

// CloseIdle drops pooled connections, used at shutdown.
func CloseIdle() {
	customTransport.CloseIdleConnections()
}
