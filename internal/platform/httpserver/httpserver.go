// Package httpserver builds the process's HTTP server.
package httpserver

import (
	"net/http"
	"time"
)

// Timeouts are sized for the traffic this API actually sees: kiosk taps and
// report reads are small JSON exchanges, while sheet imports can carry a few
// thousand rows and need a wider write window.
const (
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 15 * time.Second
	writeTimeout      = 60 * time.Second
	idleTimeout       = 2 * time.Minute
)

// New builds the API server around the given router.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
}
