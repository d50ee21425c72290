package middleware

import (
	"log"
	"net/http"
	"os"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// Logger is chi's request logger with the WebSocket ?token= value masked.
var Logger = NewLogger(log.New(os.Stdout, "", log.LstdFlags))

func NewLogger(logger chiMiddleware.LoggerInterface) func(http.Handler) http.Handler {
	return chiMiddleware.RequestLogger(redactingFormatter{
		LogFormatter: &chiMiddleware.DefaultLogFormatter{Logger: logger, NoColor: true},
	})
}

type redactingFormatter struct {
	chiMiddleware.LogFormatter
}

func (f redactingFormatter) NewLogEntry(r *http.Request) chiMiddleware.LogEntry {
	return f.LogFormatter.NewLogEntry(redactToken(r))
}

// redactToken returns a shallow copy of r for logging only. The request
// handed to the next handler keeps its token.
func redactToken(r *http.Request) *http.Request {
	q := r.URL.Query()
	if !q.Has("token") {
		return r
	}
	q.Set("token", "REDACTED")

	u := *r.URL
	u.RawQuery = q.Encode()
	logged := r.WithContext(r.Context())
	logged.URL = &u
	logged.RequestURI = u.RequestURI()
	return logged
}
