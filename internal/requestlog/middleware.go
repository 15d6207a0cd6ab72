package requestlog

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

const (
	timestampLayout = "2006-01-02 15:04:05"

	// bodies this long or longer are summarized instead of stored
	largeBody = 500
	readLimit = 64 << 10
)

var sensitiveFields = regexp.MustCompile(`("(?:password|token)"\s*:\s*")([^"]+)(")`)

// Recorder captures requests into a Ring. Paths listed in Skip are ignored.
type Recorder struct {
	ring *Ring
	skip map[string]bool
	now  func() time.Time
}

func NewRecorder(ring *Ring, skip ...string) *Recorder {
	r := &Recorder{
		ring: ring,
		skip: make(map[string]bool, len(skip)),
		now:  time.Now,
	}
	for _, p := range skip {
		r.skip[p] = true
	}
	return r
}

func (rec *Recorder) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rec.skip[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		e := Entry{
			Timestamp:   rec.now().Format(timestampLayout),
			Method:      r.Method,
			Path:        r.URL.Path,
			QueryParams: r.URL.RawQuery,
		}

		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			e.RequestBody = rec.captureBody(r)
		}

		rec.ring.Add(e)
		next.ServeHTTP(w, r)
	})
}

// captureBody reads up to readLimit bytes and puts them back in front of
// whatever is left so the handler still sees the full body.
func (rec *Recorder) captureBody(r *http.Request) string {
	if r.Body == nil {
		return ""
	}

	buf, err := io.ReadAll(io.LimitReader(r.Body, readLimit))
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(buf), r.Body), r.Body}
	if err != nil {
		return "[Unable to read]"
	}

	switch {
	case len(buf) == 0:
		return ""
	case len(buf) >= largeBody:
		return fmt.Sprintf("[Large payload: %d bytes]", len(buf))
	default:
		return Mask(strings.TrimSpace(string(buf)))
	}
}

// Mask hides the values of "password" and "token" JSON fields.
func Mask(body string) string {
	return sensitiveFields.ReplaceAllString(body, "${1}***${3}")
}
