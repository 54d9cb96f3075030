// Package fetchtest serves in-memory resources over HTTP range requests.
package fetchtest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
)

// Range is one inclusive span a client asked for.
type Range struct {
	Start int64
	End   int64
}

// Resource is a byte blob served under a path.
type Resource struct {
	Data []byte
	// FailFirst makes the first n requests for this resource reset the
	// connection before responding.
	FailFirst int
	// DeclaredTotal overrides the total in Content-Range when non-zero.
	DeclaredTotal int64
}

// Server records every range requested per path.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	resources map[string]*Resource
	requests  map[string][]Range
	headers   []http.Header
}

func NewServer(resources map[string]*Resource) *Server {
	s := &Server{
		resources: resources,
		requests:  make(map[string][]Range),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// URLFor returns the absolute URL of a resource path.
func (s *Server) URLFor(path string) string {
	return s.Server.URL + path
}

// Requests returns the ranges requested for path, in order.
func (s *Server) Requests(path string) []Range {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Range, len(s.requests[path]))
	copy(out, s.requests[path])
	return out
}

// LastHeaders returns the headers of the most recent request.
func (s *Server) LastHeaders() http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.headers) == 0 {
		return nil
	}
	return s.headers[len(s.headers)-1]
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	res, ok := s.resources[r.URL.Path]
	s.headers = append(s.headers, r.Header.Clone())
	fail := false
	if ok && res.FailFirst > 0 {
		res.FailFirst--
		fail = true
	}
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	if fail {
		hj, ok := w.(http.Hijacker)
		if !ok {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		conn, _, err := hj.Hijack()
		if err == nil {
			conn.Close()
		}
		return
	}

	start, end, err := parseRange(r.Header.Get("Range"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	size := int64(len(res.Data))
	if start >= size {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return
	}
	if end >= size {
		end = size - 1
	}

	s.mu.Lock()
	s.requests[r.URL.Path] = append(s.requests[r.URL.Path], Range{Start: start, End: end})
	s.mu.Unlock()

	total := size
	if res.DeclaredTotal != 0 {
		total = res.DeclaredTotal
	}
	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, total))
	w.Header().Set("Content-Length", strconv.FormatInt(end-start+1, 10))
	w.WriteHeader(http.StatusPartialContent)
	_, _ = w.Write(res.Data[start : end+1])
}

func parseRange(v string) (int64, int64, error) {
	spec, ok := strings.CutPrefix(v, "bytes=")
	if !ok {
		return 0, 0, fmt.Errorf("unsupported range %q", v)
	}
	a, b, ok := strings.Cut(spec, "-")
	if !ok {
		return 0, 0, fmt.Errorf("malformed range %q", v)
	}
	start, err := strconv.ParseInt(a, 10, 64)
	if err != nil {
		return 0, 0, err
	}
	end, err := strconv.ParseInt(b, 10, 64)
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// Bytes returns n deterministic bytes.
func Bytes(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*7 + i/251)
	}
	return b
}
