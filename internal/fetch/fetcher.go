package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/datallboy/dashdl/internal/domain"
)

// Options configures the HTTP side of a RangeFetcher.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	Referer   string
	// RateLimit caps body reads in bytes per second. Zero is unlimited.
	RateLimit int64
	// Client overrides the default http.Client, mostly for tests.
	Client *http.Client
}

// RangeFetcher issues one ranged GET per call. It never retries.
type RangeFetcher struct {
	client    *http.Client
	userAgent string
	referer   string
	limiter   *rate.Limiter
}

func NewRangeFetcher(opts Options) *RangeFetcher {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	f := &RangeFetcher{
		client:    client,
		userAgent: opts.UserAgent,
		referer:   opts.Referer,
	}
	if opts.RateLimit > 0 {
		burst := max(int(opts.RateLimit), readChunk)
		f.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return f
}

// Fetch reads [req.Start, req.End] of url and returns the payload together
// with the total resource length declared in Content-Range.
func (f *RangeFetcher) Fetch(ctx context.Context, url string, req domain.PieceRequest) (domain.PieceResult, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.PieceResult{}, &domain.ProtocolError{Reason: fmt.Sprintf("bad request: %v", err)}
	}
	httpReq.Header.Set("Range", req.Header())
	// ranged offsets are only meaningful against the identity encoding
	httpReq.Header.Set("Accept-Encoding", "identity")
	if f.userAgent != "" {
		httpReq.Header.Set("User-Agent", f.userAgent)
	}
	if f.referer != "" {
		httpReq.Header.Set("Referer", f.referer)
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return domain.PieceResult{}, &domain.TransportError{Op: "get " + req.Header(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPartialContent {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return domain.PieceResult{}, &domain.ProtocolError{Reason: "expected partial content", Status: resp.StatusCode}
	}

	total, err := parseContentRangeTotal(resp.Header.Get("Content-Range"))
	if err != nil {
		return domain.PieceResult{}, err
	}

	var body io.Reader = io.LimitReader(resp.Body, req.Len())
	if f.limiter != nil {
		body = &limitedReader{ctx: ctx, r: body, limiter: f.limiter}
	}

	payload, err := io.ReadAll(body)
	if err != nil {
		return domain.PieceResult{}, &domain.TransportError{Op: "read body", Err: err}
	}
	if len(payload) == 0 {
		return domain.PieceResult{}, &domain.ProtocolError{Reason: "empty payload", Status: resp.StatusCode}
	}

	return domain.PieceResult{Payload: payload, Total: total}, nil
}
