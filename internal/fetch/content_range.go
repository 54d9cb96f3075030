package fetch

import (
	"strconv"
	"strings"

	"github.com/datallboy/dashdl/internal/domain"
)

// parseContentRangeTotal extracts <total> from "<unit> <start>-<end>/<total>".
// An unknown ("*") or missing total is unusable for sizing the stream.
func parseContentRangeTotal(v string) (int64, error) {
	if v == "" {
		return 0, &domain.ProtocolError{Reason: "missing Content-Range"}
	}

	unit, rest, ok := strings.Cut(strings.TrimSpace(v), " ")
	if !ok || unit == "" {
		return 0, &domain.ProtocolError{Reason: "malformed Content-Range: " + v}
	}

	span, totalStr, ok := strings.Cut(strings.TrimSpace(rest), "/")
	if !ok || !strings.Contains(span, "-") {
		return 0, &domain.ProtocolError{Reason: "malformed Content-Range: " + v}
	}
	if totalStr == "*" {
		return 0, &domain.ProtocolError{Reason: "Content-Range total is unknown"}
	}

	total, err := strconv.ParseInt(totalStr, 10, 64)
	if err != nil || total <= 0 {
		return 0, &domain.ProtocolError{Reason: "malformed Content-Range total: " + v}
	}
	return total, nil
}
