package domain

import "fmt"

// StreamKind identifies one of the two media components of a session.
type StreamKind string

const (
	StreamVideo StreamKind = "video"
	StreamAudio StreamKind = "audio"
)

// StreamProgress is the done/total pair of one stream. Total is only
// meaningful once TotalKnown is set by the first piece response.
type StreamProgress struct {
	Done       int64 `json:"done"`
	Total      int64 `json:"total"`
	TotalKnown bool  `json:"total_known"`
}

// Complete reports whether the stream has received every declared byte.
func (p StreamProgress) Complete() bool {
	return p.TotalKnown && p.Done >= p.Total
}

// Percent returns completion in [0,100], or 0 while the total is unknown.
func (p StreamProgress) Percent() float64 {
	if !p.TotalKnown || p.Total <= 0 {
		return 0
	}
	pct := float64(p.Done) / float64(p.Total) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}

// PieceRequest is an inclusive byte span [Start, End].
type PieceRequest struct {
	Start int64
	End   int64
}

// NextPiece derives the next request from the bytes already written and the
// current piece size. Once the total is known the end never passes Total-1.
func NextPiece(p StreamProgress, pieceSize int64) PieceRequest {
	start := p.Done
	end := start + pieceSize - 1
	if p.TotalKnown && end > p.Total-1 {
		end = p.Total - 1
	}
	return PieceRequest{Start: start, End: end}
}

// Len is the number of bytes the request spans.
func (r PieceRequest) Len() int64 { return r.End - r.Start + 1 }

// Header renders the request as a Range header value.
func (r PieceRequest) Header() string {
	return fmt.Sprintf("bytes=%d-%d", r.Start, r.End)
}

// PieceResult is the payload of one ranged read plus the total length the
// server declared for the whole resource.
type PieceResult struct {
	Payload []byte
	Total   int64
}
