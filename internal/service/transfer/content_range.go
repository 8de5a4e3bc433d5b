package transfer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vertextoedge/resumable-download/internal/domain"
)

// contentRange is a parsed "Content-Range: bytes first-last/size" header.
// An unsatisfied range ("bytes */size") has first and last set to -1.
type contentRange struct {
	first int64
	last  int64
	size  int64 // domain.UnknownSize for "*"
}

func parseContentRange(header string) (contentRange, error) {
	unit, spec, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || unit != "bytes" {
		return contentRange{}, fmt.Errorf("unsupported content range %q", header)
	}
	rng, size, ok := strings.Cut(spec, "/")
	if !ok {
		return contentRange{}, fmt.Errorf("malformed content range %q", header)
	}

	cr := contentRange{first: -1, last: -1, size: domain.UnknownSize}
	if size != "*" {
		n, err := strconv.ParseInt(size, 10, 64)
		if err != nil || n < 0 {
			return contentRange{}, fmt.Errorf("malformed content range size %q", header)
		}
		cr.size = n
	}

	if rng == "*" {
		if cr.size < 0 {
			return contentRange{}, fmt.Errorf("malformed content range %q", header)
		}
		return cr, nil
	}

	first, last, ok := strings.Cut(rng, "-")
	if !ok {
		return contentRange{}, fmt.Errorf("malformed content range %q", header)
	}
	var err error
	if cr.first, err = strconv.ParseInt(first, 10, 64); err != nil || cr.first < 0 {
		return contentRange{}, fmt.Errorf("malformed content range start %q", header)
	}
	if cr.last, err = strconv.ParseInt(last, 10, 64); err != nil || cr.last < cr.first {
		return contentRange{}, fmt.Errorf("malformed content range end %q", header)
	}
	if cr.size >= 0 && cr.last >= cr.size {
		return contentRange{}, fmt.Errorf("content range %q exceeds size", header)
	}
	return cr, nil
}

// checkPartialContent verifies that a 206 response continues at offset
func checkPartialContent(header string, offset int64) error {
	if header == "" {
		return fmt.Errorf("partial content without Content-Range")
	}
	cr, err := parseContentRange(header)
	if err != nil {
		return err
	}
	if cr.first != offset {
		return fmt.Errorf("content range starts at %d, requested %d", cr.first, offset)
	}
	return nil
}

// alreadyComplete reports whether a 416 answer to a resume from offset means
// the temp file already holds the whole resource
func alreadyComplete(header string, offset int64) bool {
	cr, err := parseContentRange(header)
	return err == nil && cr.first < 0 && cr.size == offset
}
