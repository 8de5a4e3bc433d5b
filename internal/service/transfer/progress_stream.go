package transfer

import (
	"io"
	"sync/atomic"

	"github.com/vertextoedge/resumable-download/internal/domain"
	"github.com/vertextoedge/resumable-download/internal/util/ratelimiter"
)

// minSampleSeconds keeps the speed division finite
const minSampleSeconds = 0.001

// ProgressStream wraps a response body, counts the bytes read through it and
// reports a ProgressSample at most once per sampling interval.
//
// When the shared cancellation flag is set, Read reports io.EOF without
// touching the underlying reader, so the caller's copy loop ends cleanly and
// everything already written stays a valid prefix.
type ProgressStream struct {
	reader    io.Reader
	cancelled *atomic.Bool
	listener  ProgressListener
	limiter   *ratelimiter.Limiter

	startBytes int64
	expected   int64 // bytes expected from reader, domain.UnknownSize if unknown

	read        atomic.Int64
	interrupted atomic.Bool

	// owned by the reading goroutine
	lastSampleBytes int64
}

// NewProgressStream creates a stream reporting to listener. startBytes is the
// resume offset, expected the Content-Length of the response (negative when
// unknown). The first sampling window opens now.
func NewProgressStream(
	reader io.Reader,
	cancelled *atomic.Bool,
	startBytes int64,
	expected int64,
	listener ProgressListener,
	limiter *ratelimiter.Limiter,
) *ProgressStream {
	if expected < 0 {
		expected = domain.UnknownSize
	}
	if listener == nil {
		listener = NopListener{}
	}
	limiter.Start()

	return &ProgressStream{
		reader:     reader,
		cancelled:  cancelled,
		listener:   listener,
		limiter:    limiter,
		startBytes: startBytes,
		expected:   expected,
	}
}

// Read implements io.Reader
func (s *ProgressStream) Read(p []byte) (int, error) {
	if s.cancelled.Load() {
		s.interrupted.Store(true)
		return 0, io.EOF
	}

	n, err := s.reader.Read(p)
	total := s.read.Load()
	if n > 0 {
		total = s.read.Add(int64(n))
	}
	s.sample(total)

	return n, err
}

// BytesRead returns the number of bytes read in this attempt
func (s *ProgressStream) BytesRead() int64 {
	return s.read.Load()
}

// Interrupted reports whether the stream ended because of the cancellation
// flag rather than a true end of stream
func (s *ProgressStream) Interrupted() bool {
	return s.interrupted.Load()
}

func (s *ProgressStream) sample(total int64) {
	elapsed, ok := s.limiter.Sample()
	if !ok {
		return
	}

	seconds := elapsed.Seconds()
	if seconds < minSampleSeconds {
		seconds = minSampleSeconds
	}
	delta := total - s.lastSampleBytes
	if delta < 1 {
		delta = 1
	}
	s.lastSampleBytes = total

	speed := float64(delta) / seconds

	sample := domain.ProgressSample{
		ReadBytes:  s.startBytes + total,
		TotalBytes: domain.UnknownSize,
		Speed:      int64(speed),
		ETASeconds: domain.UnknownSize,
	}
	if s.expected >= 0 {
		sample.TotalBytes = s.startBytes + s.expected
		remaining := s.expected - total
		if remaining < 0 {
			remaining = 0
		}
		sample.ETASeconds = int64(float64(remaining) / speed)
	}

	s.listener.OnUpdate(sample)
}
