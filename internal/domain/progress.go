package domain

import "time"

// UnknownSize marks a byte count or duration that could not be determined
const UnknownSize int64 = -1

// ProgressSample is a periodic notification about an in-flight transfer.
// Byte counts are relative to the whole file, including bytes received by
// earlier attempts.
type ProgressSample struct {
	// ReadBytes is the cumulative number of bytes of the file received so far
	ReadBytes int64

	// TotalBytes is the expected file size, or UnknownSize
	TotalBytes int64

	// Speed is the throughput over the last sampling window in bytes/second
	Speed int64

	// ETASeconds is the estimated time remaining, or UnknownSize
	ETASeconds int64
}

// HasTotal reports whether the expected size is known
func (p ProgressSample) HasTotal() bool {
	return p.TotalBytes >= 0
}

// HasETA reports whether an ETA could be computed
func (p ProgressSample) HasETA() bool {
	return p.ETASeconds >= 0
}

// ETA returns the estimated time remaining as a duration (0 when unknown)
func (p ProgressSample) ETA() time.Duration {
	if !p.HasETA() {
		return 0
	}
	return time.Duration(p.ETASeconds) * time.Second
}

// Percent returns completion in the range 0-100, or -1 if the total is unknown
func (p ProgressSample) Percent() float64 {
	if !p.HasTotal() || p.TotalBytes == 0 {
		return -1
	}
	return float64(p.ReadBytes) / float64(p.TotalBytes) * 100
}
