package domain

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// Request describes a single file to fetch. It is created once by the caller
// and never mutated.
type Request struct {
	// URL is the remote resource
	URL string

	// DestinationDir is the directory the file is written to
	DestinationDir string

	// FileName is the final file name inside DestinationDir
	FileName string
}

// NewRequest creates a validated Request
func NewRequest(rawURL, destinationDir, fileName string) (Request, error) {
	r := Request{URL: rawURL, DestinationDir: destinationDir, FileName: fileName}
	if err := r.Validate(); err != nil {
		return Request{}, err
	}
	return r, nil
}

// Validate checks that the request can be executed
func (r Request) Validate() error {
	u, err := url.Parse(r.URL)
	if err != nil {
		return fmt.Errorf("%w: url: %v", ErrInvalidInput, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: url scheme must be http or https", ErrInvalidInput)
	}
	if r.DestinationDir == "" {
		return fmt.Errorf("%w: destination dir is required", ErrInvalidInput)
	}
	if r.FileName == "" || r.FileName == "." || r.FileName == ".." {
		return fmt.Errorf("%w: file name is required", ErrInvalidInput)
	}
	if strings.ContainsAny(r.FileName, `/\`) {
		return fmt.Errorf("%w: file name must not contain path separators", ErrInvalidInput)
	}
	return nil
}

// FinalPath returns destinationDir/fileName
func (r Request) FinalPath() string {
	return filepath.Join(r.DestinationDir, r.FileName)
}

// FileNameFromURL derives a file name from the last path segment of rawURL.
// Returns "download" when nothing usable is found.
func FileNameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err == nil && u.Path != "" {
		segments := strings.Split(u.Path, "/")
		if last := segments[len(segments)-1]; last != "" && last != "." && last != ".." {
			return last
		}
	}
	return "download"
}
