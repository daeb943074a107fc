package profiler

import (
	"fmt"
	"net/url"
	"path/filepath"
)

// PathToURI converts an absolute filesystem path to a file:// URI,
// percent-encoding where required.
func PathToURI(path string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	return u.String()
}

// URIToPath converts a file:// URI back to a filesystem path, decoding any
// percent-encoded characters.
func URIToPath(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("parse document URI %q: %w", uri, err)
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("not a file URI: %q", uri)
	}
	return filepath.FromSlash(u.Path), nil
}

// BasenameFromURI returns the base filename of a document URI. Diagnostics
// are tallied under this key; files with the same basename in different
// directories would collide, which is accepted for the fixed file sets this
// tool profiles.
func BasenameFromURI(uri string) string {
	path, err := URIToPath(uri)
	if err != nil {
		return filepath.Base(uri)
	}
	return filepath.Base(path)
}
