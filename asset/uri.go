package asset

import (
	"encoding/base64"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

var (
	reDataURI     = regexp.MustCompile(`^data:`)
	reAbsoluteURI = regexp.MustCompile(`^[a-z][-+.0-9a-z]*://`)
)

// ResolveURI turns a candidate URI from the document into a fetchable URL.
// Data URIs and absolute URIs pass through; anything else is taken relative
// to base, which is stripped back to its last '/'.
func ResolveURI(uri, base string) string {
	if reDataURI.MatchString(uri) {
		return uri
	}
	if reAbsoluteURI.MatchString(uri) {
		return uri
	}
	prefix := ""
	if i := strings.LastIndex(base, "/"); i >= 0 {
		prefix = base[:i+1]
	}
	return prefix + uri
}

func isDataURI(uri string) bool {
	return reDataURI.MatchString(uri)
}

// decodeDataURI extracts the payload of a data: URI. Only base64 payloads
// appear in glTF assets; percent-encoded payloads are passed through as
// raw bytes.
func decodeDataURI(uri string) ([]byte, error) {
	comma := strings.IndexByte(uri, ',')
	if comma < 0 {
		return nil, errors.Errorf("data uri without payload separator")
	}
	meta, payload := uri[len("data:"):comma], uri[comma+1:]
	if strings.HasSuffix(meta, ";base64") {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, errors.Wrapf(err, "bad base64 payload")
		}
		return data, nil
	}
	return []byte(payload), nil
}
