package asset

import "github.com/pkg/errors"

// Load failure kinds. Errors returned from this package wrap one of these
// sentinels; use errors.Cause to classify.
var (
	ErrVersionUnsupported   = errors.New("unsupported glTF version")
	ErrSceneIndexOutOfRange = errors.New("scene index out of range")
	ErrFetchFailed          = errors.New("resource fetch failed")
	ErrDecodeFailed         = errors.New("image decode failed")
	ErrMalformedAsset       = errors.New("malformed asset")
)

// Kind resolves err to one of the sentinel kinds above, or nil when the
// error did not originate in this package.
func Kind(err error) error {
	switch errors.Cause(err) {
	case ErrVersionUnsupported:
		return ErrVersionUnsupported
	case ErrSceneIndexOutOfRange:
		return ErrSceneIndexOutOfRange
	case ErrFetchFailed:
		return ErrFetchFailed
	case ErrDecodeFailed:
		return ErrDecodeFailed
	case ErrMalformedAsset:
		return ErrMalformedAsset
	}
	return nil
}
