package asset

import (
	"context"
	"io/ioutil"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Fetcher retrieves the bytes behind an already-resolved URL. Implementations
// must be safe for concurrent use; the loader issues one Fetch per external
// buffer and image, all in flight at once.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// HTTPFetcher fetches over http(s) with a shared client.
type HTTPFetcher struct {
	Client *http.Client
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "bad request %q", url)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "get %q", url)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("get %q: status %v", url, resp.Status)
	}
	data, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "read body of %q", url)
	}
	return data, nil
}

// DirFetcher serves urls as paths below a root directory. Used when the
// scene and its assets live on local disk.
type DirFetcher struct {
	Root string
}

func (f *DirFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	rel := filepath.FromSlash(strings.TrimPrefix(url, "/"))
	full := filepath.Join(f.Root, rel)
	if !strings.HasPrefix(filepath.Clean(full), filepath.Clean(f.Root)) {
		return nil, errors.Errorf("path %q escapes root", url)
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, errors.Wrapf(err, "read %q", full)
	}
	return data, nil
}
