package activitypub

import (
	"io"
	"net/http"
	"time"

	"github.com/mawdsley/glyptodon/util"
)

// Fetcher dereferences a remote ActivityPub URI and returns the response
// status and body. Implementations do not interpret the payload.
type Fetcher interface {
	Fetch(uri string) (int, []byte, error)
}

const maxResponseBytes = 1 << 20 // 1 MiB

// HTTPFetcher fetches ActivityPub documents over plain signed-less GET.
type HTTPFetcher struct {
	Client *http.Client
}

func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{
		Client: &http.Client{Timeout: 15 * time.Second},
	}
}

func (f *HTTPFetcher) Fetch(uri string) (int, []byte, error) {
	req, err := http.NewRequest(http.MethodGet, uri, nil)
	if err != nil {
		return 0, nil, &FetchError{URI: uri, Err: err}
	}
	req.Header.Set("Accept", "application/activity+json")
	req.Header.Set("User-Agent", util.GetNameAndVersion())

	resp, err := f.Client.Do(req)
	if err != nil {
		return 0, nil, &FetchError{URI: uri, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, &FetchError{URI: uri, Status: resp.StatusCode, Err: err}
	}
	return resp.StatusCode, body, nil
}
