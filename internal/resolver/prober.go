package resolver

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// HTTPProber checks a candidate with a HEAD request. Only a 2xx answer with an
// image/* content type counts as loadable.
type HTTPProber struct {
	client *http.Client
}

func NewHTTPProber(client *http.Client) *HTTPProber {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPProber{client: client}
}

// Load implements LoadFunc.
func (p *HTTPProber) Load(ctx context.Context, url string) error {
	if strings.HasPrefix(url, "data:") {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return fmt.Errorf("build probe request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("probe %s: %w", url, err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("probe %s: status %d", url, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(strings.ToLower(ct), "image/") {
		return fmt.Errorf("probe %s: content type %q is not an image", url, ct)
	}
	return nil
}
