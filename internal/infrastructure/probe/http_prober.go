package probe

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/doeshing/mindtrail/internal/domain"
	"github.com/doeshing/mindtrail/internal/ports"
)

// HTTPProber confirms an image reference loads by requesting it over HTTP.
// HEAD is tried first; servers that reject HEAD get a GET whose body is
// discarded after the status line.
type HTTPProber struct {
	client *http.Client
}

// NewHTTPProber builds a prober whose requests give up after timeout.
func NewHTTPProber(timeout time.Duration) *HTTPProber {
	if timeout <= 0 {
		timeout = domain.DefaultProbeTimeout
	}
	return &HTTPProber{client: &http.Client{Timeout: timeout}}
}

// NewHTTPProberWithClient uses the given client as-is.
func NewHTTPProberWithClient(client *http.Client) *HTTPProber {
	return &HTTPProber{client: client}
}

// Probe implements ports.ImageProber.
func (p *HTTPProber) Probe(ctx context.Context, reference string) error {
	if !strings.HasPrefix(reference, "http://") && !strings.HasPrefix(reference, "https://") {
		return errors.Errorf("unsupported image reference %q", reference)
	}

	status, err := p.do(ctx, http.MethodHead, reference)
	if err != nil {
		return err
	}
	if status == http.StatusMethodNotAllowed || status == http.StatusNotImplemented {
		status, err = p.do(ctx, http.MethodGet, reference)
		if err != nil {
			return err
		}
	}
	if status < 200 || status > 299 {
		return errors.Errorf("probe %s: unexpected status %d", reference, status)
	}
	return nil
}

func (p *HTTPProber) do(ctx context.Context, method, reference string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, reference, nil)
	if err != nil {
		return 0, errors.Wrap(err, "build probe request")
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, errors.Wrapf(err, "probe %s", reference)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 512))
	return resp.StatusCode, nil
}

var _ ports.ImageProber = (*HTTPProber)(nil)
