package imagelookup

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/doeshing/mindtrail/internal/domain"
	"github.com/doeshing/mindtrail/internal/ports"
)

// ErrNoAccessKey is returned when the access key env var is unset.
var ErrNoAccessKey = errors.New("image lookup access key not configured")

// UnsplashClient searches the Unsplash photo API. Requests are paced by a
// token-bucket limiter shared by every caller of the client.
type UnsplashClient struct {
	endpoint  string
	accessKey string
	perPage   int
	http      *http.Client
	limiter   *rate.Limiter
}

// NewUnsplashClient builds a client from settings, reading the access key
// from the configured environment variable.
func NewUnsplashClient(settings domain.LookupSettings, timeout time.Duration) *UnsplashClient {
	endpoint := settings.Endpoint
	if endpoint == "" {
		endpoint = domain.DefaultLookupEndpoint
	}
	keyEnv := settings.AccessKeyEnv
	if keyEnv == "" {
		keyEnv = domain.DefaultLookupAccessKeyEnv
	}
	perPage := settings.PerPage
	if perPage <= 0 {
		perPage = domain.DefaultLookupPerPage
	}
	rps := settings.RatePerSecond
	if rps <= 0 {
		rps = domain.DefaultLookupRate
	}
	if timeout <= 0 {
		timeout = domain.DefaultProbeTimeout
	}
	return &UnsplashClient{
		endpoint:  endpoint,
		accessKey: os.Getenv(keyEnv),
		perPage:   perPage,
		http:      &http.Client{Timeout: timeout},
		limiter:   rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// Configured reports whether an access key is available.
func (c *UnsplashClient) Configured() bool {
	return c.accessKey != ""
}

// Search implements ports.ImageLookupClient.
func (c *UnsplashClient) Search(ctx context.Context, keyword string) ([]string, error) {
	if !c.Configured() {
		return nil, ErrNoAccessKey
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, "image lookup rate limit")
	}

	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, errors.Wrap(err, "parse lookup endpoint")
	}
	q := u.Query()
	q.Set("query", keyword)
	q.Set("per_page", strconv.Itoa(c.perPage))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "build lookup request")
	}
	req.Header.Set("Authorization", "Client-ID "+c.accessKey)
	req.Header.Set("Accept-Version", "v1")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "image lookup %q", keyword)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, errors.Wrap(err, "read lookup response")
	}
	if resp.StatusCode >= 400 {
		return nil, errors.Errorf("image lookup %q: %s", keyword, resp.Status)
	}
	if !gjson.ValidBytes(body) {
		return nil, errors.New("image lookup returned malformed JSON")
	}

	var refs []string
	for _, v := range gjson.GetBytes(body, "results.#.urls.regular").Array() {
		if s := v.String(); s != "" {
			refs = append(refs, s)
		}
	}
	return refs, nil
}

var _ ports.ImageLookupClient = (*UnsplashClient)(nil)
