package imagecache

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/doeshing/mindtrail/internal/domain"
)

// PreloadBatch resolves requests in consecutive groups of cfg.Concurrency.
// Items within a group run concurrently; the next group starts only after
// every item of the current one has settled, followed by a short pause.
// One failing item never affects its siblings, and nothing is reported back.
func (c *Cache) PreloadBatch(ctx context.Context, requests []domain.ImageRequest) {
	limit := c.cfg.Concurrency
	for start := 0; start < len(requests); start += limit {
		end := start + limit
		if end > len(requests) {
			end = len(requests)
		}

		var g errgroup.Group
		for _, req := range requests[start:end] {
			req := req
			g.Go(func() error {
				c.Resolve(ctx, req.Key, req.Reference)
				return nil
			})
		}
		_ = g.Wait()

		if end < len(requests) {
			c.pause(ctx)
		}
	}
	c.log.Debug("image preload finished", map[string]interface{}{"requests": len(requests)})
}

func (c *Cache) pause(ctx context.Context) {
	if c.cfg.GroupPause <= 0 {
		return
	}
	timer := time.NewTimer(c.cfg.GroupPause)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
