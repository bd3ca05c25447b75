// Package imagesearch answers "which images go with this keyword" for the
// session. Lookup results are memoized in the volatile store and warmed in
// the image cache in the background; when the upstream lookup is missing or
// fails, a topic-matched fallback set is used instead.
package imagesearch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/doeshing/mindtrail/internal/domain"
	"github.com/doeshing/mindtrail/internal/ports"
)

// Service resolves related images for keywords.
type Service struct {
	Lookup   ports.ImageLookupClient
	Session  ports.KVStore
	Cache    ports.ImageResolver
	Logger   ports.Logger
	Fallback []domain.FallbackImageSet

	group    singleflight.Group
	inflight sync.WaitGroup
}

// RelatedImages returns the reference list for keyword. It never fails: an
// empty keyword yields nil and lookup problems degrade to the fallback set.
// The returned references are queued for background preloading.
func (s *Service) RelatedImages(ctx context.Context, keyword string) []string {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil
	}
	key := domain.ImageKeywordKey(keyword)

	if refs, ok := s.readSession(ctx, key); ok {
		return refs
	}

	v, _, _ := s.group.Do(key, func() (interface{}, error) {
		refs := s.search(ctx, keyword)
		s.writeSession(ctx, key, refs)
		s.preloadAsync(ctx, keyword, refs)
		return refs, nil
	})
	refs, _ := v.([]string)
	return append([]string(nil), refs...)
}

// Wait blocks until every background preload started by RelatedImages has
// finished.
func (s *Service) Wait() {
	s.inflight.Wait()
}

func (s *Service) search(ctx context.Context, keyword string) []string {
	if s.Lookup != nil {
		refs, err := s.Lookup.Search(ctx, keyword)
		if err == nil && len(refs) > 0 {
			return refs
		}
		fields := map[string]interface{}{"keyword": keyword}
		if err != nil {
			fields["error"] = err.Error()
		}
		s.Logger.Warn("image lookup unavailable, using fallback set", fields)
	}
	return domain.PickFallback(s.Fallback, keyword)
}

func (s *Service) preloadAsync(ctx context.Context, keyword string, refs []string) {
	if s.Cache == nil || len(refs) == 0 {
		return
	}
	requests := domain.ImageRequestsFor(keyword, refs)
	bg := context.WithoutCancel(ctx)

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer func() {
			if r := recover(); r != nil {
				s.Logger.Error("image preload panicked", fmt.Errorf("%v", r), map[string]interface{}{"keyword": keyword})
			}
		}()
		s.Cache.PreloadBatch(bg, requests)
	}()
}

func (s *Service) readSession(ctx context.Context, key string) ([]string, bool) {
	if s.Session == nil {
		return nil, false
	}
	raw, ok, err := s.Session.Get(ctx, key)
	if err != nil {
		s.Logger.Warn("session read failed", map[string]interface{}{"key": key, "error": err.Error()})
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var refs []string
	if err := json.Unmarshal(raw, &refs); err != nil {
		s.Logger.Warn("session entry corrupt, ignoring", map[string]interface{}{"key": key, "error": err.Error()})
		return nil, false
	}
	return refs, true
}

func (s *Service) writeSession(ctx context.Context, key string, refs []string) {
	if s.Session == nil || len(refs) == 0 {
		return
	}
	raw, err := json.Marshal(refs)
	if err != nil {
		return
	}
	if err := s.Session.Set(ctx, key, raw); err != nil {
		s.Logger.Warn("session write failed", map[string]interface{}{"key": key, "error": err.Error()})
	}
}
