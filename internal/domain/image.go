package domain

import (
	"fmt"
	"strings"
)

// ImageRequest asks the image cache to resolve Reference under Key.
type ImageRequest struct {
	Key       string
	Reference string
}

// ImageKeywordKey is the volatile-store key holding the reference list for a keyword.
func ImageKeywordKey(keyword string) string {
	return "images_" + keyword
}

// ImageRequestsFor derives one request per reference, keyed by keyword and index.
func ImageRequestsFor(keyword string, refs []string) []ImageRequest {
	base := ImageKeywordKey(keyword)
	reqs := make([]ImageRequest, 0, len(refs))
	for i, ref := range refs {
		reqs = append(reqs, ImageRequest{Key: fmt.Sprintf("%s_%d", base, i), Reference: ref})
	}
	return reqs
}

// FallbackImageSet is a topic-matched list of references used when lookup fails.
type FallbackImageSet struct {
	Topic      string   `yaml:"topic"`
	References []string `yaml:"references"`
}

// PickFallback returns the first set whose topic occurs in keyword
// (case-insensitive), else the set named "default".
func PickFallback(sets []FallbackImageSet, keyword string) []string {
	lower := strings.ToLower(keyword)
	var def []string
	for _, set := range sets {
		topic := strings.ToLower(set.Topic)
		if topic == FallbackDefaultTopic {
			def = set.References
			continue
		}
		if topic != "" && strings.Contains(lower, topic) {
			return append([]string(nil), set.References...)
		}
	}
	return append([]string(nil), def...)
}
