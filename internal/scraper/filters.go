package scraper

import (
	"strings"

	"fb-photo-downloader/pkg/types"
)

const (
	StrategyPrimary    = "primary"
	StrategyVisual     = "media-vc-image"
	StrategyCDNFirst   = "fbcdn-src"
	StrategyCDNLargest = "fbcdn-largest"
	StrategyFacebook   = "facebook-src"
	StrategyOpenGraph  = "og-image"
	StrategyProfileSrc = "profile-src"
)

// IsUsableSource filters out empty, inline and static-asset sources.
func IsUsableSource(src string) bool {
	src = strings.TrimSpace(src)
	if src == "" {
		return false
	}
	lower := strings.ToLower(src)
	if strings.HasPrefix(lower, "data:") || strings.HasPrefix(lower, "blob:") {
		return false
	}
	// UI icons and emoji sprites share the CDN with real photos.
	for _, marker := range []string{"/rsrc.php/", "static.xx.fbcdn.net", "/images/emoji.php/"} {
		if strings.Contains(lower, marker) {
			return false
		}
	}
	return true
}

func IsFacebookCDN(src string) bool {
	return strings.Contains(strings.ToLower(src), "fbcdn")
}

// SelectCandidate picks the photo among the page images in document order:
// the media viewer image, then the first source containing "fbcdn", then the
// first containing "facebook". The largest CDN image by area is the last
// resort. The substring steps match case-sensitively, like the CSS
// attribute selectors they stand in for.
func SelectCandidate(images []types.ImageCandidate) (*types.ImageCandidate, bool) {
	for _, img := range images {
		if img.VisualCompletion == "media-vc-image" && IsUsableSource(img.URL) {
			return withStrategy(img, StrategyVisual), true
		}
	}

	for _, step := range []struct{ marker, strategy string }{
		{"fbcdn", StrategyCDNFirst},
		{"facebook", StrategyFacebook},
	} {
		for _, img := range images {
			if IsUsableSource(img.URL) && strings.Contains(img.URL, step.marker) {
				return withStrategy(img, step.strategy), true
			}
		}
	}

	best := -1
	for i, img := range images {
		if !IsUsableSource(img.URL) || !IsFacebookCDN(img.URL) {
			continue
		}
		if best < 0 || img.Area() > images[best].Area() {
			best = i
		}
	}
	if best >= 0 {
		return withStrategy(images[best], StrategyCDNLargest), true
	}
	return nil, false
}

func withStrategy(img types.ImageCandidate, strategy string) *types.ImageCandidate {
	img.URL = strings.TrimSpace(img.URL)
	img.Strategy = strategy
	return &img
}
