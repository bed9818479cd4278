package scraper

import (
	"fmt"
	"strconv"
	"strings"

	"fb-photo-downloader/pkg/types"

	"github.com/PuerkitoBio/goquery"
)

// ParsedPage is what a static parse of rendered photo-page HTML yields.
type ParsedPage struct {
	Images  []types.ImageCandidate
	OGImage string
	Title   string
}

func ParsePhotoPage(html string) (*ParsedPage, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	page := &ParsedPage{
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
	}

	doc.Find(`meta[property="og:image"], meta[name="og:image"], meta[name="twitter:image"]`).EachWithBreak(func(i int, s *goquery.Selection) bool {
		if content, ok := s.Attr("content"); ok && IsUsableSource(content) {
			page.OGImage = strings.TrimSpace(content)
			return false
		}
		return true
	})

	doc.Find("img").Each(func(i int, s *goquery.Selection) {
		src := s.AttrOr("src", "")
		if src == "" {
			src = s.AttrOr("data-src", "")
		}
		page.Images = append(page.Images, types.ImageCandidate{
			URL:              strings.TrimSpace(src),
			Width:            intAttr(s, "width"),
			Height:           intAttr(s, "height"),
			VisualCompletion: s.AttrOr("data-visualcompletion", ""),
			Class:            s.AttrOr("class", ""),
		})
	})

	return page, nil
}

// ExtractImageFromHTML is the last-resort lookup over the page source.
func ExtractImageFromHTML(html string) (*types.ImageCandidate, error) {
	page, err := ParsePhotoPage(html)
	if err != nil {
		return nil, err
	}

	for _, img := range page.Images {
		if img.VisualCompletion == "media-vc-image" && IsUsableSource(img.URL) {
			return withStrategy(img, StrategyVisual), nil
		}
	}

	if page.OGImage != "" {
		return &types.ImageCandidate{URL: page.OGImage, Strategy: StrategyOpenGraph}, nil
	}

	// Profile and photo CDN paths carry these markers.
	for _, img := range page.Images {
		lower := strings.ToLower(img.URL)
		if IsUsableSource(img.URL) && IsFacebookCDN(img.URL) &&
			(strings.Contains(lower, "profile") || strings.Contains(lower, "photo")) {
			return withStrategy(img, StrategyProfileSrc), nil
		}
	}

	if cand, ok := SelectCandidate(page.Images); ok {
		return cand, nil
	}
	return nil, ErrImageNotFound
}

func intAttr(s *goquery.Selection, name string) int {
	v, err := strconv.Atoi(strings.TrimSpace(s.AttrOr(name, "")))
	if err != nil {
		return 0
	}
	return v
}
