package types

import (
	"fmt"
	"time"
)

// ImageCandidate is an <img> source found on a photo page.
type ImageCandidate struct {
	URL              string `json:"src"`
	Width            int    `json:"width"`
	Height           int    `json:"height"`
	VisualCompletion string `json:"visual"`
	Class            string `json:"class"`

	// Strategy names the selector that produced the candidate.
	Strategy string `json:"strategy,omitempty"`
}

// Area is the natural pixel area reported by the browser.
func (c ImageCandidate) Area() int {
	return c.Width * c.Height
}

type DownloadResult struct {
	ID           string        `json:"id"`
	PageURL      string        `json:"page_url"`
	ImageURL     string        `json:"image_url"`
	FilePath     string        `json:"file_path"`
	FileName     string        `json:"file_name"`
	Bytes        int64         `json:"bytes"`
	ContentType  string        `json:"content_type"`
	Engine       string        `json:"engine"`
	Strategy     string        `json:"strategy"`
	Duration     time.Duration `json:"duration"`
	DownloadedAt time.Time     `json:"downloaded_at"`
}

func (r DownloadResult) String() string {
	return fmt.Sprintf("%s (%d bytes, %s) via %s/%s in %s",
		r.FilePath, r.Bytes, r.ContentType, r.Engine, r.Strategy, r.Duration.Round(time.Millisecond))
}
