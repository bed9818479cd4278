package models

import "time"

// Download is one row of the download history.
type Download struct {
	ID           string    `json:"id" db:"id"`
	PageURL      string    `json:"page_url" db:"page_url"`
	ImageURL     string    `json:"image_url" db:"image_url"`
	FilePath     string    `json:"file_path" db:"file_path"`
	Bytes        int64     `json:"bytes" db:"bytes"`
	ContentType  string    `json:"content_type" db:"content_type"`
	Engine       string    `json:"engine" db:"engine"`
	Strategy     string    `json:"strategy" db:"strategy"`
	Success      bool      `json:"success" db:"success"`
	Error        string    `json:"error,omitempty" db:"error"`
	DurationMs   int64     `json:"duration_ms" db:"duration_ms"`
	DownloadedAt time.Time `json:"downloaded_at" db:"downloaded_at"`
}

// DownloadStats summarizes the history table.
type DownloadStats struct {
	Total        int            `json:"total"`
	Succeeded    int            `json:"succeeded"`
	Failed       int            `json:"failed"`
	TotalBytes   int64          `json:"total_bytes"`
	AvgDuration  float64        `json:"avg_duration_ms"`
	ByEngine     map[string]int `json:"by_engine"`
	ByStrategy   map[string]int `json:"by_strategy"`
	LastDownload *time.Time     `json:"last_download,omitempty"`
}
