package database

import (
	"database/sql"
	"fmt"

	"fb-photo-downloader/internal/database/models"

	"github.com/lib/pq"
)

const downloadColumns = `id, page_url, image_url, file_path, bytes, content_type,
		engine, strategy, success, error, duration_ms, downloaded_at`

// GetRecentDownloads returns the latest attempts, newest first.
func (db *DB) GetRecentDownloads(limit int) ([]*models.Download, error) {
	query := `SELECT ` + downloadColumns + `
		FROM downloads
		ORDER BY downloaded_at DESC
		LIMIT $1`

	rows, err := db.conn.Query(query, ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query downloads: %w", err)
	}
	defer rows.Close()
	return scanDownloads(rows)
}

// GetDownloadsByEngine returns the latest attempts made with any of engines.
func (db *DB) GetDownloadsByEngine(engines []string, limit int) ([]*models.Download, error) {
	query := `SELECT ` + downloadColumns + `
		FROM downloads
		WHERE engine = ANY($1)
		ORDER BY downloaded_at DESC
		LIMIT $2`

	rows, err := db.conn.Query(query, pq.Array(engines), ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query downloads by engine: %w", err)
	}
	defer rows.Close()
	return scanDownloads(rows)
}

func scanDownloads(rows *sql.Rows) ([]*models.Download, error) {
	var downloads []*models.Download
	for rows.Next() {
		d := &models.Download{}
		err := rows.Scan(
			&d.ID, &d.PageURL, &d.ImageURL, &d.FilePath, &d.Bytes, &d.ContentType,
			&d.Engine, &d.Strategy, &d.Success, &d.Error, &d.DurationMs, &d.DownloadedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan download: %w", err)
		}
		downloads = append(downloads, d)
	}
	return downloads, rows.Err()
}

// GetDownloadStats aggregates the whole history table.
func (db *DB) GetDownloadStats() (*models.DownloadStats, error) {
	stats := &models.DownloadStats{
		ByEngine:   make(map[string]int),
		ByStrategy: make(map[string]int),
	}

	var (
		avg  sql.NullFloat64
		last sql.NullTime
	)
	err := db.conn.QueryRow(`
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE success),
		       COALESCE(SUM(bytes), 0),
		       AVG(duration_ms),
		       MAX(downloaded_at) FILTER (WHERE success)
		FROM downloads
	`).Scan(&stats.Total, &stats.Succeeded, &stats.TotalBytes, &avg, &last)
	if err != nil {
		return nil, fmt.Errorf("failed to get download totals: %w", err)
	}
	stats.Failed = stats.Total - stats.Succeeded
	if avg.Valid {
		stats.AvgDuration = avg.Float64
	}
	if last.Valid {
		stats.LastDownload = &last.Time
	}

	if err := db.countBy("engine", stats.ByEngine); err != nil {
		return nil, err
	}
	if err := db.countBy("strategy", stats.ByStrategy); err != nil {
		return nil, err
	}
	return stats, nil
}

// countBy fills counts with successful downloads grouped by column.
func (db *DB) countBy(column string, counts map[string]int) error {
	rows, err := db.conn.Query(fmt.Sprintf(`
		SELECT %s, COUNT(*) FROM downloads
		WHERE success
		GROUP BY %s`, pq.QuoteIdentifier(column), pq.QuoteIdentifier(column)))
	if err != nil {
		return fmt.Errorf("failed to count downloads by %s: %w", column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			key   string
			count int
		)
		if err := rows.Scan(&key, &count); err != nil {
			return fmt.Errorf("failed to scan %s count: %w", column, err)
		}
		counts[key] = count
	}
	return rows.Err()
}

const (
	DefaultLimit = 20
	MaxLimit     = 500
)

// ClampLimit maps a requested row count onto [1, MaxLimit], using
// DefaultLimit when none was given.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}
