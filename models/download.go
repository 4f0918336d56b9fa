package models

import "time"

// DownloadStatus is the lifecycle state of an offline download.
type DownloadStatus string

const (
	DownloadQueued      DownloadStatus = "queued"
	DownloadInProgress  DownloadStatus = "downloading"
	DownloadCompleted   DownloadStatus = "completed"
	DownloadFailed      DownloadStatus = "failed"
)

// Download is an offline copy of a movie or episode owned by a profile.
type Download struct {
	ID          int64          `json:"id"`
	ProfileID   int64          `json:"profileId"`
	MediaType   MediaType      `json:"mediaType"`
	MediaID     int64          `json:"mediaId"`
	FilePath    string         `json:"filePath,omitempty"`
	ContentType string         `json:"contentType,omitempty"`
	Status      DownloadStatus `json:"status"`
	BytesDone   int64          `json:"bytesDone"`
	TotalBytes  int64          `json:"totalBytes,omitempty"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}
