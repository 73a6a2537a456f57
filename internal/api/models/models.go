// Package models contains API request and response types.
package models

import (
	"github.com/smazurov/framegrab/internal/convert"
	"github.com/smazurov/framegrab/internal/logging"
	"github.com/smazurov/framegrab/internal/pipeline"
)

// HealthData represents health check response data.
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Health status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

// HealthResponse wraps the health check response.
type HealthResponse struct {
	Body HealthData
}

// VersionData represents version information.
type VersionData struct {
	Version   string `json:"version" example:"1.0.0" doc:"Application version"`
	GitCommit string `json:"git_commit" doc:"Git commit hash"`
	BuildDate string `json:"build_date" doc:"Build timestamp"`
	BuildID   string `json:"build_id" doc:"Build identifier"`
	GoVersion string `json:"go_version" doc:"Go runtime version"`
	Compiler  string `json:"compiler" doc:"Go compiler"`
	Platform  string `json:"platform" example:"linux/amd64" doc:"Target platform"`
}

// VersionResponse wraps the version response.
type VersionResponse struct {
	Body VersionData
}

// StatusResponse wraps pipeline statistics.
type StatusResponse struct {
	Body pipeline.Stats
}

// FormatInfo describes one pixel format.
type FormatInfo struct {
	Name          string `json:"name" example:"nv12" doc:"Canonical format name"`
	ColorModel    string `json:"color_model" example:"yuv" doc:"Color model family"`
	Planes        int    `json:"planes" doc:"Number of planes"`
	BytesPerPixel int    `json:"bytes_per_pixel" doc:"Packed bytes per pixel, 0 for planar layouts"`
}

// FormatsData lists supported formats and conversion backends.
type FormatsData struct {
	Formats  []FormatInfo   `json:"formats" doc:"Supported pixel formats"`
	Backends []convert.Info `json:"backends" doc:"Registered conversion backends"`
}

// FormatsResponse wraps the formats listing.
type FormatsResponse struct {
	Body FormatsData
}

// BackendData reports the active conversion backend and policy.
type BackendData struct {
	Backend  string         `json:"backend" example:"scalar" doc:"Active backend name"`
	Policy   string         `json:"policy" example:"auto" doc:"Selection policy"`
	Backends []convert.Info `json:"backends" doc:"Registered backends"`
}

// BackendResponse wraps the backend report.
type BackendResponse struct {
	Body BackendData
}

// BackendUpdateInput carries a backend policy change.
type BackendUpdateInput struct {
	Body struct {
		Policy string `json:"policy" example:"scalar" doc:"Selection policy: auto, scalar, or a backend name"`
	}
}

// LogsData carries recent log entries from the ring buffer.
type LogsData struct {
	Entries []logging.LogEntry `json:"entries" doc:"Log entries, oldest first"`
}

// LogsResponse wraps the log listing.
type LogsResponse struct {
	Body LogsData
}
