package server

import (
	"time"

	"fragmenter/internal/conversion"
)

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status    string    `json:"status"`
	Service   string    `json:"service"`
	Timestamp time.Time `json:"timestamp"`
}

// StatusResponse is returned by GET /api/status.
type StatusResponse struct {
	Status             string    `json:"status"`
	IFCFiles           int       `json:"ifc_files"`
	FragmentFiles      int       `json:"fragment_files"`
	ConversionComplete bool      `json:"conversion_complete"`
	PrimarySink        bool      `json:"primary_sink"`
	Paths              PathInfo  `json:"paths"`
	UptimeSeconds      float64   `json:"uptime_seconds"`
	Timestamp          time.Time `json:"timestamp"`
}

// PathInfo reports the resolved directories the server reads and writes.
type PathInfo struct {
	SourceDir    string `json:"source_dir"`
	SourceExists bool   `json:"source_exists"`
	TargetDir    string `json:"target_dir"`
	TargetExists bool   `json:"target_exists"`
	UploadDir    string `json:"upload_dir"`
	ReportDir    string `json:"report_dir"`
	WorkingDir   string `json:"working_dir"`
}

// IFCFile describes one input and whether its fragment exists.
type IFCFile struct {
	Filename       string    `json:"filename"`
	SizeMB         float64   `json:"size_mb"`
	Modified       time.Time `json:"modified"`
	HasFragments   bool      `json:"has_fragments"`
	FragmentFile   *string   `json:"fragment_file"`
	FragmentSizeMB *float64  `json:"fragment_size_mb"`
}

// IFCListResponse is returned by GET /api/ifc.
type IFCListResponse struct {
	Files       []IFCFile `json:"ifc_files"`
	Count       int       `json:"count"`
	TotalSizeMB float64   `json:"total_size_mb"`
}

// FragmentFile describes one fragment in the target directory.
type FragmentFile struct {
	Filename string    `json:"filename"`
	SizeMB   float64   `json:"size_mb"`
	Modified time.Time `json:"modified"`
	URL      string    `json:"url"`
}

// FragmentListResponse is returned by GET /api/fragments.
type FragmentListResponse struct {
	Fragments   []FragmentFile `json:"fragments"`
	Count       int            `json:"count"`
	TotalSizeMB float64        `json:"total_size_mb"`
}

// StoredFragment is a sink record without its payload.
type StoredFragment struct {
	ID         int64          `json:"id"`
	Filename   string         `json:"filename"`
	FileHash   string         `json:"file_hash"`
	SizeBytes  int64          `json:"file_size_bytes"`
	SourceFile string         `json:"ifc_source_file"`
	Metadata   map[string]any `json:"conversion_metadata"`
	CreatedAt  time.Time      `json:"created_at"`
}

// StoreListResponse is returned by GET /api/store/fragments.
type StoreListResponse struct {
	Fragments     []StoredFragment `json:"fragments"`
	Count         int              `json:"count"`
	TotalRecords  int64            `json:"total_records"`
	TotalBytes    int64            `json:"total_bytes"`
	LastCreatedAt *time.Time       `json:"last_created_at,omitempty"`
}

// ConvertResponse is returned by POST /api/convert.
type ConvertResponse struct {
	Success        bool                     `json:"success"`
	Message        string                   `json:"message,omitempty"`
	Error          string                   `json:"error,omitempty"`
	OutputFile     string                   `json:"output_file,omitempty"`
	SizeMB         float64                  `json:"size_mb,omitempty"`
	ConversionTime float64                  `json:"conversion_time"`
	Status         conversion.Status        `json:"status"`
	Producer       string                   `json:"producer,omitempty"`
	Degraded       bool                     `json:"degraded"`
	Tier           string                   `json:"tier,omitempty"`
	FileHash       string                   `json:"file_hash,omitempty"`
	Sinks          []conversion.SinkAttempt `json:"sinks,omitempty"`
	Stored         []StoredFragment         `json:"stored,omitempty"`
}
