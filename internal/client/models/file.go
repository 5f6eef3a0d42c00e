// Package models defines the client-side data model: file records and their
// lifecycle, the authenticated user, and pipeline bookkeeping.
package models

import (
	"errors"
	"path/filepath"
	"strings"
	"time"
)

// FileStatus is the lifecycle state of a FileRecord.
type FileStatus string

const (
	StatusUploading  FileStatus = "uploading"
	StatusUploaded   FileStatus = "uploaded"
	StatusProcessing FileStatus = "processing"
	StatusProcessed  FileStatus = "processed"
	StatusFailed     FileStatus = "failed"
	// StatusDeleted is a server-side soft delete. Such records never enter
	// the registry.
	StatusDeleted FileStatus = "deleted"
)

var ErrUnknownStatus = errors.New("unknown file status")

func ParseFileStatus(s string) (FileStatus, error) {
	st := FileStatus(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case StatusUploading, StatusUploaded, StatusProcessing, StatusProcessed, StatusFailed, StatusDeleted:
		return st, nil
	}
	return "", ErrUnknownStatus
}

// Terminal reports whether no further automatic transition happens from s.
func (s FileStatus) Terminal() bool {
	return s == StatusProcessed || s == StatusFailed
}

// CanTransition reports whether a record may move from one status to
// another through a local patch. Staying in the same status is always
// allowed. Failed -> Processing requires retry, which only an explicit user
// request sets.
func CanTransition(from, to FileStatus, retry bool) bool {
	if from == to {
		return true
	}
	switch from {
	case StatusUploading:
		return to == StatusUploaded || to == StatusFailed
	case StatusUploaded:
		return to == StatusProcessing || to == StatusFailed
	case StatusProcessing:
		return to == StatusProcessed || to == StatusFailed
	case StatusProcessed:
		return to == StatusProcessing
	case StatusFailed:
		return to == StatusProcessing && retry
	}
	return false
}

// AcceptedExtensions lists the document types the service watermarks.
var AcceptedExtensions = map[string]string{
	"pdf":  "application/pdf",
	"doc":  "application/msword",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// Extension returns the lower-cased extension of name without the dot.
func Extension(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

// Accepted reports whether a file with the given name or declared MIME type
// is one of AcceptedExtensions.
func Accepted(name, mimeType string) bool {
	if _, ok := AcceptedExtensions[Extension(name)]; ok {
		return true
	}
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if mimeType == "" {
		return false
	}
	for _, m := range AcceptedExtensions {
		if m == mimeType {
			return true
		}
	}
	return false
}

type Hashes struct {
	MD5    string
	SHA256 string
}

// FileRecord is one user-owned document as known to the backend.
//
// WatermarkID is non-empty exactly when IsWatermarked is set, and
// VerificationCount never goes down for a given ID; the registry enforces
// both.
type FileRecord struct {
	ID                string
	OriginalName      string
	SizeBytes         int64
	MimeType          string
	Extension         string
	Hashes            Hashes
	Status            FileStatus
	IsWatermarked     bool
	WatermarkID       string
	IsVerified        bool
	VerificationCount int
	UploadedAt        time.Time
	ProcessedAt       *time.Time
	LastAccessedAt    *time.Time
	ProcessingError   string
	Metadata          map[string]any
	IsPublic          bool
	PublicURL         string

	// Provisional marks a local placeholder for an upload still in flight.
	// It has no server ID yet.
	Provisional bool
}

// Clone returns a deep copy so callers never share maps or pointers with
// the registry.
func (r FileRecord) Clone() FileRecord {
	out := r
	if r.ProcessedAt != nil {
		t := *r.ProcessedAt
		out.ProcessedAt = &t
	}
	if r.LastAccessedAt != nil {
		t := *r.LastAccessedAt
		out.LastAccessedAt = &t
	}
	if r.Metadata != nil {
		out.Metadata = make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// FilePatch is a field-level update. Nil fields are left untouched.
type FilePatch struct {
	OriginalName      *string
	Status            *FileStatus
	IsWatermarked     *bool
	WatermarkID       *string
	IsVerified        *bool
	VerificationCount *int
	ProcessedAt       *time.Time
	LastAccessedAt    *time.Time
	ProcessingError   *string
	Hashes            *Hashes
	Metadata          map[string]any
	IsPublic          *bool
	PublicURL         *string

	// Retry allows Failed -> Processing.
	Retry bool
}

// PatchFromRecord builds a patch carrying every server-owned field of rec.
// It is how an authoritative response is merged into an existing record.
func PatchFromRecord(rec FileRecord) FilePatch {
	p := FilePatch{
		OriginalName:      Ptr(rec.OriginalName),
		Status:            Ptr(rec.Status),
		IsWatermarked:     Ptr(rec.IsWatermarked),
		WatermarkID:       Ptr(rec.WatermarkID),
		IsVerified:        Ptr(rec.IsVerified),
		VerificationCount: Ptr(rec.VerificationCount),
		ProcessingError:   Ptr(rec.ProcessingError),
		IsPublic:          Ptr(rec.IsPublic),
		PublicURL:         Ptr(rec.PublicURL),
		ProcessedAt:       rec.ProcessedAt,
		LastAccessedAt:    rec.LastAccessedAt,
		Metadata:          rec.Metadata,
	}
	if rec.Hashes != (Hashes{}) {
		p.Hashes = Ptr(rec.Hashes)
	}
	return p
}

func Ptr[T any](v T) *T { return &v }

// FileUpdate is the user-editable subset sent with PUT /files/{id}.
type FileUpdate struct {
	Name      *string
	IsPublic  *bool
	Metadata  map[string]any
	ExpiresAt *time.Time
}

// FileFilters narrows GET /files. Zero values are omitted from the query.
type FileFilters struct {
	Page          int
	PerPage       int
	Status        FileStatus
	Type          string
	IsWatermarked *bool
	Search        string
	SortBy        string
	SortOrder     string
}

// FilePage is one page of a file listing.
type FilePage struct {
	Files       []FileRecord
	CurrentPage int
	LastPage    int
	PerPage     int
	Total       int
}

// ProcessAction selects the server-side processing step.
type ProcessAction string

const (
	ActionWatermark ProcessAction = "watermark"
	ActionVerify    ProcessAction = "verify"
)

// ProcessResult is the processing_result block of a process response.
type ProcessResult struct {
	Success           bool
	Action            string
	Confidence        float64
	WatermarkID       string
	VerificationScore float64
	ProcessingTime    float64
	Error             string
}

// Stats are aggregates derived from the current registry contents.
type Stats struct {
	Total         int
	Watermarked   int
	Verified      int
	Unverified    int
	Processing    int
	DetectionRate float64
}

// Statistics is the server-side summary returned by GET /files/statistics.
type Statistics struct {
	TotalFiles       int
	TotalSize        int64
	WatermarkedFiles int
	VerifiedFiles    int
	FilesByType      map[string]int
}

// SearchQuery drives GET /files/search.
type SearchQuery struct {
	Query           string
	Type            string
	WatermarkedOnly bool
}
