package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/docmark/internal/client/models"
)

// flexString accepts a JSON string or number (numeric database IDs).
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if string(b) == "null" {
		*s = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*s = flexString(n.String())
	return nil
}

// flexBool accepts true/false, 0/1 and "0"/"1".
type flexBool bool

func (v *flexBool) UnmarshalJSON(b []byte) error {
	switch strings.Trim(string(bytes.TrimSpace(b)), `"`) {
	case "true", "1":
		*v = true
	case "false", "0", "null", "":
		*v = false
	default:
		return fmt.Errorf("invalid boolean %s", b)
	}
	return nil
}

// flexTime accepts RFC 3339 timestamps, "2006-01-02 15:04:05" and null.
type flexTime struct {
	t *time.Time
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000000Z",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func (v *flexTime) UnmarshalJSON(b []byte) error {
	var s *string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == nil || *s == "" {
		v.t = nil
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, *s); err == nil {
			v.t = &t
			return nil
		}
	}
	return fmt.Errorf("invalid time %q", *s)
}

// flexInt accepts numbers and numeric strings.
type flexInt int64

func (v *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(b)), `"`)
	if s == "" || s == "null" {
		*v = 0
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid number %s", b)
	}
	*v = flexInt(n)
	return nil
}

type userDTO struct {
	ID               flexString `json:"id"`
	Name             string     `json:"name"`
	Email            string     `json:"email"`
	SubscriptionTier string     `json:"subscription_tier"`
	EmailVerifiedAt  flexTime   `json:"email_verified_at"`
	CreatedAt        flexTime   `json:"created_at"`
	UpdatedAt        flexTime   `json:"updated_at"`
}

func (d userDTO) toModel() models.User {
	return models.User{
		ID:               string(d.ID),
		Name:             d.Name,
		Email:            d.Email,
		SubscriptionTier: d.SubscriptionTier,
		EmailVerifiedAt:  d.EmailVerifiedAt.t,
		CreatedAt:        d.CreatedAt.t,
		UpdatedAt:        d.UpdatedAt.t,
	}
}

type authDTO struct {
	User      *userDTO `json:"user"`
	Token     string   `json:"token"`
	TokenType string   `json:"token_type"`
	ExpiresAt flexTime `json:"expires_at"`
}

type fileDTO struct {
	ID                flexString      `json:"id"`
	OriginalName      string          `json:"original_name"`
	FileSize          flexInt         `json:"file_size"`
	FileType          string          `json:"file_type"`
	FileExtension     string          `json:"file_extension"`
	HashMD5           string          `json:"hash_md5"`
	HashSHA256        string          `json:"hash_sha256"`
	Status            string          `json:"status"`
	Metadata          json.RawMessage `json:"metadata"`
	IsWatermarked     flexBool        `json:"is_watermarked"`
	WatermarkID       *string         `json:"watermark_id"`
	IsVerified        flexBool        `json:"is_verified"`
	VerificationCount flexInt         `json:"verification_count"`
	UploadedAt        flexTime        `json:"uploaded_at"`
	ProcessedAt       flexTime        `json:"processed_at"`
	LastAccessedAt    flexTime        `json:"last_accessed_at"`
	ProcessingError   *string         `json:"processing_error"`
	IsPublic          flexBool        `json:"is_public"`
	PublicURL         *string         `json:"public_url"`
	CreatedAt         flexTime        `json:"created_at"`
}

func (d fileDTO) toModel() (models.FileRecord, error) {
	if d.ID == "" {
		return models.FileRecord{}, fmt.Errorf("file record without id")
	}
	status, err := models.ParseFileStatus(d.Status)
	if err != nil {
		return models.FileRecord{}, fmt.Errorf("file %s: %w %q", d.ID, err, d.Status)
	}

	rec := models.FileRecord{
		ID:                string(d.ID),
		OriginalName:      d.OriginalName,
		SizeBytes:         int64(d.FileSize),
		MimeType:          d.FileType,
		Extension:         strings.ToLower(strings.TrimPrefix(d.FileExtension, ".")),
		Hashes:            models.Hashes{MD5: d.HashMD5, SHA256: d.HashSHA256},
		Status:            status,
		IsWatermarked:     bool(d.IsWatermarked),
		IsVerified:        bool(d.IsVerified),
		VerificationCount: int(d.VerificationCount),
		ProcessedAt:       d.ProcessedAt.t,
		LastAccessedAt:    d.LastAccessedAt.t,
		Metadata:          decodeMetadata(d.Metadata),
		IsPublic:          bool(d.IsPublic),
	}
	if rec.Extension == "" {
		rec.Extension = models.Extension(d.OriginalName)
	}
	if d.WatermarkID != nil {
		rec.WatermarkID = *d.WatermarkID
	}
	if d.ProcessingError != nil {
		rec.ProcessingError = *d.ProcessingError
	}
	if d.PublicURL != nil {
		rec.PublicURL = *d.PublicURL
	}
	switch {
	case d.UploadedAt.t != nil:
		rec.UploadedAt = *d.UploadedAt.t
	case d.CreatedAt.t != nil:
		rec.UploadedAt = *d.CreatedAt.t
	}
	return rec, nil
}

// decodeMetadata accepts an object, a JSON-encoded object string, or
// anything else (null, [] from an empty PHP array) as "no metadata".
func decodeMetadata(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var m map[string]any
	if json.Unmarshal(raw, &m) == nil {
		return m
	}
	var s string
	if json.Unmarshal(raw, &s) == nil && s != "" {
		if json.Unmarshal([]byte(s), &m) == nil {
			return m
		}
	}
	return nil
}

func filesToModels(in []fileDTO) ([]models.FileRecord, error) {
	out := make([]models.FileRecord, 0, len(in))
	for _, d := range in {
		rec, err := d.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

type pageDTO struct {
	Data        []fileDTO `json:"data"`
	CurrentPage flexInt   `json:"current_page"`
	LastPage    flexInt   `json:"last_page"`
	PerPage     flexInt   `json:"per_page"`
	Total       flexInt   `json:"total"`
}

// decodePage understands {"files": paginator}, a bare paginator, and a
// bare array (when the envelope's data member was the list itself).
func decodePage(raw json.RawMessage) (*models.FilePage, error) {
	raw = bytes.TrimSpace(raw)
	var page pageDTO

	switch {
	case len(raw) == 0:
	case raw[0] == '[':
		if err := json.Unmarshal(raw, &page.Data); err != nil {
			return nil, err
		}
	default:
		var wrapper struct {
			Files *pageDTO `json:"files"`
		}
		if err := json.Unmarshal(raw, &wrapper); err != nil {
			return nil, err
		}
		if wrapper.Files != nil {
			page = *wrapper.Files
		} else if err := json.Unmarshal(raw, &page); err != nil {
			return nil, err
		}
	}

	files, err := filesToModels(page.Data)
	if err != nil {
		return nil, err
	}
	out := &models.FilePage{
		Files:       files,
		CurrentPage: int(page.CurrentPage),
		LastPage:    int(page.LastPage),
		PerPage:     int(page.PerPage),
		Total:       int(page.Total),
	}
	if out.Total == 0 {
		out.Total = len(files)
	}
	if out.CurrentPage == 0 {
		out.CurrentPage, out.LastPage = 1, 1
	}
	return out, nil
}

type fileEnvelope struct {
	File      *fileDTO `json:"file"`
	Duplicate flexBool `json:"duplicate"`
}

type processDTO struct {
	File             *fileDTO `json:"file"`
	ProcessingResult *struct {
		Success           flexBool `json:"success"`
		Action            string   `json:"action"`
		Confidence        float64  `json:"confidence"`
		WatermarkID       string   `json:"watermark_id"`
		VerificationScore float64  `json:"verification_score"`
		ProcessingTime    float64  `json:"processing_time"`
		Error             string   `json:"error"`
	} `json:"processing_result"`
}

type statisticsDTO struct {
	Statistics *struct {
		TotalFiles       flexInt `json:"total_files"`
		TotalSize        flexInt `json:"total_size"`
		WatermarkedFiles flexInt `json:"watermarked_files"`
		VerifiedFiles    flexInt `json:"verified_files"`
		FilesByType      map[string]struct {
			Count flexInt `json:"count"`
		} `json:"files_by_type"`
	} `json:"statistics"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type processRequest struct {
	Action  models.ProcessAction `json:"action"`
	Options map[string]any       `json:"options,omitempty"`
}

type updateRequest struct {
	OriginalName *string        `json:"original_name,omitempty"`
	IsPublic     *bool          `json:"is_public,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	ExpiresAt    *time.Time     `json:"expires_at,omitempty"`
}
