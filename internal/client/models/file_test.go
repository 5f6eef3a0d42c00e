package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to FileStatus
		retry    bool
		want     bool
	}{
		{StatusUploading, StatusUploaded, false, true},
		{StatusUploaded, StatusProcessing, false, true},
		{StatusProcessing, StatusProcessed, false, true},
		{StatusProcessing, StatusFailed, false, true},
		{StatusProcessed, StatusProcessing, false, true},
		{StatusProcessed, StatusProcessed, false, true},
		{StatusFailed, StatusProcessing, false, false},
		{StatusFailed, StatusProcessing, true, true},
		{StatusFailed, StatusUploaded, true, false},
		{StatusProcessed, StatusUploading, false, false},
		{StatusUploaded, StatusUploading, false, false},
		{StatusUploading, StatusProcessed, false, false},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, CanTransition(tc.from, tc.to, tc.retry), "%s -> %s retry=%v", tc.from, tc.to, tc.retry)
	}
}

func TestParseFileStatus(t *testing.T) {
	st, err := ParseFileStatus(" Processed ")
	require.NoError(t, err)
	assert.Equal(t, StatusProcessed, st)

	_, err = ParseFileStatus("archived")
	assert.ErrorIs(t, err, ErrUnknownStatus)
}

func TestAccepted(t *testing.T) {
	assert.True(t, Accepted("report.pdf", ""))
	assert.True(t, Accepted("Contract.DOCX", ""))
	assert.True(t, Accepted("memo.doc", "text/plain"))
	assert.True(t, Accepted("noext", "application/pdf; charset=binary"))
	assert.False(t, Accepted("image.png", "image/png"))
	assert.False(t, Accepted("archive.pdf.zip", ""))
	assert.False(t, Accepted("", ""))
}

func TestPatchFromRecord_CarriesServerFields(t *testing.T) {
	now := time.Now()
	rec := FileRecord{
		ID:                "f1",
		OriginalName:      "report.pdf",
		Status:            StatusProcessed,
		IsWatermarked:     true,
		WatermarkID:       "w1",
		VerificationCount: 2,
		ProcessedAt:       &now,
		Hashes:            Hashes{SHA256: "abc"},
		Metadata:          map[string]any{"k": "v"},
	}

	p := PatchFromRecord(rec)
	require.NotNil(t, p.Status)
	assert.Equal(t, StatusProcessed, *p.Status)
	assert.Equal(t, "w1", *p.WatermarkID)
	assert.True(t, *p.IsWatermarked)
	assert.Equal(t, 2, *p.VerificationCount)
	assert.Equal(t, &now, p.ProcessedAt)
	assert.Equal(t, "abc", p.Hashes.SHA256)
	assert.False(t, p.Retry)

	assert.Nil(t, PatchFromRecord(FileRecord{}).Hashes, "empty hashes are not patched")
}

func TestFileRecord_CloneIsDeep(t *testing.T) {
	at := time.Unix(100, 0)
	rec := FileRecord{ID: "f1", Metadata: map[string]any{"a": 1}, ProcessedAt: &at}

	c := rec.Clone()
	c.Metadata["a"] = 2
	*c.ProcessedAt = time.Unix(200, 0)

	assert.Equal(t, 1, rec.Metadata["a"])
	assert.Equal(t, time.Unix(100, 0), *rec.ProcessedAt)
}

func TestDedupKey(t *testing.T) {
	mod := time.UnixMilli(1700000000123)
	assert.Equal(t, "report.pdf|2097152|1700000000123", DedupKey("report.pdf", 2<<20, mod))
	assert.NotEqual(t, DedupKey("a.pdf", 1, mod), DedupKey("a.pdf", 2, mod))
	assert.NotEqual(t, DedupKey("a.pdf", 1, mod), DedupKey("a.pdf", 1, mod.Add(time.Millisecond)))
	assert.Equal(t, "process:f1", ProcessKey("f1"))
}
