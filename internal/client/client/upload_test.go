package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type receivedUpload struct {
	filename    string
	contentType string
	content     []byte
	fields      map[string]string
}

func uploadHandler(t *testing.T, got *receivedUpload, reply string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(32<<20))
		f, hdr, err := r.FormFile(UploadFieldName)
		require.NoError(t, err)
		defer f.Close()

		got.filename = hdr.Filename
		got.contentType = hdr.Header.Get("Content-Type")
		got.content, _ = io.ReadAll(f)
		got.fields = map[string]string{}
		for k, v := range r.MultipartForm.Value {
			got.fields[k] = v[0]
		}
		_, _ = io.WriteString(w, reply)
	}
}

func TestUploadBinary_StreamsFileAndFields(t *testing.T) {
	var got receivedUpload
	gw, _, _ := newTestGateway(t, uploadHandler(t, &got, `{"file":{"id":"f1"},"message":"File uploaded successfully"}`))

	payload := bytes.Repeat([]byte("A"), 256<<10)
	up := &Upload{Name: "report.pdf", Size: int64(len(payload)), ContentType: "application/pdf", Body: bytes.NewReader(payload)}

	var mu sync.Mutex
	var seen []int64
	progress := func(sent, total int64) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, int64(len(payload)), total)
		seen = append(seen, sent)
	}

	when := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	resp, err := gw.UploadBinary(context.Background(), "/files/upload", up, map[string]any{
		"metadata": map[string]any{"tags": []string{"contract"}},
		"public":   true,
		"count":    3,
		"when":     when,
		"skip":     nil,
		"note":     "plain",
	}, WithProgress(progress))
	require.NoError(t, err)
	assert.Equal(t, "File uploaded successfully", resp.Message)

	assert.Equal(t, "report.pdf", got.filename)
	assert.Equal(t, "application/pdf", got.contentType)
	assert.Equal(t, payload, got.content)

	assert.JSONEq(t, `{"tags":["contract"]}`, got.fields["metadata"])
	assert.Equal(t, "true", got.fields["public"])
	assert.Equal(t, "3", got.fields["count"])
	assert.Equal(t, "2025-03-01T12:00:00Z", got.fields["when"])
	assert.Equal(t, "plain", got.fields["note"])
	_, hasSkip := got.fields["skip"]
	assert.False(t, hasSkip)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, seen)
	for i := 1; i < len(seen); i++ {
		assert.GreaterOrEqual(t, seen[i], seen[i-1], "progress must be monotonic")
	}
	assert.Equal(t, int64(len(payload)), seen[len(seen)-1])
}

func TestUploadBinary_RejectsInvalidUploadsBeforeNetwork(t *testing.T) {
	hits := 0
	gw, _, notes := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) { hits++ })

	cases := map[string]*Upload{
		"nil":        nil,
		"no name":    {Name: " ", Body: strings.NewReader("x")},
		"no body":    {Name: "a.pdf"},
		"negative":   {Name: "a.pdf", Size: -1, Body: strings.NewReader("x")},
	}
	for name, up := range cases {
		_, err := gw.UploadBinary(context.Background(), "/files/upload", up, nil)
		assert.Equal(t, KindValidation, KindOf(err), name)
		assert.ErrorIs(t, err, ErrInvalidUpload, name)
	}
	assert.Zero(t, hits)
	assert.Len(t, notes.all(), len(cases))
}

func TestUploadBinary_ServerErrorClassified(t *testing.T) {
	gw, _, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "File too large"})
	})

	_, err := gw.UploadBinary(context.Background(), "/files/upload",
		&Upload{Name: "big.pdf", Size: 4, Body: strings.NewReader("data")}, nil)

	var re *RequestError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, KindBadRequest, re.Kind)
	assert.Equal(t, "File too large", re.Message)
}

func TestFieldValue_Unencodable(t *testing.T) {
	_, err := encodeFields(map[string]any{"bad": func() {}})
	assert.Error(t, err)
}
