package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/docmark/internal/common"
	"github.com/dmitrijs2005/docmark/internal/netx"
)

// UploadFieldName is the multipart field that carries the payload.
const UploadFieldName = "file"

// Upload is a file-like payload for UploadBinary.
type Upload struct {
	Name        string
	Size        int64
	ModTime     time.Time
	ContentType string
	Body        io.Reader
}

func (u *Upload) validate() error {
	switch {
	case u == nil:
		return fmt.Errorf("%w: no file", ErrInvalidUpload)
	case strings.TrimSpace(u.Name) == "":
		return fmt.Errorf("%w: file has no name", ErrInvalidUpload)
	case u.Body == nil:
		return fmt.Errorf("%w: file has no content", ErrInvalidUpload)
	case u.Size < 0:
		return fmt.Errorf("%w: negative size", ErrInvalidUpload)
	}
	return nil
}

// ProgressFunc receives the number of payload bytes written to the wire
// so far and the declared total. Calls are sequential and sent never
// decreases.
type ProgressFunc func(sent, total int64)

type uploadConfig struct {
	progress ProgressFunc
}

type UploadOption func(*uploadConfig)

func WithProgress(fn ProgressFunc) UploadOption {
	return func(c *uploadConfig) { c.progress = fn }
}

// UploadBinary posts u as multipart/form-data under UploadFieldName. Each
// entry of fields becomes an extra form field: scalars as text, time.Time
// as RFC 3339, anything else JSON-encoded. nil values are skipped. The body
// is streamed, so progress reflects bytes actually handed to the transport.
func (g *Gateway) UploadBinary(ctx context.Context, path string, u *Upload, fields map[string]any, opts ...UploadOption) (*Response, error) {
	if err := u.validate(); err != nil {
		return nil, g.fail(ctx, http.MethodPost, path, newRequestError(KindValidation, 0, err.Error(), err))
	}

	cfg := uploadConfig{}
	for _, o := range opts {
		o(&cfg)
	}

	encoded, err := encodeFields(fields)
	if err != nil {
		return nil, g.fail(ctx, http.MethodPost, path, newRequestError(KindValidation, 0, err.Error(), err))
	}

	var out *Response
	err = g.round(ctx, http.MethodPost, path, func(ctx context.Context) (*http.Request, error) {
		pr, pw := io.Pipe()
		mw := multipart.NewWriter(pw)

		go func() {
			pw.CloseWithError(writeMultipart(mw, u, encoded, cfg.progress))
		}()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, netx.JoinURL(g.baseURL, path, nil), pr)
		if err != nil {
			_ = pr.CloseWithError(err)
			return nil, err
		}
		req.Header.Set(common.ContentTypeHeader, mw.FormDataContentType())
		return req, nil
	}, func(resp *http.Response) error {
		r, err := normalize(resp)
		out = r
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

type formField struct {
	name, value string
}

func encodeFields(fields map[string]any) ([]formField, error) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]formField, 0, len(keys))
	for _, k := range keys {
		v, ok, err := fieldValue(fields[k])
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		if ok {
			out = append(out, formField{name: k, value: v})
		}
	}
	return out, nil
}

func fieldValue(v any) (string, bool, error) {
	switch x := v.(type) {
	case nil:
		return "", false, nil
	case string:
		return x, true, nil
	case bool:
		return strconv.FormatBool(x), true, nil
	case int:
		return strconv.Itoa(x), true, nil
	case int64:
		return strconv.FormatInt(x, 10), true, nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true, nil
	case time.Time:
		return x.Format(time.RFC3339), true, nil
	case json.RawMessage:
		return string(x), true, nil
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return "", false, err
		}
		return string(b), true, nil
	}
}

func writeMultipart(mw *multipart.Writer, u *Upload, fields []formField, progress ProgressFunc) error {
	for _, f := range fields {
		if err := mw.WriteField(f.name, f.value); err != nil {
			return err
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, UploadFieldName, u.Name))
	ct := u.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set(common.ContentTypeHeader, ct)

	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}

	src := u.Body
	if progress != nil {
		src = &progressReader{r: u.Body, total: u.Size, fn: progress}
	}
	if _, err := io.Copy(part, src); err != nil {
		return err
	}
	return mw.Close()
}

type progressReader struct {
	r     io.Reader
	sent  int64
	total int64
	fn    ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.sent += int64(n)
		p.fn(p.sent, p.total)
	}
	return n, err
}
