package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/dmitrijs2005/docmark/internal/client/models"
)

// Client is the typed backend API used by the services.
type Client interface {
	Login(ctx context.Context, email, password string) (*models.Session, error)
	Register(ctx context.Context, req models.SignupRequest) (*models.Session, error)
	Logout(ctx context.Context) error
	CurrentUser(ctx context.Context) (*models.User, error)
	ForgotPassword(ctx context.Context, email string) error
	Health(ctx context.Context) error

	ListFiles(ctx context.Context, filters *models.FileFilters) (*models.FilePage, error)
	SearchFiles(ctx context.Context, q models.SearchQuery) (*models.FilePage, error)
	GetFile(ctx context.Context, id string) (*models.FileRecord, error)
	UploadFile(ctx context.Context, u *Upload, metadata map[string]any, progress ProgressFunc) (*UploadResult, error)
	ProcessFile(ctx context.Context, id string, action models.ProcessAction, options map[string]any) (*ProcessOutcome, error)
	UpdateFile(ctx context.Context, id string, upd models.FileUpdate) (*models.FileRecord, error)
	DeleteFile(ctx context.Context, id string) error
	DownloadFile(ctx context.Context, id string) (*RawResponse, error)
	Statistics(ctx context.Context) (*models.Statistics, error)
}

// UploadResult is the reply to POST /files/upload.
type UploadResult struct {
	File      models.FileRecord
	Duplicate bool
	Message   string
}

// ProcessOutcome is the reply to POST /files/{id}/process.
type ProcessOutcome struct {
	File    models.FileRecord
	Result  models.ProcessResult
	Message string
}

const (
	pathHealth         = "/health"
	pathLogin          = "/auth/login"
	pathRegister       = "/auth/register"
	pathLogout         = "/auth/logout"
	pathForgotPassword = "/auth/forgot-password"
	pathUser           = "/auth/user"
	pathFiles          = "/files"
	pathUpload         = "/files/upload"
	pathStatistics     = "/files/statistics"
	pathSearch         = "/files/search"
)

func filePath(id string) string     { return "/files/" + url.PathEscape(id) }
func processPath(id string) string  { return filePath(id) + "/process" }
func downloadPath(id string) string { return filePath(id) + "/download" }

// HTTPClient implements Client on top of a Gateway.
type HTTPClient struct {
	gw *Gateway
}

func NewHTTPClient(gw *Gateway) *HTTPClient {
	return &HTTPClient{gw: gw}
}

// malformed turns a decode failure of a 2xx body into a RequestError.
func (c *HTTPClient) malformed(ctx context.Context, method, path string, status int, err error) error {
	return c.gw.fail(ctx, method, path, newRequestError(KindUnexpected, status, "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)))
}

func (c *HTTPClient) Login(ctx context.Context, email, password string) (*models.Session, error) {
	resp, err := c.gw.Post(ctx, pathLogin, loginRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	return c.session(ctx, pathLogin, resp)
}

func (c *HTTPClient) Register(ctx context.Context, req models.SignupRequest) (*models.Session, error) {
	if req.PasswordConfirmation == "" {
		req.PasswordConfirmation = req.Password
	}
	resp, err := c.gw.Post(ctx, pathRegister, req)
	if err != nil {
		return nil, err
	}
	return c.session(ctx, pathRegister, resp)
}

func (c *HTTPClient) session(ctx context.Context, path string, resp *Response) (*models.Session, error) {
	var dto authDTO
	if err := resp.Decode(&dto); err != nil {
		return nil, c.malformed(ctx, http.MethodPost, path, resp.Status, err)
	}
	if dto.Token == "" || dto.User == nil || dto.User.ID == "" {
		return nil, c.malformed(ctx, http.MethodPost, path, resp.Status, errors.New("missing token or user"))
	}
	return &models.Session{
		Token:     dto.Token,
		TokenType: dto.TokenType,
		ExpiresAt: dto.ExpiresAt.t,
		User:      dto.User.toModel(),
	}, nil
}

func (c *HTTPClient) Logout(ctx context.Context) error {
	_, err := c.gw.Post(ctx, pathLogout, nil)
	return err
}

func (c *HTTPClient) CurrentUser(ctx context.Context) (*models.User, error) {
	resp, err := c.gw.Get(ctx, pathUser, nil)
	if err != nil {
		return nil, err
	}

	var wrapped struct {
		User *userDTO `json:"user"`
	}
	if err := resp.Decode(&wrapped); err != nil {
		return nil, c.malformed(ctx, http.MethodGet, pathUser, resp.Status, err)
	}
	dto := wrapped.User
	if dto == nil {
		dto = &userDTO{}
		if err := resp.Decode(dto); err != nil {
			return nil, c.malformed(ctx, http.MethodGet, pathUser, resp.Status, err)
		}
	}
	if dto.ID == "" {
		return nil, c.malformed(ctx, http.MethodGet, pathUser, resp.Status, errors.New("user without id"))
	}
	u := dto.toModel()
	return &u, nil
}

func (c *HTTPClient) ForgotPassword(ctx context.Context, email string) error {
	_, err := c.gw.Post(ctx, pathForgotPassword, map[string]string{"email": email})
	return err
}

func (c *HTTPClient) Health(ctx context.Context) error {
	_, err := c.gw.Get(ctx, pathHealth, nil)
	return err
}

func filterQuery(f *models.FileFilters) url.Values {
	if f == nil {
		return nil
	}
	q := url.Values{}
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	if f.PerPage > 0 {
		q.Set("per_page", strconv.Itoa(f.PerPage))
	}
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	if f.Type != "" {
		q.Set("type", f.Type)
	}
	if f.IsWatermarked != nil {
		q.Set("is_watermarked", strconv.FormatBool(*f.IsWatermarked))
	}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	if f.SortBy != "" {
		q.Set("sort_by", f.SortBy)
	}
	if f.SortOrder != "" {
		q.Set("sort_order", f.SortOrder)
	}
	return q
}

func (c *HTTPClient) ListFiles(ctx context.Context, filters *models.FileFilters) (*models.FilePage, error) {
	resp, err := c.gw.Get(ctx, pathFiles, filterQuery(filters))
	if err != nil {
		return nil, err
	}
	page, err := decodePage(resp.Data)
	if err != nil {
		return nil, c.malformed(ctx, http.MethodGet, pathFiles, resp.Status, err)
	}
	return page, nil
}

func (c *HTTPClient) SearchFiles(ctx context.Context, sq models.SearchQuery) (*models.FilePage, error) {
	q := url.Values{"query": {sq.Query}}
	if sq.Type != "" {
		q.Set("type", sq.Type)
	}
	if sq.WatermarkedOnly {
		q.Set("watermarked_only", "true")
	}
	resp, err := c.gw.Get(ctx, pathSearch, q)
	if err != nil {
		return nil, err
	}
	page, err := decodePage(resp.Data)
	if err != nil {
		return nil, c.malformed(ctx, http.MethodGet, pathSearch, resp.Status, err)
	}
	return page, nil
}

// decodeFile reads a {"file": ...} reply, falling back to a bare record.
func decodeFile(resp *Response) (*models.FileRecord, bool, error) {
	var env fileEnvelope
	if err := resp.Decode(&env); err != nil {
		return nil, false, err
	}
	dto := env.File
	if dto == nil {
		dto = &fileDTO{}
		if err := resp.Decode(dto); err != nil {
			return nil, false, err
		}
	}
	rec, err := dto.toModel()
	if err != nil {
		return nil, false, err
	}
	return &rec, bool(env.Duplicate), nil
}

func (c *HTTPClient) GetFile(ctx context.Context, id string) (*models.FileRecord, error) {
	p := filePath(id)
	resp, err := c.gw.Get(ctx, p, nil)
	if err != nil {
		return nil, err
	}
	rec, _, err := decodeFile(resp)
	if err != nil {
		return nil, c.malformed(ctx, http.MethodGet, p, resp.Status, err)
	}
	return rec, nil
}

// UploadFile posts the document. metadata is sent as one JSON-encoded
// "metadata" form field.
func (c *HTTPClient) UploadFile(ctx context.Context, u *Upload, metadata map[string]any, progress ProgressFunc) (*UploadResult, error) {
	var fields map[string]any
	if len(metadata) > 0 {
		fields = map[string]any{"metadata": metadata}
	}
	var opts []UploadOption
	if progress != nil {
		opts = append(opts, WithProgress(progress))
	}

	resp, err := c.gw.UploadBinary(ctx, pathUpload, u, fields, opts...)
	if err != nil {
		return nil, err
	}

	var env fileEnvelope
	if err := resp.Decode(&env); err != nil {
		return nil, c.malformed(ctx, http.MethodPost, pathUpload, resp.Status, err)
	}
	out := &UploadResult{Duplicate: bool(env.Duplicate), Message: resp.Message}
	if env.File != nil {
		rec, err := env.File.toModel()
		if err != nil {
			return nil, c.malformed(ctx, http.MethodPost, pathUpload, resp.Status, err)
		}
		out.File = rec
	} else if !out.Duplicate {
		return nil, c.malformed(ctx, http.MethodPost, pathUpload, resp.Status, errors.New("missing file"))
	}
	return out, nil
}

func (c *HTTPClient) ProcessFile(ctx context.Context, id string, action models.ProcessAction, options map[string]any) (*ProcessOutcome, error) {
	p := processPath(id)
	resp, err := c.gw.Post(ctx, p, processRequest{Action: action, Options: options})
	if err != nil {
		return nil, err
	}

	var dto processDTO
	if err := resp.Decode(&dto); err != nil {
		return nil, c.malformed(ctx, http.MethodPost, p, resp.Status, err)
	}
	if dto.File == nil {
		return nil, c.malformed(ctx, http.MethodPost, p, resp.Status, errors.New("missing file"))
	}
	rec, err := dto.File.toModel()
	if err != nil {
		return nil, c.malformed(ctx, http.MethodPost, p, resp.Status, err)
	}

	out := &ProcessOutcome{File: rec, Message: resp.Message}
	if r := dto.ProcessingResult; r != nil {
		out.Result = models.ProcessResult{
			Success:           bool(r.Success),
			Action:            r.Action,
			Confidence:        r.Confidence,
			WatermarkID:       r.WatermarkID,
			VerificationScore: r.VerificationScore,
			ProcessingTime:    r.ProcessingTime,
			Error:             r.Error,
		}
	} else {
		out.Result = models.ProcessResult{Success: rec.Status != models.StatusFailed, Action: string(action)}
	}
	return out, nil
}

func (c *HTTPClient) UpdateFile(ctx context.Context, id string, upd models.FileUpdate) (*models.FileRecord, error) {
	p := filePath(id)
	resp, err := c.gw.Put(ctx, p, updateRequest{
		OriginalName: upd.Name,
		IsPublic:     upd.IsPublic,
		Metadata:     upd.Metadata,
		ExpiresAt:    upd.ExpiresAt,
	})
	if err != nil {
		return nil, err
	}
	rec, _, err := decodeFile(resp)
	if err != nil {
		return nil, c.malformed(ctx, http.MethodPut, p, resp.Status, err)
	}
	return rec, nil
}

func (c *HTTPClient) DeleteFile(ctx context.Context, id string) error {
	_, err := c.gw.Delete(ctx, filePath(id))
	return err
}

func (c *HTTPClient) DownloadFile(ctx context.Context, id string) (*RawResponse, error) {
	return c.gw.GetRaw(ctx, downloadPath(id))
}

func (c *HTTPClient) Statistics(ctx context.Context) (*models.Statistics, error) {
	resp, err := c.gw.Get(ctx, pathStatistics, nil)
	if err != nil {
		return nil, err
	}
	var dto statisticsDTO
	if err := resp.Decode(&dto); err != nil || dto.Statistics == nil {
		if err == nil {
			err = errors.New("missing statistics")
		}
		return nil, c.malformed(ctx, http.MethodGet, pathStatistics, resp.Status, err)
	}
	s := dto.Statistics
	out := &models.Statistics{
		TotalFiles:       int(s.TotalFiles),
		TotalSize:        int64(s.TotalSize),
		WatermarkedFiles: int(s.WatermarkedFiles),
		VerifiedFiles:    int(s.VerifiedFiles),
		FilesByType:      make(map[string]int, len(s.FilesByType)),
	}
	for k, v := range s.FilesByType {
		out.FilesByType[k] = int(v.Count)
	}
	return out, nil
}

var _ Client = (*HTTPClient)(nil)
