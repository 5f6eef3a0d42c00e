package services

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/dmitrijs2005/docmark/internal/client/client"
	"github.com/dmitrijs2005/docmark/internal/client/models"
)

// fakeClient implements client.Client for service tests. Hooks override
// the default behaviour; Last* fields record arguments.
type fakeClient struct {
	mu sync.Mutex

	LoginFn       func(ctx context.Context, email, password string) (*models.Session, error)
	RegisterFn    func(ctx context.Context, req models.SignupRequest) (*models.Session, error)
	LogoutErr     error
	CurrentUserFn func(ctx context.Context) (*models.User, error)
	ListFilesFn   func(ctx context.Context, f *models.FileFilters) (*models.FilePage, error)
	UploadFn      func(ctx context.Context, u *client.Upload, meta map[string]any, progress client.ProgressFunc) (*client.UploadResult, error)
	ProcessFn     func(ctx context.Context, id string, action models.ProcessAction) (*client.ProcessOutcome, error)
	UpdateFn      func(ctx context.Context, id string, upd models.FileUpdate) (*models.FileRecord, error)
	DeleteErr     error
	DownloadFn    func(ctx context.Context, id string) (*client.RawResponse, error)

	LastLoginEmail  string
	LastSignup      models.SignupRequest
	LastUploadMeta  map[string]any
	LastUploadBody  []byte
	LastUpdate      models.FileUpdate
	LastDeletedID   string
	LastDownloadID  string
	LogoutCalls     int
	ListCalls       int
	UploadCalls     int
	ProcessActions  []models.ProcessAction
	CurrentUserCall int
}

func (f *fakeClient) Login(ctx context.Context, email, password string) (*models.Session, error) {
	f.mu.Lock()
	f.LastLoginEmail = email
	fn := f.LoginFn
	f.mu.Unlock()
	if fn == nil {
		return nil, errors.New("login not configured")
	}
	return fn(ctx, email, password)
}

func (f *fakeClient) Register(ctx context.Context, req models.SignupRequest) (*models.Session, error) {
	f.mu.Lock()
	f.LastSignup = req
	fn := f.RegisterFn
	f.mu.Unlock()
	if fn == nil {
		return nil, errors.New("register not configured")
	}
	return fn(ctx, req)
}

func (f *fakeClient) Logout(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LogoutCalls++
	return f.LogoutErr
}

func (f *fakeClient) CurrentUser(ctx context.Context) (*models.User, error) {
	f.mu.Lock()
	f.CurrentUserCall++
	fn := f.CurrentUserFn
	f.mu.Unlock()
	if fn == nil {
		return nil, errors.New("current user not configured")
	}
	return fn(ctx)
}

func (f *fakeClient) ForgotPassword(context.Context, string) error { return nil }
func (f *fakeClient) Health(context.Context) error                 { return nil }

func (f *fakeClient) ListFiles(ctx context.Context, filters *models.FileFilters) (*models.FilePage, error) {
	f.mu.Lock()
	f.ListCalls++
	fn := f.ListFilesFn
	f.mu.Unlock()
	if fn == nil {
		return &models.FilePage{}, nil
	}
	return fn(ctx, filters)
}

func (f *fakeClient) SearchFiles(context.Context, models.SearchQuery) (*models.FilePage, error) {
	return &models.FilePage{}, nil
}

func (f *fakeClient) GetFile(context.Context, string) (*models.FileRecord, error) {
	return nil, errors.New("not used")
}

func (f *fakeClient) UploadFile(ctx context.Context, u *client.Upload, meta map[string]any, progress client.ProgressFunc) (*client.UploadResult, error) {
	var body []byte
	if u != nil && u.Body != nil {
		body, _ = io.ReadAll(u.Body)
		if progress != nil {
			progress(int64(len(body))/2, u.Size)
			progress(int64(len(body)), u.Size)
		}
	}
	f.mu.Lock()
	f.UploadCalls++
	f.LastUploadMeta = meta
	f.LastUploadBody = body
	fn := f.UploadFn
	f.mu.Unlock()
	if fn == nil {
		return nil, errors.New("upload not configured")
	}
	return fn(ctx, u, meta, progress)
}

func (f *fakeClient) ProcessFile(ctx context.Context, id string, action models.ProcessAction, _ map[string]any) (*client.ProcessOutcome, error) {
	f.mu.Lock()
	f.ProcessActions = append(f.ProcessActions, action)
	fn := f.ProcessFn
	f.mu.Unlock()
	if fn == nil {
		return nil, errors.New("process not configured")
	}
	return fn(ctx, id, action)
}

func (f *fakeClient) UpdateFile(ctx context.Context, id string, upd models.FileUpdate) (*models.FileRecord, error) {
	f.mu.Lock()
	f.LastUpdate = upd
	fn := f.UpdateFn
	f.mu.Unlock()
	if fn == nil {
		return nil, errors.New("update not configured")
	}
	return fn(ctx, id, upd)
}

func (f *fakeClient) DeleteFile(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LastDeletedID = id
	return f.DeleteErr
}

func (f *fakeClient) DownloadFile(ctx context.Context, id string) (*client.RawResponse, error) {
	f.mu.Lock()
	f.LastDownloadID = id
	fn := f.DownloadFn
	f.mu.Unlock()
	if fn == nil {
		return nil, errors.New("download not configured")
	}
	return fn(ctx, id)
}

func (f *fakeClient) Statistics(context.Context) (*models.Statistics, error) {
	return &models.Statistics{}, nil
}

var _ client.Client = (*fakeClient)(nil)

// staticAuth is an AuthState with a fixed answer.
type staticAuth bool

func (a staticAuth) Authenticated() bool { return bool(a) }

type recordingNotifier struct {
	mu  sync.Mutex
	got []client.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n client.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
}

func (r *recordingNotifier) titles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.got))
	for i, n := range r.got {
		out[i] = n.Title
	}
	return out
}

// reqErr builds the error the gateway would return for kind.
func reqErr(kind client.Kind, status int, msg string) *client.RequestError {
	return &client.RequestError{Kind: kind, HTTPStatus: status, Message: msg}
}
