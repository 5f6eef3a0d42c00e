package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/docmark/internal/client/client"
	"github.com/dmitrijs2005/docmark/internal/client/models"
	"github.com/dmitrijs2005/docmark/internal/logging"
	"github.com/google/uuid"
)

// uploadProgressCap is the highest progress reported before the server
// acknowledged the upload.
const uploadProgressCap = 0.95

// MetaClientSHA256 is the upload metadata key carrying the locally
// computed digest of seekable payloads.
const MetaClientSHA256 = "client_sha256"

// SubmitOptions tunes one Submit call.
type SubmitOptions struct {
	// Verify runs a verification pass after a successful watermark.
	Verify bool
	// Metadata is sent with the upload.
	Metadata map[string]any
	// Progress receives a copy of the pending operation on every change.
	Progress func(op models.PendingOperation)
}

// Pipeline runs the upload -> watermark -> verify workflow.
//
// Every stage settles before the next starts and nothing is retried
// automatically. A failing stage never undoes an earlier one: the record
// returned alongside a watermark or verify error is the uploaded file.
type Pipeline interface {
	Submit(ctx context.Context, u *client.Upload, opts SubmitOptions) (*models.FileRecord, error)
	Verify(ctx context.Context, id string) (*models.FileRecord, error)
	Rewatermark(ctx context.Context, id string) (*models.FileRecord, error)
	Pending() []models.PendingOperation
}

type pipeline struct {
	client   client.Client
	registry FileRegistry
	notifier client.Notifier
	log      logging.Logger
	now      func() time.Time

	mu      sync.Mutex
	pending map[string]*models.PendingOperation
}

func NewPipeline(c client.Client, registry FileRegistry, notifier client.Notifier, log logging.Logger) Pipeline {
	if notifier == nil {
		notifier = client.NopNotifier
	}
	if log == nil {
		log = logging.Discard()
	}
	return &pipeline{
		client:   c,
		registry: registry,
		notifier: notifier,
		log:      log.With("component", "pipeline"),
		now:      time.Now,
		pending:  map[string]*models.PendingOperation{},
	}
}

// tracker is the handle to one registered pending operation.
type tracker struct {
	p        *pipeline
	key      string
	progress func(models.PendingOperation)
	once     sync.Once
}

// acquire registers key, rejecting it while another operation holds it.
func (p *pipeline) acquire(key, name, fileID string, progress func(models.PendingOperation)) (*tracker, error) {
	p.mu.Lock()
	if _, busy := p.pending[key]; busy {
		p.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrDuplicateSubmission, name)
	}
	op := &models.PendingOperation{
		ID:          uuid.NewString(),
		Key:         key,
		Name:        name,
		FileID:      fileID,
		SubmittedAt: p.now(),
		Stage:       models.StageValidating,
	}
	p.pending[key] = op
	p.mu.Unlock()

	t := &tracker{p: p, key: key, progress: progress}
	t.report()
	return t, nil
}

// update mutates the pending operation under the pipeline lock and then
// reports it.
func (t *tracker) update(fn func(op *models.PendingOperation)) {
	t.p.mu.Lock()
	if op, ok := t.p.pending[t.key]; ok {
		fn(op)
	}
	t.p.mu.Unlock()
	t.report()
}

func (t *tracker) report() {
	if t.progress == nil {
		return
	}
	t.p.mu.Lock()
	op, ok := t.p.pending[t.key]
	var cp models.PendingOperation
	if ok {
		cp = *op
	}
	t.p.mu.Unlock()
	if ok {
		t.progress(cp)
	}
}

// release settles the operation and frees its key. Only the first call
// has an effect.
func (t *tracker) release(outcome models.Outcome) {
	t.once.Do(func() {
		t.p.mu.Lock()
		op, ok := t.p.pending[t.key]
		var cp models.PendingOperation
		if ok {
			op.Outcome = outcome
			if outcome == models.OutcomeSucceeded {
				op.Stage = models.StageDone
			}
			cp = *op
			delete(t.p.pending, t.key)
		}
		t.p.mu.Unlock()
		if ok && t.progress != nil {
			t.progress(cp)
		}
	})
}

func (p *pipeline) Pending() []models.PendingOperation {
	p.mu.Lock()
	out := make([]models.PendingOperation, 0, len(p.pending))
	for _, op := range p.pending {
		out = append(out, *op)
	}
	p.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].SubmittedAt.Before(out[j].SubmittedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (p *pipeline) notify(ctx context.Context, n client.Notification) {
	p.notifier.Notify(ctx, n)
}

// reject reports a locally detected validation failure the same way the
// gateway reports server-side ones.
func (p *pipeline) reject(ctx context.Context, title, msg string, cause error) error {
	re := &client.RequestError{
		Kind:        client.KindValidation,
		Message:     msg,
		FieldErrors: map[string][]string{client.UploadFieldName: {msg}},
		Err:         cause,
	}
	p.notify(ctx, client.Notification{Level: client.LevelError, Title: title, Message: msg, Err: re})
	return re
}

func (p *pipeline) Submit(ctx context.Context, u *client.Upload, opts SubmitOptions) (res *models.FileRecord, err error) {
	if u == nil {
		return nil, p.reject(ctx, "Invalid File", "No file selected", client.ErrInvalidUpload)
	}
	if !models.Accepted(u.Name, u.ContentType) {
		return nil, p.reject(ctx, "Invalid File Type", "Only PDF, DOC and DOCX files are supported",
			fmt.Errorf("%w: %s", ErrUnsupportedType, u.Name))
	}

	t, err := p.acquire(models.DedupKey(u.Name, u.Size, u.ModTime), u.Name, "", opts.Progress)
	if err != nil {
		p.notify(ctx, client.Notification{
			Level:   client.LevelWarning,
			Title:   "Upload In Progress",
			Message: u.Name + " is already being uploaded",
		})
		return nil, err
	}
	defer func() {
		if err != nil {
			t.release(models.OutcomeFailed)
		} else {
			t.release(models.OutcomeSucceeded)
		}
	}()

	rec, err := p.upload(ctx, t, u, opts.Metadata)
	if err != nil {
		return nil, err
	}

	t.update(func(op *models.PendingOperation) { op.Stage = models.StageWatermark })
	rec, err = p.process(ctx, rec, models.ActionWatermark, false)
	if err != nil || !opts.Verify {
		return rec, err
	}

	t.update(func(op *models.PendingOperation) { op.Stage = models.StageVerify })
	return p.process(ctx, rec, models.ActionVerify, false)
}

// upload runs the upload stage. On failure no registry record is left.
func (p *pipeline) upload(ctx context.Context, t *tracker, u *client.Upload, metadata map[string]any) (*models.FileRecord, error) {
	meta := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		meta[k] = v
	}

	body := *u
	var h hash.Hash
	if rs, ok := u.Body.(io.ReadSeeker); ok {
		sum, err := digest(rs)
		if err != nil {
			return nil, p.reject(ctx, "Invalid File", "File could not be read", fmt.Errorf("%w: %v", client.ErrInvalidUpload, err))
		}
		meta[MetaClientSHA256] = sum
	} else if u.Body != nil {
		h = sha256.New()
		body.Body = io.TeeReader(u.Body, h)
	}

	prov := p.registry.Track(u.Name, u.Size, u.ContentType)
	t.update(func(op *models.PendingOperation) {
		op.Stage = models.StageUploading
		op.FileID = prov.ID
	})

	progress := func(sent, total int64) {
		if total <= 0 {
			return
		}
		f := float64(sent) / float64(total)
		if f > uploadProgressCap {
			f = uploadProgressCap
		}
		t.update(func(op *models.PendingOperation) {
			if f > op.Progress {
				op.Progress = f
			}
		})
	}

	res, err := p.client.UploadFile(ctx, &body, meta, progress)
	if err != nil {
		p.discard(ctx, prov.ID)
		return nil, err
	}
	if res.Duplicate {
		p.discard(ctx, prov.ID)
		return nil, p.reject(ctx, "Duplicate File", "File already exists", ErrDuplicateFile)
	}

	rec, _ := sanitize(res.File)
	if err := p.registry.Upsert(rec); err != nil {
		p.discard(ctx, prov.ID)
		return nil, fmt.Errorf("register upload: %w", err)
	}
	p.discard(ctx, prov.ID)

	local := ""
	if s, ok := meta[MetaClientSHA256].(string); ok {
		local = s
	} else if h != nil {
		local = hex.EncodeToString(h.Sum(nil))
	}
	if local != "" && rec.Hashes.SHA256 != "" && local != rec.Hashes.SHA256 {
		p.log.Warn(ctx, "server digest differs from local digest", "id", rec.ID, "local", local, "server", rec.Hashes.SHA256)
		p.notify(ctx, client.Notification{
			Level:   client.LevelWarning,
			Title:   "Checksum Mismatch",
			Message: "The server stored " + rec.OriginalName + " with a different checksum",
		})
	}

	t.update(func(op *models.PendingOperation) {
		op.Progress = 1
		op.FileID = rec.ID
	})
	p.log.Info(ctx, "file uploaded", "id", rec.ID, "name", rec.OriginalName, "size", rec.SizeBytes)
	p.notify(ctx, client.Notification{
		Level:   client.LevelSuccess,
		Title:   "Upload Complete",
		Message: rec.OriginalName + " uploaded successfully",
	})

	out, _ := p.registry.FindByID(rec.ID)
	return &out, nil
}

func (p *pipeline) discard(ctx context.Context, id string) {
	if err := p.registry.Discard(id); err != nil {
		p.log.Debug(ctx, "discard provisional record", "id", id, "error", err)
	}
}

func digest(rs io.ReadSeeker) (string, error) {
	start, err := rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	if _, err := io.Copy(h, rs); err != nil {
		return "", err
	}
	if _, err := rs.Seek(start, io.SeekStart); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (p *pipeline) Verify(ctx context.Context, id string) (*models.FileRecord, error) {
	return p.reprocess(ctx, id, models.ActionVerify, models.StageVerify)
}

func (p *pipeline) Rewatermark(ctx context.Context, id string) (*models.FileRecord, error) {
	return p.reprocess(ctx, id, models.ActionWatermark, models.StageWatermark)
}

// reprocess is a user-initiated processing run on an existing file. It may
// restart a Failed file.
func (p *pipeline) reprocess(ctx context.Context, id string, action models.ProcessAction, stage models.Stage) (res *models.FileRecord, err error) {
	rec, ok := p.registry.FindByID(id)
	if !ok || rec.Provisional {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, id)
	}

	t, err := p.acquire(models.ProcessKey(id), rec.OriginalName, id, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			t.release(models.OutcomeFailed)
		} else {
			t.release(models.OutcomeSucceeded)
		}
	}()

	t.update(func(op *models.PendingOperation) { op.Stage = stage })
	return p.process(ctx, &rec, action, true)
}

// process runs one processing stage: an optimistic Processing patch, the
// server call, then an authoritative patch or a Failed patch.
func (p *pipeline) process(ctx context.Context, rec *models.FileRecord, action models.ProcessAction, retry bool) (*models.FileRecord, error) {
	id := rec.ID
	if err := p.registry.Patch(id, models.FilePatch{
		Status:          models.Ptr(models.StatusProcessing),
		ProcessingError: models.Ptr(""),
		Retry:           retry,
	}); err != nil {
		return p.current(id, rec), err
	}

	out, err := p.client.ProcessFile(ctx, id, action, nil)
	if err != nil {
		p.fail(ctx, id, err.Error())
		p.log.Warn(ctx, "processing failed", "id", id, "action", action, "error", err)
		return p.current(id, rec), err
	}

	settled, _ := sanitize(out.File)
	patch := models.PatchFromRecord(settled)
	if action == models.ActionVerify {
		cur := p.current(id, rec)
		n := cur.VerificationCount + 1
		if settled.VerificationCount > n {
			n = settled.VerificationCount
		}
		patch.VerificationCount = models.Ptr(n)
	}

	failed := !out.Result.Success && action == models.ActionWatermark
	if failed {
		patch.Status = models.Ptr(models.StatusFailed)
		msg := out.Result.Error
		if msg == "" {
			msg = out.Message
		}
		patch.ProcessingError = models.Ptr(msg)
	}
	if settled.Status == models.StatusDeleted {
		patch.Status = nil
	}

	if err := p.registry.Patch(id, patch); err != nil {
		if !errors.Is(err, ErrInvalidTransition) {
			return p.current(id, rec), err
		}
		p.log.Warn(ctx, "ignoring server status", "id", id, "status", settled.Status)
		patch.Status = nil
		if err := p.registry.Patch(id, patch); err != nil {
			return p.current(id, rec), err
		}
		final := models.StatusProcessed
		if failed {
			final = models.StatusFailed
		}
		p.settle(ctx, id, final)
	}

	cur := p.current(id, rec)
	if failed {
		p.log.Warn(ctx, "watermark rejected", "id", id, "error", cur.ProcessingError)
		return cur, fmt.Errorf("%w: %s", ErrProcessingFailed, cur.ProcessingError)
	}

	p.log.Info(ctx, "file processed", "id", id, "action", action, "success", out.Result.Success)
	p.notify(ctx, successNotification(cur, action, out.Result))
	return cur, nil
}

// settle moves a record whose stage has finished into the stage's terminal
// status. A Load that landed mid-stage may have replaced the local status
// with an older server one, so the record is walked back through
// Processing first.
func (p *pipeline) settle(ctx context.Context, id string, final models.FileStatus) {
	cur, ok := p.registry.FindByID(id)
	if !ok || cur.Status == final {
		return
	}
	if cur.Status != models.StatusProcessing {
		if err := p.registry.Patch(id, models.FilePatch{Status: models.Ptr(models.StatusProcessing), Retry: true}); err != nil {
			p.log.Warn(ctx, "settle stage", "id", id, "from", cur.Status, "error", err)
			return
		}
	}
	if err := p.registry.Patch(id, models.FilePatch{Status: models.Ptr(final)}); err != nil {
		p.log.Warn(ctx, "settle stage", "id", id, "to", final, "error", err)
	}
}

func (p *pipeline) fail(ctx context.Context, id, msg string) {
	if err := p.registry.Patch(id, models.FilePatch{
		Status:          models.Ptr(models.StatusFailed),
		ProcessingError: models.Ptr(msg),
	}); err != nil {
		p.log.Warn(ctx, "mark failed", "id", id, "error", err)
	}
}

// current returns the registry's copy of the record, or fallback when it
// is gone (for example after a reset).
func (p *pipeline) current(id string, fallback *models.FileRecord) *models.FileRecord {
	if rec, ok := p.registry.FindByID(id); ok {
		return &rec
	}
	return fallback
}

func successNotification(rec *models.FileRecord, action models.ProcessAction, res models.ProcessResult) client.Notification {
	if action == models.ActionWatermark {
		return client.Notification{
			Level:   client.LevelSuccess,
			Title:   "Watermark Applied",
			Message: rec.OriginalName + " is now watermarked",
		}
	}
	if res.Success && rec.IsVerified {
		return client.Notification{
			Level:   client.LevelSuccess,
			Title:   "Verification Complete",
			Message: fmt.Sprintf("Watermark detected in %s (confidence %.0f%%)", rec.OriginalName, res.Confidence),
		}
	}
	return client.Notification{
		Level:   client.LevelWarning,
		Title:   "Verification Complete",
		Message: "No watermark detected in " + rec.OriginalName,
	}
}
