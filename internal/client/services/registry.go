package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/docmark/internal/client/client"
	"github.com/dmitrijs2005/docmark/internal/client/export"
	"github.com/dmitrijs2005/docmark/internal/client/models"
	"github.com/dmitrijs2005/docmark/internal/logging"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// AuthState gates registry activity on the session.
type AuthState interface {
	Authenticated() bool
}

// RegistryListener receives the full file list after each mutation.
type RegistryListener func(files []models.FileRecord)

// FileRegistry is the authoritative local projection of the user's files.
// Records are only changed through its mutators; readers always get copies.
type FileRegistry interface {
	Load(ctx context.Context, filters *models.FileFilters) error
	Reset()

	Upsert(rec models.FileRecord) error
	Patch(id string, p models.FilePatch) error
	Remove(ctx context.Context, id string) error
	Update(ctx context.Context, id string, upd models.FileUpdate) (*models.FileRecord, error)
	Download(ctx context.Context, id string, sink export.Sink) (string, error)

	Track(name string, size int64, mimeType string) models.FileRecord
	Discard(id string) error

	FindByID(id string) (models.FileRecord, bool)
	Files() []models.FileRecord
	Stats() models.Stats
	Subscribe(fn RegistryListener) (unsubscribe func())
}

type entry struct {
	rec models.FileRecord
	seq uint64
}

type fileRegistry struct {
	client client.Client
	auth   AuthState
	log    logging.Logger
	now    func() time.Time

	loads singleflight.Group

	mu    sync.RWMutex
	files map[string]*entry
	seq   uint64
	// generation changes on Reset; loads started before it are dropped.
	generation uint64

	lmu       sync.Mutex
	listeners map[int]RegistryListener
	nextID    int
}

func NewFileRegistry(c client.Client, auth AuthState, log logging.Logger) FileRegistry {
	if log == nil {
		log = logging.Discard()
	}
	return &fileRegistry{
		client:    c,
		auth:      auth,
		log:       log.With("component", "registry"),
		now:       time.Now,
		files:     map[string]*entry{},
		listeners: map[int]RegistryListener{},
	}
}

func loadKey(f *models.FileFilters) string {
	if f == nil {
		return "all"
	}
	wm := "-"
	if f.IsWatermarked != nil {
		wm = fmt.Sprint(*f.IsWatermarked)
	}
	return fmt.Sprintf("%d|%d|%s|%s|%s|%s|%s|%s", f.Page, f.PerPage, f.Status, f.Type, wm, f.Search, f.SortBy, f.SortOrder)
}

// Load replaces the contents with the server listing. Provisional records
// of uploads still in flight are kept. Identical concurrent loads share
// one request.
func (r *fileRegistry) Load(ctx context.Context, filters *models.FileFilters) error {
	if r.auth != nil && !r.auth.Authenticated() {
		r.Reset()
		return nil
	}

	r.mu.RLock()
	gen := r.generation
	r.mu.RUnlock()

	// The shared request must outlive any single caller, so it runs detached
	// from cancellation; each caller still stops waiting when its ctx ends.
	ch := r.loads.DoChan(loadKey(filters), func() (any, error) {
		return r.client.ListFiles(context.WithoutCancel(ctx), filters)
	})
	var res singleflight.Result
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return res.Err
	}
	page := res.Val.(*models.FilePage)
	shared := res.Shared

	r.mu.Lock()
	if r.generation != gen {
		r.mu.Unlock()
		r.log.Debug(ctx, "discarding load settled after reset")
		return nil
	}

	next := make(map[string]*entry, len(page.Files))
	for _, e := range r.files {
		if e.rec.Provisional {
			next[e.rec.ID] = e
		}
	}
	for _, rec := range page.Files {
		if rec.Status == models.StatusDeleted || rec.ID == "" {
			continue
		}
		rec, fixed := sanitize(rec)
		if fixed {
			r.log.Warn(ctx, "server reports watermark without id", "id", rec.ID)
		}
		if old, ok := r.files[rec.ID]; ok && old.rec.VerificationCount > rec.VerificationCount {
			rec.VerificationCount = old.rec.VerificationCount
		}
		r.seq++
		next[rec.ID] = &entry{rec: rec, seq: r.seq}
	}
	r.files = next
	r.mu.Unlock()

	r.log.Debug(ctx, "files loaded", "count", len(page.Files), "shared", shared)
	r.changed()
	return nil
}

// sanitize makes a server record satisfy the watermark invariant. A flag
// without an id is dropped; an id without the flag is ignored.
func sanitize(rec models.FileRecord) (models.FileRecord, bool) {
	rec = rec.Clone()
	fixed := rec.IsWatermarked && rec.WatermarkID == ""
	if fixed {
		rec.IsWatermarked = false
	}
	if !rec.IsWatermarked {
		rec.WatermarkID = ""
	}
	return rec, fixed
}

func (r *fileRegistry) Reset() {
	r.mu.Lock()
	r.generation++
	r.files = map[string]*entry{}
	r.mu.Unlock()
	r.changed()
}

// Upsert inserts rec or replaces the stored record with it. Status
// transitions are not checked: rec is authoritative. The verification
// count is still kept monotonic.
func (r *fileRegistry) Upsert(rec models.FileRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("%w: empty id", ErrFileNotFound)
	}
	rec = rec.Clone()
	if !rec.IsWatermarked {
		rec.WatermarkID = ""
	}
	if rec.IsWatermarked && rec.WatermarkID == "" {
		return ErrWatermarkInvariant
	}

	r.mu.Lock()
	if old, ok := r.files[rec.ID]; ok {
		if old.rec.VerificationCount > rec.VerificationCount {
			rec.VerificationCount = old.rec.VerificationCount
		}
		old.rec = rec
	} else {
		r.seq++
		r.files[rec.ID] = &entry{rec: rec, seq: r.seq}
	}
	r.mu.Unlock()

	r.changed()
	return nil
}

// Patch merges the non-nil fields of p into the record. Nothing is applied
// when the result would break a record invariant.
func (r *fileRegistry) Patch(id string, p models.FilePatch) error {
	r.mu.Lock()
	e, ok := r.files[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrFileNotFound, id)
	}

	next, err := apply(e.rec, p)
	if err != nil {
		r.mu.Unlock()
		return fmt.Errorf("patch %s: %w", id, err)
	}
	e.rec = next
	r.mu.Unlock()

	r.changed()
	return nil
}

func apply(cur models.FileRecord, p models.FilePatch) (models.FileRecord, error) {
	next := cur.Clone()

	if p.Status != nil {
		if !models.CanTransition(cur.Status, *p.Status, p.Retry) {
			return cur, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur.Status, *p.Status)
		}
		next.Status = *p.Status
	}
	if p.OriginalName != nil {
		next.OriginalName = *p.OriginalName
	}
	if p.IsWatermarked != nil {
		next.IsWatermarked = *p.IsWatermarked
		if !next.IsWatermarked {
			next.WatermarkID = ""
		}
	}
	if p.WatermarkID != nil {
		next.WatermarkID = *p.WatermarkID
		if p.IsWatermarked == nil {
			next.IsWatermarked = next.WatermarkID != ""
		}
	}
	if p.IsVerified != nil {
		next.IsVerified = *p.IsVerified
	}
	if p.VerificationCount != nil && *p.VerificationCount > next.VerificationCount {
		next.VerificationCount = *p.VerificationCount
	}
	if p.ProcessedAt != nil {
		t := *p.ProcessedAt
		next.ProcessedAt = &t
	}
	if p.LastAccessedAt != nil {
		t := *p.LastAccessedAt
		next.LastAccessedAt = &t
	}
	if p.ProcessingError != nil {
		next.ProcessingError = *p.ProcessingError
	}
	if p.Hashes != nil {
		next.Hashes = *p.Hashes
	}
	if p.Metadata != nil {
		next.Metadata = make(map[string]any, len(p.Metadata))
		for k, v := range p.Metadata {
			next.Metadata[k] = v
		}
	}
	if p.IsPublic != nil {
		next.IsPublic = *p.IsPublic
	}
	if p.PublicURL != nil {
		next.PublicURL = *p.PublicURL
	}

	if next.IsWatermarked != (next.WatermarkID != "") {
		return cur, ErrWatermarkInvariant
	}
	return next, nil
}

// Remove deletes the file on the server first. The local record is only
// dropped once the server confirmed.
func (r *fileRegistry) Remove(ctx context.Context, id string) error {
	if _, ok := r.FindByID(id); !ok {
		return fmt.Errorf("%w: %s", ErrFileNotFound, id)
	}
	if err := r.client.DeleteFile(ctx, id); err != nil {
		return err
	}

	r.mu.Lock()
	delete(r.files, id)
	r.mu.Unlock()

	r.log.Info(ctx, "file deleted", "id", id)
	r.changed()
	return nil
}

// Update sends a rename, visibility or metadata change and merges the
// server's answer. Status is left alone.
func (r *fileRegistry) Update(ctx context.Context, id string, upd models.FileUpdate) (*models.FileRecord, error) {
	if _, ok := r.FindByID(id); !ok {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, id)
	}
	rec, err := r.client.UpdateFile(ctx, id, upd)
	if err != nil {
		return nil, err
	}

	p := models.FilePatch{
		OriginalName: models.Ptr(rec.OriginalName),
		IsPublic:     models.Ptr(rec.IsPublic),
		PublicURL:    models.Ptr(rec.PublicURL),
		Metadata:     rec.Metadata,
	}
	if err := r.Patch(id, p); err != nil {
		return nil, err
	}
	out, _ := r.FindByID(id)
	return &out, nil
}

// Download fetches the document and hands it to sink. It returns where
// the sink stored it.
func (r *fileRegistry) Download(ctx context.Context, id string, sink export.Sink) (string, error) {
	rec, ok := r.FindByID(id)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrFileNotFound, id)
	}

	raw, err := r.client.DownloadFile(ctx, id)
	if err != nil {
		return "", err
	}

	name := raw.Filename
	if name == "" {
		name = rec.OriginalName
	}
	ct := raw.ContentType
	if ct == "" {
		ct = rec.MimeType
	}

	loc, err := sink.Put(ctx, name, ct, raw.Data)
	if err != nil {
		return "", fmt.Errorf("store download: %w", err)
	}

	if err := r.Patch(id, models.FilePatch{LastAccessedAt: models.Ptr(r.now())}); err != nil {
		r.log.Debug(ctx, "touch after download", "id", id, "error", err)
	}
	return loc, nil
}

// Track adds a provisional Uploading record for an upload in flight.
func (r *fileRegistry) Track(name string, size int64, mimeType string) models.FileRecord {
	rec := models.FileRecord{
		ID:           "local-" + uuid.NewString(),
		OriginalName: name,
		SizeBytes:    size,
		MimeType:     mimeType,
		Extension:    models.Extension(name),
		Status:       models.StatusUploading,
		UploadedAt:   r.now(),
		Provisional:  true,
	}

	r.mu.Lock()
	r.seq++
	r.files[rec.ID] = &entry{rec: rec, seq: r.seq}
	r.mu.Unlock()

	r.changed()
	return rec.Clone()
}

// Discard drops a provisional record. Server-backed records can only go
// through Remove.
func (r *fileRegistry) Discard(id string) error {
	r.mu.Lock()
	e, ok := r.files[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrFileNotFound, id)
	}
	if !e.rec.Provisional {
		r.mu.Unlock()
		return ErrNotProvisional
	}
	delete(r.files, id)
	r.mu.Unlock()

	r.changed()
	return nil
}

func (r *fileRegistry) FindByID(id string) (models.FileRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.files[id]
	if !ok {
		return models.FileRecord{}, false
	}
	return e.rec.Clone(), true
}

// Files returns all records, newest upload first.
func (r *fileRegistry) Files() []models.FileRecord {
	r.mu.RLock()
	es := make([]*entry, 0, len(r.files))
	for _, e := range r.files {
		es = append(es, e)
	}
	sort.Slice(es, func(i, j int) bool {
		a, b := es[i], es[j]
		if !a.rec.UploadedAt.Equal(b.rec.UploadedAt) {
			return a.rec.UploadedAt.After(b.rec.UploadedAt)
		}
		return a.seq > b.seq
	})
	out := make([]models.FileRecord, len(es))
	for i, e := range es {
		out[i] = e.rec.Clone()
	}
	r.mu.RUnlock()
	return out
}

// Stats is computed from the current records on every call. Provisional
// records are not counted.
func (r *fileRegistry) Stats() models.Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var s models.Stats
	for _, e := range r.files {
		if e.rec.Provisional {
			continue
		}
		s.Total++
		if e.rec.IsWatermarked {
			s.Watermarked++
		}
		if e.rec.IsVerified {
			s.Verified++
		}
		if e.rec.Status == models.StatusProcessing {
			s.Processing++
		}
	}
	s.Unverified = s.Total - s.Verified
	if s.Total > 0 {
		s.DetectionRate = float64(s.Verified) / float64(s.Total)
	}
	return s
}

func (r *fileRegistry) Subscribe(fn RegistryListener) func() {
	r.lmu.Lock()
	defer r.lmu.Unlock()
	id := r.nextID
	r.nextID++
	r.listeners[id] = fn
	return func() {
		r.lmu.Lock()
		defer r.lmu.Unlock()
		delete(r.listeners, id)
	}
}

func (r *fileRegistry) changed() {
	r.lmu.Lock()
	ls := make([]RegistryListener, 0, len(r.listeners))
	for _, fn := range r.listeners {
		ls = append(ls, fn)
	}
	r.lmu.Unlock()
	if len(ls) == 0 {
		return
	}

	files := r.Files()
	for _, fn := range ls {
		fn(files)
	}
}
