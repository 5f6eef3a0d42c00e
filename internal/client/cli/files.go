package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/cheggaaa/pb/v3"
	"github.com/dmitrijs2005/docmark/internal/client/client"
	"github.com/dmitrijs2005/docmark/internal/client/export"
	"github.com/dmitrijs2005/docmark/internal/client/models"
	"github.com/dmitrijs2005/docmark/internal/client/services"
	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"
)

// maxParallelUploads bounds concurrent uploads of one "upload" command.
const maxParallelUploads = 3

var ErrUsage = errors.New("invalid arguments")

func newFlagSet(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}

// parseArgs parses fs allowing flags after positional arguments, so that
// "upload a.pdf -verify" works like "upload -verify a.pdf".
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	var pos []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUsage, err)
		}
		args = fs.Args()
		if len(args) == 0 {
			return pos, nil
		}
		pos = append(pos, args[0])
		args = args[1:]
	}
}

// List reloads the file list from the server, optionally filtered, and
// prints it.
func (a *App) List(ctx context.Context, args []string) error {
	fs := newFlagSet("list", a.out)
	status := fs.String("status", "", "only files in this status")
	search := fs.String("search", "", "name filter")
	watermarked := fs.Bool("watermarked", false, "only watermarked files")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}

	var filters *models.FileFilters
	if *status != "" || *search != "" || *watermarked {
		filters = &models.FileFilters{Search: *search}
		if *status != "" {
			st, err := models.ParseFileStatus(*status)
			if err != nil {
				return fmt.Errorf("%w: %q", err, *status)
			}
			filters.Status = st
		}
		if *watermarked {
			filters.IsWatermarked = models.Ptr(true)
		}
	}

	if err := a.registry.Load(ctx, filters); err != nil {
		if client.KindOf(err) == "" {
			return err
		}
		recs := a.registry.Files()
		if len(recs) == 0 {
			recs = a.cachedFiles(ctx)
		}
		fmt.Fprintln(a.out, "Showing cached list")
		a.printFiles(recs)
		return nil
	}
	a.printFiles(a.registry.Files())
	return nil
}

// Search runs a server-side search without touching the local list.
func (a *App) Search(ctx context.Context, args []string) error {
	fs := newFlagSet("search", a.out)
	typ := fs.String("type", "", "pdf, doc or docx")
	watermarked := fs.Bool("watermarked", false, "only watermarked files")
	words, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	q := strings.Join(words, " ")
	if q == "" {
		return fmt.Errorf("%w: search [-type t] [-watermarked] <query>", ErrUsage)
	}

	page, err := a.api.SearchFiles(ctx, models.SearchQuery{Query: q, Type: *typ, WatermarkedOnly: *watermarked})
	if err != nil {
		return err
	}
	a.printFiles(page.Files)
	return nil
}

func (a *App) printFiles(files []models.FileRecord) {
	if len(files) == 0 {
		fmt.Fprintln(a.out, "No files")
		return
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSIZE\tSTATUS\tWATERMARK\tVERIFIED\tUPLOADED")
	for _, f := range files {
		wm := "-"
		if f.IsWatermarked {
			wm = f.WatermarkID
		}
		verified := "no"
		if f.IsVerified {
			verified = fmt.Sprintf("yes (%d)", f.VerificationCount)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			f.ID, f.OriginalName, humanize.Bytes(uint64(f.SizeBytes)), f.Status, wm, verified,
			humanize.Time(f.UploadedAt))
	}
	_ = tw.Flush()
}

// Stats prints the aggregates of the local list and, when reachable, the
// server's own statistics.
func (a *App) Stats(ctx context.Context) error {
	s := a.registry.Stats()
	fmt.Fprintf(a.out, "Files: %d  Watermarked: %d  Verified: %d  Unverified: %d  Processing: %d\n",
		s.Total, s.Watermarked, s.Verified, s.Unverified, s.Processing)
	fmt.Fprintf(a.out, "Detection rate: %.1f%%\n", s.DetectionRate*100)

	srv, err := a.api.Statistics(ctx)
	if err != nil {
		a.log.Debug(ctx, "server statistics unavailable", "error", err)
		return nil
	}
	fmt.Fprintf(a.out, "Server: %d files, %s total\n", srv.TotalFiles, humanize.Bytes(uint64(srv.TotalSize)))
	return nil
}

// Upload submits one or more documents. Files are uploaded concurrently;
// each goes through upload, watermark and optionally verify.
func (a *App) Upload(ctx context.Context, args []string) error {
	fs := newFlagSet("upload", a.out)
	verify := fs.Bool("verify", false, "verify the watermark after processing")
	var meta multiFlag
	fs.Var(&meta, "meta", "name=value metadata, repeatable")
	paths, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("%w: upload [-verify] [-meta k=v] <path...>", ErrUsage)
	}
	metadata, err := ParseMetadata(meta)
	if err != nil {
		return err
	}

	var (
		mu     sync.Mutex
		failed []string
	)
	g := new(errgroup.Group)
	g.SetLimit(maxParallelUploads)
	for _, p := range paths {
		g.Go(func() error {
			if err := a.uploadOne(ctx, p, *verify, metadata); err != nil {
				mu.Lock()
				failed = append(failed, p)
				mu.Unlock()
				return err
			}
			return nil
		})
	}
	err = g.Wait()
	if len(failed) > 0 && len(paths) > 1 {
		fmt.Fprintf(a.out, "%d of %d uploads failed\n", len(failed), len(paths))
	}
	return err
}

func (a *App) uploadOne(ctx context.Context, path string, verify bool, metadata map[string]any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return err
	}
	if st.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}

	name := filepath.Base(path)
	u := &client.Upload{
		Name:        name,
		Size:        st.Size(),
		ModTime:     st.ModTime(),
		ContentType: mime.TypeByExtension(filepath.Ext(name)),
		Body:        f,
	}

	opts := services.SubmitOptions{Verify: verify, Metadata: metadata}
	var bar *pb.ProgressBar
	if a.bars && u.Size > 0 {
		bar = pb.New64(u.Size)
		bar.Set(pb.Bytes, true)
		bar.Set("name", name)
		bar.SetTemplate(`{{string . "name"}} {{counters . }} {{bar . }} {{percent . }}`)
		bar.SetWriter(a.out)
		bar.Start()
		opts.Progress = func(op models.PendingOperation) {
			bar.SetCurrent(int64(op.Progress * float64(u.Size)))
		}
	}

	rec, err := a.pipeline.Submit(ctx, u, opts)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "%s -> %s (%s)\n", name, rec.ID, rec.Status)
	return nil
}

func (a *App) Verify(ctx context.Context, id string) error {
	rec, err := a.pipeline.Verify(ctx, id)
	if err != nil {
		return err
	}
	state := "not detected"
	if rec.IsVerified {
		state = "detected"
	}
	fmt.Fprintf(a.out, "%s: watermark %s, verified %d time(s)\n", rec.OriginalName, state, rec.VerificationCount)
	return nil
}

func (a *App) Rewatermark(ctx context.Context, id string) error {
	rec, err := a.pipeline.Rewatermark(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s: %s (%s)\n", rec.OriginalName, rec.Status, rec.WatermarkID)
	return nil
}

func (a *App) Delete(ctx context.Context, id string) error {
	if err := a.registry.Remove(ctx, id); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Deleted", id)
	return nil
}

func (a *App) Rename(ctx context.Context, id, name string) error {
	rec, err := a.registry.Update(ctx, id, models.FileUpdate{Name: models.Ptr(name)})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Renamed to %s\n", rec.OriginalName)
	return nil
}

// SetPublic publishes or unpublishes a file.
func (a *App) SetPublic(ctx context.Context, id string, public bool) error {
	rec, err := a.registry.Update(ctx, id, models.FileUpdate{IsPublic: models.Ptr(public)})
	if err != nil {
		return err
	}
	if rec.IsPublic {
		fmt.Fprintf(a.out, "%s is public: %s\n", rec.OriginalName, rec.PublicURL)
	} else {
		fmt.Fprintf(a.out, "%s is private\n", rec.OriginalName)
	}
	return nil
}

// Download saves a file to the download directory, or to the configured
// S3 bucket with -s3.
func (a *App) Download(ctx context.Context, args []string) error {
	fs := newFlagSet("download", a.out)
	toS3 := fs.Bool("s3", false, "export to the configured S3 bucket")
	ids, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(ids) != 1 {
		return fmt.Errorf("%w: download [-s3] <id>", ErrUsage)
	}

	var sink export.Sink = a.dirSink
	if *toS3 {
		s, err := a.s3(ctx)
		if err != nil {
			return err
		}
		sink = s
	}

	loc, err := a.registry.Download(ctx, ids[0], sink)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Saved to", loc)
	return nil
}

func (a *App) s3(ctx context.Context) (export.Sink, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.s3Sink != nil {
		return a.s3Sink, nil
	}
	s, err := a.newS3Sink(ctx)
	if err != nil {
		return nil, err
	}
	a.s3Sink = s
	return s, nil
}

// Pending lists pipeline operations still in flight.
func (a *App) Pending(context.Context) error {
	ops := a.pipeline.Pending()
	if len(ops) == 0 {
		fmt.Fprintln(a.out, "Nothing in progress")
		return nil
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSTAGE\tPROGRESS\tSTARTED")
	for _, op := range ops {
		fmt.Fprintf(tw, "%s\t%s\t%.0f%%\t%s\n", op.Name, op.Stage, op.Progress*100, humanize.Time(op.SubmittedAt))
	}
	_ = tw.Flush()
	return nil
}
