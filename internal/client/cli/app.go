package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/docmark/internal/client/client"
	"github.com/dmitrijs2005/docmark/internal/client/config"
	"github.com/dmitrijs2005/docmark/internal/client/credentials"
	"github.com/dmitrijs2005/docmark/internal/client/export"
	"github.com/dmitrijs2005/docmark/internal/client/models"
	"github.com/dmitrijs2005/docmark/internal/client/repositories/files"
	"github.com/dmitrijs2005/docmark/internal/client/services"
	"github.com/dmitrijs2005/docmark/internal/client/storage"
	"github.com/dmitrijs2005/docmark/internal/logging"
	"golang.org/x/term"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// healthTimeout bounds a single health probe.
const healthTimeout = 3 * time.Second

type App struct {
	config   *config.Config
	log      logging.Logger
	db       *sql.DB
	api      client.Client
	session  services.SessionService
	registry services.FileRegistry
	pipeline services.Pipeline
	unbind   func()

	// cache mirrors the registry on disk for offline listing. Nil in tests
	// that run without a database.
	cache   files.Repository
	uncache func()

	// newS3Sink is resolved on first use so a missing bucket only matters
	// to "download -s3".
	newS3Sink func(ctx context.Context) (export.Sink, error)
	s3Sink    export.Sink
	dirSink   export.Sink

	mu   sync.RWMutex
	mode Mode

	reader *bufio.Reader
	out    io.Writer
	// bars enables pb progress bars; off when stdout is not a terminal.
	bars bool
}

// NewApp opens local storage and builds the service graph for cfg.
func NewApp(ctx context.Context, cfg *config.Config, log logging.Logger) (*App, error) {
	db, err := storage.InitDatabase(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}

	var store credentials.Store = credentials.NewSQLiteStore(db)
	if cfg.CredentialSecret != "" {
		sealed, err := credentials.NewSealedSQLiteStore(ctx, db, cfg.CredentialSecret)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("open credential store: %w", err)
		}
		store = sealed
	}

	a, err := newApp(ctx, cfg, log, store, os.Stdout)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	a.db = db
	a.attachCache(files.NewSQLiteRepository(db))
	a.bars = term.IsTerminal(int(os.Stdout.Fd()))
	return a, nil
}

// newApp wires the services on top of store without touching the disk
// database, which keeps it usable from tests.
func newApp(ctx context.Context, cfg *config.Config, log logging.Logger, store credentials.Store, out io.Writer) (*App, error) {
	if log == nil {
		log = logging.Discard()
	}

	a := &App{
		config: cfg,
		log:    log,
		reader: bufio.NewReader(os.Stdin),
		out:    out,
	}

	gw := client.NewGateway(cfg.BaseURL, store,
		client.WithTimeout(cfg.RequestTimeout),
		client.WithLogger(log),
		client.WithNotifier(newConsoleNotifier(out)),
		client.WithUnauthorizedHandler(func(ctx context.Context) {
			if a.session != nil {
				a.session.Expire(ctx)
			}
		}),
	)
	a.api = client.NewHTTPClient(gw)

	a.session = services.NewSessionService(a.api, store, log)
	a.registry = services.NewFileRegistry(a.api, a.session, log)
	a.unbind = services.BindRegistry(a.session, a.registry, log)
	a.pipeline = services.NewPipeline(a.api, a.registry, newConsoleNotifier(out), log)

	dir, err := export.NewDirSink(cfg.DownloadDir)
	if err != nil {
		return nil, fmt.Errorf("prepare download dir: %w", err)
	}
	a.dirSink = dir

	s3cfg := cfg.S3
	a.newS3Sink = func(ctx context.Context) (export.Sink, error) {
		return export.NewS3Sink(ctx, export.S3Options{
			Bucket:    s3cfg.Bucket,
			Region:    s3cfg.Region,
			Endpoint:  s3cfg.Endpoint,
			Prefix:    s3cfg.Prefix,
			AccessKey: s3cfg.AccessKey,
			SecretKey: s3cfg.SecretKey,
		})
	}

	return a, nil
}

// attachCache persists every registry change to repo. Provisional
// records are skipped by the repository. A reset, which is how logout and
// session expiry reach the registry, empties it.
func (a *App) attachCache(repo files.Repository) {
	a.cache = repo
	a.uncache = a.registry.Subscribe(func(recs []models.FileRecord) {
		ctx := context.Background()
		var err error
		if len(recs) == 0 {
			err = repo.Clear(ctx)
		} else {
			err = repo.ReplaceAll(ctx, recs)
		}
		if err != nil {
			a.log.Warn(ctx, "file cache update failed", "error", err)
		}
	})
}

// cachedFiles returns the last persisted list, if any.
func (a *App) cachedFiles(ctx context.Context) []models.FileRecord {
	if a.cache == nil {
		return nil
	}
	recs, err := a.cache.List(ctx)
	if err != nil {
		a.log.Warn(ctx, "file cache read failed", "error", err)
		return nil
	}
	return recs
}

func (a *App) Close() error {
	if a.uncache != nil {
		a.uncache()
	}
	if a.unbind != nil {
		a.unbind()
	}
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// Run restores the session, starts the health watcher and blocks in the
// REPL until the user exits or ctx is done.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	fmt.Fprintln(a.out, "Welcome to docmark CLI (type 'help' for commands)")

	if err := a.session.Initialize(ctx); err != nil {
		a.log.Warn(ctx, "session restore failed", "error", err)
	}
	if u := a.session.User(); u != nil {
		fmt.Fprintf(a.out, "Logged in as %s\n", displayName(u.Name, u.Email))
	}

	watchCtx, stop := context.WithCancel(ctx)
	defer stop()
	go a.StartOnlineStatusWatcher(watchCtx, a.config.HealthCheckInterval)

	runREPL(ctx, a, a.status, bufio.NewScanner(a.reader))
	return nil
}

func (a *App) isLoggedIn() bool {
	return a.session.Authenticated()
}

func (a *App) Mode() Mode {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.mode
}

func (a *App) setMode(mode Mode) {
	a.mu.Lock()
	changed := a.mode != mode
	a.mode = mode
	a.mu.Unlock()

	if changed {
		a.log.Info(context.Background(), "connectivity changed", "mode", string(mode))
	}
}

// checkHealth probes the backend once and updates the mode.
func (a *App) checkHealth(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	err := a.api.Health(ctx)
	cancel()

	if err != nil {
		a.setMode(ModeOffline)
		return
	}
	a.setMode(ModeOnline)
}

// StartOnlineStatusWatcher probes GET /health every interval until ctx is
// done. A non-positive interval disables it.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	a.checkHealth(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.checkHealth(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) status() string {
	s := ""
	if u := a.session.User(); u != nil {
		s = displayName(u.Name, u.Email) + " "
	}
	if m := a.Mode(); m != "" {
		s += string(m)
	}
	if s = strings.TrimSpace(s); s != "" {
		s = fmt.Sprintf("(%s)", s)
	}
	return s
}

func displayName(name, email string) string {
	if email != "" {
		return email
	}
	return name
}
