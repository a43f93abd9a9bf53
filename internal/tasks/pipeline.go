package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/fieldtrace/signalstudio/internal/apperr"
	"github.com/fieldtrace/signalstudio/internal/decoder"
	"github.com/fieldtrace/signalstudio/internal/logger"
	"github.com/fieldtrace/signalstudio/internal/models"
	"github.com/robfig/cron/v3"
)

// Config configures a Pipeline.
type Config struct {
	// WorkerCap bounds how many tasks run concurrently; 0 resolves to
	// runtime.NumCPU(). Submissions always return at once; a task beyond
	// the cap stays pending until a slot frees.
	WorkerCap int
	// WorkDir holds task outputs and concat temp files.
	WorkDir string
	// CleanupConvert/CleanupConcat are the janitor's age caps per task
	// kind (defaults: 24h convert, 1h concat).
	CleanupConvert time.Duration
	CleanupConcat  time.Duration
}

func (c Config) withDefaults() Config {
	if c.WorkerCap <= 0 {
		c.WorkerCap = runtime.NumCPU()
	}
	if c.CleanupConvert <= 0 {
		c.CleanupConvert = 24 * time.Hour
	}
	if c.CleanupConcat <= 0 {
		c.CleanupConcat = time.Hour
	}
	return c
}

// Pipeline spawns one goroutine per accepted task, bounded by a
// worker-count semaphore, and runs a cron-scheduled janitor that unlinks
// finished tasks' files past their age cap.
type Pipeline struct {
	cfg     Config
	store   *store
	opener  decoder.Opener
	concat  decoder.Concatenator
	slots   chan struct{}
	cron    *cron.Cron
}

// New constructs a Pipeline. Call Start to register and run its janitor
// sweep; callers own the cron lifecycle via Stop.
func New(opener decoder.Opener, concat decoder.Concatenator, cfg Config) *Pipeline {
	cfg = cfg.withDefaults()
	p := &Pipeline{
		cfg:    cfg,
		store:  newStore(),
		opener: opener,
		concat: concat,
		slots:  make(chan struct{}, cfg.WorkerCap),
		cron:   cron.New(),
	}
	return p
}

// Start registers the janitor sweep (every 10 minutes) and
// begins the cron scheduler.
func (p *Pipeline) Start() error {
	if _, err := p.cron.AddFunc("@every 10m", p.janitorSweep); err != nil {
		return fmt.Errorf("register janitor: %w", err)
	}
	p.cron.Start()
	return nil
}

// Stop halts the janitor; in-flight task goroutines are left to finish.
func (p *Pipeline) Stop() {
	p.cron.Stop()
}

// SubmitConvert accepts a convert.mf4→csv task and returns its id
// immediately; the actual work runs on a worker goroutine once a slot is
// free.
func (p *Pipeline) SubmitConvert(ownerID, inputPath, dbcPath string, raster float64) *models.Task {
	params := map[string]any{"raster": raster}
	if dbcPath != "" {
		params["dbcPath"] = dbcPath
	}
	t := p.store.create(models.TaskConvert, ownerID, []string{inputPath}, params)
	go p.runConvert(t.ID, ownerID, inputPath, dbcPath, raster)
	return t
}

// SubmitConcat accepts a concatenate.mf4 task and returns its id
// immediately.
func (p *Pipeline) SubmitConcat(ownerID string, inputPaths []string) *models.Task {
	t := p.store.create(models.TaskConcat, ownerID, inputPaths, nil)
	go p.runConcat(t.ID, ownerID, inputPaths)
	return t
}

// Get returns a snapshot of a task owned by ownerID.
func (p *Pipeline) Get(id, ownerID string) (*models.Task, error) {
	return p.store.get(id, ownerID)
}

func (p *Pipeline) acquire(ctx context.Context) error {
	select {
	case p.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pipeline) release() { <-p.slots }

func (p *Pipeline) runConvert(taskID, ownerID, inputPath, dbcPath string, raster float64) {
	ctx := context.Background()
	if err := p.acquire(ctx); err != nil {
		p.store.fail(taskID, err)
		return
	}
	defer p.release()

	rec, err := p.opener.Open(ctx, inputPath, dbcPath)
	if err != nil {
		p.store.fail(taskID, apperr.Decode(err))
		return
	}
	defer rec.Close()

	outPath := filepath.Join(p.cfg.WorkDir, taskID+".csv")
	out, err := os.Create(outPath)
	if err != nil {
		p.store.fail(taskID, err)
		return
	}
	defer out.Close()

	onProgress := func(percent int, message string) { p.store.progress(taskID, percent, message) }
	if err := convertToCSV(ctx, rec, ConvertOptions{Raster: raster}, out, onProgress); err != nil {
		logger.Tasks().Error().Err(err).Str("task", taskID).Str("owner", ownerID).Msg("convert failed")
		p.store.fail(taskID, err)
		_ = os.Remove(outPath)
		return
	}

	p.store.complete(taskID, outPath)
	// Input and dbc of a successfully finished convert are deleted
	// immediately after finalization.
	_ = os.Remove(inputPath)
	if dbcPath != "" {
		_ = os.Remove(dbcPath)
	}
}

func (p *Pipeline) runConcat(taskID, ownerID string, inputPaths []string) {
	ctx := context.Background()
	if err := p.acquire(ctx); err != nil {
		p.store.fail(taskID, err)
		return
	}
	defer p.release()

	outPath := filepath.Join(p.cfg.WorkDir, taskID+".mf4")
	onProgress := func(percent int, message string) { p.store.progress(taskID, percent, message) }

	result, err := concatenateRecordings(ctx, p.opener, p.concat, inputPaths, outPath, p.cfg.WorkDir, onProgress)
	if err != nil {
		logger.Tasks().Error().Err(err).Str("task", taskID).Str("owner", ownerID).Msg("concatenate failed")
		p.store.fail(taskID, err)
		_ = os.Remove(outPath)
		return
	}

	p.store.update(taskID, func(t *models.Task) {
		t.Parameters = map[string]any{"durationSeconds": result.Duration}
	})
	p.store.complete(taskID, result.OutputPath)
}

func (p *Pipeline) janitorSweep() {
	now := time.Now()
	for kind, age := range map[models.TaskKind]time.Duration{
		models.TaskConvert: p.cfg.CleanupConvert,
		models.TaskConcat:  p.cfg.CleanupConcat,
	} {
		paths := p.store.purgeOlderThan(kind, now.Add(-age))
		for _, path := range paths {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				logger.Tasks().Warn().Err(err).Str("path", path).Msg("janitor failed to unlink task file")
			}
		}
		if len(paths) > 0 {
			logger.Tasks().Info().Str("kind", string(kind)).Int("files", len(paths)).Msg("janitor swept expired tasks")
		}
	}
}
