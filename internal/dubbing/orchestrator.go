package dubbing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"redub/internal/background"
	"redub/internal/config"
	"redub/internal/fileutil"
	"redub/internal/logging"
	"redub/internal/media/wavinfo"
	"redub/internal/remix"
	"redub/internal/services"
	"redub/internal/speaker"
	"redub/internal/staging"
	"redub/internal/synthesis"
	"redub/internal/timing"
	"redub/internal/transcode"
	"redub/internal/transcript"
	"redub/internal/voicesample"
)

// Dependencies are the collaborators an Orchestrator drives. Tool and
// Synthesizer are required; the rest may be nil.
type Dependencies struct {
	Tool        transcode.Tool
	Prober      Prober
	Diarizer    speaker.Diarizer
	Synthesizer synthesis.Synthesizer
	Separator   background.Separator
	Recorder    Recorder
	// Measure returns an audio file's duration for drift reporting.
	Measure func(path string) (float64, error)
}

// Orchestrator runs dubbing jobs. It is safe for concurrent use; each job
// owns its own work directory.
type Orchestrator struct {
	cfg    *config.Config
	deps   Dependencies
	logger *slog.Logger
}

// New returns an orchestrator for cfg.
func New(cfg *config.Config, deps Dependencies, logger *slog.Logger) (*Orchestrator, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "dubbing", "init", "config is required", nil)
	}
	if deps.Tool == nil {
		return nil, services.Wrap(services.ErrConfiguration, "dubbing", "init", "transcode tool is required", nil)
	}
	if deps.Synthesizer == nil {
		return nil, services.Wrap(services.ErrConfiguration, "dubbing", "init", "synthesizer is required", nil)
	}
	if deps.Synthesizer.ClonesVoices() && !cfg.VoiceSamples.Enabled {
		return nil, services.Wrap(services.ErrConfiguration, "dubbing", "init", "voice cloning synthesizer needs voice_samples.enabled", nil)
	}
	if deps.Measure == nil {
		deps.Measure = func(path string) (float64, error) {
			info, err := wavinfo.Probe(path)
			return info.Duration, err
		}
	}
	return &Orchestrator{cfg: cfg, deps: deps, logger: logging.NewComponentLogger(logger, "dubbing")}, nil
}

// run carries one job through the pipeline.
type run struct {
	o        *Orchestrator
	job      Job
	state    jobState
	progress ProgressFunc
	sampler  *logging.ProgressSampler
	logger   *slog.Logger
}

// Run executes job and reports progress to progress, which may be nil. The
// output file is replaced only when every stage succeeds; on failure the
// returned error is a *StageError and no job files remain in the staging
// directory.
func (o *Orchestrator) Run(ctx context.Context, job Job, progress ProgressFunc) (Result, error) {
	started := time.Now()
	if strings.TrimSpace(job.ID) == "" {
		job.ID = uuid.NewString()
	}
	ctx = services.WithJobID(ctx, job.ID)
	r := &run{
		o:        o,
		job:      job,
		progress: progress,
		sampler:  logging.NewProgressSampler(0.1),
		logger:   logging.WithContext(ctx, o.logger),
	}
	r.logger.Info("dubbing job started",
		logging.String("video", job.VideoPath),
		logging.String("output", job.OutputPath),
		logging.Int("segments", len(job.Segments)),
		logging.String(logging.FieldEventType, "job_started"),
	)
	r.recordCreate(ctx)

	result, err := r.execute(ctx)
	if err != nil {
		r.fail(ctx, err)
		return Result{JobID: job.ID}, err
	}
	result.Elapsed = time.Since(started)
	r.report(ctx, StageFinalize, "done", 1)
	r.logger.Info("dubbing job completed",
		logging.String("output", result.OutputPath),
		logging.Int("clips", result.Clips),
		logging.Int("skipped", result.Skipped),
		logging.String("speaker_source", string(result.SpeakerSource)),
		logging.String("background_mode", string(result.BackgroundMode)),
		logging.Duration("elapsed", result.Elapsed),
		logging.String(logging.FieldEventType, "job_completed"),
	)
	if rec := o.deps.Recorder; rec != nil {
		if err := rec.Complete(context.WithoutCancel(ctx), job.ID, result); err != nil {
			r.logger.Debug("job record not updated", logging.Error(err))
		}
	}
	return result, nil
}

func (r *run) execute(ctx context.Context) (Result, error) {
	cfg := r.o.cfg
	r.report(ctx, StageValidate, "validating inputs", stageStart[StageValidate])
	if err := ValidateInputs(ctx, r.job, cfg.MaxInputBytes(), r.o.deps.Prober); err != nil {
		return Result{}, &StageError{Stage: StageValidate, Err: err}
	}

	lock, err := r.lockOutput()
	if err != nil {
		return Result{}, &StageError{Stage: StageValidate, Err: err}
	}
	defer releaseOutput(lock)

	workDir, err := staging.NewWorkDir(cfg.Paths.StagingDir, r.job.ID)
	if err != nil {
		return Result{}, &StageError{Stage: StageValidate, Err: services.Wrap(services.ErrConfiguration, string(StageValidate), "work dir", "", err)}
	}
	r.state.workDir = workDir
	defer r.cleanup()

	steps := []struct {
		stage Stage
		msg   string
		fn    func(context.Context) error
	}{
		{StageExtract, "extracting audio", r.extract},
		{StageSpeakers, "assigning speakers", r.speakers},
		{StageVoiceSamples, "curating voice samples", r.voiceSamples},
		{StageSynthesize, "synthesizing speech", r.synthesize},
		{StageBackground, "preparing background", r.background},
		{StageRemix, "mixing dubbed audio", r.remix},
		{StageMux, "muxing video", r.mux},
		{StageFinalize, "writing output", r.finalize},
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return Result{}, &StageError{Stage: step.stage, Err: err}
		}
		stageCtx := services.WithStage(ctx, string(step.stage))
		r.report(stageCtx, step.stage, step.msg, stageStart[step.stage])
		if err := step.fn(stageCtx); err != nil {
			return Result{}, &StageError{Stage: step.stage, Err: err}
		}
	}

	result := Result{
		JobID:          r.job.ID,
		OutputPath:     r.job.OutputPath,
		Clips:          len(r.state.clips),
		Skipped:        r.state.skipped,
		Speakers:       len(speaker.Assignment{Segments: r.state.segments}.Speakers()),
		VoiceSamples:   len(r.state.samples),
		SpeakerSource:  r.state.source,
		BackgroundMode: r.state.background.Mode,
		Language:       r.state.language,
	}
	if r.keepSamples() && len(r.state.samples) > 0 {
		dir, err := r.preserveSamples()
		if err != nil {
			logging.WarnWithContext(r.logger, "voice samples not preserved", "voice_samples_not_kept",
				logging.Error(err),
				logging.String(logging.FieldImpact, "samples are removed with the work directory"),
			)
		} else {
			result.SamplesDir = dir
		}
	}
	return result, nil
}

func (r *run) extract(ctx context.Context) error {
	dest := filepath.Join(r.state.workDir, "source_audio.wav")
	if err := r.o.deps.Tool.ExtractAudio(ctx, r.job.VideoPath, dest); err != nil {
		return services.Wrap(services.ErrExternalTool, string(StageExtract), "extract audio", "", err)
	}
	r.state.audio = transcript.AudioFile{Path: dest}
	if info, err := wavinfo.Probe(dest); err == nil {
		r.state.audio = info
	}
	logging.WithContext(ctx, r.o.logger).Info("audio extracted",
		logging.String("path", dest),
		logging.Seconds("duration_seconds", r.state.audio.Duration),
		logging.Int("sample_rate", r.state.audio.SampleRate),
	)
	return nil
}

func (r *run) speakers(ctx context.Context) error {
	cfg := r.o.cfg
	matcher := speaker.NewMatcher(cfg.Speakers.GapSeconds, cfg.Speakers.HeuristicSlots, r.o.logger)
	assignment := matcher.Resolve(ctx, r.diarizer(), r.state.audio.Path, r.job.Segments)
	r.state.segments = assignment.Segments
	r.state.source = assignment.Source
	return nil
}

// diarizer returns nil when diarization is off or the collaborator reports
// itself unusable.
func (r *run) diarizer() speaker.Diarizer {
	d := r.o.deps.Diarizer
	if d == nil || !r.o.cfg.Speakers.Diarization {
		return nil
	}
	if checker, ok := d.(interface{ Available() error }); ok {
		if err := checker.Available(); err != nil {
			r.logger.Debug("diarizer unavailable", logging.Error(err))
			return nil
		}
	}
	return d
}

func (r *run) voiceSamples(ctx context.Context) error {
	cfg := r.o.cfg
	if !cfg.VoiceSamples.Enabled || !r.o.deps.Synthesizer.ClonesVoices() {
		r.state.samples = map[string]transcript.VoiceSample{}
		return nil
	}
	curator := voicesample.NewCurator(r.o.deps.Tool, r.state.workDir, cfg.VoiceSamples.MinSeconds, cfg.VoiceSamples.MaxSeconds, r.o.logger)
	samples, err := curator.CurateAll(ctx, r.state.segments, r.state.audio.Path, cfg.Synthesis.Concurrency)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return services.Wrap(services.ErrExternalTool, string(StageVoiceSamples), "curate", "", err)
	}
	r.state.samples = samples
	return nil
}

func (r *run) synthesize(ctx context.Context) error {
	cfg := r.o.cfg
	ctrl := timing.NewController(cfg.Timing.WordsPerMinute, cfg.Timing.MinSpeed, cfg.Timing.MaxSpeed)
	coordinator := synthesis.NewCoordinator(r.o.deps.Synthesizer, ctrl, synthesis.Options{
		WorkDir:        r.state.workDir,
		Concurrency:    cfg.Synthesis.Concurrency,
		DefaultSpeaker: cfg.Synthesis.DefaultSpeaker,
		Language:       r.job.Language,
		Voice:          cfg.Synthesis.Voice,
		Measure:        r.o.deps.Measure,
	}, r.o.logger)
	result, err := coordinator.Run(ctx, r.state.segments, r.state.samples)
	r.state.language = result.Language
	if err != nil {
		if errors.Is(err, synthesis.ErrNoUsableSegments) {
			return fmt.Errorf("%w: %w", services.ErrValidation, err)
		}
		return err
	}
	r.state.clips = result.Clips
	r.state.skipped = result.Skipped()
	return nil
}

func (r *run) background(ctx context.Context) error {
	cfg := r.o.cfg
	preparer := background.NewPreparer(r.o.deps.Tool, r.o.deps.Separator, background.Options{
		Mode:     transcript.BackgroundMode(cfg.Background.Mode),
		DuckDB:   cfg.Background.DuckDB,
		Windowed: cfg.Background.DuckWindowed,
		Models:   cfg.Background.SeparationModels,
		WorkDir:  r.state.workDir,
	}, r.o.logger)
	track, err := preparer.Prepare(ctx, r.state.audio.Path, r.state.clips)
	if err != nil {
		return err
	}
	r.state.background = track
	return nil
}

func (r *run) remix(ctx context.Context) error {
	mixed, err := remix.NewRemixer(r.o.deps.Tool, r.state.workDir, r.o.logger).Remix(ctx, r.state.background, r.state.clips)
	if err != nil {
		return err
	}
	r.state.mixed = mixed
	return nil
}

func (r *run) mux(ctx context.Context) error {
	dest := filepath.Join(r.state.workDir, "dubbed"+strings.ToLower(filepath.Ext(r.job.OutputPath)))
	if err := remix.NewRemixer(r.o.deps.Tool, r.state.workDir, r.o.logger).Mux(ctx, r.job.VideoPath, r.state.mixed, dest); err != nil {
		return err
	}
	r.state.muxed = dest
	return nil
}

func (r *run) finalize(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(r.job.OutputPath), 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, string(StageFinalize), "output dir", "", err)
	}
	if info, err := os.Stat(r.job.OutputPath); err == nil && !info.IsDir() {
		logging.WithContext(ctx, r.o.logger).Info("replacing existing output", logging.String("output", r.job.OutputPath))
	}
	if err := fileutil.MoveFile(r.state.muxed, r.job.OutputPath); err != nil {
		return services.Wrap(services.ErrExternalTool, string(StageFinalize), "move output", "", err)
	}
	return nil
}

func (r *run) keepSamples() bool {
	return r.job.KeepSamples || r.o.cfg.VoiceSamples.Keep
}

// preserveSamples moves curated samples out of the work dir before cleanup.
func (r *run) preserveSamples() (string, error) {
	dir := filepath.Join(r.o.cfg.Paths.StateDir, "samples", r.job.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	for id, sample := range r.state.samples {
		dest := filepath.Join(dir, filepath.Base(sample.AudioPath))
		if err := fileutil.MoveFile(sample.AudioPath, dest); err != nil {
			return "", err
		}
		sample.AudioPath = dest
		r.state.samples[id] = sample
	}
	return dir, nil
}

// lockOutput takes an exclusive lock keyed by the absolute output path.
func (r *run) lockOutput() (*flock.Flock, error) {
	abs, err := filepath.Abs(r.job.OutputPath)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, string(StageValidate), "output", "", err)
	}
	sum := sha256.Sum256([]byte(abs))
	dir := filepath.Join(r.o.cfg.Paths.StateDir, "locks")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, string(StageValidate), "lock dir", "", err)
	}
	lock := flock.New(filepath.Join(dir, hex.EncodeToString(sum[:])[:16]+".lock"))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, string(StageValidate), "lock output", "", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOutputBusy, abs)
	}
	// A holder unlinks the file before unlocking; a lock won on an unlinked
	// file means that holder was still finishing.
	if _, err := os.Stat(lock.Path()); err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrOutputBusy, abs)
	}
	return lock, nil
}

// releaseOutput removes the lock file while still holding it, then unlocks.
func releaseOutput(lock *flock.Flock) {
	_ = os.Remove(lock.Path())
	_ = lock.Unlock()
}

func (r *run) cleanup() {
	if r.state.workDir == "" {
		return
	}
	if err := os.RemoveAll(r.state.workDir); err != nil {
		logging.WarnWithContext(r.logger, "work dir not removed", "workdir_cleanup_failed",
			logging.String("path", r.state.workDir),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale cleanup will reclaim it later"),
		)
	}
}

func (r *run) report(ctx context.Context, stage Stage, message string, fraction float64) {
	if r.progress != nil {
		r.progress(message, fraction)
	}
	if r.sampler.ShouldLog(string(stage), fraction) {
		logging.WithContext(ctx, r.o.logger).Debug("progress",
			logging.String("message", message),
			logging.Float64("fraction", fraction),
		)
	}
	if rec := r.o.deps.Recorder; rec != nil {
		if err := rec.Progress(context.WithoutCancel(ctx), r.job.ID, string(stage), fraction, message); err != nil {
			r.logger.Debug("job progress not recorded", logging.Error(err))
		}
	}
}

func (r *run) recordCreate(ctx context.Context) {
	rec := r.o.deps.Recorder
	if rec == nil {
		return
	}
	err := rec.Create(context.WithoutCancel(ctx), RecordedJob{
		ID:         r.job.ID,
		VideoPath:  r.job.VideoPath,
		OutputPath: r.job.OutputPath,
		Language:   r.job.Language,
		Segments:   len(r.job.Segments),
	})
	if err != nil {
		r.logger.Debug("job not recorded", logging.Error(err))
	}
}

func (r *run) fail(ctx context.Context, err error) {
	stage, _ := FailedStage(err)
	cancelled := errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
	attrs := []logging.Attr{
		logging.String("failed_stage", string(stage)),
		logging.Error(err),
		logging.String("error_kind", services.Kind(err)),
		logging.Bool("cancelled", cancelled),
		logging.String(logging.FieldEventType, "job_failed"),
	}
	if services.IsUserError(err) {
		r.logger.Warn("dubbing job rejected", logging.Args(attrs...)...)
	} else {
		logging.ErrorWithContext(r.logger, "dubbing job failed", "job_failed", attrs...)
	}
	if rec := r.o.deps.Recorder; rec != nil {
		if recErr := rec.Fail(context.WithoutCancel(ctx), r.job.ID, string(stage), err.Error(), cancelled); recErr != nil {
			r.logger.Debug("job failure not recorded", logging.Error(recErr))
		}
	}
}
