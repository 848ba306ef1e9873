package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/danwin47-sys/ocrflow/cache"
	"github.com/danwin47-sys/ocrflow/correct"
	"github.com/danwin47-sys/ocrflow/metrics"
	"github.com/danwin47-sys/ocrflow/notify"
	"github.com/danwin47-sys/ocrflow/observability"
	"github.com/danwin47-sys/ocrflow/ocr"
	"github.com/danwin47-sys/ocrflow/preprocess"
	"github.com/danwin47-sys/ocrflow/queue"
	"github.com/danwin47-sys/ocrflow/textproc"
)

// Options wires the pipeline's collaborators. Zero-value fields get working
// defaults: an in-memory store, a memory-only cache, the registered default
// engine, and a fresh queue.
type Options struct {
	Store  *Store
	Cache  *cache.Cache
	Engine ocr.Engine
	// Corrector may be nil; jobs requesting correction then complete
	// uncorrected.
	Corrector correct.Corrector
	Notifier  *notify.Notifier
	Queue     *queue.TaskQueue
	// Transformers run after correction, in order, each best effort.
	Transformers []textproc.Transformer
	// MaxImageDim bounds input images before recognition. Zero selects
	// preprocess.DefaultMaxDimension.
	MaxImageDim int
	Logger      observability.Logger
	Tracer      observability.Tracer
}

// Pipeline turns submissions into queued execution units and drives each one
// through preprocess, recognize, correct and cache to a terminal state.
type Pipeline struct {
	store        *Store
	cache        *cache.Cache
	engine       ocr.Engine
	corrector    correct.Corrector
	notifier     *notify.Notifier
	queue        *queue.TaskQueue
	transformers []textproc.Transformer
	maxDim       int
	log          observability.Logger
	tracer       observability.Tracer
}

// New builds a Pipeline from opts.
func New(opts Options) *Pipeline {
	if opts.Logger == nil {
		opts.Logger = observability.NopLogger{}
	}
	if opts.Store == nil {
		opts.Store = NewStore()
	}
	if opts.Cache == nil {
		// Memory-only construction has no failure path.
		opts.Cache, _ = cache.New(cache.Options{Logger: opts.Logger})
	}
	if opts.Engine == nil {
		opts.Engine = ocr.DefaultEngine()
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.New(opts.Logger)
	}
	if opts.Queue == nil {
		opts.Queue = queue.New(opts.Logger)
	}
	if opts.MaxImageDim <= 0 {
		opts.MaxImageDim = preprocess.DefaultMaxDimension
	}
	if opts.Tracer == nil {
		opts.Tracer = observability.NopTracer()
	}
	return &Pipeline{
		store:        opts.Store,
		cache:        opts.Cache,
		engine:       opts.Engine,
		corrector:    opts.Corrector,
		notifier:     opts.Notifier,
		queue:        opts.Queue,
		transformers: opts.Transformers,
		maxDim:       opts.MaxImageDim,
		log:          opts.Logger,
		tracer:       opts.Tracer,
	}
}

// Store exposes the job records for the HTTP layer.
func (p *Pipeline) Store() *Store { return p.store }

// Cache exposes the result cache for the stats endpoint.
func (p *Pipeline) Cache() *cache.Cache { return p.cache }

// Notifier exposes the event fan-out for the streaming endpoints.
func (p *Pipeline) Notifier() *notify.Notifier { return p.notifier }

// Queue exposes the worker pool for lifecycle control and stats.
func (p *Pipeline) Queue() *queue.TaskQueue { return p.queue }

// SubmitRequest is one recognition submission. The pipeline takes ownership
// of Image.
type SubmitRequest struct {
	Image     []byte
	Mode      string
	Priority  queue.Priority
	Languages []string
	// Correct asks for the correction pass after recognition.
	Correct bool
}

// Submit validates the request, registers a queued job and enqueues its
// execution unit. Validation failures are the only synchronous errors;
// everything later surfaces through job state and events.
func (p *Pipeline) Submit(req SubmitRequest) (Job, error) {
	if len(req.Image) == 0 {
		return Job{}, ErrEmptyImage
	}
	if !ocr.ValidMode(req.Mode) {
		return Job{}, fmt.Errorf("%w: %q", ErrUnsupportedMode, req.Mode)
	}

	job := &Job{
		ID:        uuid.NewString(),
		Mode:      req.Mode,
		Priority:  req.Priority,
		Correct:   req.Correct,
		Status:    StatusQueued,
		Progress:  ProgressQueued,
		CreatedAt: time.Now(),
	}
	p.store.Create(job)
	snapshot := *job

	metrics.JobsSubmittedTotal.WithLabelValues(req.Priority.String()).Inc()
	p.log.Info("job submitted",
		observability.String("job_id", job.ID),
		observability.String("mode", req.Mode),
		observability.String("priority", req.Priority.String()))

	p.queue.Enqueue(queue.Unit{
		JobID:    job.ID,
		Priority: req.Priority,
		Run: func(ctx context.Context) error {
			return p.run(ctx, snapshot, req.Image, req.Languages)
		},
	})
	return snapshot, nil
}

// run executes one job. The returned error feeds the queue's failure
// counter; job-facing state is already recorded by the time it returns.
func (p *Pipeline) run(ctx context.Context, job Job, image []byte, languages []string) error {
	if _, err := p.store.Get(job.ID); err != nil {
		// Deleted while queued. Nothing left to report against.
		return nil
	}
	ctx, span := p.tracer.StartSpan(ctx, "job.run")
	span.SetTag("job_id", job.ID)
	span.SetTag("mode", job.Mode)
	defer span.Finish()

	p.store.setProcessing(job.ID)

	fp := cache.FingerprintBytes(image)
	if data, ok := p.cache.Get(fp, job.Mode); ok {
		metrics.CacheHitsTotal.Inc()
		var res Result
		if err := json.Unmarshal(data, &res); err == nil {
			p.log.Debug("cache hit", observability.String("job_id", job.ID))
			p.finish(job, &res)
			return nil
		}
		p.log.Warn("cached entry undecodable, recognizing afresh",
			observability.String("job_id", job.ID))
	} else {
		metrics.CacheMissesTotal.Inc()
	}

	p.step(job.ID, ProgressPreprocessing, "preprocessing image")
	bounded, err := preprocess.BoundDimensions(image, p.maxDim)
	if err != nil {
		span.SetError(err)
		return p.failJob(job, fmt.Errorf("preprocess: %w", err))
	}

	p.step(job.ID, ProgressInferring, "recognizing text")
	metrics.EngineInvocationsTotal.WithLabelValues(p.engine.Name()).Inc()
	out, err := p.engine.Recognize(ctx, ocr.Input{
		ID:        job.ID,
		Image:     bounded,
		Mode:      job.Mode,
		Languages: languages,
	})
	if err != nil {
		span.SetError(err)
		return p.failJob(job, fmt.Errorf("recognize: %w", err))
	}
	text := ocr.Flatten(out)

	corrected := false
	if job.Correct && p.corrector != nil {
		p.step(job.ID, ProgressCorrecting, "applying corrections")
		text, corrected = p.applyCorrection(ctx, job.ID, text)
	}
	text = p.applyTransformers(ctx, job.ID, text)

	p.step(job.ID, ProgressCaching, "caching result")
	res := &Result{Text: text, Engine: p.engine.Name(), Corrected: corrected}
	if data, err := json.Marshal(res); err == nil {
		p.cache.Put(fp, job.Mode, data)
	} else {
		p.log.Warn("result not cacheable",
			observability.String("job_id", job.ID),
			observability.Error("err", err))
	}

	p.finish(job, res)
	return nil
}

// applyCorrection runs the corrector. Correction never fails a job: on any
// problem the raw text is kept.
func (p *Pipeline) applyCorrection(ctx context.Context, jobID, text string) (string, bool) {
	if !p.corrector.Available(ctx) {
		p.log.Info("corrector unavailable, keeping raw text",
			observability.String("job_id", jobID))
		return text, false
	}
	fixed, err := p.corrector.Generate(ctx, text)
	if err != nil {
		p.log.Warn("correction failed, keeping raw text",
			observability.String("job_id", jobID),
			observability.Error("err", err))
		return text, false
	}
	return fixed, true
}

// applyTransformers chains the configured text transformers, skipping any
// that error.
func (p *Pipeline) applyTransformers(ctx context.Context, jobID, text string) string {
	for _, tr := range p.transformers {
		out, err := tr.Apply(ctx, text)
		if err != nil {
			p.log.Warn("transformer failed, skipping",
				observability.String("job_id", jobID),
				observability.String("transformer", tr.Name()),
				observability.Error("err", err))
			continue
		}
		text = out
	}
	return text
}

// step records a progress checkpoint and publishes it.
func (p *Pipeline) step(jobID string, percent int, message string) {
	p.store.setProgress(jobID, percent)
	p.notifier.Publish(jobID, notify.Progress(percent, message))
}

// finish marks the job completed and publishes the result.
func (p *Pipeline) finish(job Job, res *Result) {
	p.store.complete(job.ID, res)
	p.notifier.Publish(job.ID, notify.Completed(res))
	metrics.JobsCompletedTotal.WithLabelValues(string(StatusCompleted)).Inc()
	metrics.JobDurationSeconds.WithLabelValues(job.Mode).Observe(time.Since(job.CreatedAt).Seconds())
	p.log.Info("job completed",
		observability.String("job_id", job.ID),
		observability.Duration("took", time.Since(job.CreatedAt)))
}

// failJob marks the job failed, publishes the error, and passes it through
// for the queue's failure accounting.
func (p *Pipeline) failJob(job Job, err error) error {
	p.store.fail(job.ID, err.Error())
	p.notifier.Publish(job.ID, notify.Failure(err.Error()))
	metrics.JobsCompletedTotal.WithLabelValues(string(StatusFailed)).Inc()
	metrics.JobDurationSeconds.WithLabelValues(job.Mode).Observe(time.Since(job.CreatedAt).Seconds())
	p.log.Warn("job failed",
		observability.String("job_id", job.ID),
		observability.Error("err", err))
	return err
}
