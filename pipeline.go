// Package linkbender fetches web pages, asks a language model to summarize
// and tag them, and caches the result per normalized URL.
package linkbender

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/docutag/linkbender/annotate"
	"github.com/docutag/linkbender/extract"
	"github.com/docutag/linkbender/lock"
	"github.com/docutag/linkbender/metrics"
	"github.com/docutag/linkbender/models"
	"github.com/docutag/linkbender/slug"
	"github.com/docutag/linkbender/storage"
	"github.com/docutag/linkbender/tags"
	"github.com/docutag/linkbender/tracing"
	"github.com/docutag/linkbender/urlnorm"
)

// Config contains orchestrator configuration
type Config struct {
	MaxConcurrentAnnotations int // Annotation calls allowed in flight at once
}

// DefaultConfig returns default orchestrator configuration
func DefaultConfig() Config {
	return Config{
		MaxConcurrentAnnotations: 3,
	}
}

// ScrapeOptions modify a single scrape
type ScrapeOptions struct {
	Force       bool                // Skip the cache lookup and always write a new record
	Preferences *models.Preferences // Request a customized summary; always bypasses the cache
}

// Option configures optional collaborators
type Option func(*Orchestrator)

// WithArchive stores the full extracted text of each scrape
func WithArchive(archive storage.Archive) Option {
	return func(o *Orchestrator) { o.archive = archive }
}

// WithLocker serializes scrapes of the same URL
func WithLocker(locker lock.Locker) Option {
	return func(o *Orchestrator) { o.locker = locker }
}

// WithMetrics records pipeline metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// Orchestrator runs the scrape pipeline
type Orchestrator struct {
	store     Store
	fetcher   Fetcher
	annotator annotate.Client
	ledger    *tags.Ledger
	archive   storage.Archive
	locker    lock.Locker
	metrics   *metrics.Metrics
	tracer    trace.Tracer

	annotationSemaphore chan struct{}
	now                 func() time.Time
}

// New creates an orchestrator over an already opened store
func New(config Config, store Store, fetcher Fetcher, annotator annotate.Client, opts ...Option) *Orchestrator {
	slots := config.MaxConcurrentAnnotations
	if slots <= 0 {
		slots = DefaultConfig().MaxConcurrentAnnotations
	}

	o := &Orchestrator{
		store:               store,
		fetcher:             fetcher,
		annotator:           annotator,
		ledger:              tags.New(store),
		locker:              lock.None{},
		tracer:              tracing.Tracer(),
		annotationSemaphore: make(chan struct{}, slots),
		now:                 time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Store returns the store the orchestrator writes to
func (o *Orchestrator) Store() Store {
	return o.store
}

// Archive returns the configured archive, or nil
func (o *Orchestrator) Archive() storage.Archive {
	return o.archive
}

// Ledger returns the tag ledger
func (o *Orchestrator) Ledger() *tags.Ledger {
	return o.ledger
}

// run carries per-request pipeline state
type run struct {
	state    State
	fetchURL string
	key      string
	text     string // extracted text, kept for partial diagnostics on failure
}

func (r *run) advance(to State) {
	log.WithFields(log.Fields{"url": r.key, "from": r.state, "to": to}).Debug("pipeline transition")
	r.state = to
}

// Scrape runs the pipeline for rawURL. The returned payload is always
// non-nil: on failure it is the uniform error payload and err is an *Error
// describing what went wrong.
func (o *Orchestrator) Scrape(ctx context.Context, rawURL string, opts ScrapeOptions) (*models.ScrapeResult, error) {
	ctx, span := o.tracer.Start(ctx, "linkbender.Scrape")
	defer span.End()

	r := &run{state: StateStart}
	result, err := o.scrape(ctx, r, rawURL, opts)
	if err != nil {
		var pe *Error
		if !errors.As(err, &pe) {
			pe = fail(KindStoreFailure, r.state, err)
		}
		r.state = StateErrored

		span.RecordError(pe)
		span.SetStatus(codes.Error, pe.Kind.String())
		o.metrics.ScrapeOutcome(pe.Kind.String())

		log.WithFields(log.Fields{
			"url":   rawURL,
			"kind":  pe.Kind.String(),
			"state": pe.State.String(),
		}).WithError(pe.Err).Warn("scrape failed")

		return errorResult(pe, r), pe
	}

	span.SetAttributes(attribute.Bool("linkbender.cached", result.Cached))
	if result.Cached {
		o.metrics.ScrapeOutcome("cached")
	} else {
		o.metrics.ScrapeOutcome("success")
	}
	return result, nil
}

func (o *Orchestrator) scrape(ctx context.Context, r *run, rawURL string, opts ScrapeOptions) (*models.ScrapeResult, error) {
	// Start -> Normalized
	fetchURL, key, err := urlnorm.Both(rawURL)
	if err != nil {
		return nil, fail(KindInvalidInput, r.state, err)
	}
	if opts.Preferences != nil {
		if err := opts.Preferences.Validate(); err != nil {
			return nil, fail(KindInvalidInput, r.state, err)
		}
	}
	r.fetchURL, r.key = fetchURL, key
	r.advance(StateNormalized)

	trace.SpanFromContext(ctx).SetAttributes(attribute.String("linkbender.url", key))

	// Customized summaries were produced under a different prompt than any cached record
	useCache := !opts.Force && opts.Preferences == nil

	if useCache {
		if hit, err := o.lookup(ctx, r); hit != nil || err != nil {
			return hit, err
		}
	}

	release, err := o.locker.Lock(ctx, key)
	if err != nil {
		return nil, fail(KindStoreFailure, r.state, err)
	}
	defer release()

	// A concurrent scrape may have filled the cache while we waited
	if useCache {
		if hit, err := o.lookup(ctx, r); hit != nil || err != nil {
			return hit, err
		}
	}

	// Normalized -> Fetching
	r.advance(StateFetching)
	var body string
	err = o.stage(ctx, "fetch", func(ctx context.Context) error {
		var err error
		body, err = o.fetcher.Fetch(ctx, fetchURL)
		return err
	})
	if err != nil {
		return nil, fail(KindFetchFailed, r.state, err)
	}

	// Fetching -> Extracted
	var page *extract.Page
	err = o.stage(ctx, "extract", func(ctx context.Context) error {
		var err error
		page, err = extract.Parse(body)
		return err
	})
	if err != nil {
		return nil, fail(KindFetchFailed, r.state, err)
	}
	r.text = page.Text
	r.advance(StateExtracted)

	// Extracted -> Annotated
	annotation, err := o.annotate(ctx, r, page.Text, opts.Preferences)
	if err != nil {
		return nil, err
	}
	r.advance(StateAnnotated)

	// Annotated -> Persisted
	var newTags []string
	err = o.stage(ctx, "persist", func(ctx context.Context) error {
		var err error
		newTags, err = o.ledger.Record(ctx, annotation.Tags)
		if err != nil {
			return err
		}

		record := &models.ScrapeRecord{
			ID:          uuid.New().String(),
			URL:         key,
			Summary:     annotation.Summary,
			Tags:        annotation.Tags,
			Grade:       annotation.Grade,
			Badge:       annotation.Badge,
			Preferences: opts.Preferences,
			Timestamp:   o.now(),
			Content:     models.Truncate(page.Text, models.ContentSnapshotLen),
			ArchiveKey:  o.archiveText(ctx, page, key),
		}
		if err := o.store.InsertRecord(ctx, record); err != nil {
			o.discardArchive(ctx, record.ArchiveKey)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, fail(KindStoreFailure, r.state, err)
	}
	o.metrics.NewTags(len(newTags))
	r.advance(StatePersisted)

	// Persisted -> Done
	r.advance(StateDone)
	log.WithFields(log.Fields{
		"url":      key,
		"tags":     annotation.Tags,
		"new_tags": newTags,
		"grade":    annotation.Grade,
	}).Info("scrape completed")

	return &models.ScrapeResult{
		Status:      models.StatusSuccess,
		URL:         key,
		Text:        models.Truncate(page.Text, models.TextPreviewLen),
		Response:    annotation,
		NewTags:     newTags,
		Preferences: opts.Preferences,
	}, nil
}

// lookup returns a cache-hit payload for the newest record under r.key, or nil
func (o *Orchestrator) lookup(ctx context.Context, r *run) (*models.ScrapeResult, error) {
	var record *models.ScrapeRecord
	err := o.stage(ctx, "cache_lookup", func(ctx context.Context) error {
		var err error
		record, err = o.store.LatestByURL(ctx, r.key)
		return err
	})
	if err != nil {
		return nil, fail(KindStoreFailure, r.state, err)
	}
	if record == nil {
		return nil, nil
	}

	r.advance(StateCacheHit)
	r.advance(StateDone)
	log.WithField("url", r.key).Info("cache hit")

	return &models.ScrapeResult{
		Status:   models.StatusSuccess,
		URL:      record.URL,
		Text:     models.Truncate(record.Content, models.TextPreviewLen),
		Response: record.Annotation(),
		NewTags:  []string{},
		Cached:   true,
		Message:  CachedMessage(record),
	}, nil
}

// annotate calls the annotation client under the concurrency limit and normalizes its output
func (o *Orchestrator) annotate(ctx context.Context, r *run, text string, prefs *models.Preferences) (models.Annotation, error) {
	var raw annotate.Raw
	err := o.stage(ctx, "annotate", func(ctx context.Context) error {
		select {
		case o.annotationSemaphore <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
		o.metrics.AnnotationStarted()
		defer func() {
			<-o.annotationSemaphore
			o.metrics.AnnotationFinished()
		}()

		var err error
		raw, err = o.annotator.Annotate(ctx, annotate.Request{Text: text, Preferences: prefs})
		return err
	})
	if err != nil {
		return models.Annotation{}, fail(KindAnnotationFailed, r.state, err)
	}

	annotation, err := annotate.Normalize(raw)
	if err != nil {
		log.WithFields(log.Fields{
			"url":      r.key,
			"provider": o.annotator.Name(),
			"raw":      raw.String(),
		}).Error("annotation output is not a JSON object")
		return models.Annotation{}, fail(KindMalformedAnnotation, r.state, err)
	}
	return annotation, nil
}

// archiveText stores the full text when an archive is configured. Failures
// are logged and leave the record without an archive key.
func (o *Orchestrator) archiveText(ctx context.Context, page *extract.Page, key string) string {
	if o.archive == nil {
		return ""
	}

	archiveKey, err := o.archive.SaveText(ctx, slug.FromPage(page.Title, key), page.Text)
	if err != nil {
		log.WithError(err).WithField("url", key).Warn("failed to archive page text")
		return ""
	}
	return archiveKey
}

// discardArchive removes text archived for a record that was never stored
func (o *Orchestrator) discardArchive(ctx context.Context, archiveKey string) {
	if o.archive == nil || archiveKey == "" {
		return
	}
	if err := o.archive.Delete(context.WithoutCancel(ctx), archiveKey); err != nil {
		log.WithError(err).WithField("archive_key", archiveKey).Warn("failed to remove orphaned archive text")
	}
}

// stage runs fn inside a span and records its duration
func (o *Orchestrator) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := o.tracer.Start(ctx, "linkbender."+name)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	o.metrics.ObserveStage(name, time.Since(start))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// CachedMessage describes when a record was scraped
func CachedMessage(record *models.ScrapeRecord) string {
	return fmt.Sprintf("Retrieved from cache (scraped on %s)", record.Timestamp.Format(models.TimestampLayout))
}

// errorResult builds the uniform error payload
func errorResult(e *Error, r *run) *models.ScrapeResult {
	var message, summary string
	switch e.Kind {
	case KindMalformedAnnotation:
		message = "Failed to parse agent response"
		summary = "Error parsing response"
		var malformed *annotate.MalformedError
		if errors.As(e.Err, &malformed) && malformed.Raw != "" {
			summary = models.Truncate(malformed.Raw, models.ListPreviewLen)
		}
	case KindFetchFailed:
		message = fmt.Sprintf("Failed to fetch URL: %v", e.Err)
		summary = "Failed to fetch URL"
	case KindInvalidInput:
		message = e.Err.Error()
		summary = "Invalid input"
	case KindAnnotationFailed:
		message = fmt.Sprintf("Annotation request failed: %v", e.Err)
		summary = "Annotation unavailable"
	default:
		message = e.Err.Error()
		summary = "none"
	}

	return &models.ScrapeResult{
		Status:   models.StatusError,
		URL:      r.key,
		Text:     models.Truncate(r.text, models.TextPreviewLen),
		Response: models.ErrorAnnotation(summary),
		NewTags:  []string{},
		Error:    message,
	}
}
