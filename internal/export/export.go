// Package export runs the learners progress CSV export end to end.
package export

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/verte-zerg/figexport/internal/aggregate"
	"github.com/verte-zerg/figexport/internal/csvexport"
	"github.com/verte-zerg/figexport/internal/model"
	"github.com/verte-zerg/figexport/internal/reshape"
)

// StartProgress is reported as soon as an export begins.
const StartProgress = 0.01

// Fetcher reads the course index and learner pages.
type Fetcher interface {
	aggregate.PageFetcher
	FetchCourses(ctx context.Context, limit int) ([]model.Course, error)
}

// RunRecorder persists export history.
type RunRecorder interface {
	InsertRun(ctx context.Context, run model.ExportRun) error
}

// Request describes one export.
type Request struct {
	Query       model.Query
	PageSize    int
	MaxPages    int
	CourseLimit int
	// Filename is handed to the sink. Empty picks a timestamped name.
	Filename string
	CSV      csvexport.Options
}

// Result summarizes a finished export.
type Result struct {
	RunID    string
	Location string
	Learners int
	Columns  int
	Requests int
	Duration time.Duration
}

// Service wires the fetcher, reshaper, serializer and sink together.
type Service struct {
	fetcher Fetcher
	sink    csvexport.Sink
	runs    RunRecorder
	baseURL string
	logger  *zap.Logger
	now     func() time.Time
	newID   func() string
}

// Option customizes a Service.
type Option func(*Service)

// WithRecorder stores each run through r.
func WithRecorder(r RunRecorder) Option {
	return func(s *Service) { s.runs = r }
}

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithBaseURL labels recorded runs with the API they ran against.
func WithBaseURL(u string) Option {
	return func(s *Service) { s.baseURL = u }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService constructs a Service.
func NewService(fetcher Fetcher, sink csvexport.Sink, opts ...Option) *Service {
	s := &Service{
		fetcher: fetcher,
		sink:    sink,
		logger:  zap.NewNop(),
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DefaultFilename names an export started at t.
func DefaultFilename(t time.Time) string {
	return "figures-lpo-" + t.Format("20060102-150405") + ".csv"
}

// Run performs the export. Progress starts at StartProgress, never
// decreases while the export runs and is 1 once the document is saved. On
// failure progress is reset to 0 and no document is saved.
func (s *Service) Run(ctx context.Context, req Request, progress aggregate.ProgressFunc) (res Result, err error) {
	report := func(v float64) {
		if progress != nil {
			progress(v)
		}
	}
	started := s.now()
	run := model.ExportRun{
		ID:        s.newID(),
		StartedAt: started,
		BaseURL:   s.baseURL,
		Query:     req.Query.Clone(),
		PageSize:  req.PageSize,
	}
	log := s.logger.With(zap.String("run_id", run.ID))

	defer func() {
		run.EndedAt = s.now()
		if err != nil {
			report(0)
			run.Status = model.RunFailed
			run.Error = err.Error()
			log.Warn("export failed", zap.Error(err))
		} else {
			run.Status = model.RunSucceeded
			log.Info("export finished",
				zap.Int("learners", res.Learners),
				zap.Int("requests", res.Requests),
				zap.String("location", res.Location),
				zap.Duration("elapsed", res.Duration),
			)
		}
		s.record(ctx, run, log)
	}()

	log.Info("export started",
		zap.String("search", req.Query.Search),
		zap.Int("courses", len(req.Query.CourseIDs)),
		zap.String("ordering", req.Query.Ordering),
		zap.Int("page_size", req.PageSize),
	)
	report(StartProgress)

	courses, err := s.fetcher.FetchCourses(ctx, req.CourseLimit)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load course index: %w", err)
	}
	selected := resolveCourses(req.Query.CourseIDs, courses, log)

	agg, err := aggregate.All(ctx, s.fetcher, aggregate.Options{
		Query:    req.Query,
		PageSize: req.PageSize,
		MaxPages: req.MaxPages,
		Progress: func(v float64) {
			// 1 is held back until the document is saved.
			report(min(max(v, StartProgress), aggregate.MaxRunningProgress))
		},
	})
	run.Pages = agg.Requests
	if err != nil {
		return Result{}, err
	}
	log.Debug("aggregation finished", zap.Int("learners", len(agg.Learners)), zap.Int("reported_count", agg.ReportedCount))

	table := reshape.Flatten(agg.Learners, selected, courses)
	run.Learners = len(table.Rows)
	run.Columns = len(table.Columns)
	data, err := csvexport.Render(table, req.CSV)
	if err != nil {
		return Result{}, err
	}

	name := req.Filename
	if name == "" {
		name = DefaultFilename(started)
	}
	location, err := s.sink.Save(ctx, name, data)
	if err != nil {
		return Result{}, fmt.Errorf("failed to save export: %w", err)
	}
	run.Location = location
	report(1)

	return Result{
		RunID:    run.ID,
		Location: location,
		Learners: len(table.Rows),
		Columns:  len(table.Columns),
		Requests: agg.Requests,
		Duration: s.now().Sub(started),
	}, nil
}

func (s *Service) record(ctx context.Context, run model.ExportRun, log *zap.Logger) {
	if s.runs == nil {
		return
	}
	if err := s.runs.InsertRun(context.WithoutCancel(ctx), run); err != nil {
		log.Warn("failed to record export run", zap.Error(err))
	}
}

func resolveCourses(ids []model.ID, index []model.Course, log *zap.Logger) []model.Course {
	selected, unknown := reshape.SelectCourses(ids, index)
	for _, id := range unknown {
		log.Warn("selected course not in course index", zap.String("course_id", id.String()))
	}
	return selected
}
