package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"shipclass/internal/chunking"
	"shipclass/internal/coding"
	"shipclass/internal/costtracker"
	"shipclass/internal/fileingest"
	"shipclass/internal/inputprocessor"
	"shipclass/internal/metrics"
	"shipclass/internal/models"
	"shipclass/internal/store"
	"shipclass/internal/tasks"
	"shipclass/pkg/categorizer"
)

const defaultWorkers = 3

// ClassificationOptions tunes batching, concurrency and file layout.
type ClassificationOptions struct {
	Provider     string
	Model        string
	BatchSize    int
	Workers      int
	Throttle     time.Duration // pause after every external call, per worker
	Timeout      time.Duration // per call, 0 for none
	Retry        RetryStrategy
	Coding       coding.Config
	Sheet        string
	ChunkSize    int
	ChunkFolder  string
	OutputFolder string
}

// ClassificationServiceDeps holds the collaborators of a ClassificationService.
type ClassificationServiceDeps struct {
	Classifier      categorizer.BatchClassifier
	RequiredColumns []string
	RunStore        store.RunStore  // optional run ledger
	JobClient       store.JobClient // optional, needed by EnqueueSource
	Processor       inputprocessor.Processor
	Options         ClassificationOptions
}

// ClassificationService labels records in batches on a bounded worker pool and
// turns input tables into classified output tables.
type ClassificationService struct {
	classifier categorizer.BatchClassifier
	required   []string
	runStore   store.RunStore
	jobClient  store.JobClient
	processor  inputprocessor.Processor
	opts       ClassificationOptions
	metrics    *metrics.ClassifierMetrics
}

// BatchStats summarizes one ClassifyRecords pass.
type BatchStats struct {
	Rows          int
	ErrorRows     int // rows carrying the sentinel label
	Batches       int
	FailedBatches int
	ParseFailures int
	Errors        []error // one *models.ExternalServiceError per failed batch
}

// LabelCount is one line of a label distribution.
type LabelCount struct {
	Category string `json:"category"`
	Type     string `json:"type"`
	Count    int    `json:"count"`
}

// FileResult describes one processed (or skipped) input table.
type FileResult struct {
	InputPath    string
	OutputPath   string
	Skipped      bool // output already existed
	Run          *models.Run
	Stats        BatchStats
	Distribution []LabelCount
}

// EnqueuedChunk is a chunk file handed to the background queue.
type EnqueuedChunk struct {
	ChunkPath  string
	OutputPath string
	TaskID     string
	Skipped    bool
}

// NewClassificationService creates a ClassificationService.
func NewClassificationService(deps ClassificationServiceDeps) (*ClassificationService, error) {
	if deps.Classifier == nil {
		return nil, errors.New("classification service requires a classifier")
	}
	opts := deps.Options
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = chunking.DefaultBatchSize
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = chunking.DefaultChunkSize
	}
	if opts.Retry == nil {
		opts.Retry = NoRetry
	}
	if opts.Coding == (coding.Config{}) {
		opts.Coding = coding.DefaultConfig()
	}
	processor := deps.Processor
	if processor == nil {
		processor = inputprocessor.New(nil)
	}
	return &ClassificationService{
		classifier: deps.Classifier,
		required:   deps.RequiredColumns,
		runStore:   deps.RunStore,
		jobClient:  deps.JobClient,
		processor:  processor,
		opts:       opts,
		metrics:    metrics.NewClassifierMetrics(opts.Provider),
	}, nil
}

// Options returns the effective options.
func (s *ClassificationService) Options() ClassificationOptions { return s.opts }

// WithSheet returns a copy of the service reading and writing sheet. An
// empty sheet returns s unchanged.
func (s *ClassificationService) WithSheet(sheet string) *ClassificationService {
	if sheet == "" || sheet == s.opts.Sheet {
		return s
	}
	cp := *s
	cp.opts.Sheet = sheet
	return &cp
}

// RequiredColumns returns the columns every input must carry.
func (s *ClassificationService) RequiredColumns() []string {
	return append([]string(nil), s.required...)
}

type batchResult struct {
	labels        []models.Label
	err           error
	parseFailures int
}

// ClassifyRecords returns exactly one label per record, in record order.
// A batch whose call fails gets the sentinel label on every row; the other
// batches are unaffected. It never returns an error: failures are reported in
// the stats.
func (s *ClassificationService) ClassifyRecords(ctx context.Context, records []models.Record) ([]models.Label, BatchStats) {
	labels := make([]models.Label, len(records))
	batches := chunking.Split(records, s.opts.BatchSize)
	stats := BatchStats{Rows: len(records), Batches: len(batches)}
	if len(batches) == 0 {
		return labels, stats
	}

	offsets := make([]int, len(batches))
	for i := 1; i < len(batches); i++ {
		offsets[i] = offsets[i-1] + batches[i-1].Len()
	}

	results := make([]batchResult, len(batches))
	var g errgroup.Group
	g.SetLimit(s.opts.Workers)
	for i, b := range batches {
		g.Go(func() error {
			res := s.runBatch(ctx, b)
			results[i] = res
			// Batches cover disjoint row ranges.
			copy(labels[offsets[i]:offsets[i]+b.Len()], res.labels)
			return nil
		})
	}
	_ = g.Wait()

	for _, res := range results {
		if res.err != nil {
			stats.FailedBatches++
			stats.Errors = append(stats.Errors, res.err)
		}
		stats.ParseFailures += res.parseFailures
	}
	for _, l := range labels {
		if l.IsError() {
			stats.ErrorRows++
		}
	}
	s.metrics.RecordRows(stats.Rows-stats.ErrorRows, stats.ErrorRows)
	s.metrics.RecordParseFailures(stats.ParseFailures)
	return labels, stats
}

func (s *ClassificationService) runBatch(ctx context.Context, b models.Batch) batchResult {
	metrics.WorkersActive.Inc()
	defer metrics.WorkersActive.Dec()
	timer := metrics.NewTimer()

	reply, err := s.callWithRetry(ctx, b)
	if err != nil {
		s.metrics.RecordBatch(metrics.StatusFailed, timer.Duration())
		log.Warnf("Batch %d (rows %d-%d) failed, marking %d rows as error: %v",
			b.Number, b.Start, b.Start+b.Len()-1, b.Len(), err)
		return batchResult{labels: errorLabels(b.Len()), err: err}
	}
	s.metrics.RecordBatch(metrics.StatusSuccess, timer.Duration())

	labels, problems := categorizer.ParseReport(reply, b.Len())
	for _, p := range problems {
		log.Debugf("Batch %d: %v", b.Number, p)
	}
	if len(problems) > 0 {
		log.Warnf("Batch %d: %d of %d rows could not be parsed", b.Number, len(problems), b.Len())
	}
	log.Debugf("Batch %d classified (%d rows) in %s", b.Number, b.Len(), timer.Duration())
	return batchResult{labels: labels, parseFailures: len(problems)}
}

// callWithRetry makes the external call, retrying as the retry strategy
// allows. Every call is followed by the throttle pause.
func (s *ClassificationService) callWithRetry(ctx context.Context, b models.Batch) (string, error) {
	for attempt := 1; ; attempt++ {
		reply, err := s.call(ctx, b)
		_ = sleepContext(ctx, s.opts.Throttle)
		if err == nil {
			return reply, nil
		}
		if ctx.Err() != nil {
			return "", externalError(b, attempt, err)
		}
		backoff := s.opts.Retry.NextBackoff(attempt)
		if backoff < 0 {
			return "", externalError(b, attempt, err)
		}
		s.metrics.RecordRetry()
		log.Warnf("Batch %d attempt %d failed, retrying in %dms: %v", b.Number, attempt, backoff, err)
		if sleepErr := sleepContext(ctx, time.Duration(backoff)*time.Millisecond); sleepErr != nil {
			return "", externalError(b, attempt, err)
		}
	}
}

func (s *ClassificationService) call(ctx context.Context, b models.Batch) (string, error) {
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}
	return s.classifier.ClassifyBatch(ctx, b)
}

func externalError(b models.Batch, attempts int, err error) error {
	var ese *models.ExternalServiceError
	if errors.As(err, &ese) {
		return &models.ExternalServiceError{Batch: b.Number, Attempts: attempts, Err: ese.Err}
	}
	return &models.ExternalServiceError{Batch: b.Number, Attempts: attempts, Err: err}
}

func errorLabels(n int) []models.Label {
	labels := make([]models.Label, n)
	for i := range labels {
		labels[i] = models.ErrorLabel()
	}
	return labels
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// AssignCodes codes labels in order with a fresh assigner.
func (s *ClassificationService) AssignCodes(labels []models.Label) []string {
	return coding.Codes(s.opts.Coding, labels)
}

// Label classifies records and assigns their codes.
func (s *ClassificationService) Label(ctx context.Context, records []models.Record) ([]models.LabeledRecord, BatchStats) {
	labels, stats := s.ClassifyRecords(ctx, records)
	codes := s.AssignCodes(labels)
	labeled := make([]models.LabeledRecord, len(records))
	for i, r := range records {
		labeled[i] = models.LabeledRecord{Record: r, Label: labels[i], Code: codes[i]}
	}
	return labeled, stats
}

// ClassifyRows labels rows given as column/value maps. Every row must carry
// every required column; otherwise nothing is sent and the error lists the
// offending rows.
func (s *ClassificationService) ClassifyRows(ctx context.Context, rows []map[string]string) ([]models.LabeledRecord, BatchStats, error) {
	seen := make(map[string]bool)
	var available []string
	lacking := make(map[string]bool)
	var badRows []int
	for i, row := range rows {
		for k := range row {
			if !seen[k] {
				seen[k] = true
				available = append(available, k)
			}
		}
		rowOK := true
		for _, c := range s.required {
			if _, ok := row[c]; !ok {
				lacking[c] = true
				rowOK = false
			}
		}
		if !rowOK {
			badRows = append(badRows, i)
		}
	}
	if len(badRows) > 0 {
		var missing []string
		for _, c := range s.required {
			if lacking[c] {
				missing = append(missing, c)
			}
		}
		sort.Strings(available)
		return nil, BatchStats{}, &models.MissingColumnError{Missing: missing, Available: available, Rows: badRows}
	}

	records := make([]models.Record, len(rows))
	for i, row := range rows {
		records[i] = models.Record{Index: i, Fields: row}
	}
	labeled, stats := s.Label(ctx, records)
	return labeled, stats, nil
}

// ProcessFile classifies the table at inputPath and writes it with type,
// category and id columns to outputPath. Missing required columns fail the
// call before any external request is made.
func (s *ClassificationService) ProcessFile(ctx context.Context, inputPath, outputPath string) (*FileResult, error) {
	table, err := fileingest.ReadTable(inputPath, s.opts.Sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read input table %s: %w", inputPath, err)
	}
	if err := table.RequireColumns(s.required); err != nil {
		return nil, err
	}

	run := &models.Run{
		ID:         uuid.New(),
		InputPath:  inputPath,
		OutputPath: outputPath,
		Provider:   s.opts.Provider,
		Model:      s.opts.Model,
		Status:     models.RunStatusRunning,
		Rows:       table.Len(),
		StartedAt:  time.Now().UTC(),
	}
	s.startRun(ctx, run)
	ctx = costtracker.WithRunID(ctx, run.ID)

	log.Infof("Classifying %s (%d rows, batch size %d, %d workers)", inputPath, table.Len(), s.opts.BatchSize, s.opts.Workers)
	labeled, stats := s.Label(ctx, table.Records(0))

	if err := table.Annotate(labeled); err != nil {
		s.finishRun(ctx, run, stats, err)
		return nil, err
	}
	if err := fileingest.WriteTable(outputPath, table, s.opts.Sheet); err != nil {
		err = fmt.Errorf("failed to write output table %s: %w", outputPath, err)
		s.finishRun(ctx, run, stats, err)
		return nil, err
	}
	s.finishRun(ctx, run, stats, nil)

	log.Infof("Wrote %s (%d rows, %d error rows)", outputPath, stats.Rows, stats.ErrorRows)
	return &FileResult{
		InputPath:    inputPath,
		OutputPath:   outputPath,
		Run:          run,
		Stats:        stats,
		Distribution: Distribution(labeled),
	}, nil
}

// ProcessInput resolves source (a path or an http(s) URL) and classifies it
// like ProcessFile. An empty outputPath writes classified_<name> into the
// output folder.
func (s *ClassificationService) ProcessInput(ctx context.Context, source, outputPath string) (*FileResult, error) {
	input, err := s.processor.Process(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve input %s: %w", source, err)
	}
	defer input.Cleanup()

	if outputPath == "" {
		outputPath = s.OutputPathFor(input.FilePath)
	}
	res, err := s.ProcessFile(ctx, input.FilePath, outputPath)
	if err != nil {
		return nil, err
	}
	res.InputPath = source
	return res, nil
}

func (s *ClassificationService) startRun(ctx context.Context, run *models.Run) {
	if s.runStore == nil {
		return
	}
	if err := s.runStore.CreateRun(ctx, run); err != nil {
		log.Errorf("Failed to record run for %s: %v", run.InputPath, err)
	}
}

func (s *ClassificationService) finishRun(ctx context.Context, run *models.Run, stats BatchStats, runErr error) {
	run.ErrorRows = stats.ErrorRows
	run.Batches = stats.Batches
	run.FailedBatches = stats.FailedBatches
	switch {
	case runErr != nil:
		run.Status = models.RunStatusFailed
		msg := runErr.Error()
		run.Message = &msg
	case stats.ErrorRows > 0:
		run.Status = models.RunStatusPartial
		msg := fmt.Sprintf("%d of %d rows could not be classified", stats.ErrorRows, stats.Rows)
		run.Message = &msg
	default:
		run.Status = models.RunStatusCompleted
	}
	now := time.Now().UTC()
	run.FinishedAt = &now
	s.metrics.RecordRun(run.Status)

	if s.runStore == nil {
		return
	}
	// The run row is closed even when ctx was cancelled mid-run.
	if err := s.runStore.FinishRun(context.WithoutCancel(ctx), run); err != nil {
		log.Errorf("Failed to finish run %s: %v", run.ID, err)
	}
}

// Split resolves source (a path or an http(s) URL) and cuts it into chunk
// files, then lists every chunk file in the chunk folder in number order.
// An empty source only lists the existing chunks.
func (s *ClassificationService) Split(ctx context.Context, source string) ([]fileingest.FileMeta, error) {
	if source != "" {
		input, err := s.processor.Process(ctx, source)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve input %s: %w", source, err)
		}
		defer input.Cleanup()

		table, err := fileingest.ReadTable(input.FilePath, s.opts.Sheet)
		if err != nil {
			return nil, fmt.Errorf("failed to read input table %s: %w", source, err)
		}
		if err := table.RequireColumns(s.required); err != nil {
			return nil, err
		}
		if _, err := fileingest.SplitTable(ctx, input.FilePath, s.opts.ChunkFolder, s.opts.ChunkSize, s.opts.Sheet); err != nil {
			return nil, fmt.Errorf("failed to split %s: %w", source, err)
		}
	}

	chunks, err := fileingest.DiscoverChunkFiles(ctx, s.opts.ChunkFolder)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunk files in %s: %w", s.opts.ChunkFolder, err)
	}
	return chunks, nil
}

// OutputPathFor returns where the classified version of chunk is written.
func (s *ClassificationService) OutputPathFor(chunk string) string {
	return filepath.Join(s.opts.OutputFolder, fileingest.OutputFileName(chunk))
}

// ProcessSource splits source into chunk files and classifies every chunk
// whose output does not exist yet. It stops at the first chunk that fails.
func (s *ClassificationService) ProcessSource(ctx context.Context, source string) ([]*FileResult, error) {
	chunks, err := s.Split(ctx, source)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		log.Warnf("No chunk files found in %s", s.opts.ChunkFolder)
		return nil, nil
	}

	results := make([]*FileResult, 0, len(chunks))
	for _, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		out := s.OutputPathFor(chunk.Path)
		if fileExists(out) {
			log.Infof("Output %s already exists, skipping %s", out, chunk.Name)
			results = append(results, &FileResult{InputPath: chunk.Path, OutputPath: out, Skipped: true})
			continue
		}
		res, err := s.ProcessFile(ctx, chunk.Path, out)
		if err != nil {
			return results, fmt.Errorf("chunk %s: %w", chunk.Name, err)
		}
		results = append(results, res)
	}
	return results, nil
}

// EnqueueSource splits source like ProcessSource and enqueues one classify
// task per chunk whose output does not exist yet.
func (s *ClassificationService) EnqueueSource(ctx context.Context, source string) ([]EnqueuedChunk, error) {
	if s.jobClient == nil {
		return nil, errors.New("background jobs are not configured")
	}
	chunks, err := s.Split(ctx, source)
	if err != nil {
		return nil, err
	}

	enqueued := make([]EnqueuedChunk, 0, len(chunks))
	for _, chunk := range chunks {
		out := s.OutputPathFor(chunk.Path)
		if fileExists(out) {
			enqueued = append(enqueued, EnqueuedChunk{ChunkPath: chunk.Path, OutputPath: out, Skipped: true})
			continue
		}
		info, err := s.jobClient.EnqueueClassifyFile(ctx, tasks.ClassifyFilePayload{
			InputPath:  chunk.Path,
			OutputPath: out,
			Sheet:      s.opts.Sheet,
		})
		if err != nil {
			return enqueued, fmt.Errorf("failed to enqueue %s: %w", chunk.Name, err)
		}
		enqueued = append(enqueued, EnqueuedChunk{ChunkPath: chunk.Path, OutputPath: out, TaskID: info.ID})
	}
	return enqueued, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Distribution counts labeled rows per (category, type), most frequent first.
func Distribution(labeled []models.LabeledRecord) []LabelCount {
	counts := make(map[models.Label]int)
	for _, lr := range labeled {
		counts[lr.Label]++
	}
	out := make([]LabelCount, 0, len(counts))
	for l, n := range counts {
		out = append(out, LabelCount{Category: l.Category, Type: l.Type, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		if c := strings.Compare(out[i].Category, out[j].Category); c != 0 {
			return c < 0
		}
		return out[i].Type < out[j].Type
	})
	return out
}
