package retrieve

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/nao1215/papergrab/internal/classify"
	"github.com/nao1215/papergrab/internal/model"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultConcurrency is the default number of parallel downloads.
	DefaultConcurrency = 4

	// DefaultRequestTimeout bounds one download including its body.
	DefaultRequestTimeout = 30 * time.Second
)

// documentTypes are the accepted media types of a download.
var documentTypes = map[string]bool{
	"application/pdf":          true,
	"application/x-pdf":        true,
	"application/octet-stream": true,
	"binary/octet-stream":      true,
	"application/msword":       true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
}

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Job is one document to fetch.
type Job struct {
	Code model.PaperCode
	Kind model.DocumentKind
	Ref  model.DocumentRef

	// Path is the absolute or base-relative target file.
	Path string
}

// Engine downloads bundles into a base directory.
type Engine struct {
	doer        Doer
	fs          FileSystem
	baseDir     string
	concurrency int
	timeout     time.Duration
	logger      *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithConcurrency sets the number of parallel downloads. Values below 1 are ignored.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithRequestTimeout bounds each download.
func WithRequestTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.timeout = d
	}
}

// WithFileSystem replaces the host filesystem.
func WithFileSystem(fs FileSystem) Option {
	return func(e *Engine) {
		e.fs = fs
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates an Engine writing below baseDir. An *http.Client doer
// gets a SessionTransport so downloads present the browser session.
func NewEngine(doer Doer, baseDir string, opts ...Option) *Engine {
	e := &Engine{
		doer:        withSessionTransport(doer),
		fs:          OSFileSystem{},
		baseDir:     baseDir,
		concurrency: DefaultConcurrency,
		timeout:     DefaultRequestTimeout,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Jobs lists the documents of bundles with their target paths:
// <base>/<folder>/<paper|marking_scheme>/<file name>.
func (e *Engine) Jobs(bundles []model.PaperBundle) []Job {
	var jobs []Job
	for _, b := range bundles {
		for _, kind := range []model.DocumentKind{model.KindQuestionPaper, model.KindMarkingScheme} {
			docs := b.Documents(kind)
			for i, ref := range docs {
				jobs = append(jobs, Job{
					Code: b.Code,
					Kind: kind,
					Ref:  ref,
					Path: filepath.Join(e.baseDir, b.FolderName, kind.Subfolder(),
						classify.FileName(kind, b.Code, ref, i+1, len(docs))),
				})
			}
		}
	}
	return jobs
}

// Run fetches every document of bundles with the configured concurrency and
// returns one result per document in job order.
//
// Cancellation is checked before each fetch; documents not started are
// reported as failed and Run returns ctx's error. When every attempted
// download failed with 401 or 403, Run returns ErrSessionExpired.
func (e *Engine) Run(ctx context.Context, bundles []model.PaperBundle, session *model.Session) ([]model.DownloadResult, error) {
	jobs := e.Jobs(bundles)
	results := make([]model.DownloadResult, len(jobs))

	var g errgroup.Group
	g.SetLimit(e.concurrency)

	for i, job := range jobs {
		results[i] = model.DownloadResult{Code: job.Code, Kind: job.Kind, Ref: job.Ref, Path: job.Path}
		if ctx.Err() != nil {
			results[i].Outcome = model.Failed("cancelled before start")
			continue
		}
		g.Go(func() error {
			results[i].Outcome = e.Fetch(ctx, job, session)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return results, err
	}
	if sessionExpired(results) {
		e.logger.Warn("every download was refused, the browser session has likely expired",
			"error", model.ErrSessionExpired, "attempted", len(results))
		return results, model.ErrSessionExpired
	}
	return results, nil
}

// sessionExpired reports whether at least one download was attempted and
// every attempted one failed with an authorization status.
func sessionExpired(results []model.DownloadResult) bool {
	attempted := 0
	for _, r := range results {
		if r.Outcome.Status == model.DownloadSkippedExisting {
			continue
		}
		attempted++
		if !r.Outcome.IsAuthFailure() {
			return false
		}
	}
	return attempted > 0
}

// Fetch downloads one document. An existing target is skipped without a
// network call. Failures never leave a file at the target path.
func (e *Engine) Fetch(ctx context.Context, job Job, session *model.Session) model.DownloadOutcome {
	logger := e.logger.With("code", job.Code.String(), "kind", job.Kind.String(), "path", job.Path)

	if err := ctx.Err(); err != nil {
		return model.Failed(err.Error())
	}

	exists, err := e.fs.Exists(job.Path)
	if err != nil {
		logger.Warn("download failed", "error", err)
		return model.Failed(fmt.Sprintf("stat target: %v", err))
	}
	if exists {
		logger.Debug("already downloaded")
		return model.SkippedExisting()
	}

	outcome := e.download(ctx, job, session)
	switch outcome.Status {
	case model.DownloadSaved:
		logger.Info("document saved")
	default:
		logger.Warn("download failed", "error", model.ErrDownloadFailed, "reason", outcome.Reason)
	}
	return outcome
}

func (e *Engine) download(ctx context.Context, job Job, session *model.Session) model.DownloadOutcome {
	if err := e.fs.MkdirAll(filepath.Dir(job.Path)); err != nil {
		return model.Failed(fmt.Sprintf("create directory: %v", err))
	}

	reqCtx, cancel := context.WithTimeout(WithSession(ctx, session), e.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, job.Ref.Href, nil)
	if err != nil {
		return model.Failed(fmt.Sprintf("build request: %v", err))
	}

	resp, err := e.doer.Do(req)
	if err != nil {
		return model.Failed(requestFailure(err))
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return model.FailedStatus(resp.StatusCode, "HTTP "+resp.Status)
	}
	if err := checkContentType(resp.Header.Get("Content-Type")); err != nil {
		return model.FailedStatus(resp.StatusCode, err.Error())
	}

	body := &bodyReader{r: resp.Body, want: resp.ContentLength}
	if _, err := e.fs.WriteAtomic(job.Path, body); err != nil {
		return model.FailedStatus(resp.StatusCode, requestFailure(err))
	}
	return model.Saved()
}

// checkContentType accepts an empty header or a document media type.
func checkContentType(header string) error {
	if header == "" {
		return nil
	}
	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrUnexpectedContentType, header)
	}
	if !documentTypes[strings.ToLower(mediaType)] {
		return fmt.Errorf("%w: %s", ErrUnexpectedContentType, mediaType)
	}
	return nil
}

func requestFailure(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout: " + err.Error()
	case errors.Is(err, context.Canceled):
		return "cancelled: " + err.Error()
	default:
		return err.Error()
	}
}

// bodyReader fails the copy when the body is empty or ends before the
// announced Content-Length.
type bodyReader struct {
	r    io.Reader
	want int64
	got  int64
}

func (b *bodyReader) Read(p []byte) (int, error) {
	n, err := b.r.Read(p)
	b.got += int64(n)
	if errors.Is(err, io.EOF) {
		switch {
		case b.got == 0:
			return n, ErrEmptyBody
		case b.want > 0 && b.got < b.want:
			return n, io.ErrUnexpectedEOF
		}
	}
	return n, err
}
