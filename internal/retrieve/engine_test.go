package retrieve

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/nao1215/papergrab/internal/classify"
	"github.com/nao1215/papergrab/internal/model"
)

const pdfBody = "%PDF-1.7\n1 0 obj\n<<>>\nendobj\n%%EOF\n"

// paperServer serves PDFs under /ok/, and misbehaves under the other paths.
type paperServer struct {
	*httptest.Server
	requests atomic.Int32

	mu      sync.Mutex
	cookies []string
	agents  []string
}

func newPaperServer(t *testing.T) *paperServer {
	t.Helper()
	s := &paperServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		s.mu.Lock()
		s.cookies = append(s.cookies, r.Header.Get("Cookie"))
		s.agents = append(s.agents, r.Header.Get("User-Agent"))
		s.mu.Unlock()

		switch {
		case strings.HasPrefix(r.URL.Path, "/ok/"):
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = io.WriteString(w, pdfBody)
		case strings.HasPrefix(r.URL.Path, "/untyped/"):
			w.Header()["Content-Type"] = nil
			_, _ = io.WriteString(w, pdfBody)
		case strings.HasPrefix(r.URL.Path, "/html/"):
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = io.WriteString(w, "<html>login</html>")
		case strings.HasPrefix(r.URL.Path, "/forbidden/"):
			http.Error(w, "forbidden", http.StatusForbidden)
		case strings.HasPrefix(r.URL.Path, "/empty/"):
			w.Header().Set("Content-Type", "application/pdf")
		case strings.HasPrefix(r.URL.Path, "/slow/"):
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		case strings.HasPrefix(r.URL.Path, "/truncated/"):
			conn, buf, err := w.(http.Hijacker).Hijack()
			if err != nil {
				return
			}
			_, _ = buf.WriteString("HTTP/1.1 200 OK\r\nContent-Type: application/pdf\r\nContent-Length: 1000\r\n\r\n%PDF-1.7 partial")
			_ = buf.Flush()
			_ = conn.Close()
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func newTestEngine(base string, opts ...Option) *Engine {
	opts = append([]Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithRequestTimeout(time.Second),
	}, opts...)
	return NewEngine(http.DefaultClient, base, opts...)
}

func bundle(code model.PaperCode, qp ...string) model.PaperBundle {
	b := model.PaperBundle{Code: code, FolderName: filepath.Join("Mathematics", "June 2023", "Paper "+code.String())}
	for _, href := range qp {
		b.Add(model.KindQuestionPaper, model.DocumentRef{Href: href, Title: code.String() + " Question paper"})
	}
	return b
}

func assertNoFiles(t *testing.T, dir string) {
	t.Helper()
	_ = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			t.Errorf("unexpected file left behind: %s", path)
		}
		return nil
	})
}

func TestEngine_ScenarioA(t *testing.T) {
	t.Parallel()

	srv := newPaperServer(t)
	base := t.TempDir()

	links := []model.RawLink{
		{Href: srv.URL + "/ok/9MA0-01_qp.pdf", Text: "9MA0/01 Question Paper"},
		{Href: srv.URL + "/ok/9MA0-01_ms.pdf", Text: "9MA0/01 Marking Scheme (PDF, 200KB)"},
	}
	pairer := classify.NewPairer(classify.New(), classify.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	bundles, _ := pairer.Pair("Mathematics", "June 2023", links)

	engine := newTestEngine(base)
	results, err := engine.Run(t.Context(), bundles, &model.Session{UserAgent: "ua"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	folder := filepath.Join(base, "Mathematics", "June 2023", "Paper 9MA0-01")
	wantPaths := []string{
		filepath.Join(folder, "paper", "Question_Paper_9MA0-01.pdf"),
		filepath.Join(folder, "marking_scheme", "Marking_Scheme_9MA0-01.pdf"),
	}
	var gotPaths []string
	for _, r := range results {
		if r.Outcome.Status != model.DownloadSaved {
			t.Errorf("expected SAVED for %s, got %+v", r.Path, r.Outcome)
		}
		gotPaths = append(gotPaths, r.Path)
	}
	if diff := cmp.Diff(wantPaths, gotPaths); diff != "" {
		t.Errorf("paths mismatch (-want +got):\n%s", diff)
	}
	for _, p := range wantPaths {
		data, err := os.ReadFile(p)
		if err != nil {
			t.Fatalf("expected %s: %v", p, err)
		}
		if string(data) != pdfBody {
			t.Errorf("unexpected content in %s", p)
		}
	}

	t.Run("second run makes no network calls", func(t *testing.T) {
		before := srv.requests.Load()
		results, err := engine.Run(t.Context(), bundles, &model.Session{UserAgent: "ua"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, r := range results {
			if r.Outcome.Status != model.DownloadSkippedExisting {
				t.Errorf("expected SKIPPED_EXISTING for %s, got %v", r.Path, r.Outcome.Status)
			}
		}
		if after := srv.requests.Load(); after != before {
			t.Errorf("expected no requests on re-run, got %d", after-before)
		}
	})
}

func TestEngine_TruncatedBodyLeavesNoFile(t *testing.T) {
	t.Parallel()

	srv := newPaperServer(t)
	base := t.TempDir()

	results, err := newTestEngine(base).Run(t.Context(), []model.PaperBundle{bundle("9MA0-01", srv.URL+"/truncated/a.pdf")}, nil)
	if err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}
	if results[0].Outcome.Status != model.DownloadFailed {
		t.Fatalf("expected FAILED, got %+v", results[0].Outcome)
	}
	if _, err := os.Stat(results[0].Path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected no file at target, stat error: %v", err)
	}
	assertNoFiles(t, base)
}

func TestEngine_Failures(t *testing.T) {
	t.Parallel()

	srv := newPaperServer(t)

	testCases := []struct {
		name       string
		path       string
		wantCode   int
		wantReason string
	}{
		{"not found", "/missing/a.pdf", http.StatusNotFound, "404"},
		{"html instead of pdf", "/html/a.pdf", http.StatusOK, "text/html"},
		{"empty body", "/empty/a.pdf", http.StatusOK, ErrEmptyBody.Error()},
		{"timeout", "/slow/a.pdf", 0, "timeout"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			base := t.TempDir()
			engine := newTestEngine(base, WithRequestTimeout(100*time.Millisecond))
			results, _ := engine.Run(t.Context(), []model.PaperBundle{bundle("9MA0-01", srv.URL+tc.path)}, nil)

			got := results[0].Outcome
			if got.Status != model.DownloadFailed {
				t.Fatalf("expected FAILED, got %+v", got)
			}
			if got.StatusCode != tc.wantCode {
				t.Errorf("expected status code %d, got %d", tc.wantCode, got.StatusCode)
			}
			if !strings.Contains(got.Reason, tc.wantReason) {
				t.Errorf("expected reason to mention %q, got %q", tc.wantReason, got.Reason)
			}
			assertNoFiles(t, base)
		})
	}

	t.Run("missing content type is accepted", func(t *testing.T) {
		t.Parallel()
		results, err := newTestEngine(t.TempDir()).Run(t.Context(), []model.PaperBundle{bundle("9MA0-01", srv.URL+"/untyped/a.pdf")}, nil)
		if err != nil || results[0].Outcome.Status != model.DownloadSaved {
			t.Errorf("expected SAVED, got %+v (err %v)", results[0].Outcome, err)
		}
	})
}

func TestEngine_SessionExpired(t *testing.T) {
	t.Parallel()

	srv := newPaperServer(t)

	t.Run("all refused", func(t *testing.T) {
		t.Parallel()
		b := bundle("9MA0-01", srv.URL+"/forbidden/a.pdf", srv.URL+"/forbidden/b.pdf")
		results, err := newTestEngine(t.TempDir()).Run(t.Context(), []model.PaperBundle{b}, nil)
		if !errors.Is(err, model.ErrSessionExpired) {
			t.Fatalf("expected ErrSessionExpired, got %v", err)
		}
		for _, r := range results {
			if !r.Outcome.IsAuthFailure() {
				t.Errorf("expected auth failure, got %+v", r.Outcome)
			}
		}
	})

	t.Run("one success is not an expired session", func(t *testing.T) {
		t.Parallel()
		b := bundle("9MA0-01", srv.URL+"/forbidden/a.pdf", srv.URL+"/ok/b.pdf")
		if _, err := newTestEngine(t.TempDir()).Run(t.Context(), []model.PaperBundle{b}, nil); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	t.Run("nothing attempted", func(t *testing.T) {
		t.Parallel()
		if sessionExpired([]model.DownloadResult{{Outcome: model.SkippedExisting()}}) {
			t.Error("skipped documents must not count as refused")
		}
	})
}

func TestEngine_SessionHeaders(t *testing.T) {
	t.Parallel()

	srv := newPaperServer(t)
	session := &model.Session{
		UserAgent: "Mozilla/5.0 (papergrab test)",
		Cookies: []model.Cookie{
			{Name: "JSESSIONID", Value: "abc", Domain: "127.0.0.1"},
			{Name: "tracker", Value: "x", Domain: ".example.com"},
		},
	}

	if _, err := newTestEngine(t.TempDir()).Run(t.Context(), []model.PaperBundle{bundle("9MA0-01", srv.URL+"/ok/a.pdf")}, session); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	srv.mu.Lock()
	defer srv.mu.Unlock()
	if diff := cmp.Diff([]string{"JSESSIONID=abc"}, srv.cookies); diff != "" {
		t.Errorf("cookie header mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Mozilla/5.0 (papergrab test)"}, srv.agents); diff != "" {
		t.Errorf("user agent mismatch (-want +got):\n%s", diff)
	}
}

func TestEngine_ConcurrencyLimit(t *testing.T) {
	t.Parallel()

	var inFlight, peak atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = io.WriteString(w, pdfBody)
	}))
	t.Cleanup(srv.Close)

	var hrefs []string
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		hrefs = append(hrefs, srv.URL+"/"+name+".pdf")
	}

	results, err := newTestEngine(t.TempDir(), WithConcurrency(2)).Run(t.Context(), []model.PaperBundle{bundle("9MA0-01", hrefs...)}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if peak.Load() > 2 {
		t.Errorf("expected at most 2 parallel downloads, saw %d", peak.Load())
	}

	seen := make(map[string]bool)
	for i, r := range results {
		if r.Outcome.Status != model.DownloadSaved {
			t.Errorf("result %d: expected SAVED, got %+v", i, r.Outcome)
		}
		if seen[r.Path] {
			t.Errorf("duplicate target path %s", r.Path)
		}
		seen[r.Path] = true
	}
	if want := filepath.Join("paper", "Question_Paper_9MA0-01_6.pdf"); !strings.HasSuffix(results[5].Path, want) {
		t.Errorf("expected indexed file name, got %s", results[5].Path)
	}
}

func TestEngine_Cancelled(t *testing.T) {
	t.Parallel()

	srv := newPaperServer(t)
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	results, err := newTestEngine(t.TempDir()).Run(ctx, []model.PaperBundle{bundle("9MA0-01", srv.URL+"/ok/a.pdf", srv.URL+"/ok/b.pdf")}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	for _, r := range results {
		if r.Outcome.Status != model.DownloadFailed {
			t.Errorf("expected FAILED, got %v", r.Outcome.Status)
		}
	}
	if n := srv.requests.Load(); n != 0 {
		t.Errorf("expected no requests after cancellation, got %d", n)
	}
}

// statErrorFS fails every Exists call.
type statErrorFS struct{ OSFileSystem }

func (statErrorFS) Exists(string) (bool, error) { return false, errors.New("permission denied") }

func TestEngine_FileSystemErrors(t *testing.T) {
	t.Parallel()

	srv := newPaperServer(t)
	engine := newTestEngine(t.TempDir(), WithFileSystem(statErrorFS{}))

	job := engine.Jobs([]model.PaperBundle{bundle("9MA0-01", srv.URL+"/ok/a.pdf")})[0]
	outcome := engine.Fetch(t.Context(), job, nil)
	if outcome.Status != model.DownloadFailed || !strings.Contains(outcome.Reason, "permission denied") {
		t.Errorf("expected stat failure, got %+v", outcome)
	}
	if n := srv.requests.Load(); n != 0 {
		t.Errorf("expected no request, got %d", n)
	}
}

func TestCheckContentType(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		header string
		ok     bool
	}{
		{"", true},
		{"application/pdf", true},
		{"Application/PDF; charset=binary", true},
		{"application/octet-stream", true},
		{"binary/octet-stream", true},
		{"application/msword", true},
		{"application/vnd.openxmlformats-officedocument.wordprocessingml.document", true},
		{"text/html; charset=utf-8", false},
		{"application/json", false},
		{"not a media type;;", false},
	}

	for _, tc := range testCases {
		err := checkContentType(tc.header)
		if (err == nil) != tc.ok {
			t.Errorf("checkContentType(%q) = %v, want ok=%v", tc.header, err, tc.ok)
		}
		if err != nil && !errors.Is(err, ErrUnexpectedContentType) {
			t.Errorf("expected ErrUnexpectedContentType, got %v", err)
		}
	}
}
