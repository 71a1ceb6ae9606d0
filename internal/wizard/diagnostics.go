package wizard

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nao1215/papergrab/internal/browser"
)

// CaptureDiagnostics saves a screenshot and the page source of b under
// dir/<label>-<timestamp>/ and returns that directory. It is called only
// when a series failed inside the wizard.
func CaptureDiagnostics(ctx context.Context, b browser.Browser, dir, label string) (string, error) {
	target := filepath.Join(dir, diagnosticsName(label, time.Now()))
	if err := os.MkdirAll(target, 0o750); err != nil {
		return "", fmt.Errorf("failed to create diagnostics directory: %w", err)
	}

	var errs []error
	if err := b.Screenshot(ctx, filepath.Join(target, "screenshot.png")); err != nil {
		errs = append(errs, fmt.Errorf("screenshot: %w", err))
	}

	source, err := b.PageSource(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("page source: %w", err))
	} else if err := os.WriteFile(filepath.Join(target, "page.html"), []byte(source), 0o600); err != nil {
		errs = append(errs, fmt.Errorf("page source: %w", err))
	}

	if url, err := b.CurrentURL(ctx); err == nil {
		_ = os.WriteFile(filepath.Join(target, "location.txt"), []byte(url+"\n"), 0o600)
	}

	return target, errors.Join(errs...)
}

// diagnosticsName builds a directory name such as "june-2023-20260102T150405".
func diagnosticsName(label string, at time.Time) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(label) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			sb.WriteByte('-')
		}
	}
	name := strings.Trim(sb.String(), "-")
	if name == "" {
		name = "wizard"
	}
	return name + "-" + at.UTC().Format("20060102T150405")
}
