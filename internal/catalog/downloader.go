package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/farxc/dsd_reconciler/internal/logger"
)

// Fetch downloads a remote catalog file into destDir and returns its path.
func Fetch(ctx context.Context, rawURL, destDir string, log *logger.Logger) (string, error) {
	const component = "DOWNLOADER"

	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid catalog url %q", rawURL)
	}

	name := path.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		name = "catalog.csv"
	}
	if destDir == "" {
		destDir = filepath.Join(os.TempDir(), "catalog-import")
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", destDir, err)
	}
	outputPath := filepath.Join(destDir, name)

	log.Debug(component, "starting download: url=%s", rawURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "dsd-reconciler-catalog-import/1.0")

	client := &http.Client{Timeout: 10 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download of %s failed: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download of %s failed: status %s", rawURL, resp.Status)
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return "", fmt.Errorf("failed to create output file %s: %w", outputPath, err)
	}
	defer out.Close()

	written, err := io.Copy(out, resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to write %s: %w", outputPath, err)
	}

	log.Info(component, "download completed: path=%s size=%d bytes", outputPath, written)
	return outputPath, nil
}
