package catalog

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/farxc/dsd_reconciler/internal/logger"
)

// catalogExts are the file types the readers understand.
var catalogExts = map[string]bool{
	".csv":  true,
	".txt":  true,
	".tsv":  true,
	".xlsx": true,
	".xlsm": true,
}

// IsCatalogFile reports whether path has a readable catalog extension.
func IsCatalogFile(path string) bool {
	return catalogExts[strings.ToLower(filepath.Ext(path))]
}

// Unzip extracts the catalog files of a zip archive into destDir and
// returns their paths. Other entries are skipped.
func Unzip(zipPath, destDir string, log *logger.Logger) ([]string, error) {
	const component = "UNZIPPER"

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", destDir, err)
	}

	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open zip %s: %w", zipPath, err)
	}
	defer r.Close()

	var out []string
	skipped := 0
	root := filepath.Clean(destDir) + string(os.PathSeparator)

	for _, f := range r.File {
		if f.FileInfo().IsDir() || !IsCatalogFile(f.Name) {
			skipped++
			continue
		}

		filePath := filepath.Join(destDir, f.Name)
		if !strings.HasPrefix(filePath, root) {
			return nil, fmt.Errorf("invalid path in archive (possible zip slip): %s", f.Name)
		}
		if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
			return nil, err
		}
		if err := extract(f, filePath); err != nil {
			return nil, fmt.Errorf("failed to extract %s: %w", f.Name, err)
		}
		out = append(out, filePath)
	}

	log.Info(component, "extraction completed: destDir=%s extractedFiles=%d skippedFiles=%d", destDir, len(out), skipped)
	if len(out) == 0 {
		return nil, fmt.Errorf("zip %s holds no catalog files", zipPath)
	}
	return out, nil
}

func extract(f *zip.File, dest string) error {
	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}
