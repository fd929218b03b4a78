// Package archive unpacks .nupkg archives and locates the assemblies they
// ship for each target framework.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
)

const (
	maxFileSize  = 100 * 1024 * 1024  // 100 MB per file
	maxTotalSize = 1024 * 1024 * 1024 // 1 GB total extracted
	maxFileCount = 50000              // maximum number of files in archive
)

// MaxPackageSize bounds the size of a package archive accepted for
// extraction.
const MaxPackageSize int64 = maxTotalSize

// ExtractPackage unpacks a package archive to a temp directory.
// Returns the path to the extracted directory and a cleanup function
// that removes the temp directory.
// Validates all paths to prevent zip-slip (path traversal) attacks.
// Enforces size limits to prevent zip bomb attacks.
func ExtractPackage(ctx context.Context, data []byte, prefix string) (dir string, cleanup func(), err error) {
	tmpDir, err := os.MkdirTemp("", "nuver-"+sanitize(prefix)+"-*")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	cleanupFn := func() { os.RemoveAll(tmpDir) }

	if err := extract(ctx, data, tmpDir); err != nil {
		cleanupFn()
		return "", nil, err
	}
	return tmpDir, cleanupFn, nil
}

func extract(ctx context.Context, data []byte, tmpDir string) error {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("failed to read package archive: %w", err)
	}

	if len(reader.File) > maxFileCount {
		return fmt.Errorf("package archive contains %d files, exceeds maximum of %d", len(reader.File), maxFileCount)
	}

	resolvedBase, err := filepath.Abs(tmpDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base path: %w", err)
	}

	var totalExtracted int64
	for _, file := range reader.File {
		if err := ctx.Err(); err != nil {
			return err
		}

		// Skip symlinks to prevent symlink-based attacks.
		if file.Mode()&os.ModeSymlink != 0 {
			continue
		}

		target := filepath.Join(tmpDir, file.Name)

		// Zip-slip protection: ensure resolved path is within tmpDir
		resolvedTarget, err := filepath.Abs(target)
		if err != nil {
			return fmt.Errorf("failed to resolve path %s: %w", file.Name, err)
		}
		if !strings.HasPrefix(resolvedTarget, resolvedBase+string(os.PathSeparator)) && resolvedTarget != resolvedBase {
			return fmt.Errorf("archive entry attempts path traversal: %s", file.Name)
		}

		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", file.Name, err)
			}
			continue
		}

		n, err := extractFile(file, target)
		if err != nil {
			return err
		}

		totalExtracted += n
		if totalExtracted > maxTotalSize {
			return fmt.Errorf("total extracted size exceeds maximum of %d bytes", maxTotalSize)
		}
	}
	return nil
}

func extractFile(file *zip.File, target string) (int64, error) {
	// Ensure parent directory exists
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create parent directory for %s: %w", file.Name, err)
	}

	rc, err := file.Open()
	if err != nil {
		return 0, fmt.Errorf("failed to open archive entry %s: %w", file.Name, err)
	}
	defer rc.Close()

	outFile, err := os.Create(target)
	if err != nil {
		return 0, fmt.Errorf("failed to create file %s: %w", file.Name, err)
	}
	defer outFile.Close()

	n, err := io.Copy(outFile, io.LimitReader(rc, maxFileSize+1))
	if err != nil {
		return 0, fmt.Errorf("failed to extract %s: %w", file.Name, err)
	}
	if n > maxFileSize {
		return 0, fmt.Errorf("file %s exceeds maximum size of %d bytes", file.Name, maxFileSize)
	}
	return n, nil
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == os.PathSeparator || r == '*' {
			return '_'
		}
		return r
	}, s)
}
