// Package archive produces portable tar.xz snapshots of an
// environment's journal and artifact tree.
package archive

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ulikunitz/xz"

	"github.com/discoursekg/discoursekg/internal/storage"
)

// Summary describes one created archive.
type Summary struct {
	// OutputPath is where the archive was written.
	OutputPath string
	// Files is the number of files added.
	Files int
	// DataSize is the uncompressed byte count of the added files.
	DataSize int64
	// ArchiveSize is the size of the finished .tar.xz.
	ArchiveSize int64
	Elapsed     time.Duration
}

// Archiver writes snapshots of paths inside the sandbox. Entry names
// stay relative to the sandbox root so extraction reproduces the
// on-disk layout.
type Archiver struct {
	sandbox *storage.Sandbox
	logger  *slog.Logger
}

// NewArchiver creates an archiver over the sandbox.
func NewArchiver(sandbox *storage.Sandbox) *Archiver {
	return &Archiver{
		sandbox: sandbox,
		logger:  slog.Default(),
	}
}

// WithLogger sets the logger.
func (a *Archiver) WithLogger(logger *slog.Logger) *Archiver {
	if logger != nil {
		a.logger = logger.With(slog.String("component", "archive"))
	}
	return a
}

// Create snapshots the given sandbox-relative roots (files or
// directories) into a tar.xz file at outputPath. Missing roots are
// skipped with a warning, but at least one must exist. Leftover
// atomic-write temp files are skipped, as is the output file itself
// when it lies inside an archived tree. A partial archive is removed
// on failure.
func (a *Archiver) Create(ctx context.Context, outputPath string, roots ...string) (*Summary, error) {
	start := time.Now()

	outAbs, err := filepath.Abs(outputPath)
	if err != nil {
		return nil, fmt.Errorf("resolving output path: %w", err)
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return nil, fmt.Errorf("creating archive: %w", err)
	}

	summary, err := a.write(ctx, f, roots, outAbs)
	if err != nil {
		f.Close()
		os.Remove(outputPath)
		return nil, err
	}
	if err := f.Close(); err != nil {
		os.Remove(outputPath)
		return nil, fmt.Errorf("closing archive: %w", err)
	}

	if info, err := os.Stat(outputPath); err == nil {
		summary.ArchiveSize = info.Size()
	}
	summary.OutputPath = outputPath
	summary.Elapsed = time.Since(start)

	a.logger.Info("archive created",
		slog.String("path", outputPath),
		slog.Int("files", summary.Files),
		slog.Int64("data_size", summary.DataSize),
		slog.Int64("archive_size", summary.ArchiveSize),
		slog.Duration("duration", summary.Elapsed),
	)

	return summary, nil
}

func (a *Archiver) write(ctx context.Context, dst io.Writer, roots []string, outAbs string) (*Summary, error) {
	xzw, err := xz.NewWriter(dst)
	if err != nil {
		return nil, fmt.Errorf("creating xz writer: %w", err)
	}
	tw := tar.NewWriter(xzw)

	summary := &Summary{}
	seen := make(map[string]struct{})
	archivedRoots := 0

	for _, root := range roots {
		exists, err := a.sandbox.Exists(root)
		if err != nil {
			return nil, err
		}
		if !exists {
			a.logger.Warn("skipping missing path", slog.String("path", root))
			continue
		}
		archivedRoots++

		walkErr := a.sandbox.Walk(root, func(relPath string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if d.IsDir() || !d.Type().IsRegular() {
				return nil
			}
			if storage.IsTempFile(d.Name()) {
				return nil
			}
			if filepath.Join(a.sandbox.BaseDir(), relPath) == outAbs {
				return nil
			}
			if _, dup := seen[relPath]; dup {
				return nil
			}
			seen[relPath] = struct{}{}

			n, err := a.addFile(tw, relPath)
			if err != nil {
				return fmt.Errorf("archiving %s: %w", relPath, err)
			}
			summary.Files++
			summary.DataSize += n
			return nil
		})
		if walkErr != nil {
			return nil, walkErr
		}
	}

	if archivedRoots == 0 {
		return nil, fmt.Errorf("nothing to archive: no given path exists")
	}

	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("finalizing tar stream: %w", err)
	}
	if err := xzw.Close(); err != nil {
		return nil, fmt.Errorf("finalizing xz stream: %w", err)
	}
	return summary, nil
}

func (a *Archiver) addFile(tw *tar.Writer, relPath string) (int64, error) {
	absPath, err := a.sandbox.ResolvePath(relPath)
	if err != nil {
		return 0, err
	}

	f, err := os.Open(absPath)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}

	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return 0, err
	}
	hdr.Name = filepath.ToSlash(relPath)

	if err := tw.WriteHeader(hdr); err != nil {
		return 0, err
	}
	return io.Copy(tw, f)
}
