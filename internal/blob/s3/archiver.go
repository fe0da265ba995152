package s3blob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/polyarb/arbengine/internal/domain"
)

// ArchiveImpl implements domain.Archiver by uploading a rotated local CSV
// log file (trades.csv.2025-01, opportunities.csv.2025-01, or similar,
// produced by the caller's log-rotation step) to S3 cold storage and
// returning the remote key.
type ArchiveImpl struct {
	writer domain.BlobWriter
	prefix string
}

// NewArchiver creates a new ArchiveImpl uploading under the given key
// prefix (e.g. "archive/logs").
func NewArchiver(writer domain.BlobWriter, prefix string) *ArchiveImpl {
	return &ArchiveImpl{writer: writer, prefix: prefix}
}

// ArchiveLogFile uploads the file at localPath to
// {prefix}/{YYYY-MM}/{basename}, preserving the original file name so a
// rotated trades.csv.2025-01-14 and opportunities.csv.2025-01-14 land side
// by side in the same partition.
func (a *ArchiveImpl) ArchiveLogFile(ctx context.Context, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("s3blob: open log file %q: %w", localPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("s3blob: stat log file %q: %w", localPath, err)
	}

	remotePath := fmt.Sprintf("%s/%s/%s", a.prefix, time.Now().UTC().Format("2006-01"), filepath.Base(localPath))

	if info.Size() > multipartThreshold {
		if err := a.writer.PutMultipart(ctx, remotePath, f, multipartPartSize); err != nil {
			return "", fmt.Errorf("s3blob: multipart upload %q: %w", localPath, err)
		}
		return remotePath, nil
	}

	if err := a.writer.Put(ctx, remotePath, f, "text/csv"); err != nil {
		return "", fmt.Errorf("s3blob: upload %q: %w", localPath, err)
	}
	return remotePath, nil
}

const (
	multipartThreshold = 32 << 20 // 32MiB
	multipartPartSize  = 8 << 20  // 8MiB
)

var _ domain.Archiver = (*ArchiveImpl)(nil)
