// Package stats writes point-in-time statistics files for the operator and
// cleans them up once delivered or stale.
package stats

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/edgard/scoutbot/internal/database"
	apperrors "github.com/edgard/scoutbot/internal/errors"
)

const (
	filePattern  = "stat_*.txt"
	header       = "id | username | created_at | invited_at"
	rowTimestamp = "2006-01-02 15:04:05"
	titleDate    = "02-01-2006"
)

// Lister is the part of the record store the exporter reads.
type Lister interface {
	ListCandidates(ctx context.Context, q database.CandidateQuery) ([]database.UserRecord, error)
}

// Exporter writes statistics files into a directory.
type Exporter struct {
	dir    string
	logger *slog.Logger
	now    func() time.Time
}

func NewExporter(dir string, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Exporter{dir: dir, logger: logger.With("component", "stats"), now: time.Now}
}

// Dir returns the directory files are written to.
func (e *Exporter) Dir() string {
	return e.dir
}

// Write exports every record created up to asOf and returns the file path
// and the number of rows written.
func (e *Exporter) Write(ctx context.Context, store Lister, asOf time.Time) (string, int, error) {
	records, err := store.ListCandidates(ctx, database.CandidateQuery{AsOf: asOf, IncludeInvited: true})
	if err != nil {
		return "", 0, err
	}

	if err := os.MkdirAll(e.dir, 0o750); err != nil {
		return "", 0, apperrors.NewStorageError("failed to create stats directory", err)
	}

	path := filepath.Join(e.dir, fmt.Sprintf("stat_%d.txt", e.now().UnixNano()))
	f, err := os.Create(path)
	if err != nil {
		return "", 0, apperrors.NewStorageError("failed to create stats file", err)
	}

	if err := render(f, asOf, records); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", 0, apperrors.NewStorageError("failed to write stats file", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", 0, apperrors.NewStorageError("failed to close stats file", err)
	}

	e.logger.InfoContext(ctx, "Statistics file written", "path", path, "rows", len(records), "as_of", asOf)
	return path, len(records), nil
}

func render(w io.Writer, asOf time.Time, records []database.UserRecord) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "Statistics until %s:\n\n", asOf.Format(titleDate))
	fmt.Fprintln(bw, header)
	for _, r := range records {
		invited := "-"
		if r.Invited() {
			invited = r.InvitedAt.Time.UTC().Format(rowTimestamp)
		}
		fmt.Fprintf(bw, "%d | %s | %s | %s\n", r.TelegramID, r.Username, r.CreatedAt.UTC().Format(rowTimestamp), invited)
	}
	return bw.Flush()
}

// Remove deletes a delivered file.
func (e *Exporter) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Clean removes statistics files last modified before now minus maxAge.
// A zero maxAge removes every file. It returns how many files were removed.
func (e *Exporter) Clean(ctx context.Context, maxAge time.Duration) (int, error) {
	matches, err := filepath.Glob(filepath.Join(e.dir, filePattern))
	if err != nil {
		return 0, err
	}

	cutoff := e.now().Add(-maxAge)
	removed := 0
	var errs []error
	for _, path := range matches {
		if maxAge > 0 {
			info, err := os.Stat(path)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if info.ModTime().After(cutoff) {
				continue
			}
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
	}

	if removed > 0 {
		e.logger.InfoContext(ctx, "Removed statistics files", "count", removed, "max_age", maxAge)
	}
	return removed, errors.Join(errs...)
}
