// Package archive periodically rotates the trade/opportunity CSV logs and
// uploads the rotated files to S3-compatible cold storage, adapted from the
// teacher's internal/pipeline/archiver.go cron-driven DB archiver and its
// internal/blob/s3/archiver.go upload target.
package archive

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/polyarb/arbengine/internal/domain"
	"github.com/polyarb/arbengine/internal/tradelog"
)

// Rotator closes off the current CSV files and reopens fresh ones,
// returning the paths of the files that were just closed.
type Rotator interface {
	Rotate() (tradelog.RotatedPaths, error)
}

// Archiver rotates the trade log on a cron schedule and ships each rotated
// file to cold storage.
type Archiver struct {
	rotator  Rotator
	uploader domain.Archiver
	logger   *slog.Logger
}

// New builds an Archiver. uploader may be nil, in which case RunOnce only
// rotates the logs locally and never uploads them — useful when no S3
// bucket is configured but log rotation is still wanted to bound file size.
func New(rotator Rotator, uploader domain.Archiver, logger *slog.Logger) *Archiver {
	return &Archiver{
		rotator:  rotator,
		uploader: uploader,
		logger:   logger.With(slog.String("component", "archiver")),
	}
}

// RunOnce rotates the logs and, if an uploader is configured, archives both
// rotated files to cold storage.
func (a *Archiver) RunOnce(ctx context.Context) error {
	rotated, err := a.rotator.Rotate()
	if err != nil {
		return fmt.Errorf("archive: rotate logs: %w", err)
	}
	a.logger.Info("rotated trade logs",
		slog.String("trades", rotated.Trades),
		slog.String("opportunities", rotated.Opportunities),
	)

	if a.uploader == nil {
		return nil
	}

	tradesRemote, err := a.uploader.ArchiveLogFile(ctx, rotated.Trades)
	if err != nil {
		return fmt.Errorf("archive: upload trades log: %w", err)
	}
	oppsRemote, err := a.uploader.ArchiveLogFile(ctx, rotated.Opportunities)
	if err != nil {
		return fmt.Errorf("archive: upload opportunities log: %w", err)
	}
	a.logger.Info("archived trade logs to cold storage",
		slog.String("trades_remote", tradesRemote),
		slog.String("opportunities_remote", oppsRemote),
	)
	return nil
}

// RunCron runs RunOnce on a cron schedule until the context is cancelled.
// Cron expressions use the standard 5-field format: "minute hour
// day-of-month month day-of-week". Example: "0 3 * * *" runs at 3:00 AM
// daily.
func (a *Archiver) RunCron(ctx context.Context, cronExpr string) error {
	a.logger.Info("archiver cron started", slog.String("cron", cronExpr))

	for {
		next, err := nextCronTime(cronExpr, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("archive: parsing cron expression %q: %w", cronExpr, err)
		}

		wait := time.Until(next)
		a.logger.Info("archiver waiting for next cron trigger",
			slog.Time("next_run", next), slog.Duration("wait", wait))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			a.logger.Info("archiver cron stopped")
			return nil
		case <-timer.C:
			if err := a.RunOnce(ctx); err != nil {
				a.logger.Error("archive run failed", slog.String("error", err.Error()))
			}
		}
	}
}

// cronField represents a parsed cron field that can match against a value.
type cronField struct {
	wildcard bool
	values   []int
}

func (f cronField) matches(val int) bool {
	if f.wildcard {
		return true
	}
	for _, v := range f.values {
		if v == val {
			return true
		}
	}
	return false
}

func parseCronField(field string) (cronField, error) {
	if field == "*" {
		return cronField{wildcard: true}, nil
	}

	parts := strings.Split(field, ",")
	values := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		v, err := strconv.Atoi(p)
		if err != nil {
			return cronField{}, fmt.Errorf("invalid cron field value %q: %w", p, err)
		}
		values = append(values, v)
	}
	return cronField{values: values}, nil
}

type parsedCron struct {
	minute     cronField
	hour       cronField
	dayOfMonth cronField
	month      cronField
	dayOfWeek  cronField
}

func (c parsedCron) matchesTime(t time.Time) bool {
	return c.minute.matches(t.Minute()) &&
		c.hour.matches(t.Hour()) &&
		c.dayOfMonth.matches(t.Day()) &&
		c.month.matches(int(t.Month())) &&
		c.dayOfWeek.matches(int(t.Weekday()))
}

func parseCron(expr string) (parsedCron, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return parsedCron{}, fmt.Errorf("cron expression must have 5 fields, got %d", len(fields))
	}

	minute, err := parseCronField(fields[0])
	if err != nil {
		return parsedCron{}, fmt.Errorf("parsing minute field: %w", err)
	}
	hour, err := parseCronField(fields[1])
	if err != nil {
		return parsedCron{}, fmt.Errorf("parsing hour field: %w", err)
	}
	dayOfMonth, err := parseCronField(fields[2])
	if err != nil {
		return parsedCron{}, fmt.Errorf("parsing day-of-month field: %w", err)
	}
	month, err := parseCronField(fields[3])
	if err != nil {
		return parsedCron{}, fmt.Errorf("parsing month field: %w", err)
	}
	dayOfWeek, err := parseCronField(fields[4])
	if err != nil {
		return parsedCron{}, fmt.Errorf("parsing day-of-week field: %w", err)
	}

	return parsedCron{
		minute:     minute,
		hour:       hour,
		dayOfMonth: dayOfMonth,
		month:      month,
		dayOfWeek:  dayOfWeek,
	}, nil
}

// nextCronTime calculates the next time after 'after' that matches the given
// cron expression, searching minute-by-minute up to one year ahead.
func nextCronTime(cronExpr string, after time.Time) (time.Time, error) {
	cron, err := parseCron(cronExpr)
	if err != nil {
		return time.Time{}, err
	}

	candidate := after.Truncate(time.Minute).Add(time.Minute)
	limit := after.Add(366 * 24 * time.Hour)

	for candidate.Before(limit) {
		if cron.matchesTime(candidate) {
			return candidate, nil
		}
		candidate = candidate.Add(time.Minute)
	}

	return time.Time{}, fmt.Errorf("no matching cron time found within one year for %q", cronExpr)
}
