package archive

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/polyarb/arbengine/internal/tradelog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRotator struct {
	rotated tradelog.RotatedPaths
	err     error
}

func (f *fakeRotator) Rotate() (tradelog.RotatedPaths, error) {
	if f.err != nil {
		return tradelog.RotatedPaths{}, f.err
	}
	return f.rotated, nil
}

type fakeUploader struct {
	uploaded []string
	failOn   string
}

func (f *fakeUploader) ArchiveLogFile(ctx context.Context, localPath string) (string, error) {
	if localPath == f.failOn {
		return "", errors.New("upload failed")
	}
	f.uploaded = append(f.uploaded, localPath)
	return "remote/" + localPath, nil
}

func noopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunOnce_RotatesAndUploadsBothFiles(t *testing.T) {
	rot := &fakeRotator{rotated: tradelog.RotatedPaths{
		Trades:        "trades.csv.20260101T000000Z",
		Opportunities: "opportunities.csv.20260101T000000Z",
	}}
	up := &fakeUploader{}

	a := New(rot, up, noopLogger())
	require.NoError(t, a.RunOnce(context.Background()))
	assert.ElementsMatch(t, []string{
		"trades.csv.20260101T000000Z",
		"opportunities.csv.20260101T000000Z",
	}, up.uploaded)
}

func TestRunOnce_NilUploaderOnlyRotates(t *testing.T) {
	rot := &fakeRotator{rotated: tradelog.RotatedPaths{
		Trades:        "trades.csv.x",
		Opportunities: "opportunities.csv.x",
	}}

	a := New(rot, nil, noopLogger())
	require.NoError(t, a.RunOnce(context.Background()))
}

func TestRunOnce_PropagatesRotateError(t *testing.T) {
	rot := &fakeRotator{err: errors.New("disk full")}
	a := New(rot, &fakeUploader{}, noopLogger())
	err := a.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestRunOnce_PropagatesUploadError(t *testing.T) {
	rot := &fakeRotator{rotated: tradelog.RotatedPaths{
		Trades:        "trades.csv.x",
		Opportunities: "opportunities.csv.x",
	}}
	up := &fakeUploader{failOn: "trades.csv.x"}
	a := New(rot, up, noopLogger())
	err := a.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upload trades log")
}

func TestNextCronTime_MatchesWildcardEveryMinute(t *testing.T) {
	after := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	next, err := nextCronTime("* * * * *", after)
	require.NoError(t, err)
	assert.Equal(t, after.Add(time.Minute), next)
}

func TestNextCronTime_DailyAt3AM(t *testing.T) {
	after := time.Date(2026, 1, 1, 5, 0, 0, 0, time.UTC)
	next, err := nextCronTime("0 3 * * *", after)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC), next)
}

func TestNextCronTime_ListOfHours(t *testing.T) {
	after := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	next, err := nextCronTime("0 3,15 * * *", after)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 1, 3, 0, 0, 0, time.UTC), next)
}

func TestParseCron_RejectsWrongFieldCount(t *testing.T) {
	_, err := parseCron("0 3 * *")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "5 fields")
}

func TestRunCron_StopsOnContextCancel(t *testing.T) {
	rot := &fakeRotator{rotated: tradelog.RotatedPaths{Trades: "t", Opportunities: "o"}}
	a := New(rot, nil, noopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := a.RunCron(ctx, "* * * * *")
	require.NoError(t, err)
}
