package repository

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newBufferedGormLogger(slow time.Duration) (*gormLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return newGormLogger(logger, slow), &buf
}

func sqlFunc(sql string) func() (string, int64) {
	return func() (string, int64) { return sql, 1 }
}

func TestGormLogger_TraceError(t *testing.T) {
	t.Parallel()

	l, buf := newBufferedGormLogger(time.Second)
	l.Trace(context.Background(), time.Now(), sqlFunc("SELECT 1"), errors.New("boom"))

	out := buf.String()
	for _, want := range []string{`"level":"ERROR"`, `"msg":"query failed"`, `"error":"boom"`, `"sql":"SELECT 1"`, `"component":"gorm"`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in log output: %s", want, out)
		}
	}
}

func TestGormLogger_TraceRecordNotFoundIsQuiet(t *testing.T) {
	t.Parallel()

	l, buf := newBufferedGormLogger(time.Second)
	l.Trace(context.Background(), time.Now(), sqlFunc("SELECT * FROM users"), gorm.ErrRecordNotFound)

	if buf.Len() != 0 {
		t.Errorf("expected no output for record not found, got %s", buf.String())
	}
}

func TestGormLogger_TraceSlowQuery(t *testing.T) {
	t.Parallel()

	l, buf := newBufferedGormLogger(time.Millisecond)
	l.Trace(context.Background(), time.Now().Add(-50*time.Millisecond), sqlFunc("SELECT 1"), nil)

	out := buf.String()
	if !strings.Contains(out, `"level":"WARN"`) || !strings.Contains(out, `"msg":"slow query"`) {
		t.Errorf("expected slow query warning, got %s", out)
	}
}

func TestGormLogger_TraceFastQueryAtWarnIsQuiet(t *testing.T) {
	t.Parallel()

	l, buf := newBufferedGormLogger(time.Hour)
	l.Trace(context.Background(), time.Now(), sqlFunc("SELECT 1"), nil)

	if buf.Len() != 0 {
		t.Errorf("expected no output for fast query, got %s", buf.String())
	}
}

func TestGormLogger_LogModeInfoTracesEverything(t *testing.T) {
	t.Parallel()

	l, buf := newBufferedGormLogger(time.Hour)
	verbose := l.LogMode(gormlogger.Info)
	verbose.Trace(context.Background(), time.Now(), sqlFunc("SELECT 1"), nil)

	if !strings.Contains(buf.String(), `"msg":"query"`) {
		t.Errorf("expected query debug line, got %s", buf.String())
	}

	// The original logger keeps its level.
	buf.Reset()
	l.Trace(context.Background(), time.Now(), sqlFunc("SELECT 1"), nil)
	if buf.Len() != 0 {
		t.Errorf("LogMode should not mutate the receiver, got %s", buf.String())
	}
}

func TestGormLogger_Silent(t *testing.T) {
	t.Parallel()

	l, buf := newBufferedGormLogger(time.Millisecond)
	silent := l.LogMode(gormlogger.Silent)
	silent.Trace(context.Background(), time.Now(), sqlFunc("SELECT 1"), errors.New("boom"))
	silent.Error(context.Background(), "failed: %s", "x")

	if buf.Len() != 0 {
		t.Errorf("expected no output in silent mode, got %s", buf.String())
	}
}
