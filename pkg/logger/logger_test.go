package logger

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestLoggerInit(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize text logger: %v", err)
	}
	if Get() == nil {
		t.Fatal("logger is nil after initialization")
	}

	if err := Init(WithFormat("json")); err != nil {
		t.Fatalf("failed to initialize json logger: %v", err)
	}
	if Get() == nil {
		t.Fatal("logger is nil after initialization")
	}

	if err := Init(WithFormat("xml")); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(WithFormat("json"), WithWriter(&buf), WithCaller(false)); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}

	ctx := context.Background()
	Get().Info(ctx, "vouch confirmed", String("builder", "0xabc"), Uint64("skill", 3), Error(errors.New("boom")))

	out := buf.String()
	for _, want := range []string{`"msg":"vouch confirmed"`, `"builder":"0xabc"`, `"skill":3`, `"error":"boom"`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in %s", want, out)
		}
	}
	if strings.Contains(out, "source") {
		t.Errorf("caller disabled but found source in %s", out)
	}
}

func TestLoggerNamedAndWith(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(WithFormat("json"), WithWriter(&buf), WithCaller(false)); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}

	Named("sync").With(String("op", "refresh")).Info(context.Background(), "done", Int("count", 2))

	out := buf.String()
	if !strings.Contains(out, `"sync":{`) {
		t.Errorf("expected sync group in %s", out)
	}
	if !strings.Contains(out, `"op":"refresh"`) {
		t.Errorf("expected op field in %s", out)
	}
}

func TestSetLevelString(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(WithWriter(&buf)); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}

	for _, lvl := range []string{"debug", "INFO", "warning", "error", ""} {
		if err := SetLevelString(lvl); err != nil {
			t.Errorf("unexpected error for %q: %v", lvl, err)
		}
	}
	if err := SetLevelString("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}

	_ = SetLevelString("error")
	Get().Info(context.Background(), "hidden")
	if buf.Len() != 0 {
		t.Errorf("info should be filtered at error level, got %s", buf.String())
	}
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Error(context.Background(), "dropped")
	l.Named("x").With(String("a", "b")).Warn(context.Background(), "dropped")
}
