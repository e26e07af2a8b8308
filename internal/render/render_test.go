package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/churryboy/ppt/internal/models"
	"github.com/churryboy/ppt/internal/testutil"
)

// fakeEngine writes an executable shell script standing in for soffice.
func fakeEngine(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts unavailable")
	}
	path := filepath.Join(t.TempDir(), "soffice")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSoffice_EngineUnavailable(t *testing.T) {
	r := NewSoffice(Config{SofficePath: filepath.Join(t.TempDir(), "missing-soffice")}, testutil.Logger())
	if err := r.Available(); !errors.Is(err, ErrEngineUnavailable) {
		t.Errorf("Available = %v", err)
	}
	_, err := r.Render(context.Background(), []byte("PK"))
	if !errors.Is(err, ErrEngineUnavailable) {
		t.Errorf("Render = %v, want ErrEngineUnavailable", err)
	}
}

func TestSoffice_Timeout(t *testing.T) {
	bin := fakeEngine(t, "exec sleep 5")
	r := NewSoffice(Config{SofficePath: bin, Timeout: 150 * time.Millisecond}, testutil.Logger())

	start := time.Now()
	_, err := r.Render(context.Background(), []byte("PK"))
	if !errors.Is(err, ErrConversionTimeout) {
		t.Fatalf("err = %v, want ErrConversionTimeout", err)
	}
	if time.Since(start) > 4*time.Second {
		t.Errorf("timeout not enforced: %s", time.Since(start))
	}
}

func TestSoffice_EngineFailure(t *testing.T) {
	bin := fakeEngine(t, "echo 'source file could not be loaded' >&2; exit 1")
	r := NewSoffice(Config{SofficePath: bin, Timeout: 5 * time.Second}, testutil.Logger())
	_, err := r.Render(context.Background(), []byte("PK"))
	if !errors.Is(err, ErrCorruptInput) {
		t.Errorf("err = %v, want ErrCorruptInput", err)
	}
}

func TestSoffice_InvalidPDF(t *testing.T) {
	bin := fakeEngine(t, `while [ $# -gt 0 ]; do if [ "$1" = "--outdir" ]; then out="$2"; fi; shift; done
mkdir -p "$out" && printf 'not a pdf' > "$out/deck.pdf"`)
	r := NewSoffice(Config{SofficePath: bin, Timeout: 5 * time.Second}, testutil.Logger())
	_, err := r.Render(context.Background(), []byte("PK"))
	if !errors.Is(err, ErrCorruptInput) {
		t.Errorf("err = %v, want ErrCorruptInput", err)
	}
}

func TestSoffice_ScratchDirRemoved(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("TMPDIR", tmp)
	bin := fakeEngine(t, "exit 1")
	r := NewSoffice(Config{SofficePath: bin, Timeout: 5 * time.Second}, testutil.Logger())
	_, _ = r.Render(context.Background(), []byte("PK"))

	entries, _ := os.ReadDir(tmp)
	if len(entries) != 0 {
		t.Errorf("scratch left behind: %v", entries)
	}
}

func TestSoffice_ParentCancel(t *testing.T) {
	bin := fakeEngine(t, "exec sleep 5")
	r := NewSoffice(Config{SofficePath: bin, Timeout: 10 * time.Second}, testutil.Logger())
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := r.Render(ctx, []byte("PK"))
	if !errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrConversionTimeout) {
		t.Errorf("err = %v, want parent context error", err)
	}
}

func TestNewSoffice_Defaults(t *testing.T) {
	r := NewSoffice(Config{DPI: 72}, testutil.Logger())
	if r.cfg.DPI != MinDPI || r.cfg.SofficePath != "soffice" || r.cfg.Timeout <= 0 {
		t.Errorf("cfg = %+v", r.cfg)
	}
}

func TestReason(t *testing.T) {
	cases := map[error]models.ReasonCode{
		nil:                  models.ReasonNone,
		ErrEngineUnavailable: models.ReasonEngineUnavailable,
		ErrConversionTimeout: models.ReasonConversionTimeout,
		ErrCorruptInput:      models.ReasonCorruptInput,
	}
	for err, want := range cases {
		if got := Reason(err); got != want {
			t.Errorf("Reason(%v) = %q, want %q", err, got, want)
		}
	}
}

// blankPDF builds a minimal PDF with n empty letter-size pages.
func blankPDF(n int) []byte {
	var objs []string
	kids := ""
	for i := 0; i < n; i++ {
		kids += fmt.Sprintf("%d 0 R ", i+3)
	}
	objs = append(objs,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d /Resources << >> /MediaBox [0 0 612 792] >>", kids, n),
	)
	for i := 0; i < n; i++ {
		objs = append(objs, "<< /Type /Page /Parent 2 0 R >>")
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return buf.Bytes()
}

func TestRasterize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deck.pdf")
	if err := os.WriteFile(path, blankPDF(2), 0o644); err != nil {
		t.Fatal(err)
	}
	images, err := Rasterize(context.Background(), path, MinDPI)
	if err != nil {
		t.Fatalf("Rasterize: %v", err)
	}
	if len(images) != 2 {
		t.Fatalf("pages = %d, want 2", len(images))
	}
	for i, img := range images {
		if !bytes.HasPrefix(img, []byte("\x89PNG")) {
			t.Errorf("page %d is not a PNG", i+1)
		}
	}
}
