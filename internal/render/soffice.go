package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Config holds renderer settings.
type Config struct {
	SofficePath string
	Timeout     time.Duration
	DPI         int
}

// Soffice renders through a headless LibreOffice subprocess that exports a
// PDF, which is then rasterized page by page.
type Soffice struct {
	cfg    Config
	logger *slog.Logger
}

// NewSoffice creates a LibreOffice-backed renderer.
func NewSoffice(cfg Config, logger *slog.Logger) *Soffice {
	if cfg.SofficePath == "" {
		cfg.SofficePath = "soffice"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.DPI < MinDPI {
		cfg.DPI = MinDPI
	}
	return &Soffice{cfg: cfg, logger: logger}
}

// Available checks that the engine binary can be resolved.
func (s *Soffice) Available() error {
	_, err := s.binary()
	return err
}

func (s *Soffice) binary() (string, error) {
	bin, err := exec.LookPath(s.cfg.SofficePath)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrEngineUnavailable, s.cfg.SofficePath, err)
	}
	return bin, nil
}

// Render converts document to PNG pages. Each call uses its own scratch
// directory and LibreOffice profile, removed on every return path.
func (s *Soffice) Render(ctx context.Context, document []byte) ([][]byte, error) {
	bin, err := s.binary()
	if err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp("", "ppt-render-*")
	if err != nil {
		return nil, fmt.Errorf("render: scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "deck.pptx")
	if err := os.WriteFile(in, document, 0o600); err != nil {
		return nil, fmt.Errorf("render: write input: %w", err)
	}
	outDir := filepath.Join(dir, "out")

	start := time.Now()
	if err := s.convert(ctx, bin, dir, in, outDir); err != nil {
		return nil, err
	}
	s.logger.Debug("pdf exported", "elapsed", time.Since(start))

	return Rasterize(ctx, filepath.Join(outDir, "deck.pdf"), s.cfg.DPI)
}

func (s *Soffice) convert(ctx context.Context, bin, dir, in, outDir string) error {
	runCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	profile := url.URL{Scheme: "file", Path: filepath.ToSlash(filepath.Join(dir, "profile"))}
	cmd := exec.CommandContext(runCtx, bin,
		"--headless", "--norestore", "--nologo",
		"-env:UserInstallation="+profile.String(),
		"--convert-to", "pdf",
		"--outdir", outDir,
		in,
	)
	cmd.WaitDelay = 5 * time.Second
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	err := cmd.Run()
	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w after %s", ErrConversionTimeout, s.cfg.Timeout)
	case err != nil:
		return fmt.Errorf("%w: soffice: %v: %s", ErrCorruptInput, err, tail(output.String()))
	}
	if _, err := os.Stat(filepath.Join(outDir, "deck.pdf")); err != nil {
		return fmt.Errorf("%w: no pdf produced: %s", ErrCorruptInput, tail(output.String()))
	}
	return nil
}

// Rasterize validates a PDF and renders every page to PNG at dpi.
func Rasterize(ctx context.Context, pdfPath string, dpi int) ([][]byte, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if err := api.ValidateFile(pdfPath, conf); err != nil {
		return nil, fmt.Errorf("%w: invalid pdf: %v", ErrCorruptInput, err)
	}
	pages, err := api.PageCountFile(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("%w: page count: %v", ErrCorruptInput, err)
	}

	doc, err := fitz.New(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("%w: open pdf: %v", ErrCorruptInput, err)
	}
	defer doc.Close()

	if n := doc.NumPage(); n != pages {
		return nil, fmt.Errorf("%w: page count mismatch %d != %d", ErrCorruptInput, n, pages)
	}

	images := make([][]byte, 0, pages)
	for i := 0; i < pages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		png, err := doc.ImagePNG(i, float64(dpi))
		if err != nil {
			return nil, fmt.Errorf("%w: page %d: %v", ErrCorruptInput, i+1, err)
		}
		images = append(images, png)
	}
	return images, nil
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 512 {
		s = s[len(s)-512:]
	}
	return s
}
