package internal

import (
	"io"

	"github.com/churryboy/ppt/internal/render"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config   *Config
	renderer render.Renderer
	logOut   io.Writer
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithRenderer replaces the LibreOffice renderer built from the config.
func WithRenderer(r render.Renderer) Option {
	return func(a *application) {
		a.renderer = r
	}
}

// WithLogOutput sends logs to w instead of stdout.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOut = w
	}
}
