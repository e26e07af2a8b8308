// Package render turns slide documents into one raster image per exported slide.
package render

import (
	"context"
	"errors"

	"github.com/churryboy/ppt/internal/models"
)

// MinDPI is the lowest resolution accepted for slide images.
const MinDPI = 150

var (
	// ErrEngineUnavailable means the rendering engine is not installed. Not retried.
	ErrEngineUnavailable = errors.New("render: engine unavailable")
	// ErrConversionTimeout means one invocation exceeded its time budget. Retryable once.
	ErrConversionTimeout = errors.New("render: conversion timeout")
	// ErrCorruptInput means the engine could not open or convert the document. Not retried.
	ErrCorruptInput = errors.New("render: corrupt input")
)

// Renderer converts document bytes into PNG images, one per exported slide,
// in slide order. Implementations must not share mutable state between calls.
type Renderer interface {
	Render(ctx context.Context, document []byte) ([][]byte, error)
	// Available reports ErrEngineUnavailable when rendering cannot succeed.
	Available() error
}

// Reason maps a render error to the reason code persisted on a failed deck.
func Reason(err error) models.ReasonCode {
	switch {
	case err == nil:
		return models.ReasonNone
	case errors.Is(err, ErrEngineUnavailable):
		return models.ReasonEngineUnavailable
	case errors.Is(err, ErrConversionTimeout):
		return models.ReasonConversionTimeout
	default:
		return models.ReasonCorruptInput
	}
}
