// Package pptx reads Office Open XML presentations.
//
// It covers three concerns that all operate on the raw document bytes:
// upload validation, text layer extraction and the privacy redaction
// transform used to produce text-free render input.
package pptx

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/churryboy/ppt/internal/apperr"
)

// Extension is the only accepted upload extension.
const Extension = ".pptx"

// ContentType is the IANA media type of a pptx document.
const ContentType = "application/vnd.openxmlformats-officedocument.presentationml.presentation"

var zipMagic = []byte("PK\x03\x04")

var (
	// ErrUnsupportedFormat is returned for uploads that are not pptx documents.
	ErrUnsupportedFormat = fmt.Errorf("unsupported document format: %w", apperr.ErrValidation)
	// ErrCorruptInput is returned when the document cannot be opened at all.
	ErrCorruptInput = errors.New("corrupt input")
)

// Validate performs the synchronous upload check: file extension and the zip
// local-file signature. It does not open the archive.
func Validate(name string, data []byte) error {
	if !strings.EqualFold(filepath.Ext(name), Extension) {
		return fmt.Errorf("pptx: %q: extension must be %s: %w", name, Extension, ErrUnsupportedFormat)
	}
	if !bytes.HasPrefix(data, zipMagic) {
		return fmt.Errorf("pptx: %q: missing zip signature: %w", name, ErrUnsupportedFormat)
	}
	return nil
}
