package pptx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	nsChart       = "http://schemas.openxmlformats.org/drawingml/2006/chart"
	nsChartStrict = "http://purl.oclc.org/ooxml/drawingml/chart"
	nsChartEx     = "http://schemas.microsoft.com/office/drawing/2014/chartex"
)

// Redact returns a copy of the document with every text run emptied.
//
// All XML parts under ppt/ are rewritten: slides, notes, layouts, masters,
// diagrams and charts. Shapes, pictures, fills and geometry are untouched and
// every other part is copied without recompression. Chart series names and
// category labels are cleared too; numeric series are kept so the plot
// renders. A part that does not parse fails the whole redaction. The input is
// not modified.
func Redact(data []byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("pptx: redact: %v: %w", err, ErrCorruptInput)
	}

	var buf bytes.Buffer
	buf.Grow(len(data))
	zw := zip.NewWriter(&buf)
	for _, f := range zr.File {
		if !redactable(f.Name) {
			if err := zw.Copy(f); err != nil {
				return nil, fmt.Errorf("pptx: redact: copy %s: %w", f.Name, err)
			}
			continue
		}
		if err := redactPart(zw, f); err != nil {
			return nil, fmt.Errorf("pptx: redact: %s: %w", f.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("pptx: redact: finish archive: %w", err)
	}
	return buf.Bytes(), nil
}

func redactable(name string) bool {
	return strings.HasPrefix(name, "ppt/") && strings.HasSuffix(name, ".xml")
}

func redactPart(zw *zip.Writer, f *zip.File) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	src, err := io.ReadAll(io.LimitReader(rc, maxPartSize+1))
	rc.Close()
	if err != nil {
		return err
	}
	if len(src) > maxPartSize {
		return fmt.Errorf("part exceeds %d bytes", maxPartSize)
	}

	stripped, err := StripText(src)
	if err != nil {
		return fmt.Errorf("%v: %w", err, ErrCorruptInput)
	}

	hdr := f.FileHeader
	hdr.Extra = nil
	w, err := zw.CreateHeader(&hdr)
	if err != nil {
		return err
	}
	_, err = w.Write(stripped)
	return err
}

// StripText empties the character data of every element a renderer draws as
// text: DrawingML runs, chart values outside numeric caches and literals,
// chartex series names and string dimension points. Elements are matched by
// namespace URI, whatever prefix binds it. Markup outside the removed text
// is kept byte for byte.
func StripText(part []byte) ([]byte, error) {
	dec := xml.NewDecoder(bytes.NewReader(part))
	var (
		stack []xml.Name
		cuts  [][2]int64
	)
	for {
		start := dec.InputOffset()
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			stack = append(stack, t.Name)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if drawnText(stack) {
				cuts = append(cuts, [2]int64{start, dec.InputOffset()})
			}
		}
	}
	if len(cuts) == 0 {
		return part, nil
	}

	out := make([]byte, 0, len(part))
	var last int64
	for _, c := range cuts {
		out = append(out, part[last:c[0]]...)
		last = c[1]
	}
	return append(out, part[last:]...), nil
}

// drawnText reports whether character data under the element path stack is
// rendered as text.
func drawnText(stack []xml.Name) bool {
	if len(stack) == 0 {
		return false
	}
	top := stack[len(stack)-1]
	switch {
	case isDrawing(top, "t"):
		return true
	case isChart(top, "v"):
		return !within(stack, isChart, "numCache", "numLit")
	case isChartEx(top, "v"):
		return true
	case isChartEx(top, "pt"):
		return within(stack, isChartEx, "strDim")
	}
	return false
}

func within(stack []xml.Name, match func(xml.Name, string) bool, locals ...string) bool {
	for _, n := range stack[:len(stack)-1] {
		for _, l := range locals {
			if match(n, l) {
				return true
			}
		}
	}
	return false
}

func isChart(n xml.Name, local string) bool {
	return n.Local == local && (n.Space == nsChart || n.Space == nsChartStrict)
}

func isChartEx(n xml.Name, local string) bool {
	return n.Local == local && n.Space == nsChartEx
}
