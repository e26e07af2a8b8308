package pptx

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	nsDrawing       = "http://schemas.openxmlformats.org/drawingml/2006/main"
	nsDrawingStrict = "http://purl.oclc.org/ooxml/drawingml/main"
	nsPresent       = "http://schemas.openxmlformats.org/presentationml/2006/main"
	nsPresentStrict = "http://purl.oclc.org/ooxml/presentationml/main"
	nsCompat        = "http://schemas.openxmlformats.org/markup-compatibility/2006"
)

// SlideText is the extracted text of one slide in document order.
type SlideText struct {
	Number int
	Title  string
	Body   string
	Notes  string
	Hidden bool
	// Failed marks a slide whose markup could not be parsed. Its layers are empty.
	Failed bool
}

// Document is the result of Extract.
type Document struct {
	// SlideCount is the number of slides the presentation declares.
	SlideCount int
	Slides     []SlideText
}

// VisibleNumbers returns the numbers of slides a renderer exports, in order.
func (d *Document) VisibleNumbers() []int {
	var out []int
	for _, s := range d.Slides {
		if !s.Hidden {
			out = append(out, s.Number)
		}
	}
	return out
}

// SlideError reports a slide part that is declared but cannot be read.
// Slides before it were extracted and are returned alongside the error.
type SlideError struct {
	Number int
	Part   string
	Err    error
}

func (e *SlideError) Error() string {
	return fmt.Sprintf("pptx: slide %d (%s): %v", e.Number, e.Part, e.Err)
}

func (e *SlideError) Unwrap() error { return e.Err }

// Extract parses the three text layers of every slide.
//
// A slide whose XML is malformed is returned with Failed set and empty layers.
// A missing or unreadable slide part stops extraction: the slides before it
// are returned together with a *SlideError wrapping ErrCorruptInput.
func Extract(data []byte) (*Document, error) {
	a, err := openArchive(data)
	if err != nil {
		return nil, err
	}
	parts, err := a.slideParts()
	if err != nil {
		return nil, fmt.Errorf("pptx: %v: %w", err, ErrCorruptInput)
	}

	doc := &Document{SlideCount: len(parts), Slides: make([]SlideText, 0, len(parts))}
	for i, part := range parts {
		n := i + 1
		raw, err := a.read(part)
		if err != nil {
			return doc, &SlideError{Number: n, Part: part, Err: fmt.Errorf("%v: %w", err, ErrCorruptInput)}
		}
		doc.Slides = append(doc.Slides, extractSlide(a, n, part, raw))
	}
	return doc, nil
}

func extractSlide(a *archive, n int, part string, raw []byte) SlideText {
	st := SlideText{Number: n}
	hidden, shapes, err := scanShapes(raw)
	st.Hidden = hidden
	if err != nil {
		st.Failed = true
		return st
	}
	st.Title, st.Body = slideLayers(shapes)

	notesPart, ok, err := a.related(part, relTypeNotesSlide)
	if err != nil {
		st.Failed, st.Title, st.Body = true, "", ""
		return st
	}
	if !ok {
		return st
	}
	notesRaw, err := a.read(notesPart)
	if err != nil {
		st.Failed, st.Title, st.Body = true, "", ""
		return st
	}
	_, notesShapes, err := scanShapes(notesRaw)
	if err != nil {
		st.Failed, st.Title, st.Body = true, "", ""
		return st
	}
	st.Notes = notesLayer(notesShapes)
	return st
}

// shapeText is the text of one shape or graphic frame.
type shapeText struct {
	placeholder string // placeholder type, "" for free-standing shapes
	text        string
}

func isTitle(ph string) bool {
	return ph == "title" || ph == "ctrTitle"
}

// chrome placeholders carry slide numbers, dates and footers.
func isChrome(ph string) bool {
	switch ph {
	case "sldNum", "dt", "ftr", "hdr", "sldImg":
		return true
	}
	return false
}

func slideLayers(shapes []shapeText) (title, body string) {
	var parts []string
	titled := false
	for _, s := range shapes {
		if s.text == "" || isChrome(s.placeholder) {
			continue
		}
		if !titled && isTitle(s.placeholder) {
			title, titled = s.text, true
			continue
		}
		parts = append(parts, s.text)
	}
	return title, strings.Join(parts, "\n")
}

func notesLayer(shapes []shapeText) string {
	var parts []string
	for _, s := range shapes {
		if s.placeholder == "body" && s.text != "" {
			parts = append(parts, s.text)
		}
	}
	return strings.Join(parts, "\n")
}

func isDrawing(n xml.Name, local string) bool {
	return n.Local == local && (n.Space == nsDrawing || n.Space == nsDrawingStrict)
}

func isPresentation(n xml.Name, local string) bool {
	return n.Local == local && (n.Space == nsPresent || n.Space == nsPresentStrict)
}

func isShape(n xml.Name) bool {
	return isPresentation(n, "sp") || isPresentation(n, "graphicFrame")
}

// scanShapes streams a slide or notes part and collects the paragraphs of
// every shape in document order. Paragraphs are joined by "\n"; line breaks
// inside a paragraph become "\n" too. Markup-compatibility fallbacks are
// skipped so alternate content is not read twice.
func scanShapes(data []byte) (hidden bool, out []shapeText, err error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var (
		cur    *shapeText
		paras  []string
		para   strings.Builder
		depth  int
		inText bool
		root   = true
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return hidden, nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if root {
				root = false
				for _, at := range t.Attr {
					if at.Name.Local == "show" && (at.Value == "0" || at.Value == "false") {
						hidden = true
					}
				}
				continue
			}
			if t.Name.Space == nsCompat && t.Name.Local == "Fallback" {
				if err := dec.Skip(); err != nil {
					return hidden, nil, err
				}
				continue
			}
			if cur == nil {
				if isShape(t.Name) {
					cur, paras, depth = &shapeText{}, nil, 1
				}
				continue
			}
			depth++
			switch {
			case isPresentation(t.Name, "ph"):
				cur.placeholder = "obj"
				for _, at := range t.Attr {
					if at.Name.Local == "type" {
						cur.placeholder = at.Value
					}
				}
			case isDrawing(t.Name, "p"):
				para.Reset()
			case isDrawing(t.Name, "t"):
				inText = true
			case isDrawing(t.Name, "br"):
				para.WriteByte('\n')
			}
		case xml.EndElement:
			if cur == nil {
				continue
			}
			depth--
			if depth == 0 {
				cur.text = strings.Join(paras, "\n")
				out = append(out, *cur)
				cur = nil
				continue
			}
			switch {
			case isDrawing(t.Name, "t"):
				inText = false
			case isDrawing(t.Name, "p"):
				if s := strings.TrimSpace(para.String()); s != "" {
					paras = append(paras, s)
				}
				para.Reset()
			}
		case xml.CharData:
			if cur != nil && inText {
				para.Write(t)
			}
		}
	}
	if root {
		return false, nil, errors.New("empty part")
	}
	return hidden, out, nil
}
