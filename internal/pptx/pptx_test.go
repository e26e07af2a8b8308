package pptx

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/churryboy/ppt/internal/apperr"
	"github.com/churryboy/ppt/internal/testutil"
)

func TestValidate(t *testing.T) {
	deck := testutil.BuildDeck(testutil.SlideSpec{Title: "x"})
	cases := []struct {
		name string
		data []byte
		ok   bool
	}{
		{"deck.pptx", deck, true},
		{"DECK.PPTX", deck, true},
		{"deck.ppt", deck, false},
		{"deck.pdf", deck, false},
		{"deck", deck, false},
		{"deck.pptx", []byte("%PDF-1.7"), false},
		{"deck.pptx", nil, false},
	}
	for _, c := range cases {
		err := Validate(c.name, c.data)
		if c.ok && err != nil {
			t.Errorf("Validate(%q) = %v, want nil", c.name, err)
		}
		if !c.ok && !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("Validate(%q) = %v, want validation error", c.name, err)
		}
	}
}

func TestExtract_Layers(t *testing.T) {
	data := testutil.BuildDeck(
		testutil.SlideSpec{Title: "Welcome", Body: []string{"Agenda"}},
		testutil.SlideSpec{
			Title: "Introduction to AI",
			Body:  []string{"First point\nSecond point", "Side note"},
			Notes: "Speak slowly",
		},
		testutil.SlideSpec{Body: []string{"No title here"}, Table: [][]string{{"Q1", "Q2"}, {"10", "20"}}},
	)
	doc, err := Extract(data)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if doc.SlideCount != 3 || len(doc.Slides) != 3 {
		t.Fatalf("slides = %d/%d, want 3", len(doc.Slides), doc.SlideCount)
	}

	s2 := doc.Slides[1]
	if s2.Number != 2 || s2.Title != "Introduction to AI" {
		t.Errorf("slide 2 = %+v", s2)
	}
	if s2.Body != "First point\nSecond point\nSide note" {
		t.Errorf("body = %q", s2.Body)
	}
	if s2.Notes != "Speak slowly" {
		t.Errorf("notes = %q (slide number placeholder must be ignored)", s2.Notes)
	}

	s3 := doc.Slides[2]
	if s3.Title != "" {
		t.Errorf("untitled slide title = %q", s3.Title)
	}
	if s3.Body != "No title here\nQ1\nQ2\n10\n20" {
		t.Errorf("table body = %q", s3.Body)
	}
	if doc.Slides[0].Notes != "" {
		t.Errorf("slide 1 notes = %q", doc.Slides[0].Notes)
	}
}

const nsDecl = `xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main" xmlns:mc="http://schemas.openxmlformats.org/markup-compatibility/2006"`

func TestExtract_LineBreaksAndFallback(t *testing.T) {
	raw := `<p:sld ` + nsDecl + `><p:cSld><p:spTree>` +
		`<p:sp><p:nvSpPr><p:nvPr><p:ph type="ctrTitle"/></p:nvPr></p:nvSpPr><p:txBody><a:p><a:r><a:t>Line one</a:t></a:r><a:br/><a:r><a:t>line two</a:t></a:r></a:p></p:txBody></p:sp>` +
		`<mc:AlternateContent><mc:Choice Requires="x"><p:sp><p:txBody><a:p><a:r><a:t>chosen</a:t></a:r></a:p></p:txBody></p:sp></mc:Choice>` +
		`<mc:Fallback><p:sp><p:txBody><a:p><a:r><a:t>chosen</a:t></a:r></a:p></p:txBody></p:sp></mc:Fallback></mc:AlternateContent>` +
		`</p:spTree></p:cSld></p:sld>`
	doc, err := Extract(testutil.BuildDeck(testutil.SlideSpec{RawXML: raw}))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	s := doc.Slides[0]
	if s.Title != "Line one\nline two" {
		t.Errorf("title = %q", s.Title)
	}
	if s.Body != "chosen" {
		t.Errorf("body = %q, fallback content must not be read twice", s.Body)
	}
}

func TestExtract_HiddenSlides(t *testing.T) {
	doc, err := Extract(testutil.BuildDeck(
		testutil.SlideSpec{Title: "A"},
		testutil.SlideSpec{Title: "B", Hidden: true},
		testutil.SlideSpec{Title: "C"},
	))
	if err != nil {
		t.Fatal(err)
	}
	if !doc.Slides[1].Hidden || doc.Slides[0].Hidden {
		t.Errorf("hidden flags wrong: %+v", doc.Slides)
	}
	got := doc.VisibleNumbers()
	if len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Errorf("VisibleNumbers = %v", got)
	}
}

func TestExtract_MalformedSlideIsolated(t *testing.T) {
	doc, err := Extract(testutil.BuildDeck(
		testutil.SlideSpec{Title: "Good one"},
		testutil.SlideSpec{RawXML: `<p:sld ` + nsDecl + `><p:cSld><a:t>broken`},
		testutil.SlideSpec{Title: "Good three"},
	))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(doc.Slides) != 3 {
		t.Fatalf("slides = %d", len(doc.Slides))
	}
	bad := doc.Slides[1]
	if !bad.Failed || bad.Title != "" || bad.Body != "" || bad.Notes != "" {
		t.Errorf("malformed slide = %+v", bad)
	}
	if doc.Slides[2].Title != "Good three" || doc.Slides[2].Failed {
		t.Errorf("slide 3 = %+v", doc.Slides[2])
	}
}

func TestExtract_MissingPartStops(t *testing.T) {
	doc, err := Extract(testutil.BuildDeck(
		testutil.SlideSpec{Title: "One"},
		testutil.SlideSpec{Title: "Two"},
		testutil.SlideSpec{Title: "Three", Missing: true},
		testutil.SlideSpec{Title: "Four"},
	))
	var se *SlideError
	if !errors.As(err, &se) || se.Number != 3 {
		t.Fatalf("err = %v, want SlideError for slide 3", err)
	}
	if !errors.Is(err, ErrCorruptInput) {
		t.Errorf("err should wrap ErrCorruptInput")
	}
	if doc == nil || len(doc.Slides) != 2 || doc.SlideCount != 4 {
		t.Fatalf("partial doc = %+v", doc)
	}
	if doc.Slides[1].Title != "Two" {
		t.Errorf("slide 2 title = %q", doc.Slides[1].Title)
	}
}

func TestExtract_NotAnArchive(t *testing.T) {
	_, err := Extract([]byte("PK\x03\x04 truncated"))
	if !errors.Is(err, ErrCorruptInput) {
		t.Errorf("err = %v, want ErrCorruptInput", err)
	}
}

func readParts(t *testing.T, data []byte) ([]string, map[string][]byte) {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	parts := make(map[string][]byte)
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		b, _ := io.ReadAll(rc)
		rc.Close()
		names = append(names, f.Name)
		parts[f.Name] = b
	}
	return names, parts
}

func TestRedact_RemovesAllText(t *testing.T) {
	src := testutil.BuildDeck(
		testutil.SlideSpec{
			Title: "CONFIDENTIAL-42",
			Body:  []string{"secret body"},
			Table: [][]string{{"secret cell"}},
			Notes: "secret notes",
		},
	)
	orig := append([]byte(nil), src...)

	out, err := Redact(src)
	if err != nil {
		t.Fatalf("Redact: %v", err)
	}
	if !bytes.Equal(src, orig) {
		t.Fatal("input was modified")
	}

	srcNames, srcParts := readParts(t, src)
	names, parts := readParts(t, out)
	if strings.Join(names, ",") != strings.Join(srcNames, ",") {
		t.Errorf("entry order changed: %v vs %v", names, srcNames)
	}
	for name, body := range parts {
		for _, secret := range []string{"CONFIDENTIAL-42", "secret"} {
			if bytes.Contains(body, []byte(secret)) {
				t.Errorf("%s still contains %q", name, secret)
			}
		}
	}
	if !bytes.Equal(parts["ppt/media/image1.png"], srcParts["ppt/media/image1.png"]) {
		t.Error("image bytes changed")
	}
	if !bytes.Contains(parts["ppt/slides/slide1.xml"], []byte(`<p:ph type="title"/>`)) {
		t.Error("shape structure lost")
	}

	doc, err := Extract(out)
	if err != nil {
		t.Fatalf("Extract redacted: %v", err)
	}
	s := doc.Slides[0]
	if s.Title != "" || s.Body != "" || s.Notes != "" {
		t.Errorf("redacted layers = %+v", s)
	}

	// Extraction of the original is unaffected.
	doc, _ = Extract(src)
	if doc.Slides[0].Title != "CONFIDENTIAL-42" {
		t.Errorf("original title = %q", doc.Slides[0].Title)
	}
}

func TestStripText(t *testing.T) {
	cases := []struct {
		name, in, want string
	}{
		{
			"plain run",
			`<x xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"><a:t>hi</a:t></x>`,
			`<x xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"><a:t></a:t></x>`,
		},
		{
			"attributes kept, self-closing untouched",
			`<x xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"><a:t/><a:t xml:space="preserve"/><a:t xml:space="preserve"> a b </a:t></x>`,
			`<x xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"><a:t/><a:t xml:space="preserve"/><a:t xml:space="preserve"></a:t></x>`,
		},
		{
			"longer names untouched",
			`<x xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"><a:tbl><a:tc><a:t>c</a:t></a:tc></a:tbl></x>`,
			`<x xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"><a:tbl><a:tc><a:t></a:t></a:tc></a:tbl></x>`,
		},
		{
			"other prefix",
			`<x xmlns:d="http://schemas.openxmlformats.org/drawingml/2006/main"><d:t>z</d:t><a:t>kept</a:t></x>`,
			`<x xmlns:d="http://schemas.openxmlformats.org/drawingml/2006/main"><d:t></d:t><a:t>kept</a:t></x>`,
		},
		{
			"chart labels",
			`<c:chartSpace xmlns:c="http://schemas.openxmlformats.org/drawingml/2006/chart"><c:strCache><c:pt idx="0"><c:v>Revenue</c:v></c:pt></c:strCache><c:numCache><c:pt idx="0"><c:v>42</c:v></c:pt></c:numCache></c:chartSpace>`,
			`<c:chartSpace xmlns:c="http://schemas.openxmlformats.org/drawingml/2006/chart"><c:strCache><c:pt idx="0"><c:v></c:v></c:pt></c:strCache><c:numCache><c:pt idx="0"><c:v>42</c:v></c:pt></c:numCache></c:chartSpace>`,
		},
		{
			"chart series name literal",
			`<c:chartSpace xmlns:c="http://schemas.openxmlformats.org/drawingml/2006/chart"><c:ser><c:tx><c:v>Q3 bookings</c:v></c:tx></c:ser></c:chartSpace>`,
			`<c:chartSpace xmlns:c="http://schemas.openxmlformats.org/drawingml/2006/chart"><c:ser><c:tx><c:v></c:v></c:tx></c:ser></c:chartSpace>`,
		},
		{
			"chart string and numeric literals",
			`<c:cat xmlns:c="http://schemas.openxmlformats.org/drawingml/2006/chart"><c:strLit><c:pt idx="0"><c:v>North</c:v></c:pt></c:strLit><c:numLit><c:pt idx="0"><c:v>7</c:v></c:pt></c:numLit></c:cat>`,
			`<c:cat xmlns:c="http://schemas.openxmlformats.org/drawingml/2006/chart"><c:strLit><c:pt idx="0"><c:v></c:v></c:pt></c:strLit><c:numLit><c:pt idx="0"><c:v>7</c:v></c:pt></c:numLit></c:cat>`,
		},
		{
			"chartex labels",
			`<cx:chartSpace xmlns:cx="http://schemas.microsoft.com/office/drawing/2014/chartex"><cx:strDim type="cat"><cx:lvl ptCount="1"><cx:pt idx="0">West</cx:pt></cx:lvl></cx:strDim><cx:numDim type="val"><cx:lvl ptCount="1"><cx:pt idx="0">12</cx:pt></cx:lvl></cx:numDim><cx:tx><cx:txData><cx:v>Margin</cx:v></cx:txData></cx:tx></cx:chartSpace>`,
			`<cx:chartSpace xmlns:cx="http://schemas.microsoft.com/office/drawing/2014/chartex"><cx:strDim type="cat"><cx:lvl ptCount="1"><cx:pt idx="0"></cx:pt></cx:lvl></cx:strDim><cx:numDim type="val"><cx:lvl ptCount="1"><cx:pt idx="0">12</cx:pt></cx:lvl></cx:numDim><cx:tx><cx:txData><cx:v></cx:v></cx:txData></cx:tx></cx:chartSpace>`,
		},
		{
			"single-quoted namespace",
			`<x xmlns:a='http://schemas.openxmlformats.org/drawingml/2006/main'><a:t>hidden</a:t></x>`,
			`<x xmlns:a='http://schemas.openxmlformats.org/drawingml/2006/main'><a:t></a:t></x>`,
		},
		{
			"default namespace and cdata",
			`<t xmlns="http://schemas.openxmlformats.org/drawingml/2006/main">a<![CDATA[b]]>&amp;c</t>`,
			`<t xmlns="http://schemas.openxmlformats.org/drawingml/2006/main"></t>`,
		},
		{
			"no drawing namespace",
			`<Types><t>x</t></Types>`,
			`<Types><t>x</t></Types>`,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := StripText([]byte(c.in))
			if err != nil {
				t.Fatalf("StripText: %v", err)
			}
			if string(got) != c.want {
				t.Errorf("got  %s\nwant %s", got, c.want)
			}
		})
	}
}

func TestStripText_Malformed(t *testing.T) {
	if _, err := StripText([]byte(`<x xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"><a:t>open`)); err == nil {
		t.Error("expected error for truncated part")
	}
}

func TestRedact_MalformedPartFails(t *testing.T) {
	src := testutil.BuildDeck(
		testutil.SlideSpec{Title: "fine"},
		testutil.SlideSpec{RawXML: `<p:sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"><a:t>leak`},
	)
	if _, err := Redact(src); !errors.Is(err, ErrCorruptInput) {
		t.Errorf("err = %v, want ErrCorruptInput", err)
	}
}

func TestRedact_CorruptInput(t *testing.T) {
	if _, err := Redact([]byte("not a zip")); !errors.Is(err, ErrCorruptInput) {
		t.Errorf("err = %v", err)
	}
}
