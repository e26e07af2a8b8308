package testutil

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"strings"
)

// SlideSpec describes one slide of a generated test deck.
type SlideSpec struct {
	Title  string
	Body   []string   // one text box per entry; "\n" splits paragraphs
	Table  [][]string // optional table rows
	Notes  string
	Hidden bool

	// RawXML replaces the generated slide part verbatim.
	RawXML string
	// Missing omits the slide part from the archive while keeping the reference.
	Missing bool
}

const (
	nsA = "http://schemas.openxmlformats.org/drawingml/2006/main"
	nsP = "http://schemas.openxmlformats.org/presentationml/2006/main"
	nsR = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"

	relSlide      = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/slide"
	relNotesSlide = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/notesSlide"
	relImage      = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"
)

// PNG is a tiny opaque payload stored as ppt/media/image1.png in every deck.
var PNG = []byte("\x89PNG\r\n\x1a\nfake-image-bytes")

// BuildDeck returns the bytes of a minimal but well-formed pptx archive.
func BuildDeck(slides ...SlideSpec) []byte {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	put := func(name, body string) {
		w, _ := zw.Create(name)
		_, _ = w.Write([]byte(body))
	}

	put("[Content_Types].xml", contentTypes(slides))
	put("_rels/.rels", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"><Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="ppt/presentation.xml"/></Relationships>`)

	var ids, rels strings.Builder
	for i := range slides {
		n := i + 1
		fmt.Fprintf(&ids, `<p:sldId id="%d" r:id="rId%d"/>`, 255+n, n+1)
		fmt.Fprintf(&rels, `<Relationship Id="rId%d" Type="%s" Target="slides/slide%d.xml"/>`, n+1, relSlide, n)
	}
	put("ppt/presentation.xml", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<p:presentation xmlns:a="`+nsA+`" xmlns:r="`+nsR+`" xmlns:p="`+nsP+`"><p:sldIdLst>`+ids.String()+`</p:sldIdLst><p:sldSz cx="9144000" cy="6858000"/></p:presentation>`)
	put("ppt/_rels/presentation.xml.rels", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`+rels.String()+`</Relationships>`)

	w, _ := zw.Create("ppt/media/image1.png")
	_, _ = w.Write(PNG)

	for i, s := range slides {
		n := i + 1
		slideRels := fmt.Sprintf(`<Relationship Id="rId2" Type="%s" Target="../media/image1.png"/>`, relImage)
		if s.Notes != "" {
			slideRels += fmt.Sprintf(`<Relationship Id="rId3" Type="%s" Target="../notesSlides/notesSlide%d.xml"/>`, relNotesSlide, n)
			put(fmt.Sprintf("ppt/notesSlides/notesSlide%d.xml", n), notesXML(s.Notes))
		}
		put(fmt.Sprintf("ppt/slides/_rels/slide%d.xml.rels", n), `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`+slideRels+`</Relationships>`)
		if s.Missing {
			continue
		}
		body := s.RawXML
		if body == "" {
			body = slideXML(s)
		}
		put(fmt.Sprintf("ppt/slides/slide%d.xml", n), body)
	}

	_ = zw.Close()
	return buf.Bytes()
}

func contentTypes(slides []SlideSpec) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"><Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/><Default Extension="xml" ContentType="application/xml"/><Default Extension="png" ContentType="image/png"/><Override PartName="/ppt/presentation.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.presentation.main+xml"/>`)
	for i := range slides {
		fmt.Fprintf(&sb, `<Override PartName="/ppt/slides/slide%d.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.slide+xml"/>`, i+1)
	}
	sb.WriteString(`</Types>`)
	return sb.String()
}

func paragraphs(text string) string {
	var sb strings.Builder
	for _, line := range strings.Split(text, "\n") {
		fmt.Fprintf(&sb, `<a:p><a:r><a:rPr lang="en-US"/><a:t>%s</a:t></a:r></a:p>`, html.EscapeString(line))
	}
	return sb.String()
}

func shape(id int, phType, text string) string {
	ph := `<p:nvPr/>`
	if phType != "" {
		ph = `<p:nvPr><p:ph type="` + phType + `"/></p:nvPr>`
	}
	return fmt.Sprintf(`<p:sp><p:nvSpPr><p:cNvPr id="%d" name="Shape %d"/><p:cNvSpPr/>%s</p:nvSpPr><p:spPr/><p:txBody><a:bodyPr/><a:lstStyle/>%s</p:txBody></p:sp>`, id, id, ph, paragraphs(text))
}

func slideXML(s SlideSpec) string {
	var sb strings.Builder
	show := ""
	if s.Hidden {
		show = ` show="0"`
	}
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<p:sld xmlns:a="` + nsA + `" xmlns:r="` + nsR + `" xmlns:p="` + nsP + `"` + show + `><p:cSld><p:spTree><p:nvGrpSpPr><p:cNvPr id="1" name=""/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr><p:grpSpPr/>`)
	id := 2
	if s.Title != "" {
		sb.WriteString(shape(id, "title", s.Title))
		id++
	}
	for _, b := range s.Body {
		sb.WriteString(shape(id, "", b))
		id++
	}
	if len(s.Table) > 0 {
		fmt.Fprintf(&sb, `<p:graphicFrame><p:nvGraphicFramePr><p:cNvPr id="%d" name="Table"/><p:cNvGraphicFramePr/><p:nvPr/></p:nvGraphicFramePr><p:xfrm/><a:graphic><a:graphicData uri="http://schemas.openxmlformats.org/drawingml/2006/table"><a:tbl>`, id)
		for _, row := range s.Table {
			sb.WriteString(`<a:tr h="370840">`)
			for _, cell := range row {
				fmt.Fprintf(&sb, `<a:tc><a:txBody><a:bodyPr/>%s</a:txBody><a:tcPr/></a:tc>`, paragraphs(cell))
			}
			sb.WriteString(`</a:tr>`)
		}
		sb.WriteString(`</a:tbl></a:graphicData></a:graphic></p:graphicFrame>`)
		id++
	}
	fmt.Fprintf(&sb, `<p:pic><p:nvPicPr><p:cNvPr id="%d" name="Picture"/><p:cNvPicPr/><p:nvPr/></p:nvPicPr><p:blipFill><a:blip r:embed="rId2"/></p:blipFill><p:spPr/></p:pic>`, id)
	sb.WriteString(`</p:spTree></p:cSld></p:sld>`)
	return sb.String()
}

func notesXML(notes string) string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<p:notes xmlns:a="` + nsA + `" xmlns:r="` + nsR + `" xmlns:p="` + nsP + `"><p:cSld><p:spTree><p:nvGrpSpPr><p:cNvPr id="1" name=""/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr><p:grpSpPr/>` +
		shape(2, "sldImg", "") + shape(3, "body", notes) + shape(4, "sldNum", "7") +
		`</p:spTree></p:cSld></p:notes>`
}
