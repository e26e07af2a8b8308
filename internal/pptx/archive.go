package pptx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// maxPartSize bounds how much of a single decompressed part is read.
const maxPartSize = 64 << 20

const (
	relTypeOfficeDocument = "/officeDocument"
	relTypeSlide          = "/slide"
	relTypeNotesSlide     = "/notesSlide"
)

var errPartMissing = errors.New("part missing")

type relationships struct {
	Rels []relationship `xml:"Relationship"`
}

type relationship struct {
	ID     string `xml:"Id,attr"`
	Type   string `xml:"Type,attr"`
	Target string `xml:"Target,attr"`
	Mode   string `xml:"TargetMode,attr"`
}

type presentation struct {
	SlideIDs []struct {
		RID string `xml:"http://schemas.openxmlformats.org/officeDocument/2006/relationships id,attr"`
	} `xml:"sldIdLst>sldId"`
}

// archive is a read-only view over the parts of an OPC package.
type archive struct {
	parts map[string]*zip.File
}

func openArchive(data []byte) (*archive, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("pptx: open archive: %v: %w", err, ErrCorruptInput)
	}
	a := &archive{parts: make(map[string]*zip.File, len(zr.File))}
	for _, f := range zr.File {
		a.parts[strings.TrimPrefix(f.Name, "/")] = f
	}
	return a, nil
}

func (a *archive) has(name string) bool {
	_, ok := a.parts[name]
	return ok
}

func (a *archive) read(name string) ([]byte, error) {
	f, ok := a.parts[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, errPartMissing)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, maxPartSize+1))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if len(data) > maxPartSize {
		return nil, fmt.Errorf("%s: part exceeds %d bytes", name, maxPartSize)
	}
	return data, nil
}

// rels returns the relationships of part. A part without a rels file has none.
func (a *archive) rels(part string) ([]relationship, error) {
	name := "_rels/.rels"
	if part != "" {
		name = path.Join(path.Dir(part), "_rels", path.Base(part)+".rels")
	}
	if !a.has(name) {
		return nil, nil
	}
	data, err := a.read(name)
	if err != nil {
		return nil, err
	}
	var r relationships
	if err := xml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return r.Rels, nil
}

// related resolves the first internal relationship of part whose type ends in suffix.
func (a *archive) related(part, suffix string) (string, bool, error) {
	rels, err := a.rels(part)
	if err != nil {
		return "", false, err
	}
	for _, r := range rels {
		if r.Mode == "External" || !strings.HasSuffix(r.Type, suffix) {
			continue
		}
		return resolveTarget(part, r.Target), true, nil
	}
	return "", false, nil
}

// mainPart locates the presentation part through the package relationships.
func (a *archive) mainPart() (string, error) {
	target, ok, err := a.related("", relTypeOfficeDocument)
	if err != nil {
		return "", err
	}
	if ok {
		return target, nil
	}
	if a.has("ppt/presentation.xml") {
		return "ppt/presentation.xml", nil
	}
	return "", fmt.Errorf("presentation part: %w", errPartMissing)
}

// slideParts returns slide part names in presentation order.
func (a *archive) slideParts() ([]string, error) {
	main, err := a.mainPart()
	if err != nil {
		return nil, err
	}
	data, err := a.read(main)
	if err != nil {
		return nil, err
	}
	var p presentation
	if err := xml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%s: %w", main, err)
	}
	rels, err := a.rels(main)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]relationship, len(rels))
	for _, r := range rels {
		byID[r.ID] = r
	}

	parts := make([]string, 0, len(p.SlideIDs))
	for _, s := range p.SlideIDs {
		r, ok := byID[s.RID]
		if !ok || !strings.HasSuffix(r.Type, relTypeSlide) {
			return nil, fmt.Errorf("%s: dangling slide relationship %q", main, s.RID)
		}
		parts = append(parts, resolveTarget(main, r.Target))
	}
	return parts, nil
}

func resolveTarget(source, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(path.Clean(target), "/")
	}
	return strings.TrimPrefix(path.Join(path.Dir(source), target), "/")
}
