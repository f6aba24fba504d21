package brief

import (
	"errors"
	"os"
	"path"
	"regexp"
	"strings"

	"server/internal/domain"
	"server/pkg/zip"
)

// minTextLength rejects briefs whose document body carries no usable copy.
const minTextLength = 50

var (
	textRunPattern  = regexp.MustCompile(`<w:t[^>]*>([^<]+)</w:t>`)
	blipPattern     = regexp.MustCompile(`<a:blip[^>]+r:embed="([^"]+)"`)
	relPattern      = regexp.MustCompile(`<Relationship[^>]+>`)
	relIDPattern    = regexp.MustCompile(`Id="([^"]+)"`)
	relTargetPatt   = regexp.MustCompile(`Target="([^"]+)"`)
	mediaExtPattern = regexp.MustCompile(`(?i)\.(png|jpe?g|gif|bmp)$`)
	wsPattern       = regexp.MustCompile(`\s+`)
)

// EmbeddedImage is an image found inside the DOCX media folder.
// DocumentOrder is the 1-based position of the image's first reference in the
// document body; images never referenced keep their extraction order.
type EmbeddedImage struct {
	Filename      string
	Data          []byte
	DocumentOrder int
}

// DOCXContent is the usable payload of a DOCX brief.
type DOCXContent struct {
	Text   string
	Images []EmbeddedImage
}

// ExtractDOCX reads the document text and the embedded media out of a DOCX
// file. A DOCX is a zip container; the text lives in word/document.xml and
// images under word/media/, linked through the relationships part.
func ExtractDOCX(data []byte) (*DOCXContent, error) {
	archive, err := zip.Open(data)
	if err != nil {
		return nil, domain.ErrUnsupportedFormat
	}

	docXML, err := archive.File("word/document.xml")
	if err != nil {
		return nil, domain.ErrUnsupportedFormat
	}
	text := documentText(string(docXML))
	if len(text) < minTextLength {
		return nil, domain.ErrEmptyDocument
	}

	orderByRelID := referenceOrder(string(docXML))
	relIDByFile := map[string]string{}
	if relsXML, err := archive.File("word/_rels/document.xml.rels"); err == nil {
		relIDByFile = mediaRelationships(string(relsXML))
	}

	var images []EmbeddedImage
	for _, name := range archive.Names() {
		if !strings.HasPrefix(name, "word/media/") || !mediaExtPattern.MatchString(name) {
			continue
		}
		contents, err := archive.File(name)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, err
		}
		filename := path.Base(name)
		order := len(images) + 1
		if relID, ok := relIDByFile[filename]; ok {
			if pos, ok := orderByRelID[relID]; ok {
				order = pos
			}
		}
		images = append(images, EmbeddedImage{
			Filename:      filename,
			Data:          contents,
			DocumentOrder: order,
		})
	}

	return &DOCXContent{Text: text, Images: images}, nil
}

func documentText(docXML string) string {
	var parts []string
	for _, m := range textRunPattern.FindAllStringSubmatch(docXML, -1) {
		parts = append(parts, m[1])
	}
	return strings.TrimSpace(wsPattern.ReplaceAllString(strings.Join(parts, " "), " "))
}

// referenceOrder maps relationship IDs to the 1-based order of their first
// drawing reference in the document body.
func referenceOrder(docXML string) map[string]int {
	order := make(map[string]int)
	for i, m := range blipPattern.FindAllStringSubmatch(docXML, -1) {
		if _, seen := order[m[1]]; !seen {
			order[m[1]] = i + 1
		}
	}
	return order
}

// mediaRelationships maps media filenames to their relationship IDs.
func mediaRelationships(relsXML string) map[string]string {
	byFile := make(map[string]string)
	for _, rel := range relPattern.FindAllString(relsXML, -1) {
		id := relIDPattern.FindStringSubmatch(rel)
		target := relTargetPatt.FindStringSubmatch(rel)
		if id == nil || target == nil || !strings.Contains(target[1], "media/") {
			continue
		}
		byFile[path.Base(target[1])] = id[1]
	}
	return byFile
}
