package brief

import (
	"errors"
	"strings"
	"testing"

	"server/internal/domain"
	"server/pkg/zip"
)

func buildDOCX(t *testing.T, documentXML, relsXML string, media map[string][]byte) []byte {
	t.Helper()
	assets := []zip.Asset{{Filename: "word/document.xml", Data: []byte(documentXML)}}
	if relsXML != "" {
		assets = append(assets, zip.Asset{Filename: "word/_rels/document.xml.rels", Data: []byte(relsXML)})
	}
	for name, data := range media {
		assets = append(assets, zip.Asset{Filename: name, Data: data})
	}
	return zip.ArchiveAssets(assets)
}

const sampleDocumentXML = `<w:document>
<w:p><w:r><w:t>IMAGE 1 HEADLINE: CORSAIR ONE I600 COPY: A compact PC packed with cutting-edge components.</w:t></w:r></w:p>
<w:p><w:r><w:drawing><a:blip r:embed="rId5"/></w:drawing></w:r></w:p>
<w:p><w:r><w:drawing><a:blip r:embed="rId4"/></w:drawing></w:r></w:p>
</w:document>`

const sampleRelsXML = `<Relationships>
<Relationship Id="rId4" Type="image" Target="media/image1.png"/>
<Relationship Id="rId5" Type="image" Target="media/image2.png"/>
<Relationship Id="rId6" Type="hyperlink" Target="https://example.com"/>
</Relationships>`

func TestExtractDOCX(t *testing.T) {
	data := buildDOCX(t, sampleDocumentXML, sampleRelsXML, map[string][]byte{
		"word/media/image1.png": {0x89, 0x50},
		"word/media/image2.png": {0x89, 0x51},
	})

	content, err := ExtractDOCX(data)
	if err != nil {
		t.Fatalf("ExtractDOCX: %v", err)
	}
	if !strings.Contains(content.Text, "CORSAIR ONE I600") {
		t.Fatalf("text not extracted: %q", content.Text)
	}
	if len(content.Images) != 2 {
		t.Fatalf("expected 2 images, got %d", len(content.Images))
	}
	// image2.png is referenced first in the document body (rId5), so it gets
	// document order 1 even though image1.png extracts first.
	orders := map[string]int{}
	for _, img := range content.Images {
		orders[img.Filename] = img.DocumentOrder
	}
	if orders["image2.png"] != 1 || orders["image1.png"] != 2 {
		t.Fatalf("unexpected document orders: %v", orders)
	}
}

func TestExtractDOCXUnreferencedImageKeepsExtractionOrder(t *testing.T) {
	data := buildDOCX(t, sampleDocumentXML, "", map[string][]byte{
		"word/media/image1.png": {0x89, 0x50},
	})
	content, err := ExtractDOCX(data)
	if err != nil {
		t.Fatalf("ExtractDOCX: %v", err)
	}
	if len(content.Images) != 1 || content.Images[0].DocumentOrder != 1 {
		t.Fatalf("unexpected images: %+v", content.Images)
	}
}

func TestExtractDOCXSkipsNonImageMedia(t *testing.T) {
	data := buildDOCX(t, sampleDocumentXML, "", map[string][]byte{
		"word/media/clip1.wmf":  {0x01},
		"word/media/image1.png": {0x89},
	})
	content, err := ExtractDOCX(data)
	if err != nil {
		t.Fatalf("ExtractDOCX: %v", err)
	}
	if len(content.Images) != 1 || content.Images[0].Filename != "image1.png" {
		t.Fatalf("unexpected images: %+v", content.Images)
	}
}

func TestExtractDOCXEmptyText(t *testing.T) {
	data := buildDOCX(t, `<w:document><w:p><w:r><w:t>short</w:t></w:r></w:p></w:document>`, "", nil)
	if _, err := ExtractDOCX(data); !errors.Is(err, domain.ErrEmptyDocument) {
		t.Fatalf("expected ErrEmptyDocument, got %v", err)
	}
}

func TestExtractDOCXNotAZip(t *testing.T) {
	if _, err := ExtractDOCX([]byte("plain text, not a container")); !errors.Is(err, domain.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}
