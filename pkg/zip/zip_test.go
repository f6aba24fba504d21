package zip

import (
	"bytes"
	"errors"
	"os"
	"testing"
)

func TestArchiveRoundTrip(t *testing.T) {
	data := ArchiveAssets([]Asset{
		{Filename: "word/document.xml", Data: []byte("<w:document/>")},
		{Filename: "word/media/image1.png", Data: []byte{0x89, 0x50, 0x4e, 0x47}},
	})
	if len(data) == 0 {
		t.Fatal("empty archive")
	}

	ar, err := Open(data)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	doc, err := ar.File("word/document.xml")
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	if string(doc) != "<w:document/>" {
		t.Fatalf("unexpected contents: %q", doc)
	}
	names := ar.Names()
	if len(names) != 2 || names[1] != "word/media/image1.png" {
		t.Fatalf("unexpected names: %v", names)
	}
}

func TestFileNotExist(t *testing.T) {
	ar, err := Open(ArchiveAssets([]Asset{{Filename: "a.txt", Data: []byte("x")}}))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := ar.File("missing.txt"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected os.ErrNotExist, got %v", err)
	}
}

func TestOpenRejectsGarbage(t *testing.T) {
	if _, err := Open(bytes.Repeat([]byte{0xff}, 64)); err == nil {
		t.Fatal("expected error for non-zip data")
	}
}
