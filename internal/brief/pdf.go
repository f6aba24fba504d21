// Package brief extracts text and embedded images from uploaded marketing
// briefs and turns the text into structured image specifications.
package brief

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"server/internal/domain"
)

// ExtractPDF pulls the plain text out of a PDF brief.
func ExtractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("brief: open pdf: %w", err)
	}
	content, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("brief: read pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(content); err != nil {
		return "", fmt.Errorf("brief: read pdf text: %w", err)
	}
	text := strings.TrimSpace(buf.String())
	if text == "" {
		return "", domain.ErrEmptyDocument
	}
	return text, nil
}
