package pipeline

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"server/internal/domain"
)

// BuildRenderInstruction produces the prompt sent to the image-edit model.
// The character-by-character checklist keeps the model honest about the exact
// overlay text; retry attempts additionally carry the previously measured
// error rate.
func BuildRenderInstruction(item *domain.WorkItem, priorAccuracy float64) string {
	titleLen := utf8.RuneCountInString(item.Title)
	subtitleLen := utf8.RuneCountInString(item.Subtitle)

	var b strings.Builder
	b.WriteString("You are a professional graphic designer. Your task is to add text overlays to a product image with PERFECT accuracy.\n\n")
	b.WriteString("CRITICAL TEXT ACCURACY REQUIREMENTS:\n")
	if item.RetryCount > 0 {
		fmt.Fprintf(&b, "WARNING: RETRY %d/3 - Previous attempt had %.0f%% error rate!\n", item.RetryCount+1, 100-priorAccuracy)
	}
	b.WriteString("\nEXACT TEXT TO RENDER:\n")
	fmt.Fprintf(&b, "Title (large, bold, top): %q\n", item.Title)
	fmt.Fprintf(&b, "Character count: %d\n", titleLen)
	fmt.Fprintf(&b, "Character-by-character: %s\n\n", spellOut(item.Title))
	fmt.Fprintf(&b, "Subtitle (smaller, below title): %q\n", item.Subtitle)
	fmt.Fprintf(&b, "Character count: %d\n", subtitleLen)
	if subtitleLen > 100 {
		b.WriteString("IMPORTANT: Full subtitle is long. Fit as much as possible while maintaining readability.\n")
	}
	b.WriteString("\nDESIGN INSTRUCTIONS:\n")
	b.WriteString(item.RenderPrompt)
	b.WriteString("\n\nVERIFICATION CHECKLIST:\n")
	fmt.Fprintf(&b, "- Title has exactly %d characters\n", titleLen)
	fmt.Fprintf(&b, "- Subtitle has exactly %d characters\n", subtitleLen)
	b.WriteString("- Every letter, number, space, and punctuation mark is correct\n")
	b.WriteString("- Text is legible and high-contrast against background\n\n")
	b.WriteString("Return the edited image with ZERO text errors.")
	return b.String()
}

// BuildOCRInstruction produces the extraction prompt for the OCR model.
func BuildOCRInstruction(title, subtitle string) string {
	return fmt.Sprintf(
		"Extract ALL visible text from this image.\n\nExpected to find:\n- Title: %q\n- Subtitle: %q\n\nReturn the extracted text exactly as you see it, including all words, numbers, and punctuation. Preserve line breaks and formatting.",
		title, subtitle,
	)
}

func spellOut(s string) string {
	runes := []rune(s)
	parts := make([]string, len(runes))
	for i, r := range runes {
		parts[i] = string(r)
	}
	return strings.Join(parts, " • ")
}
