package brief

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"server/internal/domain"
	"server/internal/providers/gateway"
)

const (
	// pdfTruncateAt keeps prompts under the model's context limit; the head
	// and tail of an oversized brief carry the specifications, the middle is
	// usually boilerplate.
	pdfTruncateAt    = 500000
	pdfHeadChars     = 400000
	pdfTailChars     = 100000
	docxTruncateAt   = 100000
	parseTemperature = 0.3
)

var platformRequirements = map[string]string{
	"amazon":    "Amazon requirements: Main image must be on pure white background, text must be clear and readable at thumbnail size, ensure high contrast. Product should occupy 85% of frame.",
	"ebay":      "eBay requirements: Clean background, prominent product display, text should be bold and eye-catching. Include key product features in visible text.",
	"instagram": "Instagram requirements: Square or 4:5 aspect ratio friendly, vibrant colors, text should be mobile-friendly and readable on small screens. Aesthetic and lifestyle-oriented presentation.",
}

// Completer abstracts the text-completion call used for spec extraction.
type Completer interface {
	CompleteText(ctx context.Context, messages []gateway.Message, temperature float64) (string, error)
}

// Parser turns extracted brief text into ordered specification records via
// the gateway's parser model.
type Parser struct {
	completer Completer
}

func NewParser(completer Completer) *Parser {
	return &Parser{completer: completer}
}

// ParsePDFText extracts specification records from PDF brief text.
func (p *Parser) ParsePDFText(ctx context.Context, text string, brand domain.BrandSettings) ([]domain.SpecificationRecord, error) {
	if len(text) > pdfTruncateAt {
		text = text[:pdfHeadChars] + "\n\n[...middle content truncated...]\n\n" + text[len(text)-pdfTailChars:]
	}
	prompt := pdfPrompt(brand)
	content, err := p.completer.CompleteText(ctx, []gateway.Message{
		{Role: "user", Content: fmt.Sprintf("%s\n\nPDF Content:\n%s", prompt, text)},
	}, parseTemperature)
	if err != nil {
		return nil, fmt.Errorf("brief: parse pdf: %w", err)
	}
	return decodeSpecs(content)
}

// ParseDOCXText extracts specification records from DOCX brief text.
// imageCount is the number of embedded images found in the document; the
// model is asked to produce one specification per image.
func (p *Parser) ParseDOCXText(ctx context.Context, text string, imageCount int, brand domain.BrandSettings) ([]domain.SpecificationRecord, error) {
	if len(text) > docxTruncateAt {
		text = text[:docxTruncateAt] + "\n\n[Text truncated due to length...]"
	}
	content, err := p.completer.CompleteText(ctx, []gateway.Message{
		{Role: "system", Content: docxPrompt(brand, imageCount)},
		{Role: "user", Content: text},
	}, 0)
	if err != nil {
		return nil, fmt.Errorf("brief: parse docx: %w", err)
	}
	return decodeSpecs(content)
}

// decodeSpecs pulls the first JSON array out of the model response. Models
// occasionally wrap the array in markdown fences or prose; everything outside
// the brackets is ignored.
func decodeSpecs(content string) ([]domain.SpecificationRecord, error) {
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("brief: no JSON array in model response")
	}
	var specs []domain.SpecificationRecord
	if err := json.Unmarshal([]byte(content[start:end+1]), &specs); err != nil {
		return nil, fmt.Errorf("brief: decode specifications: %w", err)
	}
	for i := range specs {
		specs[i].Title = strings.TrimSpace(specs[i].Title)
		specs[i].Subtitle = strings.TrimSpace(specs[i].Subtitle)
		specs[i].AssetName = strings.TrimSpace(specs[i].AssetName)
		if strings.TrimSpace(specs[i].Variant) == "" {
			specs[i].Variant = "DEFAULT"
		}
	}
	return specs, nil
}

func pdfPrompt(brand domain.BrandSettings) string {
	gradient := defaulted(brand.GradientColor, "#000000")
	textColor := defaulted(brand.TextColor, "white")
	font := defaulted(brand.Font, "Montserrat")

	var custom string
	if brand.CustomPrompt != "" {
		custom = " " + brand.CustomPrompt
	}
	var platform string
	if req, ok := platformRequirements[brand.Platform]; ok {
		platform = " " + req
	}

	return fmt.Sprintf(`# Role
You are an AI creative assistant specialized in extracting marketing image specifications from briefs.

Your task is to read the provided PDF brief and extract each image specification into structured JSON format.

## Instructions

1. Extract ALL images mentioned in the brief (IMAGE 1, IMAGE 2, IMAGE 3, etc.)
2. IMPORTANT: Each IMAGE section may have MULTIPLE variants (METAL DARK, WOOD DARK, etc.). Create a SEPARATE JSON entry for EACH variant.
3. For each image variant, extract:
   - image_number: The IMAGE number (1, 2, 3, etc.) - this is the same for all variants of that image
   - title: The HEADLINE text (convert to uppercase if not already)
   - subtitle: The COPY text (keep as written, preserve full text)
   - asset: The ASSET filename specified for that variant
   - variant: The variant name (e.g. "METAL DARK" or "WOOD DARK"), or "DEFAULT" if not specified

4. For the ai_prompt field, generate a plain text instruction (no markdown, no line breaks) using this template:

"Add a dark gradient overlay to the top portion of this image, fading from %s at the top to transparent around the middle. The gradient should be subtle and natural looking. Overlay the following text at the top center of the image: {title} in large bold %s text (%s Extra Bold font, approximately 48-60px, all caps), and below it {subtitle} in smaller regular %s text (%s Regular font, approximately 18-22px). Add a subtle shadow behind the text for readability. Keep the product and background unchanged.%s%s Output as a high-resolution image suitable for web marketing."

Replace {title} and {subtitle} with the actual extracted values.

5. Return ONLY a valid JSON array, no additional text or markdown formatting.`,
		gradient, textColor, font, textColor, font, custom, platform)
}

func docxPrompt(brand domain.BrandSettings, imageCount int) string {
	fontInstruction := "Use a clean, modern sans-serif font."
	if brand.Font != "" {
		fontInstruction = fmt.Sprintf("Use %s font family.", brand.Font)
	}
	colorInstructions := "Use high-contrast, professional colors"
	if brand.PrimaryColor != "" || brand.TextColor != "" {
		colorInstructions = fmt.Sprintf("Primary color: %s, Text color: %s",
			defaulted(brand.PrimaryColor, "#000000"), defaulted(brand.TextColor, "#FFFFFF"))
	}
	platformInstruction := "Optimize for web marketing."
	if brand.Platform != "" {
		platformInstruction = fmt.Sprintf("Optimize for %s platform.", brand.Platform)
	}
	var custom string
	if brand.CustomPrompt != "" {
		custom = fmt.Sprintf("\n- Custom: %s", brand.CustomPrompt)
	}

	return fmt.Sprintf(`You are a marketing brief analyzer. Extract image specifications from this DOCX document.

BRAND GUIDELINES:
- %s
- %s
- %s%s

For each image specification, return a JSON object with:
- image_number: sequential number (1, 2, 3, etc.)
- variant: product variant (e.g., "METAL DARK", "WOOD LIGHT", or "DEFAULT" if not specified)
- title: main headline text (uppercase)
- subtitle: secondary text (preserve full text)
- asset: asset/product name or filename reference
- ai_prompt: detailed instructions for AI image generation

IMPORTANT: If the document references %d images, create %d specifications.

Return ONLY a valid JSON array, no markdown formatting.`,
		fontInstruction, colorInstructions, platformInstruction, custom, imageCount, imageCount)
}

func defaulted(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
