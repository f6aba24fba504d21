package domain

// SpecificationRecord is one brief-derived text/asset description for a
// single logical image variant. The brief parser produces an ordered list of
// these; they are immutable once parsed. ImageNumber is not unique across
// variants: two variants of the same image share a number.
type SpecificationRecord struct {
	ImageNumber  int    `json:"image_number"`
	Variant      string `json:"variant"`
	Title        string `json:"title"`
	Subtitle     string `json:"subtitle"`
	AssetName    string `json:"asset"`
	RenderPrompt string `json:"ai_prompt"`
}

// BrandSettings carries the visual identity applied to generated overlays and
// to the fallback prompt used for unmatched uploads.
type BrandSettings struct {
	Font           string `json:"font"`
	PrimaryColor   string `json:"primary_color"`
	SecondaryColor string `json:"secondary_color"`
	TextColor      string `json:"text_color"`
	GradientColor  string `json:"gradient_color"`
	CustomPrompt   string `json:"custom_prompt,omitempty"`
	Platform       string `json:"platform,omitempty"`
}

// UploadedAsset is an uploaded or document-extracted image awaiting spec
// matching. DocumentOrder is the 1-based position of the embedding within the
// source document; zero when the asset was uploaded directly.
type UploadedAsset struct {
	Filename      string
	URL           string
	DocumentOrder int
}
