// Package matching pairs uploaded image files with brief-derived
// specification records using a weighted multi-strategy score.
package matching

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"server/internal/domain"
)

// Strategy weights. The maximum attainable score is 125.
const (
	assetNameWeight     = 40
	variantWeight       = 30
	imageNumberWeight   = 30
	documentOrderWeight = 25

	// MinScore is the acceptance threshold; an asset whose best candidate
	// scores below it stays unmatched.
	MinScore = 25
)

var (
	imageExtPattern = regexp.MustCompile(`(?i)\.(jpe?g|png|webp)$`)
	digitsPattern   = regexp.MustCompile(`\d+`)
	separators      = strings.NewReplacer("_", " ", "-", " ")
)

// Match holds a winning specification and the score that selected it.
type Match struct {
	Spec  *domain.SpecificationRecord
	Score float64
}

// BestMatch scores every candidate specification against the asset and
// returns the strictly highest scorer at or above MinScore, or nil when
// nothing qualifies. Ties keep the earliest candidate. The candidate slice is
// never consumed or mutated: a specification may win for several assets,
// since variants share asset pools, and matching the same asset twice yields
// the same result.
func BestMatch(asset domain.UploadedAsset, specs []domain.SpecificationRecord) *Match {
	cleanName := cleanFilename(asset.Filename)
	best := Match{}
	for i := range specs {
		score := scoreSpec(asset, cleanName, &specs[i])
		if score > best.Score {
			best = Match{Spec: &specs[i], Score: score}
		}
	}
	if best.Spec == nil || best.Score < MinScore {
		return nil
	}
	return &best
}

func scoreSpec(asset domain.UploadedAsset, cleanName string, spec *domain.SpecificationRecord) float64 {
	var score float64

	// Asset-name word overlap: spec asset words that substring-match a
	// filename word in either direction.
	assetWords := strings.Fields(separators.Replace(strings.ToLower(spec.AssetName)))
	nameWords := strings.Fields(cleanName)
	if len(assetWords) > 0 {
		matched := 0
		for _, aw := range assetWords {
			for _, nw := range nameWords {
				if strings.Contains(nw, aw) || strings.Contains(aw, nw) {
					matched++
					break
				}
			}
		}
		score += float64(matched) / float64(len(assetWords)) * assetNameWeight
	}

	// Variant token, compared with all whitespace stripped on both sides.
	if variant := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(spec.Variant)), " ", ""); variant != "" {
		if strings.Contains(strings.ReplaceAll(cleanName, " ", ""), variant) {
			score += variantWeight
		}
	}

	// Integer runs in the raw filename against the spec image number.
	for _, raw := range digitsPattern.FindAllString(asset.Filename, -1) {
		if n, err := strconv.Atoi(raw); err == nil && n == spec.ImageNumber {
			score += imageNumberWeight
			break
		}
	}

	// Document order hint, present only for document-extracted assets.
	if asset.DocumentOrder > 0 && asset.DocumentOrder == spec.ImageNumber {
		score += documentOrderWeight
	}

	return score
}

// cleanFilename lowercases, strips the image extension, and replaces
// underscore/hyphen separators with spaces.
func cleanFilename(name string) string {
	name = imageExtPattern.ReplaceAllString(strings.ToLower(name), "")
	return separators.Replace(name)
}

// BuildWorkItem materializes the queued work item for one uploaded asset.
// Unmatched assets still become work items, carrying a sentinel title and a
// generic brand-derived prompt, so every upload is processed exactly once.
func BuildWorkItem(projectID string, imageNumber int, asset domain.UploadedAsset, match *Match, brand domain.BrandSettings) domain.WorkItem {
	item := domain.WorkItem{
		ID:               uuid.NewString(),
		ProjectID:        projectID,
		ImageNumber:      imageNumber,
		OriginalURL:      asset.URL,
		OriginalFilename: asset.Filename,
		Status:           domain.WorkItemQueued,
	}
	if match != nil {
		item.Title = match.Spec.Title
		item.Subtitle = match.Spec.Subtitle
		item.AssetName = match.Spec.AssetName
		item.Variant = match.Spec.Variant
		item.RenderPrompt = match.Spec.RenderPrompt
		return item
	}
	item.Title = fmt.Sprintf("[UNMATCHED: %s]", asset.Filename)
	item.Subtitle = "No text overlay needed"
	item.AssetName = asset.Filename
	item.Variant = "default"
	item.RenderPrompt = FallbackPrompt(brand)
	return item
}

// FallbackPrompt builds the generic overlay instruction used when no
// specification matched an upload.
func FallbackPrompt(brand domain.BrandSettings) string {
	font := brand.Font
	if font == "" {
		font = "Montserrat"
	}
	textColor := brand.TextColor
	if textColor == "" {
		textColor = "white"
	}
	gradient := brand.GradientColor
	if gradient == "" {
		gradient = "#000000"
	}
	platform := brand.Platform
	if platform == "" || platform == "none" {
		platform = "web marketing"
	}
	return fmt.Sprintf(
		"Analyze this image and add appropriate text overlay using %s font in %s color with a %s gradient background. Make it suitable for %s.",
		font, textColor, gradient, platform,
	)
}
