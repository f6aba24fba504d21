package matching

import (
	"reflect"
	"strings"
	"testing"

	"server/internal/domain"
)

func sampleSpecs() []domain.SpecificationRecord {
	return []domain.SpecificationRecord{
		{
			ImageNumber:  2,
			Variant:      "METAL DARK",
			Title:        "CORSAIR ONE I600",
			Subtitle:     "A Compact PC packed with cutting-edge components and excellent performance.",
			AssetName:    "CORSAIR_ONE_i600_DARK_METAL_12",
			RenderPrompt: "Add a dark gradient overlay.",
		},
		{
			ImageNumber:  2,
			Variant:      "WOOD DARK",
			Title:        "CORSAIR ONE I600",
			Subtitle:     "A Compact PC packed with cutting-edge components and excellent performance.",
			AssetName:    "CORSAIR_ONE_i600_WOOD_DARK_PHOTO_17",
			RenderPrompt: "Add a dark gradient overlay.",
		},
		{
			ImageNumber:  3,
			Variant:      "DEFAULT",
			Title:        "K100 AIR",
			Subtitle:     "Ultra-thin mechanical gaming keyboard.",
			AssetName:    "K100_AIR_HERO_3",
			RenderPrompt: "Add a light overlay.",
		},
	}
}

func TestBestMatchExactAssetName(t *testing.T) {
	asset := domain.UploadedAsset{Filename: "CORSAIR_ONE_i600_DARK_METAL_12.jpg"}
	match := BestMatch(asset, sampleSpecs())
	if match == nil {
		t.Fatal("expected a match")
	}
	if match.Spec.AssetName != "CORSAIR_ONE_i600_DARK_METAL_12" {
		t.Fatalf("wrong spec selected: %s", match.Spec.AssetName)
	}
	// Full asset-name word overlap alone is worth 40.
	if match.Score < 40 {
		t.Fatalf("score too low: %v", match.Score)
	}
}

func TestBestMatchScoreWithNumericToken(t *testing.T) {
	specs := sampleSpecs()
	specs[0].ImageNumber = 12
	asset := domain.UploadedAsset{Filename: "CORSAIR_ONE_i600_DARK_METAL_12.jpg"}
	match := BestMatch(asset, specs)
	if match == nil {
		t.Fatal("expected a match")
	}
	if match.Spec.AssetName != "CORSAIR_ONE_i600_DARK_METAL_12" {
		t.Fatalf("wrong spec selected: %s", match.Spec.AssetName)
	}
	if match.Score < 100 {
		t.Fatalf("expected asset-name overlap plus numeric match to reach 100, got %v", match.Score)
	}
}

func TestBestMatchDocumentOrder(t *testing.T) {
	asset := domain.UploadedAsset{Filename: "image7.png", DocumentOrder: 3}
	match := BestMatch(asset, sampleSpecs())
	if match == nil {
		t.Fatal("expected a document-order match")
	}
	if match.Spec.ImageNumber != 3 {
		t.Fatalf("wrong spec selected: %+v", match.Spec)
	}
	if match.Score < documentOrderWeight {
		t.Fatalf("score below document-order weight: %v", match.Score)
	}
}

func TestBestMatchUnrelatedFilename(t *testing.T) {
	asset := domain.UploadedAsset{Filename: "random_photo.jpg"}
	if match := BestMatch(asset, sampleSpecs()); match != nil {
		t.Fatalf("expected no match, got %+v with score %v", match.Spec, match.Score)
	}
}

func TestBestMatchIsPure(t *testing.T) {
	specs := sampleSpecs()
	snapshot := make([]domain.SpecificationRecord, len(specs))
	copy(snapshot, specs)
	asset := domain.UploadedAsset{Filename: "CORSAIR_ONE_i600_WOOD_DARK_PHOTO_17.jpg"}

	first := BestMatch(asset, specs)
	second := BestMatch(asset, specs)
	if first == nil || second == nil {
		t.Fatal("expected matches on both runs")
	}
	if first.Spec.AssetName != second.Spec.AssetName || first.Score != second.Score {
		t.Fatalf("matcher not idempotent: %+v vs %+v", first, second)
	}
	if !reflect.DeepEqual(specs, snapshot) {
		t.Fatal("spec list mutated by matching")
	}
}

func TestBestMatchTieKeepsFirst(t *testing.T) {
	specs := []domain.SpecificationRecord{
		{ImageNumber: 1, Variant: "A", AssetName: "product_shot"},
		{ImageNumber: 1, Variant: "B", AssetName: "product_shot"},
	}
	match := BestMatch(domain.UploadedAsset{Filename: "product_shot_1.png"}, specs)
	if match == nil {
		t.Fatal("expected a match")
	}
	if match.Spec.Variant != "A" {
		t.Fatalf("tie should keep first candidate, got variant %s", match.Spec.Variant)
	}
}

func TestBuildWorkItemMatched(t *testing.T) {
	specs := sampleSpecs()
	asset := domain.UploadedAsset{Filename: "CORSAIR_ONE_i600_DARK_METAL_12.jpg", URL: "http://files/1.jpg"}
	match := BestMatch(asset, specs)
	item := BuildWorkItem("proj-1", 1, asset, match, domain.BrandSettings{})

	if item.Status != domain.WorkItemQueued {
		t.Fatalf("new items must be queued, got %s", item.Status)
	}
	if item.Title != "CORSAIR ONE I600" {
		t.Fatalf("title not copied from spec: %q", item.Title)
	}
	if item.ImageNumber != 1 || item.ProjectID != "proj-1" {
		t.Fatalf("identity fields wrong: %+v", item)
	}
}

func TestBuildWorkItemUnmatched(t *testing.T) {
	brand := domain.BrandSettings{Font: "Inter", TextColor: "#FFFFFF", GradientColor: "#101010", Platform: "amazon"}
	asset := domain.UploadedAsset{Filename: "random_photo.jpg", URL: "http://files/2.jpg"}
	item := BuildWorkItem("proj-1", 2, asset, nil, brand)

	if item.Title != "[UNMATCHED: random_photo.jpg]" {
		t.Fatalf("unexpected sentinel title: %q", item.Title)
	}
	if item.Subtitle != "No text overlay needed" {
		t.Fatalf("unexpected fallback subtitle: %q", item.Subtitle)
	}
	for _, want := range []string{"Inter", "#FFFFFF", "#101010", "amazon"} {
		if !strings.Contains(item.RenderPrompt, want) {
			t.Fatalf("fallback prompt missing %q: %s", want, item.RenderPrompt)
		}
	}
}
