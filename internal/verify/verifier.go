// Package verify scores rendered overlay text against OCR output.
package verify

import "server/internal/textmatch"

// Result breaks down the text accuracy of one rendered image.
type Result struct {
	TitleScore    float64
	SubtitleScore float64
	Overall       float64
}

// Score compares the expected title and subtitle against the free-form text
// extracted from a rendered image. The overall score is the mean of both
// fuzzy-containment scores; an empty expected string is vacuously satisfied.
func Score(title, subtitle, extracted string) Result {
	r := Result{
		TitleScore:    textmatch.FuzzyContains(title, extracted),
		SubtitleScore: textmatch.FuzzyContains(subtitle, extracted),
	}
	r.Overall = (r.TitleScore + r.SubtitleScore) / 2
	return r
}
