// Package request extracts a structured Requirement from free-form
// requester text. Pure heuristics; the pipeline consumes only the
// resulting Requirement and never re-inspects the text.
package request

import (
	"regexp"
	"strconv"
	"strings"

	"procura/internal/types"
)

// Defaults applied when the text does not specify a field.
const (
	DefaultQuantity = 10
	DefaultBudget   = 1500.0
)

var (
	qtyRe     = regexp.MustCompile(`(\d+)\s+laptop`)
	dollarRe  = regexp.MustCompile(`\$(\d+(?:,\d{3})*(?:\.\d{2})?)`)
	underRe   = regexp.MustCompile(`under\s+(\d+)`)
	ramRe     = regexp.MustCompile(`(\d+)\s*gb\s+ram`)
	storageRe = regexp.MustCompile(`(\d+)\s*gb\s+(?:storage|ssd)`)
)

var knownBrands = []string{"dell", "lenovo", "hp", "asus", "acer", "apple", "msi"}

var useCaseKeywords = []struct {
	useCase  types.UseCase
	keywords []string
}{
	{types.UseCaseVideoEditing, []string{"video", "editing", "photo", "creative", "design"}},
	{types.UseCaseProgramming, []string{"programming", "coding", "development", "dev"}},
	{types.UseCaseDataScience, []string{"data", "science", "ml", "machine learning", "ai"}},
	{types.UseCaseGaming, []string{"gaming", "game"}},
}

// Parse extracts a Requirement from requester text. Missing fields take
// the documented defaults; it never fails on vague input, it just
// returns the default office-work requirement.
func Parse(text string) types.Requirement {
	lower := strings.ToLower(text)

	req := types.Requirement{
		Quantity:          DefaultQuantity,
		MaxBudgetPerUnit:  DefaultBudget,
		UseCase:           types.UseCaseOfficeWork,
		PreferPerformance: true,
	}

	if m := qtyRe.FindStringSubmatch(lower); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			req.Quantity = n
		}
	}

	if m := dollarRe.FindStringSubmatch(text); m != nil {
		if b, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64); err == nil && b > 0 {
			req.MaxBudgetPerUnit = b
		}
	} else if strings.Contains(lower, "under") {
		if m := underRe.FindStringSubmatch(lower); m != nil {
			if b, err := strconv.ParseFloat(m[1], 64); err == nil && b > 0 {
				req.MaxBudgetPerUnit = b
			}
		}
	}

	for _, bucket := range useCaseKeywords {
		if containsAny(lower, bucket.keywords) {
			req.UseCase = bucket.useCase
			break
		}
	}

	if m := ramRe.FindStringSubmatch(lower); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			req.MinRAMGB = n
		}
	} else if strings.Contains(lower, "video") || strings.Contains(lower, "programming") {
		req.MinRAMGB = 16
	}

	if m := storageRe.FindStringSubmatch(lower); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			req.MinStorageGB = n
		}
	}

	for _, brand := range knownBrands {
		if strings.Contains(lower, brand) {
			req.PreferredBrand = brand
			break
		}
	}

	if containsAny(lower, []string{"cheap", "budget", "affordable", "cost"}) {
		req.PreferPerformance = false
	} else if containsAny(lower, []string{"high-end", "powerful", "performance", "fast"}) {
		req.PreferPerformance = true
	}

	return req
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
