package decompose

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/stroysnab-cloud/procura/internal/domain"
)

// Token patterns of the procurement domain. М is the cyrillic thread letter,
// x in dimension tokens is latin.
var (
	dimensionRe  = regexp.MustCompile(`(?i)\d+x\d+`)
	threadRe     = regexp.MustCompile(`(?i)М\d+`)
	leadingQtyRe = regexp.MustCompile(`^(\d+)\s+`)
	andSplitRe   = regexp.MustCompile(`(?i)\s+и\s+`)
)

const defaultThread = "М6"

// Product-kind keywords. Matching is on lowercased text; stems cover the
// inflected forms ("гайка"/"гайки" via "гайк", genitive "гаек" has its own stem).
var (
	boxStems      = []string{"короб", "лоток", "корпус", "бокс"}
	coverStem     = "крышк"
	fastenerStems = []string{"винт", "гайк", "гаек", "болт", "шуруп", "шайб"}
	assemblyStems = []string{"комплект", "набор", "монтаж", "установк"}
)

// fastener quantity for assembly/installation requests without an explicit count.
const assemblyFastenerQty = 4

// decomposeRules splits a free-text request into item requests using the
// domain heuristics. Returns nil when nothing usable remains; the caller
// falls back to the identity item.
func decomposeRules(query string) []domain.ItemRequest {
	// Shared constraints are extracted once from the first occurrence in the
	// original text and reused for every fragment that needs them.
	sharedDim := dimensionRe.FindString(query)
	sharedThread := threadRe.FindString(query)
	assembly := containsAny(strings.ToLower(query), assemblyStems)

	items := make([]domain.ItemRequest, 0, 4)
	for _, fragment := range splitFragments(query) {
		fragment, explicitQty := stripLeadingQuantity(fragment)

		text := enrichFragment(fragment, sharedDim, sharedThread)
		if text == "" {
			continue
		}

		item := domain.ItemRequest{
			Text:           text,
			Quantity:       inferQuantity(fragment, query, explicitQty, assembly),
			Specification:  specificationOf(text),
			CandidateCount: candidateCountFor(fragment),
		}
		items = append(items, item)
	}

	return items
}

// splitFragments breaks the request into enumerated fragments. Without
// separator punctuation the whole text is a single fragment. A colon cuts off
// the global context ("Комплект для монтажа короба 200x200: ...") and the
// remainder splits on commas and the word "и".
func splitFragments(query string) []string {
	base := query
	if !strings.ContainsAny(query, ":,") {
		return cleanFragments([]string{query})
	}

	if _, after, found := strings.Cut(query, ":"); found {
		base = after
	}

	var parts []string
	for _, p := range strings.Split(base, ",") {
		parts = append(parts, andSplitRe.Split(p, -1)...)
	}
	return cleanFragments(parts)
}

// cleanFragments trims fragments and drops the ones shorter than 2 runes.
func cleanFragments(parts []string) []string {
	out := parts[:0]
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if utf8.RuneCountInString(p) < 2 {
			continue
		}
		out = append(out, p)
	}
	return out
}

// enrichFragment applies the category rules:
//   - boxes and trays get the full WxH dimension when missing;
//   - covers are specified by the width component only, never the full pair;
//   - fasteners lose WxH tokens and always carry a thread size, defaulting to
//     М6 when neither the fragment nor the shared context names one.
func enrichFragment(fragment, sharedDim, sharedThread string) string {
	lower := strings.ToLower(fragment)

	switch {
	case containsAny(lower, fastenerStems):
		text := strings.TrimSpace(dimensionRe.ReplaceAllString(fragment, ""))
		text = strings.Join(strings.Fields(text), " ")
		if !threadRe.MatchString(text) {
			thread := sharedThread
			if thread == "" {
				thread = defaultThread
			}
			text += " " + thread
		}
		return text

	case strings.Contains(lower, coverStem):
		if own := dimensionRe.FindString(fragment); own != "" {
			return strings.TrimSpace(strings.Replace(fragment, own, widthOf(own), 1))
		}
		if sharedDim != "" {
			return fragment + " " + widthOf(sharedDim)
		}
		return fragment

	case containsAny(lower, boxStems):
		if sharedDim != "" && !dimensionRe.MatchString(fragment) {
			return fragment + " " + sharedDim
		}
		return fragment

	default:
		return fragment
	}
}

// inferQuantity resolves an item quantity. An explicit leading digit wins.
// Fasteners in an assembly context default to 4 unless the source text names
// a count right before the fastener word.
func inferQuantity(fragment, source string, explicitQty int, assembly bool) int {
	if explicitQty > 0 {
		return explicitQty
	}

	lower := strings.ToLower(fragment)
	if !assembly || !containsAny(lower, fastenerStems) {
		return 1
	}

	for _, stem := range fastenerStems {
		if !strings.Contains(lower, stem) {
			continue
		}
		re := regexp.MustCompile(`(\d+)\s+` + stem)
		if m := re.FindStringSubmatch(strings.ToLower(source)); m != nil {
			if qty, err := strconv.Atoi(m[1]); err == nil && qty > 0 {
				return qty
			}
		}
	}
	return assemblyFastenerQty
}

// candidateCountFor picks the candidate pool size: standard fasteners have
// many interchangeable matches, specific items few.
func candidateCountFor(fragment string) int {
	if containsAny(strings.ToLower(fragment), fastenerStems) {
		return 5
	}
	return domain.DefaultCandidates
}

// specificationOf extracts the technical annotation from an enriched text:
// the thread token or the dimension token, whichever is present.
func specificationOf(text string) string {
	if t := threadRe.FindString(text); t != "" {
		return t
	}
	return dimensionRe.FindString(text)
}

// stripLeadingQuantity splits an explicit count off a fragment ("5 гаек М8").
func stripLeadingQuantity(fragment string) (string, int) {
	m := leadingQtyRe.FindStringSubmatch(fragment)
	if m == nil {
		return fragment, 0
	}
	qty, err := strconv.Atoi(m[1])
	if err != nil || qty <= 0 {
		return fragment, 0
	}
	return strings.TrimSpace(fragment[len(m[0]):]), qty
}

// widthOf returns the width component of a WxH token ("200x200" -> "200").
func widthOf(dim string) string {
	if i := strings.IndexAny(dim, "xX"); i > 0 {
		return dim[:i]
	}
	return dim
}

func containsAny(s string, stems []string) bool {
	for _, stem := range stems {
		if strings.Contains(s, stem) {
			return true
		}
	}
	return false
}
