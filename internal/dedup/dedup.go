package dedup

import (
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"unicode"

	"github.com/newspulse/aggregator/internal/domain"
	"github.com/newspulse/aggregator/pkg/stringsutil"
)

const defaultTitleThreshold = 0.85

// trackingParams are query parameters stripped during URL normalization, in
// addition to any utm_* parameter.
var trackingParams = map[string]struct{}{
	"ref":    {},
	"source": {},
	"fbclid": {},
}

// Deduplicator removes near-duplicate articles within one fetch batch.
// Batches are bounded to a single fetch cycle, so the quadratic title
// comparison stays cheap.
type Deduplicator struct {
	titleThreshold float64
}

type Option func(*Deduplicator)

// WithTitleThreshold overrides the Jaccard similarity above which two titles
// are treated as the same story.
func WithTitleThreshold(threshold float64) Option {
	return func(d *Deduplicator) {
		d.titleThreshold = threshold
	}
}

func New(opts ...Option) *Deduplicator {
	d := &Deduplicator{titleThreshold: defaultTitleThreshold}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dedupe returns the subset of the batch with near-duplicates removed,
// newest first. When duplicates collide the newer article wins.
func (d *Deduplicator) Dedupe(batch []domain.RawArticle) []domain.RawArticle {
	if len(batch) < 2 {
		return batch
	}

	sorted := make([]domain.RawArticle, len(batch))
	copy(sorted, batch)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PublishedAt.After(sorted[j].PublishedAt)
	})

	seenURLs := make(map[string]struct{}, len(sorted))
	keptTitles := make([]string, 0, len(sorted))
	kept := make([]domain.RawArticle, 0, len(sorted))

	for _, article := range sorted {
		normURL := NormalizeURL(article.URL)
		normTitle := NormalizeTitle(article.Title)

		if normURL != "" {
			if _, dup := seenURLs[normURL]; dup {
				slog.Debug("dropping duplicate article by URL", "title", article.Title, "url", article.URL)
				continue
			}
		}

		if isTitleDuplicate(normTitle, keptTitles, d.titleThreshold) {
			slog.Debug("dropping duplicate article by title", "title", article.Title)
			continue
		}

		if normURL != "" {
			seenURLs[normURL] = struct{}{}
		}
		keptTitles = append(keptTitles, normTitle)
		kept = append(kept, article)
	}

	return kept
}

func isTitleDuplicate(normTitle string, keptTitles []string, threshold float64) bool {
	if normTitle == "" {
		return false
	}
	for _, kept := range keptTitles {
		if TitleSimilarity(normTitle, kept) > threshold {
			return true
		}
	}
	return false
}

// NormalizeURL lowercases the URL, strips tracking query parameters and the
// fragment. Normalization is idempotent. Unparsable input is returned
// lowercased as-is.
func NormalizeURL(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	q := u.Query()
	for key := range q {
		if _, tracked := trackingParams[key]; tracked || strings.HasPrefix(key, "utm_") {
			q.Del(key)
		}
	}
	u.RawQuery = q.Encode()
	u.Fragment = ""

	return u.String()
}

// NormalizeTitle lowercases, strips punctuation and collapses whitespace.
func NormalizeTitle(title string) string {
	var b strings.Builder
	b.Grow(len(title))

	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}

	return stringsutil.CollapseWhitespace(b.String())
}

// TitleSimilarity is the Jaccard similarity of the two titles' word sets.
// Inputs are expected to be normalized; the measure is symmetric.
func TitleSimilarity(a, b string) float64 {
	wordsA := tokenSet(a)
	wordsB := tokenSet(b)

	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}

	intersection := 0
	for w := range wordsA {
		if _, ok := wordsB[w]; ok {
			intersection++
		}
	}

	union := len(wordsA) + len(wordsB) - intersection
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(s) {
		set[w] = struct{}{}
	}
	return set
}
