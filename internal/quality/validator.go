package quality

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/newspulse/aggregator/internal/domain"
)

const (
	startScore     = 100
	validThreshold = 50

	titleMinLen   = 10
	titleMaxLen   = 200
	contentMinLen = 50

	maxPastAge    = 30 * 24 * time.Hour
	maxFutureSkew = 24 * time.Hour
)

// spamKeywords are substrings that mark promotional junk. Matching any of
// them in the title or content costs points per keyword.
var spamKeywords = []string{
	"click here",
	"buy now",
	"limited time",
	"act fast",
	"guaranteed",
}

// Result carries the quality verdict for one article. A rejection is data,
// not an error; issues exist for observability.
type Result struct {
	Valid  bool     `json:"isValid"`
	Score  int      `json:"score"`
	Issues []string `json:"issues,omitempty"`
}

// Validator scores raw articles against spam, length and date-sanity
// heuristics.
type Validator struct {
	now func() time.Time
}

type Option func(*Validator)

// WithNow injects the clock used for date-sanity checks.
func WithNow(now func() time.Time) Option {
	return func(v *Validator) {
		v.now = now
	}
}

func New(opts ...Option) *Validator {
	v := &Validator{now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate scores one article starting at 100 and subtracting penalties.
// The score never drops below zero; the article is valid iff it keeps at
// least half the starting score.
func (v *Validator) Validate(article domain.RawArticle) Result {
	score := startScore
	var issues []string

	penalize := func(points int, issue string) {
		score -= points
		issues = append(issues, issue)
	}

	titleLen := len([]rune(article.Title))
	if titleLen < titleMinLen {
		penalize(20, fmt.Sprintf("title too short (%d chars, minimum %d)", titleLen, titleMinLen))
	} else if titleLen > titleMaxLen {
		penalize(10, fmt.Sprintf("title too long (%d chars, maximum %d)", titleLen, titleMaxLen))
	}

	if contentLen := len([]rune(article.Content)); contentLen < contentMinLen {
		penalize(30, fmt.Sprintf("content too short (%d chars, minimum %d)", contentLen, contentMinLen))
	}

	haystack := strings.ToLower(article.Title + " " + article.Content)
	for _, keyword := range spamKeywords {
		if strings.Contains(haystack, keyword) {
			penalize(15, fmt.Sprintf("spam indicator %q found", keyword))
		}
	}

	if !parseableURL(article.URL) {
		penalize(25, fmt.Sprintf("URL not parseable: %q", article.URL))
	}

	now := v.now()
	if !article.PublishedAt.IsZero() {
		if article.PublishedAt.Before(now.Add(-maxPastAge)) {
			penalize(10, fmt.Sprintf("published more than %d days ago", int(maxPastAge.Hours()/24)))
		} else if article.PublishedAt.After(now.Add(maxFutureSkew)) {
			penalize(20, "published date is in the future")
		}
	}

	if score < 0 {
		score = 0
	}

	return Result{
		Valid:  score >= validThreshold,
		Score:  score,
		Issues: issues,
	}
}

func parseableURL(raw string) bool {
	u, err := url.ParseRequestURI(raw)
	return err == nil && u.Scheme != "" && u.Host != ""
}
