package orchestration

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// chunkTokenTarget approximates the content budget of one LLM call. Token
// counting here is a word-count proxy, not a real tokenizer — chunking
// heuristics are an external collaborator spec.md leaves unspecified.
const chunkTokenTarget = 800

var tagStripper = regexp.MustCompile(`(?is)<script.*?</script>|<style.*?</style>|<[^>]+>`)
var whitespaceCollapser = regexp.MustCompile(`\s+`)

// DefaultScraper fetches a single page over plain HTTP and splits its
// text into roughly equal-sized chunks. It has no JavaScript rendering,
// no link-following, and no bot-defence handling — spec.md §1 explicitly
// scopes the real crawling engine out as a pluggable collaborator; this
// is the minimal, clearly-labeled stand-in that makes the pipeline
// runnable end to end.
type DefaultScraper struct {
	HTTPClient *http.Client
}

// NewDefaultScraper builds a DefaultScraper whose client uses the given
// timeout; zero means no client timeout.
func NewDefaultScraper(timeout time.Duration) *DefaultScraper {
	return &DefaultScraper{HTTPClient: &http.Client{Timeout: timeout}}
}

// Scrape fetches websiteURL and returns its visible text split into
// token-budgeted chunks, each tagged with its position and the total
// chunk count.
func (s *DefaultScraper) Scrape(ctx context.Context, websiteURL string) ([]Chunk, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, websiteURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building scrape request for %s: %w", websiteURL, err)
	}
	req.Header.Set("User-Agent", "sitescout-profiler/1.0")

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scraping %s: %w", websiteURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("scraping %s: upstream status %d", websiteURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("reading scrape response for %s: %w", websiteURL, err)
	}

	text := extractText(string(body))
	return chunkText(text, websiteURL), nil
}

// extractText strips tags and collapses whitespace into plain text.
func extractText(html string) string {
	stripped := tagStripper.ReplaceAllString(html, " ")
	return strings.TrimSpace(whitespaceCollapser.ReplaceAllString(stripped, " "))
}

// chunkText splits text into chunkTokenTarget-word segments.
func chunkText(text, sourceURL string) []Chunk {
	if text == "" {
		return nil
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var segments [][]string
	for i := 0; i < len(words); i += chunkTokenTarget {
		end := min(i+chunkTokenTarget, len(words))
		segments = append(segments, words[i:end])
	}

	chunks := make([]Chunk, len(segments))
	for i, seg := range segments {
		chunks[i] = Chunk{
			ChunkIndex:   i,
			TotalChunks:  len(segments),
			ChunkContent: strings.Join(seg, " "),
			TokenCount:   len(seg),
			SourceURLs:   []string{sourceURL},
		}
	}
	return chunks
}
