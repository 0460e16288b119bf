package aigen

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// ContentExtractor pulls structured data out of generated content. Template
// workflows ask models for JSON or tagged output (caption, hashtags, alt
// text) and extract the pieces for the editor.
type ContentExtractor interface {
	Extract(result GenerationResult) (interface{}, error)
}

// JSONExtractor unmarshals generated JSON into a target struct. JSON inside
// a markdown code fence is preferred over the raw content.
type JSONExtractor struct {
	Target interface{}
}

// NewJSONExtractor creates a JSONExtractor with the specified target struct.
func NewJSONExtractor(target interface{}) *JSONExtractor {
	return &JSONExtractor{Target: target}
}

// Extract implements ContentExtractor for JSON output.
func (e *JSONExtractor) Extract(result GenerationResult) (interface{}, error) {
	content := extractFromCodeBlock(result.Content, "json")
	if content == "" {
		content = result.Content
	}

	if err := json.Unmarshal([]byte(content), e.Target); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	return e.Target, nil
}

// TagExtractor returns the content of a named tag, e.g. <caption>...</caption>.
type TagExtractor struct {
	Tag string
}

// NewTagExtractor creates a TagExtractor for the specified tag.
func NewTagExtractor(tag string) *TagExtractor {
	return &TagExtractor{Tag: tag}
}

// Extract implements ContentExtractor for tag-based output.
func (e *TagExtractor) Extract(result GenerationResult) (interface{}, error) {
	pattern := fmt.Sprintf(`<%s>(.*?)</%s>`, e.Tag, e.Tag)
	re, err := regexp.Compile("(?s)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid tag pattern: %w", err)
	}

	matches := re.FindStringSubmatch(result.Content)
	if len(matches) < 2 {
		return nil, fmt.Errorf("tag <%s> not found in content", e.Tag)
	}

	return strings.TrimSpace(matches[1]), nil
}

// HashtagExtractor collects #hashtags from generated content, de-duplicated
// in order of first appearance.
type HashtagExtractor struct{}

// NewHashtagExtractor creates a HashtagExtractor.
func NewHashtagExtractor() *HashtagExtractor {
	return &HashtagExtractor{}
}

var hashtagPattern = regexp.MustCompile(`#[\p{L}\p{N}_]+`)

// Extract implements ContentExtractor; the result is a []string of hashtags.
func (e *HashtagExtractor) Extract(result GenerationResult) (interface{}, error) {
	matches := hashtagPattern.FindAllString(result.Content, -1)
	if len(matches) == 0 {
		return nil, fmt.Errorf("no hashtags found in content")
	}

	seen := make(map[string]bool, len(matches))
	var tags []string
	for _, m := range matches {
		key := strings.ToLower(m)
		if !seen[key] {
			seen[key] = true
			tags = append(tags, m)
		}
	}
	return tags, nil
}

func extractFromCodeBlock(text, language string) string {
	pattern := fmt.Sprintf("```%s\\n([\\s\\S]*?)```", language)
	re := regexp.MustCompile(pattern)
	matches := re.FindStringSubmatch(text)
	if len(matches) < 2 {
		return ""
	}
	return strings.TrimSpace(matches[1])
}
