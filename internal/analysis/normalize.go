package analysis

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Wire types for the analyze operation result. The provider returns a list
// of content records with free-text fields plus an optional markdown
// rendering of the whole document.

type analyzeOperation struct {
	Status string          `json:"status"`
	Result *analyzeResult  `json:"result"`
	Error  *operationError `json:"error"`
}

type operationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (op *analyzeOperation) errorMessage() string {
	if op.Error == nil {
		return ""
	}
	return strings.TrimSpace(op.Error.Code + " " + op.Error.Message)
}

type analyzeResult struct {
	Contents []resultContent `json:"contents"`
}

type resultContent struct {
	Markdown string                  `json:"markdown"`
	Fields   map[string]contentField `json:"fields"`
}

type contentField struct {
	Type        string         `json:"type"`
	ValueString string         `json:"valueString"`
	ValueArray  []contentField `json:"valueArray"`
}

// placeholderKeywords is the fixed fallback set used when neither the
// provider fields nor the markdown yield any usable keyword.
var placeholderKeywords = []string{"Allgemein", "Inhalt", "Medium"}

const (
	maxDerivedKeywords   = 10
	descriptionMaxRunes  = 500
	captionMaxRunes      = 200
	keywordTrimCutset    = ".,;:!?\"'()[]{}#*-_"
	markdownStructurally = "[]()#|/"
)

// parseImageResult maps a raw analyze result to an ImageResult. The record
// is either complete or the call fails; no partially populated results.
func parseImageResult(result *analyzeResult) (*ImageResult, error) {
	if result == nil || len(result.Contents) == 0 {
		return nil, NewError(CodeEmptyResult, "service returned an empty analysis result for the image")
	}

	content := result.Contents[0]
	markdown := content.Markdown

	description := extractField(content.Fields, "Description")
	if description == "" {
		description = truncateRunes(markdown, descriptionMaxRunes)
	}
	caption := extractField(content.Fields, "Caption")
	if caption == "" {
		caption = truncateRunes(description, captionMaxRunes)
	}

	return &ImageResult{
		Description: description,
		Keywords:    extractKeywords(content.Fields, markdown),
		Caption:     caption,
	}, nil
}

// parseAudioResult maps a raw analyze result to an AudioResult.
func parseAudioResult(result *analyzeResult) (*AudioResult, error) {
	if result == nil || len(result.Contents) == 0 {
		return nil, NewError(CodeEmptyResult, "service returned an empty analysis result for the audio")
	}

	content := result.Contents[0]
	markdown := content.Markdown

	description := extractField(content.Fields, "Description")
	if description == "" {
		description = truncateRunes(markdown, descriptionMaxRunes)
	}
	summary := extractField(content.Fields, "Summary")
	if summary == "" {
		summary = truncateRunes(description, captionMaxRunes)
	}
	summary = truncateToFirstSentence(summary)

	return &AudioResult{
		Description: description,
		Keywords:    extractKeywords(content.Fields, markdown),
		Summary:     summary,
	}, nil
}

// extractField returns the string value of a named field, or "".
func extractField(fields map[string]contentField, name string) string {
	if fields == nil {
		return ""
	}
	return fields[name].ValueString
}

// extractKeywords returns the explicit Keywords field when present (either
// a literal list or a comma-separated string), otherwise derives candidates
// from the markdown, otherwise the fixed placeholder set.
func extractKeywords(fields map[string]contentField, markdown string) []string {
	if field, ok := fields["Keywords"]; ok {
		if len(field.ValueArray) > 0 {
			keywords := make([]string, 0, len(field.ValueArray))
			for _, item := range field.ValueArray {
				if item.ValueString != "" {
					keywords = append(keywords, item.ValueString)
				}
			}
			if len(keywords) > 0 {
				return keywords
			}
		}
		if field.ValueString != "" {
			var keywords []string
			for _, part := range strings.Split(field.ValueString, ",") {
				if trimmed := strings.TrimSpace(part); trimmed != "" {
					keywords = append(keywords, trimmed)
				}
			}
			if len(keywords) > 0 {
				return keywords
			}
		}
	}

	if keywords := deriveKeywords(markdown); len(keywords) > 0 {
		return keywords
	}

	return append([]string(nil), placeholderKeywords...)
}

// deriveKeywords extracts up to 10 salient words from markdown text:
// tokens longer than 3 runes after punctuation stripping, no markdown
// structural characters, deduplicated case-insensitively in first-seen order.
func deriveKeywords(markdown string) []string {
	if markdown == "" {
		return nil
	}

	seen := make(map[string]bool)
	var keywords []string
	for _, word := range strings.Fields(markdown) {
		cleaned := strings.Trim(word, keywordTrimCutset)
		if utf8.RuneCountInString(cleaned) <= 3 {
			continue
		}
		if strings.ContainsAny(cleaned, markdownStructurally) {
			continue
		}
		lower := strings.ToLower(cleaned)
		if seen[lower] {
			continue
		}
		seen[lower] = true
		keywords = append(keywords, cleaned)
		if len(keywords) >= maxDerivedKeywords {
			break
		}
	}
	return keywords
}

// truncateToFirstSentence keeps the text up to and including the first
// sentence terminator (./!/?) that is followed by whitespace or the end of
// the string. Text without a terminator is returned unchanged.
func truncateToFirstSentence(text string) string {
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
			if i+1 == len(text) {
				return text
			}
			if r, _ := utf8.DecodeRuneInString(text[i+1:]); unicode.IsSpace(r) {
				return strings.TrimSpace(text[:i+1])
			}
		}
	}
	return text
}

// truncateRunes limits text to n runes without splitting a multi-byte rune.
func truncateRunes(text string, n int) string {
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	runes := []rune(text)
	return string(runes[:n])
}
