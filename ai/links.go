package ai

import (
	"fmt"
	"regexp"
	"strings"
)

// imageSearchTag matches the bracketed directive the model is instructed to
// emit. The marker is case-insensitive; the term is everything up to the
// closing bracket.
var imageSearchTag = regexp.MustCompile(`(?i)\[image-search:\s*([^\]]*)\]`)

// ConvertImageSearchTags rewrites every [image-search: term] tag into a
// markdown link pointing at an image search for the term. Spaces in the term
// become '+'; the rest of the term passes through verbatim. Tags convert
// independently, left to right, without touching surrounding text. Text with
// no tags is returned unchanged.
func ConvertImageSearchTags(text string) string {
	return imageSearchTag.ReplaceAllStringFunc(text, func(match string) string {
		term := strings.TrimSpace(imageSearchTag.FindStringSubmatch(match)[1])
		query := strings.ReplaceAll(term, " ", "+")
		url := "https://www.google.com/search?tbm=isch&q=" + query
		return fmt.Sprintf("[🖼️ %s 도해 보기](%s)", term, url)
	})
}
