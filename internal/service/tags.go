package service

import "strings"

// NormalizeTags splits a comma-separated tag string, trims each tag and
// drops empty ones. The result is never nil.
func NormalizeTags(raw string) []string {
	tags := []string{}
	for tag := range strings.SplitSeq(raw, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}
