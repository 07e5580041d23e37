package heritage

import "strings"

// NormalizeTags splits a comma separated tag string. Segments are trimmed,
// empty ones dropped, and duplicates removed keeping the first position.
func NormalizeTags(raw string) []string {
	return normalizeTagList(strings.Split(raw, ","))
}

func normalizeTagList(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
