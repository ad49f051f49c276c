package inventory

import "strings"

// ParseItemSpecifics reads "key: value" lines. Lines missing a key or a
// value are ignored; later keys win.
func ParseItemSpecifics(raw string) map[string]string {
	out := map[string]string{}
	for _, line := range strings.Split(raw, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}
	return out
}

// ParseTags splits a comma separated list, trimming blanks and dropping
// duplicates while keeping first-seen order.
func ParseTags(raw string) []string {
	seen := map[string]struct{}{}
	tags := make([]string, 0, 4)
	for _, part := range strings.Split(raw, ",") {
		tag := strings.TrimSpace(part)
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	return tags
}
