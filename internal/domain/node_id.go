package domain

import "strings"

// NormalizeNodeID trims and rejects placeholder/unknown node ids.
func NormalizeNodeID(raw string) string {
	v := strings.TrimSpace(raw)
	if v == "" || strings.EqualFold(v, "unknown") || v == "!ffffffff" {
		return ""
	}

	return v
}

// CanonicalNodeID normalizes and lower-cases a node id so it can serve as
// the stable identity key across reconnects.
func CanonicalNodeID(raw string) string {
	return strings.ToLower(NormalizeNodeID(raw))
}
