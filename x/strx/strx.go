package strx

// First returns the first non-empty value, or "" if all are empty.
func First(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
