package model

// CountryCode converts a region marker to a lowercase ISO country code.
// Komari reports regions either as flag emoji (pairs of regional indicator
// symbols) or as plain country codes; both forms resolve to the same output.
func CountryCode(region string) string {
	const (
		indicatorBase = 0x1F1E6 // regional indicator symbol letter A
		indicatorEnd  = 0x1F1FF
	)

	out := make([]rune, 0, len(region))
	for _, r := range region {
		switch {
		case r >= indicatorBase && r <= indicatorEnd:
			out = append(out, 'a'+(r-indicatorBase))
		case r >= 'A' && r <= 'Z':
			out = append(out, r-'A'+'a')
		case r >= 'a' && r <= 'z':
			out = append(out, r)
		}
	}
	return string(out)
}
