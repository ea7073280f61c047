package utils

// Ratio returns num/den as a float64, or 0 when den is zero.
func Ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
