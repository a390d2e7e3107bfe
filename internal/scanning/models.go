package scanning

const (
	DefaultFastModel     = "gemini-3-flash-preview"
	DefaultAccurateModel = "gemini-3-pro-preview"
)

// ModelTier is a selectable backend variant
type ModelTier struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ModelTiers returns the fast (default) tier followed by the accurate tier.
func ModelTiers(fast, accurate string) []ModelTier {
	if fast == "" {
		fast = DefaultFastModel
	}
	if accurate == "" {
		accurate = DefaultAccurateModel
	}
	return []ModelTier{
		{
			ID:          fast,
			Name:        "Fast & Efficient",
			Description: "Best for standard invoices and quick results.",
		},
		{
			ID:          accurate,
			Name:        "Powerful & Accurate",
			Description: "Recommended for complex layouts, blurry scans, or handwritten invoices.",
		},
	}
}
