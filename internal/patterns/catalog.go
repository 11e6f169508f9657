package patterns

// CatalogEntry is a fixed audio or visual signature in the simulated
// database. Owner is the artist for audio and the rights holder for visual.
type CatalogEntry struct {
	Name       string  `json:"name"`
	Owner      string  `json:"owner"`
	Confidence float64 `json:"confidence"`
}

// Catalog is the static variant's simulated copyright database.
type Catalog struct {
	Audio    []CatalogEntry `json:"audio"`
	Visual   []CatalogEntry `json:"visual"`
	Metadata []string       `json:"metadata"`
}

func StaticCatalog() Catalog {
	return Catalog{
		Audio: []CatalogEntry{
			{Name: "Popular Song #1", Owner: "Famous Artist", Confidence: 0.95},
			{Name: "Movie Theme", Owner: "Film Studio", Confidence: 0.88},
			{Name: "Commercial Jingle", Owner: "Brand Corp", Confidence: 0.92},
		},
		Visual: []CatalogEntry{
			{Name: "Studio Logo", Owner: "Major Studio", Confidence: 0.87},
			{Name: "Cartoon Character", Owner: "Animation Co", Confidence: 0.94},
			{Name: "Sports Footage", Owner: "Sports Network", Confidence: 0.91},
		},
		Metadata: []string{
			"copyrighted music", "official soundtrack", "movie clip", "tv show", "brand commercial",
		},
	}
}

// Store flattens the catalog into pattern labels.
func (c Catalog) Store() *Store {
	return NewStore(entryNames(c.Audio), entryNames(c.Visual), c.Metadata)
}

func entryNames(entries []CatalogEntry) []string {
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	return names
}
