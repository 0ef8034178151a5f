package domain

import "time"

// Paper is the core entity flowing through the pipeline. The acquisition
// fields are filled by a source; the enrichment fields are written exactly
// once by the classifier and never mutated afterwards.
type Paper struct {
	ArxivID         string    `json:"arxiv_id"`
	Title           string    `json:"title"`
	Summary         string    `json:"summary"`
	Authors         []string  `json:"authors,omitempty"`
	Published       time.Time `json:"published"`
	PrimaryCategory string    `json:"primary_category"`
	ArxivURL        string    `json:"arxiv_url"`

	// Enrichment, classifier only.
	PrimaryArea       string   `json:"primary_area,omitempty"`
	SecondaryFocus    string   `json:"secondary_focus,omitempty"`
	ApplicationDomain string   `json:"application_domain,omitempty"`
	TLDR              string   `json:"tldr,omitempty"`
	InterestTags      []string `json:"interest_tags,omitempty"`
	Order             int      `json:"order,omitempty"`
	MirrorURL         string   `json:"mirror_url,omitempty"`
}

// InterestTag is a user-defined matching hint handed to the classifier as
// read-only reference context.
type InterestTag struct {
	Label       string   `json:"label"`
	Description string   `json:"description,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
}

// RawArtifact is one persisted scrape result for a single category and day.
type RawArtifact struct {
	GeneratedAt time.Time `json:"generated_at"`
	PaperDate   string    `json:"paper_date"`
	Categories  []string  `json:"categories"`
	PaperCount  int       `json:"paper_count"`
	Papers      []Paper   `json:"papers"`
}

// DailyArtifact is the persisted result of the classify stage: all papers
// of one day, enriched, together with provenance.
type DailyArtifact struct {
	GeneratedAt    time.Time `json:"generated_at"`
	SourceRawFiles []string  `json:"source_raw_files"`
	PaperCount     int       `json:"paper_count"`
	Papers         []Paper   `json:"papers"`
}
