package model

// RunPage references one stored page image inside a run directory.
type RunPage struct {
	Index int    `json:"index"`
	File  string `json:"file"`
}

// RunMeta is the run.json metadata written once per processing batch. A run is
// immutable after creation; review artifacts live alongside it without
// mutating the original records.
type RunMeta struct {
	RunID         string    `json:"run_id"`
	SourceName    string    `json:"source_name"`
	CreatedAt     string    `json:"created_at"`
	CSV           string    `json:"csv"`
	Pages         []RunPage `json:"pages"`
	Rows          int       `json:"rows"`
	HasStructured bool      `json:"has_structured"`

	// RunDir is filled in on load; it is not persisted.
	RunDir string `json:"-"`
}

// StructuredCard carries the raw structured payload the remote extractor
// returned for one page, kept alongside the flattened CardRecord so the
// review tooling can inspect per-field confidence.
type StructuredCard struct {
	PageIndex int            `json:"page_index"`
	Image     string         `json:"image"`
	Data      map[string]any `json:"data"`
}

// Annotation is one human-drawn labeled box over a page image, in normalized
// [0,1] coordinates.
type Annotation struct {
	Label string `json:"label"`
	Box   Box    `json:"box"`
}

// Box is a normalized bounding box.
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}
