package domain

// WorkItem is a single unit of work identified by its key, usually a canonical profile URL.
// Page is the listing page where the key was first discovered, zero when unknown.
type WorkItem struct {
	Key  string
	Page int
}

// Profile represents fields extracted from a detail page.
// Every field is independent, nil pointers mean the field was not found on the page.
type Profile struct {
	Name          string   `json:"name"`
	Rating        *float64 `json:"rating"`
	ReviewCount   *int     `json:"reviewCount"`
	AboutText     string   `json:"aboutText"`
	ExtendedAbout *string  `json:"extendedAbout"`
	Avatar        *string  `json:"avatar"`
}

// Empty reports whether no field was extracted at all
func (p *Profile) Empty() bool {
	if p == nil {
		return true
	}
	return p.Name == "" && p.Rating == nil && p.ReviewCount == nil && p.AboutText == "" &&
		p.ExtendedAbout == nil && p.Avatar == nil
}

// ExtractionRecord is the stage one outcome for a single profile URL
type ExtractionRecord struct {
	URL        string   `json:"url"`
	Data       *Profile `json:"data"`
	Error      string   `json:"error,omitempty"`
	PageNumber int      `json:"pageNumber,omitempty"`
	Attempts   int      `json:"attempts,omitempty"`
}

// Key returns the record identifier
func (r ExtractionRecord) Key() string { return r.URL }

// Failed reports whether extraction failed for this record
func (r ExtractionRecord) Failed() bool { return r.Error != "" || r.Data == nil }

// FailedExtraction makes a record for a profile that could not be fetched
func FailedExtraction(item WorkItem, err error, attempts int) ExtractionRecord {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return ExtractionRecord{URL: item.Key, Error: msg, PageNumber: item.Page, Attempts: attempts}
}
