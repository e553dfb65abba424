package biorxiv

// DetailsResponse is the body returned by the bioRxiv details endpoint.
type DetailsResponse struct {
	Messages   []Message  `json:"messages"`
	Collection []Preprint `json:"collection"`
}

// Message carries the endpoint's status line.
type Message struct {
	Status string `json:"status"`
	Total  any    `json:"total,omitempty"`
}

// Preprint is one entry of the details collection.
type Preprint struct {
	DOI      string `json:"doi"`
	Title    string `json:"title"`
	Authors  string `json:"authors"`
	Date     string `json:"date"`
	Version  string `json:"version"`
	Server   string `json:"server"`
	JATSXML  string `json:"jatsxml"`
	PDF      string `json:"pdf"`
	Category string `json:"category"`
}
