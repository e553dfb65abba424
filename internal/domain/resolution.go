package domain

import "encoding/json"

// Source tags where a full-text document was found.
type Source string

const (
	SourceRepository    Source = "repository-open-access"
	SourcePreprint      Source = "preprint-server"
	SourceArXiv         Source = "arxiv"
	SourceAuthorNetwork Source = "author-network"
	SourceNone          Source = "none"
)

// Access classifies how freely a resolved document can be read.
type Access string

const (
	AccessOpen               Access = "open-access"
	AccessPossiblyRestricted Access = "possibly-restricted"
	AccessUnknown            Access = "unknown"
)

// ResolutionResult is the outcome of a full-text lookup. A result either
// carries a URL together with its source and access class, or none of them.
type ResolutionResult struct {
	url    string
	source Source
	access Access
}

// NewResolution builds a found result. An empty url or SourceNone yields
// NoResolution.
func NewResolution(url string, source Source, access Access) ResolutionResult {
	if url == "" || source == "" || source == SourceNone {
		return NoResolution()
	}
	if access == "" {
		access = AccessUnknown
	}
	return ResolutionResult{url: url, source: source, access: access}
}

// NoResolution returns the all-absent result.
func NoResolution() ResolutionResult {
	return ResolutionResult{source: SourceNone, access: AccessUnknown}
}

// URL returns the resolved URL and whether one was found.
func (r ResolutionResult) URL() (string, bool) {
	return r.url, r.url != ""
}

// Found reports whether a document URL was resolved.
func (r ResolutionResult) Found() bool {
	return r.url != ""
}

// Source returns the source tag, SourceNone when nothing was found.
func (r ResolutionResult) Source() Source {
	if r.source == "" {
		return SourceNone
	}
	return r.source
}

// Access returns the access classification.
func (r ResolutionResult) Access() Access {
	if r.access == "" {
		return AccessUnknown
	}
	return r.access
}

type resolutionJSON struct {
	URL    *string `json:"url"`
	Source Source  `json:"source"`
	Access Access  `json:"access_type"`
}

// MarshalJSON encodes the result with a null url when nothing was found.
func (r ResolutionResult) MarshalJSON() ([]byte, error) {
	out := resolutionJSON{Source: r.Source(), Access: r.Access()}
	if r.url != "" {
		u := r.url
		out.URL = &u
	}
	return json.Marshal(out)
}
