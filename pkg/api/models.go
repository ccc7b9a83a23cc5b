package api

import "encoding/json"

type Extent struct {
	Left   float64 `json:"left"`
	Bottom float64 `json:"bottom"`
	Right  float64 `json:"right"`
	Top    float64 `json:"top"`
}

type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Margin is extra padding, in output pixels, applied around the requested
// extent before cropping so that downstream shading has no edge artifacts.
type Margin struct {
	Horizontal int `json:"horizontal"`
	Vertical   int `json:"vertical"`
}

type RenderRequest struct {
	Extent *Extent `json:"extent,omitempty"`
	Size   *Size   `json:"size,omitempty"`

	// Cutline is an optional GeoJSON polygon; pixels outside it are masked.
	// It is passed through to the warp tool verbatim, so we keep it raw.
	Cutline json.RawMessage `json:"cutline,omitempty"`

	Srid    string  `json:"srid,omitempty"`
	Samples int     `json:"samples,omitempty"`
	Scale   float64 `json:"scale,omitempty"`
	Margin  *Margin `json:"margin,omitempty"`
}

type JobMetadata struct {
	Id     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type ListJobsRequest struct {
	Status string `schema:"status"`
}

type ErrorResponse struct {
	Message string `json:"message"`
}
