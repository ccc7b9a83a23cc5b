package api

import (
	"encoding/json"
	"math"
	"net/http"

	"relief-backend/pkg/api"
)

// The resampler caps output rasters; anything past this is a typo, not a map.
const maxOutputDimension = 20000

// ValidateRenderRequest rejects malformed submissions before they are
// admitted, naming the offending field. A request that passes here is trusted
// downstream without re-validation.
func ValidateRenderRequest(req api.RenderRequest, requireExtent bool) error {
	if req.Size == nil {
		return CodedErrorf(http.StatusBadRequest, "size is missing")
	}
	if !validSize(*req.Size) {
		return CodedErrorf(http.StatusBadRequest, "size is malformed")
	}

	if req.Extent == nil && req.Cutline == nil && requireExtent {
		return CodedErrorf(http.StatusBadRequest, "extent is missing")
	}
	if req.Extent != nil && !validExtent(*req.Extent) {
		return CodedErrorf(http.StatusBadRequest, "extent is malformed")
	}
	if req.Cutline != nil && !json.Valid(req.Cutline) {
		return CodedErrorf(http.StatusBadRequest, "cutline is malformed")
	}

	if req.Samples < 0 {
		return CodedErrorf(http.StatusBadRequest, "samples is malformed")
	}
	if req.Scale < 0 || math.IsNaN(req.Scale) || math.IsInf(req.Scale, 0) {
		return CodedErrorf(http.StatusBadRequest, "scale is malformed")
	}
	if req.Margin != nil && (req.Margin.Horizontal < 0 || req.Margin.Vertical < 0) {
		return CodedErrorf(http.StatusBadRequest, "margin is malformed")
	}

	return nil
}

func validSize(size api.Size) bool {
	return size.Width > 0 && size.Height > 0 &&
		size.Width <= maxOutputDimension && size.Height <= maxOutputDimension
}

func validExtent(extent api.Extent) bool {
	for _, v := range []float64{extent.Left, extent.Bottom, extent.Right, extent.Top} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return extent.Left < extent.Right && extent.Bottom < extent.Top
}
