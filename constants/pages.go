package constants

// Page markers bracket each page's text inside agent prompts so the model can
// attribute a finding to the page it came from.
const (
	PageStartMarker = "--- PAGE %d START ---"
	PageEndMarker   = "--- PAGE %d END ---"
)

// PageErrorMarker is stored as a page's content when its OCR call fails, so
// page numbering stays contiguous even for failed pages.
const PageErrorMarker = "Error processing page %d: %v"
