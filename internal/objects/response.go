package objects

type ErrorResponse struct {
	Error Error `json:"error"`
}

type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	// Reason is a machine readable code, e.g. ACCESS_POLICY_VIOLATION.
	Reason string `json:"reason,omitempty"`
}

// DataResponse wraps model engine results.
type DataResponse struct {
	Data any `json:"data"`
}
