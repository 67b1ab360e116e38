package dto

type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Detail    string `json:"detail,omitempty"`
	Backend   string `json:"backend,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

// Tool statuses
const (
	ToolStatusSuccess = "success"
	ToolStatusError   = "error"
)

// ToolResponse is the envelope of the agent-facing operations.
type ToolResponse struct {
	Status     string `json:"status"`
	MediaBuyID string `json:"media_buy_id,omitempty"`
	BuyerRef   string `json:"buyer_ref,omitempty"`
	Error      string `json:"error,omitempty"`
	Code       string `json:"code,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Data       any    `json:"data,omitempty"`
}
