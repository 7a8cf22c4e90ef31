package dto

// Result types accepted by GET /create/result
const (
	ResultTypeModel     = "model"
	ResultTypeHeightmap = "heightmap"
)

type RequestIDResponse struct {
	RequestID string `json:"request_id"`
}

type UploadResponse struct {
	RequestID string `json:"request_id"`
	Images    int    `json:"images"`
}

type StartResponse struct {
	RequestID string `json:"request_id"`
	EntryID   string `json:"entry_id"`
}

type ResultRequest struct {
	Type string `form:"type" binding:"required,oneof=model heightmap"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
