package model

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Envelope wraps every API response.
type Envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}
