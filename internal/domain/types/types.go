// Package types contains the wire types shared by the HTTP API and its clients.
package types

import "github.com/okian/framerank/internal/domain/model"

// Accepted image MIME types.
const (
	MimeJPEG = "image/jpeg"
	MimePNG  = "image/png"
	MimeWEBP = "image/webp"
)

// AnalyzeRequest is the body of POST /analyze.
//
// Detections is optional: absent means the client ran no detector, an empty
// array means it ran one and found nobody.
type AnalyzeRequest struct {
	Image      string            `json:"image" validate:"required"`
	MimeType   string            `json:"mimeType" validate:"required,oneof=image/jpeg image/png image/webp"`
	Width      int               `json:"width,omitempty" validate:"gte=0"`
	Height     int               `json:"height,omitempty" validate:"gte=0"`
	Detections []model.Detection `json:"detections,omitempty" validate:"omitempty,dive"`
}

// Response is the tagged union returned by POST /analyze. Exactly one of Data
// or Error/Code is set, depending on Success.
type Response struct {
	Success bool          `json:"success"`
	Data    *model.Result `json:"data,omitempty"`
	Error   string        `json:"error,omitempty"`
	Code    model.Code    `json:"code,omitempty"`
}

// OK wraps a result.
func OK(r *model.Result) Response { return Response{Success: true, Data: r} }

// Fail wraps an error code and its human message.
func Fail(code model.Code, msg string) Response {
	return Response{Error: msg, Code: code}
}

// Stats is the body of GET /stats.
type Stats struct {
	Count int64 `json:"count"`
}
