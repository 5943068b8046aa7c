package notify

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dukex/clubflow/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

// Frame types.
const (
	FrameSubscribe    = "subscribe"
	FrameUnsubscribe  = "unsubscribe"
	FrameAck          = "ack"
	FrameError        = "error"
	FrameNotification = "notification"
)

// Error codes sent in error frames.
const (
	CodeInvalidArgument = "INVALID_ARGUMENT"
	CodeForbidden       = "FORBIDDEN"
	CodeUnavailable     = "UNAVAILABLE"
)

const clientFrameSchema = `{
  "type": "object",
  "required": ["type", "topic"],
  "additionalProperties": false,
  "properties": {
    "type": {"type": "string", "enum": ["subscribe", "unsubscribe"]},
    "topic": {"type": "string", "minLength": 1, "maxLength": 200},
    "request_id": {"type": "string", "maxLength": 100}
  }
}`

var clientSchema = mustSchema(clientFrameSchema)

func mustSchema(source string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(source))
	if err != nil {
		panic(fmt.Sprintf("invalid frame schema: %v", err))
	}

	return schema
}

// ClientFrame is sent by the client to manage its subscriptions.
type ClientFrame struct {
	Type      string       `json:"type"`
	Topic     models.Topic `json:"topic"`
	RequestID string       `json:"request_id,omitempty"`
}

// ServerFrame is sent by the server. Exactly one of Message and Error is
// set for notification and error frames.
type ServerFrame struct {
	Type      string                      `json:"type"`
	RequestID string                      `json:"request_id,omitempty"`
	Topic     models.Topic                `json:"topic,omitempty"`
	Message   *models.NotificationMessage `json:"message,omitempty"`
	Error     *FrameErrorBody             `json:"error,omitempty"`
}

// FrameErrorBody describes a rejected client frame.
type FrameErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// parseClientFrame validates raw against the client frame schema.
func parseClientFrame(raw json.RawMessage) (ClientFrame, error) {
	result, err := clientSchema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return ClientFrame{}, err
	}

	if !result.Valid() {
		var errors []string
		for _, desc := range result.Errors() {
			errors = append(errors, desc.String())
		}

		return ClientFrame{}, fmt.Errorf("validation errors: %s", strings.Join(errors, "; "))
	}

	var frame ClientFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return ClientFrame{}, err
	}

	return frame, nil
}
