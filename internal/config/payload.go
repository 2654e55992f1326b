package config

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
)

// Supported payload content types.
const (
	PayloadJSON = "application/json"
	PayloadForm = "application/x-www-form-urlencoded"
)

// emptyPayload selects the built-in default body.
const emptyPayload = "{}"

// DefaultJSONPayload is sent for JSON POST runs without a payload.
const DefaultJSONPayload = `{
  "fname": "Load",
  "lname": "Test",
  "email": "john.doe@example.com",
  "phone": "+1234567890",
  "employer": "Tech Solutions Inc.",
  "occupation": "Software Developer",
  "country": "USA",
  "address": "1234 Elm Street",
  "state": "California",
  "city": "Los Angeles",
  "postal": "90001",
  "peoplework": "10",
  "issues": "No major issues"
}`

// DefaultFormPayload is sent for form POST runs without a payload.
const DefaultFormPayload = "email=loadtest@example.com&signature=Best%20regards%2C%20John%20Doe&image=https%3A%2F%2Fexample.com%2Fimages%2Fprofile.jpg&bill_id=BILL-78239&testimony=I%20strongly%20support%20this%20bill%20and%20urge%20others%20to%20do%20the%20same.&title=Support%20for%20Clean%20Energy%20Act"

// PayloadError reports a payload that could not be used as given. The
// Fallback body is sent instead.
type PayloadError struct {
	Type     string
	Reason   string
	Fallback string
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("payload (%s): %s", e.Type, e.Reason)
}

// Body is a resolved request body with its content type.
type Body struct {
	ContentType string
	Data        string
}

// ContentType returns the request Content-Type for a payload type.
func ContentType(payloadType string) string {
	if payloadType == PayloadJSON {
		return PayloadJSON
	}
	return PayloadForm
}

// ResolvePayload returns the body sent with every request. GET requests
// carry no body. A malformed payload yields a usable Body together with a
// *PayloadError so the caller can log it and continue.
func ResolvePayload(method, payloadType, raw string) (Body, error) {
	body := Body{ContentType: ContentType(payloadType)}
	if method != http.MethodPost {
		return body, nil
	}

	switch payloadType {
	case PayloadJSON:
		data := raw
		if strings.TrimSpace(raw) == emptyPayload || strings.TrimSpace(raw) == "" {
			data = DefaultJSONPayload
		}
		if !gjson.Valid(data) {
			body.Data = emptyPayload
			return body, &PayloadError{Type: payloadType, Reason: "invalid JSON", Fallback: body.Data}
		}
		body.Data = gjson.Get(data, "@ugly").Raw
		return body, nil

	case PayloadForm:
		data := raw
		if strings.TrimSpace(raw) == emptyPayload || strings.TrimSpace(raw) == "" {
			data = DefaultFormPayload
		}
		if _, err := url.ParseQuery(data); err != nil {
			body.Data = ""
			return body, &PayloadError{Type: payloadType, Reason: err.Error(), Fallback: body.Data}
		}
		body.Data = data
		return body, nil

	default:
		body.Data = emptyPayload
		return body, &PayloadError{Type: payloadType, Reason: "unsupported payload type", Fallback: body.Data}
	}
}
