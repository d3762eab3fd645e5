package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrorKind classifies a failed backend call. The classification drives
// exactly one global reaction per failure (toast, session invalidation)
// before the error is handed back to the caller.
type ErrorKind int

const (
	// KindNetwork means no response was received at all.
	KindNetwork ErrorKind = iota + 1
	// KindUnauthorized is an HTTP 401; the session has already been
	// invalidated by the time callers see this.
	KindUnauthorized
	// KindValidation is an HTTP 422 with field-level feedback.
	KindValidation
	// KindServer is an HTTP 5xx.
	KindServer
	// KindOther is any remaining status; no global side effect is
	// applied and the caller decides.
	KindOther
)

func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindUnauthorized:
		return "unauthorized"
	case KindValidation:
		return "validation"
	case KindServer:
		return "server"
	case KindOther:
		return "other"
	default:
		return "unknown"
	}
}

// Error is a classified backend failure with the original status and
// body details intact, so call sites can add local handling (form field
// errors) on top of the global reaction.
type Error struct {
	Kind       ErrorKind
	Status     int                 // 0 when no response was received
	Message    string              // top-level message from the error body
	Fields     map[string][]string // 422 field errors
	fieldOrder []string            // JSON insertion order of Fields
	Err        error               // underlying transport error, if any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("api: %s error: %v", e.Kind, e.Err)
	}
	if e.Message != "" {
		return fmt.Sprintf("api: %s error (status %d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("api: %s error (status %d)", e.Kind, e.Status)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// FieldOrder returns the field names of a validation error in the order
// the backend emitted them.
func (e *Error) FieldOrder() []string {
	return e.fieldOrder
}

// FirstFieldMessage returns the first message of the first field of a
// validation error, falling back to the top-level message. This is the
// text surfaced in the toast.
func (e *Error) FirstFieldMessage() string {
	for _, field := range e.fieldOrder {
		msgs := e.Fields[field]
		if len(msgs) > 0 {
			return msgs[0]
		}
	}
	return e.Message
}

// IsCancelled reports whether err is a deliberate cancellation. A
// cancelled request is not an error: no toast, no classification, the
// signal propagates unchanged. Deadline expiry is not a cancellation;
// it surfaces as a network failure.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled)
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}

// errorBody is the backend's error envelope: {message, errors: {field: [msg, ...]}}.
// parseErrorBody walks the raw JSON with a token decoder so the field
// order of "errors" survives; Go maps would lose it, and the toast
// contract is "first message of the first field".
func parseErrorBody(body []byte) (message string, fields map[string][]string, order []string) {
	dec := json.NewDecoder(bytes.NewReader(body))

	tok, err := dec.Token()
	if err != nil {
		return "", nil, nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return "", nil, nil
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return message, fields, order
		}
		key, _ := keyTok.(string)

		switch key {
		case "message":
			var m string
			if err := dec.Decode(&m); err != nil {
				return message, fields, order
			}
			message = m
		case "errors":
			fields, order = parseFieldErrors(dec)
		default:
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return message, fields, order
			}
		}
	}
	return message, fields, order
}

func parseFieldErrors(dec *json.Decoder) (map[string][]string, []string) {
	tok, err := dec.Token()
	if err != nil {
		return nil, nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil
	}

	fields := make(map[string][]string)
	var order []string
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fields, order
		}
		key, _ := keyTok.(string)

		var msgs []string
		if err := dec.Decode(&msgs); err != nil {
			return fields, order
		}
		if _, seen := fields[key]; !seen {
			order = append(order, key)
		}
		fields[key] = msgs
	}
	// Consume the closing brace
	dec.Token()
	return fields, order
}
