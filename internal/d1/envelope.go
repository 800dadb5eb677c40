package d1

import (
	"encoding/json"
	"fmt"
	"strings"
)

// envelope is the JSON wrapper around every API response.
type envelope[T any] struct {
	Success bool       `json:"success"`
	Result  *T         `json:"result"`
	Errors  []apiError `json:"errors"`
}

type apiError struct {
	Code    *int64 `json:"code"`
	Message string `json:"message"`
}

// message joins the envelope errors as "code: message" pairs.
func (e *envelope[T]) message() string {
	parts := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		if err.Code != nil {
			parts = append(parts, fmt.Sprintf("%d: %s", *err.Code, err.Message))
		} else {
			parts = append(parts, err.Message)
		}
	}
	if len(parts) == 0 {
		return "unknown error"
	}
	return strings.Join(parts, ", ")
}

// hasMessage reports whether any envelope error carries exactly msg.
func (e *envelope[T]) hasMessage(msg string) bool {
	for _, err := range e.Errors {
		if err.Message == msg {
			return true
		}
	}
	return false
}

// importRequest is the body of every POST to the import endpoint.
type importRequest struct {
	Action          string `json:"action"`
	ETag            string `json:"etag,omitempty"`
	Filename        string `json:"filename,omitempty"`
	CurrentBookmark string `json:"current_bookmark,omitempty"`
}

// uploadTarget is the init result asking for the script to be staged.
type uploadTarget struct {
	UploadURL string `json:"upload_url"`
	Filename  string `json:"filename"`
}

// initResult is exactly one of an upload target or an import status.
type initResult struct {
	Upload *uploadTarget
	Status *ImportStatus
}

func (r *initResult) UnmarshalJSON(data []byte) error {
	var up uploadTarget
	if err := json.Unmarshal(data, &up); err != nil {
		return err
	}
	if up.UploadURL != "" {
		if up.Filename == "" {
			return fmt.Errorf("init result has upload_url but no filename")
		}
		r.Upload = &up
		return nil
	}

	var probe struct {
		Success *bool `json:"success"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	if probe.Success == nil {
		return fmt.Errorf("init result is neither an upload target nor an import status")
	}

	var st ImportStatus
	if err := json.Unmarshal(data, &st); err != nil {
		return err
	}
	r.Status = &st
	return nil
}
