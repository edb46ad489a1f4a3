package imagegen

import (
	"errors"

	openai "github.com/sashabaranov/go-openai"
)

var (
	// ErrNoAPIKey means no OpenAI API key was configured.
	ErrNoAPIKey = errors.New("OpenAI API key is not configured")
	// ErrEmptyResponse means the API answered without any images.
	ErrEmptyResponse = errors.New("image API returned no images")
)

// UpstreamStatus returns the HTTP status the OpenAI API answered with, or 0
// when err did not come from an HTTP response.
func UpstreamStatus(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

// UpstreamMessage returns the API's own error message when there is one.
func UpstreamMessage(err error) string {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}
