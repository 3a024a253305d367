package adapters

import "context"

// HTTPAdapter is an interface for HTTP communication.
// Implement this interface to use custom HTTP clients.
type HTTPAdapter interface {
	// Post sends a JSON body to the given URL.
	//
	// Parameters:
	//   - ctx: Bounds the whole exchange, including reading the response body
	//   - url: The full request URL
	//   - body: Serialized JSON request body
	//   - headers: Headers to merge with the defaults
	//
	// Returns the HTTP response, or an error if no usable response was received.
	Post(ctx context.Context, url string, body []byte, headers map[string]string) (*HTTPResponse, error)
}
