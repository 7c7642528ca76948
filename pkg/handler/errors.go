package handler

// Response messages of the gateway contract.
const (
	MessageInvalidInput  = "Invalid input: Expected an array of account IDs"
	MessageInternalError = "Internal server error"
	MessageUnknownError  = "Unknown error occurred"
	MessageBodyTooLarge  = "Request body too large"
)

// InvalidInputError is returned when the request body is not a non-empty JSON array.
type InvalidInputError struct {
	// Got is the JSON kind that was received, e.g. "object" or "empty array".
	Got string
}

// Error implements the error interface.
func (e *InvalidInputError) Error() string {
	return MessageInvalidInput
}

// errorBody is the JSON body of 400 and 500 responses.
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}
