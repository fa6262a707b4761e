package service

// ErrorResponse is the JSON body sent with every non-2xx REST answer.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// Response renders e for the wire.
func (e *Error) Response() ErrorResponse {
	return ErrorResponse{Code: e.Code.String(), Message: e.Message}
}

// Err converts a decoded body back to an *Error. The boolean is false when
// the code is not part of the taxonomy.
func (r ErrorResponse) Err() (*Error, bool) {
	code, ok := ParseErrorCode(r.Code)
	if !ok {
		return nil, false
	}
	return &Error{Code: code, Message: r.Message}, true
}

// Header names shared by the REST adapters and clients.
const (
	// HeaderRequestID carries the id assigned to an inbound request.
	HeaderRequestID = "X-Request-ID"

	// HeaderReplicaLocations lists every replica of a redirected read,
	// comma separated, in preference order.
	HeaderReplicaLocations = "X-Replica-Locations"
)
