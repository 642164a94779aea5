package tools

import "encoding/json"

// Result is the envelope returned for every invocation: either a payload or a
// classified failure, never both.
type Result struct {
	OK      bool
	Payload interface{}
	Err     *ToolError
}

func Success(payload interface{}) Result {
	return Result{OK: true, Payload: payload}
}

func Failure(err *ToolError) Result {
	return Result{Err: err}
}

// Kind returns the failure kind, or "" for a successful result.
func (r Result) Kind() ErrorKind {
	if r.OK || r.Err == nil {
		return ""
	}
	return r.Err.Kind
}

func (r Result) Message() string {
	if r.OK || r.Err == nil {
		return ""
	}
	return r.Err.Message
}

type successEnvelope struct {
	OK      bool        `json:"ok"`
	Payload interface{} `json:"payload"`
}

type failureEnvelope struct {
	OK        bool      `json:"ok"`
	ErrorKind ErrorKind `json:"errorKind"`
	Message   string    `json:"message"`
}

func (r Result) MarshalJSON() ([]byte, error) {
	if r.OK {
		return json.Marshal(successEnvelope{OK: true, Payload: r.Payload})
	}
	return json.Marshal(failureEnvelope{ErrorKind: r.Kind(), Message: r.Message()})
}

// ErrorBody is the failure half of the envelope, without the ok flag.
func (r Result) ErrorBody() map[string]interface{} {
	return map[string]interface{}{
		"errorKind": r.Kind(),
		"message":   r.Message(),
	}
}
