package core

import (
	"github.com/bytedance/sonic"
)

type Params map[string]any

// Request is an exchange call ready to be signed and sent.
// Body holds the exact bytes that are both signed and transmitted.
type Request struct {
	Method      string            `json:"method"`
	Path        string            `json:"path"`
	Body        []byte            `json:"body,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	RequireAuth bool              `json:"require_auth"`
}

func NewRequest(method, path string) *Request {
	return &Request{
		Method:  method,
		Path:    path,
		Headers: make(map[string]string),
	}
}

// SetJSONBody encodes v as compact JSON and stores it as the request body.
func (r *Request) SetJSONBody(v any) error {
	data, err := sonic.Marshal(v)
	if err != nil {
		return err
	}
	r.Body = data
	return nil
}

func (r *Request) SetHeader(key, value string) *Request {
	if r.Headers == nil {
		r.Headers = make(map[string]string)
	}
	r.Headers[key] = value
	return r
}

func (r *Request) SetRequireAuth(require bool) *Request {
	r.RequireAuth = require
	return r
}

// BodyString returns the body as sent, "" for bodyless requests.
func (r *Request) BodyString() string {
	return string(r.Body)
}
