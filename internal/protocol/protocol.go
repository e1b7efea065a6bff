package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// Version is the protocol version written on every outbound message.
	Version = "2.0"
	// MethodAnalyze is the only method the analysis service understands.
	MethodAnalyze = "analyze"

	minVersion = 2.0
)

// Sentiment is the label attached to a classified text.
type Sentiment string

const (
	Positive Sentiment = "positive"
	Negative Sentiment = "negative"
	Neutral  Sentiment = "neutral"
)

// ParseSentiment normalizes a label coming off the wire.
func ParseSentiment(s string) (Sentiment, bool) {
	switch Sentiment(strings.ToLower(strings.TrimSpace(s))) {
	case Positive:
		return Positive, true
	case Negative:
		return Negative, true
	case Neutral:
		return Neutral, true
	default:
		return "", false
	}
}

// Params carries the method arguments. Text is a pointer so a missing field
// can be told apart from an empty one.
type Params struct {
	Text *string `json:"text,omitempty"`
}

// Request asks the analysis service to classify one text.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  Params `json:"params"`
}

// Result is the successful outcome of an analyze call.
type Result struct {
	Sentiment Sentiment `json:"sentiment"`
	Polarity  float64   `json:"polarity"`
}

// Fault is the unsuccessful outcome of an analyze call.
type Fault struct {
	Message string `json:"message"`
}

// Response carries exactly one of Result or Error.
type Response struct {
	JSONRPC string  `json:"jsonrpc"`
	ID      string  `json:"id"`
	Result  *Result `json:"result,omitempty"`
	Error   *Fault  `json:"error,omitempty"`
}

// NewRequest builds an analyze request for text under the given correlation id.
func NewRequest(id, text string) *Request {
	t := text
	return &Request{
		JSONRPC: Version,
		ID:      id,
		Method:  MethodAnalyze,
		Params:  Params{Text: &t},
	}
}

// Text returns the request text, or "" when it is absent.
func (r *Request) Text() string {
	if r == nil || r.Params.Text == nil {
		return ""
	}
	return *r.Params.Text
}

// Validate reports structural problems the service must answer with a Fault.
func (r *Request) Validate() error {
	if r == nil {
		return errors.New("request is empty")
	}
	if v := strings.TrimSpace(r.JSONRPC); v != "" {
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid jsonrpc version %q", v)
		}
		if n < minVersion {
			return fmt.Errorf("unsupported jsonrpc version %q (minimum %s)", v, Version)
		}
	}
	if r.Method != MethodAnalyze {
		return fmt.Errorf("unknown method %q", r.Method)
	}
	if r.Params.Text == nil {
		return errors.New("missing params.text")
	}
	return nil
}

// NewResult builds a Result response echoing id.
func NewResult(id string, sentiment Sentiment, polarity float64) *Response {
	return &Response{
		JSONRPC: Version,
		ID:      id,
		Result:  &Result{Sentiment: sentiment, Polarity: polarity},
	}
}

// NewFault builds a Fault response echoing id.
func NewFault(id, message string) *Response {
	return &Response{
		JSONRPC: Version,
		ID:      id,
		Error:   &Fault{Message: message},
	}
}

// Validate checks that exactly one of Result and Error is present.
func (r *Response) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: empty response", ErrMalformed)
	}
	switch {
	case r.Result != nil && r.Error != nil:
		return fmt.Errorf("%w: response carries both result and error", ErrMalformed)
	case r.Result == nil && r.Error == nil:
		return fmt.Errorf("%w: response carries neither result nor error", ErrMalformed)
	}
	return nil
}

// Answers reports whether r is the response to the request with id. A Fault
// with no id answers a request the peer could not decode at all.
func (r *Response) Answers(id string) bool {
	if r == nil {
		return false
	}
	return r.ID == id || (r.ID == "" && r.Error != nil)
}

// DecodeRequest parses one request document. When the payload is valid JSON
// but not a usable request, the returned Request still carries whatever id
// could be recovered.
func DecodeRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(bytes.TrimSpace(data), &req); err != nil {
		var partial struct {
			ID json.RawMessage `json:"id"`
		}
		if json.Unmarshal(data, &partial) == nil {
			req = Request{ID: rawID(partial.ID)}
			return &req, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &req, nil
}

// DecodeResponse parses one response document.
func DecodeResponse(data []byte) (*Response, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformed)
	}
	var resp Response
	if err := json.Unmarshal(trimmed, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &resp, nil
}

// rawID accepts string or numeric ids and returns their textual form.
func rawID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}
