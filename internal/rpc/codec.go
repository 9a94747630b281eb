package rpc

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	decMode, err = cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
	if err != nil {
		panic(err)
	}
}

// Marshal encodes v as a wire message.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes a wire message into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// NewRequest builds a request with params encoded. A nil params sends none.
func NewRequest(id string, method Method, params any) (*Request, error) {
	req := &Request{ID: id, Method: method}
	if params != nil {
		raw, err := encMode.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("encode %s params: %w", method, err)
		}
		req.Params = raw
	}
	return req, nil
}

// DecodeParams decodes the request parameters into v.
func (r *Request) DecodeParams(v any) error {
	if len(r.Params) == 0 {
		return NewError(CodeBadRequest, "%s: missing params", r.Method)
	}
	if err := decMode.Unmarshal(r.Params, v); err != nil {
		return NewError(CodeBadRequest, "%s: %v", r.Method, err)
	}
	return nil
}
