package dataapi

import (
	"net/http"
	"net/url"
	"slices"
	"strings"
)

var operationMethods = map[string][]string{
	OperationFindMany:   {http.MethodGet},
	OperationFindUnique: {http.MethodGet},
	OperationFindFirst:  {http.MethodGet},
	OperationCount:      {http.MethodGet},
	OperationCreate:     {http.MethodPost},
	OperationUpdate:     {http.MethodPut, http.MethodPatch},
	OperationDelete:     {http.MethodDelete},
}

// Request is one decoded rpc call.
type Request struct {
	Model     *Model
	Operation string
	Args      *Args
}

// ParseRequest decodes the call addressed by method and the "model/op" path.
// Reads and deletes take their arguments from the q query parameter, writes from the body.
func ParseRequest(method, path string, query url.Values, body []byte) (*Request, error) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, invalidRequest("invalid request path, expected /{model}/{operation}")
	}

	m, ok := LookupModel(parts[0])
	if !ok {
		return nil, invalidRequest("unknown model name: %s", parts[0])
	}

	op := parts[1]

	methods, ok := operationMethods[op]
	if !ok {
		return nil, invalidRequest("invalid operation: %s", op)
	}

	if !slices.Contains(methods, method) {
		return nil, invalidRequest("invalid request method, only %s is supported for operation: %s",
			strings.Join(methods, " or "), op)
	}

	var raw []byte

	switch method {
	case http.MethodGet, http.MethodDelete:
		raw = []byte(query.Get("q"))
	default:
		raw = body
	}

	args, err := ParseArgs(m, raw)
	if err != nil {
		return nil, err
	}

	return &Request{Model: m, Operation: op, Args: args}, nil
}
