// Package wire is the JSON layer under the decoder. Documents are parsed into a
// generic tree whose leaves are strings, numbers, booleans and nulls.
package wire

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	json "github.com/goccy/go-json"
)

// Node is one value of a parsed document: string, json.Number, bool, nil,
// []Node or map[string]Node.
type Node = any

// Decode parses a single JSON document from r. Numbers are kept as
// json.Number so that they never masquerade as text.
func Decode(r io.Reader) (Node, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var doc Node
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse JSON document: %w", err)
	}
	var extra Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, errors.New("failed to parse JSON document: trailing data after document")
	}
	return doc, nil
}

// DecodeBytes parses a single JSON document held in memory.
func DecodeBytes(b []byte) (Node, error) {
	return Decode(bytes.NewReader(b))
}

// Text reports the string payload of a text node.
func Text(n Node) (string, bool) {
	s, ok := n.(string)
	return s, ok
}

// Array reports the elements of an array node.
func Array(n Node) ([]Node, bool) {
	a, ok := n.([]Node)
	return a, ok
}

// Object reports the members of an object node.
func Object(n Node) (map[string]Node, bool) {
	o, ok := n.(map[string]Node)
	return o, ok
}

// Member returns the value stored under key when n is an object holding it.
func Member(n Node, key string) (Node, bool) {
	o, ok := Object(n)
	if !ok {
		return nil, false
	}
	v, ok := o[key]
	return v, ok
}

// Kind names the JSON kind of n, for error messages.
func Kind(n Node) string {
	switch n.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case []Node:
		return "array"
	case map[string]Node:
		return "object"
	case json.Number, float64:
		return "number"
	default:
		return fmt.Sprintf("%T", n)
	}
}
