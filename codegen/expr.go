package codegen

import (
	"bytes"
	"encoding/json"

	"github.com/petal-labs/spellbook/spell"
)

// exprOp is the instruction used to emit one string value into server source.
type exprOp int

const (
	// opLiteral emits the value as a JS string literal.
	opLiteral exprOp = iota
	// opInterpolate emits interpolate(<literal>, input).
	opInterpolate
)

// valueExpr is a string value destined for generated JavaScript. Every value
// from a spell reaches the output through jsString, never by concatenation.
type valueExpr struct {
	op   exprOp
	text string
}

func valueOf(s string) valueExpr {
	if spell.HasPlaceholder(s) {
		return valueExpr{op: opInterpolate, text: s}
	}
	return valueExpr{op: opLiteral, text: s}
}

func (e valueExpr) JS() string {
	lit := jsString(e.text)
	if e.op == opInterpolate {
		return "interpolate(" + lit + ", input)"
	}
	return lit
}

// jsString encodes s as a double-quoted JavaScript string literal. JSON string
// syntax is a subset of JS; U+2028 and U+2029 are escaped by encoding/json.
func jsString(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		// Encoding a Go string cannot fail.
		panic(err)
	}
	return string(bytes.TrimSuffix(buf.Bytes(), []byte("\n")))
}
