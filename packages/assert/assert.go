// Package assert provides assertion helpers for test bodies. Helpers
// record recoverable failures through the TB interface, so the test keeps
// running after a failed assertion; pair them with T.Fatal when a failure
// should end the body.
//
// Supported checks:
//   - Equality and substring checks on captured output
//   - Regular-expression matches
//   - JSONPath queries over JSON documents (gjson path syntax)
//   - JSON Schema validation
package assert

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/xeipuuv/gojsonschema"
)

// TB is the subset of the engine's T the helpers need. *suite.T
// implements it.
type TB interface {
	Errorf(format string, args ...any)
}

// Equal records a failure when got != want.
func Equal[V comparable](t TB, got, want V) bool {
	if got == want {
		return true
	}
	t.Errorf("got %v, want %v", got, want)
	return false
}

// DeepEqual records a failure when got and want are not deeply equal.
func DeepEqual(t TB, got, want any) bool {
	if reflect.DeepEqual(got, want) {
		return true
	}
	t.Errorf("got %#v, want %#v", got, want)
	return false
}

// Contains records a failure when s does not contain substr.
func Contains(t TB, s, substr string) bool {
	if strings.Contains(s, substr) {
		return true
	}
	t.Errorf("%q does not contain %q", s, substr)
	return false
}

// Matches records a failure when s does not match the regular expression
// pattern. A malformed pattern is itself a failure.
func Matches(t TB, s, pattern string) bool {
	re, err := regexp.Compile(pattern)
	if err != nil {
		t.Errorf("invalid pattern %q: %v", pattern, err)
		return false
	}
	if re.MatchString(s) {
		return true
	}
	t.Errorf("%q does not match %q", s, pattern)
	return false
}

// JSONPath evaluates a gjson path over a JSON document and records a
// failure when the path is missing or its value differs from want.
func JSONPath(t TB, doc, path string, want any) bool {
	result := gjson.Get(doc, path)
	if !result.Exists() {
		t.Errorf("path %q not found in document", path)
		return false
	}
	got := result.Value()
	if reflect.DeepEqual(got, want) {
		return true
	}
	// gjson yields float64 for every JSON number; let integer
	// expectations compare naturally.
	if f, ok := got.(float64); ok {
		if i, ok := want.(int); ok && f == float64(i) {
			return true
		}
	}
	t.Errorf("path %q: got %v, want %v", path, got, want)
	return false
}

// JSONSchema validates a JSON document against a schema and records one
// failure per violation.
func JSONSchema(t TB, doc, schema string) bool {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewStringLoader(doc),
	)
	if err != nil {
		t.Errorf("schema validation: %v", err)
		return false
	}
	if result.Valid() {
		return true
	}
	for _, desc := range result.Errors() {
		t.Errorf("schema violation: %s", desc)
	}
	return false
}

// ExitCode records a failure when got differs from want, with the
// command's combined output in the message for context.
func ExitCode(t TB, got, want int, combined string) bool {
	if got == want {
		return true
	}
	msg := fmt.Sprintf("exit code %d, want %d", got, want)
	if combined != "" {
		msg += "\n" + combined
	}
	t.Errorf("%s", msg)
	return false
}
