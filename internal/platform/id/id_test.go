package id_test

import (
	"testing"

	"timetrack/internal/platform/id"
)

func TestUUIDGeneratorProducesValidUniqueIDs(t *testing.T) {
	t.Parallel()
	gen := id.UUID{}
	a, b := gen.New(), gen.New()
	if a == b {
		t.Fatalf("expected distinct ids, got %s twice", a)
	}
	if !id.Valid(a) || !id.Valid(b) {
		t.Fatalf("generated ids must be valid: %s %s", a, b)
	}
}

func TestNormalizeAcceptsBracedAndUppercaseForms(t *testing.T) {
	t.Parallel()
	got, ok := id.Normalize("{6F9619FF-8B86-D011-B42D-00C04FC964FF}")
	if !ok {
		t.Fatalf("braced guid should parse")
	}
	if got != "6f9619ff-8b86-d011-b42d-00c04fc964ff" {
		t.Fatalf("unexpected normalized id %s", got)
	}
	if _, ok := id.Normalize("not-an-id"); ok {
		t.Fatalf("garbage must not normalize")
	}
	if id.Valid("") {
		t.Fatalf("empty string is not a valid id")
	}
}
