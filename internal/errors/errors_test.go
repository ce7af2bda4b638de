package errors

import (
	"fmt"
	"strings"
	"testing"
)

func TestFastPathNoTelemetry(t *testing.T) {
	SetTelemetryReporter(nil)

	ee := New(fmt.Errorf("test error")).Build()

	if ee.Err.Error() != "test error" {
		t.Errorf("Expected error message 'test error', got '%s'", ee.Err.Error())
	}
	if ee.GetComponent() != ComponentUnknown {
		t.Errorf("Expected component 'unknown' in fast path, got '%s'", ee.GetComponent())
	}
	if ee.Category != CategoryGeneric {
		t.Errorf("Expected category 'generic' in fast path, got '%s'", ee.Category)
	}
}

func TestCategoryFromCategorizedError(t *testing.T) {
	fe := FieldErrors{}
	fe.Add("label", CodeDoesNotExist, "unknown label")

	ee := New(fe).Build()
	if ee.Category != CategoryValidation {
		t.Fatalf("Expected validation category, got %s", ee.Category)
	}

	var got FieldErrors
	if !As(ee, &got) {
		t.Fatal("Expected FieldErrors to be reachable through As")
	}
	if !got.Has("label", CodeDoesNotExist) {
		t.Errorf("Expected does_not_exist on label, got %v", got)
	}
}

func TestNotFoundError(t *testing.T) {
	err := NotFoundError("campaign")
	if !IsNotFound(err) {
		t.Errorf("Expected IsNotFound to be true")
	}
	if err.Error() != "campaign not found" {
		t.Errorf("Unexpected message %q", err.Error())
	}
}

func TestListErrors(t *testing.T) {
	le := NewListErrors(3)
	if le.HasErrors() {
		t.Fatal("Fresh list must not report errors")
	}

	le[1].Add("last_file_index", CodeMaxValue, "too large")
	if !le.HasErrors() {
		t.Fatal("Expected errors after Add")
	}
	if !strings.HasPrefix(le.Error(), "[1] ") {
		t.Errorf("Expected positional prefix, got %q", le.Error())
	}
	if len(le[0]) != 0 || le[0] == nil {
		t.Errorf("Valid entries must be empty, non-nil maps")
	}
}

func TestScrubMessageForPrivacy(t *testing.T) {
	msg := "login failed for jane@example.org with password=hunter2 at https://host/api?token=abc"
	scrubbed := scrubMessageForPrivacy(msg)

	for _, leaked := range []string{"jane@example.org", "hunter2", "token=abc"} {
		if strings.Contains(scrubbed, leaked) {
			t.Errorf("Sensitive value %q still present: %s", leaked, scrubbed)
		}
	}
}
