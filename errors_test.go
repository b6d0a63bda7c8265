package docdex

import (
	"testing"
	"time"
)

func TestParseRetryAfterSeconds(t *testing.T) {
	if got := ParseRetryAfter("5"); got != 5*time.Second {
		t.Errorf("got %v, want 5s", got)
	}
	if got := ParseRetryAfter("0"); got != 0 {
		t.Errorf("got %v, want 0", got)
	}
	if got := ParseRetryAfter("-3"); got != 0 {
		t.Errorf("got %v, want 0 for negative", got)
	}
}

func TestParseRetryAfterHTTPDate(t *testing.T) {
	future := time.Now().Add(time.Minute).UTC().Format(time.RFC1123)
	got := ParseRetryAfter(future)
	if got <= 0 || got > time.Minute {
		t.Errorf("got %v, want a positive duration up to 1m", got)
	}

	past := time.Now().Add(-time.Minute).UTC().Format(time.RFC1123)
	if got := ParseRetryAfter(past); got != 0 {
		t.Errorf("got %v, want 0 for a date in the past", got)
	}
}

func TestParseRetryAfterGarbage(t *testing.T) {
	for _, v := range []string{"", "soon", "5.5"} {
		if got := ParseRetryAfter(v); got != 0 {
			t.Errorf("ParseRetryAfter(%q) = %v, want 0", v, got)
		}
	}
}

func TestModelMismatchErrorMessage(t *testing.T) {
	err := &ModelMismatchError{IndexModel: "a", CallerModel: "b"}
	want := `embedding model mismatch: index built with "a", caller uses "b"`
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}
