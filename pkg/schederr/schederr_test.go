package schederr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindMatching(t *testing.T) {
	err := Conflictf("slot %s no longer available", "abc")
	if !errors.Is(err, ErrConflict) {
		t.Error("conflict error should match ErrConflict")
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("conflict error should not match ErrNotFound")
	}
}

func TestWrappedKindSurvives(t *testing.T) {
	inner := NotFoundf("slot not found")
	outer := fmt.Errorf("approving request: %w", inner)
	if !errors.Is(outer, ErrNotFound) {
		t.Error("wrapped not-found error should still match ErrNotFound")
	}
	if KindOf(outer) != KindNotFound {
		t.Errorf("KindOf = %v, want KindNotFound", KindOf(outer))
	}
}

func TestCauseUnwrapping(t *testing.T) {
	cause := errors.New("row missing")
	err := NotFoundf("slot lookup: %w", cause)
	if !errors.Is(err, cause) {
		t.Error("wrapped cause should be reachable through errors.Is")
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{Configurationf("no templates"), http.StatusBadRequest},
		{Validationf("bad weekday"), http.StatusBadRequest},
		{Conflictf("taken"), http.StatusConflict},
		{NotFoundf("missing"), http.StatusNotFound},
		{Statef("not pending"), http.StatusUnprocessableEntity},
		{errors.New("boom"), http.StatusInternalServerError},
		{fmt.Errorf("ctx: %w", Statef("not pending")), http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		if got := HTTPStatus(tc.err); got != tc.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestKindString(t *testing.T) {
	if KindConflict.String() != "conflict" {
		t.Errorf("KindConflict.String() = %q", KindConflict.String())
	}
	if Kind(0).String() != "unknown" {
		t.Errorf("Kind(0).String() = %q", Kind(0).String())
	}
}
