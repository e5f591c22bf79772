package core

import (
	stderrors "errors"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestMapError_KeepsRichEnvelope(t *testing.T) {
	mapped := MapError(OrderNotFoundError("pix_1"))
	if mapped.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", mapped.Code)
	}
	if mapped.TextCode != ErrorOrderNotFound {
		t.Fatalf("expected order not found text code, got %q", mapped.TextCode)
	}
}

func TestMapError_ClassifiesPlainErrors(t *testing.T) {
	mapped := MapError(stderrors.New("webhooks: signature mismatch"))
	if mapped.Category != goerrors.CategoryAuth {
		t.Fatalf("expected auth category, got %q", mapped.Category)
	}
	if mapped.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", mapped.Code)
	}

	mapped = MapError(stderrors.New("orders: vendor id is required"))
	if mapped.TextCode != ErrorBadInput {
		t.Fatalf("expected bad input text code, got %q", mapped.TextCode)
	}
	if mapped.Code == 0 {
		t.Fatalf("expected http status on mapped error")
	}
}

func TestErrorConstructors_SetCategoryAndStatus(t *testing.T) {
	cases := []struct {
		err      error
		category goerrors.Category
		status   int
	}{
		{SignatureError("bad signature"), goerrors.CategoryAuth, http.StatusUnauthorized},
		{MalformedPayloadError(nil, "bad json"), goerrors.CategoryBadInput, http.StatusBadRequest},
		{ValidationError("amount_cents", "too low"), goerrors.CategoryValidation, http.StatusBadRequest},
		{ForbiddenError("not owner", nil), goerrors.CategoryAuthz, http.StatusForbidden},
		{GatewayError(stderrors.New("boom"), "gateway down", nil), goerrors.CategoryExternal, http.StatusBadGateway},
	}
	for _, tc := range cases {
		var rich *goerrors.Error
		if !goerrors.As(tc.err, &rich) {
			t.Fatalf("expected go-errors type, got %T", tc.err)
		}
		if rich.Category != tc.category {
			t.Fatalf("expected category %q, got %q", tc.category, rich.Category)
		}
		if rich.Code != tc.status {
			t.Fatalf("expected status %d, got %d", tc.status, rich.Code)
		}
	}
	if !IsNotFound(NotFoundError("product", "p1")) {
		t.Fatalf("expected not found helper to match")
	}
}
