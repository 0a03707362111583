package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, publicMsg: "authentication required"},
		{code: CodeForbidden, status: http.StatusForbidden, publicMsg: "access denied"},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeConflict, status: http.StatusConflict, publicMsg: "conflict detected"},
		{code: CodeStateConflict, status: http.StatusUnprocessableEntity, publicMsg: "state transition disallowed", detailsOK: true},
		{code: CodeInsufficient, status: http.StatusUnprocessableEntity, publicMsg: "insufficient balance", detailsOK: true},
		{code: CodeRateLimit, status: http.StatusTooManyRequests, publicMsg: "too many requests", retryable: true},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", retryable: true, detailsOK: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing foo")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing foo" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	detailed := base.WithDetails(map[string]any{"field": "foo"})
	if detailed.Details() == nil {
		t.Fatalf("details should be preserved")
	}
	if base.Details() != nil {
		t.Fatalf("WithDetails must not mutate the receiver")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeConflict {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
}

func TestAsReturnsTypedError(t *testing.T) {
	err := New(CodeForbidden, "no entry")
	if got := As(err); got == nil || got.Code() != CodeForbidden {
		t.Fatalf("As failed to return typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
}

func TestHasCodeFollowsWrappedChain(t *testing.T) {
	inner := New(CodeDependency, "paypal unavailable")
	outer := fmt.Errorf("check withdrawal: %w", inner)
	if !HasCode(outer, CodeDependency) {
		t.Fatalf("expected dependency code through wrap")
	}
	if HasCode(outer, CodeValidation) {
		t.Fatalf("unexpected validation code")
	}
	if HasCode(stdErrors.New("plain"), CodeInternal) {
		t.Fatalf("untyped errors carry no code")
	}
}

func TestDumpCapturesPgxDetails(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "idx_withdrawals_open_user", TableName: "withdrawals"}
	err := Wrap(CodeConflict, fmt.Errorf("insert withdrawal: %w", pgErr), "withdrawal in progress")

	dump := Dump(err)
	if dump.Code != CodeConflict {
		t.Fatalf("expected conflict code, got %s", dump.Code)
	}
	if dump.PGConstraint != "idx_withdrawals_open_user" || dump.PGTable != "withdrawals" {
		t.Fatalf("unexpected pg details %+v", dump)
	}
	if !IsUniqueViolation(err) {
		t.Fatalf("expected unique violation")
	}
	if len(dump.Chain) < 3 {
		t.Fatalf("expected full chain, got %v", dump.Chain)
	}

	fields := dump.Fields()
	if fields["pg_constraint"] != "idx_withdrawals_open_user" {
		t.Fatalf("fields missing constraint: %v", fields)
	}
	if _, ok := fields["pg_column"]; ok {
		t.Fatalf("empty pg fields should be omitted")
	}
}

func TestDumpNil(t *testing.T) {
	if d := Dump(nil); d.TopMessage != "" || d.Chain != nil {
		t.Fatalf("expected empty dump, got %+v", d)
	}
}

func TestSentinelMatchesThroughBecause(t *testing.T) {
	sentinel := New(CodeDependency, "payout provider rejected the withdrawal")
	cause := stdErrors.New("paypal 422")
	err := fmt.Errorf("cashout: %w", sentinel.Because(cause))

	if !stdErrors.Is(err, sentinel) {
		t.Fatalf("expected sentinel match through Because")
	}
	if !stdErrors.Is(err, cause) {
		t.Fatalf("expected cause to stay reachable")
	}
	if sentinel.Unwrap() != nil {
		t.Fatalf("Because must not mutate the sentinel")
	}
	if stdErrors.Is(err, New(CodeDependency, "something else")) {
		t.Fatalf("different message must not match")
	}
	if got := sentinel.Because(cause).Error(); got != "DEPENDENCY_ERROR: payout provider rejected the withdrawal: paypal 422" {
		t.Fatalf("unexpected error text %q", got)
	}
}

func TestCodeExposesMessage(t *testing.T) {
	for _, code := range []Code{CodeValidation, CodeNotFound, CodeConflict, CodeInsufficient, CodeRateLimit} {
		if !code.ExposesMessage() {
			t.Fatalf("%s should expose its message", code)
		}
	}
	for _, code := range []Code{CodeInternal, CodeDependency, "UNKNOWN"} {
		if code.ExposesMessage() {
			t.Fatalf("%s should hide its message", code)
		}
	}
}
