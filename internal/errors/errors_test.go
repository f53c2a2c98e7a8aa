package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestStatusOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{name: "disabled", err: New(FormDisabled, "form disabled"), want: http.StatusServiceUnavailable},
		{name: "rate limited", err: New(RateLimited, "slow down"), want: http.StatusTooManyRequests},
		{name: "delivery", err: New(DeliveryFailed, "Mailgun failed: 500"), want: http.StatusBadRequest},
		{name: "wrapped", err: fmt.Errorf("submit: %w", New(FormDisabled, "x")), want: http.StatusServiceUnavailable},
		{name: "plain", err: stderrors.New("boom"), want: http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := StatusOf(tc.err); got != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, got)
			}
		})
	}
}

func TestWrapMessage(t *testing.T) {
	cause := stderrors.New("connection refused")

	err := Wrap(StorageFailed, cause, "")
	if err.Error() != "connection refused" {
		t.Fatalf("expected cause message, got %q", err.Error())
	}
	if !stderrors.Is(err, cause) {
		t.Fatal("expected wrapped cause to be reachable")
	}

	err = Wrap(StorageFailed, cause, "archive submission")
	if err.Error() != "archive submission" {
		t.Fatalf("expected explicit message, got %q", err.Error())
	}

	if !Is(err, StorageFailed) || Is(err, DeliveryFailed) {
		t.Fatalf("unexpected kind %v", KindOf(err))
	}
}
