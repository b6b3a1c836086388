package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestCategoryOf(t *testing.T) {
	cases := []struct {
		err  error
		want ErrorCategory
	}{
		{NewConfigError("credentials", "missing app key"), CategoryConfig},
		{NewTransportError("place_order", errors.New("dial tcp: timeout")), CategoryTransport},
		{NewBusinessError("place_order", "주문가능금액을 초과합니다"), CategoryBusiness},
		{NewNotFoundError("delete_reservation", "not found"), CategoryNotFound},
		{errors.New("plain"), ""},
		{nil, ""},
	}
	for _, c := range cases {
		if got := CategoryOf(c.err); got != c.want {
			t.Errorf("CategoryOf(%v) = %q, want %q", c.err, got, c.want)
		}
	}
}

func TestCategoryOfWrapped(t *testing.T) {
	inner := NewTransportError("executions", errors.New("connection reset"))
	wrapped := fmt.Errorf("sync failed: %w", inner)
	if got := CategoryOf(wrapped); got != CategoryTransport {
		t.Errorf("expected transport category through wrap, got %q", got)
	}
}

func TestIsRetriable(t *testing.T) {
	if !IsRetriable(NewTransportError("open_orders", errors.New("timeout"))) {
		t.Error("transport errors should be retriable")
	}
	if IsRetriable(NewBusinessError("place_order", "rejected")) {
		t.Error("business errors should not be retriable")
	}
	if IsRetriable(NewConfigError("credentials", "missing")) {
		t.Error("config errors should not be retriable")
	}
	if IsRetriable(errors.New("plain")) {
		t.Error("plain errors should not be retriable")
	}
}

func TestBrokerErrorMessage(t *testing.T) {
	e := NewBusinessError("place_order", "모의투자 장종료")
	if e.Error() != "place_order: 모의투자 장종료" {
		t.Errorf("unexpected message: %s", e.Error())
	}

	wrapped := NewTransportError("buyable", errors.New("eof"))
	if wrapped.Error() != "buyable: eof" {
		t.Errorf("unexpected message: %s", wrapped.Error())
	}
}

func TestBrokerErrorUnwrap(t *testing.T) {
	e := &BrokerError{
		Category: CategoryConfig,
		Op:       "credentials",
		Msg:      "missing: KIS_APP_KEY",
		Err:      ErrCredentialsMissing,
	}
	if !errors.Is(e, ErrCredentialsMissing) {
		t.Error("expected errors.Is to see ErrCredentialsMissing")
	}
}
