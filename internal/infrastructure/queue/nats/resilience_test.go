package nats

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/docextract/internal/core/domain"
)

func TestClassifyNATSError(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		retryable bool
	}{
		{name: "no servers", err: fmt.Errorf("nats publish: %w", nats.ErrNoServers), retryable: true},
		{name: "closed", err: nats.ErrConnectionClosed, retryable: true},
		{name: "cancelled", err: context.Canceled, retryable: false},
		{name: "bad subject", err: nats.ErrBadSubject, retryable: false},
	}
	for _, tc := range cases {
		if got := classifyNATSError(tc.err).Retryable; got != tc.retryable {
			t.Fatalf("%s: retryable = %v, want %v", tc.name, got, tc.retryable)
		}
	}
}

func TestWrapTemporaryIfNeeded(t *testing.T) {
	if err := wrapTemporaryIfNeeded(nats.ErrTimeout); !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary, got %v", err)
	}
	permanent := errors.New("payload too large")
	if err := wrapTemporaryIfNeeded(permanent); domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("permanent error must not be temporary")
	}
}
