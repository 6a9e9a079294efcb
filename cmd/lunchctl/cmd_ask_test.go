package main

import (
	"errors"
	"testing"

	"github.com/ashureev/lunchbot/internal/domain"
)

func TestDeniedErrorOnlyForDeniedPath(t *testing.T) {
	if err := deniedError(domain.Reply{Path: domain.PathNormal}); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	err := deniedError(domain.Reply{Path: domain.PathDenied})
	if !errors.Is(err, domain.ErrAdmissionDenied) {
		t.Fatalf("expected admission denied, got %v", err)
	}
}
