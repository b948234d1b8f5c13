package app

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"

	"classroom-quiz-service/internal/domain"
)

func TestCodeGeneratorAlphabet(t *testing.T) {
	g := newCodeGeneratorWithSource(6, 3, rand.NewSource(1))
	for i := 0; i < 500; i++ {
		code := g.Next()
		if len(code) != 6 {
			t.Fatalf("expected 6 characters, got %q", code)
		}
		if strings.ContainsAny(code, "0O1I") {
			t.Fatalf("code %q contains an ambiguous character", code)
		}
		if !ValidCode(code) {
			t.Fatalf("generated code %q is not valid", code)
		}
	}
}

func TestCodeGeneratorRetriesOnCollision(t *testing.T) {
	g := newCodeGeneratorWithSource(6, 5, rand.NewSource(7))
	calls := 0
	code, err := g.Generate(context.Background(), func(_ context.Context, _ string) (bool, error) {
		calls++
		return calls < 3, nil
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if calls != 3 || code == "" {
		t.Fatalf("expected success on third attempt, calls=%d code=%q", calls, code)
	}
}

func TestCodeGeneratorExhaustion(t *testing.T) {
	g := newCodeGeneratorWithSource(6, 4, rand.NewSource(7))
	calls := 0
	_, err := g.Generate(context.Background(), func(_ context.Context, _ string) (bool, error) {
		calls++
		return true, nil
	})
	if !errors.Is(err, domain.ErrCodeSpaceExhausted) {
		t.Fatalf("expected exhaustion, got %v", err)
	}
	if calls != 4 {
		t.Fatalf("expected bounded attempts, got %d", calls)
	}
}

func TestValidCode(t *testing.T) {
	for _, code := range []string{"", "ABC0EF", "abcdef", "ABC-EF"} {
		if ValidCode(code) {
			t.Fatalf("expected %q to be invalid", code)
		}
	}
	if !ValidCode("HJK234") {
		t.Fatalf("expected HJK234 to be valid")
	}
}
