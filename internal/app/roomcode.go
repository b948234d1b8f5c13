package app

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"classroom-quiz-service/internal/domain"
)

// CodeAlphabet omits 0/O and 1/I so codes survive being read aloud in a classroom.
const CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	defaultCodeLength   = 6
	defaultCodeAttempts = 10
)

// CodeGenerator produces short room codes and retries on collision with live rooms.
type CodeGenerator struct {
	length   int
	attempts int

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewCodeGenerator(length, attempts int) *CodeGenerator {
	return newCodeGeneratorWithSource(length, attempts, rand.NewSource(time.Now().UnixNano()))
}

func newCodeGeneratorWithSource(length, attempts int, src rand.Source) *CodeGenerator {
	if length <= 0 {
		length = defaultCodeLength
	}
	if attempts <= 0 {
		attempts = defaultCodeAttempts
	}
	return &CodeGenerator{length: length, attempts: attempts, rnd: rand.New(src)}
}

// Next returns a random candidate without checking for collisions.
func (g *CodeGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	code := make([]byte, g.length)
	for i := range code {
		code[i] = CodeAlphabet[g.rnd.Intn(len(CodeAlphabet))]
	}
	return string(code)
}

// Generate returns a code for which taken reports false. It gives up with
// domain.ErrCodeSpaceExhausted after the configured number of collisions.
func (g *CodeGenerator) Generate(ctx context.Context, taken func(context.Context, string) (bool, error)) (string, error) {
	for i := 0; i < g.attempts; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		code := g.Next()
		inUse, err := taken(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check room code: %w", err)
		}
		if !inUse {
			return code, nil
		}
	}
	return "", domain.ErrCodeSpaceExhausted
}

// ValidCode reports whether code has the generator's shape. Join uses it to
// reject typos before touching the store.
func ValidCode(code string) bool {
	if code == "" {
		return false
	}
	for i := 0; i < len(code); i++ {
		if !containsByte(CodeAlphabet, code[i]) {
			return false
		}
	}
	return true
}

func containsByte(s string, b byte) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return true
		}
	}
	return false
}
