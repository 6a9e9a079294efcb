package llm

import "context"

// Func adapts a function to Generator. It backs offline runs and tests.
type Func struct {
	Fn   func(ctx context.Context, credential int, req Request) (string, error)
	Keys int
}

// Generate implements Generator.
func (f Func) Generate(ctx context.Context, credential int, req Request) (string, error) {
	return f.Fn(ctx, credential, req)
}

// Credentials implements Generator.
func (f Func) Credentials() int {
	if f.Keys < 1 {
		return 1
	}
	return f.Keys
}
