package simple

import (
	"context"
	"fmt"
	"sync"
)

type Generator struct {
	mu      sync.Mutex
	prefix  string
	counter int
}

func New(prefix string) *Generator {
	//nolint:exhaustruct
	return &Generator{prefix: prefix}
}

func (g *Generator) GetID(_ context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.counter++

	return fmt.Sprintf("%s%06d", g.prefix, g.counter), nil
}
