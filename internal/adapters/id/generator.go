// Package id generates collision-resistant identifiers for discovery
// pipeline entities.
package id

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
)

type Generator struct{}

func New() *Generator {
	return &Generator{}
}

func (g *Generator) generate(prefix string) string {
	id, err := gonanoid.New(21)
	if err != nil {
		return prefix + "_fallback"
	}
	return prefix + "_" + id
}

// GenerateRunID produces an ID for a discovery pipeline run.
func (g *Generator) GenerateRunID() string {
	return g.generate("run")
}
