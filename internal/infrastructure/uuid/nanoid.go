package uuid

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid"
)

// Alphabet characters of generated entity ids. Ids end up in route params,
// websocket topics and kv keys, so only alphanumerics are used.
const Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// MinLength shortest id length accepted by NewNanoIDGenerator
const MinLength = 8

// Generator id generator for persisted entities
type Generator interface {
	Generate() (string, error)
}

// NanoIDGenerator Generator backed by NanoID
type NanoIDGenerator struct {
	Length int
}

var _ Generator = &NanoIDGenerator{}

func NewNanoIDGenerator(length int) *NanoIDGenerator {
	if length < MinLength {
		panic(fmt.Errorf("id length %d is shorter than %d", length, MinLength))
	}
	return &NanoIDGenerator{Length: length}
}

func (ns *NanoIDGenerator) Generate() (string, error) {
	return gonanoid.Generate(Alphabet, ns.Length)
}
