package utils

import (
	"golang.org/x/exp/maps"
)

// Applies f to every element of input, keeping the order
func Map[T any, U any](input []T, f func(T) U) []U {
	output := make([]U, 0, len(input))
	for _, item := range input {
		output = append(output, f(item))
	}
	return output
}

// Swaps keys and values. When several keys share a value, which
// one survives is unspecified.
func InvertedMap[Key comparable, Value comparable](input map[Key]Value) map[Value]Key {
	output := make(map[Value]Key, len(input))
	for key, value := range input {
		output[value] = key
	}
	return output
}

// Returns the keys of a map in unspecified order
func Keys[Key comparable, Value any](input map[Key]Value) []Key {
	return maps.Keys(input)
}

// Returns the values of a map in unspecified order
func Values[Key comparable, Value any](input map[Key]Value) []Value {
	return maps.Values(input)
}
