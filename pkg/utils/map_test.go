package utils

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapHelpers(t *testing.T) {
	labels := map[string]int{"START": 0, "LOOP": 3}

	keys := Keys(labels)
	sort.Strings(keys)
	assert.Equal(t, []string{"LOOP", "START"}, keys)

	values := Values(labels)
	sort.Ints(values)
	assert.Equal(t, []int{0, 3}, values)

	assert.Equal(t, map[int]string{0: "START", 3: "LOOP"}, InvertedMap(labels))
	assert.Equal(t, []string{"0", "3"}, Map(values, func(v int) string { return string(rune('0' + v)) }))
}

func TestFormatUintBinary(t *testing.T) {
	assert.Equal(t, "00000101", FormatUintBinary(5, 8))
	assert.Equal(t, "1111", FormatUintBinary(15, 2))
}
