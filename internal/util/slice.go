package util

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/exp/constraints"
)

func sortSlice[T constraints.Ordered](s []T) {
	sort.Slice(s, func(i, j int) bool {
		return s[i] < s[j]
	})
}

func SortedKeys[T constraints.Ordered, K any](input map[T]K) []T {
	result := make([]T, 0, len(input))
	for k := range input {
		result = append(result, k)
	}
	sortSlice(result)
	return result
}

// ParseIntList parses a comma separated list of integers like "1,2, 5"
func ParseIntList(text string) ([]int, error) {
	var result []int
	for _, part := range strings.Split(text, ",") {
		part = strings.TrimSpace(part)
		if len(part) <= 0 {
			continue
		}
		value, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid number '%s'", part)
		}
		result = append(result, value)
	}
	return result, nil
}
