package utils

// Filter applies a filter function to each element in a slice
// and returns a new slice containing only the elements for which the filter function returns true.
func Filter[T any](slice []T, filterFunc func(T) bool) []T {
	var result []T
	for _, item := range slice {
		if filterFunc(item) {
			result = append(result, item)
		}
	}
	return result
}

// Chunk splits a slice into consecutive batches of at most size elements.
// The batches share the input's backing array.
func Chunk[T any](slice []T, size int) [][]T {
	if size < 1 {
		size = 1
	}
	batches := make([][]T, 0, (len(slice)+size-1)/size)
	for start := 0; start < len(slice); start += size {
		end := start + size
		if end > len(slice) {
			end = len(slice)
		}
		batches = append(batches, slice[start:end:end])
	}
	return batches
}

// Dedupe returns the slice with repeated keys removed, keeping the first occurrence
func Dedupe[T any, K comparable](slice []T, key func(T) K) []T {
	seen := make(map[K]bool, len(slice))
	result := make([]T, 0, len(slice))
	for _, item := range slice {
		k := key(item)
		if seen[k] {
			continue
		}
		seen[k] = true
		result = append(result, item)
	}
	return result
}
