package main

import "fmt"

// verifyCount fails only when the count moved by less than the number of
// successful invocations. A larger move is reported as over.
func verifyCount(before, after, success int64) (over bool, err error) {
	moved := after - before
	if moved < success {
		return false, fmt.Errorf("lost updates: count moved by %d but %d invocations succeeded", moved, success)
	}
	return moved > success, nil
}
