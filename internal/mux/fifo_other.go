//go:build !unix

package mux

import "errors"

func makeFifo(string) error {
	return errors.New("mux: named pipes are not supported on this platform")
}
