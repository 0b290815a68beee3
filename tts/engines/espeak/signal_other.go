//go:build !unix

package espeak

import (
	"errors"
	"os"
)

var errNoJobControl = errors.New("pause is not supported on this platform")

func suspend(*os.Process) error { return errNoJobControl }

func resume(*os.Process) error { return errNoJobControl }
