//go:build !linux

package ingest

import (
	"fmt"
	"os"
)

func openSerial(path string, baud int) (*os.File, error) {
	return nil, fmt.Errorf("serial source not supported on this platform")
}
