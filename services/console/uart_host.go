//go:build !rp2040

package console

import (
	"os"

	"wanderbot-go/types"
)

// OpenUART on hosts is the process terminal.
func OpenUART(types.ConsoleConfig) (Port, error) {
	return NewStreamPort(os.Stdin, os.Stdout), nil
}
