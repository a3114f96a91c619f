//go:build rp2040

package console

import (
	uartx "github.com/jangala-dev/tinygo-uartx/uartx"

	"wanderbot-go/errcode"
	"wanderbot-go/types"
)

// OpenUART configures the board UART named in c. Pins use the uartx defaults.
func OpenUART(c types.ConsoleConfig) (Port, error) {
	var u *uartx.UART
	switch c.UART {
	case "uart0":
		u = uartx.UART0
	case "uart1":
		u = uartx.UART1
	default:
		return nil, errcode.Wrap(errcode.Unsupported, "console", "unknown uart "+c.UART, nil)
	}
	if err := u.Configure(uartx.UARTConfig{BaudRate: c.Baud}); err != nil {
		return nil, errcode.Wrap(errcode.Error, "console", "uart configure", err)
	}
	return u, nil
}
