// botctl sends console commands to the robot over a serial port.
//
//	botctl -port /dev/ttyACM0 s700 d
//
// With no command arguments it reads commands from stdin, one per line.
package main

import (
	"bufio"
	"flag"
	"os"
	"time"

	"go.bug.st/serial"
)

func main() {
	var portName string
	var baud int
	var timeout time.Duration
	flag.StringVar(&portName, "port", os.Getenv("BOTCTL_PORT"), "Serial port (default $BOTCTL_PORT)")
	flag.IntVar(&baud, "baud", 115200, "Baud rate")
	flag.DurationVar(&timeout, "timeout", time.Second, "Reply timeout")
	flag.Parse()

	if portName == "" {
		println("error: no serial port; use -port or BOTCTL_PORT")
		os.Exit(2)
	}

	port, err := serial.Open(portName, &serial.Mode{BaudRate: baud})
	if err != nil {
		println("error opening serial port:", err.Error())
		os.Exit(1)
	}
	defer port.Close()

	if err := port.SetReadTimeout(50 * time.Millisecond); err != nil {
		println("error setting read timeout:", err.Error())
		os.Exit(1)
	}

	c := NewClient(port, timeout)

	cmds := flag.Args()
	if len(cmds) == 0 {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			run(c, sc.Text())
		}
		return
	}
	for _, cmd := range cmds {
		if !run(c, cmd) {
			os.Exit(1)
		}
	}
}

func run(c *Client, cmd string) bool {
	reply, err := c.Do(cmd)
	if err != nil {
		println("error:", cmd, err.Error())
		return false
	}
	os.Stdout.WriteString(reply + "\n")
	return !IsError(reply)
}
