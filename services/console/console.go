// Package console is a line-oriented serial control surface. It never talks
// to the engine: speed changes go out as config/drive updates and status comes
// from the retained drive/stats.
package console

import (
	"context"
	"time"

	"wanderbot-go/bus"
	"wanderbot-go/errcode"
	"wanderbot-go/types"
	"wanderbot-go/x/conv"
	"wanderbot-go/x/strconvx"
)

var (
	topicConfigDrive = bus.T("config", "drive")
	topicDriveStats  = bus.T("drive", "stats")
)

const (
	maxLine  = 32
	helpText = "s<duty> set speed, d status, ? help"
)

// Port is the byte stream the console runs over (uartx on the board).
type Port interface {
	Write(p []byte) (int, error)
	RecvSomeContext(ctx context.Context, buf []byte) (int, error)
}

type Service struct {
	port Port

	cfg   *types.DriveConfig
	stats *types.DriveStats
}

func New(port Port) *Service { return &Service{port: port} }

// Start runs the reader and the command loop until ctx is done.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	if s.port == nil {
		return errcode.Wrap(errcode.InvalidParams, "console", "no port", nil)
	}
	lines := make(chan string, 4)
	go s.readLoop(ctx, lines)
	go s.serviceLoop(ctx, conn, lines)
	return nil
}

// readLoop splits the stream on LF, ignoring CR. Over-long lines are cut.
func (s *Service) readLoop(ctx context.Context, out chan<- string) {
	buf := make([]byte, 16)
	line := make([]byte, 0, maxLine)
	for {
		n, err := s.port.RecvSomeContext(ctx, buf)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			time.Sleep(10 * time.Millisecond)
			continue
		}
		for _, b := range buf[:n] {
			switch b {
			case '\n':
				select {
				case out <- string(line):
				case <-ctx.Done():
					return
				}
				line = line[:0]
			case '\r':
			default:
				if len(line) < maxLine {
					line = append(line, b)
				}
			}
		}
	}
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection, lines <-chan string) {
	cfgSub := conn.Subscribe(topicConfigDrive)
	defer conn.Unsubscribe(cfgSub)
	statsSub := conn.Subscribe(topicDriveStats)
	defer conn.Unsubscribe(statsSub)

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-cfgSub.Channel():
			if c, ok := msg.Payload.(types.DriveConfig); ok {
				s.cfg = &c
			}
		case msg := <-statsSub.Channel():
			if st, ok := msg.Payload.(types.DriveStats); ok {
				s.stats = &st
			}
		case line := <-lines:
			if line == "" {
				continue
			}
			reply := s.handle(conn, line)
			_, _ = s.port.Write(append(reply, '\r', '\n'))
		}
	}
}

// handle runs one command line and returns the reply.
func (s *Service) handle(conn *bus.Connection, line string) []byte {
	switch line[0] {
	case 's':
		if err := s.setSpeed(conn, line[1:]); err != nil {
			return errReply(err)
		}
		return []byte("ok")
	case 'd':
		return s.status()
	case '?':
		return []byte(helpText)
	default:
		return errReply(errcode.UnknownCommand)
	}
}

func (s *Service) setSpeed(conn *bus.Connection, arg string) error {
	if s.cfg == nil {
		return errcode.Busy
	}
	v, err := strconvx.ParseUint(arg, 10, 16)
	if err != nil {
		return errcode.Wrap(errcode.InvalidParams, "console", "duty", err)
	}
	if v > uint64(s.cfg.Period) {
		return errcode.Wrap(errcode.InvalidParams, "console", "duty above period", nil)
	}
	next := *s.cfg
	next.Speed = uint16(v)
	conn.PublishValue(topicConfigDrive, next, true)
	s.cfg = &next
	println("Info: [console] speed", v)
	return nil
}

// status is one line: state and key counters from the latest drive/stats.
func (s *Service) status() []byte {
	st := s.stats
	if st == nil {
		return []byte("state=unknown")
	}
	b := make([]byte, 0, 96)
	b = append(b, "state="...)
	b = append(b, st.State.String()...)
	b = conv.AppendField(b, "duty", uint64(st.Duty))
	b = conv.AppendField(b, "speed", uint64(st.Speed))
	b = conv.AppendField(b, "ticks", uint64(st.Ticks))
	b = conv.AppendField(b, "escapes", uint64(st.Escapes))
	b = conv.AppendField(b, "preempted", uint64(st.Preempted))
	b = conv.AppendField(b, "streak", uint64(st.Consecutive))
	b = conv.AppendField(b, "coalesced", uint64(st.Coalesced))
	return b
}

func errReply(err error) []byte {
	return append([]byte("err "), string(errcode.Of(err))...)
}
