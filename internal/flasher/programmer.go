package flasher

import (
	"context"

	"github.com/ZebulonRouseFrantzich/kinstall/internal/device"
)

// LineSink receives each line the programmer prints.
type LineSink func(line string)

// Programmer drives the external device-programming tool.
type Programmer interface {
	// Configure resolves the board name and serial port for dev.
	Configure(ctx context.Context, dev device.Device) (board, port string, err error)
	// Process runs the tool with args until it exits, passing every output
	// line to sink on the calling goroutine.
	Process(ctx context.Context, args []string, sink LineSink) error
	// Kill force-terminates a running tool. It is a no-op when nothing runs.
	Kill() error
	// CheckKillExit waits for a killed tool to be reaped.
	CheckKillExit() error
}
