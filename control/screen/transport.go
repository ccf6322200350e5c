package screen

import (
	"fmt"
	"strings"

	"github.com/fulr/spidev"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
)

// ConnCloser is a Conn that must be closed when the program is done with it.
type ConnCloser interface {
	Conn
	Close() error
}

// Open connects to the shift register chain.  A name starting with /dev/ is opened directly as a
// spidev device; anything else is looked up in periph.io's SPI registry.
func Open(name string, speed physic.Frequency) (ConnCloser, error) {
	if strings.HasPrefix(name, "/dev/") {
		dev, err := spidev.NewSPIDevice(name)
		if err != nil {
			return nil, fmt.Errorf("open spidev %q: %w", name, err)
		}
		return &SPIDev{dev: dev}, nil
	}
	port, err := spireg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open spi port %q: %w", name, err)
	}
	conn, err := port.Connect(speed, spi.Mode0, 8)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("connect to spi port %q: %w", name, err)
	}
	return &periphConn{Conn: conn, port: port}, nil
}

type periphConn struct {
	spi.Conn
	port spi.PortCloser
}

func (c *periphConn) Close() error {
	if err := c.port.Close(); err != nil {
		return fmt.Errorf("close spi port: %w", err)
	}
	return nil
}

// SPIDev is a Conn on a raw spidev device node.
type SPIDev struct {
	dev *spidev.SPIDevice
}

// Tx shifts w out and copies what was shifted in to r.
func (s *SPIDev) Tx(w, r []byte) error {
	got, err := s.dev.Xfer(w)
	if err != nil {
		return fmt.Errorf("xfer: %w", err)
	}
	copy(r, got)
	return nil
}

func (s *SPIDev) Close() error {
	s.dev.Close()
	return nil
}
