// Package screen drives the nixie tubes, and retains what they show for debugging the rest of the
// program without the tubes attached.
//
// Each tube sits behind a K155ID1 BCD decoder.  The six decoders and the two colon drivers are fed
// from a chain of four 8-bit shift registers, so a frame is four bytes shifted out over SPI: hours,
// minutes, seconds (tens in the high nibble), then the colons in the low two bits.
package screen

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/net/trace"
)

const (
	tubes        = 6
	blankCode    = 0x0F // BCD inputs 10-15 switch every cathode off.
	previewScale = 8    // Size of one font pixel in the rendered image.
)

// bcd maps a digit to the decoder inputs that light it.
var bcd = [10]uint8{0x0, 0x1, 0x2, 0x3, 0x4, 0x5, 0x6, 0x7, 0x8, 0x9}

var (
	writeErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tube_write_errors",
		Help: "count of frames that could not be shifted out to the tubes",
	})
	framesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tube_frames_sent",
		Help: "count of frames shifted out to the tubes",
	})
)

// Conn is a half-duplex connection to the shift registers.  periph.io's spi.Conn satisfies it.
type Conn interface {
	Tx(w, r []byte) error
}

// code returns the decoder input for one tube showing digit, or blankCode.
func code(digit uint8) uint8 {
	if int(digit) >= len(bcd) {
		return blankCode
	}
	return bcd[digit]
}

// Tubes is the tube display.  It implements display.Encoder.
type Tubes struct {
	conn Conn
	l    trace.EventLog

	mu     sync.Mutex
	codes  [tubes]uint8 // Right to left; index 0 is the seconds ones tube.
	colons uint8
	sent   [4]byte
	synced bool // sent is what the shift registers hold.
}

// New returns Tubes writing to conn.  A nil conn keeps the frames in memory only.
func New(conn Conn) *Tubes {
	t := &Tubes{conn: conn, l: trace.NewEventLog("display", "tubes")}
	for i := range t.codes {
		t.codes[i] = blankCode
	}
	return t
}

// Close finishes the event log.
func (t *Tubes) Close() {
	t.l.Finish()
}

// Render shows three two-digit groups and the colons.
func (t *Tubes) Render(groups [3]uint8, colons uint8) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for g, v := range groups {
		// groups[0] is hours, which are the two leftmost tubes.
		i := 2 * (2 - g)
		t.codes[i] = code(v % 10)
		t.codes[i+1] = code(v / 10 % 10)
	}
	t.colons = colons & 0b11
	t.flush()
}

// Blank darkens the tubes in mask.  Bits 0-5 are tubes right to left, bit 6 is the right colon and
// bit 7 the left colon.
func (t *Tubes) Blank(mask uint8) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.codes {
		if mask&(1<<i) != 0 {
			t.codes[i] = blankCode
		}
	}
	if mask&(1<<6) != 0 {
		t.colons &^= 1 << 0
	}
	if mask&(1<<7) != 0 {
		t.colons &^= 1 << 1
	}
	t.flush()
}

// Exercise lights every cathode of every tube in turn, 00 through 99 with both colons on, holding
// each digit for delay.  It leaves the last digit showing.
func (t *Tubes) Exercise(ctx context.Context, delay time.Duration) error {
	for d := uint8(0); d < 10; d++ {
		v := d*10 + d
		t.Render([3]uint8{v, v, v}, 0b11)
		select {
		case <-ctx.Done():
			return fmt.Errorf("exercising tubes: %w", ctx.Err())
		case <-time.After(delay):
		}
	}
	return nil
}

// Frame returns the bytes that represent what the tubes currently show.
func (t *Tubes) Frame() [4]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.frame()
}

func (t *Tubes) frame() [4]byte {
	return [4]byte{
		t.codes[5]<<4 | t.codes[4],
		t.codes[3]<<4 | t.codes[2],
		t.codes[1]<<4 | t.codes[0],
		t.colons,
	}
}

// flush shifts the frame out.  The registers latch, so an unchanged frame is not resent.
func (t *Tubes) flush() {
	f := t.frame()
	if t.conn == nil || (t.synced && f == t.sent) {
		return
	}
	if err := t.conn.Tx(f[:], nil); err != nil {
		t.synced = false
		writeErrors.Inc()
		t.l.Errorf("write frame %x: %v", f, err)
		return
	}
	framesSent.Inc()
	t.sent = f
	t.synced = true
}

// String renders the tubes as text, like "12:34:56".
func (t *Tubes) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.text()
}

func (t *Tubes) text() string {
	glyph := func(c uint8) byte {
		if c == blankCode {
			return ' '
		}
		return '0' + c
	}
	colon := func(on bool) byte {
		if on {
			return ':'
		}
		return ' '
	}
	return string([]byte{
		glyph(t.codes[5]), glyph(t.codes[4]),
		colon(t.colons&(1<<1) != 0),
		glyph(t.codes[3]), glyph(t.codes[2]),
		colon(t.colons&(1<<0) != 0),
		glyph(t.codes[1]), glyph(t.codes[0]),
	})
}

// Preview draws the tubes as an image.
func (t *Tubes) Preview() image.Image {
	t.mu.Lock()
	s := t.text()
	t.mu.Unlock()

	face := basicfont.Face7x13
	small := image.NewNRGBA(image.Rect(0, 0, len(s)*face.Advance, face.Height))
	for x := 0; x < small.Bounds().Dx(); x++ {
		for y := 0; y < small.Bounds().Dy(); y++ {
			small.Set(x, y, color.Black)
		}
	}
	drawer := &font.Drawer{
		Dst:  small,
		Src:  image.NewUniform(color.NRGBA{R: 0xff, G: 0x70, B: 0x10, A: 0xff}),
		Face: face,
		Dot:  fixed.P(0, face.Ascent),
	}
	drawer.DrawString(s)

	b := small.Bounds()
	img := image.NewNRGBA(image.Rect(0, 0, b.Dx()*previewScale, b.Dy()*previewScale))
	for x := 0; x < img.Bounds().Dx(); x++ {
		for y := 0; y < img.Bounds().Dy(); y++ {
			img.Set(x, y, small.At(x/previewScale, y/previewScale))
		}
	}
	return img
}

// ServeHTTP serves the current tube state as a PNG.
func (t *Tubes) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	w.Header().Add("content-type", "image/png")
	w.WriteHeader(http.StatusOK)
	if err := png.Encode(w, t.Preview()); err != nil {
		log.Printf("encoding image: %v", err)
	}
}
