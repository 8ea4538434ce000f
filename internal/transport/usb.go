package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/gousb"

	"dbibackend/internal/config"
)

// USBTransport connects to the peer device over USB bulk endpoints.
type USBTransport struct {
	cfg config.TransportConfig
}

// NewUSBTransport creates a transport for the device identified in cfg.
func NewUSBTransport(cfg config.TransportConfig) *USBTransport {
	return &USBTransport{cfg: cfg}
}

// Connect opens the device, claims its default interface and locates the
// bulk IN/OUT endpoint pair. A missing device is a connect failure; the
// caller's retry policy decides whether to try again. The open itself has
// no cancellation hook in libusb, so a cancelled ctx lets it finish in the
// background and closes whatever it produced.
func (t *USBTransport) Connect(ctx context.Context) (Conn, error) {
	type result struct {
		conn Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		conn, err := t.open()
		ch <- result{conn: conn, err: err}
	}()

	select {
	case <-ctx.Done():
		go func() {
			if r := <-ch; r.conn != nil {
				r.conn.Close()
			}
		}()
		return nil, ctx.Err()
	case r := <-ch:
		return r.conn, r.err
	}
}

func (t *USBTransport) open() (Conn, error) {
	usbCtx := gousb.NewContext()

	dev, err := usbCtx.OpenDeviceWithVIDPID(gousb.ID(t.cfg.VendorID), gousb.ID(t.cfg.ProductID))
	if err != nil {
		usbCtx.Close()
		return nil, fmt.Errorf("%w: %v", ErrConnectFailed, err)
	}
	if dev == nil {
		usbCtx.Close()
		return nil, fmt.Errorf("%w: device %04x:%04x not present",
			ErrConnectFailed, t.cfg.VendorID, t.cfg.ProductID)
	}

	if err := dev.SetAutoDetach(true); err != nil {
		log.Printf("Could not enable kernel driver auto-detach: %v", err)
	}

	intf, done, err := dev.DefaultInterface()
	if err != nil {
		dev.Close()
		usbCtx.Close()
		return nil, fmt.Errorf("%w: claiming interface: %v", ErrConnectFailed, err)
	}

	conn := &usbConn{
		usbCtx:  usbCtx,
		dev:     dev,
		intf:    intf,
		done:    done,
		timeout: t.cfg.Timeout,
	}

	for _, ep := range intf.Setting.Endpoints {
		if ep.TransferType != gousb.TransferTypeBulk {
			continue
		}
		switch ep.Direction {
		case gousb.EndpointDirectionIn:
			conn.in, err = intf.InEndpoint(ep.Number)
		case gousb.EndpointDirectionOut:
			conn.out, err = intf.OutEndpoint(ep.Number)
		}
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("%w: opening endpoint %d: %v", ErrConnectFailed, ep.Number, err)
		}
	}
	if conn.in == nil || conn.out == nil {
		conn.Close()
		return nil, fmt.Errorf("%w: bulk endpoint pair not found", ErrConnectFailed)
	}

	log.Printf("Connected to device %04x:%04x", t.cfg.VendorID, t.cfg.ProductID)
	return conn, nil
}

// usbConn is one claimed USB interface with its bulk endpoint pair.
type usbConn struct {
	usbCtx  *gousb.Context
	dev     *gousb.Device
	intf    *gousb.Interface
	done    func()
	in      *gousb.InEndpoint
	out     *gousb.OutEndpoint
	timeout time.Duration
}

func (c *usbConn) opContext() (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.Background(), func() {}
	}
	return context.WithTimeout(context.Background(), c.timeout)
}

// Send writes the whole buffer to the OUT endpoint.
func (c *usbConn) Send(p []byte) error {
	ctx, cancel := c.opContext()
	defer cancel()

	for len(p) > 0 {
		n, err := c.out.WriteContext(ctx, p)
		if err != nil {
			return mapUSBError(err)
		}
		p = p[n:]
	}
	return nil
}

// Receive reads exactly n bytes from the IN endpoint.
func (c *usbConn) Receive(n int) ([]byte, error) {
	ctx, cancel := c.opContext()
	defer cancel()

	buf := make([]byte, n)
	read := 0
	for read < n {
		m, err := c.in.ReadContext(ctx, buf[read:])
		if err != nil {
			return nil, mapUSBError(err)
		}
		if m == 0 {
			return nil, fmt.Errorf("%w: %v", ErrConnectionLost, io.ErrUnexpectedEOF)
		}
		read += m
	}
	return buf, nil
}

func (c *usbConn) Close() error {
	if c.done != nil {
		c.done()
		c.done = nil
	}
	if c.dev != nil {
		c.dev.Close()
		c.dev = nil
	}
	if c.usbCtx != nil {
		err := c.usbCtx.Close()
		c.usbCtx = nil
		return err
	}
	return nil
}

func mapUSBError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, gousb.TransferTimedOut) {
		return fmt.Errorf("%w: %v", ErrTimedOut, err)
	}
	return fmt.Errorf("%w: %v", ErrConnectionLost, err)
}
