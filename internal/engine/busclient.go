package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/godbus/dbus/v5"
)

// Default session bus location of the engine service.
const (
	DefaultBusName    = "org.kolom.Engine1"
	DefaultObjectPath = "/org/kolom/Engine1"
)

// BusOptions configures a BusClient.
type BusOptions struct {
	// BusName is the well-known name of the engine service.
	BusName string

	// ObjectPath is the engine object path.
	ObjectPath string

	// CallTimeout bounds each call. Zero means no bound.
	CallTimeout time.Duration

	// Logger receives call failures. Nil uses the process default.
	Logger *slog.Logger
}

// BusClient speaks to an out-of-process suggestion engine over the
// session bus. The engine service exports one object whose interface
// name equals its well-known bus name.
type BusClient struct {
	conn    *dbus.Conn
	obj     dbus.BusObject
	iface   string
	timeout time.Duration
	log     *slog.Logger
}

var _ Engine = (*BusClient)(nil)

// DialSession connects to the engine service on the session bus.
func DialSession(opts BusOptions) (*BusClient, error) {
	if opts.BusName == "" {
		opts.BusName = DefaultBusName
	}
	if opts.ObjectPath == "" {
		opts.ObjectPath = DefaultObjectPath
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}

	return &BusClient{
		conn:    conn,
		obj:     conn.Object(opts.BusName, dbus.ObjectPath(opts.ObjectPath)),
		iface:   opts.BusName,
		timeout: opts.CallTimeout,
		log:     opts.Logger,
	}, nil
}

// Close releases the bus connection.
func (c *BusClient) Close() error {
	return c.conn.Close()
}

func (c *BusClient) call(method string, args []interface{}, ret []interface{}) error {
	ctx := context.Background()
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	call := c.obj.CallWithContext(ctx, c.iface+"."+method, 0, args...)
	if call.Err != nil {
		c.log.Warn("engine call failed", "method", method, "err", call.Err)
		return fmt.Errorf("engine %s: %w", method, call.Err)
	}
	if len(ret) == 0 {
		return nil
	}
	if err := call.Store(ret...); err != nil {
		c.log.Warn("engine reply mismatch", "method", method, "err", err)
		return fmt.Errorf("engine %s reply: %w", method, err)
	}
	return nil
}

// SetSessionOptions forwards typing behavior toggles and the active
// layout to the engine. Called once when the host glue starts up.
func (c *BusClient) SetSessionOptions(layoutName string, includeEnglish, smartQuote bool) error {
	return c.call("SetSessionOptions",
		[]interface{}{layoutName, includeEnglish, smartQuote}, nil)
}

// SuggestionForKey implements Engine.
func (c *BusClient) SuggestionForKey(key Key, mods Modifiers, highlighted int) (CandidateSet, error) {
	var (
		candidates []string
		lonely     bool
		aux        string
		prevIndex  int32
	)
	err := c.call("Suggest",
		[]interface{}{uint32(key.Code), uint32(key.Char), uint32(mods), int32(highlighted)},
		[]interface{}{&candidates, &lonely, &aux, &prevIndex})
	if err != nil {
		return nil, err
	}

	return &Suggestion{
		Candidates: candidates,
		Lonely:     lonely,
		Auxiliary:  aux,
		PrevIndex:  int(prevIndex),
	}, nil
}

// Backspace implements Engine.
func (c *BusClient) Backspace(deleteWord bool) (CandidateSet, error) {
	var (
		candidates []string
		lonely     bool
		aux        string
		prevIndex  int32
	)
	err := c.call("Backspace",
		[]interface{}{deleteWord},
		[]interface{}{&candidates, &lonely, &aux, &prevIndex})
	if err != nil {
		return nil, err
	}

	return &Suggestion{
		Candidates: candidates,
		Lonely:     lonely,
		Auxiliary:  aux,
		PrevIndex:  int(prevIndex),
	}, nil
}

// CandidateCommitted implements Engine.
func (c *BusClient) CandidateCommitted(index int) error {
	return c.call("CandidateCommitted", []interface{}{int32(index)}, nil)
}

// FinishInputSession implements Engine.
func (c *BusClient) FinishInputSession() error {
	return c.call("FinishInputSession", nil, nil)
}
