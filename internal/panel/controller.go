package panel

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// Supervisor defaults.
const (
	// defaultProbeInterval is the pause between transport availability
	// probes while disconnected.
	defaultProbeInterval = 30 * time.Second

	// lineQueueSize bounds the raw-line channel. Overflow means the
	// processor (or its event callback) has stalled; that is fatal to the
	// session, because a discarded line could carry a state transition
	// the bank would otherwise never learn about.
	lineQueueSize = 256

	// commandQueueHeadroom is added to the full-poll size when sizing the
	// command channel, so a session's rehydration burst always fits.
	commandQueueHeadroom = 64
)

// closeOnce wraps a channel with sync.Once to prevent double-close panics.
type closeOnce struct {
	ch   chan struct{}
	once sync.Once
}

func newCloseOnce() *closeOnce {
	return &closeOnce{ch: make(chan struct{})}
}

func (c *closeOnce) Close() {
	c.once.Do(func() { close(c.ch) })
}

func (c *closeOnce) Done() <-chan struct{} {
	return c.ch
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Stats holds operational counters for the controller.
type Stats struct {
	LinesRx       uint64
	LinesDropped  uint64
	CommandsTx    uint64
	EventsEmitted uint64
	FaultsTotal   uint64
	SessionsTotal uint64
	Connected     bool
}

// Options configures a Controller.
type Options struct {
	// Transport is the link to the module. Required.
	Transport Transport

	// Keymap selects the command mapping: KeymapUSA or KeymapAUNZ.
	Keymap string

	// Model overrides the device model. Default: DefaultModel().
	Model *Model

	// SetupOptions overrides the reporting configuration string sent at
	// session start. Default: DefaultSetupOptions.
	SetupOptions string

	// ProbeInterval overrides the pause between availability probes.
	// Default: 30 seconds.
	ProbeInterval time.Duration

	// OnEvent receives each ChangeNotification, invoked synchronously on
	// the processor worker in emission order. Optional.
	OnEvent func(ChangeNotification)

	// OnConnect is invoked after a session is established. Optional.
	OnConnect func()

	// OnDisconnect is invoked after a session is torn down. Optional.
	OnDisconnect func()

	// Logger is an optional structured logger.
	Logger Logger
}

// Controller is the public face of the driver: it owns the connection
// supervisor and the per-session worker pipeline.
//
// Thread Safety: all exported methods are safe for concurrent use.
type Controller struct {
	transport     Transport
	model         *Model
	codec         *Codec
	keymap        Keymap
	setupOptions  string
	probeInterval time.Duration

	// Connection-requested state. running is true between Connect and
	// Disconnect; stop signals the supervisor to exit.
	mu      sync.Mutex
	running bool
	stop    *closeOnce
	wg      sync.WaitGroup

	// Active session, nil while probing.
	sessionMu sync.RWMutex
	session   *session

	onEvent      func(ChangeNotification)
	onConnect    func()
	onDisconnect func()
	logger       Logger

	// Statistics (atomic for lock-free access from workers).
	linesRx       atomic.Uint64
	linesDropped  atomic.Uint64
	commandsTx    atomic.Uint64
	eventsEmitted atomic.Uint64
	faultsTotal   atomic.Uint64
	sessionsTotal atomic.Uint64
}

// session bundles the state owned by one established connection: the device
// bank, the two queues, and the worker shutdown machinery.
type session struct {
	transport Transport
	bank      *DeviceBank

	commands chan string
	lines    chan string

	// fault carries the first worker-reported error to the supervisor.
	fault     chan error
	faultOnce sync.Once

	done *closeOnce
	wg   sync.WaitGroup
}

// newSession creates a session with a fresh all-unknown device bank.
func newSession(t Transport, m *Model) *session {
	return &session{
		transport: t,
		bank:      NewDeviceBank(m),
		commands:  make(chan string, m.deviceCount()+commandQueueHeadroom),
		lines:     make(chan string, lineQueueSize),
		fault:     make(chan error, 1),
		done:      newCloseOnce(),
	}
}

// reportFault records the first fatal error; later faults are ignored
// because the session is already being torn down.
func (s *session) reportFault(err error) {
	s.faultOnce.Do(func() { s.fault <- err })
}

// closing reports whether session shutdown has been signalled.
func (s *session) closing() bool {
	select {
	case <-s.done.Done():
		return true
	default:
		return false
	}
}

// enqueue places a command on the session queue.
//
// The queue is sized to hold a full rehydration poll, so overflow means the
// writer has stalled (or the transport has); that is fatal to the session,
// the same as a write fault.
func (s *session) enqueue(cmd string) error {
	// A command placed on a dying session's queue would be silently
	// discarded by teardown, so refuse once shutdown has been signalled.
	if s.closing() {
		return ErrNotConnected
	}
	select {
	case s.commands <- cmd:
		return nil
	case <-s.done.Done():
		return ErrNotConnected
	default:
		err := fmt.Errorf("%w: %d commands pending", ErrCommandOverflow, len(s.commands))
		s.reportFault(err)
		return err
	}
}

// New creates a Controller.
//
// Returns:
//   - *Controller: Ready for Connect
//   - error: ErrUnsupportedKeymap for an unknown keymap variant, or a
//     validation error for missing options
func New(opts Options) (*Controller, error) {
	if opts.Transport == nil {
		return nil, errors.New("panel: transport is required")
	}

	keymap, err := KeymapFor(opts.Keymap)
	if err != nil {
		return nil, err
	}

	model := opts.Model
	if model == nil {
		model = DefaultModel()
	}

	setup := opts.SetupOptions
	if setup == "" {
		setup = DefaultSetupOptions
	}

	interval := opts.ProbeInterval
	if interval <= 0 {
		interval = defaultProbeInterval
	}

	return &Controller{
		transport:     opts.Transport,
		model:         model,
		codec:         NewCodec(model),
		keymap:        keymap,
		setupOptions:  setup,
		probeInterval: interval,
		onEvent:       opts.OnEvent,
		onConnect:     opts.OnConnect,
		onDisconnect:  opts.OnDisconnect,
		logger:        opts.Logger,
	}, nil
}

// Connect requests a connection and starts the supervisor.
//
// The supervisor probes the transport until it is available, then runs a
// session until a fault tears it down, and repeats. Connect returns once
// the supervisor is started; it does not wait for the first session.
//
// Returns:
//   - error: ErrAlreadyConnected if a connection is already requested
func (c *Controller) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return ErrAlreadyConnected
	}
	c.running = true
	c.stop = newCloseOnce()

	c.wg.Add(1)
	go c.supervise(c.stop)

	return nil
}

// Disconnect stops the supervisor and tears down any active session. It
// blocks until all workers have terminated.
//
// Returns:
//   - error: ErrNotConnected if no connection was requested
func (c *Controller) Disconnect() error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return ErrNotConnected
	}
	c.running = false
	stop := c.stop
	c.mu.Unlock()

	stop.Close()
	c.wg.Wait()
	return nil
}

// Connected reports whether a session is currently established.
func (c *Controller) Connected() bool {
	c.sessionMu.RLock()
	defer c.sessionMu.RUnlock()
	return c.session != nil
}

// Send encodes a logical command and queues it for the writer.
//
// Accepted commands are 4/6-digit user codes (sent verbatim), keymap names
// for the configured variant, and SetupCommand.
//
// Returns:
//   - error: ErrNotConnected without an active session, ErrUnknownCommand
//     for an unresolvable name, ErrCommandOverflow if the queue is full
func (c *Controller) Send(name string) error {
	cmd, err := EncodeCommand(c.keymap, c.setupOptions, name)
	if err != nil {
		return err
	}

	c.sessionMu.RLock()
	s := c.session
	c.sessionMu.RUnlock()
	if s == nil {
		return ErrNotConnected
	}
	return s.enqueue(cmd)
}

// Status returns the last-known value and change time of one device topic.
//
// Returns:
//   - TriState: Stored value (StateUnknown until first observation)
//   - time.Time: Last change time (zero until the value first changes)
//   - error: ErrNotConnected without an active session, ErrInvalidQuery for
//     an unknown category/id/topic
func (c *Controller) Status(cat Category, id int, topic string) (TriState, time.Time, error) {
	c.sessionMu.RLock()
	s := c.session
	c.sessionMu.RUnlock()
	if s == nil {
		return StateUnknown, time.Time{}, ErrNotConnected
	}
	return s.bank.Status(cat, id, topic)
}

// Stats returns a snapshot of operational counters.
func (c *Controller) Stats() Stats {
	return Stats{
		LinesRx:       c.linesRx.Load(),
		LinesDropped:  c.linesDropped.Load(),
		CommandsTx:    c.commandsTx.Load(),
		EventsEmitted: c.eventsEmitted.Load(),
		FaultsTotal:   c.faultsTotal.Load(),
		SessionsTotal: c.sessionsTotal.Load(),
		Connected:     c.Connected(),
	}
}

// supervise is the connection state machine: probe, connect, run, recover.
func (c *Controller) supervise(stop *closeOnce) {
	defer c.wg.Done()

	firstProbe := true
	for {
		select {
		case <-stop.Done():
			return
		default:
		}

		if c.transport.Probe() {
			if err := c.runSession(stop); err != nil {
				c.faultsTotal.Add(1)
				c.logWarn("session ended on fault", "error", err)
			}
			select {
			case <-stop.Done():
				return
			default:
			}
		} else {
			c.logDebug("transport unavailable")
			if !firstProbe {
				// The module loses its reporting configuration on
				// panel power loss; push the setup string whenever we
				// can while waiting, so state reporting resumes even
				// if our probe raced another opener.
				c.rearmSetup()
			}
		}
		firstProbe = false

		select {
		case <-stop.Done():
			return
		case <-time.After(c.probeInterval):
		}
	}
}

// runSession opens the transport, rehydrates state, runs the three workers,
// and blocks until a worker faults or shutdown is requested. The transport
// is closed exactly once and all workers have terminated when it returns.
func (c *Controller) runSession(stop *closeOnce) error {
	if err := c.transport.Open(); err != nil {
		return fmt.Errorf("open transport: %w", err)
	}

	s := newSession(c.transport, c.model)
	c.preload(s)

	c.sessionMu.Lock()
	c.session = s
	c.sessionMu.Unlock()
	c.sessionsTotal.Add(1)

	s.wg.Add(3)
	go c.writeLoop(s)
	go c.readLoop(s)
	go c.processLoop(s)

	c.logInfo("session established", "devices", c.model.deviceCount())
	if c.onConnect != nil {
		c.onConnect()
	}

	var cause error
	select {
	case cause = <-s.fault:
	case <-stop.Done():
	}

	// Teardown: signal workers, close the transport to unblock the
	// reader, then wait for all three to exit before re-probing.
	s.done.Close()
	c.transport.Close()
	s.wg.Wait()

	c.sessionMu.Lock()
	c.session = nil
	c.sessionMu.Unlock()

	c.logInfo("session closed")
	if c.onDisconnect != nil {
		c.onDisconnect()
	}
	return cause
}

// preload queues the setup string and one direct query per device, so the
// fresh bank is rehydrated as soon as the writer starts.
func (c *Controller) preload(s *session) {
	s.enqueue(c.setupOptions) //nolint:errcheck // sized to fit the poll
	for _, cat := range c.model.Categories() {
		for id := 1; id <= c.model.MaxID(cat); id++ {
			query, err := c.codec.EncodeDirectQuery(cat, id)
			if err != nil {
				continue
			}
			s.enqueue(query) //nolint:errcheck // sized to fit the poll
		}
	}
}

// rearmSetup best-effort writes the setup string outside a session. Errors
// are expected (the probe just failed) and ignored.
func (c *Controller) rearmSetup() {
	if err := c.transport.Open(); err != nil {
		return
	}
	c.transport.Write([]byte(c.setupOptions)) //nolint:errcheck // best-effort re-arm
	c.transport.Close()
}

// writeLoop is the single writer worker: commands leave the queue and hit
// the transport strictly in enqueue order. A write failure is fatal to the
// session.
func (c *Controller) writeLoop(s *session) {
	defer s.wg.Done()

	for {
		select {
		case <-s.done.Done():
			return
		case cmd := <-s.commands:
			if _, err := s.transport.Write([]byte(cmd)); err != nil {
				if !s.closing() {
					s.reportFault(fmt.Errorf("write %q: %w", cmd, err))
				}
				return
			}
			c.commandsTx.Add(1)
		}
	}
}

// readLoop frames lines off the transport and feeds the raw-line queue.
// A read failure (hot-unplug included) is fatal to the session.
func (c *Controller) readLoop(s *session) {
	defer s.wg.Done()

	framer := newLineFramer(s.transport)
	for {
		select {
		case <-s.done.Done():
			return
		default:
		}

		line, err := framer.ReadLine()
		if err != nil {
			if errors.Is(err, errNoLine) {
				continue
			}
			if !s.closing() && !errors.Is(err, io.ErrClosedPipe) {
				s.reportFault(fmt.Errorf("read: %w", err))
			}
			return
		}

		c.linesRx.Add(1)
		select {
		case s.lines <- line:
		case <-s.done.Done():
			return
		default:
			// The processor has stalled long enough to fill the queue.
			// Dropping the line would leave the bank out of sync with
			// the panel until the next report for that device, so tear
			// the session down and let the reconnect re-poll everything.
			c.linesDropped.Add(1)
			s.reportFault(fmt.Errorf("%w: %d lines pending", ErrLineOverflow, len(s.lines)))
			return
		}
	}
}

// processLoop decodes raw lines, applies them to the device bank, and
// delivers change notifications synchronously in emission order. Lines that
// fail to decode are noise and are dropped without error.
func (c *Controller) processLoop(s *session) {
	defer s.wg.Done()

	for {
		select {
		case <-s.done.Done():
			return
		case line := <-s.lines:
			event, ok := c.codec.DecodeEvent(line)
			if !ok {
				c.linesDropped.Add(1)
				continue
			}
			for _, change := range s.bank.Apply(event) {
				c.eventsEmitted.Add(1)
				if c.onEvent != nil {
					c.onEvent(change)
				}
			}
		}
	}
}

// logDebug logs at debug level if a logger is set.
func (c *Controller) logDebug(msg string, keysAndValues ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, keysAndValues...)
	}
}

// logInfo logs at info level if a logger is set.
func (c *Controller) logInfo(msg string, keysAndValues ...any) {
	if c.logger != nil {
		c.logger.Info(msg, keysAndValues...)
	}
}

// logWarn logs at warn level if a logger is set.
func (c *Controller) logWarn(msg string, keysAndValues ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, keysAndValues...)
	}
}
