package server

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/antibyte/retrocpc/pkg/cpcvm"
	"github.com/antibyte/retrocpc/pkg/demos"
	"github.com/antibyte/retrocpc/pkg/driver"
	"github.com/antibyte/retrocpc/pkg/keyboard"
	"github.com/antibyte/retrocpc/pkg/logger"
	"github.com/antibyte/retrocpc/pkg/shared"
	"github.com/antibyte/retrocpc/pkg/sound"
	"github.com/antibyte/retrocpc/pkg/textcanvas"
)

// Session is one connected client with its own machine.
type Session struct {
	id     string
	server *Server
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	ctx    context.Context
	cancel context.CancelFunc
	log    logger.Scope

	canvas *textcanvas.Canvas
	keys   *keyboard.Buffer
	sound  *sound.Queue

	// mu guards vm while no program runs; a running program owns it
	mu      sync.Mutex
	vm      *cpcvm.VM
	running bool
	program driver.Program

	waiting atomic.Bool
	inputs  chan string
	escapes chan struct{}
}

func newSession(srv *Server, id string, conn *websocket.Conn) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:      id,
		server:  srv,
		conn:    conn,
		send:    make(chan []byte, 256),
		done:    make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
		log:     logger.For(logger.AreaServer, shortID(id)),
		canvas:  textcanvas.New(),
		keys:    keyboard.NewBuffer(),
		sound:   sound.NewQueue(shortID(id)),
		inputs:  make(chan string, 1),
		escapes: make(chan struct{}, 1),
	}
	s.vm = cpcvm.New(cpcvm.Options{
		Canvas: s.canvas,
		Sound:  s.sound,
		Input:  s.keys,
		RSX:    cpcvm.NewRSXRegistry(),
		Tag:    shortID(id),
	})
	return s
}

func (s *Session) start() {
	go s.writePump()
	go s.renderLoop()
	s.sendMessage(shared.Message{Type: shared.MessageTypeSession, SessionID: s.id})
	s.sendScreen()
	go s.readPump()
}

func (s *Session) close() {
	s.once.Do(func() {
		s.cancel()
		close(s.done)
		s.conn.Close()
		s.server.removeSession(s.id)
	})
}

// sendMessage queues a message for the write pump.
func (s *Session) sendMessage(msg shared.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.log.Error("marshal message: %v", err)
		return
	}
	select {
	case s.send <- data:
	case <-s.done:
	case <-time.After(time.Second):
		s.log.Warn("send timeout, message type %d dropped", msg.Type)
	}
}

func (s *Session) sendError(text string) {
	s.sendMessage(shared.Message{Type: shared.MessageTypeError, Content: text})
}

// sendScreen renders the canvas; it does not touch the VM.
func (s *Session) sendScreen() {
	x, y, visible := s.canvas.Cursor()
	s.sendMessage(shared.Message{
		Type:          shared.MessageTypeScreen,
		Lines:         s.canvas.Lines(),
		Mode:          s.canvas.Mode(),
		CursorX:       x,
		CursorY:       y,
		CursorVisible: visible,
	})
}

func (s *Session) flushSound() {
	for _, ev := range s.sound.Events() {
		s.sendMessage(shared.Message{
			Type:     shared.MessageTypeSound,
			Channel:  ev.Channel,
			Period:   ev.Tone.Period,
			Duration: ev.Tone.Duration,
			Volume:   ev.Tone.Volume,
			Noise:    ev.Tone.Noise,
			Bell:     ev.Bell,
		})
	}
}

// renderLoop pushes screen changes and sound events.
func (s *Session) renderLoop() {
	ticker := time.NewTicker(getRenderInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if s.canvas.TakeDirty() {
				s.sendScreen()
			}
			s.flushSound()
		case <-s.done:
			return
		}
	}
}

// readPump liest Nachrichten vom Client
func (s *Session) readPump() {
	defer s.close()

	s.conn.SetReadLimit(getMaxMessageSize())
	s.conn.SetReadDeadline(time.Now().Add(getPongWait()))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(getPongWait()))
		return nil
	})

	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNoStatusReceived) {
				s.log.Warn("unexpected close: %v", err)
			} else {
				s.log.Debug("connection closed: %v", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		var msg shared.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			s.log.Warn("invalid message: %v", err)
			s.sendError("invalid message")
			continue
		}
		s.handle(msg)
	}
}

// writePump schreibt Nachrichten und Pings zum Client
func (s *Session) writePump() {
	ticker := time.NewTicker(getPingPeriod())
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()
	for {
		select {
		case data := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(getWriteWait()))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.log.Debug("write failed: %v", err)
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(getWriteWait()))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.log.Debug("ping failed: %v", err)
				return
			}
		case <-s.done:
			s.conn.SetWriteDeadline(time.Now().Add(getWriteWait()))
			s.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

func (s *Session) handle(msg shared.Message) {
	switch msg.Type {
	case shared.MessageTypeText:
		s.withIdleVM(func(vm *cpcvm.VM) {
			if err := vm.Print(0, msg.Content); err != nil {
				s.reportFault(err)
				vm.ClearStop()
			}
		})
		s.sendScreen()

	case shared.MessageTypeKey:
		if msg.State != nil {
			s.keys.SetKeyState(msg.Key, *msg.State)
		} else {
			s.keys.PutKey(msg.Content)
		}

	case shared.MessageTypeEscape:
		s.keys.PutKey("\x1b")
		select {
		case s.escapes <- struct{}{}:
		default:
		}

	case shared.MessageTypeInput:
		if !s.waiting.Load() {
			s.sendError("no INPUT pending")
			return
		}
		select {
		case s.inputs <- msg.Content:
		default:
			s.sendError("input already pending")
		}

	case shared.MessageTypeRun:
		s.runDemo(msg.Content)

	case shared.MessageTypeCont:
		s.cont()

	case shared.MessageTypeSnapshot:
		s.saveSnapshot(msg.Label)

	case shared.MessageTypeRestore:
		s.restoreSnapshot(firstNonEmpty(msg.ID, msg.Label))

	case shared.MessageTypeReset:
		s.withIdleVM(func(vm *cpcvm.VM) {
			vm.Reset()
			s.sound.Reset()
			s.keys.ClearInput()
		})
		s.sendScreen()

	default:
		s.sendError("unknown message type " + strconv.Itoa(int(msg.Type)))
	}
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// withIdleVM runs fn with the VM unless a program is running.
func (s *Session) withIdleVM(fn func(vm *cpcvm.VM)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.sendError("program running")
		return false
	}
	fn(s.vm)
	return true
}

func (s *Session) reportFault(err error) {
	f, ok := cpcvm.AsFault(err)
	if !ok {
		s.sendError(err.Error())
		return
	}
	s.sendMessage(shared.Message{
		Type:    shared.MessageTypeFault,
		Code:    f.Code,
		Line:    lineNumber(f.Line),
		Content: f.Error(),
	})
}

func lineNumber(label string) int {
	n, _ := strconv.Atoi(label)
	return n
}

func (s *Session) files() driver.Files {
	if s.server.store == nil {
		return nil
	}
	return s.server.store
}

func (s *Session) runDemo(name string) {
	demo, ok := demos.Get(name)
	if !ok {
		s.sendError("unknown program " + name)
		return
	}
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.sendError("program running")
		return
	}
	s.running = true
	s.program = demo.Program
	demo.Install(s.vm)
	d := driver.New(s.vm, demo.Program, driver.Options{Input: s, Files: s.files(), Tag: shortID(s.id)})
	s.mu.Unlock()

	s.log.Info("run %s", demo.Name)
	go s.run(func(ctx context.Context) (driver.Outcome, error) {
		return d.Start(ctx, demo.FirstLine())
	})
}

func (s *Session) cont() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.sendError("program running")
		return
	}
	if s.program == nil || !s.vm.CanContinue() {
		err := s.vm.ComposeFault(cpcvm.FaultCannotContinue, "")
		s.mu.Unlock()
		s.reportFault(err)
		return
	}
	s.vm.ClearStop()
	_ = s.vm.Cont()
	s.running = true
	d := driver.New(s.vm, s.program, driver.Options{Input: s, Files: s.files(), Tag: shortID(s.id)})
	s.mu.Unlock()

	go s.run(d.Run)
}

// run drives a program to its outcome and reports it.
func (s *Session) run(start func(ctx context.Context) (driver.Outcome, error)) {
	out, err := start(s.ctx)

	s.mu.Lock()
	s.running = false
	if err == nil {
		s.describeOutcome(out)
		s.vm.ClearStop()
	}
	line := lineNumber(s.vm.Line())
	s.mu.Unlock()

	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.sendError(err.Error())
		}
		return
	}
	s.flushSound()
	if out.Fault != nil {
		s.reportFault(out.Fault)
	}
	s.sendMessage(shared.Message{Type: shared.MessageTypeStop, Stop: string(out.Reason), Line: line})
	s.sendScreen()
}

// describeOutcome prints what the machine would print after the program.
func (s *Session) describeOutcome(out driver.Outcome) {
	vm := s.vm
	vm.ClearStop()
	switch {
	case out.Fault != nil:
		_ = vm.Print(0, out.Fault.Error(), "\r\n")
	case out.Reason == cpcvm.StopBreak:
		if p, ok := out.Payload.(cpcvm.BreakPayload); ok {
			_ = vm.Print(0, "\r\nBreak in "+strconv.Itoa(lineNumber(p.Line)), "\r\n")
		}
	case out.Reason == cpcvm.StopStop:
		_ = vm.Print(0, "\r\nBreak in "+strconv.Itoa(lineNumber(vm.Line())), "\r\n")
	}
}

// ReadLine answers INPUT from client input messages.
func (s *Session) ReadLine(ctx context.Context, req cpcvm.InputPayload) (string, error) {
	s.waiting.Store(true)
	defer s.waiting.Store(false)
	s.sendScreen()
	s.sendMessage(shared.Message{Type: shared.MessageTypeWaiting, Content: req.Message})
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case text := <-s.inputs:
			return text, nil
		case <-s.escapes:
			// the driver may have taken the ESC already
			if s.keys.TakeEscape() {
				return "", driver.ErrEscape
			}
		}
	}
}

func (s *Session) saveSnapshot(label string) {
	if s.server.store == nil {
		s.sendError("no store")
		return
	}
	var data []byte
	var err error
	if !s.withIdleVM(func(vm *cpcvm.VM) { data, err = vm.Snapshot().Encode() }) {
		return
	}
	if err != nil {
		s.sendError(err.Error())
		return
	}
	id, err := s.server.store.SaveSnapshot(s.ctx, label, data)
	if err != nil {
		s.log.Error("save snapshot: %v", err)
		s.sendError("snapshot failed")
		return
	}
	if s.server.retention > 0 {
		if _, err := s.server.store.PruneSnapshots(s.ctx, s.server.retention); err != nil {
			s.log.Warn("prune snapshots: %v", err)
		}
	}
	s.sendMessage(shared.Message{Type: shared.MessageTypeSnapshot, ID: id, Label: label})
}

func (s *Session) restoreSnapshot(idOrLabel string) {
	if s.server.store == nil {
		s.sendError("no store")
		return
	}
	data, err := s.server.store.LoadSnapshot(s.ctx, idOrLabel)
	if err != nil {
		s.sendError(err.Error())
		return
	}
	snap, err := cpcvm.DecodeSnapshot(data)
	if err != nil {
		s.sendError(err.Error())
		return
	}
	ok := s.withIdleVM(func(vm *cpcvm.VM) {
		err = vm.RestoreSnapshot(snap)
	})
	if !ok {
		return
	}
	if err != nil {
		s.sendError(err.Error())
		return
	}
	s.sendScreen()
}

// shortID is the log tag of a session.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
