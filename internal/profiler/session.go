package profiler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/tliron/commonlog"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/jbearak/Rlsp/internal/wire"
)

var log = commonlog.GetLogger("profile-startup")

// Request IDs. The run sends exactly two requests.
const (
	initializeID int64 = 1
	shutdownID   int64 = 99
)

const (
	defaultInitializeTimeout  = 30 * time.Second
	defaultDiagnosticsTimeout = 30 * time.Second
	defaultPollInterval       = time.Second

	// settleDelay gives the server a moment to start background indexing
	// after initialized, so the run observes whether that work delays
	// diagnostics.
	settleDelay = 100 * time.Millisecond

	// shutdownGrace is how long the server gets to flush after shutdown
	// before exit is sent. The shutdown response is deliberately not
	// awaited; this is a measurement tool, not a conforming client.
	shutdownGrace = 200 * time.Millisecond

	exitWait = 5 * time.Second
)

// ErrInitializeTimeout reports that the server never answered initialize.
var ErrInitializeTimeout = errors.New("initialize response timed out")

// Config describes one measurement run.
type Config struct {
	// ServerPath is the language server binary, launched with --stdio.
	ServerPath string
	// Workspace is the root the server is pointed at; also the working
	// directory of the spawned process.
	Workspace string
	// Files are the documents to open, absolute paths, opened in order.
	Files []string
	// LanguageID declared on didOpen. Defaults to "r".
	LanguageID string

	InitializeTimeout  time.Duration
	DiagnosticsTimeout time.Duration
	PollInterval       time.Duration

	// Progress receives live operator feedback. Defaults to stderr.
	Progress io.Writer
}

func (c Config) withDefaults() Config {
	if c.LanguageID == "" {
		c.LanguageID = "r"
	}
	if c.InitializeTimeout == 0 {
		c.InitializeTimeout = defaultInitializeTimeout
	}
	if c.DiagnosticsTimeout == 0 {
		c.DiagnosticsTimeout = defaultDiagnosticsTimeout
	}
	if c.PollInterval == 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.Progress == nil {
		c.Progress = os.Stderr
	}
	return c
}

// Preflight verifies the server binary and every file to open before
// anything is spawned.
func (c Config) Preflight() error {
	for _, f := range c.Files {
		if _, err := os.Stat(f); err != nil {
			return fmt.Errorf("file not found: %s", f)
		}
	}
	return CheckExecutable(c.ServerPath)
}

// FileDiagnostics is the reported diagnostic count for one document.
type FileDiagnostics struct {
	File  string
	Count int
}

// Result is everything a run measured. Milestones are offsets from the
// instant the run started (just before the spawn). FirstDiagnostic fields
// are meaningful only when Diagnostics is non-empty; AllDiagnosed only when
// Complete is true.
type Result struct {
	Spawn                time.Duration
	InitializeResponse   time.Duration
	InitializedSent      time.Duration
	FirstDiagnostic      time.Duration
	FirstFromInitialized time.Duration
	AllDiagnosed         time.Duration

	// Complete reports that every opened file received diagnostics before
	// the deadline.
	Complete bool
	// Diagnostics holds per-file counts in first-seen order, keyed by URI
	// basename.
	Diagnostics []FileDiagnostics

	Timeline *Timeline
}

// Run performs the full measurement: preflight, spawn, handshake, document
// opens, diagnostics wait and shutdown. Preflight and handshake failures are
// returned as errors; a diagnostics deadline is not an error and yields a
// partial Result.
func Run(cfg Config) (*Result, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Preflight(); err != nil {
		return nil, err
	}

	fmt.Fprintln(cfg.Progress, "Starting raven LSP server...")
	timeline := NewTimeline()

	proc, err := StartServer(cfg.ServerPath, cfg.Workspace)
	if err != nil {
		return nil, err
	}
	StartLogReader(proc.Stderr(), timeline.Start(), cfg.Progress)

	spawned := timeline.Mark(MilestoneSpawn)
	fmt.Fprintf(cfg.Progress, "  Process spawned: %.1fms\n", Millis(spawned))

	recv := wire.NewReceiver(proc.Stdout())
	defer recv.Close()

	sess := newSession(cfg, timeline, proc.Stdin(), recv)
	result, err := sess.run()
	if err != nil {
		proc.Kill()
		return nil, err
	}

	sess.shutdown()
	if err := proc.WaitTimeout(exitWait); err != nil {
		log.Warningf("%s", err.Error())
	}
	return result, nil
}

// session drives the protocol over an abstract stdio pair, so tests can
// substitute in-process pipes for a real server.
type session struct {
	cfg      Config
	timeline *Timeline
	out      io.Writer
	recv     *wire.Receiver

	initializedAt time.Time
	counts        map[string]int
	seen          []string
	complete      bool
}

func newSession(cfg Config, timeline *Timeline, out io.Writer, recv *wire.Receiver) *session {
	return &session{
		cfg:      cfg.withDefaults(),
		timeline: timeline,
		out:      out,
		recv:     recv,
		counts:   make(map[string]int),
	}
}

func (s *session) run() (*Result, error) {
	if err := s.initialize(); err != nil {
		return nil, err
	}
	s.sendInitialized()
	time.Sleep(settleDelay)
	if err := s.openFiles(); err != nil {
		return nil, err
	}
	s.collectDiagnostics()
	return s.result(), nil
}

func (s *session) initialize() error {
	rootURI := PathToURI(s.cfg.Workspace)
	pid := protocol.Integer(os.Getpid())
	relatedInformation := true

	params := protocol.InitializeParams{
		ProcessID: &pid,
		RootURI:   &rootURI,
		Capabilities: protocol.ClientCapabilities{
			TextDocument: &protocol.TextDocumentClientCapabilities{
				PublishDiagnostics: &protocol.PublishDiagnosticsClientCapabilities{
					RelatedInformation: &relatedInformation,
				},
			},
		},
		WorkspaceFolders: []protocol.WorkspaceFolder{
			{URI: rootURI, Name: filepath.Base(s.cfg.Workspace)},
		},
		InitializationOptions: map[string]any{
			"crossFile": map[string]any{
				"enabled":        true,
				"indexWorkspace": true,
				"packages":       map[string]any{"enabled": true},
			},
		},
	}

	req, err := wire.NewRequest(initializeID, wire.MethodInitialize, params)
	if err != nil {
		return err
	}
	if err := wire.WriteMessage(s.out, req); err != nil {
		return fmt.Errorf("send initialize: %w", err)
	}
	log.Debug("initialize sent")

	deadline := time.Now().Add(s.cfg.InitializeTimeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return ErrInitializeTimeout
		}
		msg, err := s.recv.Receive(remaining)
		if err != nil {
			// Deadline passed or the server went away; fatal either way.
			return ErrInitializeTimeout
		}
		if !msg.IsResponseTo(initializeID) {
			log.Debugf("ignoring %s before initialize response", msg.Method)
			continue
		}
		if msg.Error != nil {
			return fmt.Errorf("initialize failed: %s", msg.Error.Message)
		}
		break
	}

	elapsed := s.timeline.Mark(MilestoneInitializeResponse)
	fmt.Fprintf(s.cfg.Progress, "  Initialize response: %.1fms\n", Millis(elapsed))
	return nil
}

func (s *session) sendInitialized() {
	note, err := wire.NewNotification(wire.MethodInitialized, protocol.InitializedParams{})
	if err == nil {
		err = wire.WriteMessage(s.out, note)
	}
	if err != nil {
		log.Errorf("send initialized: %s", err.Error())
	}
	s.initializedAt = time.Now()
	elapsed := s.timeline.Mark(MilestoneInitializedSent)
	fmt.Fprintf(s.cfg.Progress, "  Initialized sent: %.1fms\n", Millis(elapsed))
}

func (s *session) openFiles() error {
	for _, path := range s.cfg.Files {
		text, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		params := protocol.DidOpenTextDocumentParams{
			TextDocument: protocol.TextDocumentItem{
				URI:        PathToURI(path),
				LanguageID: s.cfg.LanguageID,
				Version:    1,
				Text:       string(text),
			},
		}
		note, err := wire.NewNotification(wire.MethodTextDocumentDidOpen, params)
		if err != nil {
			return err
		}
		if err := wire.WriteMessage(s.out, note); err != nil {
			return fmt.Errorf("send didOpen for %s: %w", path, err)
		}
		name := filepath.Base(path)
		elapsed := s.timeline.Mark("opened " + name)
		fmt.Fprintf(s.cfg.Progress, "  Opened %s: %.1fms\n", name, Millis(elapsed))
	}
	return nil
}

// collectDiagnostics polls for publishDiagnostics until every opened file
// has reported or the deadline passes. Deadline expiry is not an error; the
// report simply shows what arrived.
func (s *session) collectDiagnostics() {
	fmt.Fprintln(s.cfg.Progress, "\nWaiting for diagnostics...")

	expected := make(map[string]bool, len(s.cfg.Files))
	for _, f := range s.cfg.Files {
		expected[filepath.Base(f)] = true
	}

	deadline := time.Now().Add(s.cfg.DiagnosticsTimeout)
	for time.Now().Before(deadline) {
		msg, err := s.recv.Receive(s.cfg.PollInterval)
		if errors.Is(err, wire.ErrStreamClosed) {
			log.Warning("server closed its output before all diagnostics arrived")
			return
		}
		if err != nil {
			continue
		}
		if !msg.IsNotification(protocol.ServerTextDocumentPublishDiagnostics) {
			continue
		}

		var params protocol.PublishDiagnosticsParams
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			log.Errorf("bad publishDiagnostics params: %s", err.Error())
			continue
		}

		if len(s.counts) == 0 {
			total := s.timeline.Mark(MilestoneFirstDiagnostic)
			fmt.Fprintf(s.cfg.Progress, "\n  First diagnostic: %.1fms (total)\n", Millis(total))
			fmt.Fprintf(s.cfg.Progress, "    From initialized: %.1fms\n", Millis(time.Since(s.initializedAt)))
		}

		name := BasenameFromURI(string(params.URI))
		if _, known := s.counts[name]; !known {
			s.seen = append(s.seen, name)
		}
		s.counts[name] = len(params.Diagnostics)
		fmt.Fprintf(s.cfg.Progress, "    %s: %d diagnostics @ %.1fms\n",
			name, len(params.Diagnostics), Millis(s.timeline.Since()))

		if s.haveAll(expected) {
			s.timeline.Mark(MilestoneAllDiagnosed)
			s.complete = true
			return
		}
	}
}

func (s *session) haveAll(expected map[string]bool) bool {
	for name := range expected {
		if _, ok := s.counts[name]; !ok {
			return false
		}
	}
	return true
}

// shutdown sends shutdown and exit without awaiting the shutdown response.
func (s *session) shutdown() {
	if req, err := wire.NewRequest(shutdownID, wire.MethodShutdown, nil); err == nil {
		_ = wire.WriteMessage(s.out, req)
	}
	time.Sleep(shutdownGrace)
	if note, err := wire.NewNotification(wire.MethodExit, nil); err == nil {
		_ = wire.WriteMessage(s.out, note)
	}
}

func (s *session) result() *Result {
	res := &Result{
		Complete: s.complete,
		Timeline: s.timeline,
	}
	res.Spawn, _ = s.timeline.Elapsed(MilestoneSpawn)
	res.InitializeResponse, _ = s.timeline.Elapsed(MilestoneInitializeResponse)
	res.InitializedSent, _ = s.timeline.Elapsed(MilestoneInitializedSent)
	if first, ok := s.timeline.Elapsed(MilestoneFirstDiagnostic); ok {
		res.FirstDiagnostic = first
		res.FirstFromInitialized = first - res.InitializedSent
	}
	res.AllDiagnosed, _ = s.timeline.Elapsed(MilestoneAllDiagnosed)
	for _, name := range s.seen {
		res.Diagnostics = append(res.Diagnostics, FileDiagnostics{File: name, Count: s.counts[name]})
	}
	return res
}
