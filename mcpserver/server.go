// Package mcpserver exposes spellbook itself as an MCP server with the
// create_spell and list_spells tools.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/server"

	"github.com/petal-labs/spellbook/bundle"
	"github.com/petal-labs/spellbook/spell"
	"github.com/petal-labs/spellbook/store"
)

const (
	// ServerName is the name advertised during initialize.
	ServerName = "spellbook"

	instructions = "Use create_spell to turn a spell definition into a runnable MCP server bundle " +
		"(Dockerfile, package.json, index.js, README.md). Use list_spells to see existing spells."
)

// DefaultVersion is reported to clients unless WithVersion is given.
const DefaultVersion = "dev"

// ErrDuplicateName is returned when a spell with the same name already exists.
var ErrDuplicateName = errors.New("mcpserver: spell name already exists")

// DuplicateError identifies the existing spell that blocked a create.
type DuplicateError struct {
	Name       string
	ExistingID string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("spell with name %q already exists (id: %s)", e.Name, e.ExistingID)
}

func (e *DuplicateError) Is(target error) bool { return target == ErrDuplicateName }

// Created describes a spell created through create_spell.
type Created struct {
	Spell spell.Spell
	Dir   string
	Files []string
}

// Server implements the spellbook tools on top of a store and a bundle writer.
type Server struct {
	store   store.Store
	writer  *bundle.Writer
	logger  *slog.Logger
	newID   func() string
	version string

	// mu serializes load, check and save so concurrent creates cannot both
	// claim the same name.
	mu  sync.Mutex
	mcp *server.MCPServer
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger. It must not write to stdout.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithVersion sets the version advertised during initialize.
func WithVersion(version string) Option {
	return func(s *Server) {
		if version != "" {
			s.version = version
		}
	}
}

// WithIDGenerator replaces uuid.NewString for new spell IDs.
func WithIDGenerator(fn func() string) Option {
	return func(s *Server) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// New builds a Server and registers its tools.
func New(st store.Store, writer *bundle.Writer, opts ...Option) *Server {
	s := &Server{
		store:   st,
		writer:  writer,
		logger:  slog.Default(),
		newID:   uuid.NewString,
		version: DefaultVersion,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.writer == nil {
		s.writer = bundle.NewWriter("", s.logger)
	}

	s.mcp = server.NewMCPServer(
		ServerName,
		s.version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)
	s.mcp.AddTool(createSpellTool(), s.handleCreateSpell)
	s.mcp.AddTool(listSpellsTool(), s.handleListSpells)
	return s
}

// MCP returns the underlying protocol server.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// ServeStdio serves newline-delimited JSON-RPC on in/out until ctx is
// canceled or in is closed.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	s.logger.Info("spellbook mcp server listening", "transport", "stdio", "version", s.version)

	err := stdio.Listen(ctx, in, out)
	if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, io.EOF)) {
		return nil
	}
	return err
}

// CreateSpell assigns a fresh ID to args, validates it, rejects duplicate
// names, writes the bundle and persists the spell.
func (s *Server) CreateSpell(ctx context.Context, args map[string]any) (Created, error) {
	candidate := make(map[string]any, len(args)+1)
	for k, v := range args {
		candidate[k] = v
	}
	candidate["id"] = s.newID()

	sp, err := spell.Validate(candidate)
	if err != nil {
		return Created{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	loaded, err := s.store.Load(ctx)
	if err != nil {
		return Created{}, err
	}
	if existing, ok := loaded.Spells.FindByName(sp.Name); ok {
		return Created{}, &DuplicateError{Name: sp.Name, ExistingID: existing.ID}
	}

	res, err := s.writer.WriteSpell(ctx, sp)
	if err != nil {
		return Created{}, err
	}

	loaded.Spells.Put(sp)
	if err := s.store.Save(ctx, loaded.Spells); err != nil {
		return Created{}, err
	}

	s.logger.Info("spell created",
		"spell", sp.Name,
		"id", sp.ID,
		"dir", res.Dir,
	)
	return Created{Spell: sp, Dir: res.Dir, Files: res.Files}, nil
}

// ListSpells returns the stored spells sorted by name.
func (s *Server) ListSpells(ctx context.Context) ([]spell.Spell, error) {
	loaded, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	return loaded.Spells.Sorted(), nil
}
