package proxy

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"fabricmcp/internal/api"
	"fabricmcp/internal/config"
	"fabricmcp/internal/token"
	"fabricmcp/internal/upstream"
	"fabricmcp/pkg/logging"

	"github.com/mark3labs/mcp-go/server"
)

// Queryer runs one list query against an inventory collection.
type Queryer interface {
	Query(ctx context.Context, collection api.Collection, req api.QueryRequest, bearer string) (*api.QueryResult, error)
}

// Directory is the read-only slice/project/user surface of the upstream.
type Directory interface {
	ListSlices(ctx context.Context, bearer string, q upstream.SliceQuery) (records []api.Record, hasMore bool, err error)
	GetSlice(ctx context.Context, bearer, sliceID string, asSelf bool) (api.Record, error)
	ListSlivers(ctx context.Context, bearer, sliceID string, asSelf bool) ([]api.Record, error)
	GetProjects(ctx context.Context, bearer, projectName, projectID, userUUID string) ([]api.Record, error)
	ListProjectUsers(ctx context.Context, bearer, projectUUID string) ([]api.Record, error)
	GetUserKeys(ctx context.Context, bearer, userUUID, keyType string) ([]api.Record, error)
}

// SliceWriter dispatches slice lifecycle writes and sliver actions.
type SliceWriter interface {
	Create(ctx context.Context, bearer string, req upstream.CreateSliceRequest) ([]api.Record, error)
	Modify(ctx context.Context, bearer, sliceID, graphModel string) ([]api.Record, error)
	AcceptModify(ctx context.Context, bearer, sliceID string) (api.Record, error)
	Renew(ctx context.Context, bearer, sliceID, leaseEndTime string) error
	Delete(ctx context.Context, bearer, sliceID string) error
	POA(ctx context.Context, bearer string, req upstream.POARequest) ([]api.Record, error)
}

// TokenSink receives bearer tokens observed on inbound requests, so the
// background cache can refresh with a recent credential.
type TokenSink interface {
	NoteToken(bearer string)
}

// Deps bundles what the tool handlers call into.
type Deps struct {
	Query     Queryer
	Directory Directory
	Writer    SliceWriter
	Tokens    *token.Manager
	TokenSink TokenSink
}

// Server is the MCP shell: it owns the protocol server, registers one tool
// per operation, and runs the configured transport.
type Server struct {
	cfg  config.ServerConfig
	deps Deps

	server               *server.MCPServer
	sseServer            *server.SSEServer
	streamableHTTPServer *server.StreamableHTTPServer
	stdioServer          *server.StdioServer

	mu sync.Mutex
}

// NewServer creates the MCP shell around the given dependencies.
func NewServer(cfg config.ServerConfig, deps Deps) *Server {
	return &Server{cfg: cfg, deps: deps}
}

// Start creates the protocol server and launches the configured transport.
// Transport serving runs in a background goroutine; Start returns once the
// listener is up.
func (s *Server) Start(ctx context.Context, version string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server != nil {
		return fmt.Errorf("server already started")
	}

	s.server = server.NewMCPServer(
		"fabric-mcp",
		version,
		server.WithToolCapabilities(true),
	)
	s.registerTools()

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	switch s.cfg.Transport {
	case config.TransportSSE:
		logging.Info("Proxy", "starting MCP server with SSE transport on %s", addr)
		baseURL := fmt.Sprintf("http://%s:%d", s.cfg.Host, s.cfg.Port)
		s.sseServer = server.NewSSEServer(
			s.server,
			server.WithBaseURL(baseURL),
			server.WithSSEEndpoint("/sse"),
			server.WithMessageEndpoint("/message"),
			server.WithKeepAlive(true),
			server.WithKeepAliveInterval(30*time.Second),
			server.WithSSEContextFunc(httpContextFunc),
		)
		sseServer := s.sseServer
		go func() {
			if err := sseServer.Start(addr); err != nil && err != http.ErrServerClosed {
				logging.Error("Proxy", err, "SSE server error")
			}
		}()

	case config.TransportStdio:
		logging.Info("Proxy", "starting MCP server with stdio transport")
		s.stdioServer = server.NewStdioServer(s.server)
		stdioServer := s.stdioServer
		go func() {
			if err := stdioServer.Listen(ctx, os.Stdin, os.Stdout); err != nil {
				logging.Error("Proxy", err, "stdio server error")
			}
		}()

	case config.TransportStreamableHTTP:
		fallthrough
	default:
		logging.Info("Proxy", "starting MCP server with streamable-http transport on %s", addr)
		s.streamableHTTPServer = server.NewStreamableHTTPServer(
			s.server,
			server.WithHTTPContextFunc(httpContextFunc),
		)
		streamableServer := s.streamableHTTPServer
		go func() {
			if err := streamableServer.Start(addr); err != nil && err != http.ErrServerClosed {
				logging.Error("Proxy", err, "streamable HTTP server error")
			}
		}()
	}

	return nil
}

// Stop shuts the transport down. Safe to call once after a successful Start.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	sseServer := s.sseServer
	streamableServer := s.streamableHTTPServer
	s.server = nil
	s.sseServer = nil
	s.streamableHTTPServer = nil
	s.stdioServer = nil
	s.mu.Unlock()

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if sseServer != nil {
		if err := sseServer.Shutdown(shutdownCtx); err != nil {
			logging.Error("Proxy", err, "error shutting down SSE server")
		}
	}
	if streamableServer != nil {
		if err := streamableServer.Shutdown(shutdownCtx); err != nil {
			logging.Error("Proxy", err, "error shutting down streamable HTTP server")
		}
	}
	// The stdio server stops on context cancellation.
	return nil
}
