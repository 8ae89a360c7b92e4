package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/tendril"
	"github.com/aretw0/tendril/internal/logging"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/render"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// TitlesURI is the resource listing every title.
const TitlesURI = "tendril://titles"

// EntityResponse is the structured result of get_entity and put_entity.
type EntityResponse struct {
	Title  string            `json:"title" jsonschema_description:"Title of the entity"`
	Fields map[string]string `json:"fields" jsonschema_description:"Every field in its string form"`
}

// RenderResponse is the structured result of render_entity.
type RenderResponse struct {
	Title  string `json:"title" jsonschema_description:"Title of the rendered entity"`
	Format string `json:"format" jsonschema_description:"MIME type of the output"`
	Output string `json:"output" jsonschema_description:"Rendered output"`
}

// Wiki is the part of the tendril facade exposed over MCP.
type Wiki interface {
	Titles() []string
	Get(title string) (*domain.Entity, bool)
	Put(e *domain.Entity)
	Tick() int
	RenderEntity(title, format string) (string, error)
}

var _ Wiki = (*tendril.Wiki)(nil)

// Server exposes a wiki as an MCP server.
type Server struct {
	wiki      Wiki
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(wiki Wiki, opts ...Option) *Server {
	s := &Server{
		wiki:      wiki,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("tendril-mcp", strings.TrimSpace(tendril.Version)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves over SSE on port until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(fmt.Sprintf("http://localhost:%d", port)))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())
	httpServer := &http.Server{Addr: addr, Handler: mux}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("list_entities",
		mcp.WithDescription("List every entity title in the wiki."),
	), s.handleListEntities)

	getTool := mcp.NewTool("get_entity",
		mcp.WithDescription("Get the fields of one entity."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Entity title")),
		mcp.WithOutputSchema[EntityResponse](),
	)
	s.mcpServer.AddTool(getTool, mcp.NewStructuredToolHandler(s.handleGetEntity))

	renderTool := mcp.NewTool("render_entity",
		mcp.WithDescription("Render an entity's wikitext."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Entity title")),
		mcp.WithString("format", mcp.Description("text/html (default), text/plain or text/markdown")),
		mcp.WithOutputSchema[RenderResponse](),
	)
	s.mcpServer.AddTool(renderTool, mcp.NewStructuredToolHandler(s.handleRenderEntity))

	putTool := mcp.NewTool("put_entity",
		mcp.WithDescription("Create or replace an entity."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Entity title")),
		mcp.WithString("text", mcp.Description("Wikitext body")),
		mcp.WithString("fields", mcp.Description("JSON object of extra fields")),
		mcp.WithOutputSchema[EntityResponse](),
	)
	s.mcpServer.AddTool(putTool, mcp.NewStructuredToolHandler(s.handlePutEntity))
}

func (s *Server) handleListEntities(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(s.wiki.Titles())
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode titles: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleGetEntity(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (EntityResponse, error) {
	title, _ := args["title"].(string)
	e, ok := s.wiki.Get(title)
	if !ok {
		return EntityResponse{}, fmt.Errorf("get %q: %w", title, domain.ErrEntityNotFound)
	}
	return EntityResponse{Title: e.Title(), Fields: e.Strings()}, nil
}

func (s *Server) handleRenderEntity(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (RenderResponse, error) {
	title, _ := args["title"].(string)
	format, _ := args["format"].(string)
	if format == "" {
		format = render.FormatHTML
	}
	out, err := s.wiki.RenderEntity(title, format)
	if err != nil {
		if !errors.Is(err, domain.ErrEntityNotFound) {
			s.logger.Error("MCP render failed", "title", title, "error", err)
		}
		return RenderResponse{}, err
	}
	return RenderResponse{Title: title, Format: format, Output: out}, nil
}

func (s *Server) handlePutEntity(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (EntityResponse, error) {
	fields := make(map[string]any)
	if raw, ok := args["fields"].(string); ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &fields); err != nil {
			return EntityResponse{}, fmt.Errorf("invalid fields: %w", err)
		}
	}
	if text, ok := args["text"].(string); ok {
		fields[domain.FieldText] = text
	}
	fields[domain.FieldTitle], _ = args["title"].(string)

	e, err := domain.NewEntity(fields)
	if err != nil {
		return EntityResponse{}, fmt.Errorf("invalid entity: %w", err)
	}
	s.wiki.Put(e)
	s.wiki.Tick()
	return EntityResponse{Title: e.Title(), Fields: e.Strings()}, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(TitlesURI, "Entity titles",
		mcp.WithMIMEType("application/json"),
	), s.handleTitlesResource)
}

func (s *Server) handleTitlesResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	jsonBytes, err := json.Marshal(s.wiki.Titles())
	if err != nil {
		return nil, fmt.Errorf("encode titles: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      TitlesURI,
			MIMEType: "application/json",
			Text:     string(jsonBytes),
		},
	}, nil
}
