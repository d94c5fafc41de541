package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/palaver/internal/logging"
	"github.com/aretw0/palaver/pkg/bot"
	"github.com/aretw0/palaver/pkg/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// SendMessageArgs are the arguments of the send_message tool.
type SendMessageArgs struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	Text           string `json:"text"`
}

// Reply is one bot reply in a tool result.
type Reply struct {
	Type string `json:"type" jsonschema_description:"Activity type, usually message"`
	Text string `json:"text,omitempty" jsonschema_description:"Reply text"`
	Name string `json:"name,omitempty" jsonschema_description:"Event name for event activities"`
	Code string `json:"code,omitempty" jsonschema_description:"End of conversation code"`
}

// SendMessageResult is the structured result of send_message.
type SendMessageResult struct {
	ConversationID string  `json:"conversation_id" jsonschema_description:"Conversation the turn ran in"`
	Replies        []Reply `json:"replies" jsonschema_description:"Activities the bot sent during the turn"`
}

// Server exposes a bot as an MCP server.
type Server struct {
	adapter   *Adapter
	handler   bot.Handler
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures a Server.
type Option func(*Server)

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(adapter *Adapter, handler bot.Handler, version string, opts ...Option) *Server {
	s := &Server{
		adapter:   adapter,
		handler:   handler,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("palaver-mcp", strings.TrimSpace(version)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer { return s.mcpServer }

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the MCP SSE transport on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
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

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	sendTool := mcp.NewTool("send_message",
		mcp.WithDescription("Send a user message to the bot and return its replies for that turn."),
		mcp.WithString("conversation_id", mcp.Required(), mcp.Description("Conversation to talk in. Dialog state is kept per conversation.")),
		mcp.WithString("user_id", mcp.Description("Sender id (defaults to mcp-user)")),
		mcp.WithString("text", mcp.Required(), mcp.Description("Message text")),
		mcp.WithOutputSchema[SendMessageResult](),
	)
	s.mcpServer.AddTool(sendTool, mcp.NewStructuredToolHandler(s.handleSendMessage))
}

func (s *Server) handleSendMessage(ctx context.Context, request mcp.CallToolRequest, args SendMessageArgs) (SendMessageResult, error) {
	if strings.TrimSpace(args.ConversationID) == "" {
		return SendMessageResult{}, fmt.Errorf("conversation_id: %w", domain.ErrMissingArgument)
	}
	if args.UserID == "" {
		args.UserID = "mcp-user"
	}

	replies, err := s.adapter.Send(ctx, args.ConversationID, args.UserID, args.Text, s.handler)
	if err != nil {
		s.logger.Error("MCP send_message: turn failed", "error", err, "conversation", args.ConversationID)
		return SendMessageResult{}, fmt.Errorf("turn failed: %w", err)
	}

	result := SendMessageResult{ConversationID: args.ConversationID, Replies: make([]Reply, 0, len(replies))}
	for _, act := range replies {
		result.Replies = append(result.Replies, Reply{
			Type: string(act.Type),
			Text: act.Text,
			Name: act.Name,
			Code: act.Code,
		})
	}
	return result, nil
}
