package stream

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/fernwake/questlog/backend/internal/model/chat"
	exchangeService "github.com/fernwake/questlog/backend/internal/service/exchange"
	sessionService "github.com/fernwake/questlog/backend/internal/service/session"
	"github.com/fernwake/questlog/backend/pkg/utils"
)

// Handler delivers the send pipeline's result over Server-Sent Events, so
// web clients can keep one response channel open for status and reply.
type Handler struct {
	sessions *sessionService.Service
	exchange *exchangeService.Service
}

// New creates the stream handler.
func New(sessions *sessionService.Service, exchange *exchangeService.Service) *Handler {
	return &Handler{sessions: sessions, exchange: exchange}
}

// StreamResponse is one SSE frame.
type StreamResponse struct {
	Event    string `json:"event"`
	Content  string `json:"content,omitempty"`
	Mode     string `json:"mode,omitempty"`
	Finished bool   `json:"finished,omitempty"`
	Error    string `json:"error,omitempty"`
}

// HandleStreamRequest runs a send for (mode, user) and emits start/message/
// end frames on the open stream.
func (h *Handler) HandleStreamRequest(ctx context.Context, w http.ResponseWriter, userID string, mode chat.Mode, userMessage string) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("streaming unsupported")
	}

	utils.SetupSSEHeaders(w)

	session, err := h.sessions.Start(ctx, userID, mode, "")
	if err != nil {
		h.sendError(w, flusher, fmt.Sprintf("failed to resolve session: %v", err))
		return err
	}

	utils.SendSSEChunk(w, flusher, StreamResponse{Event: "start", Mode: string(mode)})

	updated, err := h.exchange.Send(ctx, session, userMessage)
	if err != nil {
		h.sendError(w, flusher, fmt.Sprintf("reply generation failed: %v", err))
		return err
	}

	utils.SendSSEChunk(w, flusher, StreamResponse{
		Event:   "message",
		Mode:    string(mode),
		Content: updated.LastAssistantText(),
	})
	utils.SendSSEChunk(w, flusher, StreamResponse{Event: "end", Mode: string(mode), Finished: true})

	log.Printf("[stream] completed reply for mode=%s", mode)
	return nil
}

func (h *Handler) sendError(w http.ResponseWriter, flusher http.Flusher, message string) {
	utils.SendSSEChunk(w, flusher, StreamResponse{Event: "error", Error: message})
}
