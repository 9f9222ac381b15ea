package server

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/lxzan/gws"

	"gosplash/downloader"
	"gosplash/pkg/logger"
	"gosplash/variety"
)

// SearchRequest is one websocket message from a client. A bare query asks
// for the next image; command "fresh" clears the query's history.
type SearchRequest struct {
	Query   string `json:"query"`
	Command string `json:"command,omitempty"`
	Preview bool   `json:"preview,omitempty"`
}

// ImageResponse announces the picked image. When a preview was requested,
// a binary frame with the thumbnail follows it.
type ImageResponse struct {
	Type        string `json:"type"`
	Query       string `json:"query"`
	ID          string `json:"id"`
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
}

// ErrorResponse reports a failed request without closing the socket.
type ErrorResponse struct {
	Type  string `json:"type"`
	Query string `json:"query"`
	Error string `json:"error"`
}

// wsHandler implements the gws.Event interface.
type wsHandler struct {
	controller *variety.Controller
	downloader *downloader.Downloader
	log        *logger.Logger
}

func (s *Server) newWsHandler() *wsHandler {
	return &wsHandler{
		controller: s.controller,
		downloader: s.downloader,
		log:        s.log,
	}
}

func sessionID(socket *gws.Conn) string {
	v, _ := socket.Session().Load("sessionID")
	id, _ := v.(string)
	return id
}

func (h *wsHandler) OnOpen(socket *gws.Conn) {
	_ = socket.SetDeadline(time.Now().Add(PingInterval + PingWait))
}

func (h *wsHandler) OnClose(socket *gws.Conn, err error) {
	if id := sessionID(socket); id != "" {
		h.controller.EndSession(id)
	}
	h.log.Debug("Socket closed", "error", err)
}

func (h *wsHandler) OnPing(socket *gws.Conn, payload []byte) {
	_ = socket.SetDeadline(time.Now().Add(PingInterval + PingWait))
	_ = socket.WritePong(nil)
}

func (h *wsHandler) OnPong(socket *gws.Conn, payload []byte) {}

func (h *wsHandler) OnMessage(socket *gws.Conn, message *gws.Message) {
	defer message.Close()

	var req SearchRequest
	if err := json.Unmarshal(message.Bytes(), &req); err != nil {
		h.log.Warn("Invalid search request", "error", err)
		h.writeError(socket, "", "invalid request")
		return
	}
	if req.Query == "" {
		h.writeError(socket, "", "query is required")
		return
	}

	switch req.Command {
	case "":
		h.serveNext(socket, req)
	case "fresh":
		h.serveFresh(socket, req)
	default:
		h.writeError(socket, req.Query, "unknown command: "+req.Command)
	}
}

// serveNext resolves one pick and answers with the image, plus a thumbnail
// frame when asked for.
func (h *wsHandler) serveNext(socket *gws.Conn, req SearchRequest) {
	sid := sessionID(socket)
	ctx, cancel := context.WithTimeout(context.Background(), pickTimeout)
	defer cancel()

	img, err := h.controller.Next(ctx, sid, req.Query)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// Superseded by a newer request for the same query; that request
			// will answer instead.
			return
		}
		if errors.Is(err, variety.ErrNoResults) {
			h.writeError(socket, req.Query, "no results")
			return
		}
		h.log.Warn("Pick failed", "session", sid, "query", req.Query, "error", err)
		h.writeError(socket, req.Query, "search failed, try again")
		return
	}

	h.writeJSON(socket, ImageResponse{
		Type:        "image",
		Query:       req.Query,
		ID:          img.ID,
		URL:         img.URL,
		Description: img.Description,
	})

	if req.Preview {
		preview, err := h.downloader.Preview(ctx, img.URL)
		if err != nil {
			h.log.Warn("Preview failed", "image", img.ID, "error", err)
			return
		}
		if err := socket.WriteMessage(gws.OpcodeBinary, preview); err != nil {
			h.log.Warn("Failed to send preview", "image", img.ID, "error", err)
		}
	}
}

func (h *wsHandler) serveFresh(socket *gws.Conn, req SearchRequest) {
	sid := sessionID(socket)
	if err := h.controller.Reset(sid, req.Query); err != nil {
		h.log.Warn("Reset failed", "session", sid, "query", req.Query, "error", err)
		h.writeError(socket, req.Query, "reset failed")
		return
	}
	h.writeJSON(socket, map[string]string{"type": "fresh", "query": req.Query})
}

func (h *wsHandler) writeJSON(socket *gws.Conn, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.log.Error("Failed to marshal response", "error", err)
		return
	}
	if err := socket.WriteMessage(gws.OpcodeText, data); err != nil {
		h.log.Warn("Failed to write response", "error", err)
	}
}

func (h *wsHandler) writeError(socket *gws.Conn, query, msg string) {
	h.writeJSON(socket, ErrorResponse{Type: "error", Query: query, Error: msg})
}
