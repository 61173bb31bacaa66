package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/franckalain/halalscan/internal/annotate"
	"github.com/franckalain/halalscan/internal/database"
	"github.com/franckalain/halalscan/internal/models"
	"github.com/franckalain/halalscan/internal/scan"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // In production, this should be more restrictive
	},
}

type pendingScan struct {
	result   models.ScanResult
	imageURI string
}

// session is the state of one websocket connection. Messages of a connection are
// handled one at a time, so it needs no locking.
type session struct {
	conn    *websocket.Conn
	userID  string
	pending map[string]pendingScan // analyzed but not yet saved, by scan id
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("WebSocket upgrade failed:", err)
		return
	}
	defer conn.Close()

	sess := &session{
		conn:    conn,
		userID:  r.URL.Query().Get("user"),
		pending: make(map[string]pendingScan),
	}

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Println("Error reading message:", err)
			}
			break
		}

		var msg map[string]any
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Println("Error parsing message:", err)
			s.sendError(conn, "Invalid message format")
			continue
		}

		s.handleWebSocketMessage(r.Context(), sess, msg)
	}
}

func (s *Server) handleWebSocketMessage(ctx context.Context, sess *session, message map[string]any) {
	messageType, ok := message["type"].(string)
	if !ok {
		s.sendError(sess.conn, "Invalid message format")
		return
	}

	data, _ := message["data"].(map[string]any)

	switch messageType {
	case "scan":
		s.handleScan(ctx, sess, data)
	case "save_scan":
		s.handleSave(ctx, sess, data)
	case "get_history":
		s.handleGetHistory(ctx, sess)
	case "delete_scan":
		s.handleDelete(ctx, sess, data)
	case "annotate":
		s.handleAnnotateMessage(sess, data)
	default:
		s.sendError(sess.conn, "Unknown message type")
	}
}

func (s *Server) handleScan(ctx context.Context, sess *session, data map[string]any) {
	imageStr, ok := data["image"].(string)
	if !ok {
		s.sendError(sess.conn, "Invalid image data")
		return
	}

	imageData, err := base64.StdEncoding.DecodeString(imageStr)
	if err != nil {
		log.Printf("Error decoding image: %v", err)
		s.sendError(sess.conn, "Invalid image format")
		return
	}

	out, err := s.predict(ctx, imageData)
	if err != nil {
		log.Printf("Error processing image: %v", err)
		s.sendError(sess.conn, "Failed to process image")
		return
	}

	// Keep the result until the client confirms it
	id := uuid.New().String()
	imageURI, _ := data["imageUri"].(string)
	sess.pending[id] = pendingScan{result: out.Result, imageURI: imageURI}

	s.sendMessage(sess.conn, "scan_result", map[string]any{
		"id":     id,
		"result": out.Result,
		"report": out.Report,
	})
}

func (s *Server) handleSave(ctx context.Context, sess *session, data map[string]any) {
	var (
		pending pendingScan
		id      string
	)

	if v, ok := data["id"].(string); ok {
		p, found := sess.pending[v]
		if !found {
			s.sendError(sess.conn, "Scan result not found")
			return
		}
		id, pending = v, p
	} else if raw, ok := data["result"].(map[string]any); ok {
		pending.result = scan.Aggregate(raw)
		pending.imageURI, _ = data["imageUri"].(string)
	} else {
		s.sendError(sess.conn, "Missing scan id or result")
		return
	}

	rec, err := s.db.SaveScan(ctx, sess.userID, pending.imageURI, pending.result)
	if errors.Is(err, database.ErrNoUser) {
		s.sendError(sess.conn, "User must be logged in to save scans")
		return
	}
	if err != nil {
		log.Printf("Error saving scan: %v", err)
		s.sendError(sess.conn, "Failed to save scan. Please try again.")
		return
	}

	if id != "" {
		delete(sess.pending, id)
	}
	log.Printf("Saved scan %s for user %s", rec.ID, rec.UserID)
	s.sendMessage(sess.conn, "scan_saved", map[string]any{"scan": rec})
}

func (s *Server) handleGetHistory(ctx context.Context, sess *session) {
	if sess.userID == "" {
		s.sendMessage(sess.conn, "history", map[string]any{"items": []*models.ScanRecord{}})
		return
	}

	scans, err := s.db.ListScans(ctx, sess.userID, database.MaxHistory)
	if err != nil {
		log.Printf("Error retrieving history: %v", err)
		s.sendError(sess.conn, "Failed to retrieve history")
		return
	}
	s.sendMessage(sess.conn, "history", map[string]any{"items": scans})
}

func (s *Server) handleDelete(ctx context.Context, sess *session, data map[string]any) {
	id, ok := data["id"].(string)
	if !ok || id == "" {
		s.sendError(sess.conn, "Missing scan id")
		return
	}

	err := s.db.DeleteScan(ctx, sess.userID, id)
	if errors.Is(err, database.ErrNotFound) {
		s.sendError(sess.conn, "Scan not found")
		return
	}
	if err != nil {
		log.Printf("Error deleting scan: %v", err)
		s.sendError(sess.conn, "Failed to delete scan")
		return
	}
	s.sendMessage(sess.conn, "scan_deleted", map[string]any{"id": id})
}

func (s *Server) handleAnnotateMessage(sess *session, data map[string]any) {
	text, _ := data["text"].(string)
	var codes []string
	if list, ok := data["codes"].([]any); ok {
		for _, c := range list {
			if code, ok := c.(string); ok {
				codes = append(codes, code)
			}
		}
	}
	s.sendMessage(sess.conn, "annotation", map[string]any{
		"segments": annotate.Annotate(text, codes, s.table),
	})
}

func (s *Server) sendMessage(conn *websocket.Conn, messageType string, data any) {
	msg := map[string]any{
		"type": messageType,
		"data": data,
	}

	if s.debug {
		log.Printf("Sending message to client - Type: %s", messageType)
	}
	if err := conn.WriteJSON(msg); err != nil {
		log.Println("Error sending message:", err)
	}
}

func (s *Server) sendError(conn *websocket.Conn, message string) {
	msg := map[string]any{
		"type":    "error",
		"message": message,
	}

	if err := conn.WriteJSON(msg); err != nil {
		log.Println("Error sending error message:", err)
	}
}
