package consoleweb

import (
	"encoding/base64"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
)

func parseUUID(s string) (uuid.UUID, error) {
	return uuid.Parse(s)
}

// handleConsoleStream relays console output as base64-encoded SSE data
// frames, catching the new subscriber up with whatever's in the screen
// buffer before switching to live relay.
func (s *Server) handleConsoleStream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	fmt.Fprint(w, "event: connected\ndata: ok\n\n")
	flusher.Flush()

	if buf := s.catchupBytes(); len(buf) > 0 {
		writeSSEFrame(w, buf)
		flusher.Flush()
	}

	ch := s.subscribe()
	defer s.unsubscribe(ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case data, ok := <-ch:
			if !ok {
				return
			}
			writeSSEFrame(w, data)
			flusher.Flush()
		}
	}
}

func writeSSEFrame(w io.Writer, data []byte) {
	encoded := base64.StdEncoding.EncodeToString(data)
	fmt.Fprintf(w, "data: %s\n\n", encoded)
}

// handleConsoleInput writes the request body to the attached console.
func (s *Server) handleConsoleInput(w http.ResponseWriter, r *http.Request) {
	send, ok := s.currentSend()
	if !ok {
		writeJSONError(w, http.StatusServiceUnavailable, fmt.Errorf("consoleweb: no console session attached"))
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}

	if _, err := send.Write(r.Context(), body); err != nil {
		writeJSONError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleConsoleBreak(w http.ResponseWriter, r *http.Request) {
	send, ok := s.currentSend()
	if !ok {
		writeJSONError(w, http.StatusServiceUnavailable, fmt.Errorf("consoleweb: no console session attached"))
		return
	}
	if err := send.SendBreak(r.Context()); err != nil {
		writeJSONError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}
