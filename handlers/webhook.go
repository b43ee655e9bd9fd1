package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"halobot/pkg/engine"
	"halobot/pkg/proto"
)

// inboundRequest is the JSON body posted by transport webhooks.
type inboundRequest struct {
	Phone          string `json:"phone"`
	Text           string `json:"text"`
	Channel        string `json:"channel"`
	TransportMsgID string `json:"transport_msg_id,omitempty"`
}

// handleInbound accepts one customer message and runs it through the engine.
// Redeliveries (same transport_msg_id) are accepted and ignored, so webhooks
// can retry safely.
func (s *Server) handleInbound(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req inboundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body: %v", err)
		return
	}
	if strings.TrimSpace(req.Phone) == "" || strings.TrimSpace(req.Text) == "" {
		s.writeError(w, http.StatusBadRequest, "phone and text are required")
		return
	}

	channel, err := parseChannel(req.Channel)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "%v", err)
		return
	}

	err = s.engine.Process(r.Context(), engine.InboundMessage{
		Phone:          req.Phone,
		Text:           req.Text,
		Channel:        channel,
		TransportMsgID: req.TransportMsgID,
	})
	if err != nil {
		s.logger.Error("Failed to process inbound message: %v", err)
		s.writeError(w, http.StatusInternalServerError, "failed to process message")
		return
	}

	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func parseChannel(raw string) (proto.Channel, error) {
	switch proto.Channel(raw) {
	case proto.ChannelWhatsApp, proto.ChannelSMS, proto.ChannelWeb:
		return proto.Channel(raw), nil
	}
	return "", fmt.Errorf("unknown channel %q", raw)
}
