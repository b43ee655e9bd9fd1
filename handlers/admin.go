package handlers

import (
	"errors"
	"net/http"
	"strings"

	"halobot/pkg/persistence"
	"halobot/pkg/proto"
)

// actionTargets maps owner dashboard actions to target lifecycle states.
// Validity against the current state is enforced by the guarded transition.
//
//nolint:gochecknoglobals // Fixed action table
var actionTargets = map[string]proto.OrderStatus{
	"approve":   proto.StatusPaid,
	"reject":    proto.StatusPendingPayment,
	"preparing": proto.StatusPreparing,
	"ready":     proto.StatusReadyForPickup,
	"complete":  proto.StatusCompleted,
	"cancel":    proto.StatusCancelled,
}

// handleOrders implements GET /api/orders?status=<status>.
func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status, err := proto.ParseOrderStatus(r.URL.Query().Get("status"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "%v", err)
		return
	}

	list, err := s.store.OrdersByStatus(s.cfg.Business.ID, status)
	if err != nil {
		s.logger.Error("Failed to list orders: %v", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list orders")
		return
	}

	s.writeJSON(w, http.StatusOK, list)
	s.logger.Debug("Served %d orders in status %s", len(list), status)
}

// handleOrderRouter dispatches /api/orders/{number} and
// /api/orders/{number}/{action}.
func (s *Server) handleOrderRouter(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/orders/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if parts[0] == "" {
		s.writeError(w, http.StatusBadRequest, "order number required")
		return
	}

	order, err := s.store.GetOrderByNumber(s.cfg.Business.ID, strings.ToUpper(parts[0]))
	if errors.Is(err, persistence.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "no order %s", parts[0])
		return
	}
	if err != nil {
		s.logger.Error("Failed to load order %s: %v", parts[0], err)
		s.writeError(w, http.StatusInternalServerError, "failed to load order")
		return
	}

	switch len(parts) {
	case 1:
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.writeJSON(w, http.StatusOK, order)
	case 2:
		s.handleOrderAction(w, r, order, parts[1])
	default:
		s.writeError(w, http.StatusNotFound, "unknown path")
	}
}

// handleOrderAction applies one owner action to an order. A transition that
// lost a race or is illegal from the current state returns 409 with the
// order's actual status.
func (s *Server) handleOrderAction(w http.ResponseWriter, r *http.Request, order *persistence.Order, action string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	target, ok := actionTargets[action]
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown action %q", action)
		return
	}

	err := s.orders.Transition(r.Context(), order, target)
	if err != nil {
		if errors.Is(err, persistence.ErrGuardFailed) || !proto.IsValidTransition(order.Status, target) {
			s.writeError(w, http.StatusConflict, "order %s is %s, cannot %s", order.OrderNumber, order.Status, action)
			return
		}
		s.logger.Error("Failed to %s order %s: %v", action, order.OrderNumber, err)
		s.writeError(w, http.StatusInternalServerError, "failed to %s order", action)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{
		"order_number": order.OrderNumber,
		"status":       string(order.Status),
	})
}
