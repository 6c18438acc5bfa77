package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"zetsuserv/internal/credential"
	"zetsuserv/internal/order/domain"
	orderservice "zetsuserv/internal/order/service"
)

// GrantCookieName carries the signed tracking grant after a successful auth.
const GrantCookieName = "zs_grant"

type createOrderRequest struct {
	ClientName    string `json:"client_name"`
	ClientEmail   string `json:"client_email"`
	Phone         string `json:"phone"`
	ProjectTitle  string `json:"project_title"`
	ProjectType   string `json:"project_type"`
	PagesRequired int    `json:"pages_required"`
	Budget        string `json:"budget"`
	Details       string `json:"details"`
}

type createOrderResponse struct {
	OrderID   string `json:"order_id"`
	OrderCode string `json:"order_code"`
	Status    string `json:"status"`
	KeySent   bool   `json:"key_sent"`
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	order, err := s.tracking.CreateOrder(r.Context(), orderservice.CreateOrderInput{
		ClientName:    req.ClientName,
		ClientEmail:   req.ClientEmail,
		Phone:         req.Phone,
		ProjectTitle:  req.ProjectTitle,
		ProjectType:   req.ProjectType,
		PagesRequired: req.PagesRequired,
		Budget:        req.Budget,
		Details:       req.Details,
	})
	switch {
	case err != nil && order == nil:
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil && errors.Is(err, credential.ErrDeliveryFailed):
		// Order and key are committed; the key can be regenerated and resent.
		s.emitEvent(r, "order_key_delivery_failed", "", order.PublicCode())
		writeJSON(w, http.StatusCreated, createOrderResponse{
			OrderID:   order.ID,
			OrderCode: order.PublicCode(),
			Status:    string(order.Status),
		})
		return
	case err != nil:
		writeServiceError(w, err)
		return
	}
	s.emitEvent(r, "order_created", "", order.PublicCode())
	writeJSON(w, http.StatusCreated, createOrderResponse{
		OrderID:   order.ID,
		OrderCode: order.PublicCode(),
		Status:    string(order.Status),
		KeySent:   true,
	})
}

type trackAuthRequest struct {
	OrderCode string `json:"order_code"`
	AccessKey string `json:"access_key"`
}

type trackAuthResponse struct {
	OrderCode string    `json:"order_code"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Server) handleTrackAuth(w http.ResponseWriter, r *http.Request) {
	var req trackAuthRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sessionID, _ := SessionID(r.Context())
	order, token, expiresAt, err := s.tracking.TrackAuth(r.Context(), req.OrderCode, req.AccessKey, sessionID)
	if err != nil {
		s.emitEvent(r, "track_auth_failed", "", "")
		writeServiceError(w, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     GrantCookieName,
		Value:    token,
		Path:     "/api/track",
		Expires:  expiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	s.emitEvent(r, "track_auth_succeeded", "", order.PublicCode())
	writeJSON(w, http.StatusOK, trackAuthResponse{
		OrderCode: order.PublicCode(),
		Token:     token,
		ExpiresAt: expiresAt,
	})
}

type stepView struct {
	Number      int        `json:"number"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type trackingResponse struct {
	OrderCode    string     `json:"order_code"`
	ProjectTitle string     `json:"project_title"`
	Status       string     `json:"status"`
	Percent      int        `json:"percent"`
	Steps        []stepView `json:"steps"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (s *Server) handleGetTracking(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(strings.ToUpper(mux.Vars(r)["code"]))
	if !s.grantAllows(r, code) {
		writeError(w, http.StatusUnauthorized, credential.GenericAuthMessage)
		return
	}
	view, err := s.tracking.GetTracking(r.Context(), code)
	if err != nil {
		// A grant for a code that no longer resolves renders the same generic
		// message as a failed auth.
		if errors.Is(err, credential.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, credential.GenericAuthMessage)
			return
		}
		writeServiceError(w, err)
		return
	}
	steps := make([]stepView, 0, len(view.Steps))
	for _, st := range view.Steps {
		steps = append(steps, stepView{
			Number:      st.Number,
			Name:        st.Name,
			Description: st.Description,
			Status:      string(st.Status),
			StartedAt:   st.StartedAt,
			CompletedAt: st.CompletedAt,
		})
	}
	writeJSON(w, http.StatusOK, trackingResponse{
		OrderCode:    view.Order.PublicCode(),
		ProjectTitle: view.Order.ProjectTitle,
		Status:       string(view.Order.Status),
		Percent:      view.Percent,
		Steps:        steps,
		CreatedAt:    view.Order.CreatedAt,
		UpdatedAt:    view.Order.UpdatedAt,
	})
}

// grantAllows checks the request's grant token against the requested order
// code and the current browser session. The token comes from the grant cookie
// or an Authorization bearer header.
func (s *Server) grantAllows(r *http.Request, code string) bool {
	token := ""
	if c, err := r.Cookie(GrantCookieName); err == nil {
		token = c.Value
	}
	if auth := r.Header.Get("Authorization"); auth != "" {
		if t, ok := strings.CutPrefix(auth, "Bearer "); ok {
			token = t
		}
	}
	if token == "" {
		return false
	}
	grantSession, grantCode, err := s.grants.Validate(token)
	if err != nil {
		return false
	}
	sessionID, _ := SessionID(r.Context())
	return grantCode == code && grantSession == sessionID
}

type regenerateKeyResponse struct {
	AccessKey string `json:"access_key"`
	KeySent   bool   `json:"key_sent"`
}

func (s *Server) handleRegenerateKey(w http.ResponseWriter, r *http.Request) {
	orderID := mux.Vars(r)["id"]
	plaintext, err := s.tracking.RegenerateAccessKey(r.Context(), orderID, ClientIP(r.Context()))
	if err != nil && !errors.Is(err, credential.ErrDeliveryFailed) {
		writeServiceError(w, err)
		return
	}
	s.emitEvent(r, "access_key_regenerated", "", "")
	writeJSON(w, http.StatusOK, regenerateKeyResponse{
		AccessKey: plaintext,
		KeySent:   err == nil,
	})
}

type progressRequest struct {
	Step   int    `json:"step"`
	Action string `json:"action"`
	Status string `json:"status,omitempty"`
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	orderID := mux.Vars(r)["id"]
	var req progressRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	actor := ClientIP(r.Context())
	var err error
	switch req.Action {
	case "start":
		err = s.tracking.StartStep(r.Context(), orderID, req.Step, actor)
	case "complete":
		err = s.tracking.CompleteStep(r.Context(), orderID, req.Step, actor)
	case "":
		if req.Status == "" {
			writeError(w, http.StatusBadRequest, "action or status is required")
			return
		}
	default:
		writeError(w, http.StatusBadRequest, "action must be \"start\" or \"complete\"")
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if req.Status != "" {
		status := domain.Status(req.Status)
		if !status.Valid() {
			writeError(w, http.StatusBadRequest, "invalid status")
			return
		}
		if err := s.tracking.UpdateStatus(r.Context(), orderID, status, actor); err != nil {
			writeServiceError(w, err)
			return
		}
	}
	view, err := s.trackingViewByID(r, orderID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"percent": view.Percent,
		"status":  string(view.Order.Status),
	})
}

func (s *Server) trackingViewByID(r *http.Request, orderID string) (*orderservice.TrackingView, error) {
	order, err := s.tracking.GetByID(r.Context(), orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, orderservice.ErrOrderNotFound
	}
	return s.tracking.GetTracking(r.Context(), order.PublicCode())
}
