package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"teamboard/microservices/collab-service/logging"
	"teamboard/microservices/collab-service/services"
)

type WebhookHandler struct {
	membership *services.MembershipService
	secret     string
}

func NewWebhookHandler(membership *services.MembershipService, secret string) *WebhookHandler {
	return &WebhookHandler{membership: membership, secret: secret}
}

type membershipEvent struct {
	Type string `json:"type"`
	Data struct {
		OrgID       string `json:"orgId"`
		UserID      string `json:"userId"`
		Status      string `json:"status"`
		DisplayName string `json:"displayName"`
	} `json:"data"`
}

func (h *WebhookHandler) verifySignature(body []byte, signature string) bool {
	if h.secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(h.secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (h *WebhookHandler) HandleMembershipEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "unable to read request body")
		return
	}

	signature := r.Header.Get("X-Webhook-Signature")
	if !h.verifySignature(body, signature) {
		logging.Logger.Warn("Event ID: WEBHOOK_REJECTED, Description: Membership webhook rejected due to invalid signature.")
		writeMessage(w, http.StatusUnauthorized, "invalid webhook signature")
		return
	}

	var event membershipEvent
	if err := json.Unmarshal(body, &event); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid event payload")
		return
	}

	ctx := r.Context()
	switch event.Type {
	case "membership.deleted":
		err = h.membership.MemberRemoved(ctx, event.Data.OrgID, event.Data.UserID)
	case "membership.changed":
		err = h.membership.MemberChanged(ctx, event.Data.OrgID)
	case "organization.deleted":
		err = h.membership.OrganizationDeleted(ctx, event.Data.OrgID)
	case "user.status_changed":
		err = h.membership.StatusChanged(ctx, event.Data.OrgID, event.Data.UserID, event.Data.Status, event.Data.DisplayName)
	default:
		logging.Logger.Warnf("Event ID: WEBHOOK_UNKNOWN, Description: Ignoring unknown membership event type %q.", event.Type)
		writeMessage(w, http.StatusOK, "event ignored")
		return
	}

	if err != nil {
		writeError(w, err)
		return
	}

	writeMessage(w, http.StatusOK, "event processed")
}
