package handlers

import (
	"net/http"

	"teamboard/microservices/collab-service/services"

	"github.com/gorilla/mux"
)

type NotificationHandler struct {
	notifications *services.NotificationService
}

func NewNotificationHandler(notifications *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

func (h *NotificationHandler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	auth := authFromRequest(r)

	list, err := h.notifications.ListForUser(r.Context(), auth.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, list)
}

func (h *NotificationHandler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	auth := authFromRequest(r)
	notificationID := mux.Vars(r)["notificationID"]
	if notificationID == "" {
		writeMessage(w, http.StatusBadRequest, "missing notification id")
		return
	}

	if err := h.notifications.MarkRead(r.Context(), auth.UserID, notificationID); err != nil {
		writeError(w, err)
		return
	}

	writeMessage(w, http.StatusOK, "notification marked as read")
}
