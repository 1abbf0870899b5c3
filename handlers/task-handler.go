package handlers

import (
	"encoding/json"
	"net/http"

	"teamboard/microservices/collab-service/models"
	"teamboard/microservices/collab-service/services"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type TaskHandler struct {
	tasks      *services.TaskService
	invites    *services.InviteService
	activities *services.ActivityService
}

func NewTaskHandler(tasks *services.TaskService, invites *services.InviteService, activities *services.ActivityService) *TaskHandler {
	return &TaskHandler{tasks: tasks, invites: invites, activities: activities}
}

func taskIDFromRequest(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	vars := mux.Vars(r)
	id, err := primitive.ObjectIDFromHex(vars["taskID"])
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid task id")
		return primitive.NilObjectID, false
	}
	return id, true
}

func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	auth := authFromRequest(r)

	var task models.Task
	if err := json.NewDecoder(r.Body).Decode(&task); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := h.tasks.CreateTask(r.Context(), task, auth)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (h *TaskHandler) GetTasksByProject(w http.ResponseWriter, r *http.Request) {
	auth := authFromRequest(r)
	projectID := mux.Vars(r)["projectID"]
	if projectID == "" {
		writeMessage(w, http.StatusBadRequest, "missing project id")
		return
	}

	tasks, err := h.tasks.GetTasksByProject(r.Context(), projectID, auth)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tasks)
}

func (h *TaskHandler) GetTaskByID(w http.ResponseWriter, r *http.Request) {
	auth := authFromRequest(r)
	id, ok := taskIDFromRequest(w, r)
	if !ok {
		return
	}

	task, err := h.tasks.GetTaskByID(r.Context(), id, auth)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) GetUserTasks(w http.ResponseWriter, r *http.Request) {
	auth := authFromRequest(r)
	userID := mux.Vars(r)["userID"]
	if userID == "" {
		userID = auth.UserID
	}
	if userID != auth.UserID && !auth.IsAdmin() {
		writeMessage(w, http.StatusForbidden, "access denied: cannot view another user's tasks")
		return
	}

	tasks, err := h.tasks.GetUserTasks(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tasks)
}

func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	auth := authFromRequest(r)
	id, ok := taskIDFromRequest(w, r)
	if !ok {
		return
	}

	var patch models.TaskPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := h.tasks.UpdateTask(r.Context(), id, patch, auth)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	auth := authFromRequest(r)
	id, ok := taskIDFromRequest(w, r)
	if !ok {
		return
	}

	if err := h.tasks.DeleteTask(r.Context(), id, auth); err != nil {
		writeError(w, err)
		return
	}

	writeMessage(w, http.StatusOK, "task deleted successfully")
}

type reviewRequest struct {
	Comment string `json:"comment"`
}

func (h *TaskHandler) ApproveTask(w http.ResponseWriter, r *http.Request) {
	auth := authFromRequest(r)
	id, ok := taskIDFromRequest(w, r)
	if !ok {
		return
	}

	var req reviewRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	task, err := h.tasks.Approve(r.Context(), id, req.Comment, auth)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) DisapproveTask(w http.ResponseWriter, r *http.Request) {
	auth := authFromRequest(r)
	id, ok := taskIDFromRequest(w, r)
	if !ok {
		return
	}

	var req reviewRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	task, err := h.tasks.Disapprove(r.Context(), id, req.Comment, auth)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, task)
}

type inviteRequest struct {
	UserID string `json:"userId"`
}

func (h *TaskHandler) InviteToTask(w http.ResponseWriter, r *http.Request) {
	auth := authFromRequest(r)
	id, ok := taskIDFromRequest(w, r)
	if !ok {
		return
	}

	var req inviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeMessage(w, http.StatusBadRequest, "userId is required")
		return
	}

	if err := h.invites.Invite(r.Context(), id, req.UserID, auth); err != nil {
		writeError(w, err)
		return
	}

	writeMessage(w, http.StatusOK, "invitation sent")
}

type inviteResponseRequest struct {
	NotificationID string `json:"notificationId"`
	Action         string `json:"action"`
}

func (h *TaskHandler) RespondToInvite(w http.ResponseWriter, r *http.Request) {
	auth := authFromRequest(r)

	var req inviteResponseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.NotificationID == "" {
		writeMessage(w, http.StatusBadRequest, "notificationId is required")
		return
	}

	if err := h.invites.Respond(r.Context(), req.NotificationID, req.Action, auth); err != nil {
		writeError(w, err)
		return
	}

	writeMessage(w, http.StatusOK, "invitation processed")
}

type activityRequest struct {
	Type     models.ActivityType     `json:"type"`
	Content  string                  `json:"content"`
	Metadata models.ActivityMetadata `json:"metadata"`
}

func (h *TaskHandler) AddActivity(w http.ResponseWriter, r *http.Request) {
	auth := authFromRequest(r)
	id, ok := taskIDFromRequest(w, r)
	if !ok {
		return
	}

	var req activityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Type == "" {
		writeMessage(w, http.StatusBadRequest, "activity type is required")
		return
	}

	activity, err := h.activities.Record(r.Context(), id, auth, req.Type, req.Content, req.Metadata)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, activity)
}

func (h *TaskHandler) GetActivities(w http.ResponseWriter, r *http.Request) {
	id, ok := taskIDFromRequest(w, r)
	if !ok {
		return
	}

	activities, err := h.activities.List(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, activities)
}
