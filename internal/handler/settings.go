package handler

import (
	"net/http"

	"github.com/wealthwizard/finance-api/internal/ctxkeys"
	"github.com/wealthwizard/finance-api/internal/model"
	"github.com/wealthwizard/finance-api/internal/service"
)

type SettingsHandler struct {
	userService         *service.UserService
	notificationService *service.NotificationService
}

func NewSettingsHandler(userService *service.UserService, notificationService *service.NotificationService) *SettingsHandler {
	return &SettingsHandler{
		userService:         userService,
		notificationService: notificationService,
	}
}

func (h *SettingsHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())
	writeJSON(w, http.StatusOK, user.NotificationPreferences)
}

func (h *SettingsHandler) UpdateNotifications(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	// Fields missing from the body keep their stored value.
	prefs := user.NotificationPreferences
	if !decodeJSON(w, r, &prefs) {
		return
	}

	updated, err := h.userService.UpdatePreferences(r.Context(), user.ID, prefs)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Message       string                        `json:"message"`
		Notifications model.NotificationPreferences `json:"notifications"`
	}{"Notification preferences updated successfully", updated.NotificationPreferences})
}

func (h *SettingsHandler) Privacy(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())
	writeJSON(w, http.StatusOK, user.PrivacySettings)
}

func (h *SettingsHandler) UpdatePrivacy(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	privacy := user.PrivacySettings
	if !decodeJSON(w, r, &privacy) {
		return
	}

	updated, err := h.userService.UpdatePrivacy(r.Context(), user.ID, privacy)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Message  string                `json:"message"`
		Settings model.PrivacySettings `json:"settings"`
	}{"Privacy settings updated successfully", updated.PrivacySettings})
}

func (h *SettingsHandler) SavePushSubscription(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	var sub model.PushSubscription
	if !decodeJSON(w, r, &sub) {
		return
	}

	err := h.userService.SetPushSubscription(r.Context(), user.ID, sub)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeMessage(w, http.StatusOK, "Push subscription saved successfully")
}

func (h *SettingsHandler) RemovePushSubscription(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	err := h.userService.RemovePushSubscription(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeMessage(w, http.StatusOK, "Push subscription removed successfully")
}

func (h *SettingsHandler) TestNotification(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	var req struct {
		Type string `json:"type"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	err := h.notificationService.SendTest(r.Context(), user.ID, req.Type)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeMessage(w, http.StatusOK, "Test "+req.Type+" notification sent successfully")
}
