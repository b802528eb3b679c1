package handler

import (
	"net/http"

	"github.com/smarthubultra/identity-service/internal/domain"
	"github.com/smarthubultra/identity-service/internal/http/response"
	"github.com/smarthubultra/identity-service/internal/service"
)

// BotHandler fronts the behavioral integrity checks.
type BotHandler struct {
	integrity *service.IntegrityService
}

func NewBotHandler(integrity *service.IntegrityService) *BotHandler {
	return &BotHandler{integrity: integrity}
}

type fingerprintRequest struct {
	BotID   string `json:"bot_id"`
	Purpose string `json:"purpose"`
	Code    string `json:"code"`
}

// Fingerprint captures and persists a behavioral fingerprint for a bot.
func (h *BotHandler) Fingerprint(w http.ResponseWriter, r *http.Request) {
	var req fingerprintRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	fp, err := h.integrity.GenerateFingerprint(r.Context(), req.BotID, req.Purpose, req.Code)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusCreated, fp)
}

// Validate checks a submitted bot payload against its stored
// fingerprint and returns the verdict. An unknown bot is not an error;
// the verdict reflects the configured policy.
func (h *BotHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var bot domain.Bot
	if !decodeJSON(w, r, &bot) {
		return
	}
	verdict, err := h.integrity.Validate(r.Context(), bot)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, verdict)
}
