package handler

import (
	"net/http"
	"strconv"

	"github.com/breatheroute/wxoverlay/internal/api/models"
	"github.com/breatheroute/wxoverlay/internal/api/response"
	"github.com/breatheroute/wxoverlay/internal/budget"
)

// BudgetHandler recommends frame caps for client devices.
type BudgetHandler struct{}

// NewBudgetHandler creates a new BudgetHandler.
func NewBudgetHandler() *BudgetHandler {
	return &BudgetHandler{}
}

// Recommend handles GET /v1/budget?memoryGb=&mobile=.
func (h *BudgetHandler) Recommend(w http.ResponseWriter, r *http.Request) {
	var q models.BudgetQuery
	query := r.URL.Query()

	if v := query.Get("memoryGb"); v != "" {
		gb, err := strconv.ParseFloat(v, 64)
		if err != nil {
			response.BadRequest(w, r, "memoryGb must be a number", []models.FieldError{
				{Field: "memoryGb", Message: "must be a number", Code: "INVALID"},
			})
			return
		}
		q.MemoryGB = gb
	}
	if v := query.Get("mobile"); v != "" {
		mobile, err := strconv.ParseBool(v)
		if err != nil {
			response.BadRequest(w, r, "mobile must be a boolean", []models.FieldError{
				{Field: "mobile", Message: "must be a boolean", Code: "INVALID"},
			})
			return
		}
		q.Mobile = mobile
	}
	if err := validate.Struct(q); err != nil {
		response.ValidationFailed(w, r, err)
		return
	}

	profile := budget.DeviceProfile{MemoryGB: q.MemoryGB, Mobile: q.Mobile}
	response.JSON(w, r, http.StatusOK, models.Budget{
		MemoryGB:     q.MemoryGB,
		Mobile:       q.Mobile,
		Tier:         string(profile.Tier()),
		MaxFrames:    budget.Recommend(profile),
		FrameCeiling: budget.FrameCeiling,
	})
}
