package handlers

import (
	"context"
	"strconv"

	"github.com/fasthttp/router"
	"github.com/avyukt/invest-gateway/internal/model"
	xhttp "github.com/avyukt/invest-gateway/pkg/http"
)

type JobHistoryService interface {
	List(ctx context.Context, f model.JobHistoryFilter) ([]*model.JobHistory, int64, error)
}
type JobHandler struct {
	svc JobHistoryService
}

func RegisterJobRoutes(e *router.Group, h *JobHandler) {
	e.GET("/jobs/history", h.ListHistory)
}

func NewJobHandler(historyService JobHistoryService) *JobHandler {
	return &JobHandler{
		svc: historyService,
	}
}

type jobHistoryListResponse struct {
	Items []*model.JobHistory `json:"items"`
	Total int64               `json:"total"`
}

func (h *JobHandler) ListHistory(ctx *xhttp.RequestCtx) {
	var f model.JobHistoryFilter

	if v := query(ctx, "job"); v != "" {
		f.JobName = &v
	}
	if v := query(ctx, "key"); v != "" {
		f.JobKey = &v
	}
	if v := query(ctx, "status"); v != "" {
		s := model.JobRunStatus(v)
		f.Status = &s
	}
	if v := query(ctx, "from"); v != "" {
		if t, e := parseTime(v); e == nil {
			f.From = &t
		}
	}
	if v := query(ctx, "to"); v != "" {
		if t, e := parseTime(v); e == nil {
			f.To = &t
		}
	}
	if v := query(ctx, "limit"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Limit = n
		}
	}
	if v := query(ctx, "offset"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Offset = n
		}
	}

	items, total, err := h.svc.List(ctx, f)
	if err != nil {
		writeError(ctx, 400, err.Error())
		return
	}
	writeJSON(ctx, 200, jobHistoryListResponse{Items: items, Total: total})
}
