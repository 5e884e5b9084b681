package handlers

import (
	"strconv"
	"time"

	"github.com/fasthttp/router"
	"github.com/avyukt/invest-gateway/internal/jobs"
	xhttp "github.com/avyukt/invest-gateway/pkg/http"
)

type PollControl interface {
	Reschedule(key string, delay time.Duration) bool
}
type FulfillmentScheduler interface {
	Schedule(ref string, orderID int64)
}

// OrderHandler exposes the manual poll trigger for support tooling. A
// trigger on a live job pulls its next tick forward; a trigger on a
// retired ref re-registers the poll.
type OrderHandler struct {
	jobs        PollControl
	fulfillment FulfillmentScheduler
}

func RegisterOrderRoutes(e *router.Group, h *OrderHandler) {
	e.POST("/orders/{ref}/poll", h.TriggerPoll)
}

func NewOrderHandler(pollControl PollControl, fulfillment FulfillmentScheduler) *OrderHandler {
	return &OrderHandler{
		jobs:        pollControl,
		fulfillment: fulfillment,
	}
}

type triggerPollResponse struct {
	Ref    string `json:"ref"`
	Status string `json:"status"`
}

func (h *OrderHandler) TriggerPoll(ctx *xhttp.RequestCtx) {
	ref, _ := ctx.UserValue("ref").(string)
	if ref == "" {
		writeError(ctx, 400, "missing order ref")
		return
	}

	var orderID int64
	if v := query(ctx, "order_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(ctx, 400, "invalid order_id: "+v)
			return
		}
		orderID = id
	}

	if h.jobs.Reschedule(jobs.OrderPollKey(ref), 0) {
		writeJSON(ctx, 202, triggerPollResponse{Ref: ref, Status: "rescheduled"})
		return
	}
	h.fulfillment.Schedule(ref, orderID)
	writeJSON(ctx, 202, triggerPollResponse{Ref: ref, Status: "scheduled"})
}
