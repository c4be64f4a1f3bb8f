package api

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"plate-order-backend/internal/order"
	"plate-order-backend/internal/reconcile"
	"plate-order-backend/internal/store"
)

// flexID accepts an id sent either as a JSON number or a numeric string.
type flexID int64

func (f *flexID) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(b)), `"`)
	if s == "" || s == "null" {
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return errors.New("tableId must be a number")
	}
	*f = flexID(n)
	return nil
}

// createOrderRequest accepts both the rich body and the short
// {tableId, orderText, timestamp} form.
type createOrderRequest struct {
	reconcile.CreateRequest
	ShortTableID flexID `json:"tableId"`
	OrderText    string `json:"orderText"`
	Timestamp    string `json:"timestamp"`
}

func (r createOrderRequest) input() reconcile.Input {
	in := r.CreateRequest.Input()
	if in.TableID == 0 {
		in.TableID = int64(r.ShortTableID)
	}
	if in.Transcript == "" {
		in.Transcript = r.OrderText
	}
	return in
}

// CreateOrder handles POST /api/orders and /api/v1/orders.
func (h *Handler) CreateOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	o, err := h.reconciler.Reconcile(c.Request.Context(), req.input())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

// ListOrders handles GET /api/v1/orders?skip=&limit=&status=&table_id=.
func (h *Handler) ListOrders(c *gin.Context) {
	opts := store.ListOptions{}
	var err error
	if v := c.Query("skip"); v != "" {
		if opts.Skip, err = strconv.Atoi(v); err != nil || opts.Skip < 0 {
			badRequest(c, "invalid skip")
			return
		}
	}
	if v := c.Query("limit"); v != "" {
		if opts.Limit, err = strconv.Atoi(v); err != nil || opts.Limit < 0 {
			badRequest(c, "invalid limit")
			return
		}
	}
	if v := c.Query("table_id"); v != "" {
		if opts.TableID, err = strconv.ParseInt(v, 10, 64); err != nil {
			badRequest(c, "invalid table_id")
			return
		}
	}
	for _, raw := range c.QueryArray("status") {
		for _, part := range strings.Split(raw, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			st, err := order.ParseStatus(part)
			if err != nil {
				h.respondError(c, err)
				return
			}
			opts.Statuses = append(opts.Statuses, st)
		}
	}

	orders, err := h.orders.ListOrders(c.Request.Context(), opts)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

// GetOrder handles GET /api/orders/:id.
func (h *Handler) GetOrder(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	o, err := h.orders.GetOrder(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

type statusRequest struct {
	Status    string `json:"status"`
	Version   int64  `json:"version"`
	Override  bool   `json:"override"`
	ChangedBy string `json:"changed_by"`
}

// bindStatus reads an optional status body.
func bindStatus(c *gin.Context) (statusRequest, bool) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, err.Error())
		return req, false
	}
	if req.ChangedBy == "" {
		req.ChangedBy = c.GetHeader("X-Staff-ID")
	}
	return req, true
}

// UpdateOrder handles PUT and PATCH /api/orders/:id with
// {status, version, override}. Only the next status is accepted unless
// override is set.
func (h *Handler) UpdateOrder(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	req, ok := bindStatus(c)
	if !ok {
		return
	}
	to, err := order.ParseStatus(req.Status)
	if err != nil {
		h.respondError(c, err)
		return
	}
	res, err := h.board.SetStatus(c.Request.Context(), store.StatusChange{
		OrderID:         id,
		ExpectedVersion: req.Version,
		To:              to,
		Override:        req.Override,
		ChangedBy:       req.ChangedBy,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res.Order)
}

// AdvanceOrder handles POST /api/orders/:id/advance.
func (h *Handler) AdvanceOrder(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	req, ok := bindStatus(c)
	if !ok {
		return
	}
	res, err := h.board.Advance(c.Request.Context(), id, req.Version, req.ChangedBy)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res.Order)
}

// UpdateItem handles PATCH /api/orders/:id/items/:item_id. Without a status
// the item moves to its next status.
func (h *Handler) UpdateItem(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	itemID, ok := idParam(c, "item_id")
	if !ok {
		return
	}
	req, ok := bindStatus(c)
	if !ok {
		return
	}

	var res *store.ChangeResult
	var err error
	if req.Status == "" {
		res, err = h.board.AdvanceItem(c.Request.Context(), id, itemID, req.Version, req.ChangedBy)
	} else {
		var to order.Status
		if to, err = order.ParseStatus(req.Status); err == nil {
			res, err = h.board.SetItemStatus(c.Request.Context(), store.StatusChange{
				OrderID:         id,
				ItemID:          itemID,
				ExpectedVersion: req.Version,
				To:              to,
				Override:        req.Override,
				ChangedBy:       req.ChangedBy,
			})
		}
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res.Order)
}

// OrderHistory handles GET /api/orders/:id/history.
func (h *Handler) OrderHistory(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if _, err := h.orders.GetOrder(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	logs, err := h.orders.OrderHistory(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}
