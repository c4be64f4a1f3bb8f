package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"plate-order-backend/internal/model"
)

type floorPlanRequest struct {
	Name string `json:"name" binding:"required"`
}

// ListFloorPlans handles GET /api/floor-plans.
func (h *Handler) ListFloorPlans(c *gin.Context) {
	plans, err := h.store.ListFloorPlans(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, plans)
}

// CreateFloorPlan handles POST /api/floor-plans.
func (h *Handler) CreateFloorPlan(c *gin.Context) {
	var req floorPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	fp := &model.FloorPlan{Name: req.Name}
	if err := h.store.CreateFloorPlan(c.Request.Context(), fp); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, fp)
}

// GetFloorPlan handles GET /api/floor-plans/:id with its tables and seats.
func (h *Handler) GetFloorPlan(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	fp, err := h.store.GetFloorPlan(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, fp)
}

// tableRequest is the editable part of a table. Seats are derived from
// seat_count.
type tableRequest struct {
	FloorPlanID int64   `json:"floor_plan_id"`
	Label       string  `json:"label"`
	Shape       string  `json:"shape"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Rotation    float64 `json:"rotation"`
	SeatCount   int     `json:"seat_count"`
	Status      string  `json:"status"`
}

func (r tableRequest) table() *model.Table {
	return &model.Table{
		FloorPlanID: r.FloorPlanID,
		Label:       r.Label,
		Shape:       r.Shape,
		Width:       r.Width,
		Height:      r.Height,
		X:           r.X,
		Y:           r.Y,
		Rotation:    r.Rotation,
		SeatCount:   r.SeatCount,
		Status:      r.Status,
	}
}

// ListTables handles GET /api/tables?floor_plan_id=.
func (h *Handler) ListTables(c *gin.Context) {
	var fpID int64
	if v := c.Query("floor_plan_id"); v != "" {
		var err error
		if fpID, err = strconv.ParseInt(v, 10, 64); err != nil {
			badRequest(c, "invalid floor_plan_id")
			return
		}
	}
	tables, err := h.store.ListTables(c.Request.Context(), fpID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tables)
}

// CreateTable handles POST /api/tables.
func (h *Handler) CreateTable(c *gin.Context) {
	var req tableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if req.FloorPlanID <= 0 {
		badRequest(c, "floor_plan_id is required")
		return
	}
	t := req.table()
	if err := h.store.CreateTable(c.Request.Context(), t); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

// GetTable handles GET /api/tables/:id.
func (h *Handler) GetTable(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	t, err := h.store.GetTable(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// UpdateTable handles PUT /api/tables/:id. Changing seat_count regenerates
// the seats.
func (h *Handler) UpdateTable(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req tableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	t := req.table()
	t.ID = id
	if err := h.store.UpdateTable(c.Request.Context(), t); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

type tableStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// SetTableStatus handles PATCH /api/tables/:id/status.
func (h *Handler) SetTableStatus(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req tableStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := h.store.SetTableStatus(c.Request.Context(), id, req.Status); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "status": req.Status})
}
