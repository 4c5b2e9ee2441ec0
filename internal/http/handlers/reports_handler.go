// Reporting HTTP handlers.
//
// Read-only views over the ingested data:
//   - GET /funnel/daily           (per-story daily funnel, paginated, ETag)
//   - GET /creators/{id}/earnings (attributed commission per currency)
package handlers

import (
	"fmt"
	"math/big"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/glowcart/commerce-backend/internal/domain"
	"github.com/glowcart/commerce-backend/internal/money"
	"github.com/glowcart/commerce-backend/internal/repo"
	"github.com/glowcart/commerce-backend/internal/utils"
)

// ReportHandlers serves the read-side endpoints directly from the repo
// layer; there is no business logic to interpose.
type ReportHandlers struct {
	DB *gorm.DB
}

// NewReportHandlers constructs a ReportHandlers bound to the given database.
func NewReportHandlers(db *gorm.DB) *ReportHandlers {
	return &ReportHandlers{DB: db}
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// FunnelDailyResponse wraps a page of funnel rows and pagination info.
type FunnelDailyResponse struct {
	Rows       []domain.FunnelDaily `json:"rows"`
	Pagination Pagination           `json:"pagination"`
}

// EarningsEntry is one currency bucket of a creator's commission total.
type EarningsEntry struct {
	Currency   string `json:"currency" example:"USD"`
	Purchases  int64  `json:"purchases" example:"12"`
	Commission string `json:"commission" example:"344.16"`
}

// EarningsResponse is the full earnings report for one creator.
type EarningsResponse struct {
	CreatorID string          `json:"creator_id"`
	Earnings  []EarningsEntry `json:"earnings"`
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// GetFunnelDaily godoc
// @ID          getFunnelDaily
// @Summary     Daily funnel view (paginated)
// @Description Returns the per-story daily funnel aggregates maintained by the background refresher, newest day first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Reports
// @Produce     json
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Param       page           query   int     false "Page number"    minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page" minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.FunnelDailyResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /funnel/daily [get]
func (h *ReportHandlers) GetFunnelDaily(c *gin.Context) {
	ctx := c.Request.Context()
	page, pageSize, offset := utils.PageWindow(c.Query("page"), c.Query("page_size"), defaultPageSize, maxPageSize)

	// ETag pre-check (best effort): the view only changes when the
	// maintainer refreshes it, so count + latest refresh time identify the
	// current state.
	count, maxTS, err := repo.FunnelStats(ctx, h.DB)
	if err == nil {
		var ts int64
		if maxTS != nil {
			ts = maxTS.Unix()
		}
		etag := fmt.Sprintf(`W/"funnel:%d:%d"`, count, ts)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	rows, err := repo.ListFunnelDailyPage(ctx, h.DB, offset, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "failed to list funnel rows")
		return
	}
	if rows == nil {
		rows = []domain.FunnelDaily{}
	}

	totalPages := int((count + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, FunnelDailyResponse{
		Rows: rows,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      count,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// GetCreatorEarnings godoc
// @ID          getCreatorEarnings
// @Summary     Creator earnings report
// @Description Sums attributed commission for a creator, grouped by currency. Totals of different currencies are never merged.
// @Tags        Reports
// @Produce     json
//
// @Param       id  path  string  true  "Creator ID (UUID)"  format(uuid)
//
// @Success     200  {object} handlers.EarningsResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Creator not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /creators/{id}/earnings [get]
func (h *ReportHandlers) GetCreatorEarnings(c *gin.Context) {
	ctx := c.Request.Context()

	creatorID := c.Param("id")
	if _, err := uuid.Parse(creatorID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "creator id must be a UUID")
		return
	}
	if _, err := repo.GetCreator(ctx, h.DB, creatorID); err != nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "creator not found")
		return
	}

	rows, err := repo.CreatorEarnings(ctx, h.DB, creatorID)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "failed to compute earnings")
		return
	}

	out := make([]EarningsEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, EarningsEntry{
			Currency:   r.Currency,
			Purchases:  r.Purchases,
			Commission: money.FromMinorUnits(big.NewInt(r.CommissionMinor), r.Currency),
		})
	}
	ok(c, http.StatusOK, EarningsResponse{CreatorID: creatorID, Earnings: out})
}
