package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"predictions/internal/service"
)

// QueryHandler exposes the read-only query facade for operations and
// downstream API consumers. Nothing here writes.
type QueryHandler struct {
	Query    *service.MarketQueryService
	Location *time.Location
}

func (h *QueryHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1")
	group.GET("/profiles/:address", h.profile)
	group.GET("/leaderboards/monthly/owners", h.monthlyOwners)
	group.GET("/leaderboards/monthly/users", h.monthlyUsers)
	group.GET("/leaderboards/alltime/users", h.alltimeUsers)
	group.GET("/users/:address/bets", h.userBets)
	group.GET("/users/:address/claims", h.userClaims)
	group.GET("/markets", h.recentMarkets)
	group.GET("/markets/:id", h.market)
	group.GET("/markets/:id/stats", h.marketStats)
}

func (h *QueryHandler) profile(c *gin.Context) {
	profile, err := h.Query.Profile(c.Request.Context(), c.Param("address"))
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if profile == nil {
		Error(c, http.StatusNotFound, "profile not found", nil)
		return
	}
	Ok(c, profile, nil)
}

func (h *QueryHandler) month(c *gin.Context) string {
	month := c.Query("month")
	if month == "" {
		loc := h.Location
		if loc == nil {
			loc = time.UTC
		}
		month = service.MonthKey(time.Now(), loc)
	}
	return month
}

func (h *QueryHandler) monthlyOwners(c *gin.Context) {
	month := h.month(c)
	rows, err := h.Query.MonthlyOwnerLeaderboard(c.Request.Context(), month, pageParams(c))
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, rows, map[string]any{"month": month})
}

func (h *QueryHandler) monthlyUsers(c *gin.Context) {
	month := h.month(c)
	rows, err := h.Query.MonthlyUserLeaderboard(c.Request.Context(), month, pageParams(c))
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, rows, map[string]any{"month": month})
}

func (h *QueryHandler) alltimeUsers(c *gin.Context) {
	rows, err := h.Query.AlltimeUserLeaderboard(c.Request.Context(), pageParams(c))
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, rows, nil)
}

func (h *QueryHandler) userBets(c *gin.Context) {
	page, err := h.Query.UserBets(c.Request.Context(), c.Param("address"), pageParams(c))
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, page.Items, map[string]any{"total": page.Total})
}

func (h *QueryHandler) userClaims(c *gin.Context) {
	page, err := h.Query.UserClaims(c.Request.Context(), c.Param("address"), pageParams(c))
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, page.Items, map[string]any{"total": page.Total})
}

func (h *QueryHandler) recentMarkets(c *gin.Context) {
	rows, err := h.Query.RecentMarkets(c.Request.Context(), pageParams(c))
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, rows, nil)
}

func (h *QueryHandler) market(c *gin.Context) {
	market, err := h.Query.Market(c.Request.Context(), c.Param("id"))
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if market == nil {
		Error(c, http.StatusNotFound, "market not found", nil)
		return
	}
	Ok(c, market, nil)
}

func (h *QueryHandler) marketStats(c *gin.Context) {
	stats, err := h.Query.MarketStats(c.Request.Context(), c.Param("id"))
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, stats, nil)
}
