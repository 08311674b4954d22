package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	dealdomain "github.com/smallbiznis/sellora/internal/deal/domain"
	"github.com/smallbiznis/sellora/pkg/db/pagination"
)

type createDealRequest struct {
	ContactID string `json:"contact_id"`
	Title     string `json:"title"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
}

func (s *Server) CreateDeal(c *gin.Context) {
	var req createDealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	deal, err := s.deals.Create(c.Request.Context(), dealdomain.CreateDealRequest{
		ContactID: strings.TrimSpace(req.ContactID),
		Title:     strings.TrimSpace(req.Title),
		Amount:    req.Amount,
		Currency:  strings.TrimSpace(req.Currency),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": deal})
}

func (s *Server) ListDeals(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Stage string `form:"stage"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.deals.List(c.Request.Context(), dealdomain.ListDealRequest{
		Pagination: query.Pagination,
		Stage:      strings.TrimSpace(query.Stage),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Deals, "page_info": resp.PageInfo})
}

func (s *Server) GetDealByID(c *gin.Context) {
	deal, err := s.deals.GetByID(c.Request.Context(), dealdomain.GetDealRequest{
		ID: strings.TrimSpace(c.Param("id")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": deal})
}

type updateDealRequest struct {
	Title  *string `json:"title"`
	Stage  *string `json:"stage"`
	Amount *int64  `json:"amount"`
}

func (s *Server) UpdateDeal(c *gin.Context) {
	var req updateDealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	deal, err := s.deals.Update(c.Request.Context(), dealdomain.UpdateDealRequest{
		ID:     strings.TrimSpace(c.Param("id")),
		Title:  req.Title,
		Stage:  req.Stage,
		Amount: req.Amount,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": deal})
}

func (s *Server) DeleteDeal(c *gin.Context) {
	err := s.deals.Delete(c.Request.Context(), dealdomain.GetDealRequest{
		ID: strings.TrimSpace(c.Param("id")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

type reassignDealRequest struct {
	OwnerID string `json:"owner_id"`
}

// ReassignDeal hands a deal to a new owner. The service runs both sides of
// the check: the caller's assignment permission over the deal and the
// assignment rules against the target.
func (s *Server) ReassignDeal(c *gin.Context) {
	var req reassignDealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	deal, err := s.deals.Reassign(c.Request.Context(), dealdomain.ReassignDealRequest{
		ID:      strings.TrimSpace(c.Param("id")),
		OwnerID: strings.TrimSpace(req.OwnerID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": deal})
}

func isDealValidationError(err error) bool {
	switch err {
	case dealdomain.ErrNoOrganization,
		dealdomain.ErrInvalidTitle,
		dealdomain.ErrInvalidAmount,
		dealdomain.ErrInvalidCurrency,
		dealdomain.ErrInvalidStage,
		dealdomain.ErrInvalidContact,
		dealdomain.ErrInvalidOwner,
		dealdomain.ErrInvalidID,
		dealdomain.ErrInvalidPageToken:
		return true
	default:
		return false
	}
}
