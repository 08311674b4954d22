package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	contactdomain "github.com/smallbiznis/sellora/internal/contact/domain"
	"github.com/smallbiznis/sellora/pkg/db/pagination"
)

type createContactRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (s *Server) CreateContact(c *gin.Context) {
	var req createContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	contact, err := s.contacts.Create(c.Request.Context(), contactdomain.CreateContactRequest{
		Name:  strings.TrimSpace(req.Name),
		Email: strings.TrimSpace(req.Email),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": contact})
}

func (s *Server) ListContacts(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Name string `form:"name"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.contacts.List(c.Request.Context(), contactdomain.ListContactRequest{
		Pagination: query.Pagination,
		Name:       strings.TrimSpace(query.Name),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Contacts, "page_info": resp.PageInfo})
}

func (s *Server) GetContactByID(c *gin.Context) {
	contact, err := s.contacts.GetByID(c.Request.Context(), contactdomain.GetContactRequest{
		ID: strings.TrimSpace(c.Param("id")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": contact})
}

type updateContactRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

func (s *Server) UpdateContact(c *gin.Context) {
	var req updateContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	contact, err := s.contacts.Update(c.Request.Context(), contactdomain.UpdateContactRequest{
		ID:    strings.TrimSpace(c.Param("id")),
		Name:  req.Name,
		Email: req.Email,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": contact})
}

func (s *Server) DeleteContact(c *gin.Context) {
	err := s.contacts.Delete(c.Request.Context(), contactdomain.GetContactRequest{
		ID: strings.TrimSpace(c.Param("id")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func isContactValidationError(err error) bool {
	switch err {
	case contactdomain.ErrNoOrganization,
		contactdomain.ErrInvalidName,
		contactdomain.ErrInvalidEmail,
		contactdomain.ErrInvalidID,
		contactdomain.ErrInvalidPageToken:
		return true
	default:
		return false
	}
}
