package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/ryoozeen/RCS/internal/microservices/http-api/dto"
	"github.com/ryoozeen/RCS/internal/microservices/http-api/repository"
	"github.com/ryoozeen/RCS/internal/microservices/tcp"
)

const defaultListLimit = 50

// ClientLister is the registry view the admin API needs.
type ClientLister interface {
	Snapshot() []tcp.ClientInfo
}

type AdminHandler struct {
	clients   ClientLister
	operators repository.OperatorRepository // nil when accounts live in memory
}

func NewAdminHandler(clients ClientLister, operators repository.OperatorRepository) *AdminHandler {
	return &AdminHandler{clients: clients, operators: operators}
}

func (h *AdminHandler) Health(c *gin.Context) {
	snapshot := h.clients.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"clients": len(snapshot),
	})
}

func (h *AdminHandler) ListClients(c *gin.Context) {
	snapshot := h.clients.Snapshot()
	out := dto.ClientsResponse{Clients: make([]dto.ClientResponse, 0, len(snapshot)), Total: len(snapshot)}
	for _, info := range snapshot {
		out.Clients = append(out.Clients, dto.ClientResponse{ID: info.ID, Role: info.Role.String()})
	}
	c.JSON(http.StatusOK, out)
}

func (h *AdminHandler) ListOperators(c *gin.Context) {
	if h.operators == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "operator listing needs a database backend"})
		return
	}

	var q dto.ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if q.Limit == 0 {
		q.Limit = defaultListLimit
	}

	operators, total, err := h.operators.List(c.Request.Context(), q.Limit, q.Offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list operators"})
		return
	}

	out := dto.OperatorsResponse{
		Operators: make([]dto.OperatorResponse, 0, len(operators)),
		Total:     total,
		Limit:     q.Limit,
		Offset:    q.Offset,
	}
	for _, op := range operators {
		out.Operators = append(out.Operators, dto.OperatorResponse{
			LoginID:   op.LoginID,
			Username:  op.Username,
			CarModel:  op.CarModel,
			CreatedAt: op.CreatedAt,
			LastLogin: op.LastLogin,
		})
	}
	c.JSON(http.StatusOK, out)
}

func (h *AdminHandler) GetOperator(c *gin.Context) {
	if h.operators == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "operator listing needs a database backend"})
		return
	}

	op, err := h.operators.FindByLoginID(c.Request.Context(), c.Param("id"))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "operator not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load operator"})
		return
	}
	c.JSON(http.StatusOK, dto.OperatorResponse{
		LoginID:   op.LoginID,
		Username:  op.Username,
		CarModel:  op.CarModel,
		CreatedAt: op.CreatedAt,
		LastLogin: op.LastLogin,
	})
}
