package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
	"github.com/linemk/shop-payments/internal/lib/signature"
	"github.com/linemk/shop-payments/internal/service"
)

// ErrorResponse - тело ответа с ошибкой
type ErrorResponse struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields,omitempty"`
}

// errorStatus отображает ошибку сервиса на HTTP-статус и безопасное для клиента сообщение
func errorStatus(err error) (int, ErrorResponse) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, ErrorResponse{Error: verr.Error(), Fields: verr.Fields}
	case errors.Is(err, signature.ErrInvalidSignature):
		return http.StatusForbidden, ErrorResponse{Error: "invalid signature"}
	case errors.Is(err, service.ErrDuplicateOrder):
		return http.StatusConflict, ErrorResponse{Error: service.ErrDuplicateOrder.Error()}
	case errors.Is(err, service.ErrOrderNotFound):
		return http.StatusNotFound, ErrorResponse{Error: service.ErrOrderNotFound.Error()}
	case errors.Is(err, service.ErrGatewayMisconfigured):
		return http.StatusInternalServerError, ErrorResponse{Error: service.ErrGatewayMisconfigured.Error()}
	case errors.Is(err, service.ErrGateway):
		return http.StatusInternalServerError, ErrorResponse{Error: service.ErrGateway.Error()}
	case errors.Is(err, service.ErrStoreUnavailable):
		return http.StatusInternalServerError, ErrorResponse{Error: service.ErrStoreUnavailable.Error()}
	default:
		return http.StatusInternalServerError, ErrorResponse{Error: "internal server error"}
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := errorStatus(err)
	render.Status(r, status)
	render.JSON(w, r, resp)
}
