// Package response формирует единый JSON-конверт ответов HTTP-обработчиков:
// { "message", "code", "data", "errors" }.
package response

import (
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/gregai-backend/internal/lib/apperr"
	"github.com/magabrotheeeer/gregai-backend/internal/lib/sl"
)

// Response стандартная структура JSON-ответа сервера.
type Response struct {
	Message string            `json:"message" example:"Success"`
	Code    int               `json:"code" example:"200"`
	Data    any               `json:"data"`
	Errors  map[string]string `json:"errors"`
}

// ErrorResponse структура ошибки для Swagger-документации.
type ErrorResponse struct {
	Message string            `json:"message" example:"Invalid credentials"`
	Code    int               `json:"code" example:"401"`
	Data    any               `json:"data" swaggertype:"object"`
	Errors  map[string]string `json:"errors"`
}

// OK успешный ответ с данными.
func OK(code int, msg string, data any) Response {
	return Response{Message: msg, Code: code, Data: data}
}

// Error ответ с ошибкой.
func Error(code int, msg string) Response {
	return Response{Message: msg, Code: code}
}

// FromError переводит ошибку сервисного слоя в ответ. Причина ошибки
// клиенту не показывается.
func FromError(err error) Response {
	e := apperr.As(err)
	return Error(e.Kind.Status(), e.Message)
}

// ValidationError формирует ответ 422 с описанием каждого нарушения.
func ValidationError(errs validator.ValidationErrors) Response {
	fields := make(map[string]string, len(errs))

	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			fields[err.Field()] = fmt.Sprintf("field %s is a required field", err.Field())
		case "email":
			fields[err.Field()] = fmt.Sprintf("field %s must be a valid email address", err.Field())
		case "max":
			fields[err.Field()] = fmt.Sprintf("field %s must be at most %s characters long", err.Field(), err.Param())
		case "min":
			fields[err.Field()] = fmt.Sprintf("field %s must be at least %s characters long", err.Field(), err.Param())
		case "len":
			fields[err.Field()] = fmt.Sprintf("field %s must be exactly %s characters long", err.Field(), err.Param())
		case "numeric":
			fields[err.Field()] = fmt.Sprintf("field %s can contain only numbers", err.Field())
		case "url":
			fields[err.Field()] = fmt.Sprintf("field %s must be a valid URL", err.Field())
		default:
			fields[err.Field()] = fmt.Sprintf("field %s is not valid", err.Field())
		}
	}
	return Response{
		Message: "Validation error",
		Code:    http.StatusUnprocessableEntity,
		Errors:  fields,
	}
}

// Write отправляет ответ с HTTP-кодом из поля Code.
func Write(w http.ResponseWriter, r *http.Request, resp Response) {
	render.Status(r, resp.Code)
	render.JSON(w, r, resp)
}

// WriteError логирует ошибку и отправляет соответствующий ответ.
// Внутренние ошибки логируются уровнем Error, клиентские уровнем Info.
func WriteError(w http.ResponseWriter, r *http.Request, log *slog.Logger, msg string, err error) {
	resp := FromError(err)
	if resp.Code >= http.StatusInternalServerError || resp.Code == http.StatusFailedDependency {
		log.Error(msg, sl.Err(err))
	} else {
		log.Info(msg, sl.Err(err))
	}
	Write(w, r, resp)
}

// NewValidator создаёт валидатор, называющий поля по их json-тегам.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return v
}
