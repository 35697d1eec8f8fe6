package handler

import (
	"errors"
	"reflect"
	"strings"

	"settlepos/internal/apierror"
	"settlepos/internal/middleware"
	"settlepos/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

func init() {
	// Register decimal.Decimal as a numeric type so that validator tags like
	// min=0, gt=0, required work without panicking ("Bad field type decimal.Decimal").
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	// Report fields by their wire names.
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})
}

// bindAndValidate binds JSON body and runs go-playground/validator tags.
// Returns false and writes the error response if validation fails;
// the caller should return immediately without writing another response.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.AbortWithStatusJSON(apierror.ErrInvalidRequest.Status,
			apierror.New(apierror.ErrInvalidRequest.Code, "invalid JSON: "+err.Error()))
		return false
	}
	return validateStruct(c, req)
}

// bindQuery is bindAndValidate for query strings.
func bindQuery(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		c.AbortWithStatusJSON(apierror.ErrInvalidRequest.Status,
			apierror.New(apierror.ErrInvalidRequest.Code, "invalid query: "+err.Error()))
		return false
	}
	return validateStruct(c, req)
}

func validateStruct(c *gin.Context, req interface{}) bool {
	err := validate.Struct(req)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		respondError(c, apierror.ErrInvalidRequest.Wrap(err))
		return false
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fieldPath(fe)] = fe.Tag()
	}
	c.AbortWithStatusJSON(apierror.ErrValidation.Status, apierror.NewValidation(fields, middleware.Locale(c)))
	return false
}

// fieldPath drops the root struct name and the embedded command prefix.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		ns = ns[i+1:]
	}
	return strings.TrimPrefix(ns, "Command.")
}

// respondError writes err in the request locale. Internal failures are
// logged here; the client only sees the generic message.
func respondError(c *gin.Context, err error) {
	e := apierror.From(err)
	if e.Internal() {
		log.Error().
			Str("request_id", c.GetString(middleware.RequestIDKey)).
			Str("path", c.FullPath()).
			Err(err).
			Msg("request failed")
	}
	status, body := apierror.Envelope(e, middleware.Locale(c))
	c.AbortWithStatusJSON(status, body)
}

// actorFrom builds the command actor from the access token claims.
func actorFrom(c *gin.Context) (service.Actor, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		return service.Actor{}, false
	}
	id, err := uuid.Parse(claims.UserID)
	if err != nil {
		return service.Actor{}, false
	}
	return service.Actor{ID: id, Username: claims.Username, Role: claims.Role, Permissions: claims.Permissions}, true
}

func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		respondError(c, apierror.ErrValidation.WithFields(map[string]string{name: "uuid"}))
		return uuid.Nil, false
	}
	return id, true
}
