package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

type researchRequest struct {
	SuccessorItemID   int64 `json:"successor_item_id" validate:"required,gt=0"`
	PredecessorItemID int64 `json:"predecessor_item_id" validate:"gte=0"`
}

type convertRequest struct {
	Amount int64 `json:"amount" validate:"required,gt=0"`
}

type startMatchRequest struct {
	Map string `json:"map" validate:"max=64"`
}

type reportRequest struct {
	ItemCode string `json:"item_code" validate:"required,max=64"`
	Team     int    `json:"team"`
	Result   string `json:"result" validate:"max=16"`
	Kills    int    `json:"kills"`
	Damage   int    `json:"damage"`
}

type grantRequest struct {
	AccountID int64  `json:"account_id" validate:"required,gt=0"`
	ItemCode  string `json:"item_code" validate:"required,max=64"`
}

type sessionRequest struct {
	Username string `json:"username" validate:"max=32"`
}

// decodeValid decodes the body into out and runs struct validation. An empty
// body is accepted when allowEmpty is set.
func decodeValid(w http.ResponseWriter, r *http.Request, out any, allowEmpty bool) bool {
	if err := decodeJSON(r, out); err != nil && !(allowEmpty && errors.Is(err, io.EOF)) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	if err := validate.Struct(out); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": validationMessage(err),
			"kind":  "validation",
		})
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	var details strings.Builder
	for _, fe := range verrs {
		if details.Len() > 0 {
			details.WriteString("; ")
		}
		switch fe.Tag() {
		case "required":
			details.WriteString(fmt.Sprintf("%s is required", fe.Field()))
		case "gt", "gte":
			details.WriteString(fmt.Sprintf("%s must be %s %s", fe.Field(), comparison(fe.Tag()), fe.Param()))
		case "lte":
			details.WriteString(fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param()))
		case "max":
			if fe.Kind() == reflect.String {
				details.WriteString(fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param()))
			} else {
				details.WriteString(fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param()))
			}
		default:
			details.WriteString(fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag()))
		}
	}
	return details.String()
}

func comparison(tag string) string {
	if tag == "gt" {
		return ">"
	}
	return ">="
}
