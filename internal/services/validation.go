package services

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"stayprivate/internal/apperr"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateInput 在执行任何业务逻辑之前校验输入结构体，失败时返回 InvalidInput。
func validateInput(input interface{}) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return apperr.Wrap(err, apperr.KindInvalidInput, apperr.ReasonValidationFailed, "请求参数无效")
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
		}
	}
	return apperr.Wrap(err, apperr.KindInvalidInput, apperr.ReasonValidationFailed, "请求参数无效 ("+strings.Join(msgs, "; ")+")")
}
