// internal/service/template_service.go
package service

import (
	"strings"

	"github.com/unclebandit/crm-backend/internal/model"
)

func RenderTemplate(template string, data map[string]string) string {
	result := template
	for k, v := range data {
		result = strings.ReplaceAll(result, "{"+k+"}", v)
	}
	return result
}

// PersonalizeMessage fills the {name} placeholder with the customer's name.
func PersonalizeMessage(template string, c model.Customer) string {
	return RenderTemplate(template, map[string]string{"name": c.Name})
}
