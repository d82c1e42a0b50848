package web

import (
	"embed"
	"html/template"
	"io/fs"
	"strings"

	"shop-service/models"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Templates parses every page template with the shared helpers.
func Templates() (*template.Template, error) {
	return template.New("").Funcs(template.FuncMap{
		"money":    models.FormatMoney,
		"currency": models.CurrencySymbol,
		"upper":    strings.ToUpper,
		"mul": func(price float64, qty int) float64 {
			return price * float64(qty)
		},
	}).ParseFS(templateFS, "templates/*.html")
}

// Static returns the front-end assets rooted at static/.
func Static() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}
