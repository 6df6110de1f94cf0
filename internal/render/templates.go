package render

import (
	"embed"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

var exportTemplate *template.Template

func init() {
	content, err := templateFS.ReadFile("templates/proposal.html")
	if err != nil {
		// Fallback to the built-in template if the embedded file is missing
		exportTemplate = template.Must(template.New("proposal").Parse(fallbackTemplate))
		return
	}
	exportTemplate = template.Must(template.New("proposal").Parse(string(content)))
}

// fallbackTemplate is a reduced layout used only if the embedded
// template cannot be loaded.
const fallbackTemplate = `<!DOCTYPE html>
<html lang="fr">
<head>
<meta charset="UTF-8">
<title>{{.Title}}</title>
<style>
body { font-family: Georgia, serif; max-width: 800px; margin: 2rem auto; }
h1 { color: {{.ThemeColor}}; }
table { width: 100%; border-collapse: collapse; }
td, th { border: 1px solid #ccc; padding: 6px; }
</style>
</head>
<body>
{{if .ShowHeader}}<h1>{{.Title}}</h1><p>{{.BrandName}} — {{.ClientName}}</p>{{end}}
{{if .ShowItinerary}}<h2>{{.ItineraryTitle}}</h2>
<table>{{range .ItineraryRows}}<tr><td>{{.Day}}</td><td>{{.Date}}</td><td>{{.Activity}}</td><td>{{.Night}}</td><td>{{.Hotel}}</td></tr>{{end}}</table>{{end}}
{{if .ShowProgram}}<h2>{{.ProgramTitle}}</h2><div>{{.ProgramHTML}}</div>{{end}}
{{if .ShowPricing}}<h2>{{.PricingTitle}}</h2><p>{{.PricePerPerson}} / {{.SingleRoomSupplement}}</p><p>{{.PricingNotes}}</p>{{end}}
</body>
</html>`
