package reminder

import (
	"bytes"
	"html/template"

	"github.com/JarvisScienz/progress-tracker/internal/domain"
)

var reminderTemplate = template.Must(template.New("reminder").Parse(`<h1>Activity Reminder</h1>
<p>Hello {{if .Username}}{{.Username}}{{else}}there{{end}},</p>
<p>This is a reminder to complete your activity: <strong>{{.Title}}</strong></p>
{{- if .Description}}
<p>Description: {{.Description}}</p>
{{- end}}
<p>Don't forget to mark it as complete in the app!</p>
`))

// Render builds the reminder email for r.
func Render(r domain.Reminder) (Email, error) {
	var buf bytes.Buffer
	if err := reminderTemplate.Execute(&buf, r); err != nil {
		return Email{}, err
	}
	return Email{
		To:      r.Email,
		ToName:  r.Username,
		Subject: "Reminder: " + r.Title,
		HTML:    buf.String(),
	}, nil
}
