package render

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/franzego/eventmailer/internal/models"
	"github.com/franzego/eventmailer/internal/templates"
)

// TimeLayout is used for the event time shown in the email footer.
const TimeLayout = "Monday, January 2, 2006 at 3:04 PM MST"

type emailData struct {
	Title       string
	Icon        string
	HeaderColor string
	Greeting    string
	Intro       string
	Detail      string
	Message     string
	MediaURL    string
	Transcript  string
	EventTime   string
	DeviceName  string
	Location    string
}

// html/template escapes every interpolated field for its context, including href.
var emailTmpl = template.Must(template.New("email").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><style>
body { font-family: -apple-system, BlinkMacSystemFont, sans-serif; margin: 0; padding: 20px; background: #f5f5f5; }
.card { background: #fff; border-radius: 8px; max-width: 600px; margin: 0 auto; box-shadow: 0 1px 3px rgba(0,0,0,0.1); overflow: hidden; }
.header { color: #fff; padding: 20px 24px; font-size: 20px; font-weight: 600; }
.content { padding: 24px; color: #333; line-height: 1.6; }
.message { background: #f9fafb; border-left: 4px solid #d1d5db; padding: 12px; margin: 16px 0; }
.media { margin: 16px 0; }
.footer { color: #999; font-size: 12px; padding: 16px 24px; border-top: 1px solid #eee; }
</style></head>
<body>
<div class="card">
  <div class="header" style="background-color: {{.HeaderColor}}">{{.Icon}} {{.Title}}</div>
  <div class="content">
    <p>Hi {{.Greeting}},</p>
    <p>{{.Intro}}</p>
    <p class="detail">{{.Detail}}</p>
    {{- if .Message}}
    <div class="message">{{.Message}}</div>
    {{- end}}
    {{- if .MediaURL}}
    <div class="media">
      <p><a href="{{.MediaURL}}">View recording</a></p>
      {{- if .Transcript}}
      <p class="transcript"><strong>Transcript:</strong> {{.Transcript}}</p>
      {{- end}}
    </div>
    {{- end}}
  </div>
  <div class="footer">
    Event time: {{.EventTime}}<br>
    Device: {{.DeviceName}}{{if .Location}} ({{.Location}}){{end}}
  </div>
</div>
</body>
</html>`))

// Subject builds "{icon} {subject}: {device name}".
func Subject(tmpl templates.Template, device models.Device) string {
	return fmt.Sprintf("%s %s: %s", tmpl.Icon, tmpl.Subject, device.Name)
}

// Render produces the subject line and HTML body for an event.
func Render(event models.Event, device models.Device, owner models.Owner) (string, string, error) {
	tmpl := templates.Resolve(event.EventType)
	payload := event.DecodePayload()

	greeting := owner.FirstName
	if greeting == "" {
		greeting = "there"
	}

	data := emailData{
		Title:       tmpl.Subject,
		Icon:        tmpl.Icon,
		HeaderColor: tmpl.Priority.Color(),
		Greeting:    greeting,
		Intro:       tmpl.Intro,
		Detail:      tmpl.Detail(device.Location),
		Message:     payload.Message,
		MediaURL:    payload.MediaURL,
		Transcript:  payload.MediaTranscript,
		EventTime:   formatTime(event.OccurredAt),
		DeviceName:  device.Name,
		Location:    device.Location,
	}

	var buf bytes.Buffer
	if err := emailTmpl.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("render email template: %w", err)
	}
	return Subject(tmpl, device), buf.String(), nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.UTC().Format(TimeLayout)
}
