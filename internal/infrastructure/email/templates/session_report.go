// Package templates renders the session report email
package templates

import (
	"bytes"
	"html/template"
	"strings"
)

// SessionReportProps is the data shown in a session report
type SessionReportProps struct {
	Preheader  string
	SessionID  string
	Transcript string
	FooterText string
}

type sessionReportData struct {
	Preheader  string
	SessionID  string
	Lines      []string
	Empty      bool
	FooterText string
}

var sessionReportTemplate = template.Must(template.New("sessionReport").Parse(`<!doctype html>
<html lang="en">
  <head>
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <meta http-equiv="Content-Type" content="text/html; charset=UTF-8">
    <title>Your conversation summary</title>
  </head>
  <body style="font-family: Helvetica, sans-serif; font-size: 16px; line-height: 1.3; background-color: #f4f5f6; margin: 0; padding: 0;">
    <span class="preheader" style="color: transparent; display: none; height: 0; max-height: 0; overflow: hidden; visibility: hidden;">{{.Preheader}}</span>
    <table role="presentation" border="0" cellpadding="0" cellspacing="0" width="100%" bgcolor="#f4f5f6">
      <tr>
        <td style="max-width: 600px; padding: 24px; margin: 0 auto;">
          <div style="background: #ffffff; border: 1px solid #eaebed; border-radius: 16px; padding: 24px;">
            <p style="margin: 0 0 16px 0;">Here is the conversation recorded during session <code>{{.SessionID}}</code>.</p>
            {{if .Empty}}<p style="margin: 0; color: #9a9ea6;">Nothing was recorded in this session.</p>{{end}}
            {{range .Lines}}<p style="margin: 0 0 8px 0;">{{.}}</p>
            {{end}}
          </div>
          <p style="text-align: center; color: #9a9ea6; padding-top: 24px;">{{.FooterText}}</p>
        </td>
      </tr>
    </table>
  </body>
</html>`))

// GetSessionReport renders the transcript, one paragraph per line. The header
// line of the transcript is dropped.
func GetSessionReport(props SessionReportProps) (string, error) {
	data := sessionReportData{
		Preheader:  props.Preheader,
		SessionID:  props.SessionID,
		FooterText: props.FooterText,
	}
	if data.Preheader == "" {
		data.Preheader = "Your conversation summary"
	}
	if data.FooterText == "" {
		data.FooterText = "Sent because you ended a coaching session."
	}

	for i, line := range strings.Split(strings.TrimSpace(props.Transcript), "\n") {
		line = strings.TrimSpace(line)
		if i == 0 && strings.HasPrefix(line, "===") {
			continue
		}
		if line == "" || line == "(no history)" {
			continue
		}
		data.Lines = append(data.Lines, line)
	}
	data.Empty = len(data.Lines) == 0

	var buf bytes.Buffer
	if err := sessionReportTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
