package outbound

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

var firstMessageTemplate = template.Must(template.ParseFS(templateFS, "templates/first_message.html"))

type firstMessageData struct {
	Greeting   string
	Address    string
	SenderName string
}

func firstMessageSubject(address string) string {
	return "About your property at " + address
}

func renderFirstMessage(m FirstMessage, senderName string) (string, error) {
	greeting := "Hello"
	if name := strings.TrimSpace(m.ContactName); name != "" {
		greeting = "Hello " + name
	}

	var buf bytes.Buffer
	err := firstMessageTemplate.ExecuteTemplate(&buf, "first_message.html", firstMessageData{
		Greeting:   greeting,
		Address:    m.Address,
		SenderName: senderName,
	})
	if err != nil {
		return "", fmt.Errorf("execute first message template: %w", err)
	}
	return buf.String(), nil
}
