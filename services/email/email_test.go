package emailsvc

import (
	"net/http"
	"net/mail"
	"strings"
	"sync"
	"testing"

	"github.com/sendgrid/rest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/approvals/core"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

type reviewData struct {
	OwnerName   string
	RecordID    string
	Variant     string
	Title       string
	StatusLabel string
	Comments    string
}

func reviewedMessage() *core.EmailMessage {
	return &core.EmailMessage{
		To:           []mail.Address{{Name: "Neema", Address: "neema@school.test"}},
		Subject:      "Your lesson plan was reviewed: Needs Revision",
		TemplateName: "record_reviewed",
		TemplateData: reviewData{
			OwnerName:   "Neema",
			RecordID:    "42",
			Variant:     "lesson plan",
			Title:       "Photosynthesis",
			StatusLabel: "Needs Revision",
			Comments:    "add an experiment",
		},
	}
}

func TestConsoleServiceMock_SendMessages(t *testing.T) {
	conf := core.NewTestConfig()
	core.ParseEmailTemplates(conf, nopLogger{})
	svc := NewConsoleServiceMock(conf, nopLogger{})

	svc.SendMessages(
		reviewedMessage(),
		&core.EmailMessage{Subject: "no recipient", BodyStr: "hello"},
		&core.EmailMessage{To: []mail.Address{{Address: "a@b.test"}}, Subject: "no content"},
		&core.EmailMessage{To: []mail.Address{{Address: "a@b.test"}}, Subject: "plain", BodyStr: "hello"},
	)

	sent := svc.Sent()
	require.Len(t, sent, 2)
	assert.Contains(t, sent[0].TextContent, `Your lesson plan "Photosynthesis" is now: Needs Revision.`)
	assert.Contains(t, sent[0].TextContent, "add an experiment")
	assert.Contains(t, sent[0].TextContent, "http://localhost:3000/records/42")
	assert.Contains(t, sent[0].HTMLContent, "Photosynthesis")
	assert.Equal(t, "hello", sent[1].TextContent)

	svc.Reset()
	assert.Empty(t, svc.Sent())
}

func TestConsoleService_format(t *testing.T) {
	svc := NewConsoleService(core.NewTestConfig(), nopLogger{})
	body, err := svc.format(core.EmailMessage{
		To:          []mail.Address{{Name: "Neema", Address: "neema@school.test"}},
		Cc:          []mail.Address{{Address: "head@school.test"}},
		Subject:     "Reviewed",
		TextContent: "plain text",
		HTMLContent: "<p>html</p>",
	})
	require.NoError(t, err)

	assert.Contains(t, body, "Subject: [Approvals] Reviewed\r\n")
	assert.Contains(t, body, `To: "Neema" <neema@school.test>`)
	assert.Contains(t, body, "CC: <head@school.test>")
	assert.NotContains(t, body, "BCC:")
	assert.Contains(t, body, "plain text")
	assert.Contains(t, body, "<p>html</p>")
	assert.Equal(t, 2, strings.Count(body, "Content-Type: text/"))
}

func TestSendgridService_send(t *testing.T) {
	conf := core.NewTestConfig()
	core.ParseEmailTemplates(conf, nopLogger{})
	svc := NewSendgridService(conf, nopLogger{})

	var (
		wg  sync.WaitGroup
		got rest.Request
	)
	wg.Add(1)
	svc.api = func(req rest.Request) (*rest.Response, error) {
		defer wg.Done()
		got = req
		return &rest.Response{StatusCode: http.StatusAccepted}, nil
	}

	svc.SendMessages(reviewedMessage())
	wg.Wait()

	assert.Equal(t, rest.Method(http.MethodPost), got.Method)
	assert.Equal(t, "https://api.sendgrid.com/v3/mail/send", got.BaseURL)
	body := string(got.Body)
	assert.Contains(t, body, "neema@school.test")
	assert.Contains(t, body, "[Approvals] Your lesson plan was reviewed: Needs Revision")
	assert.Contains(t, body, "text/html")
}
