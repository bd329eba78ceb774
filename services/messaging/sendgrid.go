package messagingsvc

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/trezcool/halaqat/core"
)

var (
	host     = "https://api.sendgrid.com"
	endpoint = "/v3/mail/send"
)

// sendgridMessenger delivers messages to email targets.
type sendgridMessenger struct {
	key     string
	from    *sgmail.Email
	subject string
}

var _ core.Messenger = (*sendgridMessenger)(nil)

func NewSendgridMessenger(conf *core.Config) *sendgridMessenger {
	return &sendgridMessenger{
		key:     conf.Messaging.SendgridApiKey,
		from:    sgmail.NewEmail(conf.DefaultFromEmail.Name, conf.DefaultFromEmail.Address),
		subject: "[" + conf.AppName + "]",
	}
}

func (m *sendgridMessenger) prepare(target, text string) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = m.subject
	p.AddTos(sgmail.NewEmail("", target))

	msg := sgmail.NewV3Mail()
	msg.SetFrom(m.from)
	msg.AddPersonalizations(p)
	msg.AddContent(sgmail.NewContent("text/plain", text))
	return msg
}

func (m *sendgridMessenger) Send(ctx context.Context, target, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	req := sendgrid.GetRequest(m.key, endpoint, host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(m.prepare(target, text))

	res, err := sendgrid.API(req)
	if err != nil {
		return errors.Wrap(err, "sending email")
	}
	if res.StatusCode >= http.StatusBadRequest {
		return errors.Errorf("sending email - status: %d - body: %s", res.StatusCode, res.Body)
	}
	return nil
}
