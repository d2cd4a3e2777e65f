package sendgrid

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/shopspring/decimal"
)

// EmailService sends transactional mail. Callers treat it as fire-and-forget;
// a failed confirmation never fails the settled order.
type EmailService interface {
	SendOrderConfirmation(ctx context.Context, toAddress, firstName, orderNumber string, total decimal.Decimal) error
}

type emailService struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
}

func NewEmailService(apiKey string, fromEmail string, fromName string) EmailService {
	return &emailService{client: sendgrid.NewSendClient(apiKey), fromEmail: fromEmail, fromName: fromName}
}

// SendOrderConfirmation implements EmailService.
func (e *emailService) SendOrderConfirmation(ctx context.Context, toAddress, firstName, orderNumber string, total decimal.Decimal) error {
	from := mail.NewEmail(e.fromName, e.fromEmail)
	to := mail.NewEmail(firstName, toAddress)

	subject := fmt.Sprintf("Order confirmation %s", orderNumber)

	plain := fmt.Sprintf(
		"Hello %s,\n\nThank you for your order %s. We received your payment of %s EUR and your pharmacy is preparing it.\n",
		firstName, orderNumber, total.StringFixed(2))
	html := fmt.Sprintf(
		"<p>Hello %s,</p><p>Thank you for your order <strong>%s</strong>. We received your payment of <strong>%s&nbsp;&euro;</strong> and your pharmacy is preparing it.</p>",
		firstName, orderNumber, total.StringFixed(2))

	message := mail.NewSingleEmail(from, subject, to, plain, html)

	response, err := e.client.SendWithContext(ctx, message)
	if err != nil {
		return err
	}

	if response.StatusCode >= 400 {
		return fmt.Errorf("failed to send email, status code: %d", response.StatusCode)
	}

	return nil
}
