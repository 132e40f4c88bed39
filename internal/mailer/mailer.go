package mailer

import (
	"context"
	"net/url"

	"github.com/sirupsen/logrus"

	"schoolhub/internal/logger"
)

type PasswordReset struct {
	Email     string
	FirstName string
	Link      string
}

type Mailer interface {
	SendPasswordReset(ctx context.Context, msg PasswordReset) error
}

// LogMailer writes outgoing mail to the request log. It is the delivery
// used in development and until a mail provider is configured.
type LogMailer struct{}

func (LogMailer) SendPasswordReset(ctx context.Context, msg PasswordReset) error {
	logger.FromContext(ctx).WithFields(logrus.Fields{
		"to":   msg.Email,
		"link": msg.Link,
	}).Info("password reset mail")
	return nil
}

// ResetLink appends the token as a query parameter to the front-end URL.
func ResetLink(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
