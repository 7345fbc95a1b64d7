package user

import (
	"context"

	"github.com/cesiedu/campus/core"
	"github.com/cesiedu/campus/core/academic"
)

type serviceMock struct {
	service
}

// NewServiceMock returns a Service whose emails are sent synchronously.
func NewServiceMock(repo Repository, acadRepo academic.Repository, mailSvc core.EmailService) Service {
	return &serviceMock{
		service: service{
			repo:     repo,
			acadRepo: acadRepo,
			mailSvc:  mailSvc,
		},
	}
}

func (svc *serviceMock) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	// run synchronously
	svc.sendPasswordSetMail(usr)
	return nil
}
