package user

import (
	"fmt"
	"net/mail"

	"github.com/cesiedu/campus/core"
)

// PasswordSetEmail invites usr to (re)set their password via the frontend.
func PasswordSetEmail(usr User, token string) *core.EmailMessage {
	return &core.EmailMessage{
		To:           []mail.Address{{Name: usr.Username, Address: usr.Email}},
		Subject:      fmt.Sprintf("Set your %s password", core.Conf.AppName),
		TemplateName: "password_set",
		TemplateData: struct {
			Username string
			URL      string
		}{
			Username: usr.Username,
			URL:      fmt.Sprintf("%s/set-password/%s/%s", core.Conf.FrontendBaseURL, EncodeUID(usr), token),
		},
	}
}

// AccountPromotedEmail notifies an existing account that an approved
// enrollment was linked to it.
func AccountPromotedEmail(usr User, studentName string) *core.EmailMessage {
	return &core.EmailMessage{
		To:           []mail.Address{{Name: usr.Username, Address: usr.Email}},
		Subject:      "Enrollment approved",
		TemplateName: "account_promoted",
		TemplateData: struct {
			Username    string
			StudentName string
		}{
			Username:    usr.Username,
			StudentName: studentName,
		},
	}
}
