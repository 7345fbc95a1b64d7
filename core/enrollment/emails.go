package enrollment

import (
	"fmt"
	"net/mail"

	"github.com/cesiedu/campus/core"
	"github.com/cesiedu/campus/core/user"
)

// PromotionEmail confirms a promotion to the parent of an old student.
func PromotionEmail(parent user.User, enr Enrollment) *core.EmailMessage {
	return &core.EmailMessage{
		To:           []mail.Address{{Name: parent.Username, Address: parent.Email}},
		Subject:      "Student Promotion Confirmed",
		TemplateName: "promotion",
		TemplateData: struct {
			StudentName   string
			GradeLevel    string
			AcademicYear  string
			StudentNumber string
		}{
			StudentName:   enr.StudentName(),
			GradeLevel:    enr.GradeLevel,
			AcademicYear:  enr.AcademicYear,
			StudentNumber: enr.StudentNumber,
		},
	}
}

// ParentAccountEmail carries the set-password link for a freshly provisioned
// parent account.
func ParentAccountEmail(parent user.User, enr Enrollment, token string) *core.EmailMessage {
	return &core.EmailMessage{
		To:           []mail.Address{{Name: parent.Username, Address: parent.Email}},
		Subject:      "Your Parent Portal Account",
		TemplateName: "parent_account",
		TemplateData: struct {
			StudentName string
			Username    string
			Email       string
			URL         string
		}{
			StudentName: enr.StudentName(),
			Username:    parent.Username,
			Email:       parent.Email,
			URL:         fmt.Sprintf("%s/set-password/%s/%s", core.Conf.FrontendBaseURL, user.EncodeUID(parent), token),
		},
	}
}
