package enrollment

import (
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/cesiedu/campus/core"
	"github.com/cesiedu/campus/core/academic"
)

var (
	NowFunc = time.Now // mockable

	// digits + basic symbols for telephones; mobiles get the strict PH check
	phoneRegex = regexp.MustCompile(`^[0-9+\-\s()]{7,20}$`)

	phMobileLocalRegex = regexp.MustCompile(`^09\d{9}$`)
	phMobileIntlRegex  = regexp.MustCompile(`^\+639\d{9}$`)
	whitespaceRegex    = regexp.MustCompile(`\s+`)

	honeypotTag  = "honeypot"
	honeypotText = "invalid submission"

	birthDatePastTag  = "bdpast"
	birthDatePastText = "birth date must be in the past"

	ageRangeTag  = "agerange"
	ageRangeText = "student age must be between 3 and 18 years"

	gradeForLevelTag  = "gradeforlevel"
	gradeForLevelText = "grade level does not match the education level"

	contactRequiredTag  = "contactrequired"
	contactRequiredText = "provide at least one contact: mobile number, telephone number, or email"

	phMobileTag  = "phmobile"
	phMobileText = "invalid PH mobile; use 09XXXXXXXXX or +639XXXXXXXXX"

	phoneTag  = "phone"
	phoneText = "invalid phone format"

	parentContactTag  = "parentcontact"
	parentContactText = "provide at least one parent/guardian contact number"
)

func init() {
	core.Validate.RegisterStructValidation(newEnrollmentStructValidation, NewEnrollment{})
	core.RegisterCustomTranslation(honeypotTag, honeypotText)
	core.RegisterCustomTranslation(birthDatePastTag, birthDatePastText)
	core.RegisterCustomTranslation(ageRangeTag, ageRangeText)
	core.RegisterCustomTranslation(gradeForLevelTag, gradeForLevelText)
	core.RegisterCustomTranslation(contactRequiredTag, contactRequiredText)
	core.RegisterCustomTranslation(phMobileTag, phMobileText)
	core.RegisterCustomTranslation(phoneTag, phoneText)
	core.RegisterCustomTranslation(parentContactTag, parentContactText)
}

// NormalizePHMobile normalizes a Philippine mobile number to +639XXXXXXXXX.
// 09XXXXXXXXX and +639XXXXXXXXX inputs are accepted, anything else returns
// ok=false. Normalization is idempotent.
func NormalizePHMobile(value string) (normalized string, ok bool) {
	cleaned := whitespaceRegex.ReplaceAllString(value, "")
	if cleaned == "" {
		return "", false
	}
	if phMobileLocalRegex.MatchString(cleaned) {
		return "+63" + cleaned[1:], true
	}
	if phMobileIntlRegex.MatchString(cleaned) {
		return cleaned, true
	}
	return "", false
}

// Age returns full years between birth and today, month/day accurate.
func Age(birth, today time.Time) int {
	age := today.Year() - birth.Year()
	if today.Month() < birth.Month() || (today.Month() == birth.Month() && today.Day() < birth.Day()) {
		age--
	}
	return age
}

func newEnrollmentStructValidation(sl validator.StructLevel) {
	ne := sl.Current().Interface().(NewEnrollment)

	// honeypot bot check
	if ne.Website != "" {
		sl.ReportError(ne.Website, "website", "Website", honeypotTag, "")
		return
	}

	// birth date: past + age in [3, 18]
	if !ne.BirthDate.IsZero() {
		today := NowFunc()
		todayDate := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
		if !ne.BirthDate.Time.Before(todayDate) {
			sl.ReportError(ne.BirthDate, "birth_date", "BirthDate", birthDatePastTag, "")
		} else if age := Age(ne.BirthDate.Time, todayDate); age < 3 || age > 18 {
			sl.ReportError(ne.BirthDate, "birth_date", "BirthDate", ageRangeTag, "")
		}
	}

	// grade must match education level
	if ne.EducationLevel != "" && academic.ValidGradeCode(ne.GradeLevel) {
		if !academic.GradeMatchesLevel(ne.EducationLevel, ne.GradeLevel) {
			sl.ReportError(ne.GradeLevel, "grade_level", "GradeLevel", gradeForLevelTag, "")
		}
	}

	// at least one student contact method
	if ne.MobileNumber == "" && ne.TelephoneNumber == "" && ne.Email == "" {
		sl.ReportError(ne.MobileNumber, "mobile_number", "MobileNumber", contactRequiredTag, "")
	}

	// strict PH mobile check; Validate normalized the value already, so a
	// failure here means the input was not a PH mobile at all
	if ne.MobileNumber != "" {
		if _, ok := NormalizePHMobile(ne.MobileNumber); !ok {
			sl.ReportError(ne.MobileNumber, "mobile_number", "MobileNumber", phMobileTag, "")
		}
	}

	if ne.TelephoneNumber != "" && !phoneRegex.MatchString(ne.TelephoneNumber) {
		sl.ReportError(ne.TelephoneNumber, "telephone_number", "TelephoneNumber", phoneTag, "")
	}

	// parent/guardian info, when present, needs at least one contact
	if pi := ne.ParentInfo; pi != nil {
		if pi.FatherContact == "" && pi.MotherContact == "" && pi.GuardianContact == "" {
			sl.ReportError(ne.ParentInfo, "parent_info", "ParentInfo", parentContactTag, "")
		}
		for _, contact := range []string{pi.FatherContact, pi.MotherContact, pi.GuardianContact} {
			if contact != "" && !phoneRegex.MatchString(contact) {
				sl.ReportError(ne.ParentInfo, "parent_info", "ParentInfo", phoneTag, "")
				break
			}
		}
	}
}
