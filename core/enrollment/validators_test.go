package enrollment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cesiedu/campus/core"
)

func TestNormalizePHMobile(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		want   string
		wantOK bool
	}{
		{name: "local format", in: "09171234567", want: "+639171234567", wantOK: true},
		{name: "international format", in: "+639171234567", want: "+639171234567", wantOK: true},
		{name: "with spaces", in: "0917 123 4567", want: "+639171234567", wantOK: true},
		{name: "empty", in: "", wantOK: false},
		{name: "too short", in: "0917123456", wantOK: false},
		{name: "too long", in: "091712345678", wantOK: false},
		{name: "landline", in: "(02) 8123 4567", wantOK: false},
		{name: "foreign prefix", in: "+19171234567", wantOK: false},
		{name: "not 9 after prefix", in: "+638171234567", wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizePHMobile(tt.in)
			require.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)

				// normalizing again must not change the value
				again, ok := NormalizePHMobile(got)
				require.True(t, ok)
				assert.Equal(t, got, again)
			}
		})
	}
}

func TestAge(t *testing.T) {
	today := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		birth time.Time
		want  int
	}{
		{name: "birthday today", birth: time.Date(2018, 6, 15, 0, 0, 0, 0, time.UTC), want: 6},
		{name: "birthday tomorrow", birth: time.Date(2018, 6, 16, 0, 0, 0, 0, time.UTC), want: 5},
		{name: "birthday yesterday", birth: time.Date(2018, 6, 14, 0, 0, 0, 0, time.UTC), want: 6},
		{name: "later month", birth: time.Date(2018, 11, 1, 0, 0, 0, 0, time.UTC), want: 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Age(tt.birth, today))
		})
	}
}

func validEnrollment() NewEnrollment {
	return NewEnrollment{
		FirstName:      "Juan",
		LastName:       "Dela Cruz",
		BirthDate:      core.NewDate(2015, time.March, 10),
		EducationLevel: "elementary",
		GradeLevel:     "grade3",
		StudentType:    "new",
		PaymentMode:    "cash",
		MobileNumber:   "09171234567",
	}
}

func TestNewEnrollment_Validate(t *testing.T) {
	NowFunc = func() time.Time { return time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC) }
	defer func() { NowFunc = time.Now }()

	t.Run("valid payload normalizes mobile", func(t *testing.T) {
		ne := validEnrollment()
		require.NoError(t, ne.Validate())
		assert.Equal(t, "+639171234567", ne.MobileNumber)
		assert.Equal(t, core.Conf.AcademicYear, ne.AcademicYear)
	})

	t.Run("honeypot rejects", func(t *testing.T) {
		ne := validEnrollment()
		ne.Website = "http://spam.example.com"
		assert.Error(t, ne.Validate())
	})

	t.Run("age boundaries", func(t *testing.T) {
		tests := []struct {
			name    string
			birth   core.Date
			wantErr bool
		}{
			{name: "exactly 3", birth: core.NewDate(2021, time.June, 15), wantErr: false},
			{name: "exactly 18", birth: core.NewDate(2006, time.June, 15), wantErr: false},
			{name: "under 3", birth: core.NewDate(2021, time.June, 16), wantErr: true},
			{name: "over 18", birth: core.NewDate(2005, time.June, 14), wantErr: true},
			{name: "future date", birth: core.NewDate(2025, time.January, 1), wantErr: true},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				ne := validEnrollment()
				ne.BirthDate = tt.birth
				err := ne.Validate()
				if tt.wantErr {
					assert.Error(t, err)
				} else {
					assert.NoError(t, err)
				}
			})
		}
	})

	t.Run("grade must match education level", func(t *testing.T) {
		tests := []struct {
			level   string
			grade   string
			wantErr bool
		}{
			{level: "preschool", grade: "prek", wantErr: false},
			{level: "preschool", grade: "kinder", wantErr: false},
			{level: "preschool", grade: "grade1", wantErr: true},
			{level: "elementary", grade: "grade1", wantErr: false},
			{level: "elementary", grade: "grade6", wantErr: false},
			{level: "elementary", grade: "kinder", wantErr: true},
		}
		for _, tt := range tests {
			t.Run(tt.level+"/"+tt.grade, func(t *testing.T) {
				ne := validEnrollment()
				ne.EducationLevel = tt.level
				ne.GradeLevel = tt.grade
				err := ne.Validate()
				if tt.wantErr {
					assert.Error(t, err)
				} else {
					assert.NoError(t, err)
				}
			})
		}
	})

	t.Run("at least one contact required", func(t *testing.T) {
		ne := validEnrollment()
		ne.MobileNumber = ""
		assert.Error(t, ne.Validate())

		ne.Email = "parent@example.com"
		assert.NoError(t, ne.Validate())
	})

	t.Run("non-PH mobile rejected", func(t *testing.T) {
		ne := validEnrollment()
		ne.MobileNumber = "+19171234567"
		assert.Error(t, ne.Validate())
	})

	t.Run("parent info needs a contact", func(t *testing.T) {
		ne := validEnrollment()
		ne.ParentInfo = &NewParentInfo{FatherName: "Jose Dela Cruz"}
		assert.Error(t, ne.Validate())

		ne.ParentInfo.FatherContact = "09181234567"
		assert.NoError(t, ne.Validate())
	})
}
