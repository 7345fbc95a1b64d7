package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/cesiedu/campus/core"
	"github.com/cesiedu/campus/core/academic"
	"github.com/cesiedu/campus/core/enrollment"
)

const enrollmentColumns = `id, student_id, parent_user_id, section_id, grade_level, status, academic_year,
student_type, education_level, lrn, student_number, last_name, first_name, middle_name, birth_date, gender,
email, address, religion, telephone_number, mobile_number, parent_facebook, payment_mode, enrolled_at,
completed_at, remarks, created_at, updated_at`

const parentInfoColumns = `id, enrollment_id, father_name, father_contact, father_occupation,
mother_name, mother_contact, mother_occupation, guardian_name, guardian_contact, guardian_relationship`

type enrollmentRepository struct {
	exec core.DBExecutor
}

var _ enrollment.Repository = (*enrollmentRepository)(nil) // interface compliance check

func NewEnrollmentRepository(exec core.DBExecutor) *enrollmentRepository {
	return &enrollmentRepository{exec: exec}
}

// trapNoRowsErr maps psql "no rows" err to enrollment.ErrNotFound
func (repo enrollmentRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return enrollment.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func scanEnrollment(row rowScanner) (enrollment.Enrollment, error) {
	var (
		enr                                 enrollment.Enrollment
		parentUserID, sectionID, studentNum sql.NullString
		completedAt                         sql.NullTime
	)
	err := row.Scan(
		&enr.ID, &enr.StudentID, &parentUserID, &sectionID, &enr.GradeLevel, &enr.Status, &enr.AcademicYear,
		&enr.StudentType, &enr.EducationLevel, &enr.LRN, &studentNum, &enr.LastName, &enr.FirstName,
		&enr.MiddleName, &enr.BirthDate, &enr.Gender, &enr.Email, &enr.Address, &enr.Religion,
		&enr.TelephoneNumber, &enr.MobileNumber, &enr.ParentFacebook, &enr.PaymentMode, &enr.EnrolledAt,
		&completedAt, &enr.Remarks, &enr.CreatedAt, &enr.UpdatedAt,
	)
	if err != nil {
		return enrollment.Enrollment{}, err
	}
	enr.ParentUserID = parentUserID.String
	enr.SectionID = sectionID.String
	enr.StudentNumber = studentNum.String
	enr.CompletedAt = timePtr(completedAt)
	return enr, nil
}

func (repo enrollmentRepository) CreateEnrollment(ctx context.Context, enr enrollment.Enrollment, exec ...core.DBExecutor) (enrollment.Enrollment, error) {
	exe := getExec(repo.exec, exec)
	enr.ID = uuid.New().String()
	_, err := exe.ExecContext(ctx,
		`INSERT INTO enrollment (`+enrollmentColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
		         $21, $22, $23, $24, $25, $26, $27, $28)`,
		enr.ID, enr.StudentID, nullStr(enr.ParentUserID), nullStr(enr.SectionID), enr.GradeLevel, enr.Status,
		enr.AcademicYear, enr.StudentType, enr.EducationLevel, enr.LRN, nullStr(enr.StudentNumber),
		enr.LastName, enr.FirstName, enr.MiddleName, enr.BirthDate, enr.Gender, enr.Email, enr.Address,
		enr.Religion, enr.TelephoneNumber, enr.MobileNumber, enr.ParentFacebook, enr.PaymentMode,
		enr.EnrolledAt.UTC(), nullTimePtr(enr.CompletedAt), enr.Remarks, enr.CreatedAt.UTC(), enr.UpdatedAt.UTC(),
	)
	if err != nil {
		return enrollment.Enrollment{}, errors.Wrap(err, "inserting enrollment")
	}

	if enr.ParentInfo != nil {
		if err = repo.saveParentInfo(ctx, exe, enr.ID, enr.ParentInfo); err != nil {
			return enrollment.Enrollment{}, err
		}
	}
	return enr, nil
}

func (repo enrollmentRepository) saveParentInfo(ctx context.Context, exe core.DBExecutor, enrollmentID string, pi *enrollment.ParentInfo) error {
	if pi.ID == "" {
		pi.ID = uuid.New().String()
	}
	pi.EnrollmentID = enrollmentID
	_, err := exe.ExecContext(ctx,
		`INSERT INTO parent_info (`+parentInfoColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (enrollment_id) DO UPDATE
		 SET father_name = EXCLUDED.father_name, father_contact = EXCLUDED.father_contact,
		     father_occupation = EXCLUDED.father_occupation, mother_name = EXCLUDED.mother_name,
		     mother_contact = EXCLUDED.mother_contact, mother_occupation = EXCLUDED.mother_occupation,
		     guardian_name = EXCLUDED.guardian_name, guardian_contact = EXCLUDED.guardian_contact,
		     guardian_relationship = EXCLUDED.guardian_relationship`,
		pi.ID, pi.EnrollmentID, pi.FatherName, pi.FatherContact, pi.FatherOccupation,
		pi.MotherName, pi.MotherContact, pi.MotherOccupation,
		pi.GuardianName, pi.GuardianContact, pi.GuardianRelationship,
	)
	return errors.Wrap(err, "saving parent info")
}

func (repo enrollmentRepository) attachParentInfo(ctx context.Context, exe core.DBExecutor, enr *enrollment.Enrollment) error {
	var pi enrollment.ParentInfo
	err := exe.QueryRowContext(ctx,
		`SELECT `+parentInfoColumns+` FROM parent_info WHERE enrollment_id = $1`, enr.ID,
	).Scan(
		&pi.ID, &pi.EnrollmentID, &pi.FatherName, &pi.FatherContact, &pi.FatherOccupation,
		&pi.MotherName, &pi.MotherContact, &pi.MotherOccupation,
		&pi.GuardianName, &pi.GuardianContact, &pi.GuardianRelationship,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil
		}
		return errors.Wrap(err, "finding parent info")
	}
	enr.ParentInfo = &pi
	return nil
}

func (repo enrollmentRepository) QueryEnrollments(ctx context.Context, filter *enrollment.QueryFilter, exec ...core.DBExecutor) ([]enrollment.Enrollment, error) {
	exe := getExec(repo.exec, exec)

	query := `SELECT ` + enrollmentColumns + ` FROM enrollment WHERE true`
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter != nil {
		if filter.StudentID != "" {
			query += ` AND student_id = ` + arg(filter.StudentID)
		}
		if filter.SectionID != "" {
			query += ` AND section_id = ` + arg(filter.SectionID)
		}
		if filter.GradeLevel != "" {
			query += ` AND grade_level = ` + arg(filter.GradeLevel)
		}
		if filter.Status != "" {
			query += ` AND status = ` + arg(filter.Status)
		}
		if filter.AcademicYear != "" {
			query += ` AND academic_year = ` + arg(filter.AcademicYear)
		}
	}
	query += ` ORDER BY enrolled_at DESC`

	rows, err := exe.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	defer func() { _ = rows.Close() }()

	var enrs []enrollment.Enrollment
	for rows.Next() {
		enr, err := scanEnrollment(rows)
		if err != nil {
			return nil, errors.Wrap(err, "querying enrollments")
		}
		enrs = append(enrs, enr)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}

	for i := range enrs {
		if err = repo.attachParentInfo(ctx, exe, &enrs[i]); err != nil {
			return nil, err
		}
	}
	return enrs, nil
}

func (repo enrollmentRepository) GetEnrollment(ctx context.Context, id string, exec ...core.DBExecutor) (enrollment.Enrollment, error) {
	if _, err := uuid.Parse(id); err != nil {
		return enrollment.Enrollment{}, enrollment.ErrNotFound
	}
	exe := getExec(repo.exec, exec)

	row := exe.QueryRowContext(ctx, `SELECT `+enrollmentColumns+` FROM enrollment WHERE id = $1`, id)
	enr, err := scanEnrollment(row)
	if err != nil {
		return enrollment.Enrollment{}, repo.trapNoRowsErr(err, "finding enrollment")
	}
	if err = repo.attachParentInfo(ctx, exe, &enr); err != nil {
		return enrollment.Enrollment{}, err
	}
	return enr, nil
}

func (repo enrollmentRepository) UpdateEnrollment(ctx context.Context, enr enrollment.Enrollment, exec ...core.DBExecutor) (enrollment.Enrollment, error) {
	exe := getExec(repo.exec, exec)
	res, err := exe.ExecContext(ctx,
		`UPDATE enrollment
		 SET parent_user_id = $2, section_id = $3, grade_level = $4, status = $5, academic_year = $6,
		     student_type = $7, education_level = $8, lrn = $9, student_number = $10, last_name = $11,
		     first_name = $12, middle_name = $13, birth_date = $14, gender = $15, email = $16, address = $17,
		     religion = $18, telephone_number = $19, mobile_number = $20, parent_facebook = $21,
		     payment_mode = $22, completed_at = $23, remarks = $24, updated_at = $25
		 WHERE id = $1`,
		enr.ID, nullStr(enr.ParentUserID), nullStr(enr.SectionID), enr.GradeLevel, enr.Status,
		enr.AcademicYear, enr.StudentType, enr.EducationLevel, enr.LRN, nullStr(enr.StudentNumber),
		enr.LastName, enr.FirstName, enr.MiddleName, enr.BirthDate, enr.Gender, enr.Email, enr.Address,
		enr.Religion, enr.TelephoneNumber, enr.MobileNumber, enr.ParentFacebook, enr.PaymentMode,
		nullTimePtr(enr.CompletedAt), enr.Remarks, enr.UpdatedAt.UTC(),
	)
	if err != nil {
		return enrollment.Enrollment{}, errors.Wrap(err, "updating enrollment")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return enrollment.Enrollment{}, enrollment.ErrNotFound
	}

	if enr.ParentInfo != nil {
		if err = repo.saveParentInfo(ctx, exe, enr.ID, enr.ParentInfo); err != nil {
			return enrollment.Enrollment{}, err
		}
	}
	return enr, nil
}

func (repo enrollmentRepository) DeleteEnrollment(ctx context.Context, id string, exec ...core.DBExecutor) error {
	res, err := getExec(repo.exec, exec).ExecContext(ctx, `DELETE FROM enrollment WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting enrollment")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return enrollment.ErrNotFound
	}
	return nil
}

func (repo enrollmentRepository) HasPossibleDuplicate(ctx context.Context, firstName, lastName string, birthDate core.Date, academicYear string, exec ...core.DBExecutor) (bool, error) {
	var dup bool
	err := getExec(repo.exec, exec).QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM enrollment
			WHERE lower(first_name) = lower($1) AND lower(last_name) = lower($2)
			AND birth_date = $3 AND academic_year = $4
		 )`,
		firstName, lastName, birthDate, academicYear,
	).Scan(&dup)
	if err != nil {
		return false, errors.Wrap(err, "checking duplicate enrollment")
	}
	return dup, nil
}

func (repo enrollmentRepository) NextStudentNumber(ctx context.Context, year int, exec ...core.DBExecutor) (string, error) {
	// the counter is seeded from the highest number already assigned for the
	// year so manual assignments are never reissued
	var seq int64
	err := getExec(repo.exec, exec).QueryRowContext(ctx,
		`INSERT INTO counter (name, value)
		 VALUES ($1, (
			SELECT COALESCE(MAX(substring(student_number FROM 5)::bigint), 0) + 1
			FROM enrollment WHERE student_number LIKE $2
		 ))
		 ON CONFLICT (name) DO UPDATE SET value = counter.value + 1
		 RETURNING value`,
		fmt.Sprintf("student_number_%d", year), fmt.Sprintf("%d%%", year),
	).Scan(&seq)
	if err != nil {
		return "", errors.Wrap(err, "generating student number")
	}
	return fmt.Sprintf("%d%06d", year, seq), nil
}

func (repo enrollmentRepository) StudentNumberExists(ctx context.Context, number string, exec ...core.DBExecutor) (bool, error) {
	var exists bool
	err := getExec(repo.exec, exec).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM enrollment WHERE student_number = $1)`, number,
	).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "checking student number")
	}
	return exists, nil
}

func (repo enrollmentRepository) GetStats(ctx context.Context, exec ...core.DBExecutor) (enrollment.Stats, error) {
	exe := getExec(repo.exec, exec)

	stats := enrollment.Stats{ByGrade: make(map[string]int)}
	err := exe.QueryRowContext(ctx,
		`SELECT count(*),
		        count(*) FILTER (WHERE status = $1),
		        count(*) FILTER (WHERE status = $2),
		        count(*) FILTER (WHERE status = $3),
		        count(*) FILTER (WHERE status = $4)
		 FROM enrollment`,
		enrollment.StatusActive, enrollment.StatusCompleted, enrollment.StatusDropped, enrollment.StatusPending,
	).Scan(&stats.Total, &stats.Active, &stats.Completed, &stats.Dropped, &stats.Pending)
	if err != nil {
		return enrollment.Stats{}, errors.Wrap(err, "computing enrollment stats")
	}

	rows, err := exe.QueryContext(ctx,
		`SELECT grade_level, count(*) FROM enrollment WHERE status = $1 GROUP BY grade_level`,
		enrollment.StatusActive)
	if err != nil {
		return enrollment.Stats{}, errors.Wrap(err, "computing enrollment stats")
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			code string
			cnt  int
		)
		if err = rows.Scan(&code, &cnt); err != nil {
			return enrollment.Stats{}, errors.Wrap(err, "computing enrollment stats")
		}
		label := academic.GradeLabels[code]
		if label == "" {
			label = code
		}
		stats.ByGrade[label] = cnt
	}
	return stats, errors.Wrap(rows.Err(), "computing enrollment stats")
}
