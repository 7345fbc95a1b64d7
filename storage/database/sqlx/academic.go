package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/cesiedu/campus/core"
	"github.com/cesiedu/campus/core/academic"
)

type academicRepository struct {
	exec core.DBExecutor
}

var _ academic.Repository = (*academicRepository)(nil) // interface compliance check

func NewAcademicRepository(exec core.DBExecutor) *academicRepository {
	return &academicRepository{exec: exec}
}

// trapNoRowsErr maps psql "no rows" err to academic.ErrNotFound
func (repo academicRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return academic.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo academicRepository) CreateSubject(ctx context.Context, sub academic.Subject, exec ...core.DBExecutor) (academic.Subject, error) {
	sub.ID = uuid.New().String()
	_, err := getExec(repo.exec, exec).ExecContext(ctx,
		`INSERT INTO subject (id, code, name, created_at) VALUES ($1, $2, $3, now())`,
		sub.ID, sub.Code, sub.Name,
	)
	if err != nil {
		return academic.Subject{}, errors.Wrap(err, "inserting subject")
	}
	return sub, nil
}

func (repo academicRepository) QuerySubjects(ctx context.Context, exec ...core.DBExecutor) ([]academic.Subject, error) {
	exe := getExec(repo.exec, exec)
	rows, err := exe.QueryContext(ctx,
		`SELECT id, code, name, created_at FROM subject ORDER BY name`)
	if err != nil {
		return nil, errors.Wrap(err, "querying subjects")
	}
	defer func() { _ = rows.Close() }()

	var subs []academic.Subject
	for rows.Next() {
		var sub academic.Subject
		if err = rows.Scan(&sub.ID, &sub.Code, &sub.Name, &sub.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "querying subjects")
		}
		subs = append(subs, sub)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "querying subjects")
	}

	for i := range subs {
		if subs[i].Teachers, err = repo.subjectTeachers(ctx, exe, subs[i].ID); err != nil {
			return nil, err
		}
	}
	return subs, nil
}

func (repo academicRepository) GetSubject(ctx context.Context, id string, exec ...core.DBExecutor) (academic.Subject, error) {
	if _, err := uuid.Parse(id); err != nil {
		return academic.Subject{}, academic.ErrNotFound
	}
	exe := getExec(repo.exec, exec)

	var sub academic.Subject
	err := exe.QueryRowContext(ctx,
		`SELECT id, code, name, created_at FROM subject WHERE id = $1`, id,
	).Scan(&sub.ID, &sub.Code, &sub.Name, &sub.CreatedAt)
	if err != nil {
		return academic.Subject{}, repo.trapNoRowsErr(err, "finding subject")
	}
	if sub.Teachers, err = repo.subjectTeachers(ctx, exe, sub.ID); err != nil {
		return academic.Subject{}, err
	}
	return sub, nil
}

func (repo academicRepository) subjectTeachers(ctx context.Context, exe core.DBExecutor, subjectID string) ([]academic.SubjectTeacher, error) {
	rows, err := exe.QueryContext(ctx,
		`SELECT u.id, u.username, tp.employee_id
		 FROM teacher_profile tp JOIN "user" u ON u.id = tp.user_id
		 WHERE tp.subject_id = $1
		 ORDER BY u.username`, subjectID)
	if err != nil {
		return nil, errors.Wrap(err, "querying subject teachers")
	}
	defer func() { _ = rows.Close() }()

	var teachers []academic.SubjectTeacher
	for rows.Next() {
		var t academic.SubjectTeacher
		if err = rows.Scan(&t.UserID, &t.Username, &t.EmployeeID); err != nil {
			return nil, errors.Wrap(err, "querying subject teachers")
		}
		teachers = append(teachers, t)
	}
	return teachers, errors.Wrap(rows.Err(), "querying subject teachers")
}

func (repo academicRepository) CheckSubjectCodeUniqueness(ctx context.Context, code string, excludedIDs []string, exec ...core.DBExecutor) error {
	query := `SELECT EXISTS (SELECT 1 FROM subject WHERE lower(code) = lower(?)`
	args := []interface{}{code}
	if len(excludedIDs) > 0 {
		query += ` AND id NOT IN (?)`
		args = append(args, excludedIDs)
	}
	query += `)`
	query, args, err := in(query, args...)
	if err != nil {
		return errors.Wrap(err, "checking subject code")
	}

	var exists bool
	if err = getExec(repo.exec, exec).QueryRowContext(ctx, query, args...).Scan(&exists); err != nil {
		return errors.Wrap(err, "checking subject code")
	}
	if exists {
		return academic.ErrSubjectCodeExists
	}
	return nil
}

func (repo academicRepository) UpdateSubject(ctx context.Context, sub academic.Subject, exec ...core.DBExecutor) (academic.Subject, error) {
	res, err := getExec(repo.exec, exec).ExecContext(ctx,
		`UPDATE subject SET code = $2, name = $3 WHERE id = $1`,
		sub.ID, sub.Code, sub.Name,
	)
	if err != nil {
		return academic.Subject{}, errors.Wrap(err, "updating subject")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return academic.Subject{}, academic.ErrNotFound
	}
	return sub, nil
}

func (repo academicRepository) DeleteSubject(ctx context.Context, id string, exec ...core.DBExecutor) error {
	res, err := getExec(repo.exec, exec).ExecContext(ctx, `DELETE FROM subject WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting subject")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return academic.ErrNotFound
	}
	return nil
}

func (repo academicRepository) CreateSection(ctx context.Context, sec academic.Section, exec ...core.DBExecutor) (academic.Section, error) {
	sec.ID = uuid.New().String()
	_, err := getExec(repo.exec, exec).ExecContext(ctx,
		`INSERT INTO section (id, name, grade_level, adviser_id) VALUES ($1, $2, $3, $4)`,
		sec.ID, sec.Name, sec.GradeLevel, nullStr(sec.AdviserID),
	)
	if err != nil {
		return academic.Section{}, errors.Wrap(err, "inserting section")
	}
	return sec, nil
}

func (repo academicRepository) QuerySections(ctx context.Context, gradeLevel *int, exec ...core.DBExecutor) ([]academic.Section, error) {
	query := `SELECT id, name, grade_level, adviser_id FROM section`
	var args []interface{}
	if gradeLevel != nil {
		query += ` WHERE grade_level = $1`
		args = append(args, *gradeLevel)
	}
	query += ` ORDER BY grade_level, name`

	rows, err := getExec(repo.exec, exec).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying sections")
	}
	defer func() { _ = rows.Close() }()

	var secs []academic.Section
	for rows.Next() {
		sec, err := scanSection(rows)
		if err != nil {
			return nil, errors.Wrap(err, "querying sections")
		}
		secs = append(secs, sec)
	}
	return secs, errors.Wrap(rows.Err(), "querying sections")
}

func scanSection(row rowScanner) (academic.Section, error) {
	var (
		sec       academic.Section
		adviserID sql.NullString
	)
	if err := row.Scan(&sec.ID, &sec.Name, &sec.GradeLevel, &adviserID); err != nil {
		return academic.Section{}, err
	}
	sec.AdviserID = adviserID.String
	return sec, nil
}

func (repo academicRepository) GetSection(ctx context.Context, id string, exec ...core.DBExecutor) (academic.Section, error) {
	if _, err := uuid.Parse(id); err != nil {
		return academic.Section{}, academic.ErrNotFound
	}
	row := getExec(repo.exec, exec).QueryRowContext(ctx,
		`SELECT id, name, grade_level, adviser_id FROM section WHERE id = $1`, id)
	sec, err := scanSection(row)
	if err != nil {
		return academic.Section{}, repo.trapNoRowsErr(err, "finding section")
	}
	return sec, nil
}

func (repo academicRepository) UpdateSection(ctx context.Context, sec academic.Section, exec ...core.DBExecutor) (academic.Section, error) {
	res, err := getExec(repo.exec, exec).ExecContext(ctx,
		`UPDATE section SET name = $2, grade_level = $3, adviser_id = $4 WHERE id = $1`,
		sec.ID, sec.Name, sec.GradeLevel, nullStr(sec.AdviserID),
	)
	if err != nil {
		return academic.Section{}, errors.Wrap(err, "updating section")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return academic.Section{}, academic.ErrNotFound
	}
	return sec, nil
}

func (repo academicRepository) DeleteSection(ctx context.Context, id string, exec ...core.DBExecutor) error {
	res, err := getExec(repo.exec, exec).ExecContext(ctx, `DELETE FROM section WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting section")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return academic.ErrNotFound
	}
	return nil
}

func (repo academicRepository) GetTeacherProfileByUser(ctx context.Context, userID string, exec ...core.DBExecutor) (academic.TeacherProfile, error) {
	var (
		tp                   academic.TeacherProfile
		subjectID, sectionID sql.NullString
	)
	err := getExec(repo.exec, exec).QueryRowContext(ctx,
		`SELECT id, user_id, subject_id, section_id, employee_id FROM teacher_profile WHERE user_id = $1`, userID,
	).Scan(&tp.ID, &tp.UserID, &subjectID, &sectionID, &tp.EmployeeID)
	if err != nil {
		return academic.TeacherProfile{}, repo.trapNoRowsErr(err, "finding teacher profile")
	}
	tp.SubjectID = subjectID.String
	tp.SectionID = sectionID.String
	return tp, nil
}

func (repo academicRepository) UnassignSubject(ctx context.Context, subjectID string, exec ...core.DBExecutor) error {
	_, err := getExec(repo.exec, exec).ExecContext(ctx,
		`UPDATE teacher_profile SET subject_id = NULL WHERE subject_id = $1`, subjectID)
	return errors.Wrap(err, "unassigning subject")
}

func (repo academicRepository) IsTeacherUser(ctx context.Context, userID string, exec ...core.DBExecutor) (bool, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return false, nil
	}

	var isTeacher bool
	err := getExec(repo.exec, exec).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM "user" WHERE id = $1 AND role = 'TEACHER')`, userID,
	).Scan(&isTeacher)
	return isTeacher, errors.Wrap(err, "checking teacher role")
}

func (repo academicRepository) SaveTeacherProfile(ctx context.Context, tp academic.TeacherProfile, exec ...core.DBExecutor) (academic.TeacherProfile, error) {
	if tp.ID == "" {
		tp.ID = uuid.New().String()
		_, err := getExec(repo.exec, exec).ExecContext(ctx,
			`INSERT INTO teacher_profile (id, user_id, subject_id, section_id, employee_id)
			 VALUES ($1, $2, $3, $4, $5)`,
			tp.ID, tp.UserID, nullStr(tp.SubjectID), nullStr(tp.SectionID), tp.EmployeeID,
		)
		if err != nil {
			return academic.TeacherProfile{}, errors.Wrap(err, "inserting teacher profile")
		}
		return tp, nil
	}

	res, err := getExec(repo.exec, exec).ExecContext(ctx,
		`UPDATE teacher_profile SET subject_id = $2, section_id = $3, employee_id = $4 WHERE id = $1`,
		tp.ID, nullStr(tp.SubjectID), nullStr(tp.SectionID), tp.EmployeeID,
	)
	if err != nil {
		return academic.TeacherProfile{}, errors.Wrap(err, "updating teacher profile")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return academic.TeacherProfile{}, academic.ErrNotFound
	}
	return tp, nil
}
