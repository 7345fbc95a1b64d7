package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/cesiedu/campus/core"
	"github.com/cesiedu/campus/core/user"
)

const userColumns = `id, username, email, role, status, is_active, is_staff, password_hash, created_at, updated_at, last_login`

const profileColumns = `id, user_id, student_first_name, student_middle_name, student_last_name, grade_level, lrn,
student_number, payment_mode, section_id, parent_first_name, parent_middle_name, parent_last_name, contact_number, address`

type userRepository struct {
	exec core.DBExecutor
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) *userRepository {
	return &userRepository{exec: exec}
}

// trapNoRowsErr maps psql "no rows" err to user.ErrNotFound
func (repo userRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return user.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (user.User, error) {
	var (
		usr       user.User
		lastLogin sql.NullTime
	)
	err := row.Scan(
		&usr.ID, &usr.Username, &usr.Email, &usr.Role, &usr.Status, &usr.IsActive, &usr.IsStaff,
		&usr.PasswordHash, &usr.CreatedAt, &usr.UpdatedAt, &lastLogin,
	)
	if err != nil {
		return user.User{}, err
	}
	if lastLogin.Valid {
		usr.LastLogin = lastLogin.Time.UTC()
	}
	return usr, nil
}

func scanStudentProfile(row rowScanner) (user.StudentProfile, error) {
	var (
		prof      user.StudentProfile
		sectionID sql.NullString
	)
	err := row.Scan(
		&prof.ID, &prof.UserID, &prof.StudentFirstName, &prof.StudentMiddleName, &prof.StudentLastName,
		&prof.GradeLevel, &prof.LRN, &prof.StudentNumber, &prof.PaymentMode, &sectionID,
		&prof.ParentFirstName, &prof.ParentMiddleName, &prof.ParentLastName, &prof.ContactNumber, &prof.Address,
	)
	if err != nil {
		return user.StudentProfile{}, err
	}
	prof.SectionID = sectionID.String
	return prof, nil
}

func (repo userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers []user.User, exec ...core.DBExecutor) error {
	query := `SELECT username, email FROM "user" WHERE (lower(username) = lower(?) OR lower(email) = lower(?))`
	args := []interface{}{username, email}
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		query += ` AND id NOT IN (?)`
		args = append(args, ids)
	}
	query, args, err := in(query, args...)
	if err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}

	rows, err := getExec(repo.exec, exec).QueryContext(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var uname, mail string
		if err = rows.Scan(&uname, &mail); err != nil {
			return errors.Wrap(err, "checking user uniqueness")
		}
		if strings.EqualFold(uname, username) {
			return user.ErrUsernameExists
		}
		if strings.EqualFold(mail, email) {
			return user.ErrEmailExists
		}
	}
	return errors.Wrap(rows.Err(), "checking user uniqueness")
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	usr.ID = uuid.New().String()
	_, err := getExec(repo.exec, exec).ExecContext(ctx,
		`INSERT INTO "user" (`+userColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		usr.ID, usr.Username, usr.Email, usr.Role, usr.Status, usr.IsActive, usr.IsStaff,
		usr.PasswordHash, usr.CreatedAt.UTC(), usr.UpdatedAt.UTC(), nullTime(usr.LastLogin),
	)
	if err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]user.User, error) {
	query := `SELECT ` + userColumns + ` FROM "user" WHERE true`
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter != nil {
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			ph := arg(val)
			query += ` AND (username ILIKE ` + ph + ` OR email ILIKE ` + ph + `
				OR id IN (SELECT user_id FROM student_profile
					WHERE concat_ws(' ', student_first_name, student_last_name) ILIKE ` + ph + `
					OR concat_ws(' ', parent_first_name, parent_last_name) ILIKE ` + ph + `))`
		}
		if filter.Role != "" {
			query += ` AND role = ` + arg(filter.Role)
		}
	}

	if len(ordering) > 0 {
		orderList := make([]string, 0, len(ordering))
		for _, ord := range ordering {
			orderList = append(orderList, ord.String())
		}
		query += ` ORDER BY ` + strings.Join(orderList, ", ")
	} else {
		query += ` ORDER BY created_at DESC`
	}

	rows, err := getExec(repo.exec, exec).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	defer func() { _ = rows.Close() }()

	var users []user.User
	for rows.Next() {
		usr, err := scanUser(rows)
		if err != nil {
			return nil, errors.Wrap(err, "querying users")
		}
		users = append(users, usr)
	}
	return users, errors.Wrap(rows.Err(), "querying users")
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	var (
		cond string
		args []interface{}
	)
	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return user.User{}, user.ErrNotFound
		}
		cond, args = `id = $1`, []interface{}{filter.ID}
	case filter.Username != "":
		cond, args = `lower(username) = lower($1)`, []interface{}{filter.Username}
	case filter.Email != "":
		cond, args = `lower(email) = lower($1)`, []interface{}{filter.Email}
	case filter.UsernameOrEmail != "":
		cond, args = `lower(username) = lower($1) OR lower(email) = lower($1)`, []interface{}{filter.UsernameOrEmail}
	default:
		return user.User{}, user.ErrNotFound
	}

	row := getExec(repo.exec, exec).QueryRowContext(ctx, `SELECT `+userColumns+` FROM "user" WHERE `+cond, args...)
	usr, err := scanUser(row)
	if err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "finding user")
	}
	return usr, nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	res, err := getExec(repo.exec, exec).ExecContext(ctx,
		`UPDATE "user"
		 SET username = $2, email = $3, role = $4, status = $5, is_active = $6, is_staff = $7,
		     password_hash = $8, updated_at = $9, last_login = $10
		 WHERE id = $1`,
		usr.ID, usr.Username, usr.Email, usr.Role, usr.Status, usr.IsActive, usr.IsStaff,
		usr.PasswordHash, usr.UpdatedAt.UTC(), nullTime(usr.LastLogin),
	)
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query, args, err := in(`DELETE FROM "user" WHERE id IN (?)`, ids)
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	res, err := getExec(repo.exec, exec).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	cnt, err := res.RowsAffected()
	return int(cnt), errors.Wrap(err, "deleting users")
}

func (repo userRepository) GetStudentProfileByUser(ctx context.Context, userID string, exec ...core.DBExecutor) (user.StudentProfile, error) {
	row := getExec(repo.exec, exec).QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM student_profile WHERE user_id = $1`, userID)
	prof, err := scanStudentProfile(row)
	if err != nil {
		return user.StudentProfile{}, repo.trapNoRowsErr(err, "finding student profile")
	}
	return prof, nil
}

func (repo userRepository) SaveStudentProfile(ctx context.Context, prof user.StudentProfile, exec ...core.DBExecutor) (user.StudentProfile, error) {
	if prof.ID == "" {
		prof.ID = uuid.New().String()
		_, err := getExec(repo.exec, exec).ExecContext(ctx,
			`INSERT INTO student_profile (`+profileColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
			prof.ID, prof.UserID, prof.StudentFirstName, prof.StudentMiddleName, prof.StudentLastName,
			prof.GradeLevel, prof.LRN, prof.StudentNumber, prof.PaymentMode, nullStr(prof.SectionID),
			prof.ParentFirstName, prof.ParentMiddleName, prof.ParentLastName, prof.ContactNumber, prof.Address,
		)
		if err != nil {
			return user.StudentProfile{}, errors.Wrap(err, "inserting student profile")
		}
		return prof, nil
	}

	res, err := getExec(repo.exec, exec).ExecContext(ctx,
		`UPDATE student_profile
		 SET student_first_name = $2, student_middle_name = $3, student_last_name = $4, grade_level = $5,
		     lrn = $6, student_number = $7, payment_mode = $8, section_id = $9,
		     parent_first_name = $10, parent_middle_name = $11, parent_last_name = $12,
		     contact_number = $13, address = $14
		 WHERE id = $1`,
		prof.ID, prof.StudentFirstName, prof.StudentMiddleName, prof.StudentLastName, prof.GradeLevel,
		prof.LRN, prof.StudentNumber, prof.PaymentMode, nullStr(prof.SectionID),
		prof.ParentFirstName, prof.ParentMiddleName, prof.ParentLastName, prof.ContactNumber, prof.Address,
	)
	if err != nil {
		return user.StudentProfile{}, errors.Wrap(err, "updating student profile")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return user.StudentProfile{}, user.ErrNotFound
	}
	return prof, nil
}

func (repo userRepository) QueryStudentProfilesByGrade(ctx context.Context, gradeLevel string, exec ...core.DBExecutor) ([]user.StudentProfile, error) {
	rows, err := getExec(repo.exec, exec).QueryContext(ctx,
		`SELECT `+profileColumns+` FROM student_profile WHERE grade_level = $1
		 ORDER BY student_last_name, student_first_name`, gradeLevel)
	if err != nil {
		return nil, errors.Wrap(err, "querying student profiles")
	}
	defer func() { _ = rows.Close() }()

	var profs []user.StudentProfile
	for rows.Next() {
		prof, err := scanStudentProfile(rows)
		if err != nil {
			return nil, errors.Wrap(err, "querying student profiles")
		}
		profs = append(profs, prof)
	}
	return profs, errors.Wrap(rows.Err(), "querying student profiles")
}

func (repo userRepository) RevokeToken(ctx context.Context, jti, userID string, expiresAt time.Time, exec ...core.DBExecutor) error {
	_, err := getExec(repo.exec, exec).ExecContext(ctx,
		`INSERT INTO revoked_token (jti, user_id, expires_at) VALUES ($1, $2, $3)
		 ON CONFLICT (jti) DO NOTHING`,
		jti, userID, expiresAt.UTC(),
	)
	return errors.Wrap(err, "revoking token")
}

func (repo userRepository) IsTokenRevoked(ctx context.Context, jti string, exec ...core.DBExecutor) (bool, error) {
	var revoked bool
	err := getExec(repo.exec, exec).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM revoked_token WHERE jti = $1 AND expires_at > now())`, jti,
	).Scan(&revoked)
	if err != nil {
		return false, errors.Wrap(err, "checking token revocation")
	}
	return revoked, nil
}
