package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/cesiedu/campus/core"
	"github.com/cesiedu/campus/core/grading"
)

const gradeItemColumns = `id, teacher_id, subject_id, grade_level, quarter, category, title, description,
date_given, due_date, total_score, sort_order, created_at`

type gradingRepository struct {
	exec core.DBExecutor
}

var _ grading.Repository = (*gradingRepository)(nil) // interface compliance check

func NewGradingRepository(exec core.DBExecutor) *gradingRepository {
	return &gradingRepository{exec: exec}
}

func (repo gradingRepository) GetWeightBySubject(ctx context.Context, subjectID string, exec ...core.DBExecutor) (grading.GradeWeight, error) {
	var w grading.GradeWeight
	err := getExec(repo.exec, exec).QueryRowContext(ctx,
		`SELECT id, subject_id, activity_weight, quiz_weight, exam_weight, class_standing_weight
		 FROM grade_weight WHERE subject_id = $1`, subjectID,
	).Scan(&w.ID, &w.SubjectID, &w.ActivityWeight, &w.QuizWeight, &w.ExamWeight, &w.ClassStandingWeight)
	if err != nil {
		if err == sql.ErrNoRows {
			return grading.GradeWeight{}, grading.ErrWeightNotFound
		}
		return grading.GradeWeight{}, errors.Wrap(err, "finding grade weights")
	}
	return w, nil
}

func (repo gradingRepository) SaveGradeWeight(ctx context.Context, w grading.GradeWeight, exec ...core.DBExecutor) (grading.GradeWeight, error) {
	if w.ID == "" {
		w.ID = uuid.New().String()
		_, err := getExec(repo.exec, exec).ExecContext(ctx,
			`INSERT INTO grade_weight (id, subject_id, activity_weight, quiz_weight, exam_weight, class_standing_weight)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			w.ID, w.SubjectID, w.ActivityWeight, w.QuizWeight, w.ExamWeight, w.ClassStandingWeight,
		)
		if err != nil {
			return grading.GradeWeight{}, errors.Wrap(err, "inserting grade weights")
		}
		return w, nil
	}

	res, err := getExec(repo.exec, exec).ExecContext(ctx,
		`UPDATE grade_weight
		 SET activity_weight = $2, quiz_weight = $3, exam_weight = $4, class_standing_weight = $5
		 WHERE id = $1`,
		w.ID, w.ActivityWeight, w.QuizWeight, w.ExamWeight, w.ClassStandingWeight,
	)
	if err != nil {
		return grading.GradeWeight{}, errors.Wrap(err, "updating grade weights")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return grading.GradeWeight{}, grading.ErrWeightNotFound
	}
	return w, nil
}

func scanGradeItem(row rowScanner) (grading.GradeItem, error) {
	var (
		item      grading.GradeItem
		teacherID sql.NullString
	)
	err := row.Scan(
		&item.ID, &teacherID, &item.SubjectID, &item.GradeLevel, &item.Quarter, &item.Category,
		&item.Title, &item.Description, &item.DateGiven, &item.DueDate, &item.TotalScore,
		&item.Order, &item.CreatedAt,
	)
	if err != nil {
		return grading.GradeItem{}, err
	}
	item.TeacherID = teacherID.String
	return item, nil
}

func (repo gradingRepository) CreateGradeItem(ctx context.Context, item grading.GradeItem, exec ...core.DBExecutor) (grading.GradeItem, error) {
	item.ID = uuid.New().String()
	_, err := getExec(repo.exec, exec).ExecContext(ctx,
		`INSERT INTO grade_item (`+gradeItemColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		item.ID, nullStr(item.TeacherID), item.SubjectID, item.GradeLevel, item.Quarter, item.Category,
		item.Title, item.Description, item.DateGiven, item.DueDate, item.TotalScore,
		item.Order, item.CreatedAt.UTC(),
	)
	if err != nil {
		return grading.GradeItem{}, errors.Wrap(err, "inserting grade item")
	}
	return item, nil
}

func (repo gradingRepository) QueryGradeItems(ctx context.Context, filter *grading.ItemFilter, exec ...core.DBExecutor) ([]grading.GradeItem, error) {
	query := `SELECT ` + gradeItemColumns + ` FROM grade_item WHERE true`
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter != nil {
		if filter.SubjectID != "" {
			query += ` AND subject_id = ` + arg(filter.SubjectID)
		}
		if filter.GradeLevel != nil {
			query += ` AND grade_level = ` + arg(*filter.GradeLevel)
		}
		if filter.Quarter != 0 {
			query += ` AND quarter = ` + arg(filter.Quarter)
		}
		if filter.Category != "" {
			query += ` AND category = ` + arg(filter.Category)
		}
	}
	query += ` ORDER BY quarter, category, sort_order, id`

	rows, err := getExec(repo.exec, exec).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying grade items")
	}
	defer func() { _ = rows.Close() }()

	var items []grading.GradeItem
	for rows.Next() {
		item, err := scanGradeItem(rows)
		if err != nil {
			return nil, errors.Wrap(err, "querying grade items")
		}
		items = append(items, item)
	}
	return items, errors.Wrap(rows.Err(), "querying grade items")
}

func (repo gradingRepository) GetGradeItem(ctx context.Context, id string, exec ...core.DBExecutor) (grading.GradeItem, error) {
	if _, err := uuid.Parse(id); err != nil {
		return grading.GradeItem{}, grading.ErrItemNotFound
	}
	row := getExec(repo.exec, exec).QueryRowContext(ctx,
		`SELECT `+gradeItemColumns+` FROM grade_item WHERE id = $1`, id)
	item, err := scanGradeItem(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return grading.GradeItem{}, grading.ErrItemNotFound
		}
		return grading.GradeItem{}, errors.Wrap(err, "finding grade item")
	}
	return item, nil
}

func (repo gradingRepository) UpdateGradeItem(ctx context.Context, item grading.GradeItem, exec ...core.DBExecutor) (grading.GradeItem, error) {
	res, err := getExec(repo.exec, exec).ExecContext(ctx,
		`UPDATE grade_item
		 SET subject_id = $2, grade_level = $3, quarter = $4, category = $5, title = $6, description = $7,
		     date_given = $8, due_date = $9, total_score = $10, sort_order = $11
		 WHERE id = $1`,
		item.ID, item.SubjectID, item.GradeLevel, item.Quarter, item.Category, item.Title, item.Description,
		item.DateGiven, item.DueDate, item.TotalScore, item.Order,
	)
	if err != nil {
		return grading.GradeItem{}, errors.Wrap(err, "updating grade item")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return grading.GradeItem{}, grading.ErrItemNotFound
	}
	return item, nil
}

func (repo gradingRepository) DeleteGradeItem(ctx context.Context, id string, exec ...core.DBExecutor) error {
	res, err := getExec(repo.exec, exec).ExecContext(ctx, `DELETE FROM grade_item WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting grade item")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return grading.ErrItemNotFound
	}
	return nil
}

func (repo gradingRepository) UpsertStudentScore(ctx context.Context, score grading.StudentScore, exec ...core.DBExecutor) (grading.StudentScore, error) {
	if score.ID == "" {
		score.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	err := getExec(repo.exec, exec).QueryRowContext(ctx,
		`INSERT INTO student_score (id, student_id, grade_item_id, score, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $5)
		 ON CONFLICT (student_id, grade_item_id) DO UPDATE SET score = EXCLUDED.score, updated_at = EXCLUDED.updated_at
		 RETURNING id, created_at, updated_at`,
		score.ID, score.StudentID, score.GradeItemID, score.Score, now,
	).Scan(&score.ID, &score.CreatedAt, &score.UpdatedAt)
	if err != nil {
		return grading.StudentScore{}, errors.Wrap(err, "upserting student score")
	}
	return score, nil
}

func (repo gradingRepository) QueryStudentScores(ctx context.Context, filter *grading.ScoreFilter, exec ...core.DBExecutor) ([]grading.StudentScore, error) {
	query := `SELECT s.id, s.student_id, s.grade_item_id, s.score, s.created_at, s.updated_at
		 FROM student_score s JOIN grade_item i ON i.id = s.grade_item_id WHERE true`
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter != nil {
		if filter.GradeItemID != "" {
			query += ` AND s.grade_item_id = ` + arg(filter.GradeItemID)
		}
		if filter.StudentID != "" {
			query += ` AND s.student_id = ` + arg(filter.StudentID)
		}
		if filter.SubjectID != "" {
			query += ` AND i.subject_id = ` + arg(filter.SubjectID)
		}
		if filter.GradeLevel != nil {
			query += ` AND i.grade_level = ` + arg(*filter.GradeLevel)
		}
		if filter.Quarter != 0 {
			query += ` AND i.quarter = ` + arg(filter.Quarter)
		}
	}
	query += ` ORDER BY s.created_at`

	rows, err := getExec(repo.exec, exec).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying student scores")
	}
	defer func() { _ = rows.Close() }()

	var scores []grading.StudentScore
	for rows.Next() {
		var s grading.StudentScore
		if err = rows.Scan(&s.ID, &s.StudentID, &s.GradeItemID, &s.Score, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, "querying student scores")
		}
		scores = append(scores, s)
	}
	return scores, errors.Wrap(rows.Err(), "querying student scores")
}

func (repo gradingRepository) UpsertClassStanding(ctx context.Context, cs grading.ClassStanding, exec ...core.DBExecutor) (grading.ClassStanding, error) {
	if cs.ID == "" {
		cs.ID = uuid.New().String()
	}
	err := getExec(repo.exec, exec).QueryRowContext(ctx,
		`INSERT INTO class_standing (id, student_id, subject_id, quarter, score)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (student_id, subject_id, quarter) DO UPDATE SET score = EXCLUDED.score
		 RETURNING id`,
		cs.ID, cs.StudentID, cs.SubjectID, cs.Quarter, cs.Score,
	).Scan(&cs.ID)
	if err != nil {
		return grading.ClassStanding{}, errors.Wrap(err, "upserting class standing")
	}
	return cs, nil
}

func (repo gradingRepository) QueryClassStandings(ctx context.Context, filter *grading.StandingFilter, exec ...core.DBExecutor) ([]grading.ClassStanding, error) {
	query := `SELECT id, student_id, subject_id, quarter, score FROM class_standing WHERE true`
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter != nil {
		if filter.SubjectID != "" {
			query += ` AND subject_id = ` + arg(filter.SubjectID)
		}
		if filter.Quarter != 0 {
			query += ` AND quarter = ` + arg(filter.Quarter)
		}
		if filter.StudentID != "" {
			query += ` AND student_id = ` + arg(filter.StudentID)
		}
	}
	query += ` ORDER BY quarter`

	rows, err := getExec(repo.exec, exec).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying class standings")
	}
	defer func() { _ = rows.Close() }()

	var standings []grading.ClassStanding
	for rows.Next() {
		var cs grading.ClassStanding
		if err = rows.Scan(&cs.ID, &cs.StudentID, &cs.SubjectID, &cs.Quarter, &cs.Score); err != nil {
			return nil, errors.Wrap(err, "querying class standings")
		}
		standings = append(standings, cs)
	}
	return standings, errors.Wrap(rows.Err(), "querying class standings")
}

func (repo gradingRepository) GetClassStanding(ctx context.Context, studentID, subjectID string, quarter int, exec ...core.DBExecutor) (grading.ClassStanding, error) {
	var cs grading.ClassStanding
	err := getExec(repo.exec, exec).QueryRowContext(ctx,
		`SELECT id, student_id, subject_id, quarter, score FROM class_standing
		 WHERE student_id = $1 AND subject_id = $2 AND quarter = $3`,
		studentID, subjectID, quarter,
	).Scan(&cs.ID, &cs.StudentID, &cs.SubjectID, &cs.Quarter, &cs.Score)
	if err != nil {
		if err == sql.ErrNoRows {
			return grading.ClassStanding{}, grading.ErrStandingNotFound
		}
		return grading.ClassStanding{}, errors.Wrap(err, "finding class standing")
	}
	return cs, nil
}
