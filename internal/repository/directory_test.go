package repository

import (
	"context"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/hostel-management/internal/allocation"
	"github.com/iliyamo/hostel-management/internal/model"
)

func TestUserCreateDuplicateEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users (email, name, password_hash, role)")).
		WithArgs("warden@example.com", "Warden", sqlmock.AnyArg(), model.RoleWarden).
		WillReturnError(&mysql.MySQLError{Number: errDupEntry, Message: "Duplicate entry"})

	_, err = NewUserRepo(db).Create(context.Background(), "  Warden@Example.com ", "Warden", "secret123", model.RoleWarden, bcrypt.MinCost)
	assert.ErrorIs(t, err, ErrEmailExists)
	assert.ErrorIs(t, err, allocation.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserGetByEmailNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email = ?")).
		WithArgs("nobody@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err = NewUserRepo(db).GetByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestValidateRefresh(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cols := []string{"user_id", "expires_at", "revoked_at"}
	cases := []struct {
		name    string
		rows    *sqlmock.Rows
		wantErr bool
	}{
		{"valid", sqlmock.NewRows(cols).AddRow(9, now.Add(time.Hour), nil), false},
		{"expired", sqlmock.NewRows(cols).AddRow(9, now.Add(-time.Hour), nil), true},
		{"revoked", sqlmock.NewRows(cols).AddRow(9, now.Add(time.Hour), now.Add(-time.Minute)), true},
		{"unknown", sqlmock.NewRows(cols), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()
			mock.ExpectQuery(regexp.QuoteMeta("FROM refresh_tokens WHERE token_hash = ?")).
				WithArgs("hash").
				WillReturnRows(tc.rows)

			id, err := NewTokenRepo(db).ValidateRefresh(context.Background(), "hash", now)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrTokenInvalid)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, uint64(9), id)
		})
	}
}

func TestComplaintUpdateStatusMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE complaints SET status = ?")).
		WithArgs(model.ComplaintClosed, nil, 42).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = NewComplaintRepo(db).UpdateStatus(context.Background(), 42, model.ComplaintClosed, nil)
	assert.ErrorIs(t, err, ErrComplaintNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceMarkUpsertsInStudentOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO attendance (student_id, date, status) VALUES (?,?,?),(?,?,?) ON DUPLICATE KEY UPDATE")).
		WithArgs(2, "2026-02-10", model.AttendancePresent, 5, "2026-02-10", model.AttendanceAbsent).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	err = NewAttendanceRepo(db).Mark(context.Background(), time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC),
		map[uint64]string{5: model.AttendanceAbsent, 2: model.AttendancePresent})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func studentRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "user_id", "name", "email", "register_number", "mobile_number",
		"course", "year", "parent_name", "parent_mobile", "room_id", "hostel_block", "room_number",
		"is_active", "created_at"})
}

func TestEnrollRollsBackLoginOnDuplicateRegisterNumber(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewStudentRepo(db)
	st := model.Student{Name: "Asha", Email: "Asha@Example.com", RegisterNumber: "R1", Course: "CSE", Year: 1}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users (email, name, password_hash, role)")).
		WithArgs("asha@example.com", "Asha", sqlmock.AnyArg(), model.RoleStudent).
		WillReturnResult(sqlmock.NewResult(40, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO students")).
		WillReturnError(&mysql.MySQLError{Number: errDupEntry, Message: "Duplicate entry 'R1'"})
	mock.ExpectRollback()

	err = repo.Enroll(context.Background(), &st, "longenough", bcrypt.MinCost)
	assert.ErrorIs(t, err, ErrRegisterNumberExists)
	assert.Nil(t, st.UserID)

	st.RegisterNumber = "R2"
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users (email, name, password_hash, role)")).
		WithArgs("asha@example.com", "Asha", sqlmock.AnyArg(), model.RoleStudent).
		WillReturnResult(sqlmock.NewResult(41, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO students")).
		WithArgs(sqlmock.AnyArg(), "Asha", "asha@example.com", "R2", "", "CSE", 1, "", "").
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Enroll(context.Background(), &st, "longenough", bcrypt.MinCost))
	assert.Equal(t, uint64(7), st.ID)
	require.NotNil(t, st.UserID)
	assert.Equal(t, uint64(41), *st.UserID)
	assert.True(t, st.IsActive)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollWithoutPasswordCreatesNoLogin(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO students")).
		WithArgs(nil, "Ravi", "", "R3", "", "ECE", 2, "", "").
		WillReturnResult(sqlmock.NewResult(8, 1))
	mock.ExpectCommit()

	st := model.Student{Name: "Ravi", RegisterNumber: "R3", Course: "ECE", Year: 2}
	require.NoError(t, NewStudentRepo(db).Enroll(context.Background(), &st, "", bcrypt.MinCost))
	assert.Nil(t, st.UserID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentUpdateMirrorsLogin(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	course, year, email := "MECH", 3, "New@Example.com"

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM students WHERE id = ? FOR UPDATE")).
		WithArgs(4).
		WillReturnRows(studentRows().AddRow(4, 12, "Asha", "asha@example.com", "R1", "999", "CSE", 1,
			"", "", nil, nil, nil, true, created))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE students SET name = ?")).
		WithArgs("Asha", "new@example.com", "999", "MECH", 3, "", "", 4).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET name = ?, email = ? WHERE id = ?")).
		WithArgs("Asha", "new@example.com", 12).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	st, err := NewStudentRepo(db).Update(context.Background(), 4,
		model.StudentPatch{Course: &course, Year: &year, Email: &email})
	require.NoError(t, err)
	assert.Equal(t, "MECH", st.Course)
	assert.Equal(t, 3, st.Year)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentUpdateRefusesInactive(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	year := 2

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM students WHERE id = ? FOR UPDATE")).
		WithArgs(4).
		WillReturnRows(studentRows().AddRow(4, nil, "Asha", "", "R1", "", "CSE", 1,
			"", "", nil, nil, nil, false, created))
	mock.ExpectRollback()

	_, err = NewStudentRepo(db).Update(context.Background(), 4, model.StudentPatch{Year: &year})
	assert.ErrorIs(t, err, allocation.ErrStudentInactive)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUnclassifiedDuplicateHidesDriverText(t *testing.T) {
	cause := &mysql.MySQLError{Number: errDupEntry, Message: "Duplicate entry 'x' for key 'uq_users_email'"}
	err := mapErr(cause, nil, nil)
	assert.ErrorIs(t, err, allocation.ErrConflict)
	assert.NotContains(t, err.Error(), "uq_users_email")

	var me *mysql.MySQLError
	require.ErrorAs(t, err, &me)
	assert.Contains(t, fmt.Sprintf("%+v", err), "uq_users_email")

	err = mapErr(&mysql.MySQLError{Number: errRowIsReferenced2, Message: "fk_students_user"}, nil, nil)
	assert.ErrorIs(t, err, allocation.ErrConflict)
	assert.NotContains(t, err.Error(), "fk_students_user")
}
