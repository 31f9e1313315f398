package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"reflect"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CaliLuke/go-catalog/dialect"
	mysqldialect "github.com/CaliLuke/go-catalog/dialect/mysql"
	"github.com/CaliLuke/go-catalog/dialect/sqlite"
)

const (
	bookByID     = `SELECT "BookID", "AuthorID", "Title" FROM "Book" WHERE "BookID" = ?`
	bookAuthor   = `SELECT "AuthorID", "Name" FROM "Author" WHERE "AuthorID" IN (SELECT "AuthorID" FROM "Book" WHERE "BookID" = ?)`
	authorsBooks = `SELECT "BookID", "AuthorID", "Title" FROM "Book" WHERE "AuthorID" IN (SELECT "AuthorID" FROM "Author" WHERE "AuthorID" IN (SELECT "AuthorID" FROM "Book" WHERE "BookID" = ?))`
)

func newMock(t *testing.T, d dialect.Dialect) (*Cataloger, sqlmock.Sqlmock) {
	t.Helper()
	db, mk, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(db, d, WithRegistry(newShopRegistry(t)), WithLogger(logger)), mk
}

func bookRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"BookID", "AuthorID", "Title"})
}

func TestFindByID_WiresGraph(t *testing.T) {
	c, mk := newMock(t, sqlite.New(dialect.Options{}))
	mk.ExpectQuery(bookByID).WithArgs(1).WillReturnRows(bookRows().AddRow(1, 9, "Dune"))
	mk.ExpectQuery(bookAuthor).WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"AuthorID", "Name"}).AddRow(9, "Frank"))
	mk.ExpectQuery(authorsBooks).WithArgs(1).
		WillReturnRows(bookRows().AddRow(1, 9, "Dune").AddRow(2, 9, "Dune Messiah"))

	book, err := FindByID[Book](context.Background(), c, 1)
	require.NoError(t, err)
	require.NotNil(t, book)
	require.NoError(t, mk.ExpectationsWereMet())

	assert.Equal(t, "Dune", book.Title)
	require.NotNil(t, book.Author)
	assert.Equal(t, "Frank", book.Author.Name)
	require.Len(t, book.Author.Books, 2)
	assert.Same(t, book, book.Author.Books[0], "the same row must materialize once")
	assert.Same(t, book.Author, book.Author.Books[1].Author)
}

func TestFind_EmptyCollectionWhenCovered(t *testing.T) {
	c, mk := newMock(t, sqlite.New(dialect.Options{}))
	mk.ExpectQuery(`SELECT "AuthorID", "Name" FROM "Author" WHERE "AuthorID" = ?`).WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"AuthorID", "Name"}).AddRow(3, "Nobody"))
	mk.ExpectQuery(`SELECT "BookID", "AuthorID", "Title" FROM "Book" WHERE "AuthorID" IN (SELECT "AuthorID" FROM "Author" WHERE "AuthorID" = ?)`).
		WithArgs(3).WillReturnRows(bookRows())

	authors, err := Find[Author](context.Background(), c, Eq("AuthorID", 3))
	require.NoError(t, err)
	require.Len(t, authors, 1)
	assert.NotNil(t, authors[0].Books)
	assert.Empty(t, authors[0].Books)
	require.NoError(t, mk.ExpectationsWereMet())
}

func TestFind_PartialResult(t *testing.T) {
	c, mk := newMock(t, sqlite.New(dialect.Options{}))
	mk.ExpectQuery(bookByID).WithArgs(1).WillReturnRows(bookRows().AddRow(1, 9, "Dune"))
	mk.ExpectQuery(bookAuthor).WithArgs(1).WillReturnError(errors.New("relation does not exist"))
	mk.ExpectQuery(authorsBooks).WithArgs(1).WillReturnRows(bookRows().AddRow(1, 9, "Dune"))

	books, err := Find[Book](context.Background(), c, Eq("BookID", 1))
	require.Error(t, err)
	assert.True(t, IsPartial(err))
	require.Len(t, books, 1)
	assert.Equal(t, "Dune", books[0].Title)
	assert.Nil(t, books[0].Author)

	var pe *PartialResultError
	require.ErrorAs(t, err, &pe)
	require.Len(t, pe.Failures, 1)
	assert.Equal(t, 1, pe.Failures[0].Index)
	assert.Equal(t, "Author", pe.Failures[0].Table)
	require.NoError(t, mk.ExpectationsWereMet())
}

func TestFind_RootFailureIsFatal(t *testing.T) {
	c, mk := newMock(t, sqlite.New(dialect.Options{}))
	mk.ExpectQuery(bookByID).WithArgs(1).WillReturnError(errors.New("boom"))
	mk.ExpectQuery(bookAuthor).WithArgs(1).WillReturnRows(sqlmock.NewRows([]string{"AuthorID", "Name"}))

	books, err := Find[Book](context.Background(), c, Eq("BookID", 1))
	assert.Nil(t, books)
	assert.ErrorIs(t, err, ErrExecution)
	assert.False(t, IsPartial(err))

	var ee *ExecutionError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "Book", ee.Table)
	assert.Equal(t, bookByID, ee.SQL)
}

func TestFind_LazyLoad(t *testing.T) {
	c, mk := newMock(t, sqlite.New(dialect.Options{}))
	mk.ExpectQuery(bookByID).WithArgs(1).WillReturnRows(bookRows().AddRow(1, 9, "Dune"))
	mk.ExpectQuery(`SELECT "AuthorID", "Name" FROM "Author" WHERE "AuthorID" = ?`).WithArgs(9).
		WillReturnRows(sqlmock.NewRows([]string{"AuthorID", "Name"}).AddRow(9, "Frank"))

	book, err := FindByIDWith[Book](context.Background(), c, FetchOptions{LazyLoad: true}, 1)
	require.NoError(t, err)
	require.NotNil(t, book.Author)
	assert.Equal(t, "Frank", book.Author.Name)
	require.Len(t, book.Author.Books, 1)
	assert.Same(t, book, book.Author.Books[0])
	require.NoError(t, mk.ExpectationsWereMet())
}

func TestFind_NoExpandLeavesAssociationsUnset(t *testing.T) {
	c, mk := newMock(t, sqlite.New(dialect.Options{}))
	mk.ExpectQuery(bookByID).WithArgs(1).WillReturnRows(bookRows().AddRow(1, 9, "Dune"))

	book, err := FindByIDWith[Book](context.Background(), c, FetchOptions{}, 1)
	require.NoError(t, err)
	assert.Nil(t, book.Author)
	require.NoError(t, mk.ExpectationsWereMet())
}

func TestFindByID_NotFound(t *testing.T) {
	c, mk := newMock(t, sqlite.New(dialect.Options{}))
	mk.ExpectQuery(bookByID).WithArgs(5).WillReturnRows(bookRows())

	book, err := FindByIDWith[Book](context.Background(), c, FetchOptions{}, 5)
	require.NoError(t, err)
	assert.Nil(t, book)
}

func TestFind_MultiResultBatch(t *testing.T) {
	c, mk := newMock(t, mysqldialect.New(dialect.Options{MultiStatements: true}))
	query := "SELECT `BookID`, `AuthorID`, `Title` FROM `Book` WHERE `BookID` = ?;\n" +
		"SELECT `AuthorID`, `Name` FROM `Author` WHERE `AuthorID` IN (SELECT `AuthorID` FROM `Book` WHERE `BookID` = ?);\n" +
		"SELECT `BookID`, `AuthorID`, `Title` FROM `Book` WHERE `AuthorID` IN (SELECT `AuthorID` FROM `Author` WHERE `AuthorID` IN (SELECT `AuthorID` FROM `Book` WHERE `BookID` = ?))"
	mk.ExpectQuery(query).WithArgs(1, 1, 1).WillReturnRows(
		bookRows().AddRow(1, 9, "Dune"),
		sqlmock.NewRows([]string{"AuthorID", "Name"}).AddRow(9, "Frank"),
		bookRows().AddRow(1, 9, "Dune").AddRow(2, 9, "Dune Messiah"),
	)

	book, err := FindByID[Book](context.Background(), c, 1)
	require.NoError(t, err)
	require.NoError(t, mk.ExpectationsWereMet())
	require.NotNil(t, book.Author)
	require.Len(t, book.Author.Books, 2)
	assert.Same(t, book, book.Author.Books[0])
}

func TestFind_MultiResultBatchAborted(t *testing.T) {
	c, mk := newMock(t, mysqldialect.New(dialect.Options{MultiStatements: true}))
	mk.ExpectQuery("SELECT `BookID`, `AuthorID`, `Title` FROM `Book`;\n" +
		"SELECT `AuthorID`, `Name` FROM `Author` WHERE `AuthorID` IN (SELECT `AuthorID` FROM `Book`);\n" +
		"SELECT `BookID`, `AuthorID`, `Title` FROM `Book` WHERE `AuthorID` IN (SELECT `AuthorID` FROM `Author` WHERE `AuthorID` IN (SELECT `AuthorID` FROM `Book`))").
		WillReturnRows(bookRows().AddRow(1, 9, "Dune"))

	books, err := All[Book](context.Background(), c)
	require.Len(t, books, 1)
	var pe *PartialResultError
	require.ErrorAs(t, err, &pe)
	require.Len(t, pe.Failures, 2)
	for _, f := range pe.Failures {
		assert.ErrorIs(t, f, ErrBatchAborted)
	}
}

func TestSave_InsertReturning(t *testing.T) {
	c, mk := newMock(t, sqlite.New(dialect.Options{}))
	mk.ExpectQuery(`INSERT INTO "Book" ("AuthorID", "Title") VALUES (?, ?) RETURNING "BookID"`).
		WithArgs(9, "Dune").WillReturnRows(sqlmock.NewRows([]string{"BookID"}).AddRow(42))

	book := &Book{AuthorID: 9, Title: "Dune"}
	require.NoError(t, c.Save(context.Background(), book))
	assert.Equal(t, int64(42), book.BookID)
	require.NoError(t, mk.ExpectationsWereMet())
}

func TestSave_InsertLastInsertID(t *testing.T) {
	c, mk := newMock(t, mysqldialect.New(dialect.Options{}))
	mk.ExpectExec("INSERT INTO `Book` (`AuthorID`, `Title`) VALUES (?, ?)").
		WithArgs(9, "Dune").WillReturnResult(sqlmock.NewResult(42, 1))

	book := &Book{AuthorID: 9, Title: "Dune"}
	require.NoError(t, c.Save(context.Background(), book))
	assert.Equal(t, int64(42), book.BookID)
	require.NoError(t, mk.ExpectationsWereMet())
}

func TestSave_Update(t *testing.T) {
	c, mk := newMock(t, sqlite.New(dialect.Options{}))
	mk.ExpectExec(`UPDATE "Book" SET "AuthorID" = ?, "Title" = ? WHERE "BookID" = ?`).
		WithArgs(9, "Children of Dune", 42).WillReturnResult(sqlmock.NewResult(0, 1))

	book := &Book{BookID: 42, AuthorID: 9, Title: "Children of Dune"}
	require.NoError(t, c.Save(context.Background(), book))
	require.NoError(t, mk.ExpectationsWereMet())
}

func TestSave_NullSentinels(t *testing.T) {
	c, mk := newMock(t, sqlite.New(dialect.Options{}))
	mk.ExpectExec(`UPDATE "OrderLine" SET "OrderID" = ?, "Sku" = ?, "Qty" = ? WHERE "OrderLineID" = ?`).
		WithArgs(3, "SKU-1", nil, 5).WillReturnResult(sqlmock.NewResult(0, 1))

	line := &OrderLine{OrderLineID: 5, OrderID: 3, Sku: "SKU-1", Qty: -1 << 31}
	require.NoError(t, c.Save(context.Background(), line))
	require.NoError(t, mk.ExpectationsWereMet())
}

func TestSave_ConstraintViolation(t *testing.T) {
	c, mk := newMock(t, mysqldialect.New(dialect.Options{}))
	mk.ExpectExec("INSERT INTO `Book` (`AuthorID`, `Title`) VALUES (?, ?)").
		WithArgs(404, "Orphan").WillReturnError(&mysql.MySQLError{Number: 1452, Message: "foreign key constraint fails"})

	err := c.Save(context.Background(), &Book{AuthorID: 404, Title: "Orphan"})
	var ee *ExecutionError
	require.ErrorAs(t, err, &ee)
	assert.True(t, ee.Constraint)
	assert.Equal(t, "insert", ee.Op)
	assert.Contains(t, err.Error(), "constraint violation")
}

func TestSave_Errors(t *testing.T) {
	c, _ := newMock(t, sqlite.New(dialect.Options{}))
	ctx := context.Background()

	assert.ErrorIs(t, c.Save(ctx, &Audit{Message: "x"}), ErrMissingIdentity)
	assert.ErrorIs(t, c.Delete(ctx, &Audit{Message: "x"}), ErrMissingIdentity)
	assert.Error(t, c.Save(ctx, Book{}))
	assert.Error(t, c.Save(ctx, (*Book)(nil)))
}

func TestDelete(t *testing.T) {
	c, mk := newMock(t, sqlite.New(dialect.Options{}))
	mk.ExpectExec(`DELETE FROM "Book" WHERE "BookID" = ?`).WithArgs(42).WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, c.Delete(context.Background(), &Book{BookID: 42}))
	require.NoError(t, mk.ExpectationsWereMet())
}

func TestDelete_UnsetIdentity(t *testing.T) {
	c, mk := newMock(t, sqlite.New(dialect.Options{}))
	ctx := context.Background()

	for _, book := range []*Book{{}, {BookID: math.MinInt64}} {
		err := c.Delete(ctx, book)
		require.ErrorIs(t, err, ErrUnsetIdentity)
	}
	require.NoError(t, mk.ExpectationsWereMet())
}

func TestSave_SentinelIdentityInserts(t *testing.T) {
	c, mk := newMock(t, sqlite.New(dialect.Options{}))
	mk.ExpectQuery(`INSERT INTO "Book" ("AuthorID", "Title") VALUES (?, ?) RETURNING "BookID"`).
		WithArgs(9, "Dune").WillReturnRows(sqlmock.NewRows([]string{"BookID"}).AddRow(7))

	book := &Book{BookID: math.MinInt64, AuthorID: 9, Title: "Dune"}
	require.NoError(t, c.Save(context.Background(), book))
	assert.Equal(t, int64(7), book.BookID)
	require.NoError(t, mk.ExpectationsWereMet())
}

func TestCallProcedure(t *testing.T) {
	c, mk := newMock(t, mysqldialect.New(dialect.Options{}))
	mk.ExpectQuery("CALL `author_with_books`(?)").WithArgs(9).WillReturnRows(
		sqlmock.NewRows([]string{"AuthorID", "Name"}).AddRow(9, "Frank"),
		bookRows().AddRow(1, 9, "Dune").AddRow(2, 9, "Dune Messiah"),
	)

	authors, err := CallProcedure[Author](context.Background(), c, "author_with_books",
		[]reflect.Type{reflect.TypeFor[Author](), reflect.TypeFor[Book]()}, FetchOptions{}, 9)
	require.NoError(t, err)
	require.Len(t, authors, 1)
	require.Len(t, authors[0].Books, 2)
	assert.Same(t, authors[0], authors[0].Books[1].Author)
	require.NoError(t, mk.ExpectationsWereMet())
}

func TestCallProcedure_Errors(t *testing.T) {
	ctx := context.Background()

	c, _ := newMock(t, mysqldialect.New(dialect.Options{}))
	_, err := CallProcedure[Author](ctx, c, "p", []reflect.Type{reflect.TypeFor[Book]()}, FetchOptions{})
	assert.ErrorIs(t, err, ErrTypeMismatch)

	c, _ = newMock(t, sqlite.New(dialect.Options{}))
	_, err = CallProcedure[Author](ctx, c, "p", nil, FetchOptions{})
	var ue *UnsupportedError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "sqlite", ue.Dialect)
}
