package database

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestDatabase(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Database Suite")
}

var _ = Describe("Tx capability", func() {
	var (
		mockDB *sqlx.DB
		mock   sqlmock.Sqlmock
	)

	BeforeEach(func() {
		rawDB, m, err := sqlmock.New()
		Expect(err).NotTo(HaveOccurred())
		mockDB = sqlx.NewDb(rawDB, "sqlmock")
		mock = m
	})

	AfterEach(func() {
		mockDB.Close()
	})

	Describe("CommitOrRollback", func() {
		It("commits when err is nil", func() {
			mock.ExpectBegin()
			mock.ExpectCommit()

			tx, err := BeginTx(context.Background(), mockDB)
			Expect(err).NotTo(HaveOccurred())

			var opErr error
			func() {
				defer tx.CommitOrRollback(&opErr)
			}()

			Expect(mock.ExpectationsWereMet()).To(Succeed())
		})

		It("rolls back when err is non-nil", func() {
			mock.ExpectBegin()
			mock.ExpectRollback()

			tx, err := BeginTx(context.Background(), mockDB)
			Expect(err).NotTo(HaveOccurred())

			opErr := errors.New("boom")
			func() {
				defer tx.CommitOrRollback(&opErr)
			}()

			Expect(mock.ExpectationsWereMet()).To(Succeed())
		})
	})
})
