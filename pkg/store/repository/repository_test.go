// SPDX-FileCopyrightText: 2025 Store Provisioning Platform contributors
//
// SPDX-License-Identifier: Apache-2.0

package repository_test

import (
	"context"
	"database/sql"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/go-logr/logr"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Hardik-Jain1/store-provisioning-platform/pkg/store"
	. "github.com/Hardik-Jain1/store-provisioning-platform/pkg/store/repository"
)

var storeColumns = []string{
	"id", "name", "engine", "namespace", "helm_release", "status", "failure_reason", "store_url",
	"db_root_password", "db_name", "db_user", "db_password",
	"admin_username", "admin_password", "admin_email",
	"created_at", "updated_at",
}

func storeRow(s *store.Store) *sqlmock.Rows {
	return sqlmock.NewRows(storeColumns).AddRow(
		s.ID, s.Name, s.Engine, s.Namespace, s.HelmRelease, s.Status, s.FailureReason, s.StoreURL,
		s.DBRootPassword, s.DBName, s.DBUser, s.DBPassword,
		s.AdminUsername, s.AdminPassword, s.AdminEmail,
		s.CreatedAt, s.UpdatedAt,
	)
}

var _ = Describe("Repository", func() {
	var (
		ctx  = context.Background()
		mock sqlmock.Sqlmock
		repo *Repository

		record *store.Store
	)

	BeforeEach(func() {
		var (
			db  *sql.DB
			err error
		)

		db, mock, err = sqlmock.New()
		Expect(err).NotTo(HaveOccurred())

		repo = New(sqlx.NewDb(db, "sqlmock"), logr.Discard())

		now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		record = &store.Store{
			ID:          "shop1-abcd1234",
			Name:        "shop1",
			Engine:      store.EngineWooCommerce,
			Namespace:   "store-shop1-abcd1234",
			HelmRelease: "shop1-abcd1234",
			Status:      store.StatusProvisioning,

			DBRootPassword: "rootpw",
			DBName:         "store_shop1",
			DBUser:         "shop1_user",
			DBPassword:     "dbpw",

			AdminUsername: "admin",
			AdminPassword: "adminpw",
			AdminEmail:    "admin@example.com",

			CreatedAt: now,
			UpdatedAt: now,
		}
	})

	AfterEach(func() {
		Expect(mock.ExpectationsWereMet()).To(Succeed())
	})

	Describe("#Insert", func() {
		It("should insert the record", func() {
			mock.ExpectExec("INSERT INTO stores").
				WillReturnResult(sqlmock.NewResult(0, 1))

			Expect(repo.Insert(ctx, record)).To(Succeed())
		})

		It("should map a unique violation to ErrDuplicateName", func() {
			mock.ExpectExec("INSERT INTO stores").
				WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "stores_name_key"})

			err := repo.Insert(ctx, record)

			Expect(err).To(MatchError(store.ErrDuplicateName))
		})

		It("should pass through other database errors", func() {
			mock.ExpectExec("INSERT INTO stores").
				WillReturnError(sql.ErrConnDone)

			err := repo.Insert(ctx, record)

			Expect(err).To(MatchError(sql.ErrConnDone))
			Expect(err).NotTo(MatchError(store.ErrDuplicateName))
		})
	})

	Describe("#GetByID", func() {
		It("should return the store", func() {
			mock.ExpectQuery(`SELECT \* FROM stores WHERE id = \$1`).
				WithArgs(record.ID).
				WillReturnRows(storeRow(record))

			result, err := repo.GetByID(ctx, record.ID)

			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(record))
		})

		It("should return ErrNotFound for an unknown id", func() {
			mock.ExpectQuery(`SELECT \* FROM stores WHERE id = \$1`).
				WithArgs("unknown").
				WillReturnError(sql.ErrNoRows)

			_, err := repo.GetByID(ctx, "unknown")

			Expect(err).To(MatchError(store.ErrNotFound))
		})
	})

	Describe("#GetByName", func() {
		It("should return ErrNotFound for an unknown name", func() {
			mock.ExpectQuery(`SELECT \* FROM stores WHERE name = \$1`).
				WithArgs("unknown").
				WillReturnError(sql.ErrNoRows)

			_, err := repo.GetByName(ctx, "unknown")

			Expect(err).To(MatchError(store.ErrNotFound))
		})
	})

	Describe("#List", func() {
		It("should return all stores newest first", func() {
			mock.ExpectQuery(`SELECT \* FROM stores ORDER BY created_at DESC`).
				WillReturnRows(storeRow(record))

			result, err := repo.List(ctx)

			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(HaveLen(1))
			Expect(result[0].ID).To(Equal(record.ID))
		})

		It("should return an empty slice when there are no stores", func() {
			mock.ExpectQuery(`SELECT \* FROM stores ORDER BY created_at DESC`).
				WillReturnRows(sqlmock.NewRows(storeColumns))

			result, err := repo.List(ctx)

			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(BeEmpty())
		})
	})

	Describe("#ListByStatus", func() {
		It("should filter by status", func() {
			mock.ExpectQuery(`SELECT \* FROM stores WHERE status = \$1 ORDER BY created_at DESC`).
				WithArgs(store.StatusProvisioning).
				WillReturnRows(storeRow(record))

			result, err := repo.ListByStatus(ctx, store.StatusProvisioning)

			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(HaveLen(1))
		})
	})

	Describe("#UpdateStatus", func() {
		It("should commit a valid transition", func() {
			url := "http://shop1.localhost"

			mock.ExpectBegin()
			mock.ExpectQuery(`SELECT status FROM stores WHERE id = \$1 FOR UPDATE`).
				WithArgs(record.ID).
				WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(store.StatusProvisioning))
			mock.ExpectExec("UPDATE stores").
				WithArgs(record.ID, store.StatusReady, nil, &url, sqlmock.AnyArg()).
				WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectCommit()

			Expect(repo.UpdateStatus(ctx, record.ID, store.StatusReady, UpdateOptions{StoreURL: &url})).To(Succeed())
		})

		It("should persist the failure reason when transitioning to FAILED", func() {
			reason := "install failed: boom"

			mock.ExpectBegin()
			mock.ExpectQuery(`SELECT status FROM stores WHERE id = \$1 FOR UPDATE`).
				WithArgs(record.ID).
				WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(store.StatusProvisioning))
			mock.ExpectExec("UPDATE stores").
				WithArgs(record.ID, store.StatusFailed, &reason, nil, sqlmock.AnyArg()).
				WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectCommit()

			Expect(repo.UpdateStatus(ctx, record.ID, store.StatusFailed, UpdateOptions{FailureReason: &reason})).To(Succeed())
		})

		It("should drop the failure reason when the new status is not FAILED", func() {
			reason := "stale"

			mock.ExpectBegin()
			mock.ExpectQuery(`SELECT status FROM stores WHERE id = \$1 FOR UPDATE`).
				WithArgs(record.ID).
				WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(store.StatusDeleting))
			mock.ExpectExec("UPDATE stores").
				WithArgs(record.ID, store.StatusDeleted, nil, nil, sqlmock.AnyArg()).
				WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectCommit()

			Expect(repo.UpdateStatus(ctx, record.ID, store.StatusDeleted, UpdateOptions{FailureReason: &reason})).To(Succeed())
		})

		It("should refuse a transition the lifecycle graph forbids", func() {
			mock.ExpectBegin()
			mock.ExpectQuery(`SELECT status FROM stores WHERE id = \$1 FOR UPDATE`).
				WithArgs(record.ID).
				WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(store.StatusDeleted))
			mock.ExpectRollback()

			err := repo.UpdateStatus(ctx, record.ID, store.StatusReady, UpdateOptions{})

			Expect(err).To(MatchError(store.ErrInvalidTransition))
		})

		It("should return ErrNotFound for an unknown id", func() {
			mock.ExpectBegin()
			mock.ExpectQuery(`SELECT status FROM stores WHERE id = \$1 FOR UPDATE`).
				WithArgs("unknown").
				WillReturnError(sql.ErrNoRows)
			mock.ExpectRollback()

			err := repo.UpdateStatus(ctx, "unknown", store.StatusReady, UpdateOptions{})

			Expect(err).To(MatchError(store.ErrNotFound))
		})
	})
})
