package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"pdfrag/internal/core/domain"
)

func newRegistryWithMock(t *testing.T) (*DocumentRegistry, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &DocumentRegistry{db: db}, mock, func() { _ = db.Close() }
}

func TestCreateInsertsAllFields(t *testing.T) {
	registry, mock, done := newRegistryWithMock(t)
	defer done()

	now := time.Now().UTC()
	doc := &domain.Document{
		ID:          "doc-1",
		Name:        "manual.pdf",
		Type:        "datasheet",
		MimeType:    "application/pdf",
		StoragePath: "doc-1_manual.pdf",
		Status:      domain.StatusUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	mock.ExpectExec("INSERT INTO documents").
		WithArgs("doc-1", "manual.pdf", "datasheet", "application/pdf", "doc-1_manual.pdf",
			string(domain.StatusUploaded), "", now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := registry.Create(context.Background(), doc); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByIDReturnsDomainNotFound(t *testing.T) {
	registry, mock, done := newRegistryWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, name, doc_type, mime_type, storage_path").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := registry.GetByID(context.Background(), "missing")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByIDScansRecord(t *testing.T) {
	registry, mock, done := newRegistryWithMock(t)
	defer done()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "name", "doc_type", "mime_type", "storage_path", "status", "error", "created_at", "updated_at",
	}).AddRow("doc-1", "manual.pdf", "datasheet", "application/pdf", "doc-1_manual.pdf", "ready", "", now, now)

	mock.ExpectQuery("SELECT id, name, doc_type, mime_type, storage_path").
		WithArgs("doc-1").
		WillReturnRows(rows)

	doc, err := registry.GetByID(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if doc.Status != domain.StatusReady {
		t.Fatalf("status = %q, want ready", doc.Status)
	}
	if doc.Name != "manual.pdf" || doc.Type != "datasheet" {
		t.Fatalf("unexpected document: %+v", doc)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateStatusReturnsDomainNotFoundWhenNoRowsAffected(t *testing.T) {
	registry, mock, done := newRegistryWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE documents").
		WithArgs("missing", string(domain.StatusProcessing), "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := registry.UpdateStatus(context.Background(), "missing", domain.StatusProcessing, "")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateStatusRecordsFailureReason(t *testing.T) {
	registry, mock, done := newRegistryWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE documents").
		WithArgs("doc-1", string(domain.StatusFailed), "corrupt pdf", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := registry.UpdateStatus(context.Background(), "doc-1", domain.StatusFailed, "corrupt pdf"); err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
