package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"wacampaign/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

var pendingBatchColumns = []string{
	"cc.id", "cc.campaign_id", "cc.name", "cc.phone", "cc.variables", "cc.status", "cc.created_at",
	"c.id", "c.name", "c.status", "c.created_at", "c.updated_at",
	"t.id", "t.name", "t.category", "t.language", "t.components", "t.created_at",
}

func TestContactRepository_FetchPendingBatch(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewContactRepository(db)
	now := time.Now()

	rows := sqlmock.NewRows(pendingBatchColumns).
		AddRow(1, 10, "Ann", "+254700000001", `{"name":"Ann"}`, "pending", now,
			10, "Spring promo", "sending", now, now,
			3, "spring_promo", "MARKETING", "es", []byte(`[{"type":"BODY","text":"Hi {{name}}"}]`), now).
		AddRow(2, 11, "Bob", "+254700000002", `{}`, "pending", now,
			11, "Orphaned", "sending", now, now,
			nil, nil, nil, nil, nil, nil).
		AddRow(3, 99, "Cy", "+254700000003", ``, "pending", now,
			nil, nil, nil, nil, nil,
			nil, nil, nil, nil, nil, nil)

	mock.ExpectQuery(`FROM campaign_contacts cc\s+LEFT JOIN campaigns c .* ORDER BY \(c.id IS NULL OR t.id IS NULL\) ASC, cc.created_at ASC, cc.id ASC\s+LIMIT \$1`).
		WithArgs(6).
		WillReturnRows(rows)

	targets, err := repo.FetchPendingBatch(context.Background(), 6)
	require.NoError(t, err)
	require.Len(t, targets, 3)

	first := targets[0]
	assert.Equal(t, 1, first.Contact.ID)
	assert.Equal(t, models.ContactStatusPending, first.Contact.Status)
	require.NotNil(t, first.Campaign)
	require.NotNil(t, first.Template)
	assert.Equal(t, 3, first.Campaign.TemplateID)
	assert.Equal(t, "es", first.Template.LanguageCode())
	require.Len(t, first.Template.Components, 1)
	assert.Equal(t, "Hi {{name}}", first.Template.Components[0].Text)

	assert.NotNil(t, targets[1].Campaign)
	assert.Nil(t, targets[1].Template)

	assert.Nil(t, targets[2].Campaign)
	assert.Nil(t, targets[2].Template)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContactRepository_FetchPendingBatch_UndecodableTemplate(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	defer zap.ReplaceGlobals(zap.New(core))()

	db, mock := newMockDB(t)
	repo := NewContactRepository(db)
	now := time.Now()

	rows := sqlmock.NewRows(pendingBatchColumns).
		AddRow(1, 10, "Ann", "+254700000001", `{}`, "pending", now,
			10, "Broken", "sending", now, now,
			4, "broken", "MARKETING", "en_US", []byte(`[{"type":"BODY","text":5}]`), now).
		AddRow(2, 11, "Bob", "+254700000002", `{}`, "pending", now,
			11, "Healthy", "sending", now, now,
			3, "spring_promo", "MARKETING", "en_US", []byte(`[{"type":"BODY","text":"Hi"}]`), now)

	mock.ExpectQuery(`FROM campaign_contacts cc`).WithArgs(6).WillReturnRows(rows)

	targets, err := repo.FetchPendingBatch(context.Background(), 6)
	require.NoError(t, err)
	require.Len(t, targets, 2)

	require.NotNil(t, targets[0].Campaign)
	assert.Equal(t, 4, targets[0].Campaign.TemplateID)
	assert.Nil(t, targets[0].Template)

	require.NotNil(t, targets[1].Template)
	assert.Equal(t, "Hi", targets[1].Template.Components[0].Text)

	entries := logs.FilterField(zap.Int("template_id", 4)).All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(1), entries[0].ContextMap()["contact_id"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContactRepository_FetchPendingBatch_QueryError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewContactRepository(db)

	mock.ExpectQuery(`FROM campaign_contacts cc`).WillReturnError(errors.New("connection reset"))

	targets, err := repo.FetchPendingBatch(context.Background(), 6)
	assert.Nil(t, targets)
	assert.ErrorContains(t, err, "failed to get pending contacts")
}

func TestContactRepository_MarkSent(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewContactRepository(db)
	sentAt := time.Now()

	mock.ExpectExec(`UPDATE campaign_contacts\s+SET status = 'sent'.*WHERE id = \$1 AND status = 'pending'`).
		WithArgs(7, sentAt, "wamid.ABC").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.MarkSent(context.Background(), 7, sentAt, "wamid.ABC")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContactRepository_MarkSent_AlreadyTerminal(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewContactRepository(db)

	mock.ExpectExec(`UPDATE campaign_contacts`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkSent(context.Background(), 7, time.Now(), "wamid.ABC")
	assert.ErrorIs(t, err, ErrNotPending)
}

func TestContactRepository_MarkFailed(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewContactRepository(db)

	mock.ExpectExec(`UPDATE campaign_contacts\s+SET status = 'failed', last_error = \$2\s+WHERE id = \$1 AND status = 'pending'`).
		WithArgs(8, "rate limit exceeded").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.MarkFailed(context.Background(), 8, "rate limit exceeded")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContactRepository_ApplyReceipt(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewContactRepository(db)
	at := time.Unix(1700000000, 0).UTC()

	mock.ExpectExec(`UPDATE campaign_contacts\s+SET receipt_status = \$2`).
		WithArgs("wamid.1", models.ReceiptStatusRead, at, nil, 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE campaign_contacts\s+SET receipt_status = \$2`).
		WithArgs("wamid.1", models.ReceiptStatusDelivered, at, nil, 1).
		WillReturnResult(sqlmock.NewResult(0, 0))

	applied, err := repo.ApplyReceipt(context.Background(), "wamid.1", models.ReceiptStatusRead, at, nil)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = repo.ApplyReceipt(context.Background(), "wamid.1", models.ReceiptStatusDelivered, at, nil)
	require.NoError(t, err)
	assert.False(t, applied)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContactRepository_GetByID_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewContactRepository(db)

	mock.ExpectQuery(`FROM campaign_contacts WHERE id = \$1`).
		WithArgs(42).
		WillReturnError(sql.ErrNoRows)

	contact, err := repo.GetByID(context.Background(), 42)
	assert.Nil(t, contact)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInboundMessageRepository_Save(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewInboundMessageRepository(db)
	received := time.Unix(1700000000, 0).UTC()

	msg := &models.InboundMessage{
		WaMessageID: "wamid.IN1",
		WaID:        "254700000001",
		ProfileName: "Ann",
		Type:        "text",
		Body:        "STOP",
		ReceivedAt:  received,
	}

	mock.ExpectQuery(`INSERT INTO inbound_messages .* ON CONFLICT \(wa_message_id\) DO NOTHING`).
		WithArgs("wamid.IN1", "254700000001", "Ann", "text", "STOP", received).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))
	mock.ExpectQuery(`INSERT INTO inbound_messages`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	saved, err := repo.Save(context.Background(), msg)
	require.NoError(t, err)
	assert.True(t, saved)
	assert.Equal(t, 5, msg.ID)

	saved, err = repo.Save(context.Background(), msg)
	require.NoError(t, err)
	assert.False(t, saved)
}

func TestAdvisoryLocker_TryLock(t *testing.T) {
	db, mock := newMockDB(t)
	locker := NewAdvisoryLocker(db, BulkSendLockKey)

	mock.ExpectQuery(`SELECT pg_try_advisory_lock\(\$1\)`).
		WithArgs(BulkSendLockKey).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))
	mock.ExpectExec(`SELECT pg_advisory_unlock\(\$1\)`).
		WithArgs(BulkSendLockKey).
		WillReturnResult(sqlmock.NewResult(0, 0))

	release, acquired, err := locker.TryLock(context.Background())
	require.NoError(t, err)
	require.True(t, acquired)
	release()

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdvisoryLocker_TryLock_Held(t *testing.T) {
	db, mock := newMockDB(t)
	locker := NewAdvisoryLocker(db, BulkSendLockKey)

	mock.ExpectQuery(`SELECT pg_try_advisory_lock`).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(false))

	release, acquired, err := locker.TryLock(context.Background())
	require.NoError(t, err)
	assert.False(t, acquired)
	assert.Nil(t, release)
}
