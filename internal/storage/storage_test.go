package storage

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/curbfleet/dispatch/internal/dispatch"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewStoreFromDB(sqlx.NewDb(db, "sqlmock")), mock
}

func jobRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"job_id", "status", "courier_id", "merchant_id",
		"pickup_lat", "pickup_lng", "pickup_address",
		"dropoff_lat", "dropoff_lng", "dropoff_address",
		"sequence", "fee", "payment_method", "recipient_name",
		"route_path", "route_distance_text", "route_duration_text",
		"near_destination", "created_at", "picked_up_at", "delivered_at",
	})
}

func TestActiveQueue(t *testing.T) {
	store, mock := newMockStore(t)

	now := time.Now()
	rows := jobRows().
		AddRow("j1", "EN_ROUTE", "c-1", "m-1",
			-22.9, -43.1, "Rua A, 10", -22.91, -43.12, "Rua B, 20",
			1, 8.5, "pix", nil, nil, nil, nil, false, now, nil, nil).
		AddRow("j2", "AWAITING_COURIER", nil, "m-2",
			-22.8, -43.0, "Rua C, 30", nil, nil, "Rua D, 40",
			2, 6.0, "cash", nil, nil, nil, nil, false, now, nil, nil)

	mock.ExpectQuery(`SELECT(.+)FROM jobs`).
		WithArgs("c-1", "AWAITING_COURIER", "DELIVERED", "CANCELED").
		WillReturnRows(rows)

	jobs, err := store.ActiveQueue(context.Background(), "c-1")
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	assert.Equal(t, "j1", jobs[0].ID)
	assert.Equal(t, dispatch.StatusEnRoute, jobs[0].Status)
	assert.Equal(t, "j2", jobs[1].ID)
	assert.Nil(t, jobs[1].CourierID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetJobNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT(.+)FROM jobs WHERE job_id`).
		WithArgs("missing").
		WillReturnRows(jobRows())

	_, err := store.GetJob(context.Background(), "missing")
	assert.ErrorIs(t, err, dispatch.ErrJobNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateJobStatus(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE jobs`).
		WithArgs("j1", "PICKED_UP", "", "PICKED_UP", "DELIVERED").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.UpdateJobStatus(context.Background(), "j1", dispatch.StatusPickedUp, "")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateJobStatusNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE jobs`).
		WithArgs("ghost", "CANCELED", "", "PICKED_UP", "DELIVERED").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.UpdateJobStatus(context.Background(), "ghost", dispatch.StatusCanceled, "")
	assert.ErrorIs(t, err, dispatch.ErrJobNotFound)
}

func TestUpdateSequence(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE jobs SET sequence`).
		WithArgs("j1", 3).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, store.UpdateSequence(context.Background(), "j1", 3))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignCourierAlreadyBound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE jobs`).
		WithArgs("j1", "c-2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.AssignCourier(context.Background(), "j1", "c-2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already has a courier")
}

func TestUpdateCourierPosition(t *testing.T) {
	store, mock := newMockStore(t)

	battery := 82
	conn := "WIFI"
	mock.ExpectExec(`UPDATE courier_profiles`).
		WithArgs("c-1", -22.9, -43.1, battery, nil, conn).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.UpdateCourierPosition(context.Background(), "c-1", -22.9, -43.1, Telemetry{
		BatteryLevel: &battery,
		Connectivity: &conn,
	})
	assert.NoError(t, err)
}

func TestAppendHistory(t *testing.T) {
	store, mock := newMockStore(t)

	jobID := "j1"
	mock.ExpectExec(`INSERT INTO position_history`).
		WithArgs("c-1", jobID, -22.9, -43.1).
		WillReturnResult(sqlmock.NewResult(1, 1))

	assert.NoError(t, store.AppendHistory(context.Background(), "c-1", &jobID, -22.9, -43.1))
}

func TestDailyStats(t *testing.T) {
	store, mock := newMockStore(t)

	since := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT COALESCE`).
		WithArgs("c-1", "DELIVERED", since).
		WillReturnRows(sqlmock.NewRows([]string{"earnings", "deliveries"}).AddRow(45.5, 6))

	stats, err := store.DailyStats(context.Background(), "c-1", since)
	require.NoError(t, err)
	assert.Equal(t, 45.5, stats.Earnings)
	assert.Equal(t, 6, stats.Deliveries)
}

func TestListHistoryWithCursor(t *testing.T) {
	store, mock := newMockStore(t)

	at := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"record_id", "courier_id", "job_id", "latitude", "longitude", "created_at"}).
		AddRow(int64(41), "c-1", nil, -22.9, -43.1, at)

	mock.ExpectQuery(`SELECT(.+)FROM position_history`).
		WithArgs("c-1", at, int64(42), 21).
		WillReturnRows(rows)

	records, err := store.ListHistory(context.Background(), HistoryFilter{
		CourierID: "c-1",
		PageSize:  20,
		Cursor:    &HistoryCursor{CreatedAt: at, RecordID: 42},
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(41), records[0].ID)
}
