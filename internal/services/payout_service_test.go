package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/festpay/backend/internal/models"
)

func testPayoutRequest() *PayoutExportRequest {
	return &PayoutExportRequest{
		EventID:       "ev1",
		OrganizerName: "Festival Assala",
		OrganizerBIC:  "BGFIGALX",
		BankCode:      "40001",
	}
}

func TestPayoutService_ConvertTransaction(t *testing.T) {
	service := NewPayoutService(nil, nil)

	rec := &models.TransactionRecord{
		ID:            "tx1",
		Type:          models.TypeSale,
		Amount:        4000,
		ParticipantID: "p1",
		Status:        models.StatusCompleted,
		CreatedAt:     time.Now(),
	}

	doc, err := service.ConvertTransaction(rec, testPayoutRequest())
	assert.NoError(t, err)

	assert.NotEmpty(t, doc.GrpHdr.MsgId)
	assert.Equal(t, "1", string(doc.GrpHdr.NbOfTxs))
	assert.Equal(t, "XAF", string(doc.GrpHdr.TtlIntrBkSttlmAmt.Ccy))
	assert.Equal(t, 4000.0, doc.GrpHdr.TtlIntrBkSttlmAmt.Value)

	assert.Len(t, doc.CdtTrfTxInf, 1)
	tx := doc.CdtTrfTxInf[0]
	assert.Equal(t, "tx1", string(tx.PmtId.EndToEndId))
	assert.Equal(t, 4000.0, tx.IntrBkSttlmAmt.Value)
	assert.Equal(t, "Festival Assala", string(*tx.Cdtr.Nm))
	assert.Equal(t, "40001", string(tx.CdtrAgt.FinInstnId.ClrSysMmbId.MmbId))
}

func TestPayoutService_CreateStatusReport(t *testing.T) {
	service := NewPayoutService(nil, nil)

	rec := &models.TransactionRecord{ID: "tx1"}
	doc, err := service.CreateStatusReport(rec, "ACSC")
	assert.NoError(t, err)

	assert.NotEmpty(t, doc.GrpHdr.MsgId)
	assert.Len(t, doc.TxInfAndSts, 1)
	assert.Equal(t, "tx1", string(*doc.TxInfAndSts[0].OrgnlTxId))
	assert.Equal(t, "ACSC", string(*doc.TxInfAndSts[0].TxSts))
}

func TestPayoutService_ConvertToXML(t *testing.T) {
	service := NewPayoutService(nil, nil)

	rec := &models.TransactionRecord{
		ID:            "tx1",
		Amount:        4000,
		ParticipantID: "p1",
	}
	doc, err := service.ConvertTransaction(rec, testPayoutRequest())
	assert.NoError(t, err)

	xmlDoc, err := service.ConvertToXML(doc)
	assert.NoError(t, err)
	assert.True(t, strings.HasPrefix(xmlDoc, "<?xml"))
	assert.Contains(t, xmlDoc, "tx1")
	assert.Contains(t, xmlDoc, "XAF")
}

func TestPayoutService_ExportEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("exports one document per completed sale", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		service := NewPayoutService(db, NewJournalService(db))

		mock.ExpectQuery("SELECT t.id, t.type, t.amount").
			WithArgs("ev1").
			WillReturnRows(sqlmock.NewRows(transactionCols).
				AddRow("tx1", models.TypeSale, 4000.0, "p1", "prod1", 1, "agent1", 10000.0, 6000.0, models.StatusCompleted, time.Now(), nil).
				AddRow("tx2", models.TypeSale, 1500.0, "p2", nil, nil, "agent2", 2000.0, 500.0, models.StatusCompleted, time.Now(), nil))

		docs, err := service.ExportEvent(ctx, testPayoutRequest())
		assert.NoError(t, err)
		assert.Len(t, docs, 2)
		assert.Contains(t, docs[0], "tx1")
		assert.Contains(t, docs[1], "tx2")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("event without sales exports nothing", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		service := NewPayoutService(db, NewJournalService(db))

		mock.ExpectQuery("SELECT t.id, t.type, t.amount").
			WithArgs("ev1").
			WillReturnRows(sqlmock.NewRows(transactionCols))

		docs, err := service.ExportEvent(ctx, testPayoutRequest())
		assert.NoError(t, err)
		assert.Empty(t, docs)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
