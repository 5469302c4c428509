package services

import (
	"context"
	"database/sql"
	"encoding/xml"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/moov-io/iso20022/pkg/common"
	"github.com/moov-io/iso20022/pkg/pacs_v08"

	"github.com/festpay/backend/internal/models"
)

// payoutCurrency is the settlement currency for organizer payouts.
const payoutCurrency = "XAF"

// PayoutService exports completed sales as ISO 20022 pacs.008 credit
// transfers so the organizer's bank can settle takings after the event.
type PayoutService struct {
	db      *sql.DB
	journal *JournalService
}

func NewPayoutService(db *sql.DB, journal *JournalService) *PayoutService {
	return &PayoutService{db: db, journal: journal}
}

// PayoutExportRequest names the organizer account receiving the payout.
type PayoutExportRequest struct {
	EventID       string `json:"eventId" validate:"required"`
	OrganizerName string `json:"organizerName" validate:"required"`
	OrganizerBIC  string `json:"organizerBic" validate:"required"`
	BankCode      string `json:"bankCode" validate:"required"`
}

// ExportEvent converts every completed sale of the event into a
// pacs.008 document and returns them as XML.
func (s *PayoutService) ExportEvent(ctx context.Context, req *PayoutExportRequest) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.type, t.amount, t.participant_id, t.product_id, t.quantity, t.agent_id, t.balance_before, t.balance_after, t.status, t.created_at, t.reference
		FROM transactions t
		JOIN participants p ON p.id = t.participant_id
		WHERE p.event_id = $1 AND t.type = 'vente' AND t.status = 'completed'
		ORDER BY t.created_at
	`, req.EventID)
	if err != nil {
		return nil, fmt.Errorf("payout export query failed: %w", err)
	}
	defer rows.Close()

	var docs []string
	for rows.Next() {
		rec, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("payout export scan failed: %w", err)
		}

		doc, err := s.ConvertTransaction(rec, req)
		if err != nil {
			return nil, err
		}

		xmlDoc, err := s.ConvertToXML(doc)
		if err != nil {
			return nil, err
		}
		docs = append(docs, xmlDoc)
	}
	return docs, rows.Err()
}

// ConvertTransaction builds a pacs.008 FIToFICustomerCreditTransfer for
// a single completed transaction.
func (s *PayoutService) ConvertTransaction(rec *models.TransactionRecord, req *PayoutExportRequest) (*pacs_v08.FIToFICustomerCreditTransferV08, error) {
	msgId := uuid.New().String()
	creDtTm := time.Now()
	settlementDate := time.Now()

	doc := &pacs_v08.FIToFICustomerCreditTransferV08{
		GrpHdr: pacs_v08.GroupHeader93{
			MsgId:   common.Max35Text(msgId),
			CreDtTm: common.ISODateTime(creDtTm),
			NbOfTxs: "1",
			TtlIntrBkSttlmAmt: &pacs_v08.ActiveCurrencyAndAmount{
				Ccy:   common.ActiveCurrencyCode(payoutCurrency),
				Value: rec.Amount,
			},
			IntrBkSttlmDt: (*common.ISODate)(&settlementDate),
			SttlmInf: pacs_v08.SettlementInstruction7{
				SttlmMtd: "CLRG",
			},
		},
		CdtTrfTxInf: []pacs_v08.CreditTransferTransaction39{
			{
				PmtId: pacs_v08.PaymentIdentification7{
					InstrId:    &[]common.Max35Text{common.Max35Text(rec.ID)}[0],
					EndToEndId: common.Max35Text(rec.ID),
					TxId:       &[]common.Max35Text{common.Max35Text(rec.ID)}[0],
				},
				IntrBkSttlmAmt: pacs_v08.ActiveCurrencyAndAmount{
					Ccy:   common.ActiveCurrencyCode(payoutCurrency),
					Value: rec.Amount,
				},
				IntrBkSttlmDt: (*common.ISODate)(&settlementDate),
				ChrgBr:        "SLEV",
				DbtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
					FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
						BICFI: &[]common.BICFIDec2014Identifier{common.BICFIDec2014Identifier("FESTPAY")}[0],
					},
				},
				Dbtr: pacs_v08.PartyIdentification135{
					Nm: &[]common.Max140Text{common.Max140Text(rec.ParticipantID)}[0],
				},
				CdtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
					FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
						ClrSysMmbId: &pacs_v08.ClearingSystemMemberIdentification2{
							MmbId: common.Max35Text(req.BankCode),
						},
					},
				},
				Cdtr: pacs_v08.PartyIdentification135{
					Nm: &[]common.Max140Text{common.Max140Text(req.OrganizerName)}[0],
				},
			},
		},
	}

	return doc, nil
}

// CreateStatusReport builds a pacs.002 payment status report for a
// journaled transaction.
func (s *PayoutService) CreateStatusReport(rec *models.TransactionRecord, status string) (*pacs_v08.FIToFIPaymentStatusReportV08, error) {
	msgId := uuid.New().String()
	creDtTm := time.Now()

	doc := &pacs_v08.FIToFIPaymentStatusReportV08{
		GrpHdr: pacs_v08.GroupHeader53{
			MsgId:   common.Max35Text(msgId),
			CreDtTm: common.ISODateTime(creDtTm),
		},
		TxInfAndSts: []pacs_v08.PaymentTransaction80{
			{
				OrgnlInstrId:    &[]common.Max35Text{common.Max35Text(rec.ID)}[0],
				OrgnlEndToEndId: &[]common.Max35Text{common.Max35Text(rec.ID)}[0],
				OrgnlTxId:       &[]common.Max35Text{common.Max35Text(rec.ID)}[0],
				TxSts:           &[]pacs_v08.ExternalPaymentTransactionStatus1Code{pacs_v08.ExternalPaymentTransactionStatus1Code(status)}[0],
			},
		},
	}

	return doc, nil
}

// ConvertToXML renders an ISO 20022 document as XML.
func (s *PayoutService) ConvertToXML(doc interface{}) (string, error) {
	xmlData, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal XML: %w", err)
	}
	return xml.Header + string(xmlData), nil
}
