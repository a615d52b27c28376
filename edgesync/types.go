package edgesync

import (
	"encoding/json"
	"time"

	"github.com/cedarpos/pos_backend/models"
	"github.com/shopspring/decimal"
)

// MasterdataPage is one keyset page of an entity export. next_ts/next_id are
// always present so the caller can resume; an empty page repeats the input
// cursor.
type MasterdataPage struct {
	Entity  string            `json:"entity"`
	SinceTs time.Time         `json:"since_ts"`
	SinceId string            `json:"since_id"`
	NextTs  time.Time         `json:"next_ts"`
	NextId  string            `json:"next_id"`
	Rows    []json.RawMessage `json:"rows"`
}

// SalesBundle replicates one fully-posted sale (or return) with every row the
// edge wrote for it. Ids are edge-authoritative; the cloud inserts by primary
// key and never merges fields on conflict.
type SalesBundle struct {
	Doc            models.SalesDoc          `json:"doc"`
	Lines          []models.SalesDocLine    `json:"lines"`
	Payments       []models.SalesDocPayment `json:"payments"`
	TaxLines       []models.SalesDocTaxLine `json:"tax_lines"`
	Journals       []models.GlJournal       `json:"journals"`
	Entries        []models.GlEntry         `json:"entries"`
	StockMoves     []models.StockMove       `json:"stock_moves"`
	CustomerUpdate *CustomerBalanceSnapshot `json:"customer_update"`
	SourceNodeId   string                   `json:"source_node_id"`
}

// CustomerBalanceSnapshot overwrites the cloud row with the edge's balances.
// The edge is authoritative for the effects of its own documents.
type CustomerBalanceSnapshot struct {
	Id               string          `json:"id"`
	MembershipNo     string          `json:"membership_no"`
	CreditBalanceUsd decimal.Decimal `json:"credit_balance_usd"`
	CreditBalanceLbp decimal.Decimal `json:"credit_balance_lbp"`
	LoyaltyPoints    decimal.Decimal `json:"loyalty_points"`
}

// ImportReceipt reports what a bundle import actually inserted. Replays show
// zero inserted rows and are not an error.
type ImportReceipt struct {
	DocId        string `json:"doc_id"`
	InsertedRows int64  `json:"inserted_rows"`
	SkippedRows  int64  `json:"skipped_rows"`
}

// deviceRow is the export shape for pos_devices. The model hides token_hash
// from JSON; edge nodes need it locally so devices can authenticate offline.
type deviceRow struct {
	ID         string              `json:"id"`
	BusinessId string              `json:"business_id"`
	BranchId   string              `json:"branch_id"`
	Name       string              `json:"name"`
	TokenHash  string              `json:"token_hash"`
	Status     models.DeviceStatus `json:"status"`
	LastSeenAt *time.Time          `json:"last_seen_at"`
	LastStatus string              `json:"last_status"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

// PingResponse echoes the server clock so edges can flag drift.
type PingResponse struct {
	NodeId     string    `json:"node_id"`
	ServerTime time.Time `json:"server_time"`
}
