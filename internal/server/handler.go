package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/segadb/segadb/internal/database"
	"github.com/segadb/segadb/internal/index"
	"github.com/segadb/segadb/internal/record"
	"github.com/segadb/segadb/internal/table"
)

type Response struct {
	Data    any    `json:"data"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	// don't manually set this. it comes from the client
	ReqId string `json:"__segadb_client_req_id__"`
}

func NewErrorResponse(status int, err string) Response {
	return Response{Message: err, Status: status}
}

func NewResponse(status int, message string, data any) Response {
	return Response{Data: data, Message: message, Status: status}
}

// Session is the per-connection view of the store: the shared database
// plus this connection's open transaction, if any.
type Session struct {
	DB *database.Database
	Tx *database.Transaction
}

func errStatus(err error) int {
	switch err.(type) {
	case *database.TableNotFoundError:
		return http.StatusNotFound
	case *table.ConstraintError, *table.DuplicateIDError, *index.UniqueViolationError:
		return http.StatusConflict
	case *database.StateError:
		return http.StatusBadRequest
	default:
		return http.StatusBadRequest
	}
}

// rowData flattens a record for the wire, with the id spliced back in.
func rowData(rec *record.Record) map[string]any {
	row := make(map[string]any, len(rec.Data)+1)
	for k, v := range rec.Data {
		row[k] = v
	}
	row["id"] = rec.ID
	return row
}

// matches reports whether every where key equals the record's value for
// that column. The "id" key matches the record id.
func matches(rec *record.Record, where map[string]any) bool {
	for k, v := range where {
		if k == "id" {
			if !table.ValueEqual(rec.ID, v) {
				return false
			}
			continue
		}
		if !table.ValueEqual(rec.Data.Get(k), v) {
			return false
		}
	}
	return true
}

type CreateTableRequest struct {
	Table   string   `json:"table"`
	Columns []string `json:"columns"`
}

func CreateTableReqHandler(s *Session, raw []byte) Response {
	var req CreateTableRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return NewErrorResponse(http.StatusBadRequest, err.Error())
	}

	if _, err := s.DB.CreateTable(req.Table, req.Columns); err != nil {
		return NewErrorResponse(http.StatusConflict, err.Error())
	}
	return NewResponse(http.StatusCreated, fmt.Sprintf("Created table %s", req.Table), nil)
}

type DropTableRequest struct {
	Table string `json:"table"`
}

func DropTableReqHandler(s *Session, raw []byte) Response {
	var req DropTableRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return NewErrorResponse(http.StatusBadRequest, err.Error())
	}

	if err := s.DB.DropTable(req.Table); err != nil {
		return NewErrorResponse(errStatus(err), err.Error())
	}
	return NewResponse(http.StatusOK, fmt.Sprintf("Dropped table %s", req.Table), nil)
}

type InsertRequest struct {
	Table string         `json:"table"`
	Data  map[string]any `json:"data"`
}

func InsertReqHandler(s *Session, raw []byte) Response {
	var req InsertRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return NewErrorResponse(http.StatusBadRequest, err.Error())
	}

	tbl, err := s.DB.GetTable(req.Table)
	if err != nil {
		return NewErrorResponse(errStatus(err), err.Error())
	}
	if err := tbl.InsertTx(req.Data, s.deferrer()); err != nil {
		return NewErrorResponse(errStatus(err), err.Error())
	}
	return NewResponse(http.StatusCreated,
		fmt.Sprintf("Created new row in table %s", req.Table), nil)
}

type InsertManyRequest struct {
	Table string           `json:"table"`
	Data  []map[string]any `json:"data"`
}

func InsertManyReqHandler(s *Session, raw []byte) Response {
	var req InsertManyRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return NewErrorResponse(http.StatusBadRequest, err.Error())
	}

	tbl, err := s.DB.GetTable(req.Table)
	if err != nil {
		return NewErrorResponse(errStatus(err), err.Error())
	}
	for i, row := range req.Data {
		if err := tbl.InsertTx(row, s.deferrer()); err != nil {
			return NewErrorResponse(errStatus(err),
				fmt.Sprintf("row %d: %s", i, err.Error()))
		}
	}
	return NewResponse(http.StatusCreated,
		fmt.Sprintf("Created %d new rows in table %s", len(req.Data), req.Table), nil)
}

type FindRequest struct {
	Table string         `json:"table"`
	Where map[string]any `json:"where"`
}

func FindReqHandler(s *Session, raw []byte) Response {
	var req FindRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return NewErrorResponse(http.StatusBadRequest, err.Error())
	}

	tbl, err := s.DB.GetTable(req.Table)
	if err != nil {
		return NewErrorResponse(errStatus(err), err.Error())
	}
	for _, rec := range tbl.Records {
		if matches(rec, req.Where) {
			return NewResponse(http.StatusOK,
				fmt.Sprintf("Found row in table %s", req.Table), rowData(rec))
		}
	}
	return NewErrorResponse(http.StatusNotFound, "Row not found")
}

func FindManyReqHandler(s *Session, raw []byte) Response {
	var req FindRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return NewErrorResponse(http.StatusBadRequest, err.Error())
	}

	tbl, err := s.DB.GetTable(req.Table)
	if err != nil {
		return NewErrorResponse(errStatus(err), err.Error())
	}
	rows := []map[string]any{}
	for _, rec := range tbl.Records {
		if matches(rec, req.Where) {
			rows = append(rows, rowData(rec))
		}
	}
	return NewResponse(http.StatusOK,
		fmt.Sprintf("Found %d rows in table %s", len(rows), req.Table), rows)
}

type UpdateRequest struct {
	Table string         `json:"table"`
	Where map[string]any `json:"where"`
	Data  map[string]any `json:"data"`
}

func UpdateReqHandler(s *Session, raw []byte) Response {
	var req UpdateRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return NewErrorResponse(http.StatusBadRequest, err.Error())
	}

	tbl, err := s.DB.GetTable(req.Table)
	if err != nil {
		return NewErrorResponse(errStatus(err), err.Error())
	}

	updated := 0
	for _, rec := range tbl.Records {
		if !matches(rec, req.Where) {
			continue
		}
		// Whole-payload replace: merge the patch over the current data.
		data := make(map[string]any, len(rec.Data)+len(req.Data))
		for k, v := range rec.Data {
			data[k] = v
		}
		for k, v := range req.Data {
			data[k] = v
		}
		if err := tbl.UpdateTx(rec.ID, data, s.deferrer()); err != nil {
			return NewErrorResponse(errStatus(err), err.Error())
		}
		updated++
	}
	return NewResponse(http.StatusOK,
		fmt.Sprintf("Updated %d rows in table %s", updated, req.Table), nil)
}

type DeleteRequest struct {
	Table string         `json:"table"`
	Where map[string]any `json:"where"`
}

func DeleteReqHandler(s *Session, raw []byte) Response {
	var req DeleteRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return NewErrorResponse(http.StatusBadRequest, err.Error())
	}

	tbl, err := s.DB.GetTable(req.Table)
	if err != nil {
		return NewErrorResponse(errStatus(err), err.Error())
	}

	ids := []uint64{}
	for _, rec := range tbl.Records {
		if matches(rec, req.Where) {
			ids = append(ids, rec.ID)
		}
	}
	for _, id := range ids {
		if err := tbl.DeleteTx(id, s.deferrer()); err != nil {
			return NewErrorResponse(errStatus(err), err.Error())
		}
	}
	return NewResponse(http.StatusOK,
		fmt.Sprintf("Deleted %d rows in table %s", len(ids), req.Table), nil)
}

type JoinRequest struct {
	Table       string `json:"table"`
	OtherTable  string `json:"other_table"`
	OnColumn    string `json:"on_column"`
	OtherColumn string `json:"other_column"`
}

func JoinReqHandler(s *Session, raw []byte) Response {
	var req JoinRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return NewErrorResponse(http.StatusBadRequest, err.Error())
	}

	joined, err := s.DB.JoinTables(req.Table, req.OtherTable, req.OnColumn, req.OtherColumn)
	if err != nil {
		return NewErrorResponse(errStatus(err), err.Error())
	}
	rows := make([]map[string]any, 0, joined.Len())
	for _, rec := range joined.Records {
		rows = append(rows, rowData(rec))
	}
	return NewResponse(http.StatusOK,
		fmt.Sprintf("Joined %s with %s", req.Table, req.OtherTable), rows)
}

type AggregateRequest struct {
	Table       string `json:"table"`
	GroupColumn string `json:"group_column"`
	Column      string `json:"column"`
	Func        string `json:"func"`
}

func AggregateReqHandler(s *Session, raw []byte) Response {
	var req AggregateRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return NewErrorResponse(http.StatusBadRequest, err.Error())
	}

	result, err := s.DB.AggregateTable(req.Table, req.GroupColumn, req.Column, table.AggFunc(req.Func))
	if err != nil {
		return NewErrorResponse(errStatus(err), err.Error())
	}
	rows := make([]map[string]any, 0, result.Len())
	for _, rec := range result.Records {
		rows = append(rows, rowData(rec))
	}
	return NewResponse(http.StatusOK,
		fmt.Sprintf("Aggregated %s on table %s", req.Func, req.Table), rows)
}

func BeginReqHandler(s *Session, _ []byte) Response {
	tx := database.NewTransaction(s.DB)
	if err := tx.Begin(); err != nil {
		return NewErrorResponse(errStatus(err), err.Error())
	}
	s.Tx = tx
	return NewResponse(http.StatusOK,
		fmt.Sprintf("Transaction %s started", tx.ID()), tx.ID())
}

func CommitReqHandler(s *Session, _ []byte) Response {
	if s.Tx == nil {
		return NewErrorResponse(http.StatusBadRequest, "no open transaction")
	}
	tx := s.Tx
	s.Tx = nil
	if err := tx.Commit(); err != nil {
		return NewErrorResponse(errStatus(err), err.Error())
	}
	return NewResponse(http.StatusOK,
		fmt.Sprintf("Transaction %s committed", tx.ID()), nil)
}

func RollbackReqHandler(s *Session, _ []byte) Response {
	if s.Tx == nil {
		return NewErrorResponse(http.StatusBadRequest, "no open transaction")
	}
	tx := s.Tx
	s.Tx = nil
	if err := tx.Rollback(); err != nil {
		return NewErrorResponse(errStatus(err), err.Error())
	}
	return NewResponse(http.StatusOK,
		fmt.Sprintf("Transaction %s rolled back", tx.ID()), nil)
}

// deferrer exposes the open transaction to table writes. A nil interface
// (not a typed nil) when no transaction is open.
func (s *Session) deferrer() table.Deferrer {
	if s.Tx == nil {
		return nil
	}
	return s.Tx
}
