package storage

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/segadb/segadb/internal/database"
	"github.com/segadb/segadb/internal/record"
	"github.com/segadb/segadb/internal/table"
	"github.com/segadb/segadb/pkg"
)

// databaseState is the on-disk shape of a whole database. Tables appear in
// creation order so a decoded database iterates the same way.
type databaseState struct {
	Name   string       `json:"name"`
	Tables []tableState `json:"tables"`
}

type tableState struct {
	Name        string                 `json:"name"`
	Columns     []string               `json:"columns"`
	NextID      uint64                 `json:"next_id"`
	Records     []recordState          `json:"records"`
	Constraints []table.ConstraintDecl `json:"constraints,omitempty"`
	Indexes     []indexState           `json:"indexes,omitempty"`
}

type recordState struct {
	ID   uint64         `json:"id"`
	Data map[string]any `json:"data"`
}

type indexState struct {
	Name   string `json:"name"`
	Column string `json:"column"`
	Unique bool   `json:"unique"`
}

// Encode serializes the database to JSON.
func Encode(db *database.Database) ([]byte, error) {
	state := databaseState{Name: db.Name}
	for _, name := range db.Tables.Keys() {
		tbl := db.Tables.Get(name)
		ts := tableState{
			Name:        tbl.Name,
			Columns:     tbl.Columns,
			NextID:      tbl.NextID,
			Records:     []recordState{},
			Constraints: tbl.ConstraintDecls(),
		}
		for _, rec := range tbl.Records {
			ts.Records = append(ts.Records, recordState{ID: rec.ID, Data: rec.Data})
		}
		for _, idxName := range tbl.IndexNames() {
			idx, _ := tbl.GetIndex(idxName)
			ts.Indexes = append(ts.Indexes, indexState{Name: idx.Name, Column: idx.Column, Unique: idx.Unique})
		}
		state.Tables = append(state.Tables, ts)
	}
	return json.Marshal(state)
}

// Decode rebuilds a database from Encode output. Records are re-inserted
// with their original ids, then constraints and indexes are re-applied.
// Check constraints cannot round-trip; their declarations are dropped with
// a warning.
func Decode(data []byte) (*database.Database, error) {
	var state databaseState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, errors.Wrap(err, "decoding database state")
	}

	db := database.New(state.Name)
	for _, ts := range state.Tables {
		tbl, err := db.CreateTable(ts.Name, ts.Columns)
		if err != nil {
			return nil, err
		}
		for _, rs := range ts.Records {
			row := make(map[string]any, len(rs.Data)+1)
			for k, v := range rs.Data {
				row[k] = v
			}
			row["id"] = rs.ID
			if err := tbl.Insert(row); err != nil {
				return nil, errors.Wrapf(err, "restoring record %d of table %s", rs.ID, ts.Name)
			}
		}
		if ts.NextID > tbl.NextID {
			tbl.NextID = ts.NextID
		}
	}

	// Constraints and indexes go on after every table exists so foreign
	// keys can resolve and existing rows are already in place.
	for _, ts := range state.Tables {
		tbl, err := db.GetTable(ts.Name)
		if err != nil {
			return nil, err
		}
		for _, decl := range ts.Constraints {
			switch decl.Kind {
			case table.ConstraintUnique:
				err = tbl.AddUnique(decl.Column)
			case table.ConstraintForeignKey:
				ref, refErr := db.GetTable(decl.RefTable)
				if refErr != nil {
					return nil, errors.Wrapf(refErr, "restoring foreign key on %s.%s", ts.Name, decl.Column)
				}
				err = tbl.AddForeignKey(decl.Column, ref, decl.RefColumn)
			case table.ConstraintCheck:
				pkg.WarnLog("dropping check constraint on", ts.Name+"."+decl.Column, "(predicate is not serializable)")
			default:
				return nil, errors.Errorf("unknown constraint kind %q", decl.Kind)
			}
			if err != nil {
				return nil, err
			}
		}
		for _, is := range ts.Indexes {
			if err := tbl.CreateIndex(is.Name, is.Column, is.Unique); err != nil {
				return nil, errors.Wrapf(err, "rebuilding index %s on table %s", is.Name, ts.Name)
			}
		}
	}
	return db, nil
}

// Save writes the database as plain JSON.
func Save(db *database.Database, path string) error {
	data, err := Encode(db)
	if err != nil {
		return err
	}
	return errors.Wrap(os.WriteFile(path, data, 0644), "writing database file")
}

func Load(path string) (*database.Database, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading database file")
	}
	return Decode(data)
}

// SaveCompressed writes the database as zlib-compressed JSON.
func SaveCompressed(db *database.Database, path string) error {
	data, err := Encode(db)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return errors.Wrap(err, "compressing database")
	}
	if err := w.Close(); err != nil {
		return errors.Wrap(err, "compressing database")
	}
	return errors.Wrap(os.WriteFile(path, buf.Bytes(), 0644), "writing database file")
}

func LoadCompressed(path string) (*database.Database, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading database file")
	}
	r, err := zlib.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, errors.Wrap(err, "decompressing database")
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "decompressing database")
	}
	return Decode(data)
}

// SaveEncrypted writes the database sealed under key, a base64 key from
// record.GenerateKey.
func SaveEncrypted(db *database.Database, path, key string) error {
	data, err := Encode(db)
	if err != nil {
		return err
	}
	token, err := record.Encrypt(string(data), key)
	if err != nil {
		return errors.Wrap(err, "encrypting database")
	}
	return errors.Wrap(os.WriteFile(path, []byte(token), 0644), "writing database file")
}

// LoadEncrypted fails outright on a wrong key rather than decoding garbage.
func LoadEncrypted(path, key string) (*database.Database, error) {
	token, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading database file")
	}
	data, err := record.Decrypt(string(token), key)
	if err != nil {
		return nil, errors.Wrap(err, "decrypting database")
	}
	return Decode([]byte(data))
}
