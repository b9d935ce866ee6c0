package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Commit writes a merge batch in a single transaction. Either every upsert,
// delete, and value set lands or none does.
func (s *Store) Commit(ctx context.Context, b Batch) error {
	if b.Empty() {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return writeBatch(ctx, tx, b)
	})
}

// SaveViews replaces every persisted view, row, and history snapshot with
// the given state. vals is written in the same transaction, so rows never
// land without their values.
func (s *Store) SaveViews(ctx context.Context, views []ViewRow, history []HistoryRow, vals Batch) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := writeBatch(ctx, tx, vals); err != nil {
			return err
		}
		for _, stmt := range []string{
			`DELETE FROM row_entities`,
			`DELETE FROM views`,
			`DELETE FROM row_history`,
		} {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("clear views: %w", err)
			}
		}

		for _, v := range views {
			cols, err := marshalColumns(v.Columns)
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO views
				(id, owner_context_oid, entity_kind, schema_name, columns, creator, modifier, create_datetime, mod_datetime)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, v.ID, v.OwnerContextOID, v.EntityKind, v.SchemaName, cols,
				v.Creator, v.Modifier, v.CreateDatetime, v.ModDatetime)
			if err != nil {
				return fmt.Errorf("insert view %s: %w", v.ID, err)
			}

			for pos, r := range v.Rows {
				_, err := tx.ExecContext(ctx, `
					INSERT INTO row_entities
					(oid, container_oid, position, parent_entity_oid, mapped_system_oid, name,
					 owner, creator, modifier, create_datetime, mod_datetime)
					VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
				`, r.OID, v.ID, pos, r.ParentOID, r.MappedSystemOID, r.Name,
					r.Owner, r.Creator, r.Modifier, r.CreateDatetime, r.ModDatetime)
				if err != nil {
					return fmt.Errorf("insert row %s: %w", r.OID, err)
				}
			}
		}

		for _, h := range history {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO row_history (oid, seq, snapshot) VALUES (?, ?, ?)
			`, h.OID, h.Seq, h.Snapshot)
			if err != nil {
				return fmt.Errorf("insert history %s/%d: %w", h.OID, h.Seq, err)
			}
		}
		return nil
	})
}

func writeBatch(ctx context.Context, tx *sql.Tx, b Batch) error {
	for _, row := range b.Upserts {
		if err := upsertObject(ctx, tx, row); err != nil {
			return err
		}
	}
	for _, oid := range b.Deletes {
		if _, err := tx.ExecContext(ctx, `DELETE FROM objects WHERE oid = ?`, oid); err != nil {
			return fmt.Errorf("delete object %s: %w", oid, err)
		}
	}
	for _, oid := range b.PurgeValues {
		if err := deleteValues(ctx, tx, oid); err != nil {
			return err
		}
	}
	for _, vs := range b.Values {
		if err := replaceValues(ctx, tx, vs); err != nil {
			return err
		}
	}
	return nil
}

// upsertObject inserts or replaces one object.
// Uses ON CONFLICT(oid) DO UPDATE so the row keeps its rowid.
func upsertObject(ctx context.Context, tx *sql.Tx, row ObjectRow) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO objects (oid, class_name, mod_datetime, body)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(oid) DO UPDATE SET
			class_name = excluded.class_name,
			mod_datetime = excluded.mod_datetime,
			body = excluded.body
	`, row.OID, row.ClassName, row.ModDatetime, row.Body)
	if err != nil {
		return fmt.Errorf("upsert object %s: %w", row.OID, err)
	}
	return nil
}

func deleteValues(ctx context.Context, tx *sql.Tx, oid string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM parameters WHERE oid = ?`, oid); err != nil {
		return fmt.Errorf("delete parameters %s: %w", oid, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM data_elements WHERE oid = ?`, oid); err != nil {
		return fmt.Errorf("delete data elements %s: %w", oid, err)
	}
	return nil
}

func replaceValues(ctx context.Context, tx *sql.Tx, vs ValueSet) error {
	if err := deleteValues(ctx, tx, vs.OID); err != nil {
		return err
	}
	for _, p := range vs.Parameters {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO parameters (oid, pid, value, units, mod_datetime)
			VALUES (?, ?, ?, ?, ?)
		`, vs.OID, p.PID, p.Value, p.Units, p.ModDatetime)
		if err != nil {
			return fmt.Errorf("insert parameter %s/%s: %w", vs.OID, p.PID, err)
		}
	}
	for _, d := range vs.DataElements {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO data_elements (oid, deid, value, mod_datetime)
			VALUES (?, ?, ?, ?)
		`, vs.OID, d.DEID, d.Value, d.ModDatetime)
		if err != nil {
			return fmt.Errorf("insert data element %s/%s: %w", vs.OID, d.DEID, err)
		}
	}
	return nil
}
