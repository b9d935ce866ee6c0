package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// LoadObjects returns every persisted object ordered by oid.
// Returns an empty slice (not nil) for an empty store.
func (s *Store) LoadObjects(ctx context.Context) ([]ObjectRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT oid, class_name, mod_datetime, body
		FROM objects
		ORDER BY oid COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query objects: %w", err)
	}
	defer rows.Close()

	objects := []ObjectRow{}
	for rows.Next() {
		var o ObjectRow
		if err := rows.Scan(&o.OID, &o.ClassName, &o.ModDatetime, &o.Body); err != nil {
			return nil, fmt.Errorf("scan object: %w", err)
		}
		objects = append(objects, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate objects: %w", err)
	}
	return objects, nil
}

// LoadObject retrieves a single object by oid.
// Returns sql.ErrNoRows if not found.
func (s *Store) LoadObject(ctx context.Context, oid string) (ObjectRow, error) {
	var o ObjectRow
	err := s.db.QueryRowContext(ctx, `
		SELECT oid, class_name, mod_datetime, body
		FROM objects
		WHERE oid = ?
	`, oid).Scan(&o.OID, &o.ClassName, &o.ModDatetime, &o.Body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ObjectRow{}, err
		}
		return ObjectRow{}, fmt.Errorf("load object %s: %w", oid, err)
	}
	return o, nil
}

// CountByClass returns the number of stored objects per class name.
func (s *Store) CountByClass(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT class_name, COUNT(*) FROM objects GROUP BY class_name
	`)
	if err != nil {
		return nil, fmt.Errorf("count objects: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var name string
		var n int
		if err := rows.Scan(&name, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[name] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counts: %w", err)
	}
	return counts, nil
}

// LoadValues returns every cached value grouped by oid, ordered by oid and
// then by parameter or data element id.
func (s *Store) LoadValues(ctx context.Context) ([]ValueSet, error) {
	byOID := map[string]*ValueSet{}
	var order []string
	get := func(oid string) *ValueSet {
		vs, ok := byOID[oid]
		if !ok {
			vs = &ValueSet{OID: oid}
			byOID[oid] = vs
			order = append(order, oid)
		}
		return vs
	}

	prows, err := s.db.QueryContext(ctx, `
		SELECT oid, pid, value, units, mod_datetime
		FROM parameters
		ORDER BY oid COLLATE BINARY ASC, pid COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query parameters: %w", err)
	}
	for prows.Next() {
		var p ParameterRow
		if err := prows.Scan(&p.OID, &p.PID, &p.Value, &p.Units, &p.ModDatetime); err != nil {
			prows.Close()
			return nil, fmt.Errorf("scan parameter: %w", err)
		}
		vs := get(p.OID)
		vs.Parameters = append(vs.Parameters, p)
	}
	if err := prows.Err(); err != nil {
		prows.Close()
		return nil, fmt.Errorf("iterate parameters: %w", err)
	}
	prows.Close()

	drows, err := s.db.QueryContext(ctx, `
		SELECT oid, deid, value, mod_datetime
		FROM data_elements
		ORDER BY oid COLLATE BINARY ASC, deid COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query data elements: %w", err)
	}
	defer drows.Close()
	for drows.Next() {
		var d DataElementRow
		if err := drows.Scan(&d.OID, &d.DEID, &d.Value, &d.ModDatetime); err != nil {
			return nil, fmt.Errorf("scan data element: %w", err)
		}
		vs := get(d.OID)
		vs.DataElements = append(vs.DataElements, d)
	}
	if err := drows.Err(); err != nil {
		return nil, fmt.Errorf("iterate data elements: %w", err)
	}

	sortStrings(order)
	sets := make([]ValueSet, 0, len(order))
	for _, oid := range order {
		sets = append(sets, *byOID[oid])
	}
	return sets, nil
}

// LoadViews returns every persisted view ordered by id, each with its rows
// in position order.
func (s *Store) LoadViews(ctx context.Context) ([]ViewRow, error) {
	vrows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_context_oid, entity_kind, schema_name, columns,
		       creator, modifier, create_datetime, mod_datetime
		FROM views
		ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query views: %w", err)
	}

	views := []ViewRow{}
	index := map[string]int{}
	for vrows.Next() {
		var v ViewRow
		var cols string
		if err := vrows.Scan(&v.ID, &v.OwnerContextOID, &v.EntityKind, &v.SchemaName, &cols,
			&v.Creator, &v.Modifier, &v.CreateDatetime, &v.ModDatetime); err != nil {
			vrows.Close()
			return nil, fmt.Errorf("scan view: %w", err)
		}
		if v.Columns, err = unmarshalColumns(cols); err != nil {
			vrows.Close()
			return nil, fmt.Errorf("view %s: %w", v.ID, err)
		}
		v.Rows = []EntityRow{}
		index[v.ID] = len(views)
		views = append(views, v)
	}
	if err := vrows.Err(); err != nil {
		vrows.Close()
		return nil, fmt.Errorf("iterate views: %w", err)
	}
	vrows.Close()

	rrows, err := s.db.QueryContext(ctx, `
		SELECT oid, container_oid, parent_entity_oid, mapped_system_oid, name,
		       owner, creator, modifier, create_datetime, mod_datetime
		FROM row_entities
		ORDER BY container_oid COLLATE BINARY ASC, position ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query rows: %w", err)
	}
	defer rrows.Close()
	for rrows.Next() {
		var r EntityRow
		var container string
		if err := rrows.Scan(&r.OID, &container, &r.ParentOID, &r.MappedSystemOID, &r.Name,
			&r.Owner, &r.Creator, &r.Modifier, &r.CreateDatetime, &r.ModDatetime); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		i, ok := index[container]
		if !ok {
			continue
		}
		views[i].Rows = append(views[i].Rows, r)
	}
	if err := rrows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return views, nil
}

// LoadHistory returns every undo snapshot ordered by oid and sequence.
func (s *Store) LoadHistory(ctx context.Context) ([]HistoryRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT oid, seq, snapshot
		FROM row_history
		ORDER BY oid COLLATE BINARY ASC, seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	history := []HistoryRow{}
	for rows.Next() {
		var h HistoryRow
		if err := rows.Scan(&h.OID, &h.Seq, &h.Snapshot); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		history = append(history, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return history, nil
}
