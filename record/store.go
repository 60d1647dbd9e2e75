// Copyright (c) 2020 Siemens AG
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
// the Software, and to permit persons to whom the Software is furnished to do so,
// subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
// FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
// COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
// IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
// CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
//
// Author(s): Jonas Plum

// Package record keeps a forensicstore of the processes a wiskess run
// started. Every executed task is stored as a process element with its
// command line, return code and errors, so a case can be audited later.
package record

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"crawshaw.io/sqlite"
	"github.com/fatih/structs"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/forensicanalysis/wiskess/logger"
)

const storeVersion = 1
const wiskessApplicationID = 2003399531
const discriminator = "type"

// FileName is the name of the store in the output folder.
const FileName = "wiskess.forensicstore"

var ErrStoreExists = fmt.Errorf("store already exists")
var ErrStoreNotExists = fmt.Errorf("store does not exist")

// JSONElement is a single entry in the store.
type JSONElement []byte

// Store is a sqlite database of JSON elements. It must not be used from
// more than one goroutine at a time.
type Store struct {
	cursor *sqlite.Conn
	types  *typeMap
}

// New creates a new store.
func New(url string) (*Store, error) {
	return open(url, true)
}

// Open opens an existing store.
func Open(url string) (*Store, error) {
	return open(url, false)
}

// OpenOrCreate opens the store at url and creates it if needed.
func OpenOrCreate(url string) (*Store, error) {
	if _, err := os.Stat(url); os.IsNotExist(err) {
		return New(url)
	}
	return Open(url)
}

func pragma(conn *sqlite.Conn, name string) (int64, error) {
	stmt, err := conn.Prepare("PRAGMA " + name)
	if err != nil {
		return 0, err
	}
	if _, err = stmt.Step(); err != nil {
		return 0, err
	}
	i := stmt.GetInt64(name)
	return i, stmt.Finalize()
}

func setPragma(conn *sqlite.Conn, name string, i int64) error {
	stmt, err := conn.Prepare("PRAGMA " + name + " = " + fmt.Sprint(i))
	if err != nil {
		return err
	}
	if _, err = stmt.Step(); err != nil {
		return err
	}
	return stmt.Finalize()
}

func open(url string, create bool) (*Store, error) { // nolint:gocyclo
	if url != ":memory:" {
		exists := true
		if _, err := os.Stat(url); err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
			exists = false
		}

		if create && exists {
			return nil, ErrStoreExists
		}
		if !create && !exists {
			return nil, ErrStoreNotExists
		}

		if create {
			if err := os.MkdirAll(filepath.Dir(url), 0750); err != nil {
				return nil, err
			}
			logger.L().Debug("Creating store " + url)
		}
	}

	store := &Store{types: newTypeMap()}

	var err error
	store.cursor, err = sqlite.OpenConn(url, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open store %s", url)
	}

	if create {
		if err = setPragma(store.cursor, "application_id", wiskessApplicationID); err != nil {
			return nil, store.closeWith(err)
		}
		if err = setPragma(store.cursor, "user_version", storeVersion); err != nil {
			return nil, store.closeWith(err)
		}
		err = store.exec("CREATE VIRTUAL TABLE `elements` " +
			"USING fts5(id UNINDEXED, json, insert_time UNINDEXED, tokenize=\"unicode61 tokenchars '/.-'\")")
		if err != nil {
			return nil, store.closeWith(err)
		}
		return store, nil
	}

	applicationID, err := pragma(store.cursor, "application_id")
	if err != nil {
		return nil, store.closeWith(err)
	}
	if applicationID != wiskessApplicationID {
		msg := "wrong file format (application_id is %d, requires %d)"
		return nil, store.closeWith(fmt.Errorf(msg, applicationID, wiskessApplicationID))
	}

	version, err := pragma(store.cursor, "user_version")
	if err != nil {
		return nil, store.closeWith(err)
	}
	if version != storeVersion {
		msg := "wrong file format (user_version is %d, requires %d)"
		return nil, store.closeWith(fmt.Errorf(msg, version, storeVersion))
	}
	return store, nil
}

func (store *Store) closeWith(err error) error {
	store.cursor.Close() // nolint:errcheck
	return err
}

/* ################################
#   API
################################ */

// Insert adds a single element. Elements without id get one.
func (store *Store) Insert(element JSONElement) (string, error) {
	elementType := gjson.GetBytes(element, discriminator)
	if !elementType.Exists() || elementType.String() == "" {
		return "", errors.New("element requires type")
	}

	fields := map[string]interface{}{}
	if err := json.Unmarshal(element, &fields); err != nil {
		return "", errors.Wrap(err, "element is not a JSON object")
	}

	id := gjson.GetBytes(element, "id").String()
	if id == "" {
		id = elementType.String() + "--" + uuid.New().String()
		fields["id"] = id

		var err error
		element, err = json.Marshal(fields)
		if err != nil {
			return "", err
		}
	}

	store.types.addAll(elementType.String(), fields)

	query := "INSERT INTO `elements` (id, json, insert_time) VALUES ($id, $json, $time)"
	stmt, err := store.cursor.Prepare(query)
	if err != nil {
		return "", errors.Wrap(err, fmt.Sprintf("could not prepare statement %s", query))
	}
	defer stmt.Reset() // nolint:errcheck
	stmt.SetText("$id", id)
	stmt.SetText("$json", string(element))
	stmt.SetText("$time", time.Now().UTC().Format("2006-01-02T15:04:05.000Z"))
	if _, err = stmt.Step(); err != nil {
		return "", errors.Wrap(err, fmt.Sprint("could not exec statement ", query))
	}

	return id, nil
}

// InsertStruct converts a Go struct to a map with snake case keys and
// inserts it.
func (store *Store) InsertStruct(element interface{}) (string, error) {
	m := lower(structs.Map(element)).(map[string]interface{})
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return store.Insert(b)
}

// Get retrieves a single element.
func (store *Store) Get(id string) (JSONElement, error) {
	stmt, err := store.cursor.Prepare("SELECT json FROM `elements` WHERE id=$id")
	if err != nil {
		return nil, err
	}
	stmt.SetText("$id", id)

	elements, err := store.rowsToElements(stmt)
	if err != nil {
		return nil, err
	}
	if len(elements) > 0 {
		return elements[0], nil
	}
	return nil, errors.Errorf("element %s does not exist", id)
}

// Select returns the elements matching any of the conditions. A condition
// matches if every field matches its LIKE pattern.
func (store *Store) Select(conditions []map[string]string) ([]JSONElement, error) {
	var ors []string
	params := map[string]string{}
	for _, condition := range conditions {
		keys := make([]string, 0, len(condition))
		for key := range condition {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		var ands []string
		for _, key := range keys {
			param := fmt.Sprintf("$p%d", len(params))
			params[param] = condition[key]
			ands = append(ands, fmt.Sprintf("json_extract(json, '$.%s') LIKE %s", fieldName(key), param))
		}
		if len(ands) > 0 {
			ors = append(ors, "("+strings.Join(ands, " AND ")+")")
		}
	}

	query := "SELECT json FROM `elements`"
	if len(ors) > 0 {
		query += " WHERE " + strings.Join(ors, " OR ")
	}

	stmt, err := store.cursor.Prepare(query) // #nosec
	if err != nil {
		return nil, err
	}
	for param, value := range params {
		stmt.SetText(param, value)
	}
	return store.rowsToElements(stmt)
}

// Search returns elements matching a full text query.
func (store *Store) Search(q string) ([]JSONElement, error) {
	stmt, err := store.cursor.Prepare("SELECT json FROM `elements` WHERE elements = $query")
	if err != nil {
		return nil, err
	}
	stmt.SetText("$query", q)
	return store.rowsToElements(stmt)
}

// All returns every element.
func (store *Store) All() ([]JSONElement, error) {
	return store.Select(nil)
}

// Close creates a view per element type and closes the store.
func (store *Store) Close() error {
	if store.types.changed {
		if err := store.createViews(); err != nil {
			logger.L().Warn("could not create views: " + err.Error())
		}
	}
	return store.cursor.Close()
}

func (store *Store) createViews() error {
	for typeName, fields := range store.types.all() {
		if err := store.exec(fmt.Sprintf("DROP VIEW IF EXISTS '%s'", fieldName(typeName))); err != nil {
			return err
		}
		var columns []string
		for field := range fields {
			columns = append(columns, fmt.Sprintf("json_extract(json, '$.%s') as '%s'", fieldName(field), fieldName(field)))
		}
		sort.Strings(columns)
		err := store.exec(
			fmt.Sprintf("CREATE VIEW '%s' AS SELECT %s FROM elements WHERE json_extract(json, '$.%s') = '%s'",
				fieldName(typeName), strings.Join(columns, ", "), discriminator, fieldName(typeName)),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (store *Store) rowsToElements(stmt *sqlite.Stmt) (elements []JSONElement, err error) {
	defer stmt.Reset() // nolint:errcheck
	elements = []JSONElement{}
	for {
		if hasRow, err := stmt.Step(); err != nil {
			return nil, err
		} else if !hasRow {
			break
		}
		elements = append(elements, JSONElement(stmt.GetText("json")))
	}
	return elements, nil
}

func (store *Store) exec(query string) error {
	stmt, _, err := store.cursor.PrepareTransient(query)
	if err != nil {
		return errors.Wrap(err, fmt.Sprintf("could not prepare statement %s", query))
	}
	defer stmt.Finalize() // nolint:errcheck
	if _, err := stmt.Step(); err != nil {
		return errors.Wrap(err, fmt.Sprintf("could not exec statement %s", query))
	}
	return nil
}

// fieldName strips quotes from names used in generated SQL.
func fieldName(name string) string {
	return strings.NewReplacer("'", "", "\"", "", "`", "").Replace(name)
}
