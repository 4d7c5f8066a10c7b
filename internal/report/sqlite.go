package report

import (
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/kvesta/nessa/pkg/nessus"

	_ "github.com/mattn/go-sqlite3"
	"k8s.io/apimachinery/pkg/util/json"
)

const findingsTable = `CREATE TABLE IF NOT EXISTS findings (
	"ID" INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
	"Hash" TEXT UNIQUE,
	"Host" TEXT,
	"Port" INTEGER,
	"Protocol" TEXT,
	"PluginID" INTEGER,
	"PluginName" TEXT,
	"Severity" INTEGER,
	"Score" REAL,
	"CVEID" TEXT,
	"Record" TEXT);`

const insertFinding = `INSERT INTO findings
	("Hash", "Host", "Port", "Protocol", "PluginID", "PluginName", "Severity", "Score", "CVEID", "Record")
	VALUES
	(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// SQLiteExporter stores the findings in a sqlite database inside a single
// transaction. The same finding reported twice for a host is kept once.
type SQLiteExporter struct {
	DB *sql.DB

	tx   *sql.Tx
	stmt *sql.Stmt

	path string
	// created is set when the database file did not exist before the export.
	created bool
}

func NewSQLiteExporter(path string) (*SQLiteExporter, error) {
	e := &SQLiteExporter{path: path, created: !exists(path)}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	e.DB = db

	if _, err = db.Exec(findingsTable); err != nil {
		e.discard()
		return nil, err
	}

	e.tx, err = db.Begin()
	if err != nil {
		e.discard()
		return nil, err
	}

	e.stmt, err = e.tx.Prepare(insertFinding)
	if err != nil {
		e.tx.Rollback()
		e.discard()
		return nil, err
	}

	return e, nil
}

// discard closes the database and removes the file if the export made it.
func (e *SQLiteExporter) discard() error {
	err := e.DB.Close()
	if e.created {
		if rerr := os.Remove(e.path); rerr != nil && !os.IsNotExist(rerr) && err == nil {
			err = rerr
		}
	}
	return err
}

func findingHash(r Row) string {
	hash := md5.Sum([]byte(fmt.Sprintf("%s|%d|%s|%d", r.Host, r.Port, r.Protocol, r.PluginID)))
	return hex.EncodeToString(hash[:])
}

func (e *SQLiteExporter) Write(rec nessus.Record) error {
	r := NewRow(rec)

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	_, err = e.stmt.Exec(findingHash(r), r.Host, r.Port, r.Protocol,
		r.PluginID, r.Name, r.Severity, r.Score,
		strings.Join(r.CVEs, ","), string(data))

	if err != nil {
		if strings.Contains(err.Error(), "findings.Hash") {
			return nil
		}
		return err
	}

	return nil
}

// Close commits the export and closes the database.
func (e *SQLiteExporter) Close() error {
	e.stmt.Close()

	err := e.tx.Commit()
	if cerr := e.DB.Close(); err == nil {
		err = cerr
	}
	return err
}

// Abort rolls back every finding written by this export. A database file
// created by the export is removed.
func (e *SQLiteExporter) Abort() error {
	e.stmt.Close()

	err := e.tx.Rollback()
	if derr := e.discard(); err == nil {
		err = derr
	}
	return err
}

// FindingsByCVE returns the stored findings mentioning the given CVE id.
func FindingsByCVE(path, cveid string) ([]Row, error) {

	dbRows := []Row{}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return dbRows, err
	}
	defer db.Close()

	sqlRow := `SELECT "Host", "Port", "Protocol", "PluginID", "PluginName", "Severity", "Score", "CVEID"
		FROM findings WHERE "CVEID" LIKE ? ORDER BY "ID"`
	rows, err := db.Query(sqlRow, "%"+cveid+"%")

	if err != nil {
		return dbRows, err
	}

	defer rows.Close()

	for rows.Next() {
		r := Row{}
		var cves string
		err = rows.Scan(&r.Host, &r.Port, &r.Protocol,
			&r.PluginID, &r.Name, &r.Severity,
			&r.Score, &cves)

		if err != nil {
			return dbRows, err
		}

		matched := false
		for _, c := range strings.Split(cves, ",") {
			if c == "" {
				continue
			}
			r.CVEs = append(r.CVEs, c)
			matched = matched || c == cveid
		}

		if matched {
			dbRows = append(dbRows, r)
		}
	}

	if err = rows.Err(); err != nil {
		return dbRows, err
	}

	return dbRows, nil
}
