// Halls is the read-only directory of reservable venues.
//
// The set of halls is operator-defined: names come from configuration and are
// seeded into the database at startup. Other modules reference halls by id and
// are expected to check existence through this table.
package halls

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/commonshall/hallbook/engine"
	"github.com/commonshall/hallbook/engine/db"
	"github.com/julienschmidt/httprouter"
)

const migration = `
CREATE TABLE IF NOT EXISTS halls (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    created INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
    name TEXT NOT NULL UNIQUE
) STRICT;
`

type Hall struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Module struct {
	db *sql.DB
}

func New(d *sql.DB, names []string) *Module {
	db.MustMigrate(d, migration)
	m := &Module{db: d}

	for _, name := range names {
		result, err := d.Exec("INSERT INTO halls (name) VALUES ($1) ON CONFLICT (name) DO NOTHING", name)
		if err != nil {
			panic(err)
		}
		if n, _ := result.RowsAffected(); n > 0 {
			slog.Info("registered hall", "name", name)
		}
	}
	return m
}

func (m *Module) AttachRoutes(router *engine.Router) {
	router.Handle("GET", "/api/halls", m.handleList)
}

func (m *Module) handleList(r *http.Request, ps httprouter.Params) engine.Response {
	halls, err := m.List(r.Context())
	if err != nil {
		return engine.Error(err)
	}
	return engine.JSON(halls)
}

// List returns every hall ordered by name.
func (m *Module) List(ctx context.Context) ([]Hall, error) {
	rows, err := m.db.QueryContext(ctx, "SELECT id, name FROM halls ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	halls := []Hall{}
	for rows.Next() {
		var h Hall
		if err := rows.Scan(&h.ID, &h.Name); err != nil {
			return nil, err
		}
		halls = append(halls, h)
	}
	return halls, rows.Err()
}
