// Hallbook is the reservation server for shared halls.
// It handles booking requests from the network and stores persistent state in sqlite.
package main

import (
	"context"
	"database/sql"
	"net/url"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/commonshall/hallbook/engine"
	"github.com/commonshall/hallbook/engine/db"
	"github.com/commonshall/hallbook/modules/booking"
	"github.com/commonshall/hallbook/modules/halls"
)

type Config struct {
	HttpAddr string `envDefault:":8080"`
	Dir      string `envDefault:"."`

	// SelfURL is the externally reachable base URL, used in manage links.
	SelfURL string `envDefault:"http://localhost:8080"`

	// Halls seeds the hall directory by name.
	Halls []string `envSeparator:"," envDefault:"Main Hall"`

	// WriteRPS caps the rate of write requests. Zero disables the limiter.
	WriteRPS int `envDefault:"10"`
}

func main() {
	godotenv.Load()

	conf, err := env.ParseAsWithOptions[Config](env.Options{Prefix: "HALLBOOK_", UseFieldNameByDefault: true})
	if err != nil {
		panic(err)
	}

	self, err := url.Parse(conf.SelfURL)
	if err != nil {
		panic(err)
	}

	database, err := db.Open(filepath.Join(conf.Dir, "hallbook.sqlite3"))
	if err != nil {
		panic(err)
	}

	issuer := engine.NewTokenIssuer(filepath.Join(conf.Dir, "manage.pem"))
	app := newApp(database, conf.HttpAddr, self, conf.Halls, conf.WriteRPS, issuer)
	app.Run(context.TODO())
}

func newApp(database *sql.DB, addr string, self *url.URL, hallNames []string, writeRPS int, issuer *engine.TokenIssuer) *engine.App {
	router := engine.NewRouter()
	router.SetWriteLimit(writeRPS)

	app := engine.NewApp(addr, router)
	app.Add(halls.New(database, hallNames))
	app.Add(booking.New(database, issuer, self))
	return app
}
