package halls

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/commonshall/hallbook/engine"
	"github.com/commonshall/hallbook/engine/db"
	"github.com/gavv/httpexpect/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeeding(t *testing.T) {
	d := db.OpenTest(t)

	New(d, []string{"Main Hall", "Annex"})
	New(d, []string{"Main Hall", "Annex"}) // idempotent

	halls, err := New(d, nil).List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Hall{{ID: 2, Name: "Annex"}, {ID: 1, Name: "Main Hall"}}, halls)
}

func TestListEndpoint(t *testing.T) {
	d := db.OpenTest(t)
	m := New(d, []string{"Main Hall"})

	router := engine.NewRouter()
	m.AttachRoutes(router)
	server := httptest.NewServer(router)
	defer server.Close()

	e := httpexpect.Default(t, server.URL)

	list := e.GET("/api/halls").
		Expect().
		Status(http.StatusOK).JSON().Array()

	list.Length().IsEqual(1)
	obj := list.Value(0).Object()
	obj.Value("id").IsEqual(1)
	obj.Value("name").IsEqual("Main Hall")
}
