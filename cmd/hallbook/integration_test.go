package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commonshall/hallbook/engine"
	"github.com/commonshall/hallbook/engine/db"
)

func TestBookingIntegration(t *testing.T) {
	baseURL := startTestApp(t)

	// Seeded halls are visible
	resp, err := http.Get(baseURL + "/api/halls")
	require.NoError(t, err)
	var hallList []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&hallList))
	resp.Body.Close()
	require.Len(t, hallList, 2)

	// Create a booking
	body, _ := json.Marshal(map[string]any{
		"hall_id":     1,
		"date":        "2025-03-01",
		"start_time":  "09:00",
		"end_time":    "10:00",
		"requester":   "Dale Cooper",
		"edit_secret": "owls",
	})
	resp, err = http.Post(baseURL+"/api/bookings", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	require.Equal(t, 201, resp.StatusCode)

	var created struct {
		Booking struct {
			ID string `json:"id"`
		} `json:"booking"`
		ManageToken string `json:"manage_token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()
	require.NotEmpty(t, created.Booking.ID)
	require.NotEmpty(t, created.ManageToken)

	// An overlapping request is refused
	resp, err = http.Post(baseURL+"/api/bookings", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 409, resp.StatusCode)

	// The secret gate holds without a credential
	req, _ := http.NewRequest("DELETE", baseURL+"/api/bookings/"+created.Booking.ID, nil)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 403, resp.StatusCode)

	// The manage token from creation unlocks deletion
	body, _ = json.Marshal(map[string]any{"token": created.ManageToken})
	req, _ = http.NewRequest("DELETE", baseURL+"/api/bookings/"+created.Booking.ID, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)

	resp, err = http.Get(baseURL + "/api/bookings/" + created.Booking.ID)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 404, resp.StatusCode)
}

func startTestApp(t *testing.T) string {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := lis.Addr().String()
	lis.Close()

	database := db.OpenTest(t)
	self, err := url.Parse("http://" + addr)
	require.NoError(t, err)

	issuer := engine.NewTokenIssuer(filepath.Join(t.TempDir(), "manage.pem"))
	app := newApp(database, addr, self, []string{"Main Hall", "Annex"}, 0, issuer)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	t.Cleanup(func() {
		cancel()
		<-done
	})
	go func() {
		defer close(done)
		app.Run(ctx)
	}()

	// Wait for the listener to come up
	baseURL := fmt.Sprintf("http://%s", addr)
	require.Eventually(t, func() bool {
		resp, err := http.Get(baseURL + "/api/halls")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == 200
	}, 5*time.Second, 20*time.Millisecond)

	return baseURL
}
