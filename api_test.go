/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"testing"

	"github.com/Seednode/kamikaze/games/kamikaze"
)

func (s *testServer) do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}

	req, err := http.NewRequest(method, s.URL+path, &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding %s %s: %v", method, path, err)
		}
	}

	return resp.StatusCode
}

func TestRosterAPI(t *testing.T) {
	srv := newTestServer(t, "")
	const roster = "/kamikaze/api/roster"

	var players []kamikaze.Player
	if code := srv.do(t, http.MethodGet, roster, nil, &players); code != http.StatusOK || len(players) != 0 {
		t.Fatalf("empty roster: %d %+v", code, players)
	}

	var ana kamikaze.Player
	if code := srv.do(t, http.MethodPost, roster+"/players", map[string]string{"name": " Ana "}, &ana); code != http.StatusCreated {
		t.Fatalf("add Ana: %d", code)
	}
	if ana.Name != "Ana" || ana.ID == "" {
		t.Errorf("unexpected player: %+v", ana)
	}

	tests := []struct {
		name string
		body any
		code int
	}{
		{"duplicate", map[string]string{"name": "ANA"}, http.StatusConflict},
		{"too short", map[string]string{"name": "A"}, http.StatusBadRequest},
		{"malformed", "{", http.StatusBadRequest},
		{"valid", map[string]string{"name": "Bruno"}, http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code := srv.do(t, http.MethodPost, roster+"/players", tt.body, nil); code != tt.code {
				t.Errorf("status = %d, want %d", code, tt.code)
			}
		})
	}

	srv.do(t, http.MethodGet, roster, nil, &players)
	if len(players) != 2 {
		t.Fatalf("expected 2 players, got %+v", players)
	}

	if code := srv.do(t, http.MethodDelete, roster+"/players/"+ana.ID, nil, nil); code != http.StatusNoContent {
		t.Errorf("remove: %d", code)
	}
	if code := srv.do(t, http.MethodDelete, roster+"/players/"+ana.ID, nil, nil); code != http.StatusNotFound {
		t.Errorf("remove twice: %d", code)
	}

	var replaced []kamikaze.Player
	code := srv.do(t, http.MethodPut, roster, []kamikaze.Player{{ID: "keep", Name: "Carla"}, {Name: "Dani"}}, &replaced)
	if code != http.StatusOK || len(replaced) != 2 {
		t.Fatalf("replace: %d %+v", code, replaced)
	}
	if replaced[0].ID != "keep" || replaced[1].ID == "" {
		t.Errorf("ids not kept or assigned: %+v", replaced)
	}

	if code := srv.do(t, http.MethodPut, roster, []kamikaze.Player{{Name: "Eve"}, {Name: "eve"}}, nil); code != http.StatusConflict {
		t.Errorf("replace with duplicates: %d", code)
	}

	if code := srv.do(t, http.MethodDelete, roster, nil, nil); code != http.StatusNoContent {
		t.Errorf("clear: %d", code)
	}
	srv.do(t, http.MethodGet, roster, nil, &players)
	if len(players) != 0 {
		t.Errorf("roster not cleared: %+v", players)
	}
}

func TestSettingsAPI(t *testing.T) {
	srv := newTestServer(t, "")
	const path = "/kamikaze/api/settings"

	var got SettingsResponse
	if code := srv.do(t, http.MethodGet, path, nil, &got); code != http.StatusOK {
		t.Fatalf("get: %d", code)
	}
	if *got.Settings != kamikaze.DefaultSettings() || *got.Categories != kamikaze.AllCategories() {
		t.Fatalf("unexpected defaults: %+v %+v", got.Settings, got.Categories)
	}

	// Only categories; settings must stay as they were.
	got = SettingsResponse{}
	srv.do(t, http.MethodPut, path, `{"categories":{"regular":true,"epic":false,"multiplayer":false}}`, &got)
	if *got.Settings != kamikaze.DefaultSettings() {
		t.Errorf("settings changed: %+v", got.Settings)
	}
	if *got.Categories != (kamikaze.Categories{Regular: true}) {
		t.Errorf("categories not saved: %+v", got.Categories)
	}

	// A partial settings object keeps the other fields.
	got = SettingsResponse{}
	srv.do(t, http.MethodPut, path, `{"settings":{"gameLength":"quick","turnOrder":"sideways"}}`, &got)
	want := kamikaze.DefaultSettings()
	want.GameLength = kamikaze.LengthQuick
	if *got.Settings != want {
		t.Errorf("settings = %+v, want %+v", got.Settings, want)
	}

	if code := srv.do(t, http.MethodPut, path, "nope", nil); code != http.StatusBadRequest {
		t.Errorf("malformed body: %d", code)
	}

	got = SettingsResponse{}
	srv.do(t, http.MethodDelete, path, nil, &got)
	if *got.Settings != kamikaze.DefaultSettings() || *got.Categories != kamikaze.AllCategories() {
		t.Errorf("reset returned %+v %+v", got.Settings, got.Categories)
	}

	got = SettingsResponse{}
	srv.do(t, http.MethodGet, path, nil, &got)
	if *got.Settings != kamikaze.DefaultSettings() {
		t.Errorf("reset not persisted: %+v", got.Settings)
	}
}

func TestLedgerAPI(t *testing.T) {
	srv := newTestServer(t, "")

	// Pick up a device cookie first so the ledger lands in a known namespace.
	srv.get(t, "/kamikaze")

	var device string
	for _, c := range srv.client.Jar.Cookies(mustParse(t, srv.URL)) {
		if c.Name == deviceCookieName {
			device = c.Value
		}
	}

	ledger := kamikaze.NewStoreLedger(srv.tables.store(device))
	ctx := t.Context()
	_ = ledger.MarkUsed(ctx, 3)
	_ = ledger.MarkUsed(ctx, 4)

	if code := srv.do(t, http.MethodDelete, "/kamikaze/api/ledger", nil, nil); code != http.StatusNoContent {
		t.Fatalf("delete: %d", code)
	}
	if used := ledger.Load(ctx); len(used) != 0 {
		t.Errorf("ledger not cleared: %v", used)
	}
}

func TestDevicesAreIsolated(t *testing.T) {
	srv := newTestServer(t, "")

	srv.do(t, http.MethodPost, "/kamikaze/api/roster/players", map[string]string{"name": "Ana"}, nil)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	other := *srv
	other.client = &http.Client{Jar: jar}

	var players []kamikaze.Player
	other.do(t, http.MethodGet, "/kamikaze/api/roster", nil, &players)
	if len(players) != 0 {
		t.Errorf("second device sees first device's roster: %+v", players)
	}

	srv.do(t, http.MethodGet, "/kamikaze/api/roster", nil, &players)
	if len(players) != 1 {
		t.Errorf("first device lost its roster: %+v", players)
	}
}

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}

	return u
}
