/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Seednode/kamikaze/games/kamikaze"
	"github.com/julienschmidt/httprouter"
)

const maxBodyBytes = 64 << 10

// SettingsResponse is both the body of GET/DELETE and the accepted PUT body.
// Omitted halves of a PUT are left alone.
type SettingsResponse struct {
	Settings   *kamikaze.Settings   `json:"settings,omitempty"`
	Categories *kamikaze.Categories `json:"categories,omitempty"`
}

type addPlayerRequest struct {
	Name string `json:"name"`
}

type apiError struct {
	Error string `json:"error"`
}

func writeJSON(cfg *Config, w http.ResponseWriter, status int, v any, errs chan<- error) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	securityHeaders(cfg, w)
	w.WriteHeader(status)

	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		errs <- err
	}
}

func writeAPIError(cfg *Config, w http.ResponseWriter, err error, errs chan<- error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, kamikaze.ErrDuplicateName):
		status = http.StatusConflict
	case errors.Is(err, kamikaze.ErrInvalidName), errors.Is(err, kamikaze.ErrNotEnoughPlayers):
		status = http.StatusBadRequest
	case errors.Is(err, kamikaze.ErrUnknownPlayer):
		status = http.StatusNotFound
	}

	if status == http.StatusInternalServerError {
		errs <- err
		writeJSON(cfg, w, status, apiError{Error: "internal error"}, errs)

		return
	}

	writeJSON(cfg, w, status, apiError{Error: err.Error()}, errs)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return err
	}
	return nil
}

func apiContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), timeout)
}

func serveRoster(cfg *Config, tm *TableManager, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		ctx, cancel := apiContext(r)
		defer cancel()

		store := tm.store(getOrSetDeviceID(w, r))

		players := kamikaze.LoadRoster(ctx, store)
		if players == nil {
			players = []kamikaze.Player{}
		}

		writeJSON(cfg, w, http.StatusOK, players, errs)
	}
}

// replaceRoster swaps in a whole roster. Players without an ID get one;
// names go through the same checks as adding them one at a time.
func replaceRoster(cfg *Config, tm *TableManager, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		ctx, cancel := apiContext(r)
		defer cancel()

		device := getOrSetDeviceID(w, r)

		var in []kamikaze.Player
		if err := decodeBody(w, r, &in); err != nil {
			writeJSON(cfg, w, http.StatusBadRequest, apiError{Error: "roster must be a JSON array of players"}, errs)

			return
		}

		players := make([]kamikaze.Player, 0, len(in))
		for _, p := range in {
			np, err := kamikaze.NewPlayer(p.Name, players)
			if err != nil {
				writeAPIError(cfg, w, err, errs)

				return
			}
			if p.ID != "" {
				np.ID = p.ID
			}
			players = append(players, np)
		}

		if err := kamikaze.SaveRoster(ctx, tm.store(device), players); err != nil {
			writeAPIError(cfg, w, err, errs)

			return
		}

		logf(cfg, "SERVE: Saved %d players for %s in %s",
			len(players),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)

		writeJSON(cfg, w, http.StatusOK, players, errs)
	}
}

func clearRoster(cfg *Config, tm *TableManager, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		ctx, cancel := apiContext(r)
		defer cancel()

		if err := kamikaze.ClearRoster(ctx, tm.store(getOrSetDeviceID(w, r))); err != nil {
			writeAPIError(cfg, w, err, errs)

			return
		}

		writeJSON(cfg, w, http.StatusNoContent, nil, errs)
	}
}

func addPlayer(cfg *Config, tm *TableManager, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		ctx, cancel := apiContext(r)
		defer cancel()

		var req addPlayerRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeJSON(cfg, w, http.StatusBadRequest, apiError{Error: "expected {\"name\": ...}"}, errs)

			return
		}

		p, err := kamikaze.AddPlayer(ctx, tm.store(getOrSetDeviceID(w, r)), req.Name)
		if err != nil {
			writeAPIError(cfg, w, err, errs)

			return
		}

		writeJSON(cfg, w, http.StatusCreated, p, errs)
	}
}

func removePlayer(cfg *Config, tm *TableManager, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		ctx, cancel := apiContext(r)
		defer cancel()

		if err := kamikaze.RemovePlayer(ctx, tm.store(getOrSetDeviceID(w, r)), ps.ByName("id")); err != nil {
			writeAPIError(cfg, w, err, errs)

			return
		}

		writeJSON(cfg, w, http.StatusNoContent, nil, errs)
	}
}

func serveSettings(cfg *Config, tm *TableManager, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		ctx, cancel := apiContext(r)
		defer cancel()

		store := tm.store(getOrSetDeviceID(w, r))

		settings := kamikaze.LoadSettings(ctx, store)
		categories := kamikaze.LoadCategories(ctx, store)

		writeJSON(cfg, w, http.StatusOK, SettingsResponse{Settings: &settings, Categories: &categories}, errs)
	}
}

func saveSettings(cfg *Config, tm *TableManager, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		ctx, cancel := apiContext(r)
		defer cancel()

		store := tm.store(getOrSetDeviceID(w, r))

		// Start from what is saved so a partial body keeps the rest.
		settings := kamikaze.LoadSettings(ctx, store)
		categories := kamikaze.LoadCategories(ctx, store)
		req := SettingsResponse{Settings: &settings, Categories: &categories}

		if err := decodeBody(w, r, &req); err != nil {
			writeJSON(cfg, w, http.StatusBadRequest, apiError{Error: "malformed settings"}, errs)

			return
		}

		if req.Settings != nil {
			if err := kamikaze.SaveSettings(ctx, store, *req.Settings); err != nil {
				writeAPIError(cfg, w, err, errs)

				return
			}
		}
		if req.Categories != nil {
			if err := kamikaze.SaveCategories(ctx, store, *req.Categories); err != nil {
				writeAPIError(cfg, w, err, errs)

				return
			}
		}

		settings = kamikaze.LoadSettings(ctx, store)
		categories = kamikaze.LoadCategories(ctx, store)

		writeJSON(cfg, w, http.StatusOK, SettingsResponse{Settings: &settings, Categories: &categories}, errs)
	}
}

func resetSettings(cfg *Config, tm *TableManager, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		ctx, cancel := apiContext(r)
		defer cancel()

		if err := kamikaze.ResetSettings(ctx, tm.store(getOrSetDeviceID(w, r))); err != nil {
			writeAPIError(cfg, w, err, errs)

			return
		}

		settings := kamikaze.DefaultSettings()
		categories := kamikaze.AllCategories()

		writeJSON(cfg, w, http.StatusOK, SettingsResponse{Settings: &settings, Categories: &categories}, errs)
	}
}

func resetLedger(cfg *Config, tm *TableManager, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		ctx, cancel := apiContext(r)
		defer cancel()

		device := getOrSetDeviceID(w, r)

		if err := kamikaze.NewStoreLedger(tm.store(device)).Clear(ctx); err != nil {
			writeAPIError(cfg, w, err, errs)

			return
		}

		logf(cfg, "GAMES: Cleared used challenges for %s", device)

		writeJSON(cfg, w, http.StatusNoContent, nil, errs)
	}
}

func registerKamikazeAPI(cfg *Config, base string, mux *httprouter.Router, tm *TableManager, errs chan<- error) {
	mux.GET(base+"/roster", serveRoster(cfg, tm, errs))
	mux.PUT(base+"/roster", replaceRoster(cfg, tm, errs))
	mux.DELETE(base+"/roster", clearRoster(cfg, tm, errs))
	mux.POST(base+"/roster/players", addPlayer(cfg, tm, errs))
	mux.DELETE(base+"/roster/players/:id", removePlayer(cfg, tm, errs))

	mux.GET(base+"/settings", serveSettings(cfg, tm, errs))
	mux.PUT(base+"/settings", saveSettings(cfg, tm, errs))
	mux.DELETE(base+"/settings", resetSettings(cfg, tm, errs))

	mux.DELETE(base+"/ledger", resetLedger(cfg, tm, errs))
}
