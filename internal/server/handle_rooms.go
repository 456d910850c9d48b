package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/D-Sharma-melb/EscapeRoom/internal/escaperoom"
)

func handleListRooms(rooms escaperoom.RoomStore, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := rooms.ListRooms(r.Context())
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}

		me := userFrom(r).ID
		resp := make([]RoomResponse, 0, len(list))
		for _, room := range list {
			resp = append(resp, toRoomResponse(room, room.CreatedBy == me))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleGetRoom(rooms escaperoom.RoomStore, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		room, err := rooms.Room(r.Context(), chi.URLParam(r, "roomID"))
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toRoomResponse(room, room.CreatedBy == userFrom(r).ID))
	}
}

func handleCreateRoom(rooms escaperoom.RoomStore, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RoomRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		room := escaperoom.Room{
			Name:         req.Name,
			Description:  req.Description,
			Theme:        req.Theme,
			TimerSeconds: req.TimerSeconds,
			CreatedBy:    userFrom(r).ID,
		}
		for _, o := range req.Objects {
			room.Objects = append(room.Objects, o.toObject(""))
		}
		room.Normalize()
		if err := room.Validate(); err != nil {
			writeDomainError(w, logger, err)
			return
		}

		created, err := rooms.CreateRoom(r.Context(), room)
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}

		logger.Info("room created", "room_id", created.ID, "objects", len(created.Objects))
		writeJSON(w, http.StatusCreated, toRoomResponse(created, true))
	}
}

func handleUpdateRoom(rooms escaperoom.RoomStore, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RoomRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		room := roomFrom(r)
		room.Name = req.Name
		room.Description = req.Description
		room.Theme = req.Theme
		room.TimerSeconds = req.TimerSeconds
		room.Normalize()
		if err := room.Validate(); err != nil {
			writeDomainError(w, logger, err)
			return
		}

		updated, err := rooms.UpdateRoom(r.Context(), room)
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toRoomResponse(updated, true))
	}
}

func handleDeleteRoom(rooms escaperoom.RoomStore, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		room := roomFrom(r)
		if err := rooms.DeleteRoom(r.Context(), room.ID); err != nil {
			writeDomainError(w, logger, err)
			return
		}
		logger.Info("room deleted", "room_id", room.ID)
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleListObjects(rooms escaperoom.RoomStore, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		room, err := rooms.Room(r.Context(), chi.URLParam(r, "roomID"))
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}
		owner := room.CreatedBy == userFrom(r).ID
		resp := make([]ObjectResponse, 0, len(room.Objects))
		for _, o := range room.Objects {
			resp = append(resp, toObjectResponse(o, owner))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleCreateObject(rooms escaperoom.RoomStore, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ObjectRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		obj := req.toObject(roomFrom(r).ID)
		obj.Normalize()
		if err := obj.Validate(); err != nil {
			writeDomainError(w, logger, err)
			return
		}

		created, err := rooms.CreateObject(r.Context(), obj)
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, toObjectResponse(created, true))
	}
}

func handleUpdateObject(rooms escaperoom.RoomStore, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ObjectRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		obj := req.toObject(roomFrom(r).ID)
		obj.ID = chi.URLParam(r, "objectID")
		obj.Normalize()
		if err := obj.Validate(); err != nil {
			writeDomainError(w, logger, err)
			return
		}

		updated, err := rooms.UpdateObject(r.Context(), obj)
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toObjectResponse(updated, true))
	}
}

func handleDeleteObject(rooms escaperoom.RoomStore, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := rooms.DeleteObject(r.Context(), roomFrom(r).ID, chi.URLParam(r, "objectID")); err != nil {
			writeDomainError(w, logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleDeleteObjects(rooms escaperoom.RoomStore, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := rooms.DeleteObjects(r.Context(), roomFrom(r).ID); err != nil {
			writeDomainError(w, logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
