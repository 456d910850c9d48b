package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"

	"github.com/D-Sharma-melb/EscapeRoom/internal/handler/health"
)

type operation struct {
	method, path, summary, description string
	req                                any
	resp                               any
	status                             int
	errors                             []int
	contentType                        string
}

var operations = []operation{
	{
		method: http.MethodGet, path: "/healthz",
		summary:     "Health check",
		description: "Reports the reachability of SQLite and, when configured, Redis. Answers 503 with the same body when a check fails.",
		resp:        health.Response{}, status: http.StatusOK,
	},
	{
		method: http.MethodPost, path: "/api/users",
		summary:     "Sign up",
		description: "Creates a BUILDER or PLAYER account.",
		req:         SignupRequest{}, resp: UserResponse{}, status: http.StatusCreated,
		errors: []int{http.StatusBadRequest, http.StatusConflict},
	},
	{
		method: http.MethodPost, path: "/api/users/login",
		summary:     "Log in",
		description: "Exchanges credentials for a bearer token.",
		req:         LoginRequest{}, resp: LoginResponse{}, status: http.StatusOK,
		errors: []int{http.StatusBadRequest, http.StatusUnauthorized},
	},
	{
		method: http.MethodGet, path: "/api/users/me",
		summary: "Current user",
		resp:    UserResponse{}, status: http.StatusOK,
		errors: []int{http.StatusUnauthorized},
	},
	{
		method: http.MethodGet, path: "/api/users",
		summary: "List users",
		resp:    []UserResponse{}, status: http.StatusOK,
		errors: []int{http.StatusUnauthorized},
	},
	{
		method: http.MethodGet, path: "/api/users/{userID}",
		summary:     "Get user",
		description: "Self only.",
		resp:        UserResponse{}, status: http.StatusOK,
		errors: []int{http.StatusUnauthorized, http.StatusForbidden},
	},
	{
		method: http.MethodPut, path: "/api/users/{userID}",
		summary:     "Update user",
		description: "Changes the username, password or role; absent fields are kept and a new password is re-hashed. Self only.",
		req:         UpdateUserRequest{}, resp: UserResponse{}, status: http.StatusOK,
		errors: []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusConflict},
	},
	{
		method: http.MethodDelete, path: "/api/users/{userID}",
		summary:     "Delete user",
		description: "Deletes the account, the rooms it created and the sessions it played. Self only.",
		status:      http.StatusNoContent,
		errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	},
	{
		method: http.MethodGet, path: "/api/rooms",
		summary:     "List rooms",
		description: "Expected answers are only included on rooms the caller created.",
		resp:        []RoomResponse{}, status: http.StatusOK,
		errors: []int{http.StatusUnauthorized},
	},
	{
		method: http.MethodPost, path: "/api/rooms",
		summary:     "Create room",
		description: "Creates a room with its puzzle objects. Requires role BUILDER.",
		req:         RoomRequest{}, resp: RoomResponse{}, status: http.StatusCreated,
		errors: []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden},
	},
	{
		method: http.MethodGet, path: "/api/rooms/{roomID}",
		summary: "Get room",
		resp:    RoomResponse{}, status: http.StatusOK,
		errors: []int{http.StatusNotFound, http.StatusUnauthorized},
	},
	{
		method: http.MethodPut, path: "/api/rooms/{roomID}",
		summary:     "Update room",
		description: "Replaces the room's name, description, theme and timer. Objects are left untouched. Creator only.",
		req:         RoomRequest{}, resp: RoomResponse{}, status: http.StatusOK,
		errors: []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	},
	{
		method: http.MethodDelete, path: "/api/rooms/{roomID}",
		summary:     "Delete room",
		description: "Deletes the room and its objects. Running sessions keep their catalog snapshot. Creator only.",
		status:      http.StatusNoContent,
		errors:      []int{http.StatusForbidden, http.StatusNotFound},
	},
	{
		method: http.MethodGet, path: "/api/rooms/{roomID}/objects",
		summary: "List puzzle objects",
		resp:    []ObjectResponse{}, status: http.StatusOK,
		errors: []int{http.StatusNotFound},
	},
	{
		method: http.MethodPost, path: "/api/rooms/{roomID}/objects",
		summary: "Add puzzle object",
		req:     ObjectRequest{}, resp: ObjectResponse{}, status: http.StatusCreated,
		errors: []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	},
	{
		method: http.MethodDelete, path: "/api/rooms/{roomID}/objects",
		summary: "Delete all puzzle objects",
		status:  http.StatusNoContent,
		errors:  []int{http.StatusForbidden, http.StatusNotFound},
	},
	{
		method: http.MethodPut, path: "/api/rooms/{roomID}/objects/{objectID}",
		summary: "Update puzzle object",
		req:     ObjectRequest{}, resp: ObjectResponse{}, status: http.StatusOK,
		errors: []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	},
	{
		method: http.MethodDelete, path: "/api/rooms/{roomID}/objects/{objectID}",
		summary: "Delete puzzle object",
		status:  http.StatusNoContent,
		errors:  []int{http.StatusForbidden, http.StatusNotFound},
	},
	{
		method: http.MethodGet, path: "/api/sessions",
		summary:     "List my sessions",
		description: "Returns the caller's sessions, newest first.",
		resp:        []SessionResponse{}, status: http.StatusOK,
		errors: []int{http.StatusUnauthorized},
	},
	{
		method: http.MethodPost, path: "/api/sessions",
		summary:     "Start session",
		description: "Starts a session in a room, snapshotting its puzzle objects.",
		req:         CreateSessionRequest{}, resp: SessionResponse{}, status: http.StatusCreated,
		errors: []int{http.StatusBadRequest, http.StatusNotFound},
	},
	{
		method: http.MethodGet, path: "/api/sessions/{sessionID}",
		summary:     "Session state",
		description: "Returns the session with its catalog, solved objects and attempt history.",
		resp:        SessionStateResponse{}, status: http.StatusOK,
		errors: []int{http.StatusNotFound},
	},
	{
		method: http.MethodPost, path: "/api/sessions/{sessionID}/attempts",
		summary:     "Submit answer",
		description: "Records an attempt. Points are awarded at most once per object.",
		req:         SubmitAnswerRequest{}, resp: SubmitAnswerResponse{}, status: http.StatusOK,
		errors: []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	},
	{
		method: http.MethodPost, path: "/api/sessions/{sessionID}/expire",
		summary:     "Expire session",
		description: "Ends an ACTIVE session as EXPIRED. Finished sessions are returned unchanged.",
		resp:        SessionResponse{}, status: http.StatusOK,
		errors: []int{http.StatusNotFound},
	},
	{
		method: http.MethodGet, path: "/api/sessions/{sessionID}/events",
		summary:     "Session event stream",
		description: "Server-Sent Events for the session. The token may be passed as a query parameter.",
		status:      http.StatusOK, contentType: "text/event-stream",
	},
	{
		method: http.MethodGet, path: "/ws/sessions/{sessionID}",
		summary:     "Session event websocket",
		description: "Upgrades to a WebSocket that pushes the session's events as JSON text messages.",
		status:      http.StatusSwitchingProtocols, contentType: "text/plain",
	},
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "Escape Room API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Backend API for building escape rooms and playing sessions in them.")

	for _, op := range operations {
		oc, err := r.NewOperationContext(op.method, op.path)
		if err != nil {
			continue
		}
		oc.SetSummary(op.summary)
		if op.description != "" {
			oc.SetDescription(op.description)
		}
		if op.req != nil {
			oc.AddReqStructure(op.req)
		}
		if op.contentType != "" {
			oc.AddRespStructure(nil, openapi.WithHTTPStatus(op.status), openapi.WithContentType(op.contentType))
		} else {
			oc.AddRespStructure(op.resp, openapi.WithHTTPStatus(op.status))
		}
		for _, code := range op.errors {
			oc.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(code))
		}
		_ = r.AddOperation(oc)
	}

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
