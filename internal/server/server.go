package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/segadb/segadb/internal/auth"
	"github.com/segadb/segadb/internal/database"
	"github.com/segadb/segadb/internal/storage"
	"github.com/segadb/segadb/pkg"
)

type WriteSettings struct {
	writePath     string
	inMem         bool
	compress      bool
	writeTicker   *time.Ticker
	writeInterval int
}

func NewWriteSettings(writePath string, inMem, compress bool, writeInterval int) *WriteSettings {
	var writeTicker *time.Ticker
	if !inMem {
		if len(writePath) == 0 {
			pkg.FatalLog("Must either provide db path or use in-memory mode")
		}
		writeTicker = time.NewTicker(time.Duration(writeInterval) * time.Millisecond)
	}
	return &WriteSettings{writePath, inMem, compress, writeTicker, writeInterval}
}

type LogOptions struct {
	ShouldLog     bool
	ShowDebugLogs bool
}

type Server struct {
	db            *database.Database
	users         *auth.Manager
	writeSettings *WriteSettings
	lastChange    time.Time
}

// New builds a server around the named database, reloading it from the
// write path when a previous run saved one there. Credentials from
// SEGADB_USER and SEGADB_PASS seed the admin account.
func New(dbName string, writeSettings *WriteSettings, logOptions LogOptions) *Server {
	if logOptions.ShouldLog {
		if logOptions.ShowDebugLogs {
			pkg.SetLogLevel(pkg.LogLevelDebug)
		} else {
			pkg.SetLogLevel(pkg.LogLevelErrOnly)
		}
	} else {
		pkg.SetLogLevel(pkg.LogLevelNone)
	}

	db := database.New(dbName)
	if len(writeSettings.writePath) > 0 {
		if _, err := os.Stat(writeSettings.writePath); err == nil {
			loaded, err := loadFromFile(writeSettings)
			if err != nil {
				pkg.FatalLog("failed to load db from file;", err)
			}
			db = loaded
			pkg.InfoLog("loaded database from file", writeSettings.writePath)
		}
	}

	users, err := auth.NewManager(db)
	if err != nil {
		pkg.FatalLog("failed to set up users table;", err)
	}
	if username := os.Getenv("SEGADB_USER"); len(username) > 0 {
		_, err := users.Register(username, os.Getenv("SEGADB_PASS"), auth.RoleAdmin)
		if err != nil && err != auth.ErrUserExists {
			pkg.FatalLog("failed to register admin user;", err)
		}
	}

	return &Server{db, users, writeSettings, time.Now()}
}

func loadFromFile(ws *WriteSettings) (*database.Database, error) {
	if ws.compress {
		return storage.LoadCompressed(ws.writePath)
	}
	return storage.Load(ws.writePath)
}

type RequestAction string

const (
	RequestActionCreateTable RequestAction = "createTable"
	RequestActionDropTable   RequestAction = "dropTable"
	RequestActionInsert      RequestAction = "insert"
	RequestActionInsertMany  RequestAction = "insertMany"
	RequestActionFind        RequestAction = "find"
	RequestActionFindMany    RequestAction = "findMany"
	RequestActionUpdate      RequestAction = "update"
	RequestActionDelete      RequestAction = "delete"
	RequestActionJoin        RequestAction = "join"
	RequestActionAggregate   RequestAction = "aggregate"
	RequestActionBegin       RequestAction = "begin"
	RequestActionCommit      RequestAction = "commit"
	RequestActionRollback    RequestAction = "rollback"
)

type WsRequest struct {
	Action RequestAction `json:"action"`
	ReqId  string        `json:"__segadb_client_req_id__"` // used in segadb clients
}

// actionPermission maps each request action to the permission it needs.
var actionPermission = map[RequestAction]auth.Permission{
	RequestActionCreateTable: auth.PermCreateTable,
	RequestActionDropTable:   auth.PermDropTable,
	RequestActionInsert:      auth.PermInsert,
	RequestActionInsertMany:  auth.PermInsert,
	RequestActionFind:        auth.PermSelect,
	RequestActionFindMany:    auth.PermSelect,
	RequestActionJoin:        auth.PermSelect,
	RequestActionAggregate:   auth.PermSelect,
	RequestActionUpdate:      auth.PermUpdate,
	RequestActionDelete:      auth.PermDelete,
	RequestActionBegin:       auth.PermTransaction,
	RequestActionCommit:      auth.PermTransaction,
	RequestActionRollback:    auth.PermTransaction,
}

// readActions need no exclusive lock and never dirty the store.
var readActions = map[RequestAction]bool{
	RequestActionFind:      true,
	RequestActionFindMany:  true,
	RequestActionJoin:      true,
	RequestActionAggregate: true,
}

func (s *Server) Listen(port int) {
	exit := make(chan os.Signal, 2)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		ReadTimeout:  0,
		WriteTimeout: 0,
	}

	upgrader := websocket.Upgrader{
		WriteBufferSize: 1024 * 10,
		ReadBufferSize:  1024 * 10,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		user, err := s.authenticateConn(r)
		if err != nil {
			HttpError(w, http.StatusUnauthorized, err.Error())
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			pkg.ErrorLog(err)
			return
		}
		pkg.InfoLog("New connection established")
		defer conn.Close()

		session := &Session{DB: s.db}
		// a transaction left open by a dropped client must not keep the
		// store blocked
		defer func() {
			if session.Tx != nil {
				pkg.LockWrap(s.db, func() { session.Tx.Rollback() })
			}
		}()

		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					pkg.ErrorLog("unexpected close", err)
				} else {
					pkg.DebugLog("connection closed", err)
				}
				return
			}

			if s.writeSettings.writeTicker != nil {
				// reset write timer when a request is received
				s.writeSettings.writeTicker.Reset(time.Duration(s.writeSettings.writeInterval) * time.Millisecond)
			}

			var req WsRequest
			json.NewDecoder(bytes.NewReader(message)).Decode(&req)

			res := s.dispatch(session, user, req.Action, message)
			res.ReqId = req.ReqId

			if err := conn.WriteJSON(res); err != nil {
				pkg.ErrorLog("writing response", err)
				return
			}

			if !readActions[req.Action] && res.Status < http.StatusBadRequest {
				s.lastChange = time.Now()
			}
		}
	})

	// listen for requests on non-blocking thread
	go func() {
		err := srv.ListenAndServe()
		if err != http.ErrServerClosed {
			pkg.FatalLog(err)
		}
	}()

	go func() {
		if s.writeSettings.writeTicker == nil {
			return
		}

		lastWrite := s.lastChange

		for {
			<-s.writeSettings.writeTicker.C
			if s.lastChange.After(lastWrite) {
				pkg.DebugLog("writing database to file")
				s.writeToFile()
				lastWrite = s.lastChange
			}
		}
	}()

	pkg.InfoLog("segadb listening on port", port)
	<-exit
	pkg.DebugLog("Shutting down...")
	srv.Shutdown(context.Background())
	s.writeToFile()
}

// authenticateConn resolves connection credentials against registered
// users. Credentials ride in the auth query param ("user:pass"), in
// username/password params, or in the Authorization header.
func (s *Server) authenticateConn(r *http.Request) (*auth.User, error) {
	urlQuery := r.URL.Query()
	var username, password string
	if urlQuery.Has("auth") {
		username, password = splitAuth(urlQuery.Get("auth"))
	} else if urlQuery.Has("username") || urlQuery.Has("password") {
		username = urlQuery.Get("username")
		password = urlQuery.Get("password")
	} else {
		username, password = splitAuth(r.Header.Get("Authorization"))
	}
	return s.users.Authenticate(username, password)
}

func splitAuth(joined string) (string, string) {
	for i := 0; i < len(joined); i++ {
		if joined[i] == ':' {
			return joined[:i], joined[i+1:]
		}
	}
	return joined, ""
}

func (s *Server) dispatch(session *Session, user *auth.User, action RequestAction, message []byte) Response {
	perm, known := actionPermission[action]
	if !known {
		return NewErrorResponse(http.StatusBadRequest,
			fmt.Sprintf("unknown action %q", action))
	}
	if !user.HasPermission(perm) {
		return NewErrorResponse(http.StatusForbidden,
			fmt.Sprintf("user %s lacks the %s permission", user.Username, perm))
	}

	var res Response
	run := func() {
		switch action {
		case RequestActionCreateTable:
			res = CreateTableReqHandler(session, message)
		case RequestActionDropTable:
			res = DropTableReqHandler(session, message)
		case RequestActionInsert:
			res = InsertReqHandler(session, message)
		case RequestActionInsertMany:
			res = InsertManyReqHandler(session, message)
		case RequestActionFind:
			res = FindReqHandler(session, message)
		case RequestActionFindMany:
			res = FindManyReqHandler(session, message)
		case RequestActionUpdate:
			res = UpdateReqHandler(session, message)
		case RequestActionDelete:
			res = DeleteReqHandler(session, message)
		case RequestActionJoin:
			res = JoinReqHandler(session, message)
		case RequestActionAggregate:
			res = AggregateReqHandler(session, message)
		case RequestActionBegin:
			res = BeginReqHandler(session, message)
		case RequestActionCommit:
			res = CommitReqHandler(session, message)
		case RequestActionRollback:
			res = RollbackReqHandler(session, message)
		}
	}
	if readActions[action] {
		pkg.RLockWrap(s.db, run)
	} else {
		pkg.LockWrap(s.db, run)
	}
	return res
}

func HttpError(w http.ResponseWriter, status int, err string) {
	pkg.InfoLog("http error:", err)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(Response{
		Message: err,
		Status:  status,
	})
}

func (s *Server) writeToFile() {
	if s.writeSettings.inMem {
		return
	}

	var err error
	if s.writeSettings.compress {
		err = storage.SaveCompressed(s.db, s.writeSettings.writePath)
	} else {
		err = storage.Save(s.db, s.writeSettings.writePath)
	}
	if err != nil {
		pkg.FatalLog("writing database to file", err)
	}
}
