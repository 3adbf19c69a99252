package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/rpc"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wfunc/roomserver/broadcast"
	"github.com/wfunc/roomserver/config"
	"github.com/wfunc/roomserver/logger"
	"github.com/wfunc/roomserver/monitor"
	"github.com/wfunc/roomserver/network"
	"github.com/wfunc/roomserver/persistence"
	"github.com/wfunc/roomserver/problem"
	"github.com/wfunc/roomserver/protocol"
	"github.com/wfunc/roomserver/room"
	gameserver_rpc "github.com/wfunc/roomserver/rpc"
	"github.com/wfunc/roomserver/services"
	"github.com/wfunc/roomserver/session"
	"github.com/wfunc/roomserver/timer"
)

// Version is reported by the info request.
const Version = "1.0.0"

// GameServer is the protocol layer: it accepts websocket connections, reads
// request envelopes, dispatches them to the room manager and replies or
// broadcasts the outcome.
type GameServer struct {
	cfg            config.ServerConfig
	prob           problem.Problem
	defaultArgs    map[string]any // problem args applied when start_game sends none
	upgrader       websocket.Upgrader
	roomManager    *room.Manager
	sessionManager *session.Manager
	recordService  *services.RecordService
	broadcaster    *broadcast.RoomBroadcaster
	rpcServer      *gameserver_rpc.Server
	mon            *monitor.Monitor
	timers         *timer.TimerManager
	shutdownChan   chan struct{}
}

func NewGameServer(cfg config.ServerConfig, prob problem.Problem, defaultArgs map[string]any, db persistence.Database) *GameServer {
	s := &GameServer{
		cfg:            cfg,
		prob:           prob,
		defaultArgs:    defaultArgs,
		roomManager:    room.NewManager(prob),
		sessionManager: session.NewManager(),
		recordService:  services.NewRecordService(db),
		mon:            monitor.NewMonitor("roomserver"),
		timers:         timer.NewTimerManager(),
		shutdownChan:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}

	// Wire the fan-out; it reads membership back through the room manager.
	s.broadcaster = broadcast.NewRoomBroadcaster(s.roomManager, s.sessionManager)
	s.roomManager.SetBroadcaster(s.broadcaster)

	rpcServer, err := gameserver_rpc.NewServer(cfg.RPCAddress)
	if err != nil {
		logger.Log.Fatalf("Failed to create RPC server: %v", err)
	}
	s.rpcServer = rpcServer

	adminService := gameserver_rpc.NewAdminService(s.roomManager, s.sessionManager, s.recordService)
	rpc.Register(adminService)

	// Periodic work: metric refresh and idle session eviction.
	s.timers.AddTimer(10*time.Second, 30*time.Second, s.refreshMetrics)
	if cfg.IdleTimeout > 0 {
		s.timers.AddTimer(cfg.IdleTimeout, time.Minute, s.sweepIdleSessions)
	}

	return s
}

func (s *GameServer) Start() error {
	go s.rpcServer.Start()
	if s.cfg.MetricsAddress != "" {
		s.mon.StartServer(s.cfg.MetricsAddress)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	logger.Log.Infof("Game server listening on %s", s.cfg.HTTPAddress)
	return http.ListenAndServe(s.cfg.HTTPAddress, mux)
}

func (s *GameServer) Shutdown() {
	close(s.shutdownChan)
	s.timers.Stop()
	s.rpcServer.Stop()
}

func (s *GameServer) refreshMetrics() {
	s.mon.SetActiveRooms(s.roomManager.Count())
	s.mon.SetActiveGames(s.roomManager.ActiveGames())
}

// sweepIdleSessions closes connections with no inbound traffic for the
// configured idle timeout. The read loop then performs the normal disconnect
// sequence.
func (s *GameServer) sweepIdleSessions() {
	cutoff := time.Now().Add(-s.cfg.IdleTimeout)
	for _, sess := range s.sessionManager.Idle(cutoff) {
		logger.Log.Infof("Closing idle session %s", sess.ID)
		sess.Close()
	}
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(conn)
}

func (s *GameServer) handleConnection(conn *websocket.Conn) {
	wsConn := network.NewWSConnection(conn)
	sess := session.NewSession(uuid.New().String(), wsConn)
	s.sessionManager.Add(sess)
	s.mon.IncOnlinePlayers()

	logger.Log.Infof("New connection from %s, session ID: %s", wsConn.RemoteAddr(), sess.ID)

	sess.Conn.Send(&protocol.Envelope{
		Event: protocol.EventYourSID,
		Data:  mustJSON(protocol.YourSID{SID: sess.ID}),
	})

	defer func() {
		logger.Log.Infof("Connection closed from %s, session ID: %s", wsConn.RemoteAddr(), sess.ID)
		s.disconnect(sess)
	}()

	for {
		select {
		case <-s.shutdownChan:
			return
		default:
			env, err := wsConn.ReadEnvelope()
			if err != nil {
				return
			}
			sess.Touch()
			s.mon.IncEventsReceived()
			s.dispatch(sess, env)
		}
	}
}

// disconnect is the implicit leave_room: the registry entry goes away only
// after the room side effects ran, so membership stays consistent.
func (s *GameServer) disconnect(sess *session.Session) {
	roomName := sess.RoomName()
	if roomName != "" {
		if err := s.roomManager.Leave(sess); err != nil {
			logger.Log.Warnf("Session %s: leave on disconnect: %v", sess.ID, err)
		}
		s.syncRoom(roomName)
	}
	s.sessionManager.Remove(sess.ID)
	s.mon.DecOnlinePlayers()
	sess.Close()
}

// dispatch runs the handler under the response timeout. On overrun the
// requester gets ResponseTimeout while the handler still runs to completion,
// so the outcome is unknown rather than failed.
func (s *GameServer) dispatch(sess *session.Session, env *protocol.Envelope) {
	start := time.Now()
	type outcome struct {
		payload any
		err     error
	}
	done := make(chan outcome, 1)

	go func() {
		payload, err := s.handle(sess, env)
		done <- outcome{payload: payload, err: err}
	}()

	timeout := s.cfg.ResponseTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	var result outcome
	select {
	case result = <-done:
	case <-time.After(timeout):
		result = outcome{err: protocol.NewError(protocol.ResponseTimeout, "no response within "+timeout.String())}
	}
	s.mon.ObserveRequestLatency(time.Since(start))

	if result.err != nil {
		s.sendError(sess, env, result.err)
		return
	}
	s.sendReply(sess, env, result.payload)
}

// handle is the exhaustive request dispatch. Unknown events and malformed
// payloads are request-shape errors: rejected here, never reaching the room
// or game layers.
func (s *GameServer) handle(sess *session.Session, env *protocol.Envelope) (any, error) {
	switch env.Event {
	case protocol.EventCreateRoom:
		var req protocol.CreateRoom
		if err := json.Unmarshal(env.Data, &req); err != nil {
			return nil, badPayload(env, err)
		}
		return s.handleCreateRoom(sess, &req)

	case protocol.EventDeleteRoom:
		var req protocol.DeleteRoom
		if err := json.Unmarshal(env.Data, &req); err != nil {
			return nil, badPayload(env, err)
		}
		return s.handleDeleteRoom(sess, &req)

	case protocol.EventJoinRoom:
		var req protocol.JoinRoom
		if err := json.Unmarshal(env.Data, &req); err != nil {
			return nil, badPayload(env, err)
		}
		return s.handleJoinRoom(sess, &req)

	case protocol.EventSetName:
		var req protocol.SetName
		if err := json.Unmarshal(env.Data, &req); err != nil {
			return nil, badPayload(env, err)
		}
		sess.SetName(req.Name)
		return struct{}{}, nil

	case protocol.EventSetRoles:
		var req protocol.SetRoles
		if err := json.Unmarshal(env.Data, &req); err != nil {
			return nil, badPayload(env, err)
		}
		if err := s.roomManager.SetRoles(sess, req.Roles); err != nil {
			return nil, err
		}
		return struct{}{}, nil

	case protocol.EventLeaveRoom:
		return s.handleLeaveRoom(sess)

	case protocol.EventStartGame:
		var req protocol.StartGame
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &req); err != nil {
				return nil, badPayload(env, err)
			}
		}
		return s.handleStartGame(sess, &req)

	case protocol.EventOperatorChosen:
		var req protocol.OperatorChosen
		if err := json.Unmarshal(env.Data, &req); err != nil {
			return nil, badPayload(env, err)
		}
		return s.handleOperatorChosen(sess, &req)

	case protocol.EventListRoles:
		return s.handleListRoles()

	case protocol.EventListRooms:
		reply := protocol.ListRoomsReply{Rooms: []protocol.Room{}}
		for summary := range s.roomManager.Rooms() {
			reply.Rooms = append(reply.Rooms, summary)
		}
		return reply, nil

	case protocol.EventInfo:
		info := s.prob.Info()
		return protocol.InfoReply{
			ServerVersion:  Version,
			ProblemName:    info.Name,
			ProblemVersion: info.Version,
			ProblemAuthors: info.Authors,
			ProblemDesc:    info.Description,
		}, nil

	default:
		logger.Log.Infof("Session %s sent unknown event %q", sess.ID, env.Event)
		return nil, nil
	}
}

func (s *GameServer) handleCreateRoom(sess *session.Session, req *protocol.CreateRoom) (any, error) {
	if _, err := s.roomManager.Create(req.Room, sess); err != nil {
		return nil, err
	}
	logger.Log.Infof("Session %s created room %s", sess.ID, req.Room)
	s.syncRoom(req.Room)
	return struct{}{}, nil
}

func (s *GameServer) handleDeleteRoom(sess *session.Session, req *protocol.DeleteRoom) (any, error) {
	if err := s.roomManager.Delete(req.Room, sess.ID); err != nil {
		return nil, err
	}
	logger.Log.Infof("Session %s deleted room %s", sess.ID, req.Room)
	if err := s.recordService.DropRoom(req.Room); err != nil {
		logger.Log.Warnf("Dropping snapshot of %s: %v", req.Room, err)
	}
	return struct{}{}, nil
}

func (s *GameServer) handleJoinRoom(sess *session.Session, req *protocol.JoinRoom) (any, error) {
	if err := s.roomManager.Join(req.Room, sess, req.Username); err != nil {
		return nil, err
	}
	logger.Log.Infof("Session %s joined room %s", sess.ID, req.Room)
	s.syncRoom(req.Room)
	return struct{}{}, nil
}

func (s *GameServer) handleLeaveRoom(sess *session.Session) (any, error) {
	roomName := sess.RoomName()
	if err := s.roomManager.Leave(sess); err != nil {
		return nil, err
	}
	s.syncRoom(roomName)
	return struct{}{}, nil
}

func (s *GameServer) handleStartGame(sess *session.Session, req *protocol.StartGame) (any, error) {
	args := req.Args
	if len(args) == 0 {
		args = s.defaultArgs
	}
	if err := s.roomManager.StartGame(sess, args); err != nil {
		return nil, err
	}
	s.syncRoom(sess.RoomName())
	return struct{}{}, nil
}

func (s *GameServer) handleOperatorChosen(sess *session.Session, req *protocol.OperatorChosen) (any, error) {
	summary, err := s.roomManager.Choose(sess, req.OpNo, req.Params)
	if err != nil {
		return nil, err
	}
	s.mon.IncOperatorsApplied()

	if summary != nil {
		var snapshot *protocol.Room
		if snap, ok := s.roomManager.Snapshot(summary.RoomName); ok {
			snapshot = &snap
		}
		if err := s.recordService.SaveGameSummary(summary, snapshot); err != nil {
			logger.Log.Warnf("Saving record for room %s: %v", summary.RoomName, err)
		}
	}
	return struct{}{}, nil
}

func (s *GameServer) handleListRoles() (any, error) {
	catalog := s.prob.Roles()
	reply := protocol.ListRolesReply{Roles: []protocol.Role{}}
	for _, role := range catalog {
		reply.Roles = append(reply.Roles, protocol.Role{
			Name: role.Name,
			Min:  role.Min,
			Max:  role.Max,
		})
	}
	return reply, nil
}

// syncRoom refreshes or drops the persisted snapshot after a membership
// change. Best-effort; persistence never fails a request.
func (s *GameServer) syncRoom(roomName string) {
	if roomName == "" || !s.recordService.Enabled() {
		return
	}
	snapshot, exists := s.roomManager.Snapshot(roomName)
	var err error
	if exists {
		err = s.recordService.SyncRoom(s.prob.Info().Name, &snapshot)
	} else {
		err = s.recordService.DropRoom(roomName)
	}
	if err != nil {
		logger.Log.Warnf("Syncing snapshot of %s: %v", roomName, err)
	}
}

func (s *GameServer) sendReply(sess *session.Session, env *protocol.Envelope, payload any) {
	if payload == nil {
		return // no reply expected
	}
	sess.Conn.Send(&protocol.Envelope{
		Event: env.Event,
		Seq:   env.Seq,
		Data:  mustJSON(payload),
	})
}

func (s *GameServer) sendError(sess *session.Session, env *protocol.Envelope, err error) {
	perr := &protocol.Error{}
	var known *protocol.Error
	if errors.As(err, &known) {
		perr.Type = known.Type
		perr.Message = known.Message
	} else {
		// Internal failure; report a timeout-class unknown outcome.
		logger.Log.Errorf("Session %s: %s failed: %v", sess.ID, env.Event, err)
		perr.Type = protocol.ResponseTimeout
		perr.Message = "internal error"
	}
	sess.Conn.Send(&protocol.Envelope{
		Event: protocol.EventError,
		Seq:   env.Seq,
		Data:  mustJSON(perr),
	})
}

// badPayload logs and swallows a malformed request body: a request-shape
// error gets no protocol-level error kind.
func badPayload(env *protocol.Envelope, err error) error {
	logger.Log.Infof("Malformed %s payload: %v", env.Event, err)
	return nil
}

func mustJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		logger.Log.Errorf("Marshalling %T: %v", v, err)
		return json.RawMessage(`{}`)
	}
	return data
}
