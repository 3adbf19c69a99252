package rpc

import (
	"net"
	"net/rpc"
	"time"

	"github.com/wfunc/roomserver/logger"
	"github.com/wfunc/roomserver/models"
	"github.com/wfunc/roomserver/protocol"
	"github.com/wfunc/roomserver/room"
	"github.com/wfunc/roomserver/services"
	"github.com/wfunc/roomserver/session"
)

// Server manages the RPC listener for the admin surface.
type Server struct {
	listener net.Listener
	address  string
}

// NewServer creates a new RPC server.
func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  addr,
	}, nil
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			// Check if the error is due to the listener being closed.
			if _, ok := err.(*net.OpError); ok {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// AdminService exposes operational queries over net/rpc: live rooms, session
// counts and persisted game history.
type AdminService struct {
	rooms    *room.Manager
	sessions *session.Manager
	records  *services.RecordService
	started  time.Time
}

func NewAdminService(rooms *room.Manager, sessions *session.Manager, records *services.RecordService) *AdminService {
	return &AdminService{
		rooms:    rooms,
		sessions: sessions,
		records:  records,
		started:  time.Now(),
	}
}

type ListRoomsArgs struct{}

type ListRoomsReply struct {
	Rooms []protocol.Room
}

func (a *AdminService) ListRooms(args *ListRoomsArgs, reply *ListRoomsReply) error {
	for summary := range a.rooms.Rooms() {
		reply.Rooms = append(reply.Rooms, summary)
	}
	return nil
}

type StatsArgs struct{}

type StatsReply struct {
	UptimeSeconds float64
	Sessions      int
	Rooms         int
	ActiveGames   int
}

func (a *AdminService) Stats(args *StatsArgs, reply *StatsReply) error {
	reply.UptimeSeconds = time.Since(a.started).Seconds()
	reply.Sessions = a.sessions.Count()
	reply.Rooms = a.rooms.Count()
	reply.ActiveGames = a.rooms.ActiveGames()
	return nil
}

type RoomStatsArgs struct {
	RoomName string
}

type RoomStatsReply struct {
	Stats *models.RoomStats
}

// RoomStats aggregates a room's persisted games. Stats is nil when the store
// is disabled or cannot aggregate.
func (a *AdminService) RoomStats(args *RoomStatsArgs, reply *RoomStatsReply) error {
	stats, err := a.records.RoomStats(args.RoomName)
	if err != nil {
		return err
	}
	reply.Stats = stats
	return nil
}

type RoomHistoryArgs struct {
	RoomName string
	Limit    int
}

type RoomHistoryReply struct {
	Records []models.GameRecord
}

func (a *AdminService) RoomHistory(args *RoomHistoryArgs, reply *RoomHistoryReply) error {
	records, err := a.records.RoomHistory(args.RoomName, args.Limit)
	if err != nil {
		return err
	}
	reply.Records = records
	return nil
}
