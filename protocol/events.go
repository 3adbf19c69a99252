// protocol/events.go
package protocol

// Client -> server events.
const (
	EventCreateRoom     = "create_room"
	EventDeleteRoom     = "delete_room"
	EventJoinRoom       = "join_room"
	EventSetName        = "set_name"
	EventSetRoles       = "set_roles"
	EventLeaveRoom      = "leave_room"
	EventStartGame      = "start_game"
	EventOperatorChosen = "operator_chosen"
	EventListRoles      = "list_roles"
	EventListRooms      = "list_rooms"
	EventInfo           = "info"
)

// Server -> client events.
const (
	EventYourSID            = "your_sid"
	EventRoomCreated        = "room_created"
	EventRoomDeleted        = "room_deleted"
	EventRoomJoined         = "room_joined"
	EventRoomLeft           = "room_left"
	EventRoomChanged        = "room_changed"
	EventRolesChanged       = "roles_changed"
	EventGameStarted        = "game_started"
	EventGameEnded          = "game_ended"
	EventOperatorApplied    = "operator_applied"
	EventOperatorsAvailable = "operators_available"
	EventTransition         = "transition"
	EventError              = "error"
)
