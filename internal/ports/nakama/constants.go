package nakama

const (
	// RPC ids exposed to clients.
	RpcCreateSession     = "create_session"
	RpcJoinSession       = "join_session"
	RpcGetCurrentSession = "get_current_session"
	RpcListSessions      = "list_sessions"

	// MatchNameSession is the authoritative match handler name registered with Nakama.
	// Each Nakama match carries exactly one session.
	MatchNameSession = "quarrel_session"

	// SignalEndMatch is the MatchSignal payload game logic sends when the match is over.
	SignalEndMatch = "end_match"

	// matchParamSessionID is the MatchCreate parameter naming the session.
	matchParamSessionID = "session_id"

	// metadataTicket is the join metadata key carrying the session ticket.
	metadataTicket = "ticket"
)

// Op codes for client messages and server events.
// Payloads are binary google.protobuf.Struct messages.
const (
	// Client -> Server
	OpReady             int64 = 1
	OpUnready           int64 = 2
	OpStartSession      int64 = 3
	OpSubmitInput       int64 = 4
	OpLoadAck           int64 = 5
	OpHitReport         int64 = 6
	OpSetSettings       int64 = 7
	OpSelectCharacter   int64 = 8
	OpRespawn           int64 = 9
	OpClearParticipants int64 = 10
	OpPhysicalState     int64 = 11

	// Server -> Client events
	OpParticipantJoined    int64 = 101
	OpParticipantLeft      int64 = 102
	OpParticipantReady     int64 = 103
	OpParticipantUnready   int64 = 104
	OpHostChanged          int64 = 105
	OpSettingsChanged      int64 = 106
	OpSessionStarting      int64 = 107
	OpSessionStarted       int64 = 108 // send privately
	OpSessionStartFailed   int64 = 109
	OpParticipantRespawned int64 = 110
	OpCombatModeSet        int64 = 111 // send privately
	OpSessionEnding        int64 = 112
	OpSessionEnded         int64 = 113
	OpActionResolved       int64 = 114
	OpHitstop              int64 = 115
	OpStateReset           int64 = 116

	OpRequestLoad int64 = 150 // send privately
	OpSnapshot    int64 = 151 // send privately
	OpError       int64 = 199 // send privately
)
