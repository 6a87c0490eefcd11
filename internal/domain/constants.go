package domain

// ==== Board Constants ====

// DefaultBoardSize is used when a game snapshot carries no board size
const DefaultBoardSize = 19

// MaxBoardSize bounds the grids this client is willing to allocate
const MaxBoardSize = 25

// ==== WebSocket Constants ====

// MaxMessageSize is the maximum allowed inbound WebSocket message size in bytes
const MaxMessageSize = 4096

// SendBufferSize is the number of outbound frames queued before sends are dropped
const SendBufferSize = 64

// EventBufferSize is the number of decoded inbound events queued for the view loop
const EventBufferSize = 256

// ==== Diagnostics Constants ====

// DefaultJournalSize is the number of discarded events kept per game view
const DefaultJournalSize = 64
