package core

// CommandType identifies a remote operator command.
type CommandType string

// Available remote commands
const (
	CommandStatus    CommandType = "status"
	CommandPositions CommandType = "positions"
	CommandFactors   CommandType = "factors"
	CommandClose     CommandType = "close"
	CommandStop      CommandType = "stop"
)

// Command is a single remote instruction for the engine. Coin is set
// only for CommandClose.
type Command struct {
	Type CommandType
	Coin string
}

// CommandSource supplies remote commands. Next must not block when no
// command is pending; it returns ok=false instead. Authorization is the
// source's concern, not the engine's.
type CommandSource interface {
	Next() (Command, bool)
}
